package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openlearnhq/report-engine/internal/models"
	appErrors "github.com/openlearnhq/report-engine/pkg/errors"
)

func TestAuthServiceIssueAndValidate(t *testing.T) {
	svc := NewAuthService(AuthConfig{Secret: "test-secret", Expiry: time.Hour}, nil)

	token, err := svc.IssueToken(&models.SessionClaims{
		UserID:   42,
		Level:    models.LevelPowerUser,
		Lang:     "italian",
		Timezone: "Europe/Rome",
		Platform: "acme.example.com",
		Context: models.PlatformContext{
			DefaultLang:    "english",
			ExportRowLimit: 5000,
		},
	})
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserID)
	assert.Equal(t, models.LevelPowerUser, claims.Level)
	assert.Equal(t, "acme.example.com", claims.Platform)
	assert.Equal(t, 5000, claims.Context.ExportRowLimit)

	session := claims.Session()
	assert.Equal(t, int64(42), session.UserID)
	assert.Equal(t, "italian", session.Lang)
	assert.True(t, session.IsPowerUser())
	assert.Equal(t, 5000, session.Platform.ExportRowLimit)
}

func TestAuthServiceRejectsWrongSecret(t *testing.T) {
	issuer := NewAuthService(AuthConfig{Secret: "one"}, nil)
	verifier := NewAuthService(AuthConfig{Secret: "two"}, nil)

	token, err := issuer.IssueToken(&models.SessionClaims{UserID: 1})
	require.NoError(t, err)

	_, err = verifier.ValidateToken(token)
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErr.Code)
}

func TestAuthServiceRejectsExpiredToken(t *testing.T) {
	svc := NewAuthService(AuthConfig{Secret: "test-secret"}, nil)

	claims := &models.SessionClaims{UserID: 1}
	claims.RegisteredClaims = jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * time.Hour)),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = svc.ValidateToken(signed)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token expired")
}

func TestAuthServiceRejectsTokenWithoutUser(t *testing.T) {
	svc := NewAuthService(AuthConfig{Secret: "test-secret"}, nil)

	token, err := svc.IssueToken(&models.SessionClaims{})
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token carries no user")
}

func TestAuthServiceRejectsGarbage(t *testing.T) {
	svc := NewAuthService(AuthConfig{Secret: "test-secret"}, nil)

	_, err := svc.ValidateToken("not.a.jwt")
	require.Error(t, err)
}
