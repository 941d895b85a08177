package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/openlearnhq/report-engine/internal/models"
	appErrors "github.com/openlearnhq/report-engine/pkg/errors"
)

// AuthConfig defines token verification settings.
type AuthConfig struct {
	Secret string
	Expiry time.Duration
}

// AuthService verifies platform-issued session tokens. The engine never
// mints end-user tokens itself; IssueToken exists for tooling and tests.
type AuthService struct {
	config AuthConfig
	logger *zap.Logger
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(config AuthConfig, logger *zap.Logger) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{config: config, logger: logger}
}

// ValidateToken parses an access token and returns its claims.
func (s *AuthService) ValidateToken(tokenString string) (*models.SessionClaims, error) {
	claims := &models.SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(s.config.Secret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "token expired")
		}
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
	}
	if !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
	}
	if claims.UserID == 0 {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "token carries no user")
	}
	return claims, nil
}

// IssueToken signs a session token for the given claims.
func (s *AuthService) IssueToken(claims *models.SessionClaims) (string, error) {
	now := time.Now().UTC()
	expiry := s.config.Expiry
	if expiry <= 0 {
		expiry = time.Hour
	}
	claims.RegisteredClaims = jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.config.Secret))
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign token")
	}
	return signed, nil
}
