package models

import "github.com/golang-jwt/jwt/v5"

// SessionClaims is the JWT payload minted by the platform for engine
// calls. The platform context travels inside the token so the engine
// never has to look feature flags up per request.
type SessionClaims struct {
	UserID   int64           `json:"uid"`
	Level    UserLevel       `json:"level"`
	Lang     string          `json:"lang,omitempty"`
	Timezone string          `json:"timezone,omitempty"`
	Platform string          `json:"platform"`
	Context  PlatformContext `json:"platformContext"`
	jwt.RegisteredClaims
}

// Session converts the claims into the compiler-facing session value.
func (c *SessionClaims) Session() *SessionContext {
	return &SessionContext{
		UserID:   c.UserID,
		Level:    c.Level,
		Lang:     c.Lang,
		Timezone: c.Timezone,
		Platform: c.Context,
	}
}
