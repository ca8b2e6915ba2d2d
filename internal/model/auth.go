package model

import "github.com/golang-jwt/jwt/v5"

// Token kinds carried in the "typ" claim
const (
	TokenAccess  = "access"
	TokenRefresh = "refresh"
)

// AuthorClaims are JWT claims for survey authors. The jti is used to revoke
// refresh tokens.
type AuthorClaims struct {
	AuthorID string `json:"authorId"`
	Type     string `json:"typ"`
	jwt.RegisteredClaims
}

// LoginRequest is the request body for author login
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// RefreshRequest carries the refresh token for rotation or logout
type RefreshRequest struct {
	RefreshToken string `json:"refresh" validate:"required"`
}

// TokenPair is returned after login and refresh
type TokenPair struct {
	Access   string `json:"access"`
	Refresh  string `json:"refresh"`
	AuthorID string `json:"author_id"`
}
