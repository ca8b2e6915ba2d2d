package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"surveychat/internal/cache"
	"surveychat/internal/config"
	"surveychat/internal/model"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

// AuthService issues and checks author tokens
type AuthService struct {
	cfg       config.AuthConfig
	jwtSecret []byte
	revoked   cache.TokenCache
	now       func() time.Time
}

// NewAuthService creates a new auth service
func NewAuthService(cfg config.AuthConfig, revoked cache.TokenCache) *AuthService {
	return &AuthService{
		cfg:       cfg,
		jwtSecret: []byte(cfg.JWTSecret),
		revoked:   revoked,
		now:       time.Now,
	}
}

// Login validates credentials and returns a token pair
func (s *AuthService) Login(ctx context.Context, username, password string) (*model.TokenPair, error) {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(s.cfg.Username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(s.cfg.Password)) == 1
	if !userOK || !passOK {
		return nil, ErrInvalidCredentials
	}
	return s.issue(AuthorID(username))
}

// AuthorID is the stable owner id for an author account
func AuthorID(username string) string {
	return "author_" + username
}

// Refresh rotates a refresh token: the old one is revoked and a new pair issued
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*model.TokenPair, error) {
	claims, err := s.parse(refreshToken, model.TokenRefresh)
	if err != nil {
		return nil, err
	}
	revoked, err := s.revoked.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("check revoked token: %w", err)
	}
	if revoked {
		return nil, ErrInvalidToken
	}
	if err := s.revoke(ctx, claims); err != nil {
		return nil, err
	}
	return s.issue(claims.AuthorID)
}

// Logout revokes a refresh token
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	claims, err := s.parse(refreshToken, model.TokenRefresh)
	if err != nil {
		return err
	}
	return s.revoke(ctx, claims)
}

// ValidateAccessToken validates an author access JWT and returns claims
func (s *AuthService) ValidateAccessToken(tokenString string) (*model.AuthorClaims, error) {
	return s.parse(tokenString, model.TokenAccess)
}

func (s *AuthService) issue(authorID string) (*model.TokenPair, error) {
	access, err := s.sign(authorID, model.TokenAccess, s.cfg.AccessTokenTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := s.sign(authorID, model.TokenRefresh, s.cfg.RefreshTokenTTL)
	if err != nil {
		return nil, err
	}
	return &model.TokenPair{Access: access, Refresh: refresh, AuthorID: authorID}, nil
}

func (s *AuthService) sign(authorID, typ string, ttl time.Duration) (string, error) {
	now := s.now()
	claims := &model.AuthorClaims{
		AuthorID: authorID,
		Type:     typ,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   authorID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

func (s *AuthService) parse(tokenString, typ string) (*model.AuthorClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &model.AuthorClaims{}, func(token *jwt.Token) (interface{}, error) {
		return s.jwtSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*model.AuthorClaims)
	if !ok || !token.Valid || claims.Type != typ {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (s *AuthService) revoke(ctx context.Context, claims *model.AuthorClaims) error {
	if claims.ExpiresAt == nil {
		return nil
	}
	if err := s.revoked.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}
