package auth

import (
	"errors"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/spec-kit/noticeboard/internal/domain"
)

var (
	// ErrTokenInvalid covers signature and structural failures.
	ErrTokenInvalid = errors.New("token invalid")
	// ErrTokenExpired is distinct from ErrTokenInvalid; the two drive
	// different HTTP responses.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenTypeMismatch is returned when a token of the wrong category is
	// presented (a refresh token used as access, or vice versa).
	ErrTokenTypeMismatch = errors.New("token category mismatch")
)

// TokenManager issues and validates category-tagged JWT tokens.
type TokenManager struct {
	secret []byte
}

// NewTokenManager builds a new manager.
func NewTokenManager(secret string) *TokenManager {
	return &TokenManager{secret: []byte(secret)}
}

// Claims describes the JWT payload.
type Claims struct {
	Category domain.TokenCategory `json:"category"`
	Email    string               `json:"email"`
	Role     string               `json:"role"`
	jwt.RegisteredClaims
}

// Issue builds and signs a token carrying category, subject email and role.
// Each token gets a unique ID so that two tokens issued within the same
// second never collide; refresh rotation depends on that.
func (tm *TokenManager) Issue(category domain.TokenCategory, email string, role domain.Role, ttl time.Duration) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(ttl)
	claims := &Claims{
		Category: category,
		Email:    email,
		Role:     string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(tm.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expiresAt, nil
}

// Parse validates signature and expiry and returns the claims.
// A token at or past its expiry yields ErrTokenExpired; any other failure
// yields ErrTokenInvalid.
func (tm *TokenManager) Parse(tokenStr string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return tm.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// ParseCategory parses the token and additionally enforces its category.
func (tm *TokenManager) ParseCategory(tokenStr string, want domain.TokenCategory) (*Claims, error) {
	claims, err := tm.Parse(tokenStr)
	if err != nil {
		return nil, err
	}
	if claims.Category != want {
		return nil, ErrTokenTypeMismatch
	}
	return claims, nil
}
