package auth

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/noticeboard/internal/domain"
	"github.com/spec-kit/noticeboard/internal/repository"
	apperrors "github.com/spec-kit/noticeboard/pkg/util"
)

const principalKey = "auth_principal"

// AccessHeader is the request header carrying the access token.
const AccessHeader = "access"

// Principal represents the authenticated caller for one request.
type Principal struct {
	User *domain.User
	Role domain.Role
}

// AuthMiddleware validates access tokens and loads principals.
type AuthMiddleware struct {
	tokens *TokenManager
	users  repository.UserRepository
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenManager, users repository.UserRepository) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, users: users}
}

// Handle runs on every request. Requests without an access token pass
// through anonymously; protected routes reject them downstream. Expired or
// mistyped tokens are rejected here. A token whose subject no longer exists
// is treated as anonymous, since the account may have been deleted after
// issuance.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	tokenStr := c.Get(AccessHeader)
	if tokenStr == "" {
		return c.Next()
	}

	claims, err := m.tokens.Parse(tokenStr)
	if err != nil {
		if errors.Is(err, ErrTokenExpired) {
			return apperrors.NewTokenExpired("access token expired")
		}
		return apperrors.NewTokenInvalid("invalid access token")
	}

	if claims.Category != domain.TokenCategoryAccess {
		return apperrors.NewTokenInvalid("invalid access token")
	}

	role, err := domain.ParseRole(claims.Role)
	if err != nil {
		return c.Next()
	}

	user, err := m.users.GetByEmail(c.Context(), claims.Email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return c.Next()
		}
		return apperrors.MapError(err)
	}

	c.Locals(principalKey, &Principal{User: user, Role: role})
	return c.Next()
}

// PrincipalFromContext retrieves the authenticated entity.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}
