package handlers

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/noticeboard/internal/api/dto"
	"github.com/spec-kit/noticeboard/internal/auth"
	"github.com/spec-kit/noticeboard/internal/domain"
	"github.com/spec-kit/noticeboard/internal/service"
	apperrors "github.com/spec-kit/noticeboard/pkg/util"
)

// RefreshCookie is the cookie name carrying the refresh token.
const RefreshCookie = "refresh"

// AuthHandler exposes join, login, reissue and logout endpoints.
type AuthHandler struct {
	auth *service.AuthService
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: authService}
}

// Join handles POST /join.
func (h *AuthHandler) Join(c *fiber.Ctx) error {
	var req dto.JoinRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Username == "" || req.Email == "" || req.Password == "" {
		return apperrors.NewValidationError("username, email, password required", nil)
	}

	user, err := h.auth.Register(c.Context(), req.Username, req.Email, req.Password, domain.Role(req.Role))
	if err != nil {
		return err
	}

	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"data": dto.UserResponse{
			ID:       user.ID,
			Username: user.Username,
			Email:    user.Email,
			Role:     string(user.Role),
		},
	})
}

// Login handles POST /login. On success the access token travels in the
// "access" response header and the refresh token in an HttpOnly cookie.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Email == "" || req.Password == "" {
		return apperrors.NewValidationError("email and password required", nil)
	}

	user, pair, err := h.auth.Login(c.Context(), req.Email, req.Password)
	if err != nil {
		return err
	}

	h.setTokens(c, pair)
	return c.JSON(fiber.Map{
		"data": dto.UserResponse{
			ID:       user.ID,
			Username: user.Username,
			Email:    user.Email,
			Role:     string(user.Role),
		},
	})
}

// Reissue handles POST /reissue, exchanging the refresh cookie for a new
// access/refresh pair.
func (h *AuthHandler) Reissue(c *fiber.Ctx) error {
	pair, err := h.auth.Reissue(c.Context(), c.Cookies(RefreshCookie))
	if err != nil {
		return err
	}

	h.setTokens(c, pair)
	return c.JSON(fiber.Map{
		"data": fiber.Map{"reissued": true},
	})
}

// Logout handles POST /logout. Always succeeds, even for tokens never issued.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	if err := h.auth.Logout(c.Context(), c.Cookies(RefreshCookie)); err != nil {
		return err
	}

	c.Cookie(&fiber.Cookie{
		Name:     RefreshCookie,
		Value:    "",
		HTTPOnly: true,
		MaxAge:   -1,
		Expires:  time.Now().Add(-time.Hour),
	})
	return c.JSON(fiber.Map{
		"data": fiber.Map{"logged_out": true},
	})
}

func (h *AuthHandler) setTokens(c *fiber.Ctx, pair *service.TokenPair) {
	c.Set(auth.AccessHeader, pair.AccessToken)
	c.Cookie(&fiber.Cookie{
		Name:     RefreshCookie,
		Value:    pair.RefreshToken,
		HTTPOnly: true,
		MaxAge:   int(h.auth.RefreshTTL().Seconds()),
	})
}
