package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/noticeboard/internal/auth"
	"github.com/spec-kit/noticeboard/internal/config"
	"github.com/spec-kit/noticeboard/internal/domain"
	"github.com/spec-kit/noticeboard/internal/events"
	"github.com/spec-kit/noticeboard/internal/repository"
	apperrors "github.com/spec-kit/noticeboard/pkg/util"
)

// TokenPair bundles a freshly issued access/refresh pair.
type TokenPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// AuthService coordinates registration, login and the refresh token lifecycle.
type AuthService struct {
	users      repository.UserRepository
	refresh    repository.RefreshStore
	dispatcher events.Dispatcher
	tokenMgr   *auth.TokenManager
	bcryptCost int
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// AuthDependencies encapsulates store requirements for auth service.
type AuthDependencies struct {
	UserRepo     repository.UserRepository
	RefreshStore repository.RefreshStore
	Dispatcher   events.Dispatcher
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config, deps AuthDependencies) *AuthService {
	return &AuthService{
		users:      deps.UserRepo,
		refresh:    deps.RefreshStore,
		dispatcher: deps.Dispatcher,
		tokenMgr:   auth.NewTokenManager(cfg.Auth.JWTSecret),
		bcryptCost: cfg.Auth.BcryptCost,
		accessTTL:  cfg.Auth.AccessTokenTTL(),
		refreshTTL: cfg.Auth.RefreshTokenTTL(),
	}
}

// Register creates a new member account. Unknown or empty roles fall back to
// the plain user role.
func (s *AuthService) Register(ctx context.Context, username, email, password string, role domain.Role) (*domain.User, error) {
	exists, err := s.users.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if exists {
		return nil, apperrors.NewConflict("email already registered", map[string]any{"email": email})
	}

	if !role.IsValid() || role == domain.RoleAnonymous {
		role = domain.RoleUser
	}

	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	user := &domain.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, apperrors.MapError(err)
	}

	if s.dispatcher != nil {
		_ = s.dispatcher.Publish(ctx, events.Event{
			ID:   uuid.NewString(),
			Type: events.EventUserRegistered,
			Actor: events.Actor{
				UserID:   user.ID,
				Username: user.Username,
				Role:     user.Role,
			},
			Timestamp: time.Now(),
			Payload: events.UserRegisteredPayload{
				Email:    user.Email,
				Username: user.Username,
			},
		})
	}
	return user, nil
}

// Login authenticates credentials and issues an access/refresh pair,
// persisting the refresh record. Missing users and bad passwords are
// indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.User, *TokenPair, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, apperrors.NewAuthenticationFailed()
		}
		return nil, nil, apperrors.MapError(err)
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, nil, apperrors.NewAuthenticationFailed()
	}

	pair, err := s.issuePair(ctx, user.Email, user.Role)
	if err != nil {
		return nil, nil, err
	}
	return user, pair, nil
}

// Reissue exchanges a valid, stored refresh token for a new pair, rotating
// the stored record. A token already consumed by a prior reissue is rejected
// even when cryptographically still valid.
func (s *AuthService) Reissue(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if refreshToken == "" {
		return nil, apperrors.NewUnauthorized("refresh token missing")
	}

	claims, err := s.tokenMgr.ParseCategory(refreshToken, domain.TokenCategoryRefresh)
	switch {
	case errors.Is(err, auth.ErrTokenExpired):
		return nil, apperrors.NewTokenExpired("refresh token expired")
	case errors.Is(err, auth.ErrTokenTypeMismatch):
		return nil, apperrors.NewTokenTypeMismatch("not a refresh token")
	case err != nil:
		return nil, apperrors.NewTokenInvalid("invalid refresh token")
	}

	exists, err := s.refresh.Exists(ctx, refreshToken)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if !exists {
		return nil, apperrors.NewTokenRevoked("unknown refresh token")
	}

	role, err := domain.ParseRole(claims.Role)
	if err != nil {
		return nil, apperrors.NewTokenInvalid("invalid refresh token")
	}

	accessToken, accessExp, err := s.tokenMgr.Issue(domain.TokenCategoryAccess, claims.Email, role, s.accessTTL)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	newRefresh, refreshExp, err := s.tokenMgr.Issue(domain.TokenCategoryRefresh, claims.Email, role, s.refreshTTL)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	record := domain.RefreshRecord{
		Email:      claims.Email,
		Token:      newRefresh,
		Role:       role,
		Expiration: refreshExp.Format(time.RFC3339),
	}
	if err := s.refresh.Rotate(ctx, refreshToken, record, s.refreshTTL); err != nil {
		return nil, apperrors.MapError(err)
	}

	return &TokenPair{
		AccessToken:      accessToken,
		AccessExpiresAt:  accessExp,
		RefreshToken:     newRefresh,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// Logout deletes the refresh record. Invalid, expired or never-issued tokens
// are a no-op: logging out twice must not fail.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	claims, err := s.tokenMgr.ParseCategory(refreshToken, domain.TokenCategoryRefresh)
	if err != nil || claims == nil {
		return nil
	}
	if err := s.refresh.Delete(ctx, refreshToken); err != nil {
		return apperrors.MapError(err)
	}
	return nil
}

// RefreshTTL exposes the refresh lifetime for cookie max-age computation.
func (s *AuthService) RefreshTTL() time.Duration {
	return s.refreshTTL
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

func (s *AuthService) issuePair(ctx context.Context, email string, role domain.Role) (*TokenPair, error) {
	accessToken, accessExp, err := s.tokenMgr.Issue(domain.TokenCategoryAccess, email, role, s.accessTTL)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	refreshToken, refreshExp, err := s.tokenMgr.Issue(domain.TokenCategoryRefresh, email, role, s.refreshTTL)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	record := domain.RefreshRecord{
		Email:      email,
		Token:      refreshToken,
		Role:       role,
		Expiration: refreshExp.Format(time.RFC3339),
	}
	if err := s.refresh.Save(ctx, record, s.refreshTTL); err != nil {
		return nil, apperrors.MapError(err)
	}

	return &TokenPair{
		AccessToken:      accessToken,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refreshToken,
		RefreshExpiresAt: refreshExp,
	}, nil
}
