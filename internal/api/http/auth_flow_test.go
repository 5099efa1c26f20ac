package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/noticeboard/internal/api/http"
	"github.com/spec-kit/noticeboard/internal/api/http/handlers"
	"github.com/spec-kit/noticeboard/internal/auth"
	"github.com/spec-kit/noticeboard/internal/config"
	"github.com/spec-kit/noticeboard/internal/domain"
	"github.com/spec-kit/noticeboard/internal/events"
	"github.com/spec-kit/noticeboard/internal/observability"
	"github.com/spec-kit/noticeboard/internal/repository"
	"github.com/spec-kit/noticeboard/internal/service"
)

type memoryUserRepo struct {
	mu      sync.Mutex
	byEmail map[string]*domain.User
	nextID  int
}

func newMemoryUserRepo() *memoryUserRepo {
	return &memoryUserRepo{byEmail: make(map[string]*domain.User)}
}

func (f *memoryUserRepo) Create(_ context.Context, user *domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	user.ID = "user-" + strconv.Itoa(f.nextID)
	clone := *user
	f.byEmail[user.Email] = &clone
	return nil
}

func (f *memoryUserRepo) Update(_ context.Context, user *domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byEmail[user.Email]; !ok {
		return pgx.ErrNoRows
	}
	clone := *user
	f.byEmail[user.Email] = &clone
	return nil
}

func (f *memoryUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, user := range f.byEmail {
		if user.ID == id {
			clone := *user
			return &clone, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *memoryUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.byEmail[email]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *user
	return &clone, nil
}

func (f *memoryUserRepo) ExistsByEmail(_ context.Context, email string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.byEmail[email]
	return ok, nil
}

type memoryPostRepo struct {
	mu     sync.Mutex
	posts  map[string]*domain.Post
	nextID int
}

func newMemoryPostRepo() *memoryPostRepo {
	return &memoryPostRepo{posts: make(map[string]*domain.Post)}
}

func (f *memoryPostRepo) Create(_ context.Context, post *domain.Post) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	post.ID = "post-" + strconv.Itoa(f.nextID)
	clone := *post
	f.posts[post.ID] = &clone
	return nil
}

func (f *memoryPostRepo) Update(_ context.Context, post *domain.Post) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.posts[post.ID]; !ok {
		return pgx.ErrNoRows
	}
	clone := *post
	f.posts[post.ID] = &clone
	return nil
}

func (f *memoryPostRepo) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.posts[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(f.posts, id)
	return nil
}

func (f *memoryPostRepo) GetByID(_ context.Context, id string) (*domain.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	post, ok := f.posts[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *post
	return &clone, nil
}

func (f *memoryPostRepo) List(_ context.Context, _ repository.PostFilter) ([]domain.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []domain.Post
	for _, post := range f.posts {
		result = append(result, *post)
	}
	return result, nil
}

func (f *memoryPostRepo) Count(_ context.Context, _ repository.PostFilter) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.posts)), nil
}

type memoryCommentRepo struct {
	mu       sync.Mutex
	comments map[string]*domain.Comment
	nextID   int
}

func newMemoryCommentRepo() *memoryCommentRepo {
	return &memoryCommentRepo{comments: make(map[string]*domain.Comment)}
}

func (f *memoryCommentRepo) Create(_ context.Context, comment *domain.Comment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	comment.ID = "comment-" + strconv.Itoa(f.nextID)
	clone := *comment
	f.comments[comment.ID] = &clone
	return nil
}

func (f *memoryCommentRepo) Update(_ context.Context, comment *domain.Comment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.comments[comment.ID]; !ok {
		return pgx.ErrNoRows
	}
	clone := *comment
	f.comments[comment.ID] = &clone
	return nil
}

func (f *memoryCommentRepo) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.comments[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(f.comments, id)
	return nil
}

func (f *memoryCommentRepo) GetByID(_ context.Context, id string) (*domain.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	comment, ok := f.comments[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *comment
	return &clone, nil
}

func (f *memoryCommentRepo) ListByPost(_ context.Context, postID string, _, _ int) ([]domain.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []domain.Comment
	for _, comment := range f.comments {
		if comment.PostID == postID {
			result = append(result, *comment)
		}
	}
	return result, nil
}

func (f *memoryCommentRepo) CountByPost(_ context.Context, postID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var total int64
	for _, comment := range f.comments {
		if comment.PostID == postID {
			total++
		}
	}
	return total, nil
}

type testApp struct {
	app     *fiber.App
	authSvc *service.AuthService
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := config.Config{
		Auth: config.AuthConfig{
			JWTSecret:             "test-secret",
			AccessTokenTTLMinutes: 10,
			RefreshTokenTTLHours:  24,
			BcryptCost:            4,
		},
		CORS: config.CORSConfig{AllowedOrigin: "http://localhost:3000"},
	}

	userRepo := newMemoryUserRepo()
	postRepo := newMemoryPostRepo()
	commentRepo := newMemoryCommentRepo()
	dispatcher := events.NewInMemoryDispatcher()

	authSvc := service.NewAuthService(cfg, service.AuthDependencies{
		UserRepo:     userRepo,
		RefreshStore: repository.NewRefreshStore(client),
	})
	postSvc := service.NewPostService(postRepo, dispatcher)
	commentSvc := service.NewCommentService(commentRepo, postRepo, dispatcher)

	logger := zap.NewNop()
	metrics := observability.NewMetrics()

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, metrics, 0, cfg.CORS)
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Auth:           handlers.NewAuthHandler(authSvc),
		Posts:          handlers.NewPostsHandler(postSvc, commentSvc),
		Comments:       handlers.NewCommentsHandler(commentSvc),
		Admin:          handlers.NewAdminHandler(metrics),
		Health:         handlers.NewHealthHandler("noticeboard", "test", nil, nil),
		AuthMiddleware: auth.NewAuthMiddleware(authSvc.TokenManager(), userRepo),
	})

	return &testApp{app: app, authSvc: authSvc}
}

func (ta *testApp) request(t *testing.T, method, path string, body any, mutate func(*http.Request)) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if mutate != nil {
		mutate(req)
	}

	resp, err := ta.app.Test(req, 5000)
	require.NoError(t, err)
	return resp
}

func (ta *testApp) join(t *testing.T, username, email, password, role string) {
	t.Helper()
	resp := ta.request(t, http.MethodPost, "/join", fiber.Map{
		"username": username,
		"email":    email,
		"password": password,
		"role":     role,
	}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
}

func (ta *testApp) login(t *testing.T, email, password string) (accessToken string, refreshCookie *http.Cookie) {
	t.Helper()
	resp := ta.request(t, http.MethodPost, "/login", fiber.Map{
		"email":    email,
		"password": password,
	}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	accessToken = resp.Header.Get("access")
	require.NotEmpty(t, accessToken)

	for _, cookie := range resp.Cookies() {
		if cookie.Name == "refresh" {
			refreshCookie = cookie
		}
	}
	require.NotNil(t, refreshCookie)
	return accessToken, refreshCookie
}

func errorCode(t *testing.T, resp *http.Response) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body.Error.Code
}

func TestLoginSetsAccessHeaderAndRefreshCookie(t *testing.T) {
	ta := newTestApp(t)
	ta.join(t, "seok", "seok@gmail.com", "1234", "")

	_, refreshCookie := ta.login(t, "seok@gmail.com", "1234")
	assert.True(t, refreshCookie.HttpOnly, "refresh cookie must be HttpOnly")
	assert.Equal(t, 86400, refreshCookie.MaxAge)
}

func TestLoginBadCredentials(t *testing.T) {
	ta := newTestApp(t)
	ta.join(t, "seok", "seok@gmail.com", "1234", "")

	resp := ta.request(t, http.MethodPost, "/login", fiber.Map{
		"email":    "seok@gmail.com",
		"password": "wrong",
	}, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "AUTHENTICATION_FAILED", errorCode(t, resp))
	assert.Empty(t, resp.Header.Get("access"))
}

func TestProtectedRouteLifecycle(t *testing.T) {
	ta := newTestApp(t)
	ta.join(t, "seok", "seok@gmail.com", "1234", "")
	accessToken, refreshCookie := ta.login(t, "seok@gmail.com", "1234")

	createPost := func(token string) *http.Response {
		return ta.request(t, http.MethodPost, "/boards", fiber.Map{
			"title":   "hello",
			"content": "world",
		}, func(req *http.Request) {
			req.Header.Set("access", token)
		})
	}

	// valid access token reaches the protected route
	resp := createPost(accessToken)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	// an expired access token is rejected with the expiry-specific code
	expired, _, err := ta.authSvc.TokenManager().Issue(domain.TokenCategoryAccess, "seok@gmail.com", domain.RoleUser, -time.Minute)
	require.NoError(t, err)
	resp = createPost(expired)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "TOKEN_EXPIRED", errorCode(t, resp))

	// reissue with the refresh cookie yields a fresh pair
	resp = ta.request(t, http.MethodPost, "/reissue", nil, func(req *http.Request) {
		req.AddCookie(refreshCookie)
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	newAccess := resp.Header.Get("access")
	require.NotEmpty(t, newAccess)

	// the new access token works
	resp = createPost(newAccess)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	// the consumed refresh token is single-use
	resp = ta.request(t, http.MethodPost, "/reissue", nil, func(req *http.Request) {
		req.AddCookie(refreshCookie)
	})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "TOKEN_REVOKED", errorCode(t, resp))
}

func TestProtectedRouteWithoutToken(t *testing.T) {
	ta := newTestApp(t)

	resp := ta.request(t, http.MethodPost, "/boards", fiber.Map{
		"title":   "hello",
		"content": "world",
	}, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// public listing stays open to anonymous callers
	resp = ta.request(t, http.MethodGet, "/boards", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRefreshTokenRejectedAsAccessToken(t *testing.T) {
	ta := newTestApp(t)
	ta.join(t, "seok", "seok@gmail.com", "1234", "")
	_, refreshCookie := ta.login(t, "seok@gmail.com", "1234")

	resp := ta.request(t, http.MethodPost, "/boards", fiber.Map{
		"title":   "hello",
		"content": "world",
	}, func(req *http.Request) {
		req.Header.Set("access", refreshCookie.Value)
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "TOKEN_INVALID", errorCode(t, resp))
}

func TestReissueValidationFailures(t *testing.T) {
	ta := newTestApp(t)
	ta.join(t, "seok", "seok@gmail.com", "1234", "")
	accessToken, _ := ta.login(t, "seok@gmail.com", "1234")

	// no cookie at all
	resp := ta.request(t, http.MethodPost, "/reissue", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// wrong token category in the cookie
	resp = ta.request(t, http.MethodPost, "/reissue", nil, func(req *http.Request) {
		req.AddCookie(&http.Cookie{Name: "refresh", Value: accessToken})
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "TOKEN_TYPE_MISMATCH", errorCode(t, resp))
}

func TestLogoutIsIdempotentOverHTTP(t *testing.T) {
	ta := newTestApp(t)
	ta.join(t, "seok", "seok@gmail.com", "1234", "")
	_, refreshCookie := ta.login(t, "seok@gmail.com", "1234")

	logout := func() *http.Response {
		return ta.request(t, http.MethodPost, "/logout", nil, func(req *http.Request) {
			req.AddCookie(refreshCookie)
		})
	}

	resp := logout()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	for _, cookie := range resp.Cookies() {
		if cookie.Name == "refresh" {
			assert.LessOrEqual(t, cookie.MaxAge, 0, "cookie must be cleared")
		}
	}

	// logging out twice must not fail
	resp = logout()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// nor does logging out with no cookie at all
	resp = ta.request(t, http.MethodPost, "/logout", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// the revoked refresh token can no longer be exchanged
	resp = ta.request(t, http.MethodPost, "/reissue", nil, func(req *http.Request) {
		req.AddCookie(refreshCookie)
	})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "TOKEN_REVOKED", errorCode(t, resp))
}

func TestAdminRoute(t *testing.T) {
	ta := newTestApp(t)
	ta.join(t, "seok", "seok@gmail.com", "1234", "")
	ta.join(t, "boss", "boss@gmail.com", "1234", "ROLE_ADMIN")

	userToken, _ := ta.login(t, "seok@gmail.com", "1234")
	adminToken, _ := ta.login(t, "boss@gmail.com", "1234")

	resp := ta.request(t, http.MethodGet, "/admin", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = ta.request(t, http.MethodGet, "/admin", nil, func(req *http.Request) {
		req.Header.Set("access", userToken)
	})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = ta.request(t, http.MethodGet, "/admin", nil, func(req *http.Request) {
		req.Header.Set("access", adminToken)
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = ta.request(t, http.MethodGet, "/admin/metrics", nil, func(req *http.Request) {
		req.Header.Set("access", adminToken)
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestDeletedUserTokenIsAnonymous(t *testing.T) {
	ta := newTestApp(t)
	ta.join(t, "seok", "seok@gmail.com", "1234", "")
	_, _ = ta.login(t, "seok@gmail.com", "1234")

	// a syntactically valid access token for an account that no longer
	// exists passes through as anonymous and fails the guard, not the filter
	token, _, err := ta.authSvc.TokenManager().Issue(domain.TokenCategoryAccess, "ghost@gmail.com", domain.RoleUser, time.Minute)
	require.NoError(t, err)

	resp := ta.request(t, http.MethodPost, "/boards", fiber.Map{
		"title":   "hello",
		"content": "world",
	}, func(req *http.Request) {
		req.Header.Set("access", token)
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "UNAUTHORIZED", errorCode(t, resp))
}
