package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/noticeboard/internal/api/http/handlers"
	"github.com/spec-kit/noticeboard/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Posts          *handlers.PostsHandler
	Comments       *handlers.CommentsHandler
	Admin          *handlers.AdminHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes. The auth middleware runs on every
// request; unauthenticated requests pass through and are rejected by the
// per-route guards where required.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Use(cfg.AuthMiddleware.Handle)

	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	app.Post("/join", cfg.Auth.Join)
	app.Post("/login", cfg.Auth.Login)
	app.Post("/reissue", cfg.Auth.Reissue)
	app.Post("/logout", cfg.Auth.Logout)

	boards := app.Group("/boards")
	boards.Get("", cfg.Posts.List)
	boards.Get("/:postId", cfg.Posts.Get)
	boards.Get("/:postId/comments", cfg.Posts.ListComments)
	boards.Post("", auth.RequireAuthenticated(), cfg.Posts.Create)
	boards.Put("/:postId", auth.RequireAuthenticated(), cfg.Posts.Update)
	boards.Delete("/:postId", auth.RequireAuthenticated(), cfg.Posts.Delete)

	comments := app.Group("/comments", auth.RequireAuthenticated())
	comments.Post("/:postId", cfg.Comments.Create)
	comments.Put("/:commentId", cfg.Comments.Update)
	comments.Delete("/:commentId", cfg.Comments.Delete)

	admin := app.Group("/admin", auth.RequireAdmin())
	admin.Get("", cfg.Admin.Index)
	admin.Get("/metrics", cfg.Admin.Metrics)
}
