package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/noticeboard/internal/observability"
)

// AdminHandler serves admin-only endpoints.
type AdminHandler struct {
	metrics *observability.Metrics
}

// NewAdminHandler constructs handler.
func NewAdminHandler(metrics *observability.Metrics) *AdminHandler {
	return &AdminHandler{metrics: metrics}
}

// Index handles GET /admin.
func (h *AdminHandler) Index(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"data": fiber.Map{"message": "admin access granted"},
	})
}

// Metrics handles GET /admin/metrics, reporting per-route request counters.
func (h *AdminHandler) Metrics(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"data": h.metrics.Snapshot(),
	})
}
