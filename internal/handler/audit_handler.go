package handler

import (
	"github.com/gofiber/fiber/v3"
	"github.com/peoplelab/hr-kb/internal/adapter/store"
	"github.com/peoplelab/hr-kb/internal/domain"
	"github.com/peoplelab/hr-kb/internal/middleware"
)

// AuditHandler handles audit log endpoints.
type AuditHandler struct {
	store *store.PostgresStore
}

// NewAuditHandler creates a new audit handler.
func NewAuditHandler(s *store.PostgresStore) *AuditHandler {
	return &AuditHandler{store: s}
}

// Register sets up audit routes. Access is admin-only.
func (h *AuditHandler) Register(api fiber.Router) {
	admins := middleware.RequireRole(domain.RoleAdmin)

	audit := api.Group("/admin/audit")
	audit.Get("/logs", h.ListLogs, admins)
}

// ListLogs returns audit logs with optional filtering.
func (h *AuditHandler) ListLogs(c fiber.Ctx) error {
	limit := queryInt(c, "limit", 100)
	action := c.Query("action", "")

	logs, err := h.store.ListAuditLogs(c.Context(), limit, action)
	if err != nil {
		return respondError(c, err)
	}
	if logs == nil {
		logs = []domain.AuditLog{}
	}

	return c.JSON(fiber.Map{
		"logs":  logs,
		"count": len(logs),
	})
}
