package handler

import (
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/peoplelab/hr-kb/internal/domain"
	"github.com/peoplelab/hr-kb/internal/middleware"
	"github.com/peoplelab/hr-kb/internal/port"
	"github.com/peoplelab/hr-kb/internal/service"
)

// ManualHandler handles manual CRUD, search and version history endpoints.
type ManualHandler struct {
	manualService *service.ManualService
}

// NewManualHandler creates a new manual handler.
func NewManualHandler(manualService *service.ManualService) *ManualHandler {
	return &ManualHandler{manualService: manualService}
}

// Register sets up manual routes on a protected group.
func (h *ManualHandler) Register(api fiber.Router) {
	editors := middleware.RequireRole(domain.RoleHRStaff, domain.RoleAdmin)

	manuals := api.Group("/manuals")
	manuals.Get("/", h.Search)
	manuals.Post("/", h.Create, editors)
	manuals.Get("/:id", h.Get)
	manuals.Put("/:id", h.Update, editors)
	manuals.Delete("/:id", h.Delete, editors)
	manuals.Get("/:id/versions", h.Versions)
	manuals.Post("/:id/revert", h.Revert, editors)
}

// Search runs a hybrid search when q is present, or a filtered listing
// otherwise.
func (h *ManualHandler) Search(c fiber.Ctx) error {
	var filter port.ManualFilter
	if from, ok := parseDate(c.Query("start_date")); ok {
		filter.CreatedFrom = &from
	}
	if to, ok := parseDate(c.Query("end_date")); ok {
		filter.CreatedTo = &to
	}

	params := service.ManualSearchParams{
		Query:  c.Query("q"),
		Filter: filter,
		Page:   queryInt(c, "page", 1),
		Limit:  queryInt(c, "limit", 20),
	}

	manuals, meta, err := h.manualService.Search(c.Context(), params)
	if err != nil {
		return respondError(c, err)
	}
	if manuals == nil {
		manuals = []domain.Manual{}
	}

	return c.JSON(fiber.Map{"data": manuals, "meta": meta})
}

// Create adds a new manual at version 1.0.
func (h *ManualHandler) Create(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	var body struct {
		Title   string `json:"title"`
		Content string `json:"content"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	manual, err := h.manualService.Create(c.Context(), service.CreateManualInput{
		Title:   body.Title,
		Content: body.Content,
		UserID:  uc.UserID,
	})
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(manual)
}

// Get returns one manual with its version history.
func (h *ManualHandler) Get(c fiber.Ctx) error {
	manual, err := h.manualService.Get(c.Context(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(manual)
}

// Update writes a new current state and appends a version snapshot.
func (h *ManualHandler) Update(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	var body struct {
		Title      string `json:"title"`
		Content    string `json:"content"`
		ChangeType string `json:"change_type"`
		ChangeLog  string `json:"change_log"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	manual, err := h.manualService.Update(c.Context(), c.Params("id"), service.UpdateManualInput{
		Title:      body.Title,
		Content:    body.Content,
		ChangeType: body.ChangeType,
		ChangeLog:  body.ChangeLog,
		UserID:     uc.UserID,
	})
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(manual)
}

// Delete soft-deletes a manual; its version history stays intact.
func (h *ManualHandler) Delete(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	if err := h.manualService.Delete(c.Context(), c.Params("id"), uc.UserID); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Manual deleted successfully"})
}

// Versions lists the append-only version history, newest first.
func (h *ManualHandler) Versions(c fiber.Ctx) error {
	versions, err := h.manualService.Versions(c.Context(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	if versions == nil {
		versions = []domain.ManualVersion{}
	}
	return c.JSON(versions)
}

// Revert copies a historical snapshot forward as a new major version.
func (h *ManualHandler) Revert(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	var body struct {
		VersionID string `json:"version_id"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	manual, err := h.manualService.Revert(c.Context(), c.Params("id"), body.VersionID, uc.UserID)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(manual)
}

// parseDate accepts either RFC 3339 or plain YYYY-MM-DD values.
func parseDate(v string) (time.Time, bool) {
	if v == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, true
	}
	if t, err := time.Parse("2006-01-02", v); err == nil {
		return t, true
	}
	return time.Time{}, false
}
