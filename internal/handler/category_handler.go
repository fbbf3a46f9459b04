package handler

import (
	"github.com/gofiber/fiber/v3"
	"github.com/peoplelab/hr-kb/internal/adapter/store"
	"github.com/peoplelab/hr-kb/internal/domain"
	"github.com/peoplelab/hr-kb/internal/middleware"
)

// CategoryHandler serves the category and tag reference endpoints.
type CategoryHandler struct {
	store *store.PostgresStore
}

// NewCategoryHandler creates a new category handler.
func NewCategoryHandler(s *store.PostgresStore) *CategoryHandler {
	return &CategoryHandler{store: s}
}

// Register sets up category and tag routes on a protected group.
func (h *CategoryHandler) Register(api fiber.Router) {
	admins := middleware.RequireRole(domain.RoleAdmin)

	api.Get("/categories", h.ListCategories)
	api.Post("/categories", h.CreateCategory, admins)
	api.Get("/tags", h.ListTags)
}

// ListCategories returns all active categories ordered by display_order.
func (h *CategoryHandler) ListCategories(c fiber.Ctx) error {
	categories, err := h.store.ListCategories(c.Context())
	if err != nil {
		return respondError(c, err)
	}
	if categories == nil {
		categories = []domain.Category{}
	}
	return c.JSON(categories)
}

// CreateCategory adds a new category. Names are unique.
func (h *CategoryHandler) CreateCategory(c fiber.Ctx) error {
	var body struct {
		Name         string `json:"name"`
		Description  string `json:"description"`
		Color        string `json:"color"`
		DisplayOrder int    `json:"display_order"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if body.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "name is required"})
	}

	category, err := h.store.CreateCategory(c.Context(), &domain.Category{
		Name:         body.Name,
		Description:  body.Description,
		Color:        body.Color,
		DisplayOrder: body.DisplayOrder,
	})
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(category)
}

// ListTags returns every known tag.
func (h *CategoryHandler) ListTags(c fiber.Ctx) error {
	tags, err := h.store.ListTags(c.Context())
	if err != nil {
		return respondError(c, err)
	}
	if tags == nil {
		tags = []domain.Tag{}
	}
	return c.JSON(tags)
}
