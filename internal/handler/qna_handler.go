package handler

import (
	"strconv"

	"github.com/gofiber/fiber/v3"
	"github.com/peoplelab/hr-kb/internal/domain"
	"github.com/peoplelab/hr-kb/internal/middleware"
	"github.com/peoplelab/hr-kb/internal/port"
	"github.com/peoplelab/hr-kb/internal/service"
)

// QnAHandler handles Q&A CRUD and search endpoints.
type QnAHandler struct {
	qnaService *service.QnAService
}

// NewQnAHandler creates a new Q&A handler.
func NewQnAHandler(qnaService *service.QnAService) *QnAHandler {
	return &QnAHandler{qnaService: qnaService}
}

// Register sets up Q&A routes on a protected group.
func (h *QnAHandler) Register(api fiber.Router) {
	editors := middleware.RequireRole(domain.RoleHRStaff, domain.RoleAdmin)

	qna := api.Group("/qna")
	qna.Get("/", h.Search)
	qna.Post("/", h.Create, editors)
	qna.Get("/:id", h.Get)
	qna.Put("/:id", h.Update, editors)
	qna.Delete("/:id", h.Delete, editors)
}

// Search runs a hybrid search when q is present, or a filtered listing
// otherwise.
func (h *QnAHandler) Search(c fiber.Ctx) error {
	params := service.QnASearchParams{
		Query: c.Query("q"),
		Filter: port.QnAFilter{
			CategoryID: c.Query("category"),
			TagName:    c.Query("tag"),
		},
		Page:  queryInt(c, "page", 1),
		Limit: queryInt(c, "limit", 20),
	}

	entries, meta, err := h.qnaService.Search(c.Context(), params)
	if err != nil {
		return respondError(c, err)
	}
	if entries == nil {
		entries = []domain.QnAEntry{}
	}

	return c.JSON(fiber.Map{"data": entries, "meta": meta})
}

// Create adds a new Q&A entry.
func (h *QnAHandler) Create(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	var body struct {
		QuestionTitle   string   `json:"question_title"`
		QuestionDetails string   `json:"question_details"`
		Answer          string   `json:"answer"`
		AnswerBasis     string   `json:"answer_basis"`
		Categories      []string `json:"categories"`
		Tags            []string `json:"tags"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	entry, err := h.qnaService.Create(c.Context(), service.CreateQnAInput{
		QuestionTitle:   body.QuestionTitle,
		QuestionDetails: body.QuestionDetails,
		Answer:          body.Answer,
		AnswerBasis:     body.AnswerBasis,
		CategoryIDs:     body.Categories,
		TagNames:        body.Tags,
		UserID:          uc.UserID,
	})
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(entry)
}

// Get returns one entry and bumps its view counter.
func (h *QnAHandler) Get(c fiber.Ctx) error {
	entry, err := h.qnaService.Get(c.Context(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(entry)
}

// Update rewrites an entry and its relations.
func (h *QnAHandler) Update(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	var body struct {
		QuestionTitle   string   `json:"question_title"`
		QuestionDetails string   `json:"question_details"`
		Answer          string   `json:"answer"`
		AnswerBasis     string   `json:"answer_basis"`
		Categories      []string `json:"categories"`
		Tags            []string `json:"tags"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	entry, err := h.qnaService.Update(c.Context(), c.Params("id"), service.UpdateQnAInput{
		QuestionTitle:   body.QuestionTitle,
		QuestionDetails: body.QuestionDetails,
		Answer:          body.Answer,
		AnswerBasis:     body.AnswerBasis,
		CategoryIDs:     body.Categories,
		TagNames:        body.Tags,
		UserID:          uc.UserID,
	})
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(entry)
}

// Delete soft-deletes an entry.
func (h *QnAHandler) Delete(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	if err := h.qnaService.Delete(c.Context(), c.Params("id"), uc.UserID); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Q&A deleted successfully"})
}

// queryInt parses an integer query parameter with a fallback.
func queryInt(c fiber.Ctx, key string, fallback int) int {
	v := c.Query(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
