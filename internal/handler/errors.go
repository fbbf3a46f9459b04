package handler

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/peoplelab/hr-kb/internal/port"
)

// respondError maps domain errors onto HTTP responses. Provider and
// configuration failures are distinguished from store faults so callers
// can tell a degraded embedding service from a broken database.
func respondError(c fiber.Ctx, err error) error {
	var provErr *port.ProviderError

	switch {
	case errors.Is(err, port.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, port.ErrQnANotFound),
		errors.Is(err, port.ErrManualNotFound),
		errors.Is(err, port.ErrVersionNotFound),
		errors.Is(err, port.ErrCategoryNotFound),
		errors.Is(err, port.ErrUserNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, port.ErrDuplicateName):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, port.ErrEmbeddingNotConfigured):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": err.Error()})
	case errors.As(err, &provErr):
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": err.Error()})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
}
