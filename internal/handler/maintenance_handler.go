package handler

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/peoplelab/hr-kb/internal/domain"
	"github.com/peoplelab/hr-kb/internal/middleware"
	"github.com/peoplelab/hr-kb/internal/service"
)

// MaintenanceHandler exposes the embedding backfill and regeneration
// endpoints. Runs execute in the background; the returned job id can be
// polled or streamed through the jobs endpoints.
type MaintenanceHandler struct {
	maintenance *service.MaintenanceService
	tracker     *JobTracker
}

// NewMaintenanceHandler creates a new maintenance handler.
func NewMaintenanceHandler(maintenance *service.MaintenanceService, tracker *JobTracker) *MaintenanceHandler {
	return &MaintenanceHandler{maintenance: maintenance, tracker: tracker}
}

// Register sets up admin maintenance routes.
func (h *MaintenanceHandler) Register(api fiber.Router) {
	admins := middleware.RequireRole(domain.RoleAdmin)

	embeddings := api.Group("/admin/embeddings")
	embeddings.Post("/backfill", h.Backfill, admins)
	embeddings.Post("/regenerate", h.Regenerate, admins)
}

// Backfill computes embeddings for rows that do not have one yet.
func (h *MaintenanceHandler) Backfill(c fiber.Ctx) error {
	return h.startRun(c, service.ReindexMissing)
}

// Regenerate recomputes embeddings for every row, for model migrations.
func (h *MaintenanceHandler) Regenerate(c fiber.Ctx) error {
	return h.startRun(c, service.ReindexAll)
}

func (h *MaintenanceHandler) startRun(c fiber.Ctx, mode service.ReindexMode) error {
	jobID := uuid.New().String()
	h.tracker.CreateJob(jobID, string(mode), 0)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()

		var done atomic.Int64
		report, err := h.maintenance.Reindex(ctx, mode, func(entity string, _, total int) {
			h.tracker.UpdateJob(jobID, entity, int(done.Add(1)), 0, "running", "")
		})
		if err != nil {
			slog.Error("embedding reindex failed", "job_id", jobID, "mode", mode, "error", err)
			h.tracker.UpdateJob(jobID, "", int(done.Load()), 0, "error", err.Error())
			return
		}
		h.tracker.UpdateJob(jobID, "", report.Processed, report.Failed, "complete", "")
	}()

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"job_id": jobID,
		"mode":   string(mode),
		"status": "running",
	})
}
