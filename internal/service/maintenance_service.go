package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/peoplelab/hr-kb/internal/port"
	"golang.org/x/sync/errgroup"
)

// ReindexMode selects which rows a maintenance run touches.
type ReindexMode string

const (
	// ReindexMissing backfills rows whose embedding column is null.
	ReindexMissing ReindexMode = "missing"
	// ReindexAll recomputes every non-deleted row unconditionally, used
	// when migrating to a new embedding model or dimensionality.
	ReindexAll ReindexMode = "all"
)

// ReindexReport summarizes one maintenance run.
type ReindexReport struct {
	Processed int `json:"processed"`
	Failed    int `json:"failed"`
}

// ProgressFunc receives per-entity progress while a run is underway.
type ProgressFunc func(entity string, done, total int)

// MaintenanceService repairs and regenerates embedding columns. Entries
// are processed one at a time and independently: a failure on one is
// logged and the batch continues. The Q&A and Manual batches of one run
// proceed concurrently.
type MaintenanceService struct {
	qnas     port.QnARepository
	manuals  port.ManualRepository
	vectors  port.VectorIndex
	embedder port.EmbeddingProvider
}

// NewMaintenanceService creates a new maintenance service.
func NewMaintenanceService(qnas port.QnARepository, manuals port.ManualRepository, vectors port.VectorIndex, embedder port.EmbeddingProvider) *MaintenanceService {
	return &MaintenanceService{
		qnas:     qnas,
		manuals:  manuals,
		vectors:  vectors,
		embedder: embedder,
	}
}

// Reindex runs one maintenance pass over both entity types. It is
// cancellable between entries via ctx and holds no lock on the store;
// concurrent content writes win on the embedding column.
func (s *MaintenanceService) Reindex(ctx context.Context, mode ReindexMode, onProgress ProgressFunc) (*ReindexReport, error) {
	if mode != ReindexMissing && mode != ReindexAll {
		return nil, fmt.Errorf("%w: unknown reindex mode %q", port.ErrInvalidInput, mode)
	}

	var qnaReport, manualReport ReindexReport

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		r, err := s.reindexEntity(gctx, port.EntityQnA, mode, onProgress)
		qnaReport = r
		return err
	})
	g.Go(func() error {
		r, err := s.reindexEntity(gctx, port.EntityManual, mode, onProgress)
		manualReport = r
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := ReindexReport{
		Processed: qnaReport.Processed + manualReport.Processed,
		Failed:    qnaReport.Failed + manualReport.Failed,
	}
	slog.Info("embedding reindex finished",
		"mode", mode,
		"processed", report.Processed,
		"failed", report.Failed,
	)
	return &report, nil
}

func (s *MaintenanceService) reindexEntity(ctx context.Context, entity string, mode ReindexMode, onProgress ProgressFunc) (ReindexReport, error) {
	var report ReindexReport

	var ids []string
	var err error
	switch mode {
	case ReindexAll:
		ids, err = s.vectors.AllIDs(ctx, entity)
	default:
		ids, err = s.vectors.MissingEmbeddings(ctx, entity)
	}
	if err != nil {
		return report, fmt.Errorf("scan %s ids: %w", entity, err)
	}

	slog.Info("embedding reindex batch", "entity", entity, "mode", mode, "count", len(ids))

	for i, id := range ids {
		select {
		case <-ctx.Done():
			return report, ctx.Err()
		default:
		}

		if err := s.reindexOne(ctx, entity, id); err != nil {
			// Missing credentials fail every entry the same way; abort
			// instead of logging the identical error per row.
			if errors.Is(err, port.ErrEmbeddingNotConfigured) {
				return report, err
			}
			if errors.Is(err, port.ErrQnANotFound) || errors.Is(err, port.ErrManualNotFound) {
				// Deleted mid-batch; nothing to repair.
				continue
			}
			slog.Error("reindex entry failed", "entity", entity, "id", id, "error", err)
			report.Failed++
		} else {
			report.Processed++
		}

		if onProgress != nil {
			onProgress(entity, i+1, len(ids))
		}
	}
	return report, nil
}

func (s *MaintenanceService) reindexOne(ctx context.Context, entity, id string) error {
	var text string
	switch entity {
	case port.EntityQnA:
		entry, err := s.qnas.GetQnAByID(ctx, id)
		if err != nil {
			return err
		}
		text = entry.EmbeddingText()
	case port.EntityManual:
		manual, err := s.manuals.GetManualByID(ctx, id)
		if err != nil {
			return err
		}
		text = manual.EmbeddingText()
	default:
		return fmt.Errorf("unknown entity %q", entity)
	}

	vector, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return err
	}
	return s.vectors.UpdateEmbedding(ctx, entity, id, vector)
}
