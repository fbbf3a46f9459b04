package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/peoplelab/hr-kb/internal/domain"
	"github.com/peoplelab/hr-kb/internal/port"
)

// ManualService owns manual writes, version history and hybrid search
// over manuals.
type ManualService struct {
	store     port.ManualRepository
	vectors   port.VectorIndex
	embedder  port.EmbeddingProvider
	threshold float64
	width     int
}

// NewManualService creates a new manual service.
func NewManualService(store port.ManualRepository, vectors port.VectorIndex, embedder port.EmbeddingProvider, threshold float64, width int) *ManualService {
	return &ManualService{
		store:     store,
		vectors:   vectors,
		embedder:  embedder,
		threshold: threshold,
		width:     width,
	}
}

// CreateManualInput carries the fields for a new manual.
type CreateManualInput struct {
	Title   string
	Content string
	UserID  string
}

// Create initializes a manual at version 1.0 with one major snapshot.
func (s *ManualService) Create(ctx context.Context, in CreateManualInput) (*domain.Manual, error) {
	if strings.TrimSpace(in.Title) == "" {
		return nil, fmt.Errorf("%w: title is required", port.ErrInvalidInput)
	}
	if strings.TrimSpace(in.Content) == "" {
		return nil, fmt.Errorf("%w: content is required", port.ErrInvalidInput)
	}

	manual := &domain.Manual{
		Title:        in.Title,
		Content:      in.Content,
		VersionMajor: 1,
		VersionMinor: 0,
		CreatedByID:  in.UserID,
	}
	version := &domain.ManualVersion{
		VersionMajor: 1,
		VersionMinor: 0,
		Content:      in.Content,
		ChangeType:   domain.ChangeTypeMajor,
		ChangeLog:    "Initial creation",
		CreatedByID:  in.UserID,
	}

	vector, err := s.embedder.Embed(ctx, manual.EmbeddingText())
	if err != nil {
		return nil, fmt.Errorf("embed manual: %w", err)
	}

	created, err := s.store.CreateManual(ctx, manual, version)
	if err != nil {
		return nil, err
	}

	if err := s.vectors.UpdateEmbedding(ctx, port.EntityManual, created.ID, vector); err != nil {
		return nil, fmt.Errorf("store manual embedding: %w", err)
	}

	return created, nil
}

// Get returns one manual with its version history.
func (s *ManualService) Get(ctx context.Context, id string) (*domain.Manual, error) {
	return s.store.GetManualByID(ctx, id)
}

// UpdateManualInput carries the fields for a manual update. ChangeType
// decides the version bump: major increments major and resets minor,
// anything else increments minor.
type UpdateManualInput struct {
	Title      string
	Content    string
	ChangeType string
	ChangeLog  string
	UserID     string
}

// Update writes a new current state, appends the matching version
// snapshot, and recomputes the embedding from the new text.
func (s *ManualService) Update(ctx context.Context, id string, in UpdateManualInput) (*domain.Manual, error) {
	if strings.TrimSpace(in.Title) == "" {
		return nil, fmt.Errorf("%w: title is required", port.ErrInvalidInput)
	}

	current, err := s.store.GetManualByID(ctx, id)
	if err != nil {
		return nil, err
	}

	newMajor, newMinor := bumpVersion(current.VersionMajor, current.VersionMinor, in.ChangeType)

	changeType := in.ChangeType
	if changeType != domain.ChangeTypeMajor {
		changeType = domain.ChangeTypeMinor
	}
	changeLog := in.ChangeLog
	if changeLog == "" {
		changeLog = "Updated manual"
	}

	manual := &domain.Manual{
		ID:           id,
		Title:        in.Title,
		Content:      in.Content,
		VersionMajor: newMajor,
		VersionMinor: newMinor,
		UpdatedByID:  in.UserID,
	}
	version := &domain.ManualVersion{
		VersionMajor: newMajor,
		VersionMinor: newMinor,
		Content:      in.Content,
		ChangeType:   changeType,
		ChangeLog:    changeLog,
		CreatedByID:  in.UserID,
	}

	vector, err := s.embedder.Embed(ctx, manual.EmbeddingText())
	if err != nil {
		return nil, fmt.Errorf("embed manual: %w", err)
	}

	updated, err := s.store.UpdateManual(ctx, manual, version)
	if err != nil {
		return nil, err
	}

	if err := s.vectors.UpdateEmbedding(ctx, port.EntityManual, updated.ID, vector); err != nil {
		return nil, fmt.Errorf("store manual embedding: %w", err)
	}

	return updated, nil
}

// Revert copies a historical snapshot's content forward as a new major
// version. History is never rewritten: the version sequence only grows.
// The title stays whatever the current state holds; reverting content
// does not revert title.
func (s *ManualService) Revert(ctx context.Context, id, versionID, userID string) (*domain.Manual, error) {
	target, err := s.store.GetManualVersion(ctx, versionID)
	if err != nil {
		return nil, err
	}
	if target.ManualID != id {
		return nil, fmt.Errorf("version %s: %w", versionID, port.ErrVersionNotFound)
	}

	current, err := s.store.GetManualByID(ctx, id)
	if err != nil {
		return nil, err
	}

	// Always a major bump from the current version, not from the target.
	newMajor := current.VersionMajor + 1
	newMinor := 0

	manual := &domain.Manual{
		ID:           id,
		Title:        current.Title,
		Content:      target.Content,
		VersionMajor: newMajor,
		VersionMinor: newMinor,
		UpdatedByID:  userID,
	}
	version := &domain.ManualVersion{
		VersionMajor: newMajor,
		VersionMinor: newMinor,
		Content:      target.Content,
		ChangeType:   domain.ChangeTypeMajor,
		ChangeLog:    fmt.Sprintf("Reverted to v%d.%d", target.VersionMajor, target.VersionMinor),
		CreatedByID:  userID,
	}

	vector, err := s.embedder.Embed(ctx, manual.EmbeddingText())
	if err != nil {
		return nil, fmt.Errorf("embed manual: %w", err)
	}

	reverted, err := s.store.UpdateManual(ctx, manual, version)
	if err != nil {
		return nil, err
	}

	if err := s.vectors.UpdateEmbedding(ctx, port.EntityManual, reverted.ID, vector); err != nil {
		return nil, fmt.Errorf("store manual embedding: %w", err)
	}

	return reverted, nil
}

// Versions lists the append-only snapshot history, newest first. It works
// for soft-deleted manuals too, so the audit trail stays reachable.
func (s *ManualService) Versions(ctx context.Context, id string) ([]domain.ManualVersion, error) {
	return s.store.ListManualVersions(ctx, id)
}

// Delete soft-deletes a manual without truncating its history.
func (s *ManualService) Delete(ctx context.Context, id, userID string) error {
	return s.store.SoftDeleteManual(ctx, id, userID)
}

// ManualSearchParams holds one search request.
type ManualSearchParams struct {
	Query  string
	Filter port.ManualFilter
	Page   int
	Limit  int
}

// Search mirrors the Q&A hybrid engine for manuals.
func (s *ManualService) Search(ctx context.Context, p ManualSearchParams) ([]domain.Manual, Meta, error) {
	if err := validatePaging(p.Page, p.Limit); err != nil {
		return nil, Meta{}, err
	}

	query := strings.TrimSpace(p.Query)
	if query == "" {
		offset := (p.Page - 1) * p.Limit
		manuals, total, err := s.store.ListManuals(ctx, p.Filter, offset, p.Limit)
		if err != nil {
			return nil, Meta{}, err
		}
		return manuals, NewMeta(total, p.Page, p.Limit), nil
	}

	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, Meta{}, fmt.Errorf("embed query: %w", err)
	}

	vectorHits, err := s.vectors.NearestNeighbors(ctx, port.EntityManual, vector, s.threshold, s.width)
	if err != nil {
		return nil, Meta{}, fmt.Errorf("vector search: %w", err)
	}

	keywordIDs, err := s.store.ManualKeywordMatches(ctx, query, s.width)
	if err != nil {
		return nil, Meta{}, fmt.Errorf("keyword search: %w", err)
	}

	ranked := mergeHybrid(vectorHits, keywordIDs)

	if p.Filter.CreatedFrom != nil || p.Filter.CreatedTo != nil {
		allowed, err := s.store.FilterManualIDs(ctx, rankedIDs(ranked), p.Filter)
		if err != nil {
			return nil, Meta{}, fmt.Errorf("filter candidates: %w", err)
		}
		ranked = keepIDs(ranked, allowed)
	}

	slog.Info("hybrid manual search",
		"query", query,
		"vector", len(vectorHits),
		"keyword", len(keywordIDs),
		"combined", len(ranked),
	)

	manuals, err := s.store.GetManualByIDs(ctx, pageIDs(ranked, p.Page, p.Limit))
	if err != nil {
		return nil, Meta{}, err
	}
	return manuals, NewMeta(len(ranked), p.Page, p.Limit), nil
}

// bumpVersion applies the two-part version rule: a major change
// increments major and resets minor; anything else increments minor.
func bumpVersion(major, minor int, changeType string) (int, int) {
	if changeType == domain.ChangeTypeMajor {
		return major + 1, 0
	}
	return major, minor + 1
}
