package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/peoplelab/hr-kb/internal/domain"
	"github.com/peoplelab/hr-kb/internal/port"
)

// QnAService owns Q&A content writes (with embedding maintenance) and
// hybrid search over Q&A entries.
type QnAService struct {
	store     port.QnARepository
	vectors   port.VectorIndex
	embedder  port.EmbeddingProvider
	threshold float64
	width     int
}

// NewQnAService creates a new Q&A service. threshold is the strict
// similarity cutoff for the vector path; width caps how many candidates
// each retrieval path contributes.
func NewQnAService(store port.QnARepository, vectors port.VectorIndex, embedder port.EmbeddingProvider, threshold float64, width int) *QnAService {
	return &QnAService{
		store:     store,
		vectors:   vectors,
		embedder:  embedder,
		threshold: threshold,
		width:     width,
	}
}

// CreateQnAInput carries the fields for a new Q&A entry.
type CreateQnAInput struct {
	QuestionTitle   string
	QuestionDetails string
	Answer          string
	AnswerBasis     string
	CategoryIDs     []string
	TagNames        []string
	UserID          string
}

// Create persists a new entry with its relations and embedding. The
// embedding is computed first, so a provider failure aborts the call
// before anything is written.
func (s *QnAService) Create(ctx context.Context, in CreateQnAInput) (*domain.QnAEntry, error) {
	if strings.TrimSpace(in.QuestionTitle) == "" {
		return nil, fmt.Errorf("%w: question_title is required", port.ErrInvalidInput)
	}
	if strings.TrimSpace(in.QuestionDetails) == "" {
		return nil, fmt.Errorf("%w: question_details is required", port.ErrInvalidInput)
	}

	entry := &domain.QnAEntry{
		QuestionTitle:   in.QuestionTitle,
		QuestionDetails: in.QuestionDetails,
		Answer:          in.Answer,
		AnswerBasis:     in.AnswerBasis,
		CreatedByID:     in.UserID,
	}

	vector, err := s.embedder.Embed(ctx, entry.EmbeddingText())
	if err != nil {
		return nil, fmt.Errorf("embed qna: %w", err)
	}

	created, err := s.store.CreateQnA(ctx, entry, in.CategoryIDs, in.TagNames)
	if err != nil {
		return nil, err
	}

	// The row is committed at this point; a failed vector write surfaces
	// as a failed create and the backfill job repairs the column later.
	if err := s.vectors.UpdateEmbedding(ctx, port.EntityQnA, created.ID, vector); err != nil {
		return nil, fmt.Errorf("store qna embedding: %w", err)
	}

	return created, nil
}

// Get returns one entry and bumps its view counter. The increment is a
// side effect of the detail fetch, never of search.
func (s *QnAService) Get(ctx context.Context, id string) (*domain.QnAEntry, error) {
	entry, err := s.store.GetQnAByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.store.IncrementQnAViewCount(ctx, id); err != nil {
		slog.Error("increment view count failed", "id", id, "error", err)
	}
	return entry, nil
}

// UpdateQnAInput carries the fields for an entry rewrite. Nil category or
// tag slices leave the existing links untouched.
type UpdateQnAInput struct {
	QuestionTitle   string
	QuestionDetails string
	Answer          string
	AnswerBasis     string
	CategoryIDs     []string
	TagNames        []string
	UserID          string
}

// Update rewrites the entry's text fields and recomputes the whole
// embedding. Any field edit invalidates the vector; there is no
// field-level staleness tracking.
func (s *QnAService) Update(ctx context.Context, id string, in UpdateQnAInput) (*domain.QnAEntry, error) {
	if strings.TrimSpace(in.QuestionTitle) == "" {
		return nil, fmt.Errorf("%w: question_title is required", port.ErrInvalidInput)
	}

	entry := &domain.QnAEntry{
		ID:              id,
		QuestionTitle:   in.QuestionTitle,
		QuestionDetails: in.QuestionDetails,
		Answer:          in.Answer,
		AnswerBasis:     in.AnswerBasis,
		UpdatedByID:     in.UserID,
	}

	vector, err := s.embedder.Embed(ctx, entry.EmbeddingText())
	if err != nil {
		return nil, fmt.Errorf("embed qna: %w", err)
	}

	updated, err := s.store.UpdateQnA(ctx, entry, in.CategoryIDs, in.TagNames)
	if err != nil {
		return nil, err
	}

	if err := s.vectors.UpdateEmbedding(ctx, port.EntityQnA, updated.ID, vector); err != nil {
		return nil, fmt.Errorf("store qna embedding: %w", err)
	}

	return updated, nil
}

// Delete soft-deletes an entry, removing it from all search and listing
// paths while keeping the row for audit.
func (s *QnAService) Delete(ctx context.Context, id, userID string) error {
	return s.store.SoftDeleteQnA(ctx, id, userID)
}

// QnASearchParams holds one search request.
type QnASearchParams struct {
	Query  string
	Filter port.QnAFilter
	Page   int
	Limit  int
}

// Search runs the hybrid engine for a non-empty query, or a plain
// filtered listing otherwise. A provider failure fails the whole search;
// keyword-only results are never silently returned for a scored query.
func (s *QnAService) Search(ctx context.Context, p QnASearchParams) ([]domain.QnAEntry, Meta, error) {
	if err := validatePaging(p.Page, p.Limit); err != nil {
		return nil, Meta{}, err
	}

	query := strings.TrimSpace(p.Query)
	if query == "" {
		offset := (p.Page - 1) * p.Limit
		entries, total, err := s.store.ListQnA(ctx, p.Filter, offset, p.Limit)
		if err != nil {
			return nil, Meta{}, err
		}
		return entries, NewMeta(total, p.Page, p.Limit), nil
	}

	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, Meta{}, fmt.Errorf("embed query: %w", err)
	}

	vectorHits, err := s.vectors.NearestNeighbors(ctx, port.EntityQnA, vector, s.threshold, s.width)
	if err != nil {
		return nil, Meta{}, fmt.Errorf("vector search: %w", err)
	}

	keywordIDs, err := s.store.QnAKeywordMatches(ctx, query, s.width)
	if err != nil {
		return nil, Meta{}, fmt.Errorf("keyword search: %w", err)
	}

	ranked := mergeHybrid(vectorHits, keywordIDs)

	if p.Filter != (port.QnAFilter{}) {
		allowed, err := s.store.FilterQnAIDs(ctx, rankedIDs(ranked), p.Filter)
		if err != nil {
			return nil, Meta{}, fmt.Errorf("filter candidates: %w", err)
		}
		ranked = keepIDs(ranked, allowed)
	}

	slog.Info("hybrid qna search",
		"query", query,
		"vector", len(vectorHits),
		"keyword", len(keywordIDs),
		"combined", len(ranked),
	)

	entries, err := s.store.GetQnAByIDs(ctx, pageIDs(ranked, p.Page, p.Limit))
	if err != nil {
		return nil, Meta{}, err
	}
	return entries, NewMeta(len(ranked), p.Page, p.Limit), nil
}
