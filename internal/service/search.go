package service

import (
	"fmt"
	"math"
	"sort"

	"github.com/peoplelab/hr-kb/internal/port"
)

// Hybrid scoring weights. An entry found by both retrieval paths scores
// 0.7*similarity + 0.3; one found by a single path keeps that path's
// contribution alone.
const (
	vectorWeight  = 0.7
	keywordWeight = 0.3
)

// ScoredID is one ranked candidate in the merged hybrid result set.
type ScoredID struct {
	ID    string
	Score float64
}

// mergeHybrid combines the vector and keyword retrieval paths into one
// ranked candidate list. Vector hits contribute their weighted similarity;
// a keyword hit contributes a flat weighted 1. Keyword matches are never
// excluded by any similarity threshold. Ties break by id ascending so
// pagination over the merged set is stable.
func mergeHybrid(vectorHits []port.VectorHit, keywordIDs []string) []ScoredID {
	scores := make(map[string]float64, len(vectorHits)+len(keywordIDs))
	for _, h := range vectorHits {
		scores[h.ID] = vectorWeight * h.Similarity
	}
	for _, id := range keywordIDs {
		scores[id] += keywordWeight
	}

	ranked := make([]ScoredID, 0, len(scores))
	for id, score := range scores {
		ranked = append(ranked, ScoredID{ID: id, Score: score})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].ID < ranked[j].ID
	})
	return ranked
}

// keepIDs filters the ranked list down to the allowed id set, preserving
// rank order. Used to apply exact-match filters to the merged candidates
// before pagination.
func keepIDs(ranked []ScoredID, allowed []string) []ScoredID {
	allowedSet := make(map[string]struct{}, len(allowed))
	for _, id := range allowed {
		allowedSet[id] = struct{}{}
	}

	kept := ranked[:0:0]
	for _, s := range ranked {
		if _, ok := allowedSet[s.ID]; ok {
			kept = append(kept, s)
		}
	}
	return kept
}

// pageIDs slices one page out of the ranked list.
func pageIDs(ranked []ScoredID, page, limit int) []string {
	skip := (page - 1) * limit
	if skip >= len(ranked) {
		return nil
	}
	end := skip + limit
	if end > len(ranked) {
		end = len(ranked)
	}

	ids := make([]string, 0, end-skip)
	for _, s := range ranked[skip:end] {
		ids = append(ids, s.ID)
	}
	return ids
}

func rankedIDs(ranked []ScoredID) []string {
	ids := make([]string, len(ranked))
	for i, s := range ranked {
		ids[i] = s.ID
	}
	return ids
}

// Meta is the pagination envelope returned alongside every result page.
type Meta struct {
	Total      int `json:"total"`
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalPages int `json:"totalPages"`
}

// NewMeta builds the pagination envelope; TotalPages = ceil(total/limit).
func NewMeta(total, page, limit int) Meta {
	return Meta{
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: int(math.Ceil(float64(total) / float64(limit))),
	}
}

// validatePaging rejects malformed pagination before any store or
// provider call.
func validatePaging(page, limit int) error {
	if page < 1 {
		return fmt.Errorf("%w: page must be >= 1", port.ErrInvalidInput)
	}
	if limit < 1 {
		return fmt.Errorf("%w: limit must be > 0", port.ErrInvalidInput)
	}
	return nil
}
