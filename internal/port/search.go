package port

import (
	"context"
	"time"

	"github.com/peoplelab/hr-kb/internal/domain"
)

// VectorHit is one candidate from the nearest-neighbor path, with its
// cosine similarity (1 - cosine distance) to the query vector.
type VectorHit struct {
	ID         string
	Similarity float64
}

// QnAFilter holds the exact-match constraints for Q&A listings and search.
type QnAFilter struct {
	CategoryID string
	TagName    string
}

// ManualFilter holds the constraints for Manual listings and search.
type ManualFilter struct {
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

// QnARepository is the Content Store boundary for Q&A entries.
type QnARepository interface {
	CreateQnA(ctx context.Context, q *domain.QnAEntry, categoryIDs, tagNames []string) (*domain.QnAEntry, error)
	GetQnAByID(ctx context.Context, id string) (*domain.QnAEntry, error)
	UpdateQnA(ctx context.Context, q *domain.QnAEntry, categoryIDs, tagNames []string) (*domain.QnAEntry, error)
	SoftDeleteQnA(ctx context.Context, id, userID string) error
	IncrementQnAViewCount(ctx context.Context, id string) error

	// ListQnA applies filters only, newest first, with offset/limit pagination.
	ListQnA(ctx context.Context, f QnAFilter, offset, limit int) ([]domain.QnAEntry, int, error)

	// QnAKeywordMatches returns ids of non-deleted entries whose title,
	// details or answer contain the query, case-insensitively, up to limit.
	QnAKeywordMatches(ctx context.Context, query string, limit int) ([]string, error)

	// FilterQnAIDs narrows a candidate id set to those matching the filter.
	FilterQnAIDs(ctx context.Context, ids []string, f QnAFilter) ([]string, error)

	// GetQnAByIDs hydrates entries in the exact order of ids.
	GetQnAByIDs(ctx context.Context, ids []string) ([]domain.QnAEntry, error)
}

// ManualRepository is the Content Store boundary for Manuals and their
// version history.
type ManualRepository interface {
	CreateManual(ctx context.Context, m *domain.Manual, v *domain.ManualVersion) (*domain.Manual, error)
	GetManualByID(ctx context.Context, id string) (*domain.Manual, error)
	UpdateManual(ctx context.Context, m *domain.Manual, v *domain.ManualVersion) (*domain.Manual, error)
	SoftDeleteManual(ctx context.Context, id, userID string) error

	ListManuals(ctx context.Context, f ManualFilter, offset, limit int) ([]domain.Manual, int, error)
	ManualKeywordMatches(ctx context.Context, query string, limit int) ([]string, error)
	FilterManualIDs(ctx context.Context, ids []string, f ManualFilter) ([]string, error)
	GetManualByIDs(ctx context.Context, ids []string) ([]domain.Manual, error)

	ListManualVersions(ctx context.Context, manualID string) ([]domain.ManualVersion, error)
	GetManualVersion(ctx context.Context, versionID string) (*domain.ManualVersion, error)
}

// VectorIndex is the nearest-neighbor boundary over an entity's embedding
// column. The cosine-distance operator stays an implementation detail
// behind this interface.
type VectorIndex interface {
	// NearestNeighbors ranks non-deleted rows with a non-null embedding by
	// similarity to the query vector, keeps those strictly above threshold,
	// and returns at most limit hits in similarity-descending order.
	NearestNeighbors(ctx context.Context, entity string, vector []float32, threshold float64, limit int) ([]VectorHit, error)

	// UpdateEmbedding overwrites the embedding column for one row.
	UpdateEmbedding(ctx context.Context, entity, id string, vector []float32) error

	// MissingEmbeddings returns ids of non-deleted rows with a null
	// embedding column.
	MissingEmbeddings(ctx context.Context, entity string) ([]string, error)

	// AllIDs returns ids of every non-deleted row, for full regeneration.
	AllIDs(ctx context.Context, entity string) ([]string, error)
}

// Vector index entity names.
const (
	EntityQnA    = "qna"
	EntityManual = "manual"
)
