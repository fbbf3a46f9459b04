package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/peoplelab/hr-kb/internal/port"
)

// VectorStore handles pgvector-specific operations over the embedding
// columns of the searchable entities. The cosine-distance operator stays
// behind this type; ranking code never sees SQL.
type VectorStore struct {
	store     *PostgresStore
	dimension int
}

// NewVectorStore creates a vector store backed by the given Postgres store.
func NewVectorStore(store *PostgresStore, dimension int) *VectorStore {
	return &VectorStore{store: store, dimension: dimension}
}

// Dimension returns the fixed vector length of the embedding columns.
func (v *VectorStore) Dimension() int {
	return v.dimension
}

// tableFor maps an entity name to its table. Only whitelisted tables are
// ever interpolated into SQL.
func tableFor(entity string) (string, error) {
	switch entity {
	case port.EntityQnA:
		return "qna_entries", nil
	case port.EntityManual:
		return "manuals", nil
	default:
		return "", fmt.Errorf("unknown vector entity %q", entity)
	}
}

// NearestNeighbors ranks non-deleted rows with a non-null embedding by
// cosine similarity to the query vector. Rows at or below the threshold
// are excluded (strict >), at most limit hits are returned, similarity
// descending.
func (v *VectorStore) NearestNeighbors(ctx context.Context, entity string, vector []float32, threshold float64, limit int) ([]port.VectorHit, error) {
	table, err := tableFor(entity)
	if err != nil {
		return nil, err
	}

	vectorStr := vectorToString(vector)
	query := fmt.Sprintf(`SELECT id, 1 - (embedding <=> $1::vector) AS similarity
	          FROM %s
	          WHERE is_deleted = false
	            AND embedding IS NOT NULL
	            AND 1 - (embedding <=> $1::vector) > $2
	          ORDER BY similarity DESC
	          LIMIT $3`, table)

	rows, err := v.store.db.QueryContext(ctx, query, vectorStr, threshold, limit)
	if err != nil {
		return nil, fmt.Errorf("nearest neighbors: %w", err)
	}
	defer rows.Close()

	var hits []port.VectorHit
	for rows.Next() {
		var h port.VectorHit
		if err := rows.Scan(&h.ID, &h.Similarity); err != nil {
			return nil, fmt.Errorf("scan neighbor: %w", err)
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// UpdateEmbedding overwrites the embedding column for one row. Last
// writer wins; concurrent maintenance and content writes are acceptable.
func (v *VectorStore) UpdateEmbedding(ctx context.Context, entity, id string, vector []float32) error {
	table, err := tableFor(entity)
	if err != nil {
		return err
	}
	if v.dimension > 0 && len(vector) != v.dimension {
		return fmt.Errorf("update embedding: vector has %d dimensions, column expects %d", len(vector), v.dimension)
	}

	query := fmt.Sprintf(`UPDATE %s SET embedding = $1::vector WHERE id = $2`, table)
	if _, err := v.store.db.ExecContext(ctx, query, vectorToString(vector), id); err != nil {
		return fmt.Errorf("update embedding: %w", err)
	}
	return nil
}

// MissingEmbeddings returns ids of non-deleted rows whose embedding
// column is null, oldest first so backfill repairs the longest-stale
// rows before newer ones.
func (v *VectorStore) MissingEmbeddings(ctx context.Context, entity string) ([]string, error) {
	table, err := tableFor(entity)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT id FROM %s
	          WHERE is_deleted = false AND embedding IS NULL
	          ORDER BY created_at ASC`, table)

	return v.queryIDs(ctx, query)
}

// AllIDs returns ids of every non-deleted row, for full regeneration
// (e.g. after an embedding model or dimensionality change).
func (v *VectorStore) AllIDs(ctx context.Context, entity string) ([]string, error) {
	table, err := tableFor(entity)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT id FROM %s
	          WHERE is_deleted = false
	          ORDER BY created_at ASC`, table)

	return v.queryIDs(ctx, query)
}

func (v *VectorStore) queryIDs(ctx context.Context, query string) ([]string, error) {
	rows, err := v.store.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// vectorToString converts a float32 slice to pgvector string format: [0.1,0.2,0.3].
func vectorToString(v []float32) string {
	parts := make([]string, len(v))
	for i, val := range v {
		parts[i] = fmt.Sprintf("%g", val)
	}
	return "[" + strings.Join(parts, ",") + "]"
}
