package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/peoplelab/hr-kb/internal/domain"
	"github.com/peoplelab/hr-kb/internal/port"
)

const qnaColumns = `q.id, q.question_title, q.question_details, COALESCE(q.answer, ''), COALESCE(q.answer_basis, ''),
	q.view_count, q.last_viewed_at, q.created_by_id, COALESCE(u.full_name, ''), COALESCE(q.updated_by_id::text, ''),
	q.created_at, q.updated_at`

func scanQnA(scanner interface{ Scan(...interface{}) error }) (*domain.QnAEntry, error) {
	var q domain.QnAEntry
	var lastViewed sql.NullTime
	err := scanner.Scan(
		&q.ID, &q.QuestionTitle, &q.QuestionDetails, &q.Answer, &q.AnswerBasis,
		&q.ViewCount, &lastViewed, &q.CreatedByID, &q.CreatedByName, &q.UpdatedByID,
		&q.CreatedAt, &q.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if lastViewed.Valid {
		q.LastViewedAt = &lastViewed.Time
	}
	return &q, nil
}

// CreateQnA inserts a Q&A entry with its category and tag links in one
// transaction. Tags are connected by name, created on demand.
func (s *PostgresStore) CreateQnA(ctx context.Context, entry *domain.QnAEntry, categoryIDs, tagNames []string) (*domain.QnAEntry, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	query := `INSERT INTO qna_entries (question_title, question_details, answer, answer_basis, created_by_id)
	          VALUES ($1, $2, $3, $4, $5)
	          RETURNING id`

	var id string
	err = tx.QueryRowContext(ctx, query,
		entry.QuestionTitle, entry.QuestionDetails, entry.Answer, entry.AnswerBasis, entry.CreatedByID,
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("create qna: %w", err)
	}

	if err := s.writeQnARelations(ctx, tx, id, categoryIDs, tagNames); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit qna: %w", err)
	}

	return s.GetQnAByID(ctx, id)
}

// GetQnAByID returns a non-deleted Q&A entry with its relations.
func (s *PostgresStore) GetQnAByID(ctx context.Context, id string) (*domain.QnAEntry, error) {
	query := `SELECT ` + qnaColumns + `
	          FROM qna_entries q
	          LEFT JOIN users u ON u.id = q.created_by_id
	          WHERE q.id = $1 AND q.is_deleted = false`

	entry, err := scanQnA(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, port.ErrQnANotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get qna: %w", err)
	}

	entries := []domain.QnAEntry{*entry}
	if err := s.loadQnARelations(ctx, entries); err != nil {
		return nil, err
	}
	return &entries[0], nil
}

// UpdateQnA rewrites a Q&A entry's text fields and, when category or tag
// lists are provided, replaces its relation links atomically.
func (s *PostgresStore) UpdateQnA(ctx context.Context, entry *domain.QnAEntry, categoryIDs, tagNames []string) (*domain.QnAEntry, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	query := `UPDATE qna_entries
	          SET question_title = $1, question_details = $2, answer = $3, answer_basis = $4,
	              updated_by_id = $5, updated_at = NOW()
	          WHERE id = $6 AND is_deleted = false
	          RETURNING id`

	var id string
	err = tx.QueryRowContext(ctx, query,
		entry.QuestionTitle, entry.QuestionDetails, entry.Answer, entry.AnswerBasis,
		entry.UpdatedByID, entry.ID,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, port.ErrQnANotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update qna: %w", err)
	}

	if categoryIDs != nil {
		if _, err := tx.ExecContext(ctx, `DELETE FROM qna_categories WHERE qna_id = $1`, id); err != nil {
			return nil, fmt.Errorf("clear qna categories: %w", err)
		}
	}
	if tagNames != nil {
		if _, err := tx.ExecContext(ctx, `DELETE FROM qna_tags WHERE qna_id = $1`, id); err != nil {
			return nil, fmt.Errorf("clear qna tags: %w", err)
		}
	}
	if err := s.writeQnARelations(ctx, tx, id, categoryIDs, tagNames); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit qna update: %w", err)
	}

	return s.GetQnAByID(ctx, id)
}

// SoftDeleteQnA marks an entry deleted. The row stays for audit.
func (s *PostgresStore) SoftDeleteQnA(ctx context.Context, id, userID string) error {
	query := `UPDATE qna_entries
	          SET is_deleted = true, deleted_at = NOW(), deleted_by_id = $2
	          WHERE id = $1 AND is_deleted = false`

	res, err := s.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return fmt.Errorf("delete qna: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return port.ErrQnANotFound
	}
	return nil
}

// IncrementQnAViewCount bumps the view counter on a detail fetch. This is
// a side effect of the get-by-id path, never of search.
func (s *PostgresStore) IncrementQnAViewCount(ctx context.Context, id string) error {
	query := `UPDATE qna_entries
	          SET view_count = view_count + 1, last_viewed_at = NOW()
	          WHERE id = $1`
	_, err := s.db.ExecContext(ctx, query, id)
	return err
}

// ListQnA returns a filtered page of non-deleted entries, newest first,
// with the total filtered count.
func (s *PostgresStore) ListQnA(ctx context.Context, f port.QnAFilter, offset, limit int) ([]domain.QnAEntry, int, error) {
	where := ` WHERE q.is_deleted = false`
	args := []interface{}{}
	argIdx := 1

	if f.CategoryID != "" {
		where += fmt.Sprintf(` AND EXISTS (SELECT 1 FROM qna_categories qc WHERE qc.qna_id = q.id AND qc.category_id = $%d)`, argIdx)
		args = append(args, f.CategoryID)
		argIdx++
	}
	if f.TagName != "" {
		where += fmt.Sprintf(` AND EXISTS (SELECT 1 FROM qna_tags qt JOIN tags t ON t.id = qt.tag_id WHERE qt.qna_id = q.id AND t.name = $%d)`, argIdx)
		args = append(args, f.TagName)
		argIdx++
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM qna_entries q` + where
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count qna: %w", err)
	}

	query := `SELECT ` + qnaColumns + `
	          FROM qna_entries q
	          LEFT JOIN users u ON u.id = q.created_by_id` + where +
		fmt.Sprintf(` ORDER BY q.created_at DESC OFFSET $%d LIMIT $%d`, argIdx, argIdx+1)
	args = append(args, offset, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list qna: %w", err)
	}
	defer rows.Close()

	var entries []domain.QnAEntry
	for rows.Next() {
		entry, err := scanQnA(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan qna: %w", err)
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	if err := s.loadQnARelations(ctx, entries); err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

// QnAKeywordMatches returns ids of non-deleted entries whose title,
// details or answer contain the query, case-insensitively.
func (s *PostgresStore) QnAKeywordMatches(ctx context.Context, query string, limit int) ([]string, error) {
	pattern := "%" + query + "%"
	sqlQuery := `SELECT id FROM qna_entries
	             WHERE is_deleted = false
	               AND (question_title ILIKE $1 OR question_details ILIKE $1 OR answer ILIKE $1)
	             ORDER BY created_at DESC
	             LIMIT $2`

	rows, err := s.db.QueryContext(ctx, sqlQuery, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("qna keyword search: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan qna id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// FilterQnAIDs narrows a candidate id set to entries matching the filter.
func (s *PostgresStore) FilterQnAIDs(ctx context.Context, ids []string, f port.QnAFilter) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `SELECT q.id FROM qna_entries q WHERE q.id = ANY($1) AND q.is_deleted = false`
	args := []interface{}{pq.Array(ids)}
	argIdx := 2

	if f.CategoryID != "" {
		query += fmt.Sprintf(` AND EXISTS (SELECT 1 FROM qna_categories qc WHERE qc.qna_id = q.id AND qc.category_id = $%d)`, argIdx)
		args = append(args, f.CategoryID)
		argIdx++
	}
	if f.TagName != "" {
		query += fmt.Sprintf(` AND EXISTS (SELECT 1 FROM qna_tags qt JOIN tags t ON t.id = qt.tag_id WHERE qt.qna_id = q.id AND t.name = $%d)`, argIdx)
		args = append(args, f.TagName)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("filter qna ids: %w", err)
	}
	defer rows.Close()

	var kept []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan qna id: %w", err)
		}
		kept = append(kept, id)
	}
	return kept, rows.Err()
}

// GetQnAByIDs hydrates entries in the exact order of ids.
func (s *PostgresStore) GetQnAByIDs(ctx context.Context, ids []string) ([]domain.QnAEntry, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `SELECT ` + qnaColumns + `
	          FROM qna_entries q
	          LEFT JOIN users u ON u.id = q.created_by_id
	          WHERE q.id = ANY($1) AND q.is_deleted = false`

	rows, err := s.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("get qna by ids: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]domain.QnAEntry, len(ids))
	for rows.Next() {
		entry, err := scanQnA(rows)
		if err != nil {
			return nil, fmt.Errorf("scan qna: %w", err)
		}
		byID[entry.ID] = *entry
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Preserve ranked order; hydration must not re-sort.
	entries := make([]domain.QnAEntry, 0, len(ids))
	for _, id := range ids {
		if entry, ok := byID[id]; ok {
			entries = append(entries, entry)
		}
	}

	if err := s.loadQnARelations(ctx, entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// writeQnARelations inserts category links (connect by id) and tag links
// (connect-or-create by name) inside the caller's transaction.
func (s *PostgresStore) writeQnARelations(ctx context.Context, tx *sql.Tx, qnaID string, categoryIDs, tagNames []string) error {
	for _, catID := range categoryIDs {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO qna_categories (qna_id, category_id) VALUES ($1, $2)`, qnaID, catID)
		if isForeignKeyViolation(err) {
			return fmt.Errorf("category %s: %w", catID, port.ErrCategoryNotFound)
		}
		if err != nil {
			return fmt.Errorf("link category: %w", err)
		}
	}

	for _, name := range tagNames {
		var tagID string
		err := tx.QueryRowContext(ctx,
			`INSERT INTO tags (name) VALUES ($1)
			 ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
			 RETURNING id`, name).Scan(&tagID)
		if err != nil {
			return fmt.Errorf("upsert tag: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO qna_tags (qna_id, tag_id) VALUES ($1, $2)`, qnaID, tagID); err != nil {
			return fmt.Errorf("link tag: %w", err)
		}
	}
	return nil
}

// loadQnARelations attaches categories and tags to the given entries.
func (s *PostgresStore) loadQnARelations(ctx context.Context, entries []domain.QnAEntry) error {
	if len(entries) == 0 {
		return nil
	}

	ids := make([]string, len(entries))
	index := make(map[string]int, len(entries))
	for i := range entries {
		ids[i] = entries[i].ID
		index[entries[i].ID] = i
		entries[i].Categories = []domain.Category{}
		entries[i].Tags = []domain.Tag{}
	}

	catQuery := `SELECT qc.qna_id, c.id, c.name, COALESCE(c.description, ''), COALESCE(c.color, ''), c.display_order, c.is_active, c.created_at
	             FROM qna_categories qc
	             JOIN categories c ON c.id = qc.category_id
	             WHERE qc.qna_id = ANY($1)
	             ORDER BY c.display_order ASC`

	rows, err := s.db.QueryContext(ctx, catQuery, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("load qna categories: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var qnaID string
		var c domain.Category
		if err := rows.Scan(&qnaID, &c.ID, &c.Name, &c.Description, &c.Color, &c.DisplayOrder, &c.IsActive, &c.CreatedAt); err != nil {
			return fmt.Errorf("scan qna category: %w", err)
		}
		i := index[qnaID]
		entries[i].Categories = append(entries[i].Categories, c)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	tagQuery := `SELECT qt.qna_id, t.id, t.name, t.created_at
	             FROM qna_tags qt
	             JOIN tags t ON t.id = qt.tag_id
	             WHERE qt.qna_id = ANY($1)
	             ORDER BY t.name ASC`

	tagRows, err := s.db.QueryContext(ctx, tagQuery, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("load qna tags: %w", err)
	}
	defer tagRows.Close()
	for tagRows.Next() {
		var qnaID string
		var t domain.Tag
		if err := tagRows.Scan(&qnaID, &t.ID, &t.Name, &t.CreatedAt); err != nil {
			return fmt.Errorf("scan qna tag: %w", err)
		}
		i := index[qnaID]
		entries[i].Tags = append(entries[i].Tags, t)
	}
	return tagRows.Err()
}
