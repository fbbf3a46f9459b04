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

const manualColumns = `m.id, m.title, m.content, m.version_major, m.version_minor,
	m.created_by_id, COALESCE(cu.full_name, ''), COALESCE(m.updated_by_id::text, ''), COALESCE(uu.full_name, ''),
	m.created_at, m.updated_at`

const manualJoins = ` LEFT JOIN users cu ON cu.id = m.created_by_id
	          LEFT JOIN users uu ON uu.id = m.updated_by_id`

func scanManual(scanner interface{ Scan(...interface{}) error }) (*domain.Manual, error) {
	var m domain.Manual
	err := scanner.Scan(
		&m.ID, &m.Title, &m.Content, &m.VersionMajor, &m.VersionMinor,
		&m.CreatedByID, &m.CreatedByName, &m.UpdatedByID, &m.UpdatedByName,
		&m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// CreateManual inserts a manual together with its initial version snapshot
// in one transaction, so the manual's version counters and the newest
// snapshot can never diverge.
func (s *PostgresStore) CreateManual(ctx context.Context, m *domain.Manual, v *domain.ManualVersion) (*domain.Manual, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	query := `INSERT INTO manuals (title, content, version_major, version_minor, created_by_id)
	          VALUES ($1, $2, $3, $4, $5)
	          RETURNING id`

	var id string
	err = tx.QueryRowContext(ctx, query,
		m.Title, m.Content, m.VersionMajor, m.VersionMinor, m.CreatedByID,
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("create manual: %w", err)
	}

	if err := insertManualVersion(ctx, tx, id, v); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit manual: %w", err)
	}

	return s.GetManualByID(ctx, id)
}

// GetManualByID returns a non-deleted manual with its version history,
// newest snapshot first.
func (s *PostgresStore) GetManualByID(ctx context.Context, id string) (*domain.Manual, error) {
	query := `SELECT ` + manualColumns + `
	          FROM manuals m` + manualJoins + `
	          WHERE m.id = $1 AND m.is_deleted = false`

	m, err := scanManual(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, port.ErrManualNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get manual: %w", err)
	}

	versions, err := s.ListManualVersions(ctx, id)
	if err != nil {
		return nil, err
	}
	m.Versions = versions
	return m, nil
}

// UpdateManual writes the new current state and appends the matching
// version snapshot in one transaction.
func (s *PostgresStore) UpdateManual(ctx context.Context, m *domain.Manual, v *domain.ManualVersion) (*domain.Manual, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	query := `UPDATE manuals
	          SET title = $1, content = $2, version_major = $3, version_minor = $4,
	              updated_by_id = $5, updated_at = NOW()
	          WHERE id = $6 AND is_deleted = false
	          RETURNING id`

	var id string
	err = tx.QueryRowContext(ctx, query,
		m.Title, m.Content, m.VersionMajor, m.VersionMinor, m.UpdatedByID, m.ID,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, port.ErrManualNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update manual: %w", err)
	}

	if err := insertManualVersion(ctx, tx, id, v); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit manual update: %w", err)
	}

	return s.GetManualByID(ctx, id)
}

// SoftDeleteManual hides a manual from listings and search. The version
// history is never truncated.
func (s *PostgresStore) SoftDeleteManual(ctx context.Context, id, userID string) error {
	query := `UPDATE manuals
	          SET is_deleted = true, deleted_at = NOW(), deleted_by_id = $2
	          WHERE id = $1 AND is_deleted = false`

	res, err := s.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return fmt.Errorf("delete manual: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return port.ErrManualNotFound
	}
	return nil
}

// ListManuals returns a filtered page of non-deleted manuals ordered by
// last update, with the total filtered count.
func (s *PostgresStore) ListManuals(ctx context.Context, f port.ManualFilter, offset, limit int) ([]domain.Manual, int, error) {
	where := ` WHERE m.is_deleted = false`
	args := []interface{}{}
	argIdx := 1

	if f.CreatedFrom != nil {
		where += fmt.Sprintf(` AND m.created_at >= $%d`, argIdx)
		args = append(args, *f.CreatedFrom)
		argIdx++
	}
	if f.CreatedTo != nil {
		where += fmt.Sprintf(` AND m.created_at <= $%d`, argIdx)
		args = append(args, *f.CreatedTo)
		argIdx++
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM manuals m` + where
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count manuals: %w", err)
	}

	query := `SELECT ` + manualColumns + `
	          FROM manuals m` + manualJoins + where +
		fmt.Sprintf(` ORDER BY m.updated_at DESC OFFSET $%d LIMIT $%d`, argIdx, argIdx+1)
	args = append(args, offset, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list manuals: %w", err)
	}
	defer rows.Close()

	var manuals []domain.Manual
	for rows.Next() {
		m, err := scanManual(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan manual: %w", err)
		}
		manuals = append(manuals, *m)
	}
	return manuals, total, rows.Err()
}

// ManualKeywordMatches returns ids of non-deleted manuals whose title or
// content contain the query, case-insensitively.
func (s *PostgresStore) ManualKeywordMatches(ctx context.Context, query string, limit int) ([]string, error) {
	pattern := "%" + query + "%"
	sqlQuery := `SELECT id FROM manuals
	             WHERE is_deleted = false
	               AND (title ILIKE $1 OR content ILIKE $1)
	             ORDER BY updated_at DESC
	             LIMIT $2`

	rows, err := s.db.QueryContext(ctx, sqlQuery, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("manual keyword search: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan manual id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// FilterManualIDs narrows a candidate id set to manuals matching the filter.
func (s *PostgresStore) FilterManualIDs(ctx context.Context, ids []string, f port.ManualFilter) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `SELECT m.id FROM manuals m WHERE m.id = ANY($1) AND m.is_deleted = false`
	args := []interface{}{pq.Array(ids)}
	argIdx := 2

	if f.CreatedFrom != nil {
		query += fmt.Sprintf(` AND m.created_at >= $%d`, argIdx)
		args = append(args, *f.CreatedFrom)
		argIdx++
	}
	if f.CreatedTo != nil {
		query += fmt.Sprintf(` AND m.created_at <= $%d`, argIdx)
		args = append(args, *f.CreatedTo)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("filter manual ids: %w", err)
	}
	defer rows.Close()

	var kept []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan manual id: %w", err)
		}
		kept = append(kept, id)
	}
	return kept, rows.Err()
}

// GetManualByIDs hydrates manuals in the exact order of ids.
func (s *PostgresStore) GetManualByIDs(ctx context.Context, ids []string) ([]domain.Manual, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `SELECT ` + manualColumns + `
	          FROM manuals m` + manualJoins + `
	          WHERE m.id = ANY($1) AND m.is_deleted = false`

	rows, err := s.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("get manuals by ids: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]domain.Manual, len(ids))
	for rows.Next() {
		m, err := scanManual(rows)
		if err != nil {
			return nil, fmt.Errorf("scan manual: %w", err)
		}
		byID[m.ID] = *m
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Preserve ranked order; hydration must not re-sort.
	manuals := make([]domain.Manual, 0, len(ids))
	for _, id := range ids {
		if m, ok := byID[id]; ok {
			manuals = append(manuals, m)
		}
	}
	return manuals, nil
}

// --- Versions ---

const versionColumns = `v.id, v.manual_id, v.version_major, v.version_minor, v.content,
	v.change_type, COALESCE(v.change_log, ''), v.created_by_id, COALESCE(u.full_name, ''), v.created_at`

// ListManualVersions returns the append-only version history, newest first.
/// Works for soft-deleted manuals too: history stays available for audit.
func (s *PostgresStore) ListManualVersions(ctx context.Context, manualID string) ([]domain.ManualVersion, error) {
	query := `SELECT ` + versionColumns + `
	          FROM manual_versions v
	          LEFT JOIN users u ON u.id = v.created_by_id
	          WHERE v.manual_id = $1
	          ORDER BY v.created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, manualID)
	if err != nil {
		return nil, fmt.Errorf("list manual versions: %w", err)
	}
	defer rows.Close()

	var versions []domain.ManualVersion
	for rows.Next() {
		var v domain.ManualVersion
		if err := rows.Scan(
			&v.ID, &v.ManualID, &v.VersionMajor, &v.VersionMinor, &v.Content,
			&v.ChangeType, &v.ChangeLog, &v.CreatedByID, &v.CreatedByName, &v.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan manual version: %w", err)
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// GetManualVersion returns one immutable snapshot by its id.
func (s *PostgresStore) GetManualVersion(ctx context.Context, versionID string) (*domain.ManualVersion, error) {
	query := `SELECT ` + versionColumns + `
	          FROM manual_versions v
	          LEFT JOIN users u ON u.id = v.created_by_id
	          WHERE v.id = $1`

	var v domain.ManualVersion
	err := s.db.QueryRowContext(ctx, query, versionID).Scan(
		&v.ID, &v.ManualID, &v.VersionMajor, &v.VersionMinor, &v.Content,
		&v.ChangeType, &v.ChangeLog, &v.CreatedByID, &v.CreatedByName, &v.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, port.ErrVersionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get manual version: %w", err)
	}
	return &v, nil
}

func insertManualVersion(ctx context.Context, tx *sql.Tx, manualID string, v *domain.ManualVersion) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO manual_versions (manual_id, version_major, version_minor, content, change_type, change_log, created_by_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		manualID, v.VersionMajor, v.VersionMinor, v.Content, v.ChangeType, v.ChangeLog, v.CreatedByID,
	)
	if err != nil {
		return fmt.Errorf("insert manual version: %w", err)
	}
	return nil
}
