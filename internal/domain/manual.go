package domain

import (
	"fmt"
	"strings"
	"time"
)

// Manual is a versioned process document. Its version counters always
// mirror the newest ManualVersion snapshot.
type Manual struct {
	ID            string    `json:"id"            db:"id"`
	Title         string    `json:"title"         db:"title"`
	Content       string    `json:"content"       db:"content"`
	VersionMajor  int       `json:"version_major" db:"version_major"`
	VersionMinor  int       `json:"version_minor" db:"version_minor"`
	IsDeleted     bool      `json:"-"             db:"is_deleted"`
	CreatedByID   string    `json:"created_by_id" db:"created_by_id"`
	CreatedByName string    `json:"created_by_name"`
	UpdatedByID   string    `json:"updated_by_id,omitempty" db:"updated_by_id"`
	UpdatedByName string    `json:"updated_by_name,omitempty"`
	CreatedAt     time.Time `json:"created_at"    db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"    db:"updated_at"`

	Versions []ManualVersion `json:"versions,omitempty"`
}

// EmbeddingText returns the document submitted to the embedding model.
func (m *Manual) EmbeddingText() string {
	return strings.TrimSpace(m.Title + " " + m.Content)
}

// Version returns the current version as "major.minor".
func (m *Manual) Version() string {
	return fmt.Sprintf("%d.%d", m.VersionMajor, m.VersionMinor)
}

// ManualVersion is an immutable snapshot of a Manual's content at a
// given version number. Created once, never mutated or deleted.
type ManualVersion struct {
	ID            string    `json:"id"             db:"id"`
	ManualID      string    `json:"manual_id"      db:"manual_id"`
	VersionMajor  int       `json:"version_major"  db:"version_major"`
	VersionMinor  int       `json:"version_minor"  db:"version_minor"`
	Content       string    `json:"content"        db:"content"`
	ChangeType    string    `json:"change_type"    db:"change_type"`
	ChangeLog     string    `json:"change_log"     db:"change_log"`
	CreatedByID   string    `json:"created_by_id"  db:"created_by_id"`
	CreatedByName string    `json:"created_by_name"`
	CreatedAt     time.Time `json:"created_at"     db:"created_at"`
}

// Change type constants for ManualVersion.
const (
	ChangeTypeMajor = "major"
	ChangeTypeMinor = "minor"
)
