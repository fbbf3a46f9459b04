package domain

import "time"

// Category groups Q&A entries. Managed by admins, ordered for display.
type Category struct {
	ID           string    `json:"id"            db:"id"`
	Name         string    `json:"name"          db:"name"`
	Description  string    `json:"description"   db:"description"`
	Color        string    `json:"color"         db:"color"`
	DisplayOrder int       `json:"display_order" db:"display_order"`
	IsActive     bool      `json:"is_active"     db:"is_active"`
	CreatedAt    time.Time `json:"created_at"    db:"created_at"`
}

// Tag is a free-form label attached to Q&A entries, created on demand.
type Tag struct {
	ID        string    `json:"id"         db:"id"`
	Name      string    `json:"name"       db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
