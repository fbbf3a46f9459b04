package domain

import "time"

// User represents an authenticated staff member.
type User struct {
	ID           string    `json:"id"         db:"id"`
	Email        string    `json:"email"      db:"email"`
	FullName     string    `json:"full_name"  db:"full_name"`
	Role         string    `json:"role"       db:"role"`
	PasswordHash string    `json:"-"          db:"password_hash"` // never serialized to JSON
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// Role constants.
const (
	RoleEmployee = "employee"
	RoleHRStaff  = "hr_staff"
	RoleAdmin    = "admin"
)

// UserContext is the authenticated user context injected into request handlers.
type UserContext struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	Role   string `json:"role"`
}
