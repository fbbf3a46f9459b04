package port

import (
	"errors"
	"fmt"
)

// Sentinel errors used across ports.
var (
	// ErrEmbeddingNotConfigured is returned when embedding credentials are
	// missing at first use. Plain filtered listings keep working without them.
	ErrEmbeddingNotConfigured = errors.New("embedding API key not configured")

	ErrQnANotFound      = errors.New("qna entry not found")
	ErrManualNotFound   = errors.New("manual not found")
	ErrVersionNotFound  = errors.New("manual version not found")
	ErrCategoryNotFound = errors.New("category not found")
	ErrUserNotFound     = errors.New("user not found")

	// ErrInvalidInput rejects malformed requests before any store or
	// provider call. Wrap with detail: fmt.Errorf("%w: ...", ErrInvalidInput).
	ErrInvalidInput = errors.New("invalid input")

	// ErrDuplicateName signals a unique-name collision on creation.
	ErrDuplicateName = errors.New("name already exists")
)

// ProviderError wraps a failed call to the external embedding service.
// Callers match it with errors.As.
type ProviderError struct {
	Op  string // "embed"
	Err error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("embedding provider %s: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}
