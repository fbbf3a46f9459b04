package domain

import (
	"strings"
	"time"
)

// QnAEntry is a curated question/answer record in the knowledge base.
type QnAEntry struct {
	ID              string     `json:"id"               db:"id"`
	QuestionTitle   string     `json:"question_title"   db:"question_title"`
	QuestionDetails string     `json:"question_details" db:"question_details"`
	Answer          string     `json:"answer"           db:"answer"`
	AnswerBasis     string     `json:"answer_basis"     db:"answer_basis"`
	ViewCount       int        `json:"view_count"       db:"view_count"`
	LastViewedAt    *time.Time `json:"last_viewed_at"   db:"last_viewed_at"`
	IsDeleted       bool       `json:"-"                db:"is_deleted"`
	CreatedByID     string     `json:"created_by_id"    db:"created_by_id"`
	CreatedByName   string     `json:"created_by_name"`
	UpdatedByID     string     `json:"updated_by_id,omitempty" db:"updated_by_id"`
	CreatedAt       time.Time  `json:"created_at"       db:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"       db:"updated_at"`

	Categories []Category `json:"categories"`
	Tags       []Tag      `json:"tags"`
}

// EmbeddingText returns the document submitted to the embedding model:
// title, details and answer joined by single spaces.
func (q *QnAEntry) EmbeddingText() string {
	return strings.TrimSpace(q.QuestionTitle + " " + q.QuestionDetails + " " + q.Answer)
}
