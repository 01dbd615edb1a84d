package models

import (
	"time"

	"github.com/lib/pq"

	"github.com/evaclass/eva-api/internal/policy"
)

// ForumThread is a persisted forum thread. AuthorID stays out of JSON to
// keep authorship anonymous toward other students.
type ForumThread struct {
	ID        string          `db:"id" json:"id"`
	ClassID   string          `db:"class_id" json:"class_id"`
	AuthorID  string          `db:"author_id" json:"-"`
	Title     string          `db:"title" json:"title"`
	Body      string          `db:"body" json:"body"`
	Category  policy.Category `db:"category" json:"category"`
	Tags      pq.StringArray  `db:"tags" json:"tags"`
	Upvotes   int             `db:"upvotes" json:"upvotes"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
}

// ForumReply is a reply inside a thread; ParentID nests replies one level.
type ForumReply struct {
	ID                  string    `db:"id" json:"id"`
	ThreadID            string    `db:"thread_id" json:"thread_id"`
	ParentID            *string   `db:"parent_id" json:"parent_id,omitempty"`
	AuthorID            string    `db:"author_id" json:"-"`
	Text                string    `db:"text" json:"text"`
	Upvotes             int       `db:"upvotes" json:"upvotes"`
	InstructorValidated bool      `db:"instructor_validated" json:"instructor_validated"`
	CreatedAt           time.Time `db:"created_at" json:"created_at"`
}

// CreateThreadRequest is the payload to open a forum thread.
type CreateThreadRequest struct {
	Title    string   `json:"title" validate:"required,max=200"`
	Body     string   `json:"body" validate:"required,max=5000"`
	Category string   `json:"category,omitempty"`
	Tags     []string `json:"tags,omitempty" validate:"max=5,dive,max=30"`
}

// CreateReplyRequest is the payload to reply inside a thread.
type CreateReplyRequest struct {
	Text     string  `json:"text" validate:"required,max=5000"`
	ParentID *string `json:"parent_id,omitempty"`
}

// ThreadFilter describes query params for listing threads.
type ThreadFilter struct {
	ClassID  string
	Category *policy.Category
	Search   string
	Page     int
	PageSize int
}
