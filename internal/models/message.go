package models

import (
	"time"

	"github.com/evaclass/eva-api/internal/policy"
)

// ChatMessage is an accepted classroom chat message. AuthorID is excluded
// from JSON so messages stay anonymous toward other students.
type ChatMessage struct {
	ID        string          `db:"id" json:"id"`
	ClassID   string          `db:"class_id" json:"class_id"`
	AuthorID  string          `db:"author_id" json:"-"`
	Text      string          `db:"text" json:"text"`
	Category  policy.Category `db:"category" json:"category"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

// SendMessageRequest is the payload to post a chat message.
type SendMessageRequest struct {
	Text string `json:"text" validate:"required,max=2000"`
}

// MessageFilter describes query params for listing chat messages.
type MessageFilter struct {
	ClassID  string
	Category *policy.Category
	Since    *time.Time
	Page     int
	PageSize int
}
