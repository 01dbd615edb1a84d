package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/evaclass/eva-api/internal/models"
)

// MessageRepository provides database access for classroom chat messages.
type MessageRepository struct {
	db *sqlx.DB
}

// NewMessageRepository creates a new instance of MessageRepository.
func NewMessageRepository(db *sqlx.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// Create inserts an accepted chat message.
func (r *MessageRepository) Create(ctx context.Context, message *models.ChatMessage) error {
	if message.ID == "" {
		message.ID = uuid.NewString()
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO chat_messages (id, class_id, author_id, text, category, created_at) VALUES (:id, :class_id, :author_id, :text, :category, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, message); err != nil {
		return fmt.Errorf("create message: %w", err)
	}
	return nil
}

// FindByID returns a message by identifier.
func (r *MessageRepository) FindByID(ctx context.Context, id string) (*models.ChatMessage, error) {
	const query = `SELECT id, class_id, author_id, text, category, created_at FROM chat_messages WHERE id = $1 LIMIT 1`
	var message models.ChatMessage
	if err := r.db.GetContext(ctx, &message, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find message by id: %w", err)
	}
	return &message, nil
}

// List returns messages for a class based on filters with total count.
func (r *MessageRepository) List(ctx context.Context, filter models.MessageFilter) ([]models.ChatMessage, int, error) {
	baseQuery := `FROM chat_messages WHERE class_id = $1`
	args := []interface{}{filter.ClassID}
	var conditions []string

	if filter.Category != nil {
		conditions = append(conditions, fmt.Sprintf("category = $%d", len(args)+1))
		args = append(args, *filter.Category)
	}
	if filter.Since != nil {
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", len(args)+1))
		args = append(args, *filter.Since)
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 50
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT id, class_id, author_id, text, category, created_at %s ORDER BY created_at DESC LIMIT %d OFFSET %d", baseQuery, pageSize, offset)

	var messages []models.ChatMessage
	if err := r.db.SelectContext(ctx, &messages, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list messages: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count messages: %w", err)
	}

	return messages, total, nil
}

// Delete removes a chat message.
func (r *MessageRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM chat_messages WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	return nil
}
