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

// ThreadRepository provides database access for forum threads and replies.
type ThreadRepository struct {
	db *sqlx.DB
}

// NewThreadRepository creates a new instance of ThreadRepository.
func NewThreadRepository(db *sqlx.DB) *ThreadRepository {
	return &ThreadRepository{db: db}
}

// CreateThread inserts a new forum thread.
func (r *ThreadRepository) CreateThread(ctx context.Context, thread *models.ForumThread) error {
	if thread.ID == "" {
		thread.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if thread.CreatedAt.IsZero() {
		thread.CreatedAt = now
	}
	thread.UpdatedAt = now

	const query = `INSERT INTO forum_threads (id, class_id, author_id, title, body, category, tags, upvotes, created_at, updated_at) VALUES (:id, :class_id, :author_id, :title, :body, :category, :tags, :upvotes, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, thread); err != nil {
		return fmt.Errorf("create thread: %w", err)
	}
	return nil
}

// FindThreadByID returns a thread by identifier.
func (r *ThreadRepository) FindThreadByID(ctx context.Context, id string) (*models.ForumThread, error) {
	const query = `SELECT id, class_id, author_id, title, body, category, tags, upvotes, created_at, updated_at FROM forum_threads WHERE id = $1 LIMIT 1`
	var thread models.ForumThread
	if err := r.db.GetContext(ctx, &thread, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find thread by id: %w", err)
	}
	return &thread, nil
}

// ListThreads returns threads for a class based on filters with total count.
func (r *ThreadRepository) ListThreads(ctx context.Context, filter models.ThreadFilter) ([]models.ForumThread, int, error) {
	baseQuery := `FROM forum_threads WHERE class_id = $1`
	args := []interface{}{filter.ClassID}
	var conditions []string

	if filter.Category != nil {
		conditions = append(conditions, fmt.Sprintf("category = $%d", len(args)+1))
		args = append(args, *filter.Category)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(title) LIKE $%d OR LOWER(body) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
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
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT id, class_id, author_id, title, body, category, tags, upvotes, created_at, updated_at %s ORDER BY created_at DESC LIMIT %d OFFSET %d", baseQuery, pageSize, offset)

	var threads []models.ForumThread
	if err := r.db.SelectContext(ctx, &threads, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list threads: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count threads: %w", err)
	}

	return threads, total, nil
}

// UpvoteThread increments the upvote counter and returns the new value.
func (r *ThreadRepository) UpvoteThread(ctx context.Context, id string) (int, error) {
	const query = `UPDATE forum_threads SET upvotes = upvotes + 1, updated_at = $2 WHERE id = $1 RETURNING upvotes`
	var upvotes int
	if err := r.db.GetContext(ctx, &upvotes, query, id, time.Now().UTC()); err != nil {
		if err == sql.ErrNoRows {
			return 0, err
		}
		return 0, fmt.Errorf("upvote thread: %w", err)
	}
	return upvotes, nil
}

// DeleteThread removes a thread and its replies.
func (r *ThreadRepository) DeleteThread(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM forum_replies WHERE thread_id = $1`, id); err != nil {
		return fmt.Errorf("delete thread replies: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM forum_threads WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete thread: %w", err)
	}
	return nil
}

// CreateReply inserts a reply under a thread.
func (r *ThreadRepository) CreateReply(ctx context.Context, reply *models.ForumReply) error {
	if reply.ID == "" {
		reply.ID = uuid.NewString()
	}
	if reply.CreatedAt.IsZero() {
		reply.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO forum_replies (id, thread_id, parent_id, author_id, text, upvotes, instructor_validated, created_at) VALUES (:id, :thread_id, :parent_id, :author_id, :text, :upvotes, :instructor_validated, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, reply); err != nil {
		return fmt.Errorf("create reply: %w", err)
	}
	return nil
}

// FindReplyByID returns a reply by identifier.
func (r *ThreadRepository) FindReplyByID(ctx context.Context, id string) (*models.ForumReply, error) {
	const query = `SELECT id, thread_id, parent_id, author_id, text, upvotes, instructor_validated, created_at FROM forum_replies WHERE id = $1 LIMIT 1`
	var reply models.ForumReply
	if err := r.db.GetContext(ctx, &reply, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find reply by id: %w", err)
	}
	return &reply, nil
}

// ListReplies returns all replies for a thread ordered oldest first.
func (r *ThreadRepository) ListReplies(ctx context.Context, threadID string) ([]models.ForumReply, error) {
	const query = `SELECT id, thread_id, parent_id, author_id, text, upvotes, instructor_validated, created_at FROM forum_replies WHERE thread_id = $1 ORDER BY created_at ASC`
	var replies []models.ForumReply
	if err := r.db.SelectContext(ctx, &replies, query, threadID); err != nil {
		return nil, fmt.Errorf("list replies: %w", err)
	}
	return replies, nil
}

// UpvoteReply increments the reply upvote counter and returns the new value.
func (r *ThreadRepository) UpvoteReply(ctx context.Context, id string) (int, error) {
	const query = `UPDATE forum_replies SET upvotes = upvotes + 1 WHERE id = $1 RETURNING upvotes`
	var upvotes int
	if err := r.db.GetContext(ctx, &upvotes, query, id); err != nil {
		if err == sql.ErrNoRows {
			return 0, err
		}
		return 0, fmt.Errorf("upvote reply: %w", err)
	}
	return upvotes, nil
}

// ValidateReply marks a reply as instructor validated.
func (r *ThreadRepository) ValidateReply(ctx context.Context, id string, validated bool) error {
	const query = `UPDATE forum_replies SET instructor_validated = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, validated); err != nil {
		return fmt.Errorf("validate reply: %w", err)
	}
	return nil
}

// DeleteReply removes a reply and any nested children.
func (r *ThreadRepository) DeleteReply(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM forum_replies WHERE parent_id = $1`, id); err != nil {
		return fmt.Errorf("delete nested replies: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM forum_replies WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete reply: %w", err)
	}
	return nil
}
