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

// ClassRepository provides database access for classes and enrollments.
type ClassRepository struct {
	db *sqlx.DB
}

// NewClassRepository creates a new instance of ClassRepository.
func NewClassRepository(db *sqlx.DB) *ClassRepository {
	return &ClassRepository{db: db}
}

// Create inserts a new class.
func (r *ClassRepository) Create(ctx context.Context, class *models.Class) error {
	if class.ID == "" {
		class.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if class.CreatedAt.IsZero() {
		class.CreatedAt = now
	}
	class.UpdatedAt = now

	const query = `INSERT INTO classes (id, name, course_code, instructor_id, join_code, created_at, updated_at) VALUES (:id, :name, :course_code, :instructor_id, :join_code, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, class); err != nil {
		return fmt.Errorf("create class: %w", err)
	}
	return nil
}

// FindByID returns a class by identifier.
func (r *ClassRepository) FindByID(ctx context.Context, id string) (*models.Class, error) {
	const query = `SELECT id, name, course_code, instructor_id, join_code, created_at, updated_at FROM classes WHERE id = $1 LIMIT 1`
	var class models.Class
	if err := r.db.GetContext(ctx, &class, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find class by id: %w", err)
	}
	return &class, nil
}

// FindByJoinCode returns a class by its join code.
func (r *ClassRepository) FindByJoinCode(ctx context.Context, joinCode string) (*models.Class, error) {
	const query = `SELECT id, name, course_code, instructor_id, join_code, created_at, updated_at FROM classes WHERE join_code = $1 LIMIT 1`
	var class models.Class
	if err := r.db.GetContext(ctx, &class, query, joinCode); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find class by join code: %w", err)
	}
	return &class, nil
}

// List returns classes based on filters with total count.
func (r *ClassRepository) List(ctx context.Context, filter models.ClassFilter) ([]models.Class, int, error) {
	baseQuery := `FROM classes WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.InstructorID != "" {
		conditions = append(conditions, fmt.Sprintf("instructor_id = $%d", len(args)+1))
		args = append(args, filter.InstructorID)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(name) LIKE $%d OR LOWER(course_code) LIKE $%d)", len(args)+1, len(args)+1))
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

	listQuery := fmt.Sprintf("SELECT id, name, course_code, instructor_id, join_code, created_at, updated_at %s ORDER BY created_at DESC LIMIT %d OFFSET %d", baseQuery, pageSize, offset)

	var classes []models.Class
	if err := r.db.SelectContext(ctx, &classes, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list classes: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count classes: %w", err)
	}

	return classes, total, nil
}

// ListForStudent returns the classes a student is enrolled in.
func (r *ClassRepository) ListForStudent(ctx context.Context, userID string) ([]models.Class, error) {
	const query = `SELECT c.id, c.name, c.course_code, c.instructor_id, c.join_code, c.created_at, c.updated_at
        FROM classes c
        JOIN enrollments e ON e.class_id = c.id
        WHERE e.user_id = $1
        ORDER BY c.created_at DESC`
	var classes []models.Class
	if err := r.db.SelectContext(ctx, &classes, query, userID); err != nil {
		return nil, fmt.Errorf("list classes for student: %w", err)
	}
	return classes, nil
}

// Enroll links a student to a class.
func (r *ClassRepository) Enroll(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	if enrollment.CreatedAt.IsZero() {
		enrollment.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO enrollments (id, class_id, user_id, created_at) VALUES (:id, :class_id, :user_id, :created_at) ON CONFLICT (class_id, user_id) DO NOTHING`
	if _, err := r.db.NamedExecContext(ctx, query, enrollment); err != nil {
		return fmt.Errorf("enroll student: %w", err)
	}
	return nil
}

// IsEnrolled reports whether a user is enrolled in a class.
func (r *ClassRepository) IsEnrolled(ctx context.Context, classID, userID string) (bool, error) {
	const query = `SELECT COUNT(*) FROM enrollments WHERE class_id = $1 AND user_id = $2`
	var count int
	if err := r.db.GetContext(ctx, &count, query, classID, userID); err != nil {
		return false, fmt.Errorf("check enrollment: %w", err)
	}
	return count > 0, nil
}

// Update updates mutable fields of a class.
func (r *ClassRepository) Update(ctx context.Context, class *models.Class) error {
	class.UpdatedAt = time.Now().UTC()
	const query = `UPDATE classes SET name = :name, course_code = :course_code, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, class); err != nil {
		return fmt.Errorf("update class: %w", err)
	}
	return nil
}

// Delete removes a class and its enrollments.
func (r *ClassRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM enrollments WHERE class_id = $1`, id); err != nil {
		return fmt.Errorf("delete enrollments: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM classes WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete class: %w", err)
	}
	return nil
}
