package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/evaclass/eva-api/internal/models"
)

// ScheduleRepository provides database access for class chat windows.
type ScheduleRepository struct {
	db *sqlx.DB
}

// NewScheduleRepository creates a new instance of ScheduleRepository.
func NewScheduleRepository(db *sqlx.DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

// Create inserts a new schedule window.
func (r *ScheduleRepository) Create(ctx context.Context, schedule *models.ClassSchedule) error {
	if schedule.ID == "" {
		schedule.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if schedule.CreatedAt.IsZero() {
		schedule.CreatedAt = now
	}
	schedule.UpdatedAt = now

	const query = `INSERT INTO class_schedules (id, class_id, day_of_week, start_time, end_time, created_at, updated_at) VALUES (:id, :class_id, :day_of_week, :start_time, :end_time, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, schedule); err != nil {
		return fmt.Errorf("create schedule: %w", err)
	}
	return nil
}

// FindByID returns a schedule window by identifier.
func (r *ScheduleRepository) FindByID(ctx context.Context, id string) (*models.ClassSchedule, error) {
	const query = `SELECT id, class_id, day_of_week, start_time, end_time, created_at, updated_at FROM class_schedules WHERE id = $1 LIMIT 1`
	var schedule models.ClassSchedule
	if err := r.db.GetContext(ctx, &schedule, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find schedule by id: %w", err)
	}
	return &schedule, nil
}

// ListByClass returns all schedule windows for a class ordered by day and start time.
func (r *ScheduleRepository) ListByClass(ctx context.Context, classID string) ([]models.ClassSchedule, error) {
	const query = `SELECT id, class_id, day_of_week, start_time, end_time, created_at, updated_at FROM class_schedules WHERE class_id = $1 ORDER BY day_of_week ASC, start_time ASC`
	var schedules []models.ClassSchedule
	if err := r.db.SelectContext(ctx, &schedules, query, classID); err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	return schedules, nil
}

// Update updates a schedule window.
func (r *ScheduleRepository) Update(ctx context.Context, schedule *models.ClassSchedule) error {
	schedule.UpdatedAt = time.Now().UTC()
	const query = `UPDATE class_schedules SET day_of_week = :day_of_week, start_time = :start_time, end_time = :end_time, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, schedule); err != nil {
		return fmt.Errorf("update schedule: %w", err)
	}
	return nil
}

// Delete removes a schedule window.
func (r *ScheduleRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM class_schedules WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete schedule: %w", err)
	}
	return nil
}
