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

// ExportRepository provides database access for analytics export jobs.
type ExportRepository struct {
	db *sqlx.DB
}

// NewExportRepository creates a new instance of ExportRepository.
func NewExportRepository(db *sqlx.DB) *ExportRepository {
	return &ExportRepository{db: db}
}

// Create inserts a new export job in pending state.
func (r *ExportRepository) Create(ctx context.Context, job *models.ExportJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	if job.Status == "" {
		job.Status = models.ExportStatusPending
	}
	const query = `INSERT INTO export_jobs (id, class_id, format, status, file_path, error, requested_by, created_at, completed_at) VALUES (:id, :class_id, :format, :status, :file_path, :error, :requested_by, :created_at, :completed_at)`
	if _, err := r.db.NamedExecContext(ctx, query, job); err != nil {
		return fmt.Errorf("create export job: %w", err)
	}
	return nil
}

// FindByID returns an export job by identifier.
func (r *ExportRepository) FindByID(ctx context.Context, id string) (*models.ExportJob, error) {
	const query = `SELECT id, class_id, format, status, file_path, error, requested_by, created_at, completed_at FROM export_jobs WHERE id = $1 LIMIT 1`
	var job models.ExportJob
	if err := r.db.GetContext(ctx, &job, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find export job by id: %w", err)
	}
	return &job, nil
}

// UpdateStatus transitions the job state and records the outcome.
func (r *ExportRepository) UpdateStatus(ctx context.Context, id, status, filePath, errMsg string, completedAt *time.Time) error {
	const query = `UPDATE export_jobs SET status = $2, file_path = $3, error = $4, completed_at = $5 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, filePath, errMsg, completedAt); err != nil {
		return fmt.Errorf("update export job status: %w", err)
	}
	return nil
}

// ListByClass returns the export jobs for a class, newest first.
func (r *ExportRepository) ListByClass(ctx context.Context, classID string, limit int) ([]models.ExportJob, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	query := fmt.Sprintf(`SELECT id, class_id, format, status, file_path, error, requested_by, created_at, completed_at FROM export_jobs WHERE class_id = $1 ORDER BY created_at DESC LIMIT %d`, limit)
	var jobs []models.ExportJob
	if err := r.db.SelectContext(ctx, &jobs, query, classID); err != nil {
		return nil, fmt.Errorf("list export jobs: %w", err)
	}
	return jobs, nil
}
