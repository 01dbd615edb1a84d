package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/evaclass/eva-api/internal/models"
)

// AnalyticsRepository exposes read-optimised queries for instructor analytics.
type AnalyticsRepository struct {
	db *sqlx.DB
}

// NewAnalyticsRepository instantiates the repository.
func NewAnalyticsRepository(db *sqlx.DB) *AnalyticsRepository {
	return &AnalyticsRepository{db: db}
}

// CategoryCounts aggregates chat and forum questions per category for a class.
// Forum threads count alongside chat messages since both pass the same
// classification rules.
func (r *AnalyticsRepository) CategoryCounts(ctx context.Context, classID string, from, to *time.Time) ([]models.CategoryCount, error) {
	var builder strings.Builder
	builder.WriteString(`SELECT category, COUNT(*) AS count FROM (
        SELECT category, created_at FROM chat_messages WHERE class_id = $1
        UNION ALL
        SELECT category, created_at FROM forum_threads WHERE class_id = $1
    ) q WHERE 1=1`)
	args := []interface{}{classID}
	if from != nil {
		args = append(args, *from)
		builder.WriteString(fmt.Sprintf(" AND created_at >= $%d", len(args)))
	}
	if to != nil {
		args = append(args, *to)
		builder.WriteString(fmt.Sprintf(" AND created_at <= $%d", len(args)))
	}
	builder.WriteString(" GROUP BY category ORDER BY count DESC")

	var counts []models.CategoryCount
	if err := r.db.SelectContext(ctx, &counts, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("query category counts: %w", err)
	}
	return counts, nil
}

// Timeline buckets question volume for a class into fixed intervals.
func (r *AnalyticsRepository) Timeline(ctx context.Context, classID string, bucket time.Duration, from, to *time.Time) ([]models.TimelinePoint, error) {
	var builder strings.Builder
	builder.WriteString(`SELECT to_timestamp(floor(extract(epoch FROM created_at) / $2) * $2) AS bucket, COUNT(*) AS questions FROM (
        SELECT created_at FROM chat_messages WHERE class_id = $1
        UNION ALL
        SELECT created_at FROM forum_threads WHERE class_id = $1
    ) q WHERE 1=1`)
	args := []interface{}{classID, int(bucket.Seconds())}
	if from != nil {
		args = append(args, *from)
		builder.WriteString(fmt.Sprintf(" AND created_at >= $%d", len(args)))
	}
	if to != nil {
		args = append(args, *to)
		builder.WriteString(fmt.Sprintf(" AND created_at <= $%d", len(args)))
	}
	builder.WriteString(" GROUP BY bucket ORDER BY bucket ASC")

	var points []models.TimelinePoint
	if err := r.db.SelectContext(ctx, &points, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("query timeline: %w", err)
	}
	return points, nil
}
