package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/evaclass/eva-api/internal/models"
	appErrors "github.com/evaclass/eva-api/pkg/errors"
)

type analyticsRepository interface {
	CategoryCounts(ctx context.Context, classID string, from, to *time.Time) ([]models.CategoryCount, error)
	Timeline(ctx context.Context, classID string, bucket time.Duration, from, to *time.Time) ([]models.TimelinePoint, error)
}

type analyticsClassRepository interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
}

type analyticsCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// AnalyticsConfig tunes caching and spike detection.
type AnalyticsConfig struct {
	CacheTTL       time.Duration
	SpikeThreshold float64
	TimelineBucket time.Duration
}

// AnalyticsService computes per-class question statistics for instructors.
type AnalyticsService struct {
	repo    analyticsRepository
	classes analyticsClassRepository
	cache   analyticsCache
	metrics *MetricsService
	logger  *zap.Logger
	cfg     AnalyticsConfig
}

// NewAnalyticsService constructs an analytics service.
func NewAnalyticsService(repo analyticsRepository, classes analyticsClassRepository, cache analyticsCache, metrics *MetricsService, logger *zap.Logger, cfg AnalyticsConfig) *AnalyticsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if cfg.SpikeThreshold <= 0 {
		cfg.SpikeThreshold = 0.3
	}
	if cfg.TimelineBucket <= 0 {
		cfg.TimelineBucket = 10 * time.Minute
	}
	return &AnalyticsService{repo: repo, classes: classes, cache: cache, metrics: metrics, logger: logger, cfg: cfg}
}

// ClassAnalytics returns the full dashboard payload for a class: the
// per-category breakdown with spike flags plus the question timeline.
// Results are cached until a new message invalidates them.
func (s *AnalyticsService) ClassAnalytics(ctx context.Context, classID, userID string, role models.UserRole, from, to *time.Time) (*models.ClassAnalytics, error) {
	if err := s.ensureInstructor(ctx, classID, userID, role); err != nil {
		return nil, err
	}

	cacheKey := s.cacheKey(classID, from, to)
	if s.cache != nil {
		var cached models.ClassAnalytics
		err := s.cache.Get(ctx, cacheKey, &cached)
		if err == nil {
			s.metrics.RecordCacheOperation(true)
			return &cached, nil
		}
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("analytics cache read", zap.Error(err))
		}
		s.metrics.RecordCacheOperation(false)
	}

	counts, err := s.repo.CategoryCounts(ctx, classID, from, to)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load category counts")
	}
	timeline, err := s.repo.Timeline(ctx, classID, s.cfg.TimelineBucket, from, to)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timeline")
	}

	analytics := &models.ClassAnalytics{
		ClassID:     classID,
		Breakdown:   s.buildBreakdown(counts),
		Timeline:    timeline,
		GeneratedAt: time.Now().UTC(),
	}
	for _, c := range counts {
		analytics.Total += c.Count
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, analytics, s.cfg.CacheTTL); err != nil {
			s.logger.Warn("analytics cache write", zap.Error(err))
		}
	}
	return analytics, nil
}

// buildBreakdown computes percentages and flags categories whose share of
// total questions exceeds the spike threshold. A spiking category is a
// signal that many students are confused by the same kind of thing.
func (s *AnalyticsService) buildBreakdown(counts []models.CategoryCount) []models.CategoryBreakdown {
	total := 0
	for _, c := range counts {
		total += c.Count
	}

	breakdown := make([]models.CategoryBreakdown, 0, len(counts))
	for _, c := range counts {
		entry := models.CategoryBreakdown{
			Category: c.Category,
			Count:    c.Count,
		}
		if total > 0 {
			entry.Percentage = float64(c.Count) / float64(total) * 100
			entry.IsSpike = float64(c.Count)/float64(total) >= s.cfg.SpikeThreshold
		}
		breakdown = append(breakdown, entry)
	}
	return breakdown
}

// SystemMetrics returns the instrumentation snapshot.
func (s *AnalyticsService) SystemMetrics() models.SystemMetrics {
	if s.metrics == nil {
		return models.SystemMetrics{}
	}
	return s.metrics.Snapshot()
}

func (s *AnalyticsService) ensureInstructor(ctx context.Context, classID, userID string, role models.UserRole) error {
	class, err := s.classes.FindByID(ctx, classID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	if role != models.RoleAdmin && class.InstructorID != userID {
		return appErrors.Clone(appErrors.ErrForbidden, "instructor access required")
	}
	return nil
}

func (s *AnalyticsService) cacheKey(classID string, from, to *time.Time) string {
	return fmt.Sprintf("analytics:%s:%s:%s", classID, formatCacheTime(from), formatCacheTime(to))
}

func formatCacheTime(t *time.Time) string {
	if t == nil {
		return "all"
	}
	return t.UTC().Format("20060102T150405")
}
