package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/evaclass/eva-api/internal/models"
	appErrors "github.com/evaclass/eva-api/pkg/errors"
	"github.com/evaclass/eva-api/pkg/export"
	"github.com/evaclass/eva-api/pkg/jobs"
	"github.com/evaclass/eva-api/pkg/storage"
)

type exportRepository interface {
	Create(ctx context.Context, job *models.ExportJob) error
	FindByID(ctx context.Context, id string) (*models.ExportJob, error)
	UpdateStatus(ctx context.Context, id, status, filePath, errMsg string, completedAt *time.Time) error
	ListByClass(ctx context.Context, classID string, limit int) ([]models.ExportJob, error)
}

type exportAnalytics interface {
	ClassAnalytics(ctx context.Context, classID, userID string, role models.UserRole, from, to *time.Time) (*models.ClassAnalytics, error)
}

type exportAuditRepository interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix         string
	ResultTTL         time.Duration
	WorkerConcurrency int
	WorkerRetries     int
}

// DownloadInfo carries the signed link returned once a job completes.
type DownloadInfo struct {
	Token     string    `json:"token"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

type exportPayload struct {
	ClassID     string
	Format      string
	RequestedBy string
	Role        models.UserRole
}

// ExportService generates analytics exports asynchronously: jobs are queued,
// rendered by a worker pool, stored on disk and served via signed URLs.
type ExportService struct {
	repo      exportRepository
	analytics exportAnalytics
	audit     exportAuditRepository
	storage   fileStorage
	signer    *storage.SignedURLSigner
	csv       csvRenderer
	pdf       pdfRenderer
	queue     *jobs.Queue
	logger    *zap.Logger
	cfg       ExportConfig
}

// NewExportService constructs an ExportService and its worker queue.
func NewExportService(repo exportRepository, analytics exportAnalytics, audit exportAuditRepository, store fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	s := &ExportService{
		repo:      repo,
		analytics: analytics,
		audit:     audit,
		storage:   store,
		signer:    signer,
		csv:       csv,
		pdf:       pdf,
		logger:    logger,
		cfg:       cfg,
	}
	s.queue = jobs.NewQueue("exports", s.process, jobs.QueueConfig{
		Workers:    cfg.WorkerConcurrency,
		MaxRetries: cfg.WorkerRetries,
		Logger:     logger,
	})
	return s
}

// Start begins the worker pool.
func (s *ExportService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the worker pool.
func (s *ExportService) Stop() {
	s.queue.Stop()
}

// Request enqueues a new export job for a class.
func (s *ExportService) Request(ctx context.Context, classID, format, userID string, role models.UserRole) (*models.ExportJob, error) {
	if format != models.ExportFormatCSV && format != models.ExportFormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}

	job := &models.ExportJob{
		ClassID:     classID,
		Format:      format,
		Status:      models.ExportStatusPending,
		RequestedBy: userID,
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store export job")
	}

	if err := s.queue.Enqueue(jobs.Job{
		ID:      job.ID,
		Type:    "analytics_export",
		Payload: exportPayload{ClassID: classID, Format: format, RequestedBy: userID, Role: role},
	}); err != nil {
		now := time.Now().UTC()
		_ = s.repo.UpdateStatus(ctx, job.ID, models.ExportStatusFailed, "", "queue unavailable", &now)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue export job")
	}

	if s.audit != nil {
		if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
			UserID:     &userID,
			Action:     models.AuditActionAnalyticsExport,
			Resource:   "export",
			ResourceID: &job.ID,
		}); err != nil {
			s.logger.Warn("record export audit log", zap.Error(err))
		}
	}

	return job, nil
}

// Status returns the job row plus, when completed, a signed download link.
func (s *ExportService) Status(ctx context.Context, jobID, userID string, role models.UserRole) (*models.ExportJob, *DownloadInfo, error) {
	job, err := s.repo.FindByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "export job not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load export job")
	}
	if role != models.RoleAdmin && job.RequestedBy != userID {
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "export job belongs to another user")
	}

	if job.Status != models.ExportStatusCompleted || job.FilePath == "" {
		return job, nil, nil
	}

	token, expiresAt, err := s.signer.Generate(job.ID, job.FilePath)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download link")
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}
	return job, &DownloadInfo{
		Token:     token,
		URL:       fmt.Sprintf("%s/exports/download/%s", prefix, token),
		ExpiresAt: expiresAt,
	}, nil
}

// List returns the recent export jobs of a class.
func (s *ExportService) List(ctx context.Context, classID string, limit int) ([]models.ExportJob, error) {
	jobsList, err := s.repo.ListByClass(ctx, classID, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list export jobs")
	}
	return jobsList, nil
}

// Open validates a download token and returns the file handle.
func (s *ExportService) Open(token string) (*os.File, string, error) {
	_, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, "", appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired download link")
	}
	file, err := s.storage.Open(relPath)
	if err != nil {
		return nil, "", appErrors.Clone(appErrors.ErrNotFound, "export file no longer available")
	}
	return file, relPath, nil
}

// Cleanup removes export files older than the result TTL.
func (s *ExportService) Cleanup() ([]string, error) {
	return s.storage.CleanupOlderThan(s.cfg.ResultTTL)
}

func (s *ExportService) process(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(exportPayload)
	if !ok {
		return fmt.Errorf("unexpected payload type %T", job.Payload)
	}

	if err := s.repo.UpdateStatus(ctx, job.ID, models.ExportStatusRunning, "", "", nil); err != nil {
		return err
	}

	analytics, err := s.analytics.ClassAnalytics(ctx, payload.ClassID, payload.RequestedBy, payload.Role, nil, nil)
	if err != nil {
		s.failJob(ctx, job.ID, err)
		return err
	}

	dataset, title := buildAnalyticsDataset(analytics)

	var rendered []byte
	switch payload.Format {
	case models.ExportFormatCSV:
		rendered, err = s.csv.Render(dataset)
	case models.ExportFormatPDF:
		rendered, err = s.pdf.Render(dataset, title)
	default:
		err = fmt.Errorf("unsupported format %s", payload.Format)
	}
	if err != nil {
		s.failJob(ctx, job.ID, err)
		return err
	}

	filename := fmt.Sprintf("%s/%s_%s.%s", payload.ClassID, "analytics", time.Now().UTC().Format("20060102_150405"), payload.Format)
	relPath, err := s.storage.Save(filename, rendered)
	if err != nil {
		s.failJob(ctx, job.ID, err)
		return err
	}

	now := time.Now().UTC()
	if err := s.repo.UpdateStatus(ctx, job.ID, models.ExportStatusCompleted, relPath, "", &now); err != nil {
		return err
	}
	s.logger.Info("export completed",
		zap.String("job_id", job.ID),
		zap.String("class_id", payload.ClassID),
		zap.String("format", payload.Format))
	return nil
}

func (s *ExportService) failJob(ctx context.Context, jobID string, cause error) {
	now := time.Now().UTC()
	if err := s.repo.UpdateStatus(ctx, jobID, models.ExportStatusFailed, "", cause.Error(), &now); err != nil {
		s.logger.Error("mark export failed", zap.String("job_id", jobID), zap.Error(err))
	}
}

func buildAnalyticsDataset(analytics *models.ClassAnalytics) (export.Dataset, string) {
	rows := make([]map[string]string, 0, len(analytics.Breakdown))
	for _, entry := range analytics.Breakdown {
		spike := ""
		if entry.IsSpike {
			spike = "yes"
		}
		rows = append(rows, map[string]string{
			"Category":       string(entry.Category),
			"Questions":      fmt.Sprintf("%d", entry.Count),
			"Percentage (%)": fmt.Sprintf("%.2f", entry.Percentage),
			"Spike":          spike,
		})
	}
	dataset := export.Dataset{
		Headers: []string{"Category", "Questions", "Percentage (%)", "Spike"},
		Rows:    rows,
	}
	title := fmt.Sprintf("Question Analytics %s", analytics.ClassID)
	return dataset, title
}
