package service

import (
	"context"
	"database/sql"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/evaclass/eva-api/internal/models"
	"github.com/evaclass/eva-api/internal/policy"
	appErrors "github.com/evaclass/eva-api/pkg/errors"
	"github.com/evaclass/eva-api/pkg/export"
	"github.com/evaclass/eva-api/pkg/storage"
)

type stubExportRepo struct {
	mu   sync.Mutex
	jobs map[string]*models.ExportJob
}

func newStubExportRepo() *stubExportRepo {
	return &stubExportRepo{jobs: make(map[string]*models.ExportJob)}
}

func (s *stubExportRepo) Create(ctx context.Context, job *models.ExportJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job.ID == "" {
		job.ID = "job-1"
	}
	job.CreatedAt = time.Now().UTC()
	s.jobs[job.ID] = job
	return nil
}

func (s *stubExportRepo) FindByID(ctx context.Context, id string) (*models.ExportJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.jobs[id]; ok {
		copied := *job
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (s *stubExportRepo) UpdateStatus(ctx context.Context, id, status, filePath, errMsg string, completedAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return sql.ErrNoRows
	}
	job.Status = status
	job.FilePath = filePath
	job.Error = errMsg
	job.CompletedAt = completedAt
	return nil
}

func (s *stubExportRepo) ListByClass(ctx context.Context, classID string, limit int) ([]models.ExportJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ExportJob
	for _, job := range s.jobs {
		if job.ClassID == classID {
			out = append(out, *job)
		}
	}
	return out, nil
}

type stubExportAnalytics struct{}

func (stubExportAnalytics) ClassAnalytics(ctx context.Context, classID, userID string, role models.UserRole, from, to *time.Time) (*models.ClassAnalytics, error) {
	return &models.ClassAnalytics{
		ClassID: classID,
		Total:   3,
		Breakdown: []models.CategoryBreakdown{
			{Category: policy.CategoryConceptClarification, Count: 2, Percentage: 66.67, IsSpike: true},
			{Category: policy.CategoryGeneralQuestion, Count: 1, Percentage: 33.33},
		},
		GeneratedAt: time.Now().UTC(),
	}, nil
}

func newExportServiceForTest(t *testing.T, repo *stubExportRepo) (*ExportService, *storage.LocalStorage) {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("secret", time.Hour)
	cfg := ExportConfig{APIPrefix: "/api/v1", ResultTTL: time.Hour, WorkerConcurrency: 1, WorkerRetries: 1}
	svc := NewExportService(repo, stubExportAnalytics{}, &stubAuditRepo{}, store, signer, cfg, zap.NewNop(), export.NewCSVExporter(), export.NewPDFExporter())
	return svc, store
}

func waitForStatus(t *testing.T, repo *stubExportRepo, jobID, status string) *models.ExportJob {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := repo.FindByID(context.Background(), jobID)
		require.NoError(t, err)
		if job.Status == status {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %s never reached status %s", jobID, status)
	return nil
}

func TestExportServiceCSVEndToEnd(t *testing.T) {
	repo := newStubExportRepo()
	svc, store := newExportServiceForTest(t, repo)
	svc.Start(context.Background())
	defer svc.Stop()

	job, err := svc.Request(context.Background(), "c1", models.ExportFormatCSV, "inst", models.RoleInstructor)
	require.NoError(t, err)

	done := waitForStatus(t, repo, job.ID, models.ExportStatusCompleted)
	require.NotEmpty(t, done.FilePath)

	info, err := os.Stat(store.Path(done.FilePath))
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))

	_, download, err := svc.Status(context.Background(), job.ID, "inst", models.RoleInstructor)
	require.NoError(t, err)
	require.NotNil(t, download)
	assert.Contains(t, download.URL, "/exports/download/")

	file, _, err := svc.Open(download.Token)
	require.NoError(t, err)
	require.NoError(t, file.Close())
}

func TestExportServicePDFEndToEnd(t *testing.T) {
	repo := newStubExportRepo()
	svc, _ := newExportServiceForTest(t, repo)
	svc.Start(context.Background())
	defer svc.Stop()

	job, err := svc.Request(context.Background(), "c1", models.ExportFormatPDF, "inst", models.RoleInstructor)
	require.NoError(t, err)

	done := waitForStatus(t, repo, job.ID, models.ExportStatusCompleted)
	assert.NotEmpty(t, done.FilePath)
}

func TestExportServiceRejectsUnknownFormat(t *testing.T) {
	repo := newStubExportRepo()
	svc, _ := newExportServiceForTest(t, repo)
	svc.Start(context.Background())
	defer svc.Stop()

	_, err := svc.Request(context.Background(), "c1", "xlsx", "inst", models.RoleInstructor)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestExportServiceStatusForbiddenForOtherUser(t *testing.T) {
	repo := newStubExportRepo()
	svc, _ := newExportServiceForTest(t, repo)
	svc.Start(context.Background())
	defer svc.Stop()

	job, err := svc.Request(context.Background(), "c1", models.ExportFormatCSV, "inst", models.RoleInstructor)
	require.NoError(t, err)

	_, _, err = svc.Status(context.Background(), job.ID, "someone-else", models.RoleInstructor)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}
