package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/evaclass/eva-api/internal/models"
	appErrors "github.com/evaclass/eva-api/pkg/errors"
)

type stubScheduleRepo struct {
	schedules map[string]*models.ClassSchedule
	byClass   []models.ClassSchedule
	deleted   []string
}

func newStubScheduleRepo() *stubScheduleRepo {
	return &stubScheduleRepo{schedules: make(map[string]*models.ClassSchedule)}
}

func (s *stubScheduleRepo) Create(ctx context.Context, schedule *models.ClassSchedule) error {
	schedule.ID = "s1"
	s.schedules[schedule.ID] = schedule
	s.byClass = append(s.byClass, *schedule)
	return nil
}

func (s *stubScheduleRepo) FindByID(ctx context.Context, id string) (*models.ClassSchedule, error) {
	if sc, ok := s.schedules[id]; ok {
		return sc, nil
	}
	return nil, sql.ErrNoRows
}

func (s *stubScheduleRepo) ListByClass(ctx context.Context, classID string) ([]models.ClassSchedule, error) {
	return s.byClass, nil
}

func (s *stubScheduleRepo) Update(ctx context.Context, schedule *models.ClassSchedule) error {
	s.schedules[schedule.ID] = schedule
	return nil
}

func (s *stubScheduleRepo) Delete(ctx context.Context, id string) error {
	delete(s.schedules, id)
	s.deleted = append(s.deleted, id)
	return nil
}

func newScheduleServiceForTest(repo *stubScheduleRepo, audit *stubAuditRepo, clock Clock) *ScheduleService {
	classes := &stubClassRepo{class: &models.Class{ID: "c1", InstructorID: "inst"}}
	return NewScheduleService(repo, classes, audit, validator.New(), zap.NewNop(), clock)
}

func TestScheduleServiceCreate(t *testing.T) {
	repo := newStubScheduleRepo()
	audit := &stubAuditRepo{}
	svc := newScheduleServiceForTest(repo, audit, nil)

	schedule, err := svc.Create(context.Background(), "c1", "inst", models.RoleInstructor, models.UpsertScheduleRequest{
		DayOfWeek: 1,
		StartTime: "09:00",
		EndTime:   "10:15",
	})
	require.NoError(t, err)
	assert.Equal(t, "c1", schedule.ClassID)
	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionScheduleCreate, audit.logs[0].Action)
}

func TestScheduleServiceCreateRejectsMalformedTime(t *testing.T) {
	svc := newScheduleServiceForTest(newStubScheduleRepo(), &stubAuditRepo{}, nil)

	cases := []models.UpsertScheduleRequest{
		{DayOfWeek: 1, StartTime: "9am", EndTime: "10:15"},
		{DayOfWeek: 1, StartTime: "09:00", EndTime: "25:00"},
		{DayOfWeek: 1, StartTime: "09:60", EndTime: "10:15"},
	}
	for _, req := range cases {
		_, err := svc.Create(context.Background(), "c1", "inst", models.RoleInstructor, req)
		require.Error(t, err)
		assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	}
}

func TestScheduleServiceCreateRejectsInvertedWindow(t *testing.T) {
	svc := newScheduleServiceForTest(newStubScheduleRepo(), &stubAuditRepo{}, nil)

	_, err := svc.Create(context.Background(), "c1", "inst", models.RoleInstructor, models.UpsertScheduleRequest{
		DayOfWeek: 1,
		StartTime: "10:15",
		EndTime:   "09:00",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestScheduleServiceCreateRequiresInstructor(t *testing.T) {
	svc := newScheduleServiceForTest(newStubScheduleRepo(), &stubAuditRepo{}, nil)

	_, err := svc.Create(context.Background(), "c1", "stu", models.RoleStudent, models.UpsertScheduleRequest{
		DayOfWeek: 1,
		StartTime: "09:00",
		EndTime:   "10:15",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestScheduleServiceAvailability(t *testing.T) {
	repo := newStubScheduleRepo()
	clock := func() time.Time {
		return time.Date(2026, time.March, 2, 9, 30, 0, 0, time.UTC)
	}
	svc := newScheduleServiceForTest(repo, &stubAuditRepo{}, clock)

	_, err := svc.Create(context.Background(), "c1", "inst", models.RoleInstructor, models.UpsertScheduleRequest{
		DayOfWeek: 1,
		StartTime: "09:00",
		EndTime:   "10:15",
	})
	require.NoError(t, err)

	result, err := svc.Availability(context.Background(), "c1")
	require.NoError(t, err)
	assert.True(t, result.Available)
}

func TestScheduleServiceDeleteAudited(t *testing.T) {
	repo := newStubScheduleRepo()
	audit := &stubAuditRepo{}
	svc := newScheduleServiceForTest(repo, audit, nil)

	_, err := svc.Create(context.Background(), "c1", "inst", models.RoleInstructor, models.UpsertScheduleRequest{
		DayOfWeek: 2,
		StartTime: "14:00",
		EndTime:   "15:30",
	})
	require.NoError(t, err)

	err = svc.Delete(context.Background(), "c1", "s1", "inst", models.RoleInstructor)
	require.NoError(t, err)
	assert.Contains(t, repo.deleted, "s1")
}
