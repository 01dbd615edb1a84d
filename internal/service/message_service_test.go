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
	"github.com/evaclass/eva-api/internal/policy"
	appErrors "github.com/evaclass/eva-api/pkg/errors"
)

type stubMessageRepo struct {
	created  []*models.ChatMessage
	messages map[string]*models.ChatMessage
	deleted  []string
}

func (s *stubMessageRepo) Create(ctx context.Context, message *models.ChatMessage) error {
	message.ID = "m1"
	message.CreatedAt = time.Now().UTC()
	s.created = append(s.created, message)
	return nil
}

func (s *stubMessageRepo) FindByID(ctx context.Context, id string) (*models.ChatMessage, error) {
	if m, ok := s.messages[id]; ok {
		return m, nil
	}
	return nil, sql.ErrNoRows
}

func (s *stubMessageRepo) List(ctx context.Context, filter models.MessageFilter) ([]models.ChatMessage, int, error) {
	return nil, 0, nil
}

func (s *stubMessageRepo) Delete(ctx context.Context, id string) error {
	s.deleted = append(s.deleted, id)
	return nil
}

type stubClassRepo struct {
	class    *models.Class
	enrolled map[string]bool
}

func (s *stubClassRepo) FindByID(ctx context.Context, id string) (*models.Class, error) {
	if s.class == nil || s.class.ID != id {
		return nil, sql.ErrNoRows
	}
	return s.class, nil
}

func (s *stubClassRepo) IsEnrolled(ctx context.Context, classID, userID string) (bool, error) {
	return s.enrolled[userID], nil
}

type stubScheduleListRepo struct {
	schedules []models.ClassSchedule
}

func (s *stubScheduleListRepo) ListByClass(ctx context.Context, classID string) ([]models.ClassSchedule, error) {
	return s.schedules, nil
}

type stubCache struct {
	patterns []string
}

func (s *stubCache) DeleteByPattern(ctx context.Context, pattern string) error {
	s.patterns = append(s.patterns, pattern)
	return nil
}

// Monday window from 09:00 to 10:15.
var mondayWindow = models.ClassSchedule{ID: "s1", ClassID: "c1", DayOfWeek: 1, StartTime: "09:00", EndTime: "10:15"}

func mondayClock(hour, minute int) Clock {
	return func() time.Time {
		return time.Date(2026, time.March, 2, hour, minute, 0, 0, time.UTC)
	}
}

func newMessageServiceForTest(repo *stubMessageRepo, schedules []models.ClassSchedule, clock Clock) (*MessageService, *stubCache) {
	classes := &stubClassRepo{
		class:    &models.Class{ID: "c1", InstructorID: "inst"},
		enrolled: map[string]bool{"stu": true},
	}
	cache := &stubCache{}
	svc := NewMessageService(repo, classes, &stubScheduleListRepo{schedules: schedules}, cache, nil, NewMetricsService(), validator.New(), zap.NewNop(), clock)
	return svc, cache
}

func TestMessageServiceSendAcceptedAndCategorized(t *testing.T) {
	repo := &stubMessageRepo{}
	svc, cache := newMessageServiceForTest(repo, []models.ClassSchedule{mondayWindow}, mondayClock(9, 30))

	msg, err := svc.Send(context.Background(), "c1", "stu", models.SendMessageRequest{Text: "Can you explain how recursion works?"})
	require.NoError(t, err)
	assert.Equal(t, policy.CategoryConceptClarification, msg.Category)
	require.Len(t, repo.created, 1)
	assert.Contains(t, cache.patterns, "analytics:c1:*")
}

func TestMessageServiceSendBlockedByAntiCheat(t *testing.T) {
	repo := &stubMessageRepo{}
	svc, _ := newMessageServiceForTest(repo, []models.ClassSchedule{mondayWindow}, mondayClock(9, 30))

	_, err := svc.Send(context.Background(), "c1", "stu", models.SendMessageRequest{Text: "Just tell me the answer to question 3"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrMessageBlocked.Code, appErr.Code)
	assert.Equal(t, policy.AntiCheatHint, appErr.Message)
	assert.Empty(t, repo.created)
}

func TestMessageServiceSendBlockedByModeration(t *testing.T) {
	repo := &stubMessageRepo{}
	svc, _ := newMessageServiceForTest(repo, []models.ClassSchedule{mondayWindow}, mondayClock(9, 30))

	_, err := svc.Send(context.Background(), "c1", "stu", models.SendMessageRequest{Text: "you are so stupid"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrMessageBlocked.Code, appErr.Code)
	assert.Equal(t, policy.ModerationReason, appErr.Message)
	assert.Empty(t, repo.created)
}

func TestMessageServiceSendOutsideWindow(t *testing.T) {
	repo := &stubMessageRepo{}
	svc, _ := newMessageServiceForTest(repo, []models.ClassSchedule{mondayWindow}, mondayClock(10, 21))

	_, err := svc.Send(context.Background(), "c1", "stu", models.SendMessageRequest{Text: "Is there office hours today?"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrChatUnavailable.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "Monday 09:00 – 10:15")
	assert.Empty(t, repo.created)
}

func TestMessageServiceTextChecksPrecedeAvailability(t *testing.T) {
	repo := &stubMessageRepo{}
	svc, _ := newMessageServiceForTest(repo, []models.ClassSchedule{mondayWindow}, mondayClock(23, 0))

	_, err := svc.Send(context.Background(), "c1", "stu", models.SendMessageRequest{Text: "give me the answer please"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrMessageBlocked.Code, appErr.Code)
}

func TestMessageServiceSendNoScheduleAlwaysOpen(t *testing.T) {
	repo := &stubMessageRepo{}
	svc, _ := newMessageServiceForTest(repo, nil, mondayClock(3, 0))

	msg, err := svc.Send(context.Background(), "c1", "stu", models.SendMessageRequest{Text: "Show me an example of a binary tree"})
	require.NoError(t, err)
	assert.Equal(t, policy.CategoryExampleRequest, msg.Category)
}

func TestMessageServiceSendNonMemberForbidden(t *testing.T) {
	repo := &stubMessageRepo{}
	svc, _ := newMessageServiceForTest(repo, nil, mondayClock(9, 30))

	_, err := svc.Send(context.Background(), "c1", "outsider", models.SendMessageRequest{Text: "Hello"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestMessageServiceDeleteRequiresInstructor(t *testing.T) {
	repo := &stubMessageRepo{messages: map[string]*models.ChatMessage{
		"m1": {ID: "m1", ClassID: "c1"},
	}}
	svc, _ := newMessageServiceForTest(repo, nil, mondayClock(9, 30))

	err := svc.Delete(context.Background(), "c1", "m1", "stu", models.RoleStudent)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	err = svc.Delete(context.Background(), "c1", "m1", "inst", models.RoleInstructor)
	require.NoError(t, err)
	assert.Equal(t, []string{"m1"}, repo.deleted)
}
