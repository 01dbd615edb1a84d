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

type stubThreadRepo struct {
	threads   map[string]*models.ForumThread
	replies   map[string]*models.ForumReply
	validated map[string]bool
	deleted   []string
}

func newStubThreadRepo() *stubThreadRepo {
	return &stubThreadRepo{
		threads:   make(map[string]*models.ForumThread),
		replies:   make(map[string]*models.ForumReply),
		validated: make(map[string]bool),
	}
}

func (s *stubThreadRepo) CreateThread(ctx context.Context, thread *models.ForumThread) error {
	thread.ID = "t1"
	thread.CreatedAt = time.Now().UTC()
	s.threads[thread.ID] = thread
	return nil
}

func (s *stubThreadRepo) FindThreadByID(ctx context.Context, id string) (*models.ForumThread, error) {
	if t, ok := s.threads[id]; ok {
		return t, nil
	}
	return nil, sql.ErrNoRows
}

func (s *stubThreadRepo) ListThreads(ctx context.Context, filter models.ThreadFilter) ([]models.ForumThread, int, error) {
	return nil, 0, nil
}

func (s *stubThreadRepo) UpvoteThread(ctx context.Context, id string) (int, error) {
	t, ok := s.threads[id]
	if !ok {
		return 0, sql.ErrNoRows
	}
	t.Upvotes++
	return t.Upvotes, nil
}

func (s *stubThreadRepo) DeleteThread(ctx context.Context, id string) error {
	delete(s.threads, id)
	s.deleted = append(s.deleted, id)
	return nil
}

func (s *stubThreadRepo) CreateReply(ctx context.Context, reply *models.ForumReply) error {
	reply.ID = "r1"
	reply.CreatedAt = time.Now().UTC()
	s.replies[reply.ID] = reply
	return nil
}

func (s *stubThreadRepo) FindReplyByID(ctx context.Context, id string) (*models.ForumReply, error) {
	if r, ok := s.replies[id]; ok {
		return r, nil
	}
	return nil, sql.ErrNoRows
}

func (s *stubThreadRepo) ListReplies(ctx context.Context, threadID string) ([]models.ForumReply, error) {
	return nil, nil
}

func (s *stubThreadRepo) UpvoteReply(ctx context.Context, id string) (int, error) {
	r, ok := s.replies[id]
	if !ok {
		return 0, sql.ErrNoRows
	}
	r.Upvotes++
	return r.Upvotes, nil
}

func (s *stubThreadRepo) ValidateReply(ctx context.Context, id string, validated bool) error {
	s.validated[id] = validated
	return nil
}

func (s *stubThreadRepo) DeleteReply(ctx context.Context, id string) error {
	delete(s.replies, id)
	s.deleted = append(s.deleted, id)
	return nil
}

type stubAuditRepo struct {
	logs []*models.AuditLog
}

func (s *stubAuditRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	s.logs = append(s.logs, log)
	return nil
}

func newThreadServiceForTest(repo *stubThreadRepo, audit *stubAuditRepo) *ThreadService {
	classes := &stubClassRepo{
		class:    &models.Class{ID: "c1", InstructorID: "inst"},
		enrolled: map[string]bool{"stu": true},
	}
	schedules := &stubScheduleListRepo{}
	return NewThreadService(repo, classes, audit, schedules, &stubCache{}, nil, NewMetricsService(), validator.New(), zap.NewNop(), nil)
}

func TestThreadServiceCreateHonoursRequestedCategory(t *testing.T) {
	repo := newStubThreadRepo()
	svc := newThreadServiceForTest(repo, &stubAuditRepo{})

	thread, err := svc.CreateThread(context.Background(), "c1", "stu", models.CreateThreadRequest{
		Title:    "Struggling with problem set 2",
		Body:     "I keep getting the wrong result on the last part.",
		Category: string(policy.CategoryAssignmentHelp),
	})
	require.NoError(t, err)
	assert.Equal(t, policy.CategoryAssignmentHelp, thread.Category)
}

func TestThreadServiceStudySessionOverride(t *testing.T) {
	repo := newStubThreadRepo()
	svc := newThreadServiceForTest(repo, &stubAuditRepo{})

	thread, err := svc.CreateThread(context.Background(), "c1", "stu", models.CreateThreadRequest{
		Title:    "Anyone want to meet up to study?",
		Body:     "Thinking library on Thursday evening.",
		Category: string(policy.CategoryGeneralQuestion),
	})
	require.NoError(t, err)
	assert.Equal(t, policy.CategoryStudySessions, thread.Category)
}

func TestThreadServiceCreateBlockedContent(t *testing.T) {
	repo := newStubThreadRepo()
	svc := newThreadServiceForTest(repo, &stubAuditRepo{})

	_, err := svc.CreateThread(context.Background(), "c1", "stu", models.CreateThreadRequest{
		Title: "Quick one",
		Body:  "can someone copy the solution for me",
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrMessageBlocked.Code, appErr.Code)
	assert.Empty(t, repo.threads)
}

func TestThreadServiceUnknownCategoryRejected(t *testing.T) {
	repo := newStubThreadRepo()
	svc := newThreadServiceForTest(repo, &stubAuditRepo{})

	_, err := svc.CreateThread(context.Background(), "c1", "stu", models.CreateThreadRequest{
		Title:    "A question",
		Body:     "Some body",
		Category: "Memes",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestThreadServiceValidateReplyInstructorOnly(t *testing.T) {
	repo := newStubThreadRepo()
	audit := &stubAuditRepo{}
	svc := newThreadServiceForTest(repo, audit)

	repo.threads["t1"] = &models.ForumThread{ID: "t1", ClassID: "c1"}
	repo.replies["r1"] = &models.ForumReply{ID: "r1", ThreadID: "t1"}

	err := svc.ValidateReply(context.Background(), "c1", "t1", "r1", "stu", models.RoleStudent, true)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	err = svc.ValidateReply(context.Background(), "c1", "t1", "r1", "inst", models.RoleInstructor, true)
	require.NoError(t, err)
	assert.True(t, repo.validated["r1"])
	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionReplyValidate, audit.logs[0].Action)
}

func TestThreadServiceReplyNestingOneLevel(t *testing.T) {
	repo := newStubThreadRepo()
	svc := newThreadServiceForTest(repo, &stubAuditRepo{})

	repo.threads["t1"] = &models.ForumThread{ID: "t1", ClassID: "c1"}
	parentOfParent := "r0"
	repo.replies["r0"] = &models.ForumReply{ID: "r0", ThreadID: "t1"}
	repo.replies["r9"] = &models.ForumReply{ID: "r9", ThreadID: "t1", ParentID: &parentOfParent}

	nested := "r9"
	_, err := svc.CreateReply(context.Background(), "c1", "t1", "stu", models.CreateReplyRequest{
		Text:     "Replying too deep",
		ParentID: &nested,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestThreadServiceReplyOutsideScheduleRefused(t *testing.T) {
	repo := newStubThreadRepo()
	classes := &stubClassRepo{
		class:    &models.Class{ID: "c1", InstructorID: "inst"},
		enrolled: map[string]bool{"stu": true},
	}
	schedules := &stubScheduleListRepo{schedules: []models.ClassSchedule{mondayWindow}}
	svc := NewThreadService(repo, classes, &stubAuditRepo{}, schedules, &stubCache{}, nil, NewMetricsService(), validator.New(), zap.NewNop(), mondayClock(23, 0))

	repo.threads["t1"] = &models.ForumThread{ID: "t1", ClassID: "c1"}

	_, err := svc.CreateReply(context.Background(), "c1", "t1", "stu", models.CreateReplyRequest{
		Text: "Try walking through the base case first.",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrChatUnavailable.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.replies)

	// New threads are not schedule gated.
	_, err = svc.CreateThread(context.Background(), "c1", "stu", models.CreateThreadRequest{
		Title: "Question about recursion",
		Body:  "How does the call stack unwind here?",
	})
	require.NoError(t, err)
}

func TestThreadServiceDeleteThreadAudited(t *testing.T) {
	repo := newStubThreadRepo()
	audit := &stubAuditRepo{}
	svc := newThreadServiceForTest(repo, audit)

	repo.threads["t1"] = &models.ForumThread{ID: "t1", ClassID: "c1"}

	err := svc.DeleteThread(context.Background(), "c1", "t1", "inst", models.RoleInstructor)
	require.NoError(t, err)
	assert.Contains(t, repo.deleted, "t1")
	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionThreadDelete, audit.logs[0].Action)
}
