package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/evaclass/eva-api/internal/models"
	"github.com/evaclass/eva-api/internal/policy"
	"github.com/evaclass/eva-api/internal/realtime"
	appErrors "github.com/evaclass/eva-api/pkg/errors"
)

type threadRepository interface {
	CreateThread(ctx context.Context, thread *models.ForumThread) error
	FindThreadByID(ctx context.Context, id string) (*models.ForumThread, error)
	ListThreads(ctx context.Context, filter models.ThreadFilter) ([]models.ForumThread, int, error)
	UpvoteThread(ctx context.Context, id string) (int, error)
	DeleteThread(ctx context.Context, id string) error
	CreateReply(ctx context.Context, reply *models.ForumReply) error
	FindReplyByID(ctx context.Context, id string) (*models.ForumReply, error)
	ListReplies(ctx context.Context, threadID string) ([]models.ForumReply, error)
	UpvoteReply(ctx context.Context, id string) (int, error)
	ValidateReply(ctx context.Context, id string, validated bool) error
	DeleteReply(ctx context.Context, id string) error
}

type threadClassRepository interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
	IsEnrolled(ctx context.Context, classID, userID string) (bool, error)
}

type threadAuditRepository interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// ThreadService manages forum threads and replies. New threads pass the
// text checks only; the forum is the place questions go when chat is
// closed. Replies additionally follow the class schedule, like chat sends.
type ThreadService struct {
	repo      threadRepository
	classes   threadClassRepository
	audit     threadAuditRepository
	schedules messageScheduleRepository
	cache     cacheInvalidator
	broker    *realtime.Broker
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	clock     Clock
}

// NewThreadService constructs a ThreadService instance.
func NewThreadService(repo threadRepository, classes threadClassRepository, audit threadAuditRepository, schedules messageScheduleRepository, cache cacheInvalidator, broker *realtime.Broker, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, clock Clock) *ThreadService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if clock == nil {
		clock = time.Now
	}
	return &ThreadService{
		repo:      repo,
		classes:   classes,
		audit:     audit,
		schedules: schedules,
		cache:     cache,
		broker:    broker,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		clock:     clock,
	}
}

// CreateThread screens and stores a new thread. The requested category is
// honoured unless the content reads like study-session coordination, which
// always lands in the study sessions category.
func (s *ThreadService) CreateThread(ctx context.Context, classID, authorID string, req models.CreateThreadRequest) (*models.ForumThread, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid thread payload")
	}
	requested := policy.Category(req.Category)
	if req.Category != "" && !requested.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown category")
	}

	if err := s.ensureMember(ctx, classID, authorID); err != nil {
		return nil, err
	}

	review := policy.ReviewThreadContent(req.Title, req.Body, requested)
	if review.Blocked {
		s.metrics.RecordPolicyBlock(review.Check)
		return nil, appErrors.Clone(appErrors.ErrMessageBlocked, review.Explanation)
	}

	thread := &models.ForumThread{
		ClassID:  classID,
		AuthorID: authorID,
		Title:    req.Title,
		Body:     req.Body,
		Category: review.Category,
		Tags:     req.Tags,
	}
	if err := s.repo.CreateThread(ctx, thread); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store thread")
	}

	s.metrics.RecordCategory(review.Category)
	s.broker.Publish(ctx, realtime.Event{Type: "thread.created", ClassID: classID, Thread: thread})
	s.invalidateAnalytics(ctx, classID)

	return thread, nil
}

// GetThread returns a thread with its replies.
func (s *ThreadService) GetThread(ctx context.Context, classID, threadID, userID string) (*models.ForumThread, []models.ForumReply, error) {
	if err := s.ensureMember(ctx, classID, userID); err != nil {
		return nil, nil, err
	}
	thread, err := s.loadThread(ctx, classID, threadID)
	if err != nil {
		return nil, nil, err
	}
	replies, err := s.repo.ListReplies(ctx, threadID)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list replies")
	}
	return thread, replies, nil
}

// ListThreads returns threads in a class.
func (s *ThreadService) ListThreads(ctx context.Context, userID string, filter models.ThreadFilter) ([]models.ForumThread, int, error) {
	if err := s.ensureMember(ctx, filter.ClassID, userID); err != nil {
		return nil, 0, err
	}
	threads, total, err := s.repo.ListThreads(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list threads")
	}
	return threads, total, nil
}

// UpvoteThread bumps a thread's upvote counter.
func (s *ThreadService) UpvoteThread(ctx context.Context, classID, threadID, userID string) (int, error) {
	if err := s.ensureMember(ctx, classID, userID); err != nil {
		return 0, err
	}
	if _, err := s.loadThread(ctx, classID, threadID); err != nil {
		return 0, err
	}
	upvotes, err := s.repo.UpvoteThread(ctx, threadID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to upvote thread")
	}
	return upvotes, nil
}

// DeleteThread removes a thread. Only the class instructor or an admin may
// delete, and the removal is audited.
func (s *ThreadService) DeleteThread(ctx context.Context, classID, threadID, userID string, role models.UserRole) error {
	if err := s.ensureModerator(ctx, classID, userID, role); err != nil {
		return err
	}
	if _, err := s.loadThread(ctx, classID, threadID); err != nil {
		return err
	}
	if err := s.repo.DeleteThread(ctx, threadID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete thread")
	}
	s.recordAudit(ctx, userID, models.AuditActionThreadDelete, threadID)
	s.invalidateAnalytics(ctx, classID)
	return nil
}

// CreateReply screens and stores a reply inside a thread.
func (s *ThreadService) CreateReply(ctx context.Context, classID, threadID, authorID string, req models.CreateReplyRequest) (*models.ForumReply, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reply payload")
	}
	if err := s.ensureMember(ctx, classID, authorID); err != nil {
		return nil, err
	}
	if _, err := s.loadThread(ctx, classID, threadID); err != nil {
		return nil, err
	}

	if req.ParentID != nil {
		parent, err := s.repo.FindReplyByID(ctx, *req.ParentID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "parent reply not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load parent reply")
		}
		if parent.ThreadID != threadID {
			return nil, appErrors.Clone(appErrors.ErrValidation, "parent reply belongs to another thread")
		}
		if parent.ParentID != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "replies nest one level deep")
		}
	}

	review := policy.ReviewSubmission(req.Text)
	if review.Blocked {
		s.metrics.RecordPolicyBlock(review.Check)
		return nil, appErrors.Clone(appErrors.ErrMessageBlocked, review.Explanation)
	}

	if err := s.ensureClassOpen(ctx, classID); err != nil {
		return nil, err
	}

	reply := &models.ForumReply{
		ThreadID: threadID,
		ParentID: req.ParentID,
		AuthorID: authorID,
		Text:     req.Text,
	}
	if err := s.repo.CreateReply(ctx, reply); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store reply")
	}
	return reply, nil
}

// UpvoteReply bumps a reply's upvote counter.
func (s *ThreadService) UpvoteReply(ctx context.Context, classID, threadID, replyID, userID string) (int, error) {
	if err := s.ensureMember(ctx, classID, userID); err != nil {
		return 0, err
	}
	if _, err := s.loadReply(ctx, threadID, replyID); err != nil {
		return 0, err
	}
	upvotes, err := s.repo.UpvoteReply(ctx, replyID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to upvote reply")
	}
	return upvotes, nil
}

// ValidateReply lets the class instructor mark a reply as the endorsed
// answer. Setting validated to false withdraws the endorsement.
func (s *ThreadService) ValidateReply(ctx context.Context, classID, threadID, replyID, userID string, role models.UserRole, validated bool) error {
	if err := s.ensureModerator(ctx, classID, userID, role); err != nil {
		return err
	}
	if _, err := s.loadReply(ctx, threadID, replyID); err != nil {
		return err
	}
	if err := s.repo.ValidateReply(ctx, replyID, validated); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate reply")
	}
	s.recordAudit(ctx, userID, models.AuditActionReplyValidate, replyID)
	return nil
}

// DeleteReply removes a reply, audited like thread deletion.
func (s *ThreadService) DeleteReply(ctx context.Context, classID, threadID, replyID, userID string, role models.UserRole) error {
	if err := s.ensureModerator(ctx, classID, userID, role); err != nil {
		return err
	}
	if _, err := s.loadReply(ctx, threadID, replyID); err != nil {
		return err
	}
	if err := s.repo.DeleteReply(ctx, replyID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete reply")
	}
	s.recordAudit(ctx, userID, models.AuditActionReplyDelete, replyID)
	return nil
}

func (s *ThreadService) loadThread(ctx context.Context, classID, threadID string) (*models.ForumThread, error) {
	thread, err := s.repo.FindThreadByID(ctx, threadID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "thread not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load thread")
	}
	if thread.ClassID != classID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "thread not found in this class")
	}
	return thread, nil
}

func (s *ThreadService) loadReply(ctx context.Context, threadID, replyID string) (*models.ForumReply, error) {
	reply, err := s.repo.FindReplyByID(ctx, replyID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "reply not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load reply")
	}
	if reply.ThreadID != threadID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "reply not found in this thread")
	}
	return reply, nil
}

func (s *ThreadService) ensureClassOpen(ctx context.Context, classID string) error {
	if s.schedules == nil {
		return nil
	}
	schedules, err := s.schedules.ListByClass(ctx, classID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class schedule")
	}
	availability := policy.IsWithinSchedule(models.Windows(schedules), s.clock())
	if !availability.Available {
		explanation := "Replies are not available right now."
		if availability.NextWindow != "" {
			explanation = fmt.Sprintf("Replies are not available right now. The next session is %s.", availability.NextWindow)
		}
		return appErrors.Clone(appErrors.ErrChatUnavailable, explanation)
	}
	return nil
}

func (s *ThreadService) ensureMember(ctx context.Context, classID, userID string) error {
	class, err := s.classes.FindByID(ctx, classID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	if class.InstructorID == userID {
		return nil
	}
	enrolled, err := s.classes.IsEnrolled(ctx, classID, userID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
	}
	if !enrolled {
		return appErrors.Clone(appErrors.ErrForbidden, "not a member of this class")
	}
	return nil
}

func (s *ThreadService) ensureModerator(ctx context.Context, classID, userID string, role models.UserRole) error {
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

func (s *ThreadService) recordAudit(ctx context.Context, userID, action, resourceID string) {
	if s.audit == nil {
		return
	}
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &userID,
		Action:     action,
		Resource:   "forum",
		ResourceID: &resourceID,
	}); err != nil {
		s.logger.Warn("record forum audit log", zap.Error(err))
	}
}

func (s *ThreadService) invalidateAnalytics(ctx context.Context, classID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, "analytics:"+classID+":*"); err != nil {
		s.logger.Warn("invalidate analytics cache", zap.String("class_id", classID), zap.Error(err))
	}
}
