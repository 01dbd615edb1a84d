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

type messageRepository interface {
	Create(ctx context.Context, message *models.ChatMessage) error
	FindByID(ctx context.Context, id string) (*models.ChatMessage, error)
	List(ctx context.Context, filter models.MessageFilter) ([]models.ChatMessage, int, error)
	Delete(ctx context.Context, id string) error
}

type messageClassRepository interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
	IsEnrolled(ctx context.Context, classID, userID string) (bool, error)
}

type messageScheduleRepository interface {
	ListByClass(ctx context.Context, classID string) ([]models.ClassSchedule, error)
}

type cacheInvalidator interface {
	DeleteByPattern(ctx context.Context, pattern string) error
}

// Clock supplies the current time; injected so availability decisions are
// testable.
type Clock func() time.Time

// MessageService runs chat submissions through the policy pipeline and
// persists the ones that survive it.
type MessageService struct {
	repo      messageRepository
	classes   messageClassRepository
	schedules messageScheduleRepository
	cache     cacheInvalidator
	broker    *realtime.Broker
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	clock     Clock
}

// NewMessageService constructs a MessageService instance.
func NewMessageService(repo messageRepository, classes messageClassRepository, schedules messageScheduleRepository, cache cacheInvalidator, broker *realtime.Broker, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, clock Clock) *MessageService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if clock == nil {
		clock = time.Now
	}
	return &MessageService{
		repo:      repo,
		classes:   classes,
		schedules: schedules,
		cache:     cache,
		broker:    broker,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		clock:     clock,
	}
}

// Send screens a message and stores it when every check passes. The checks
// run in a fixed order: anti-cheat, content moderation, then the class
// schedule; the first rejection wins and later checks never run.
func (s *MessageService) Send(ctx context.Context, classID, authorID string, req models.SendMessageRequest) (*models.ChatMessage, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid message payload")
	}

	if err := s.ensureMember(ctx, classID, authorID); err != nil {
		return nil, err
	}

	review := policy.ReviewSubmission(req.Text)
	if review.Blocked {
		s.metrics.RecordPolicyBlock(review.Check)
		return nil, appErrors.Clone(appErrors.ErrMessageBlocked, review.Explanation)
	}

	availability, err := s.Availability(ctx, classID)
	if err != nil {
		return nil, err
	}
	if !availability.Available {
		explanation := "Chat is not available right now."
		if availability.NextWindow != "" {
			explanation = fmt.Sprintf("Chat is not available right now. The next session is %s.", availability.NextWindow)
		}
		return nil, appErrors.Clone(appErrors.ErrChatUnavailable, explanation)
	}

	message := &models.ChatMessage{
		ClassID:  classID,
		AuthorID: authorID,
		Text:     req.Text,
		Category: review.Category,
	}
	if err := s.repo.Create(ctx, message); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store message")
	}

	s.metrics.RecordCategory(review.Category)
	s.broker.Publish(ctx, realtime.Event{Type: "message.created", ClassID: classID, Message: message})
	s.invalidateAnalytics(ctx, classID)

	return message, nil
}

// Preview runs the text checks without persisting anything, so clients can
// warn the author before submission.
func (s *MessageService) Preview(text string) policy.Review {
	return policy.ReviewSubmission(text)
}

// Availability reports whether chat is currently open for the class.
func (s *MessageService) Availability(ctx context.Context, classID string) (policy.AvailabilityResult, error) {
	schedules, err := s.schedules.ListByClass(ctx, classID)
	if err != nil {
		return policy.AvailabilityResult{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class schedule")
	}
	return policy.IsWithinSchedule(models.Windows(schedules), s.clock()), nil
}

// List returns accepted messages for a class. Callers must be members.
func (s *MessageService) List(ctx context.Context, userID string, filter models.MessageFilter) ([]models.ChatMessage, int, error) {
	if err := s.ensureMember(ctx, filter.ClassID, userID); err != nil {
		return nil, 0, err
	}
	messages, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list messages")
	}
	return messages, total, nil
}

// Delete removes a message. Only the class instructor may delete.
func (s *MessageService) Delete(ctx context.Context, classID, messageID, userID string, role models.UserRole) error {
	class, err := s.classes.FindByID(ctx, classID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	if role != models.RoleAdmin && class.InstructorID != userID {
		return appErrors.Clone(appErrors.ErrForbidden, "only the class instructor can delete messages")
	}

	message, err := s.repo.FindByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "message not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load message")
	}
	if message.ClassID != classID {
		return appErrors.Clone(appErrors.ErrNotFound, "message not found in this class")
	}

	if err := s.repo.Delete(ctx, messageID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete message")
	}
	s.invalidateAnalytics(ctx, classID)
	return nil
}

func (s *MessageService) ensureMember(ctx context.Context, classID, userID string) error {
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

func (s *MessageService) invalidateAnalytics(ctx context.Context, classID string) {
	if s.cache == nil {
		return
	}
	pattern := fmt.Sprintf("analytics:%s:*", classID)
	if err := s.cache.DeleteByPattern(ctx, pattern); err != nil {
		s.logger.Warn("invalidate analytics cache", zap.String("class_id", classID), zap.Error(err))
	}
}
