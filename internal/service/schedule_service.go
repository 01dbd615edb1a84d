package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/evaclass/eva-api/internal/models"
	"github.com/evaclass/eva-api/internal/policy"
	appErrors "github.com/evaclass/eva-api/pkg/errors"
)

type scheduleRepository interface {
	Create(ctx context.Context, schedule *models.ClassSchedule) error
	FindByID(ctx context.Context, id string) (*models.ClassSchedule, error)
	ListByClass(ctx context.Context, classID string) ([]models.ClassSchedule, error)
	Update(ctx context.Context, schedule *models.ClassSchedule) error
	Delete(ctx context.Context, id string) error
}

type scheduleClassRepository interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
}

type scheduleAuditRepository interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

var clockPattern = regexp.MustCompile(`^([01]?\d|2[0-3]):[0-5]\d$`)

// ScheduleService manages the weekly chat windows of a class.
type ScheduleService struct {
	repo      scheduleRepository
	classes   scheduleClassRepository
	audit     scheduleAuditRepository
	validator *validator.Validate
	logger    *zap.Logger
	clock     Clock
}

// NewScheduleService constructs a ScheduleService instance.
func NewScheduleService(repo scheduleRepository, classes scheduleClassRepository, audit scheduleAuditRepository, validate *validator.Validate, logger *zap.Logger, clock Clock) *ScheduleService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if clock == nil {
		clock = time.Now
	}
	return &ScheduleService{repo: repo, classes: classes, audit: audit, validator: validate, logger: logger, clock: clock}
}

// Create adds a chat window to a class. Only the owning instructor or an
// admin may manage schedules.
func (s *ScheduleService) Create(ctx context.Context, classID, userID string, role models.UserRole, req models.UpsertScheduleRequest) (*models.ClassSchedule, error) {
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}
	if err := s.ensureManager(ctx, classID, userID, role); err != nil {
		return nil, err
	}

	schedule := &models.ClassSchedule{
		ClassID:   classID,
		DayOfWeek: req.DayOfWeek,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
	}
	if err := s.repo.Create(ctx, schedule); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store schedule")
	}

	s.recordAudit(ctx, userID, models.AuditActionScheduleCreate, schedule.ID)
	return schedule, nil
}

// List returns the chat windows of a class.
func (s *ScheduleService) List(ctx context.Context, classID string) ([]models.ClassSchedule, error) {
	schedules, err := s.repo.ListByClass(ctx, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list schedules")
	}
	return schedules, nil
}

// Update modifies an existing chat window.
func (s *ScheduleService) Update(ctx context.Context, classID, scheduleID, userID string, role models.UserRole, req models.UpsertScheduleRequest) (*models.ClassSchedule, error) {
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}
	if err := s.ensureManager(ctx, classID, userID, role); err != nil {
		return nil, err
	}

	schedule, err := s.repo.FindByID(ctx, scheduleID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "schedule not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule")
	}
	if schedule.ClassID != classID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "schedule not found in this class")
	}

	schedule.DayOfWeek = req.DayOfWeek
	schedule.StartTime = req.StartTime
	schedule.EndTime = req.EndTime
	if err := s.repo.Update(ctx, schedule); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update schedule")
	}
	return schedule, nil
}

// Delete removes a chat window.
func (s *ScheduleService) Delete(ctx context.Context, classID, scheduleID, userID string, role models.UserRole) error {
	if err := s.ensureManager(ctx, classID, userID, role); err != nil {
		return err
	}

	schedule, err := s.repo.FindByID(ctx, scheduleID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "schedule not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule")
	}
	if schedule.ClassID != classID {
		return appErrors.Clone(appErrors.ErrNotFound, "schedule not found in this class")
	}

	if err := s.repo.Delete(ctx, scheduleID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete schedule")
	}
	s.recordAudit(ctx, userID, models.AuditActionScheduleDelete, scheduleID)
	return nil
}

// Availability evaluates the class windows against the current time.
func (s *ScheduleService) Availability(ctx context.Context, classID string) (policy.AvailabilityResult, error) {
	schedules, err := s.repo.ListByClass(ctx, classID)
	if err != nil {
		return policy.AvailabilityResult{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedules")
	}
	return policy.IsWithinSchedule(models.Windows(schedules), s.clock()), nil
}

func (s *ScheduleService) validateRequest(req models.UpsertScheduleRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid schedule payload")
	}
	if !clockPattern.MatchString(req.StartTime) || !clockPattern.MatchString(req.EndTime) {
		return appErrors.Clone(appErrors.ErrValidation, "start_time and end_time must be HH:MM")
	}
	start, _ := parseMinutes(req.StartTime)
	end, _ := parseMinutes(req.EndTime)
	if end <= start {
		return appErrors.Clone(appErrors.ErrValidation, "end_time must be after start_time")
	}
	return nil
}

func (s *ScheduleService) ensureManager(ctx context.Context, classID, userID string, role models.UserRole) error {
	class, err := s.classes.FindByID(ctx, classID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	if role != models.RoleAdmin && class.InstructorID != userID {
		return appErrors.Clone(appErrors.ErrForbidden, "only the class instructor can manage schedules")
	}
	return nil
}

func (s *ScheduleService) recordAudit(ctx context.Context, userID, action, resourceID string) {
	if s.audit == nil {
		return
	}
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &userID,
		Action:     action,
		Resource:   "schedule",
		ResourceID: &resourceID,
	}); err != nil {
		s.logger.Warn("record schedule audit log", zap.Error(err))
	}
}

func parseMinutes(value string) (int, bool) {
	var hours, minutes int
	if _, err := fmt.Sscanf(value, "%d:%d", &hours, &minutes); err != nil {
		return 0, false
	}
	return hours*60 + minutes, true
}
