package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/evaclass/eva-api/internal/models"
	appErrors "github.com/evaclass/eva-api/pkg/errors"
)

type classRepository interface {
	Create(ctx context.Context, class *models.Class) error
	FindByID(ctx context.Context, id string) (*models.Class, error)
	FindByJoinCode(ctx context.Context, joinCode string) (*models.Class, error)
	List(ctx context.Context, filter models.ClassFilter) ([]models.Class, int, error)
	ListForStudent(ctx context.Context, userID string) ([]models.Class, error)
	Enroll(ctx context.Context, enrollment *models.Enrollment) error
	IsEnrolled(ctx context.Context, classID, userID string) (bool, error)
	Update(ctx context.Context, class *models.Class) error
	Delete(ctx context.Context, id string) error
}

// CreateClassRequest is the payload to create a class.
type CreateClassRequest struct {
	Name       string `json:"name" validate:"required,max=120"`
	CourseCode string `json:"course_code" validate:"required,max=20"`
}

// joinCodeAlphabet avoids ambiguous characters in generated codes.
const joinCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// ClassService manages classes and their memberships.
type ClassService struct {
	repo      classRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewClassService constructs a ClassService instance.
func NewClassService(repo classRepository, validate *validator.Validate, logger *zap.Logger) *ClassService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &ClassService{repo: repo, validator: validate, logger: logger}
}

// Create registers a class owned by the calling instructor and issues a
// join code students use to enroll.
func (s *ClassService) Create(ctx context.Context, instructorID string, req CreateClassRequest) (*models.Class, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid class payload")
	}

	joinCode, err := generateJoinCode(8)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate join code")
	}

	class := &models.Class{
		Name:         req.Name,
		CourseCode:   req.CourseCode,
		InstructorID: instructorID,
		JoinCode:     joinCode,
	}
	if err := s.repo.Create(ctx, class); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store class")
	}
	return class, nil
}

// Get returns a class by ID. The join code is only exposed to the owning
// instructor or an admin.
func (s *ClassService) Get(ctx context.Context, classID, userID string, role models.UserRole) (*models.Class, error) {
	class, err := s.repo.FindByID(ctx, classID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	if role != models.RoleAdmin && class.InstructorID != userID {
		class.JoinCode = ""
	}
	return class, nil
}

// List returns classes visible to the caller: instructors see the classes
// they own, students the ones they joined, admins everything.
func (s *ClassService) List(ctx context.Context, userID string, role models.UserRole, filter models.ClassFilter) ([]models.Class, int, error) {
	switch role {
	case models.RoleAdmin:
	case models.RoleInstructor:
		filter.InstructorID = userID
	default:
		classes, err := s.repo.ListForStudent(ctx, userID)
		if err != nil {
			return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list classes")
		}
		for i := range classes {
			classes[i].JoinCode = ""
		}
		return classes, len(classes), nil
	}

	classes, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list classes")
	}
	return classes, total, nil
}

// Join enrolls a student into the class matching the join code.
func (s *ClassService) Join(ctx context.Context, userID, joinCode string) (*models.Class, error) {
	if joinCode == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "join code is required")
	}

	class, err := s.repo.FindByJoinCode(ctx, joinCode)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no class matches that join code")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to look up join code")
	}

	if err := s.repo.Enroll(ctx, &models.Enrollment{ClassID: class.ID, UserID: userID}); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enroll")
	}

	class.JoinCode = ""
	return class, nil
}

// IsMember reports whether the user may read class content.
func (s *ClassService) IsMember(ctx context.Context, classID, userID string, role models.UserRole) (bool, error) {
	if role == models.RoleAdmin {
		return true, nil
	}
	class, err := s.repo.FindByID(ctx, classID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	if class.InstructorID == userID {
		return true, nil
	}
	enrolled, err := s.repo.IsEnrolled(ctx, classID, userID)
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
	}
	return enrolled, nil
}

// Update renames a class.
func (s *ClassService) Update(ctx context.Context, classID, userID string, role models.UserRole, req CreateClassRequest) (*models.Class, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid class payload")
	}
	class, err := s.repo.FindByID(ctx, classID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	if role != models.RoleAdmin && class.InstructorID != userID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the class instructor can update the class")
	}

	class.Name = req.Name
	class.CourseCode = req.CourseCode
	if err := s.repo.Update(ctx, class); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update class")
	}
	return class, nil
}

// Delete removes a class with its enrollments.
func (s *ClassService) Delete(ctx context.Context, classID, userID string, role models.UserRole) error {
	class, err := s.repo.FindByID(ctx, classID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	if role != models.RoleAdmin && class.InstructorID != userID {
		return appErrors.Clone(appErrors.ErrForbidden, "only the class instructor can delete the class")
	}
	if err := s.repo.Delete(ctx, classID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete class")
	}
	return nil
}

func generateJoinCode(length int) (string, error) {
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = joinCodeAlphabet[int(b)%len(joinCodeAlphabet)]
	}
	return string(buf), nil
}
