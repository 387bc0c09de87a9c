package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/tutorhub-api/internal/models"
	"github.com/noah-isme/tutorhub-api/internal/policy"
	"github.com/noah-isme/tutorhub-api/pkg/database"
	appErrors "github.com/noah-isme/tutorhub-api/pkg/errors"
)

type userRepository interface {
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	ListSkills(ctx context.Context, userID string) ([]models.Skill, error)
	Create(ctx context.Context, user *models.User, skillIDs []string) error
	Update(ctx context.Context, user *models.User, skillIDs []string) error
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type skillLookup interface {
	FindByIDs(ctx context.Context, ids []string) ([]models.Skill, error)
}

type userLessonReader interface {
	ListByTeacher(ctx context.Context, teacherID string) ([]models.Lesson, error)
	ListEnrolledByStudent(ctx context.Context, studentID string) ([]models.StudentLesson, error)
}

// CreateUserRequest represents the manager payload for creating users of any role.
type CreateUserRequest struct {
	Username string          `json:"username" validate:"required,min=3,max=150"`
	Email    string          `json:"email" validate:"omitempty,email"`
	FullName string          `json:"full_name" validate:"max=150"`
	Role     models.UserRole `json:"role" validate:"required,oneof=teacher student manager"`
	Active   bool            `json:"active"`
	Password string          `json:"password" validate:"required,min=8"`
	SkillIDs []string        `json:"skill_ids" validate:"omitempty,dive,uuid"`
}

// UpdateUserRequest payload for updating users. A nil SkillIDs keeps the current skills.
type UpdateUserRequest struct {
	FullName string          `json:"full_name" validate:"max=150"`
	Role     models.UserRole `json:"role" validate:"required,oneof=teacher student manager"`
	Active   *bool           `json:"active"`
	SkillIDs *[]string       `json:"skill_ids" validate:"omitempty,dive,uuid"`
}

// UserService handles registration and user management workflows.
type UserService struct {
	repo      userRepository
	skills    skillLookup
	lessons   userLessonReader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewUserService creates an instance of UserService.
func NewUserService(repo userRepository, skills skillLookup, lessons userLessonReader, validate *validator.Validate, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &UserService{repo: repo, skills: skills, lessons: lessons, validator: validate, logger: logger}
}

// Register creates a teacher or student account from the public sign-up form.
func (s *UserService) Register(ctx context.Context, req models.RegisterRequest, meta models.RequestMeta) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid registration payload")
	}

	user, err := s.create(ctx, req.Username, req.Email, req.FullName, req.Password, req.Role, true, req.SkillIDs)
	if err != nil {
		return nil, err
	}

	s.audit(ctx, &models.AuditLog{
		UserID:     &user.ID,
		Action:     models.AuditActionRegister,
		Resource:   "users",
		ResourceID: &user.ID,
		NewValues:  userAuditPayload(user),
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	})
	return user, nil
}

// List returns paginated users and pagination metadata.
func (s *UserService) List(ctx context.Context, actor policy.Subject, filter models.UserFilter) ([]models.User, *models.Pagination, error) {
	if !policy.Can(actor, policy.ActionManageUsers, policy.Anything) {
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "only managers can list users")
	}

	users, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list users")
	}

	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	return users, models.NewPagination(filter.Page, pageSize, total), nil
}

// GetDetail returns a user with skills plus the lessons a teacher gives or the enrollments of a student.
func (s *UserService) GetDetail(ctx context.Context, actor policy.Subject, id string) (*models.UserDetail, error) {
	if !policy.Can(actor, policy.ActionManageUsers, policy.Anything) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only managers can view user details")
	}

	user, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}

	detail := &models.UserDetail{User: *user}
	switch user.Role {
	case models.RoleTeacher:
		lessons, err := s.lessons.ListByTeacher(ctx, user.ID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher lessons")
		}
		detail.LessonsGiven = lessons
	case models.RoleStudent:
		enrollments, err := s.lessons.ListEnrolledByStudent(ctx, user.ID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student enrollments")
		}
		detail.Enrollments = enrollments
	}
	return detail, nil
}

// Create adds a user of any role on behalf of a manager.
func (s *UserService) Create(ctx context.Context, actor policy.Subject, req CreateUserRequest, meta models.RequestMeta) (*models.User, error) {
	if !policy.Can(actor, policy.ActionManageUsers, policy.Anything) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only managers can create users")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid create user payload")
	}

	user, err := s.create(ctx, req.Username, req.Email, req.FullName, req.Password, req.Role, req.Active, req.SkillIDs)
	if err != nil {
		return nil, err
	}

	s.audit(ctx, &models.AuditLog{
		UserID:     &actor.ID,
		Action:     models.AuditActionUserCreate,
		Resource:   "users",
		ResourceID: &user.ID,
		NewValues:  userAuditPayload(user),
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	})
	return user, nil
}

// Update modifies role, name, active flag and skills. Leaving the teacher role clears skills.
func (s *UserService) Update(ctx context.Context, actor policy.Subject, id string, req UpdateUserRequest, meta models.RequestMeta) (*models.User, error) {
	if !policy.Can(actor, policy.ActionManageUsers, policy.Anything) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only managers can update users")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid update payload")
	}

	user, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	oldPayload := userAuditPayload(user)

	skillIDs := make([]string, 0, len(user.Skills))
	for _, skill := range user.Skills {
		skillIDs = append(skillIDs, skill.ID)
	}
	if req.SkillIDs != nil {
		skillIDs = *req.SkillIDs
	}
	if req.Role != models.RoleTeacher {
		if req.SkillIDs != nil && len(*req.SkillIDs) > 0 {
			return nil, appErrors.Clone(appErrors.ErrValidation, "only teachers can have skills")
		}
		skillIDs = nil
	}

	skills, err := s.resolveSkills(ctx, skillIDs)
	if err != nil {
		return nil, err
	}

	user.FullName = strings.TrimSpace(req.FullName)
	user.Role = req.Role
	if req.Active != nil {
		user.Active = *req.Active
	}

	if err := s.repo.Update(ctx, user, skillIDs); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update user")
	}
	user.Skills = skills

	s.audit(ctx, &models.AuditLog{
		UserID:     &actor.ID,
		Action:     models.AuditActionUserUpdate,
		Resource:   "users",
		ResourceID: &user.ID,
		OldValues:  oldPayload,
		NewValues:  userAuditPayload(user),
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	})
	return user, nil
}

func (s *UserService) create(ctx context.Context, username, email, fullName, password string, role models.UserRole, active bool, skillIDs []string) (*models.User, error) {
	if role != models.RoleTeacher && len(skillIDs) > 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "only teachers can have skills")
	}

	username = strings.TrimSpace(username)
	if _, err := s.repo.FindByUsername(ctx, username); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "username already exists")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check username uniqueness")
	}

	skills, err := s.resolveSkills(ctx, skillIDs)
	if err != nil {
		return nil, err
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	user := &models.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        strings.ToLower(strings.TrimSpace(email)),
		FullName:     strings.TrimSpace(fullName),
		Role:         role,
		Active:       active,
		PasswordHash: string(passwordHash),
	}

	if err := s.repo.Create(ctx, user, skillIDs); err != nil {
		if database.IsUniqueViolation(err, "users_username_key") {
			return nil, appErrors.Clone(appErrors.ErrConflict, "username already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create user")
	}
	user.Skills = skills
	return user, nil
}

func (s *UserService) get(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	skills, err := s.repo.ListSkills(ctx, user.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user skills")
	}
	user.Skills = skills
	return user, nil
}

// resolveSkills verifies that every id names an existing skill.
func (s *UserService) resolveSkills(ctx context.Context, ids []string) ([]models.Skill, error) {
	if len(ids) == 0 {
		return []models.Skill{}, nil
	}
	skills, err := s.skills.FindByIDs(ctx, ids)
	if err != nil {
		if database.IsInvalidText(err) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "skill ids must be valid identifiers")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load skills")
	}
	found := make(map[string]struct{}, len(skills))
	for _, skill := range skills {
		found[skill.ID] = struct{}{}
	}
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, "unknown skill: "+id)
		}
	}
	return skills, nil
}

func (s *UserService) audit(ctx context.Context, entry *models.AuditLog) {
	if err := s.repo.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Warn("failed to record user audit log", zap.String("action", entry.Action), zap.Error(err))
	}
}

func userAuditPayload(user *models.User) []byte {
	payload, _ := json.Marshal(map[string]interface{}{
		"username": user.Username,
		"role":     user.Role,
		"active":   user.Active,
		"skills":   len(user.Skills),
	})
	return payload
}
