package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/tutorhub-api/internal/models"
	"github.com/noah-isme/tutorhub-api/internal/policy"
	"github.com/noah-isme/tutorhub-api/pkg/database"
	appErrors "github.com/noah-isme/tutorhub-api/pkg/errors"
)

type skillRepository interface {
	List(ctx context.Context) ([]models.Skill, error)
	FindByID(ctx context.Context, id string) (*models.Skill, error)
	Create(ctx context.Context, skill *models.Skill) error
	Update(ctx context.Context, skill *models.Skill) error
}

// SkillRequest names a skill.
type SkillRequest struct {
	Name string `json:"name" validate:"required,max=100"`
}

// SkillService manages the skill catalogue teachers pick from.
type SkillService struct {
	repo      skillRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSkillService constructs a SkillService.
func NewSkillService(repo skillRepository, validate *validator.Validate, logger *zap.Logger) *SkillService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &SkillService{repo: repo, validator: validate, logger: logger}
}

// List returns every skill ordered by name.
func (s *SkillService) List(ctx context.Context) ([]models.Skill, error) {
	skills, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list skills")
	}
	return skills, nil
}

// Create adds a skill.
func (s *SkillService) Create(ctx context.Context, actor policy.Subject, req SkillRequest) (*models.Skill, error) {
	if !policy.Can(actor, policy.ActionManageSkills, policy.Anything) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only managers can manage skills")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid skill payload")
	}

	skill := &models.Skill{Name: strings.TrimSpace(req.Name)}
	if err := s.repo.Create(ctx, skill); err != nil {
		return nil, s.mapWriteError(err)
	}
	return skill, nil
}

// Update renames a skill.
func (s *SkillService) Update(ctx context.Context, actor policy.Subject, id string, req SkillRequest) (*models.Skill, error) {
	if !policy.Can(actor, policy.ActionManageSkills, policy.Anything) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only managers can manage skills")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid skill payload")
	}

	skill, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "skill not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load skill")
	}
	skill.Name = strings.TrimSpace(req.Name)
	if err := s.repo.Update(ctx, skill); err != nil {
		return nil, s.mapWriteError(err)
	}
	return skill, nil
}

func (s *SkillService) mapWriteError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, "skill not found")
	}
	if database.IsUniqueViolation(err, "skills_name_key") {
		return appErrors.Clone(appErrors.ErrConflict, "skill already exists")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save skill")
}
