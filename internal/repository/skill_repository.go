package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/tutorhub-api/internal/models"
	"github.com/noah-isme/tutorhub-api/pkg/database"
)

// SkillRepository persists the skill catalogue.
type SkillRepository struct {
	db *sqlx.DB
}

// NewSkillRepository constructs the repository.
func NewSkillRepository(db *sqlx.DB) *SkillRepository {
	return &SkillRepository{db: db}
}

// List returns all skills ordered by name.
func (r *SkillRepository) List(ctx context.Context) ([]models.Skill, error) {
	skills := make([]models.Skill, 0)
	if err := r.db.SelectContext(ctx, &skills, `SELECT id, name, created_at FROM skills ORDER BY name`); err != nil {
		return nil, fmt.Errorf("list skills: %w", err)
	}
	return skills, nil
}

// FindByID returns a skill by identifier.
func (r *SkillRepository) FindByID(ctx context.Context, id string) (*models.Skill, error) {
	var skill models.Skill
	if err := r.db.GetContext(ctx, &skill, `SELECT id, name, created_at FROM skills WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows || database.IsInvalidText(err) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("find skill: %w", err)
	}
	return &skill, nil
}

// FindByIDs returns the skills matching the identifiers; unknown ids are skipped.
func (r *SkillRepository) FindByIDs(ctx context.Context, ids []string) ([]models.Skill, error) {
	skills := make([]models.Skill, 0, len(ids))
	if len(ids) == 0 {
		return skills, nil
	}
	const query = `SELECT id, name, created_at FROM skills WHERE id = ANY($1) ORDER BY name`
	if err := r.db.SelectContext(ctx, &skills, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("find skills: %w", err)
	}
	return skills, nil
}

// Create inserts a skill.
func (r *SkillRepository) Create(ctx context.Context, skill *models.Skill) error {
	if skill.ID == "" {
		skill.ID = uuid.NewString()
	}
	if skill.CreatedAt.IsZero() {
		skill.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO skills (id, name, created_at) VALUES (:id, :name, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, skill); err != nil {
		return fmt.Errorf("create skill: %w", err)
	}
	return nil
}

// Update renames a skill.
func (r *SkillRepository) Update(ctx context.Context, skill *models.Skill) error {
	res, err := r.db.ExecContext(ctx, `UPDATE skills SET name = $2 WHERE id = $1`, skill.ID, skill.Name)
	if err != nil {
		return fmt.Errorf("update skill: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
