package models

import "time"

// Skill is a competence a teacher can advertise.
type Skill struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// UserSkill joins users and skills.
type UserSkill struct {
	UserID  string `db:"user_id"`
	SkillID string `db:"skill_id"`
	Name    string `db:"name"`
}
