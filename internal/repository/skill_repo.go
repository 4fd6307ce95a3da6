package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/skillswap/backend/internal/models"
)

type SkillRepo struct {
	pool *pgxpool.Pool
}

func NewSkillRepo(pool *pgxpool.Pool) *SkillRepo {
	return &SkillRepo{pool: pool}
}

func (r *SkillRepo) Create(ctx context.Context, s *models.SkillListing) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO skill_listings (id, teacher_id, skill_name, level, credits_per_hour, description)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`, s.ID, s.TeacherID, s.SkillName, s.Level, s.CreditsPerHour, s.Description).Scan(&s.CreatedAt)
}

func (r *SkillRepo) ListByTeacher(ctx context.Context, teacherID uuid.UUID) ([]*models.SkillListing, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, teacher_id, skill_name, level, credits_per_hour, description, created_at
		FROM skill_listings WHERE teacher_id = $1 ORDER BY created_at
	`, teacherID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.SkillListing
	for rows.Next() {
		var s models.SkillListing
		if err := rows.Scan(&s.ID, &s.TeacherID, &s.SkillName, &s.Level, &s.CreditsPerHour, &s.Description, &s.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, &s)
	}
	return list, rows.Err()
}

// Search finds listings whose name contains skill, ignoring case, cheapest
// first. Listings of deleted teachers never match.
func (r *SkillRepo) Search(ctx context.Context, skill string) ([]*models.TeacherSkill, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT s.id, s.teacher_id, a.name, s.skill_name, s.level, s.credits_per_hour, s.description
		FROM skill_listings s
		JOIN accounts a ON a.id = s.teacher_id
		WHERE strpos(lower(s.skill_name), lower($1)) > 0
		ORDER BY s.credits_per_hour, lower(s.skill_name), a.name, s.id
	`, skill)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.TeacherSkill
	for rows.Next() {
		var t models.TeacherSkill
		if err := rows.Scan(&t.SkillID, &t.TeacherID, &t.TeacherName, &t.SkillName, &t.Level, &t.CreditsPerHour, &t.Description); err != nil {
			return nil, err
		}
		list = append(list, &t)
	}
	return list, rows.Err()
}

// FindForTeacherTx resolves the teacher's listing by id, or by case-insensitive
// name when id is nil. Returns ErrNotFound when the teacher lists no match.
func (r *SkillRepo) FindForTeacherTx(ctx context.Context, tx pgx.Tx, teacherID uuid.UUID, skillID *uuid.UUID, name string) (*models.SkillListing, error) {
	var row pgx.Row
	if skillID != nil {
		row = tx.QueryRow(ctx, `
			SELECT id, teacher_id, skill_name, level, credits_per_hour, description, created_at
			FROM skill_listings WHERE teacher_id = $1 AND id = $2
		`, teacherID, *skillID)
	} else {
		row = tx.QueryRow(ctx, `
			SELECT id, teacher_id, skill_name, level, credits_per_hour, description, created_at
			FROM skill_listings WHERE teacher_id = $1 AND lower(skill_name) = lower($2)
			ORDER BY created_at LIMIT 1
		`, teacherID, name)
	}
	var s models.SkillListing
	err := row.Scan(&s.ID, &s.TeacherID, &s.SkillName, &s.Level, &s.CreditsPerHour, &s.Description, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}
