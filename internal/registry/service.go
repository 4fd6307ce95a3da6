package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/skillswap/backend/internal/models"
)

// ErrInvalidListing is returned for listings with an empty name, an unknown
// level or a rate outside the allowed band.
var ErrInvalidListing = errors.New("invalid skill listing")

type Service interface {
	CreateListing(ctx context.Context, teacherID uuid.UUID, skillName, level string, creditsPerHour int, description string) (*models.SkillListing, error)
	ListForTeacher(ctx context.Context, teacherID uuid.UUID) ([]*models.SkillListing, error)
	Search(ctx context.Context, skill string) ([]*models.TeacherSkill, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) *service {
	return &service{repo: repo}
}

var _ Service = (*service)(nil)

var levels = map[string]bool{
	models.SkillLevelBeginner:     true,
	models.SkillLevelIntermediate: true,
	models.SkillLevelAdvanced:     true,
	models.SkillLevelExpert:       true,
}

func (s *service) CreateListing(ctx context.Context, teacherID uuid.UUID, skillName, level string, creditsPerHour int, description string) (*models.SkillListing, error) {
	skillName = strings.Join(strings.Fields(skillName), " ")
	level = strings.ToLower(strings.TrimSpace(level))
	if skillName == "" {
		return nil, fmt.Errorf("%w: skill name is required", ErrInvalidListing)
	}
	if !levels[level] {
		return nil, fmt.Errorf("%w: unknown level %q", ErrInvalidListing, level)
	}
	if creditsPerHour < models.MinCreditsPerHour || creditsPerHour > models.MaxCreditsPerHour {
		return nil, fmt.Errorf("%w: credits per hour must be between %d and %d", ErrInvalidListing, models.MinCreditsPerHour, models.MaxCreditsPerHour)
	}
	l := &models.SkillListing{
		ID:             uuid.New(),
		TeacherID:      teacherID,
		SkillName:      skillName,
		Level:          level,
		CreditsPerHour: creditsPerHour,
		Description:    strings.TrimSpace(description),
	}
	if err := s.repo.Create(ctx, l); err != nil {
		return nil, err
	}
	return l, nil
}

func (s *service) ListForTeacher(ctx context.Context, teacherID uuid.UUID) ([]*models.SkillListing, error) {
	return s.repo.ListByTeacher(ctx, teacherID)
}

// Search lists teachers offering a skill whose name contains the query.
func (s *service) Search(ctx context.Context, skill string) ([]*models.TeacherSkill, error) {
	skill = strings.Join(strings.Fields(skill), " ")
	if skill == "" {
		return nil, fmt.Errorf("%w: skill query is required", ErrInvalidListing)
	}
	return s.repo.Search(ctx, skill)
}
