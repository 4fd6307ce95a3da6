package registry

import (
	"context"

	"github.com/google/uuid"

	"github.com/skillswap/backend/internal/models"
)

// Repository stores skill listings. repository.SkillRepo and
// memory.SkillRepo both satisfy it.
type Repository interface {
	Create(ctx context.Context, l *models.SkillListing) error
	ListByTeacher(ctx context.Context, teacherID uuid.UUID) ([]*models.SkillListing, error)
	Search(ctx context.Context, skill string) ([]*models.TeacherSkill, error)
}
