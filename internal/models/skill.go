package models

import (
	"time"

	"github.com/google/uuid"
)

// Skill levels a teacher can advertise.
const (
	SkillLevelBeginner     = "beginner"
	SkillLevelIntermediate = "intermediate"
	SkillLevelAdvanced     = "advanced"
	SkillLevelExpert       = "expert"
)

// Allowed teaching rates.
const (
	MinCreditsPerHour = 1
	MaxCreditsPerHour = 3
)

type SkillListing struct {
	ID             uuid.UUID `json:"id"`
	TeacherID      uuid.UUID `json:"teacher_id"`
	SkillName      string    `json:"skill_name"`
	Level          string    `json:"level"`
	CreditsPerHour int       `json:"credits_per_hour"`
	Description    string    `json:"description"`
	CreatedAt      time.Time `json:"created_at"`
}

// TeacherSkill is a listing joined with the teacher offering it, as returned
// by skill search.
type TeacherSkill struct {
	SkillID        uuid.UUID `json:"skill_id"`
	TeacherID      uuid.UUID `json:"teacher_id"`
	TeacherName    string    `json:"teacher_name"`
	SkillName      string    `json:"skill_name"`
	Level          string    `json:"level"`
	CreditsPerHour int       `json:"credits_per_hour"`
	Description    string    `json:"description"`
}
