package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Booking status enums.
const (
	BookingStatusRequested = "requested"
	BookingStatusConfirmed = "confirmed"
	BookingStatusCompleted = "completed"
	BookingStatusCancelled = "cancelled"
)

// Role is the side of a booking a participant acts as.
type Role int

const (
	RoleLearner Role = iota + 1
	RoleTeacher
)

func (r Role) String() string {
	switch r {
	case RoleLearner:
		return "learner"
	case RoleTeacher:
		return "teacher"
	default:
		return "unknown"
	}
}

// ParseRole accepts "learner" or "teacher". Anything else is rejected.
func ParseRole(s string) (Role, bool) {
	switch s {
	case "learner":
		return RoleLearner, true
	case "teacher":
		return RoleTeacher, true
	default:
		return 0, false
	}
}

func (r Role) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

func (r *Role) UnmarshalText(b []byte) error {
	role, ok := ParseRole(string(b))
	if !ok {
		return fmt.Errorf("unknown role %q", b)
	}
	*r = role
	return nil
}

type Booking struct {
	ID                 uuid.UUID       `json:"id"`
	TeacherID          uuid.UUID       `json:"teacher_id"`
	LearnerID          uuid.UUID       `json:"learner_id"`
	Skill              string          `json:"skill"`
	SkillID            *uuid.UUID      `json:"skill_id,omitempty"`
	Status             string          `json:"status"`
	CreditAmount       int             `json:"credit_amount"`
	DateTime           time.Time       `json:"date_time"`
	Duration           decimal.Decimal `json:"duration"`
	CompletedByLearner bool            `json:"completed_by_learner"`
	CompletedByTeacher bool            `json:"completed_by_teacher"`
	CancelledBy        *Role           `json:"cancelled_by,omitempty"`
	Notes              string          `json:"notes,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// IsTerminal reports whether no further transition may apply.
func (b *Booking) IsTerminal() bool {
	return b.Status == BookingStatusCompleted || b.Status == BookingStatusCancelled
}

// BookingFilter narrows ListForUser. Zero values mean "any".
type BookingFilter struct {
	Role   Role
	Status string
	When   string // "upcoming" | "past" | ""
	Now    time.Time
}

const (
	WhenUpcoming = "upcoming"
	WhenPast     = "past"
)
