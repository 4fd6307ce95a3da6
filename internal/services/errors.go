package services

import "errors"

// Booking lifecycle errors. Handlers map them to HTTP statuses via KindOf.
var (
	ErrMissingFields       = errors.New("missing required fields")
	ErrInvalidDuration     = errors.New("duration must be a positive number of hours that prices to whole credits")
	ErrSelfBooking         = errors.New("cannot book a session with yourself")
	ErrRateMismatch        = errors.New("credits per hour does not match the teacher's listed rate")
	ErrTeacherNotFound     = errors.New("teacher not found")
	ErrLearnerNotFound     = errors.New("learner not found")
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrBookingNotFound     = errors.New("booking not found")
	ErrUnauthorized        = errors.New("not authorized for this booking")
	ErrInvalidState        = errors.New("booking is not in a valid state for this action")
	ErrAlreadyCompleted    = errors.New("booking is already completed")
)

// Error kinds reported to clients alongside the message.
const (
	KindValidation          = "validation"
	KindSelfBooking         = "self_booking"
	KindRateMismatch        = "rate_mismatch"
	KindTeacherNotFound     = "teacher_not_found"
	KindLearnerNotFound     = "learner_not_found"
	KindInsufficientCredits = "insufficient_credits"
	KindNotFound            = "not_found"
	KindUnauthorized        = "unauthorized"
	KindInvalidState        = "invalid_state"
	KindAlreadyCompleted    = "already_completed"
	KindInternal            = "internal"
)

var kinds = []struct {
	err  error
	kind string
}{
	{ErrMissingFields, KindValidation},
	{ErrInvalidDuration, KindValidation},
	{ErrValidation, KindValidation},
	{ErrSelfBooking, KindSelfBooking},
	{ErrRateMismatch, KindRateMismatch},
	{ErrTeacherNotFound, KindTeacherNotFound},
	{ErrLearnerNotFound, KindLearnerNotFound},
	{ErrInsufficientCredits, KindInsufficientCredits},
	{ErrBookingNotFound, KindNotFound},
	{ErrUnauthorized, KindUnauthorized},
	{ErrInvalidState, KindInvalidState},
	{ErrAlreadyCompleted, KindAlreadyCompleted},
}

// KindOf returns the stable kind string for err, or KindInternal when err is
// not one of the lifecycle errors.
func KindOf(err error) string {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}
