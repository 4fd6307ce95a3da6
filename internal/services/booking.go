package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/skillswap/backend/internal/ledger"
	"github.com/skillswap/backend/internal/metrics"
	"github.com/skillswap/backend/internal/models"
	"github.com/skillswap/backend/internal/repository"
)

// TxBeginner starts the transaction a lifecycle transition runs in.
// *pgxpool.Pool and *memory.Store both satisfy it.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// BookingRepo is the booking store the state machine needs.
type BookingRepo interface {
	CreateTx(ctx context.Context, tx pgx.Tx, b *models.Booking) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Booking, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Booking, error)
	UpdateTx(ctx context.Context, tx pgx.Tx, b *models.Booking) error
	DeleteTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) error
	ListRequestedByLearnerForUpdate(ctx context.Context, tx pgx.Tx, learnerID uuid.UUID) ([]*models.Booking, error)
	ListForUser(ctx context.Context, userID uuid.UUID, f models.BookingFilter) ([]*models.Booking, error)
}

// SkillLookup resolves the teacher's listing a booking is priced from.
type SkillLookup interface {
	FindForTeacherTx(ctx context.Context, tx pgx.Tx, teacherID uuid.UUID, skillID *uuid.UUID, name string) (*models.SkillListing, error)
}

// CreateBookingInput is a learner's session request. Duration is in hours;
// nil means one hour. CreditsPerHour may be zero when the teacher has a
// listing for the skill.
type CreateBookingInput struct {
	LearnerID      uuid.UUID
	TeacherID      uuid.UUID
	Skill          string
	SkillID        *uuid.UUID
	DateTime       time.Time
	Duration       *decimal.Decimal
	Notes          string
	CreditsPerHour int
}

// BookingService runs the booking lifecycle. Each transition is one
// transaction: the booking row is locked and its status re-read, the
// affected accounts are locked in UUID order, and ledger writes commit
// together with the status change.
type BookingService struct {
	DB       TxBeginner
	Bookings BookingRepo
	Skills   SkillLookup
	Ledger   *ledger.Service
	Logger   *slog.Logger
	Now      func() time.Time
}

func NewBookingService(db TxBeginner, bookings BookingRepo, skills SkillLookup, l *ledger.Service, logger *slog.Logger) *BookingService {
	if logger == nil {
		logger = slog.Default()
	}
	return &BookingService{
		DB:       db,
		Bookings: bookings,
		Skills:   skills,
		Ledger:   l,
		Logger:   logger,
		Now:      func() time.Time { return time.Now().UTC() },
	}
}

// Create debits the learner, logs the lock and inserts a Requested booking.
func (s *BookingService) Create(ctx context.Context, in CreateBookingInput) (b *models.Booking, err error) {
	defer func() { observe("create", err) }()

	if in.LearnerID == uuid.Nil || in.TeacherID == uuid.Nil || in.Skill == "" || in.DateTime.IsZero() {
		return nil, ErrMissingFields
	}
	if in.LearnerID == in.TeacherID {
		return nil, ErrSelfBooking
	}
	duration := DefaultDuration
	if in.Duration != nil {
		duration = *in.Duration
	}
	if !duration.IsPositive() || duration.GreaterThan(maxDuration) {
		return nil, ErrInvalidDuration
	}

	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	accounts, err := s.Ledger.LockAccounts(ctx, tx, in.LearnerID, in.TeacherID)
	if err != nil {
		return nil, err
	}
	if _, ok := accounts[in.TeacherID]; !ok {
		return nil, ErrTeacherNotFound
	}
	if _, ok := accounts[in.LearnerID]; !ok {
		return nil, ErrLearnerNotFound
	}

	listing, err := s.Skills.FindForTeacherTx(ctx, tx, in.TeacherID, in.SkillID, in.Skill)
	if errors.Is(err, repository.ErrNotFound) {
		listing, err = nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find skill listing: %w", err)
	}
	rate, err := ResolveRate(listing, in.CreditsPerHour)
	if err != nil {
		return nil, err
	}
	amount, err := Price(rate, duration)
	if err != nil {
		return nil, err
	}

	if _, err := s.Ledger.Debit(ctx, tx, in.LearnerID, amount); err != nil {
		if errors.Is(err, ledger.ErrInsufficientFunds) {
			return nil, ErrInsufficientCredits
		}
		return nil, fmt.Errorf("debit learner: %w", err)
	}

	b = &models.Booking{
		ID:           uuid.New(),
		TeacherID:    in.TeacherID,
		LearnerID:    in.LearnerID,
		Skill:        in.Skill,
		Status:       models.BookingStatusRequested,
		CreditAmount: amount,
		DateTime:     in.DateTime.UTC(),
		Duration:     duration,
		Notes:        in.Notes,
	}
	if listing != nil {
		b.SkillID = &listing.ID
	}
	if err := s.Bookings.CreateTx(ctx, tx, b); err != nil {
		return nil, fmt.Errorf("insert booking: %w", err)
	}
	if _, err := s.Ledger.Record(ctx, tx, in.LearnerID, models.CreditEntryLock, -amount, &b.ID,
		fmt.Sprintf("Locked %d credits for session request", amount)); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	s.Logger.Info("booking requested", "booking_id", b.ID, "learner_id", b.LearnerID, "teacher_id", b.TeacherID, "credits", amount)
	return b, nil
}

// Accept confirms a Requested booking. Only the teacher may accept.
func (s *BookingService) Accept(ctx context.Context, bookingID, actorID uuid.UUID) (*models.Booking, error) {
	return s.transition(ctx, "accept", bookingID, actorID, func(_ context.Context, _ pgx.Tx, b *models.Booking) error {
		if actorID != b.TeacherID {
			return ErrUnauthorized
		}
		if b.Status != models.BookingStatusRequested {
			return ErrInvalidState
		}
		b.Status = models.BookingStatusConfirmed
		return nil
	})
}

// Reject refunds the learner and cancels a Requested booking. Only the
// teacher may reject.
func (s *BookingService) Reject(ctx context.Context, bookingID, actorID uuid.UUID) (*models.Booking, error) {
	return s.transition(ctx, "reject", bookingID, actorID, func(ctx context.Context, tx pgx.Tx, b *models.Booking) error {
		if actorID != b.TeacherID {
			return ErrUnauthorized
		}
		if b.Status != models.BookingStatusRequested {
			return ErrInvalidState
		}
		if err := s.refund(ctx, tx, b, "Credits refunded after session request rejection"); err != nil {
			return err
		}
		b.Status = models.BookingStatusCancelled
		b.CancelledBy = roleRef(models.RoleTeacher)
		return nil
	})
}

// Cancel refunds the learner and cancels a Requested or Confirmed booking.
// Only the learner may cancel.
func (s *BookingService) Cancel(ctx context.Context, bookingID, actorID uuid.UUID) (*models.Booking, error) {
	return s.transition(ctx, "cancel", bookingID, actorID, func(ctx context.Context, tx pgx.Tx, b *models.Booking) error {
		if actorID != b.LearnerID {
			return ErrUnauthorized
		}
		switch b.Status {
		case models.BookingStatusCompleted:
			return ErrAlreadyCompleted
		case models.BookingStatusCancelled:
			return ErrInvalidState
		}
		if err := s.refund(ctx, tx, b, "Credits refunded after booking cancellation"); err != nil {
			return err
		}
		b.Status = models.BookingStatusCancelled
		b.CancelledBy = roleRef(models.RoleLearner)
		return nil
	})
}

// Complete records the caller's sign-off for role as. When both parties
// have signed off the locked credits move to the teacher. Signing off twice
// for the same role fails with ErrInvalidState.
func (s *BookingService) Complete(ctx context.Context, bookingID, actorID uuid.UUID, as models.Role) (*models.Booking, error) {
	return s.transition(ctx, "complete", bookingID, actorID, func(ctx context.Context, tx pgx.Tx, b *models.Booking) error {
		switch as {
		case models.RoleLearner:
			if actorID != b.LearnerID {
				return ErrUnauthorized
			}
		case models.RoleTeacher:
			if actorID != b.TeacherID {
				return ErrUnauthorized
			}
		default:
			return fmt.Errorf("%w: role must be learner or teacher", ErrValidation)
		}
		if b.Status != models.BookingStatusConfirmed {
			return ErrInvalidState
		}

		if as == models.RoleLearner {
			if b.CompletedByLearner {
				return ErrInvalidState
			}
			b.CompletedByLearner = true
		} else {
			if b.CompletedByTeacher {
				return ErrInvalidState
			}
			b.CompletedByTeacher = true
		}
		if !b.CompletedByLearner || !b.CompletedByTeacher {
			return nil
		}
		return s.settle(ctx, tx, b)
	})
}

// Get returns a booking the caller takes part in.
func (s *BookingService) Get(ctx context.Context, bookingID, userID uuid.UUID) (*models.Booking, error) {
	b, err := s.Bookings.GetByID(ctx, bookingID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, err
	}
	if b.LearnerID != userID && b.TeacherID != userID {
		return nil, ErrUnauthorized
	}
	return b, nil
}

// List returns the user's bookings narrowed by f. f.Now defaults to the
// service clock.
func (s *BookingService) List(ctx context.Context, userID uuid.UUID, f models.BookingFilter) ([]*models.Booking, error) {
	if f.Now.IsZero() {
		f.Now = s.Now()
	}
	return s.Bookings.ListForUser(ctx, userID, f)
}

// IncomingRequests lists Requested bookings where the user teaches.
func (s *BookingService) IncomingRequests(ctx context.Context, userID uuid.UUID) ([]*models.Booking, error) {
	return s.List(ctx, userID, models.BookingFilter{Role: models.RoleTeacher, Status: models.BookingStatusRequested})
}

// MyRequests lists Requested bookings the user made as learner.
func (s *BookingService) MyRequests(ctx context.Context, userID uuid.UUID) ([]*models.Booking, error) {
	return s.List(ctx, userID, models.BookingFilter{Role: models.RoleLearner, Status: models.BookingStatusRequested})
}

// Upcoming lists Confirmed sessions that have not started, soonest first.
func (s *BookingService) Upcoming(ctx context.Context, userID uuid.UUID) ([]*models.Booking, error) {
	return s.List(ctx, userID, models.BookingFilter{Status: models.BookingStatusConfirmed, When: models.WhenUpcoming})
}

// Completed lists the user's finished sessions.
func (s *BookingService) Completed(ctx context.Context, userID uuid.UUID) ([]*models.Booking, error) {
	return s.List(ctx, userID, models.BookingFilter{Status: models.BookingStatusCompleted})
}

// transition locks the booking, applies fn and writes the result back in
// one transaction. fn sees the status as it is under the lock.
func (s *BookingService) transition(ctx context.Context, name string, bookingID, actorID uuid.UUID, fn func(context.Context, pgx.Tx, *models.Booking) error) (b *models.Booking, err error) {
	defer func() { observe(name, err) }()

	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	b, err = s.Bookings.GetByIDForUpdate(ctx, tx, bookingID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, err
	}
	from := b.Status
	if err := fn(ctx, tx, b); err != nil {
		return nil, err
	}
	if err := s.Bookings.UpdateTx(ctx, tx, b); err != nil {
		return nil, fmt.Errorf("update booking: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	s.Logger.Info("booking "+name, "booking_id", b.ID, "actor_id", actorID, "from", from, "to", b.Status)
	return b, nil
}

// refund returns the booking's locked credits to the learner.
func (s *BookingService) refund(ctx context.Context, tx pgx.Tx, b *models.Booking, description string) error {
	if _, err := s.Ledger.Credit(ctx, tx, b.LearnerID, b.CreditAmount); err != nil {
		if errors.Is(err, ledger.ErrAccountNotFound) {
			return ErrLearnerNotFound
		}
		return fmt.Errorf("refund learner: %w", err)
	}
	_, err := s.Ledger.Record(ctx, tx, b.LearnerID, models.CreditEntryRefund, b.CreditAmount, &b.ID, description)
	return err
}

// settle pays the teacher. The learner's credits already left at lock time,
// so the learner side is a log entry only.
func (s *BookingService) settle(ctx context.Context, tx pgx.Tx, b *models.Booking) error {
	if _, err := s.Ledger.LockAccounts(ctx, tx, b.LearnerID, b.TeacherID); err != nil {
		return err
	}
	if _, err := s.Ledger.Credit(ctx, tx, b.TeacherID, b.CreditAmount); err != nil {
		if errors.Is(err, ledger.ErrAccountNotFound) {
			return ErrTeacherNotFound
		}
		return fmt.Errorf("pay teacher: %w", err)
	}
	if _, err := s.Ledger.Record(ctx, tx, b.LearnerID, models.CreditEntryTransfer, -b.CreditAmount, &b.ID,
		fmt.Sprintf("Paid %d credits for %s session", b.CreditAmount, b.Skill)); err != nil {
		return err
	}
	if _, err := s.Ledger.Record(ctx, tx, b.TeacherID, models.CreditEntryTransfer, b.CreditAmount, &b.ID,
		fmt.Sprintf("Earned %d credits from %s session", b.CreditAmount, b.Skill)); err != nil {
		return err
	}
	b.Status = models.BookingStatusCompleted
	return nil
}

func observe(transition string, err error) {
	outcome := metrics.OutcomeOK
	if err != nil {
		outcome = metrics.OutcomeRejected
		if KindOf(err) == KindInternal {
			outcome = metrics.OutcomeError
		}
	}
	metrics.BookingTransitions.WithLabelValues(transition, outcome).Inc()
}

func roleRef(r models.Role) *models.Role { return &r }
