package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/skillswap/backend/internal/metrics"
	"github.com/skillswap/backend/internal/models"
)

// SweepResult summarises one reconciliation pass over a learner's
// outstanding requests.
type SweepResult struct {
	Count         int         `json:"count"`
	TotalRefunded int         `json:"total_refunded"`
	BookingIDs    []uuid.UUID `json:"booking_ids"`
}

// CleanupOrphaned refunds and deletes the learner's Requested bookings whose
// teacher account no longer exists. Running it again refunds nothing, since
// the qualifying rows are gone.
func (s *BookingService) CleanupOrphaned(ctx context.Context, learnerID uuid.UUID) (*SweepResult, error) {
	res, err := s.sweep(ctx, learnerID, func(ctx context.Context, tx pgx.Tx, b *models.Booking, teacherExists bool) (bool, error) {
		if teacherExists {
			return false, nil
		}
		if err := s.refund(ctx, tx, b, "Credits refunded for invalid booking"); err != nil {
			return false, err
		}
		if err := s.Bookings.DeleteTx(ctx, tx, b.ID); err != nil {
			return false, fmt.Errorf("delete orphaned booking %s: %w", b.ID, err)
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	if res.Count > 0 {
		metrics.OrphansRefunded.Add(float64(res.Count))
		s.Logger.Info("orphaned bookings refunded", "learner_id", learnerID, "count", res.Count, "credits", res.TotalRefunded)
	}
	return res, nil
}

// ResetUserBookings refunds every Requested booking the learner holds and
// marks it Cancelled by the learner. Rows are kept.
func (s *BookingService) ResetUserBookings(ctx context.Context, learnerID uuid.UUID) (*SweepResult, error) {
	res, err := s.sweep(ctx, learnerID, func(ctx context.Context, tx pgx.Tx, b *models.Booking, _ bool) (bool, error) {
		if err := s.refund(ctx, tx, b, "Credits refunded during reset"); err != nil {
			return false, err
		}
		b.Status = models.BookingStatusCancelled
		b.CancelledBy = roleRef(models.RoleLearner)
		if err := s.Bookings.UpdateTx(ctx, tx, b); err != nil {
			return false, fmt.Errorf("cancel booking %s: %w", b.ID, err)
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	if res.Count > 0 {
		s.Logger.Info("requested bookings reset", "learner_id", learnerID, "count", res.Count, "credits", res.TotalRefunded)
	}
	return res, nil
}

// sweep locks the learner's Requested bookings and the accounts involved,
// then hands each booking to fn. Everything commits together.
func (s *BookingService) sweep(ctx context.Context, learnerID uuid.UUID, fn func(context.Context, pgx.Tx, *models.Booking, bool) (bool, error)) (res *SweepResult, err error) {
	defer func() { observe("sweep", err) }()

	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	bookings, err := s.Bookings.ListRequestedByLearnerForUpdate(ctx, tx, learnerID)
	if err != nil {
		return nil, fmt.Errorf("list requested bookings: %w", err)
	}
	res = &SweepResult{BookingIDs: []uuid.UUID{}}
	if len(bookings) == 0 {
		return res, tx.Commit(ctx)
	}

	ids := []uuid.UUID{learnerID}
	for _, b := range bookings {
		ids = append(ids, b.TeacherID)
	}
	accounts, err := s.Ledger.LockAccounts(ctx, tx, ids...)
	if err != nil {
		return nil, err
	}
	if _, ok := accounts[learnerID]; !ok {
		return nil, ErrLearnerNotFound
	}

	for _, b := range bookings {
		_, teacherExists := accounts[b.TeacherID]
		done, err := fn(ctx, tx, b, teacherExists)
		if err != nil {
			return nil, err
		}
		if done {
			res.Count++
			res.TotalRefunded += b.CreditAmount
			res.BookingIDs = append(res.BookingIDs, b.ID)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return res, nil
}
