package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skillswap/backend/internal/models"
	"github.com/skillswap/backend/internal/repository"
)

func TestRollbackRestoresSnapshot(t *testing.T) {
	ctx := context.Background()
	s := New()
	id := uuid.New()
	s.Seed(models.Account{ID: id, Email: "a@example.com", CreditBalance: 10})

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	_, err = s.Accounts.DeductCredits(ctx, tx, id, 4)
	require.NoError(t, err)
	require.NoError(t, s.Credits.CreateTx(ctx, tx, &models.CreditLedger{ID: uuid.New(), AccountID: id, EntryType: models.CreditEntryLock, Amount: -4}))
	require.NoError(t, s.Bookings.CreateTx(ctx, tx, &models.Booking{ID: uuid.New(), LearnerID: id, Status: models.BookingStatusRequested}))
	require.NoError(t, tx.Rollback(ctx))

	a, err := s.Accounts.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 10, a.CreditBalance)
	assert.Empty(t, s.Credits.All())
	list, err := s.Bookings.ListForUser(ctx, id, models.BookingFilter{})
	require.NoError(t, err)
	assert.Empty(t, list)

	assert.ErrorIs(t, tx.Rollback(ctx), pgx.ErrTxClosed)
}

func TestCommitKeepsWritesAndLateRollbackIsNoop(t *testing.T) {
	ctx := context.Background()
	s := New()
	id := uuid.New()
	s.Seed(models.Account{ID: id, Email: "a@example.com", CreditBalance: 10})

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	bal, err := s.Accounts.AddCredits(ctx, tx, id, 5)
	require.NoError(t, err)
	assert.Equal(t, 15, bal)
	require.NoError(t, tx.Commit(ctx))
	assert.ErrorIs(t, tx.Rollback(ctx), pgx.ErrTxClosed)

	a, err := s.Accounts.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 15, a.CreditBalance)
}

func TestTransactionsSerialize(t *testing.T) {
	ctx := context.Background()
	s := New()
	tx, err := s.Begin(ctx)
	require.NoError(t, err)

	second := make(chan struct{})
	go func() {
		tx2, err := s.Begin(ctx)
		if err == nil {
			_ = tx2.Commit(ctx)
		}
		close(second)
	}()

	select {
	case <-second:
		t.Fatal("second transaction began while the first was open")
	case <-time.After(20 * time.Millisecond):
	}
	require.NoError(t, tx.Commit(ctx))
	select {
	case <-second:
	case <-time.After(time.Second):
		t.Fatal("second transaction never began")
	}
}

func TestAccounts(t *testing.T) {
	ctx := context.Background()
	s := New()
	id := uuid.New()

	tx, _ := s.Begin(ctx)
	require.NoError(t, s.Accounts.CreateTx(ctx, tx, &models.Account{ID: id, Email: "Dup@Example.com", CreditBalance: 3}))
	err := s.Accounts.CreateTx(ctx, tx, &models.Account{ID: uuid.New(), Email: "dup@example.com"})
	var pgErr *pgconn.PgError
	require.True(t, errors.As(err, &pgErr))
	assert.Equal(t, "23505", pgErr.Code)

	_, err = s.Accounts.DeductCredits(ctx, tx, id, 4)
	assert.ErrorIs(t, err, repository.ErrNotFound, "overdraw must fail the conditional debit")
	require.NoError(t, tx.Commit(ctx))

	a, err := s.Accounts.GetByEmail(ctx, "dup@example.com")
	require.NoError(t, err)
	assert.Equal(t, id, a.ID)

	require.NoError(t, s.Skills.Create(ctx, &models.SkillListing{ID: uuid.New(), TeacherID: id, SkillName: "Chess"}))
	require.NoError(t, s.Accounts.Delete(ctx, id))
	assert.ErrorIs(t, s.Accounts.Delete(ctx, id), repository.ErrNotFound)
	skills, err := s.Skills.ListByTeacher(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, skills, "listings go with the account")
}

func TestCreditSumSkipsSettlementRecords(t *testing.T) {
	ctx := context.Background()
	s := New()
	id := uuid.New()
	tx, _ := s.Begin(ctx)
	for _, e := range []struct {
		kind   string
		amount int
	}{
		{models.CreditEntryInitial, 10},
		{models.CreditEntryLock, -3},
		{models.CreditEntryTransfer, -3},
		{models.CreditEntryTransfer, 2},
		{models.CreditEntryRefund, 1},
	} {
		require.NoError(t, s.Credits.CreateTx(ctx, tx, &models.CreditLedger{ID: uuid.New(), AccountID: id, EntryType: e.kind, Amount: e.amount}))
	}
	require.NoError(t, tx.Commit(ctx))

	sum, err := s.Credits.SumByAccountID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 10, sum)

	list, err := s.Credits.ListByAccountID(ctx, id)
	require.NoError(t, err)
	require.Len(t, list, 5)
	assert.Equal(t, models.CreditEntryRefund, list[0].EntryType, "newest first")
}

func TestBookingQueries(t *testing.T) {
	ctx := context.Background()
	s := New()
	learner, teacher, gone := uuid.New(), uuid.New(), uuid.New()
	s.Seed(models.Account{ID: learner, Email: "l@example.com"})
	s.Seed(models.Account{ID: teacher, Email: "t@example.com"})
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	tx, _ := s.Begin(ctx)
	soon := &models.Booking{ID: uuid.New(), LearnerID: learner, TeacherID: teacher, Status: models.BookingStatusConfirmed, DateTime: now.Add(time.Hour)}
	later := &models.Booking{ID: uuid.New(), LearnerID: learner, TeacherID: teacher, Status: models.BookingStatusConfirmed, DateTime: now.Add(48 * time.Hour)}
	past := &models.Booking{ID: uuid.New(), LearnerID: learner, TeacherID: teacher, Status: models.BookingStatusCompleted, DateTime: now.Add(-time.Hour)}
	orphan := &models.Booking{ID: uuid.New(), LearnerID: learner, TeacherID: gone, Status: models.BookingStatusRequested, DateTime: now.Add(time.Hour)}
	for _, b := range []*models.Booking{later, soon, past, orphan} {
		require.NoError(t, s.Bookings.CreateTx(ctx, tx, b))
	}
	require.NoError(t, tx.Commit(ctx))

	up, err := s.Bookings.ListForUser(ctx, learner, models.BookingFilter{Status: models.BookingStatusConfirmed, When: models.WhenUpcoming, Now: now})
	require.NoError(t, err)
	require.Len(t, up, 2)
	assert.Equal(t, soon.ID, up[0].ID, "upcoming sorts soonest first")

	asTeacher, err := s.Bookings.ListForUser(ctx, teacher, models.BookingFilter{Role: models.RoleTeacher})
	require.NoError(t, err)
	assert.Len(t, asTeacher, 3)
	asLearner, err := s.Bookings.ListForUser(ctx, teacher, models.BookingFilter{Role: models.RoleLearner})
	require.NoError(t, err)
	assert.Empty(t, asLearner)

	ids, err := s.Bookings.ListLearnersWithOrphans(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{learner}, ids)

	// Once the learner is gone too there is no one to refund.
	require.NoError(t, s.Accounts.Delete(ctx, learner))
	ids, err = s.Bookings.ListLearnersWithOrphans(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
}
