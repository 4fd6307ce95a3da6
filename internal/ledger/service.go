package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/skillswap/backend/internal/metrics"
	"github.com/skillswap/backend/internal/models"
	"github.com/skillswap/backend/internal/repository"
)

var (
	// ErrInsufficientFunds is returned when the account balance is too low for a debit.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrAccountNotFound is returned when the account row does not exist.
	ErrAccountNotFound = errors.New("account not found")
	// ErrInvalidAmount is returned for non-positive debit or credit amounts.
	ErrInvalidAmount = errors.New("amount must be positive")
)

// AccountRepo is the minimal account repository interface for the ledger.
type AccountRepo interface {
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Account, error)
	DeductCredits(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount int) (newBalance int, err error)
	AddCredits(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount int) (newBalance int, err error)
}

// CreditRepo is the append-only transaction log.
type CreditRepo interface {
	CreateTx(ctx context.Context, tx pgx.Tx, c *models.CreditLedger) error
}

// Service owns balances and the transaction log. Every method runs inside
// the caller's transaction so a lifecycle transition commits or rolls back
// as one unit.
type Service struct {
	Accounts AccountRepo
	Credits  CreditRepo
}

func NewService(accounts AccountRepo, credits CreditRepo) *Service {
	return &Service{Accounts: accounts, Credits: credits}
}

// LockAccounts takes row locks on the given accounts in UUID order to avoid
// deadlock between transitions touching the same pair. Accounts that no
// longer exist are left out of the result.
func (s *Service) LockAccounts(ctx context.Context, tx pgx.Tx, ids ...uuid.UUID) (map[uuid.UUID]*models.Account, error) {
	uniq := make([]uuid.UUID, 0, len(ids))
	seen := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			uniq = append(uniq, id)
		}
	}
	sort.Slice(uniq, func(i, j int) bool { return uniq[i].String() < uniq[j].String() })

	out := make(map[uuid.UUID]*models.Account, len(uniq))
	for _, id := range uniq {
		acc, err := s.Accounts.GetByIDForUpdate(ctx, tx, id)
		if errors.Is(err, repository.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("lock account %s: %w", id, err)
		}
		out[id] = acc
	}
	return out, nil
}

// Debit lowers the balance by amount. The sufficiency check and the write
// happen in one conditional UPDATE against the stored balance.
func (s *Service) Debit(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, amount int) (int, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	acc, err := s.Accounts.GetByIDForUpdate(ctx, tx, accountID)
	if errors.Is(err, repository.ErrNotFound) {
		return 0, ErrAccountNotFound
	}
	if err != nil {
		return 0, err
	}
	if acc.CreditBalance < amount {
		return 0, ErrInsufficientFunds
	}
	newBalance, err := s.Accounts.DeductCredits(ctx, tx, accountID, amount)
	if errors.Is(err, repository.ErrNotFound) {
		return 0, ErrInsufficientFunds
	}
	return newBalance, err
}

// Credit raises the balance by amount.
func (s *Service) Credit(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, amount int) (int, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	newBalance, err := s.Accounts.AddCredits(ctx, tx, accountID, amount)
	if errors.Is(err, repository.ErrNotFound) {
		return 0, ErrAccountNotFound
	}
	return newBalance, err
}

// Record appends one immutable ledger entry. amount is signed from the
// owning account's point of view.
func (s *Service) Record(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, entryType string, amount int, bookingID *uuid.UUID, description string) (*models.CreditLedger, error) {
	entry := &models.CreditLedger{
		ID:          uuid.New(),
		AccountID:   accountID,
		BookingID:   bookingID,
		EntryType:   entryType,
		Amount:      amount,
		Description: description,
	}
	if err := s.Credits.CreateTx(ctx, tx, entry); err != nil {
		return nil, fmt.Errorf("record %s entry: %w", entryType, err)
	}
	if amount < 0 {
		amount = -amount
	}
	metrics.CreditsMoved.WithLabelValues(entryType).Add(float64(amount))
	return entry, nil
}
