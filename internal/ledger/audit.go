package ledger

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/skillswap/backend/internal/models"
	"github.com/skillswap/backend/internal/repository"
)

// AuditAccountRepo reads the stored balance outside a transaction.
type AuditAccountRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Account, error)
}

// AuditCreditRepo reads the transaction log.
type AuditCreditRepo interface {
	ListByAccountID(ctx context.Context, accountID uuid.UUID) ([]*models.CreditLedger, error)
	SumByAccountID(ctx context.Context, accountID uuid.UUID) (int, error)
}

// AuditReport compares the stored balance with the signed sum of the log.
type AuditReport struct {
	AccountID  uuid.UUID `json:"account_id"`
	Balance    int       `json:"balance"`
	LedgerSum  int       `json:"ledger_sum"`
	Consistent bool      `json:"consistent"`
}

type Auditor struct {
	Accounts AuditAccountRepo
	Credits  AuditCreditRepo
}

func NewAuditor(accounts AuditAccountRepo, credits AuditCreditRepo) *Auditor {
	return &Auditor{Accounts: accounts, Credits: credits}
}

// Audit checks balance == sum(entries). The Initial grant is itself an entry.
func (a *Auditor) Audit(ctx context.Context, accountID uuid.UUID) (*AuditReport, error) {
	acc, err := a.Accounts.GetByID(ctx, accountID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	sum, err := a.Credits.SumByAccountID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return &AuditReport{
		AccountID:  accountID,
		Balance:    acc.CreditBalance,
		LedgerSum:  sum,
		Consistent: acc.CreditBalance == sum,
	}, nil
}

// Transactions returns the account's ledger entries, newest first.
func (a *Auditor) Transactions(ctx context.Context, accountID uuid.UUID) ([]*models.CreditLedger, error) {
	return a.Credits.ListByAccountID(ctx, accountID)
}
