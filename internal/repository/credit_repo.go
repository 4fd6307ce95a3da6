package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/skillswap/backend/internal/models"
)

// CreditRepo persists the append-only credit ledger. There is no update or
// delete path.
type CreditRepo struct {
	pool *pgxpool.Pool
}

func NewCreditRepo(pool *pgxpool.Pool) *CreditRepo {
	return &CreditRepo{pool: pool}
}

// CreateTx inserts a ledger entry inside the given transaction.
func (r *CreditRepo) CreateTx(ctx context.Context, tx pgx.Tx, c *models.CreditLedger) error {
	return tx.QueryRow(ctx, `
		INSERT INTO credit_ledger (id, account_id, booking_id, entry_type, amount, description)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`, c.ID, c.AccountID, c.BookingID, c.EntryType, c.Amount, c.Description).Scan(&c.CreatedAt)
}

func (r *CreditRepo) ListByAccountID(ctx context.Context, accountID uuid.UUID) ([]*models.CreditLedger, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, account_id, booking_id, entry_type, amount, description, created_at
		FROM credit_ledger WHERE account_id = $1 ORDER BY created_at DESC
	`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.CreditLedger
	for rows.Next() {
		var c models.CreditLedger
		if err := rows.Scan(&c.ID, &c.AccountID, &c.BookingID, &c.EntryType, &c.Amount, &c.Description, &c.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, &c)
	}
	return list, rows.Err()
}

// SumByAccountID returns the signed sum of the account's balance-moving
// entries. A negative transfer settles credits that already left with the
// lock entry, so it is not counted again.
func (r *CreditRepo) SumByAccountID(ctx context.Context, accountID uuid.UUID) (int, error) {
	var total int
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0)::int FROM credit_ledger
		WHERE account_id = $1 AND NOT (entry_type = 'transfer' AND amount < 0)
	`, accountID).Scan(&total)
	return total, err
}
