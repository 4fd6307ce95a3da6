package auth

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/skillswap/backend/internal/models"
)

// Repository is the account store the identity service needs.
// repository.AccountRepo and memory.AccountRepo both satisfy it.
type Repository interface {
	CreateTx(ctx context.Context, tx pgx.Tx, a *models.Account) error
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
