package models

import (
	"time"

	"github.com/google/uuid"
)

// DefaultInitialGrant is the credit balance every new account starts with.
const DefaultInitialGrant = 10

type Account struct {
	ID            uuid.UUID `json:"id"`
	Email         string    `json:"email"`
	Name          string    `json:"name"`
	PasswordHash  string    `json:"-"`
	CreditBalance int       `json:"credit_balance"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
