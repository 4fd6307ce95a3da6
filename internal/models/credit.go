package models

import (
	"time"

	"github.com/google/uuid"
)

// Credit ledger entry types. Amounts are signed from the owning account's
// point of view: Lock and the learner side of Transfer are negative.
const (
	CreditEntryInitial  = "initial"
	CreditEntryLock     = "lock"
	CreditEntryTransfer = "transfer"
	CreditEntryRefund   = "refund"
)

type CreditLedger struct {
	ID          uuid.UUID  `json:"id"`
	AccountID   uuid.UUID  `json:"account_id"`
	BookingID   *uuid.UUID `json:"booking_id,omitempty"`
	EntryType   string     `json:"entry_type"`
	Amount      int        `json:"amount"`
	Description string     `json:"description"`
	CreatedAt   time.Time  `json:"created_at"`
}
