package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/skillswap/backend/internal/models"
	"github.com/skillswap/backend/internal/repository"
)

// ---------------------------------------------------------------------------
// In-memory mocks for AccountRepo and CreditRepo.
// ---------------------------------------------------------------------------

type mockAccount struct {
	mu       sync.Mutex
	accounts map[uuid.UUID]*models.Account
	locked   []uuid.UUID
}

func newMockAccount(accs ...*models.Account) *mockAccount {
	m := &mockAccount{accounts: make(map[uuid.UUID]*models.Account)}
	for _, a := range accs {
		cp := *a
		m.accounts[a.ID] = &cp
	}
	return m
}

func (m *mockAccount) GetByIDForUpdate(_ context.Context, _ pgx.Tx, id uuid.UUID) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locked = append(m.locked, id)
	a, ok := m.accounts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *mockAccount) DeductCredits(_ context.Context, _ pgx.Tx, id uuid.UUID, amount int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok || a.CreditBalance < amount {
		return 0, repository.ErrNotFound
	}
	a.CreditBalance -= amount
	return a.CreditBalance, nil
}

func (m *mockAccount) AddCredits(_ context.Context, _ pgx.Tx, id uuid.UUID, amount int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return 0, repository.ErrNotFound
	}
	a.CreditBalance += amount
	return a.CreditBalance, nil
}

func (m *mockAccount) GetByID(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	return m.GetByIDForUpdate(ctx, nil, id)
}

func (m *mockAccount) balance(id uuid.UUID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.accounts[id].CreditBalance
}

// ---

type mockCredit struct {
	mu      sync.Mutex
	entries []*models.CreditLedger
	err     error
}

func (m *mockCredit) CreateTx(_ context.Context, _ pgx.Tx, c *models.CreditLedger) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	cp := *c
	m.entries = append(m.entries, &cp)
	return nil
}

func (m *mockCredit) ListByAccountID(_ context.Context, accountID uuid.UUID) ([]*models.CreditLedger, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.CreditLedger
	for i := len(m.entries) - 1; i >= 0; i-- {
		if m.entries[i].AccountID == accountID {
			out = append(out, m.entries[i])
		}
	}
	return out, nil
}

func (m *mockCredit) SumByAccountID(_ context.Context, accountID uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, e := range m.entries {
		if e.AccountID != accountID || (e.EntryType == models.CreditEntryTransfer && e.Amount < 0) {
			continue
		}
		total += e.Amount
	}
	return total, nil
}

func acct(id uuid.UUID, balance int) *models.Account {
	return &models.Account{ID: id, CreditBalance: balance}
}

// ---------------------------------------------------------------------------
// Debit / Credit
// ---------------------------------------------------------------------------

func TestDebit(t *testing.T) {
	id := uuid.New()
	accounts := newMockAccount(acct(id, 10))
	svc := NewService(accounts, &mockCredit{})
	ctx := context.Background()

	got, err := svc.Debit(ctx, nil, id, 4)
	if err != nil {
		t.Fatalf("Debit: %v", err)
	}
	if got != 6 || accounts.balance(id) != 6 {
		t.Errorf("balance after debit: got %d (stored %d), want 6", got, accounts.balance(id))
	}

	if _, err := svc.Debit(ctx, nil, id, 7); !errors.Is(err, ErrInsufficientFunds) {
		t.Errorf("overdraw: expected ErrInsufficientFunds, got %v", err)
	}
	if accounts.balance(id) != 6 {
		t.Errorf("failed debit changed balance to %d", accounts.balance(id))
	}

	// Exact balance is allowed.
	if _, err := svc.Debit(ctx, nil, id, 6); err != nil {
		t.Errorf("debit of full balance: %v", err)
	}

	if _, err := svc.Debit(ctx, nil, id, 0); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("zero debit: expected ErrInvalidAmount, got %v", err)
	}
	if _, err := svc.Debit(ctx, nil, uuid.New(), 1); !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("missing account: expected ErrAccountNotFound, got %v", err)
	}
}

func TestCredit(t *testing.T) {
	id := uuid.New()
	accounts := newMockAccount(acct(id, 0))
	svc := NewService(accounts, &mockCredit{})
	ctx := context.Background()

	if got, err := svc.Credit(ctx, nil, id, 5); err != nil || got != 5 {
		t.Fatalf("Credit: got %d, %v", got, err)
	}
	if _, err := svc.Credit(ctx, nil, id, -1); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("negative credit: expected ErrInvalidAmount, got %v", err)
	}
	if _, err := svc.Credit(ctx, nil, uuid.New(), 1); !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("missing account: expected ErrAccountNotFound, got %v", err)
	}
}

// ---------------------------------------------------------------------------
// LockAccounts
// ---------------------------------------------------------------------------

func TestLockAccounts_OrderAndMissing(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	missing := uuid.New()
	accounts := newMockAccount(acct(a, 1), acct(b, 2))
	svc := NewService(accounts, &mockCredit{})

	got, err := svc.LockAccounts(context.Background(), nil, b, missing, a, b)
	if err != nil {
		t.Fatalf("LockAccounts: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("locked accounts: got %d, want 2", len(got))
	}
	if _, ok := got[missing]; ok {
		t.Error("missing account should be left out")
	}

	if len(accounts.locked) != 3 {
		t.Fatalf("lock calls: got %d, want 3 (duplicates removed)", len(accounts.locked))
	}
	for i := 1; i < len(accounts.locked); i++ {
		if accounts.locked[i-1].String() >= accounts.locked[i].String() {
			t.Errorf("locks not in UUID order: %v", accounts.locked)
		}
	}
}

// ---------------------------------------------------------------------------
// Record / Audit
// ---------------------------------------------------------------------------

func TestRecordAndAudit(t *testing.T) {
	learner, teacher := uuid.New(), uuid.New()
	booking := uuid.New()
	accounts := newMockAccount(acct(learner, 10), acct(teacher, 10))
	credits := &mockCredit{}
	svc := NewService(accounts, credits)
	auditor := NewAuditor(accounts, credits)
	ctx := context.Background()

	for _, id := range []uuid.UUID{learner, teacher} {
		if _, err := svc.Record(ctx, nil, id, models.CreditEntryInitial, 10, nil, "Initial credits"); err != nil {
			t.Fatalf("Record initial: %v", err)
		}
	}

	// Lock, then settle: the learner's negative transfer does not move the balance again.
	if _, err := svc.Debit(ctx, nil, learner, 4); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Record(ctx, nil, learner, models.CreditEntryLock, -4, &booking, "lock"); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Credit(ctx, nil, teacher, 4); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Record(ctx, nil, learner, models.CreditEntryTransfer, -4, &booking, "paid"); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Record(ctx, nil, teacher, models.CreditEntryTransfer, 4, &booking, "earned"); err != nil {
		t.Fatal(err)
	}

	for id, want := range map[uuid.UUID]int{learner: 6, teacher: 14} {
		rep, err := auditor.Audit(ctx, id)
		if err != nil {
			t.Fatalf("Audit: %v", err)
		}
		if rep.Balance != want || !rep.Consistent {
			t.Errorf("audit %s: balance %d sum %d consistent %v, want balance %d consistent", id, rep.Balance, rep.LedgerSum, rep.Consistent, want)
		}
	}

	txs, err := auditor.Transactions(ctx, learner)
	if err != nil {
		t.Fatal(err)
	}
	if len(txs) != 3 || txs[0].EntryType != models.CreditEntryTransfer {
		t.Errorf("learner transactions: got %d, newest %q", len(txs), txs[0].EntryType)
	}

	if _, err := auditor.Audit(ctx, uuid.New()); !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("audit of missing account: expected ErrAccountNotFound, got %v", err)
	}
}

func TestRecord_StorageFailure(t *testing.T) {
	credits := &mockCredit{err: errors.New("disk full")}
	svc := NewService(newMockAccount(), credits)
	if _, err := svc.Record(context.Background(), nil, uuid.New(), models.CreditEntryRefund, 1, nil, "x"); err == nil {
		t.Fatal("expected storage error to surface")
	}
}
