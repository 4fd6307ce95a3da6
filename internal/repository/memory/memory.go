// Package memory is an in-memory implementation of the repositories for
// tests and local development.
//
// Transactions serialize on a single store-wide lock and restore a snapshot
// on rollback, so a transition either lands completely or not at all, the
// same guarantee the Postgres repositories get from BEGIN/COMMIT.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/skillswap/backend/internal/models"
	"github.com/skillswap/backend/internal/repository"
)

type bookingRow struct {
	b   models.Booking
	seq int64
}

type creditRow struct {
	c   models.CreditLedger
	seq int64
}

type state struct {
	accounts map[uuid.UUID]models.Account
	bookings map[uuid.UUID]bookingRow
	credits  []creditRow
	skills   map[uuid.UUID]models.SkillListing
	seq      int64
}

func (s *state) clone() state {
	out := state{
		accounts: make(map[uuid.UUID]models.Account, len(s.accounts)),
		bookings: make(map[uuid.UUID]bookingRow, len(s.bookings)),
		credits:  s.credits[:len(s.credits):len(s.credits)],
		skills:   make(map[uuid.UUID]models.SkillListing, len(s.skills)),
		seq:      s.seq,
	}
	for k, v := range s.accounts {
		out.accounts[k] = v
	}
	for k, v := range s.bookings {
		out.bookings[k] = v
	}
	for k, v := range s.skills {
		out.skills[k] = v
	}
	return out
}

func (s *state) next() int64 {
	s.seq++
	return s.seq
}

// Store bundles the repositories over one shared state.
type Store struct {
	mu    sync.Mutex
	state state
	now   func() time.Time

	Accounts *AccountRepo
	Bookings *BookingRepo
	Credits  *CreditRepo
	Skills   *SkillRepo
}

func New() *Store {
	s := &Store{
		state: state{
			accounts: make(map[uuid.UUID]models.Account),
			bookings: make(map[uuid.UUID]bookingRow),
			skills:   make(map[uuid.UUID]models.SkillListing),
		},
		now: func() time.Time { return time.Now().UTC() },
	}
	s.Accounts = &AccountRepo{s: s}
	s.Bookings = &BookingRepo{s: s}
	s.Credits = &CreditRepo{s: s}
	s.Skills = &SkillRepo{s: s}
	return s
}

// Begin starts a transaction. It blocks until no other transaction is open.
func (s *Store) Begin(context.Context) (pgx.Tx, error) {
	s.mu.Lock()
	return &memTx{s: s, snapshot: s.state.clone()}, nil
}

// Seed inserts an account directly, bypassing the ledger. Tests use it to
// set up balances.
func (s *Store) Seed(a models.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.now()
		a.UpdatedAt = a.CreatedAt
	}
	s.state.accounts[a.ID] = a
}

// --- transaction ---

type memTx struct {
	s        *Store
	snapshot state
	done     bool
}

func (t *memTx) Commit(context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	t.s.mu.Unlock()
	return nil
}

func (t *memTx) Rollback(context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	t.s.state = t.snapshot
	t.s.mu.Unlock()
	return nil
}

func (t *memTx) Begin(context.Context) (pgx.Tx, error) { return nil, pgx.ErrTxClosed }
func (t *memTx) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), nil
}
func (t *memTx) Query(context.Context, string, ...any) (pgx.Rows, error) { return nil, nil }
func (t *memTx) QueryRow(context.Context, string, ...any) pgx.Row        { return nil }
func (t *memTx) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (t *memTx) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults { return nil }
func (t *memTx) LargeObjects() pgx.LargeObjects                         { return pgx.LargeObjects{} }
func (t *memTx) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (t *memTx) Conn() *pgx.Conn { return nil }

// --- accounts ---

// AccountRepo methods that take a pgx.Tx expect the caller to hold the
// transaction opened by Store.Begin.
type AccountRepo struct {
	s *Store
}

func (r *AccountRepo) CreateTx(_ context.Context, _ pgx.Tx, a *models.Account) error {
	st := &r.s.state
	for _, existing := range st.accounts {
		if strings.EqualFold(existing.Email, a.Email) {
			return &pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"}
		}
	}
	a.CreatedAt = r.s.now()
	a.UpdatedAt = a.CreatedAt
	st.accounts[a.ID] = *a
	return nil
}

func (r *AccountRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.get(id)
}

func (r *AccountRepo) GetByEmail(_ context.Context, email string) (*models.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, a := range r.s.state.accounts {
		if strings.EqualFold(a.Email, email) {
			cp := a
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

// Delete hard-deletes the account and its skill listings. Bookings keep the
// dangling reference.
func (r *AccountRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.state.accounts[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.state.accounts, id)
	for sid, sk := range r.s.state.skills {
		if sk.TeacherID == id {
			delete(r.s.state.skills, sid)
		}
	}
	return nil
}

func (r *AccountRepo) GetByIDForUpdate(_ context.Context, _ pgx.Tx, id uuid.UUID) (*models.Account, error) {
	return r.get(id)
}

func (r *AccountRepo) DeductCredits(_ context.Context, _ pgx.Tx, id uuid.UUID, amount int) (int, error) {
	a, ok := r.s.state.accounts[id]
	if !ok || a.CreditBalance < amount {
		return 0, repository.ErrNotFound
	}
	a.CreditBalance -= amount
	a.UpdatedAt = r.s.now()
	r.s.state.accounts[id] = a
	return a.CreditBalance, nil
}

func (r *AccountRepo) AddCredits(_ context.Context, _ pgx.Tx, id uuid.UUID, amount int) (int, error) {
	a, ok := r.s.state.accounts[id]
	if !ok {
		return 0, repository.ErrNotFound
	}
	a.CreditBalance += amount
	a.UpdatedAt = r.s.now()
	r.s.state.accounts[id] = a
	return a.CreditBalance, nil
}

func (r *AccountRepo) get(id uuid.UUID) (*models.Account, error) {
	a, ok := r.s.state.accounts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &a, nil
}

// --- credit ledger ---

type CreditRepo struct {
	s *Store

	// CreateErr, when set, fails every insert. Used to exercise rollback.
	CreateErr error
}

func (r *CreditRepo) CreateTx(_ context.Context, _ pgx.Tx, c *models.CreditLedger) error {
	if r.CreateErr != nil {
		return r.CreateErr
	}
	c.CreatedAt = r.s.now()
	r.s.state.credits = append(r.s.state.credits, creditRow{c: *c, seq: r.s.state.next()})
	return nil
}

func (r *CreditRepo) ListByAccountID(_ context.Context, accountID uuid.UUID) ([]*models.CreditLedger, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var list []*models.CreditLedger
	for i := len(r.s.state.credits) - 1; i >= 0; i-- {
		if row := r.s.state.credits[i]; row.c.AccountID == accountID {
			cp := row.c
			list = append(list, &cp)
		}
	}
	return list, nil
}

func (r *CreditRepo) SumByAccountID(_ context.Context, accountID uuid.UUID) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	total := 0
	for _, row := range r.s.state.credits {
		if row.c.AccountID != accountID {
			continue
		}
		if row.c.EntryType == models.CreditEntryTransfer && row.c.Amount < 0 {
			continue
		}
		total += row.c.Amount
	}
	return total, nil
}

// All returns every entry in append order.
func (r *CreditRepo) All() []models.CreditLedger {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]models.CreditLedger, 0, len(r.s.state.credits))
	for _, row := range r.s.state.credits {
		out = append(out, row.c)
	}
	return out
}

// --- bookings ---

type BookingRepo struct {
	s *Store

	// CreateErr, when set, fails every insert. Used to exercise rollback.
	CreateErr error
}

func (r *BookingRepo) CreateTx(_ context.Context, _ pgx.Tx, b *models.Booking) error {
	if r.CreateErr != nil {
		return r.CreateErr
	}
	b.CreatedAt = r.s.now()
	b.UpdatedAt = b.CreatedAt
	r.s.state.bookings[b.ID] = bookingRow{b: *b, seq: r.s.state.next()}
	return nil
}

func (r *BookingRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.get(id)
}

func (r *BookingRepo) GetByIDForUpdate(_ context.Context, _ pgx.Tx, id uuid.UUID) (*models.Booking, error) {
	return r.get(id)
}

func (r *BookingRepo) UpdateTx(_ context.Context, _ pgx.Tx, b *models.Booking) error {
	row, ok := r.s.state.bookings[b.ID]
	if !ok {
		return repository.ErrNotFound
	}
	row.b.Status = b.Status
	row.b.CompletedByLearner = b.CompletedByLearner
	row.b.CompletedByTeacher = b.CompletedByTeacher
	row.b.CancelledBy = b.CancelledBy
	row.b.UpdatedAt = r.s.now()
	b.UpdatedAt = row.b.UpdatedAt
	r.s.state.bookings[b.ID] = row
	return nil
}

func (r *BookingRepo) DeleteTx(_ context.Context, _ pgx.Tx, id uuid.UUID) error {
	if _, ok := r.s.state.bookings[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.state.bookings, id)
	return nil
}

func (r *BookingRepo) ListRequestedByLearnerForUpdate(_ context.Context, _ pgx.Tx, learnerID uuid.UUID) ([]*models.Booking, error) {
	rows := r.filter(func(b *models.Booking) bool {
		return b.LearnerID == learnerID && b.Status == models.BookingStatusRequested
	})
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq < rows[j].seq })
	return unwrap(rows), nil
}

func (r *BookingRepo) ListForUser(_ context.Context, userID uuid.UUID, f models.BookingFilter) ([]*models.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rows := r.filter(func(b *models.Booking) bool {
		switch f.Role {
		case models.RoleTeacher:
			if b.TeacherID != userID {
				return false
			}
		case models.RoleLearner:
			if b.LearnerID != userID {
				return false
			}
		default:
			if b.TeacherID != userID && b.LearnerID != userID {
				return false
			}
		}
		if f.Status != "" && b.Status != f.Status {
			return false
		}
		switch f.When {
		case models.WhenUpcoming:
			return !b.DateTime.Before(f.Now)
		case models.WhenPast:
			return b.DateTime.Before(f.Now)
		}
		return true
	})
	switch f.When {
	case models.WhenUpcoming:
		sort.Slice(rows, func(i, j int) bool { return rows[i].b.DateTime.Before(rows[j].b.DateTime) })
	case models.WhenPast:
		sort.Slice(rows, func(i, j int) bool { return rows[i].b.DateTime.After(rows[j].b.DateTime) })
	default:
		sort.Slice(rows, func(i, j int) bool { return rows[i].seq > rows[j].seq })
	}
	return unwrap(rows), nil
}

func (r *BookingRepo) ListLearnersWithOrphans(context.Context) ([]uuid.UUID, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	seen := make(map[uuid.UUID]bool)
	var ids []uuid.UUID
	for _, row := range r.s.state.bookings {
		if row.b.Status != models.BookingStatusRequested {
			continue
		}
		if _, ok := r.s.state.accounts[row.b.TeacherID]; ok {
			continue
		}
		if _, ok := r.s.state.accounts[row.b.LearnerID]; !ok {
			continue
		}
		if !seen[row.b.LearnerID] {
			seen[row.b.LearnerID] = true
			ids = append(ids, row.b.LearnerID)
		}
	}
	return ids, nil
}

func (r *BookingRepo) get(id uuid.UUID) (*models.Booking, error) {
	row, ok := r.s.state.bookings[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	b := row.b
	return &b, nil
}

func (r *BookingRepo) filter(keep func(*models.Booking) bool) []bookingRow {
	var out []bookingRow
	for _, row := range r.s.state.bookings {
		if keep(&row.b) {
			out = append(out, row)
		}
	}
	return out
}

func unwrap(rows []bookingRow) []*models.Booking {
	out := make([]*models.Booking, 0, len(rows))
	for _, row := range rows {
		b := row.b
		out = append(out, &b)
	}
	return out
}

// --- skills ---

type SkillRepo struct {
	s *Store
}

func (r *SkillRepo) Create(_ context.Context, sk *models.SkillListing) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sk.CreatedAt = r.s.now()
	r.s.state.skills[sk.ID] = *sk
	return nil
}

func (r *SkillRepo) ListByTeacher(_ context.Context, teacherID uuid.UUID) ([]*models.SkillListing, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var list []*models.SkillListing
	for _, sk := range r.s.state.skills {
		if sk.TeacherID == teacherID {
			cp := sk
			list = append(list, &cp)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.Before(list[j].CreatedAt) })
	return list, nil
}

func (r *SkillRepo) Search(_ context.Context, skill string) ([]*models.TeacherSkill, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	needle := strings.ToLower(skill)
	var list []*models.TeacherSkill
	for _, sk := range r.s.state.skills {
		if !strings.Contains(strings.ToLower(sk.SkillName), needle) {
			continue
		}
		teacher, ok := r.s.state.accounts[sk.TeacherID]
		if !ok {
			continue
		}
		list = append(list, &models.TeacherSkill{
			SkillID:        sk.ID,
			TeacherID:      sk.TeacherID,
			TeacherName:    teacher.Name,
			SkillName:      sk.SkillName,
			Level:          sk.Level,
			CreditsPerHour: sk.CreditsPerHour,
			Description:    sk.Description,
		})
	}
	sort.Slice(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if a.CreditsPerHour != b.CreditsPerHour {
			return a.CreditsPerHour < b.CreditsPerHour
		}
		if an, bn := strings.ToLower(a.SkillName), strings.ToLower(b.SkillName); an != bn {
			return an < bn
		}
		if a.TeacherName != b.TeacherName {
			return a.TeacherName < b.TeacherName
		}
		return a.SkillID.String() < b.SkillID.String()
	})
	return list, nil
}

func (r *SkillRepo) FindForTeacherTx(_ context.Context, _ pgx.Tx, teacherID uuid.UUID, skillID *uuid.UUID, name string) (*models.SkillListing, error) {
	for _, sk := range r.s.state.skills {
		if sk.TeacherID != teacherID {
			continue
		}
		if skillID != nil && sk.ID == *skillID {
			cp := sk
			return &cp, nil
		}
		if skillID == nil && strings.EqualFold(sk.SkillName, name) {
			cp := sk
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}
