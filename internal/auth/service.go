package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/crypto/bcrypt"

	"github.com/skillswap/backend/internal/ledger"
	"github.com/skillswap/backend/internal/models"
	"github.com/skillswap/backend/internal/repository"
)

var (
	// ErrDuplicateEmail is returned when registering with an email that already exists.
	ErrDuplicateEmail     = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrAccountNotFound    = errors.New("account not found")
)

// TokenTTL is how long an issued token stays valid.
const TokenTTL = 24 * time.Hour

type Service interface {
	Register(ctx context.Context, email, password, name string) (*models.Account, error)
	Login(ctx context.Context, email, password string) (string, error)
	ValidateToken(ctx context.Context, token string) (uuid.UUID, error)
	DeleteAccount(ctx context.Context, id uuid.UUID) error
}

// TxBeginner opens the transaction registration runs in.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

type service struct {
	db           TxBeginner
	repo         Repository
	ledger       *ledger.Service
	secret       []byte
	initialGrant int
	now          func() time.Time
}

func NewService(db TxBeginner, repo Repository, l *ledger.Service, secret string, initialGrant int) *service {
	return &service{
		db:           db,
		repo:         repo,
		ledger:       l,
		secret:       []byte(secret),
		initialGrant: initialGrant,
		now:          time.Now,
	}
}

// Ensure service implements Service at compile time.
var _ Service = (*service)(nil)

// Register creates the account and its Initial ledger entry in one
// transaction, so the stored balance is backed by the log from the start.
func (s *service) Register(ctx context.Context, email, password, name string) (*models.Account, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	acc := &models.Account{
		ID:            uuid.New(),
		Email:         email,
		Name:          name,
		PasswordHash:  string(hash),
		CreditBalance: s.initialGrant,
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if err := s.repo.CreateTx(ctx, tx, acc); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrDuplicateEmail
		}
		return nil, err
	}
	if s.initialGrant > 0 {
		if _, err := s.ledger.Record(ctx, tx, acc.ID, models.CreditEntryInitial, s.initialGrant, nil,
			fmt.Sprintf("Initial grant of %d credits", s.initialGrant)); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return acc, nil
}

func (s *service) Login(ctx context.Context, email, password string) (string, error) {
	acc, err := s.repo.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return "", ErrInvalidCredentials
	}
	if err != nil {
		return "", err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}
	return s.issueToken(acc.ID)
}

func (s *service) issueToken(userID uuid.UUID) (string, error) {
	now := s.now()
	c := jwt.RegisteredClaims{
		Subject:   userID.String(),
		ExpiresAt: jwt.NewNumericDate(now.Add(TokenTTL)),
		IssuedAt:  jwt.NewNumericDate(now),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	return tok.SignedString(s.secret)
}

func (s *service) ValidateToken(ctx context.Context, token string) (uuid.UUID, error) {
	c := &jwt.RegisteredClaims{}
	tok, err := jwt.ParseWithClaims(token, c, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil || !tok.Valid {
		return uuid.Nil, ErrInvalidToken
	}
	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return uuid.Nil, ErrInvalidToken
	}
	return id, nil
}

// DeleteAccount hard-deletes the account. Bookings that name it keep the
// dangling id; the orphan sweep refunds any that were still Requested.
func (s *service) DeleteAccount(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrAccountNotFound
		}
		return err
	}
	return nil
}
