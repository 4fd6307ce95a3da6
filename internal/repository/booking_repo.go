package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/skillswap/backend/internal/models"
)

type BookingRepo struct {
	pool *pgxpool.Pool
}

func NewBookingRepo(pool *pgxpool.Pool) *BookingRepo {
	return &BookingRepo{pool: pool}
}

const bookingColumns = `id, teacher_id, learner_id, skill, skill_id, status, credit_amount, date_time,
	duration::text, completed_by_learner, completed_by_teacher, cancelled_by, notes, created_at, updated_at`

func scanBooking(row pgx.Row) (*models.Booking, error) {
	var (
		b           models.Booking
		duration    string
		cancelledBy *string
	)
	err := row.Scan(&b.ID, &b.TeacherID, &b.LearnerID, &b.Skill, &b.SkillID, &b.Status, &b.CreditAmount, &b.DateTime,
		&duration, &b.CompletedByLearner, &b.CompletedByTeacher, &cancelledBy, &b.Notes, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if b.Duration, err = decimal.NewFromString(duration); err != nil {
		return nil, fmt.Errorf("booking %s duration: %w", b.ID, err)
	}
	if cancelledBy != nil {
		if role, ok := models.ParseRole(*cancelledBy); ok {
			b.CancelledBy = &role
		}
	}
	return &b, nil
}

func cancelledByValue(b *models.Booking) *string {
	if b.CancelledBy == nil {
		return nil
	}
	s := b.CancelledBy.String()
	return &s
}

// CreateTx inserts a booking inside the given transaction.
func (r *BookingRepo) CreateTx(ctx context.Context, tx pgx.Tx, b *models.Booking) error {
	return tx.QueryRow(ctx, `
		INSERT INTO bookings (id, teacher_id, learner_id, skill, skill_id, status, credit_amount, date_time, duration, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::numeric, $10)
		RETURNING created_at, updated_at
	`, b.ID, b.TeacherID, b.LearnerID, b.Skill, b.SkillID, b.Status, b.CreditAmount, b.DateTime, b.Duration.String(), b.Notes,
	).Scan(&b.CreatedAt, &b.UpdatedAt)
}

func (r *BookingRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	return scanBooking(r.pool.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id))
}

// GetByIDForUpdate locks the booking row. Call within a transaction.
func (r *BookingRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Booking, error) {
	return scanBooking(tx.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1 FOR UPDATE`, id))
}

// UpdateTx writes the mutable lifecycle columns. credit_amount, parties and
// schedule are fixed at creation and never rewritten.
func (r *BookingRepo) UpdateTx(ctx context.Context, tx pgx.Tx, b *models.Booking) error {
	return tx.QueryRow(ctx, `
		UPDATE bookings
		SET status = $2, completed_by_learner = $3, completed_by_teacher = $4, cancelled_by = $5, updated_at = now()
		WHERE id = $1
		RETURNING updated_at
	`, b.ID, b.Status, b.CompletedByLearner, b.CompletedByTeacher, cancelledByValue(b)).Scan(&b.UpdatedAt)
}

func (r *BookingRepo) DeleteTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	tag, err := tx.Exec(ctx, `DELETE FROM bookings WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListRequestedByLearnerForUpdate locks every Requested booking of the learner.
func (r *BookingRepo) ListRequestedByLearnerForUpdate(ctx context.Context, tx pgx.Tx, learnerID uuid.UUID) ([]*models.Booking, error) {
	rows, err := tx.Query(ctx, `
		SELECT `+bookingColumns+` FROM bookings
		WHERE learner_id = $1 AND status = 'requested'
		ORDER BY created_at
		FOR UPDATE
	`, learnerID)
	if err != nil {
		return nil, err
	}
	return collectBookings(rows)
}

// ListForUser returns bookings where the user is teacher or learner, narrowed
// by the filter. Upcoming views sort by session time, everything else newest first.
func (r *BookingRepo) ListForUser(ctx context.Context, userID uuid.UUID, f models.BookingFilter) ([]*models.Booking, error) {
	var (
		where = []string{}
		args  = []any{userID}
	)
	switch f.Role {
	case models.RoleTeacher:
		where = append(where, "teacher_id = $1")
	case models.RoleLearner:
		where = append(where, "learner_id = $1")
	default:
		where = append(where, "(teacher_id = $1 OR learner_id = $1)")
	}
	if f.Status != "" {
		args = append(args, f.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	order := "created_at DESC"
	switch f.When {
	case models.WhenUpcoming:
		args = append(args, f.Now)
		where = append(where, fmt.Sprintf("date_time >= $%d", len(args)))
		order = "date_time ASC"
	case models.WhenPast:
		args = append(args, f.Now)
		where = append(where, fmt.Sprintf("date_time < $%d", len(args)))
		order = "date_time DESC"
	}
	rows, err := r.pool.Query(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE `+strings.Join(where, " AND ")+` ORDER BY `+order, args...)
	if err != nil {
		return nil, err
	}
	return collectBookings(rows)
}

// ListLearnersWithOrphans returns learners holding Requested bookings whose
// teacher account no longer exists. Learners that were deleted themselves
// have nothing left to refund and are left out.
func (r *BookingRepo) ListLearnersWithOrphans(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT b.learner_id FROM bookings b
		JOIN accounts l ON l.id = b.learner_id
		LEFT JOIN accounts a ON a.id = b.teacher_id
		WHERE b.status = 'requested' AND a.id IS NULL
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func collectBookings(rows pgx.Rows) ([]*models.Booking, error) {
	defer rows.Close()
	var list []*models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, b)
	}
	return list, rows.Err()
}
