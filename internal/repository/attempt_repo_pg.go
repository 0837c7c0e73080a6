package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/Domenick1991/courtbooking/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type AttemptRepository interface {
	Create(ctx context.Context, attempt *domain.BookingAttempt) error
	GetByID(ctx context.Context, id string) (*domain.BookingAttempt, error)
	// Save writes attempt only while its stored status still equals expected.
	Save(ctx context.Context, attempt *domain.BookingAttempt, expected domain.AttemptStatus) error
	ExpireSelectedBefore(ctx context.Context, deadline time.Time) ([]domain.BookingAttempt, error)
	ConfirmedSlots(ctx context.Context, venueID, date string) ([]domain.ConfirmedSlot, error)
}

type PGAttemptRepository struct {
	db *pgxpool.Pool
}

func NewAttemptRepository(db *pgxpool.Pool) AttemptRepository {
	return &PGAttemptRepository{db: db}
}

const attemptColumns = `id, session_id, venue_id, to_char(day, 'YYYY-MM-DD'), start_time, end_time, court_name,
	booker_id, email, price_cents, was_available, status, conflict, created_at, updated_at`

func (r *PGAttemptRepository) Create(ctx context.Context, attempt *domain.BookingAttempt) error {
	conflict, err := encodeConflict(attempt.Conflict)
	if err != nil {
		return err
	}

	return r.db.QueryRow(ctx, `INSERT INTO booking_attempts
		(id, session_id, venue_id, day, start_time, end_time, court_name, booker_id, email, price_cents, was_available, status, conflict)
		VALUES ($1, $2, $3, to_date($4, 'YYYY-MM-DD'), $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at, updated_at`,
		attempt.ID, attempt.SessionID, attempt.VenueID, attempt.Date, attempt.StartTime, attempt.EndTime, attempt.CourtName,
		attempt.BookerID, attempt.Email, attempt.PriceCents, attempt.WasAvailable, attempt.Status, conflict).
		Scan(&attempt.CreatedAt, &attempt.UpdatedAt)
}

func (r *PGAttemptRepository) GetByID(ctx context.Context, id string) (*domain.BookingAttempt, error) {
	row := r.db.QueryRow(ctx, `SELECT `+attemptColumns+` FROM booking_attempts WHERE id=$1`, id)
	attempt, err := scanAttempt(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return attempt, err
}

func (r *PGAttemptRepository) Save(ctx context.Context, attempt *domain.BookingAttempt, expected domain.AttemptStatus) error {
	conflict, err := encodeConflict(attempt.Conflict)
	if err != nil {
		return err
	}

	err = r.db.QueryRow(ctx, `UPDATE booking_attempts SET
		venue_id=$1, day=to_date($2, 'YYYY-MM-DD'), start_time=$3, end_time=$4, court_name=$5,
		price_cents=$6, was_available=$7, status=$8, conflict=$9, updated_at=now()
		WHERE id=$10 AND status=$11
		RETURNING updated_at`,
		attempt.VenueID, attempt.Date, attempt.StartTime, attempt.EndTime, attempt.CourtName,
		attempt.PriceCents, attempt.WasAvailable, attempt.Status, conflict, attempt.ID, expected).
		Scan(&attempt.UpdatedAt)
	switch {
	case isUniqueViolation(err):
		return ErrSlotTaken
	case errors.Is(err, pgx.ErrNoRows):
		return ErrStaleAttempt
	}
	return err
}

func (r *PGAttemptRepository) ExpireSelectedBefore(ctx context.Context, deadline time.Time) ([]domain.BookingAttempt, error) {
	rows, err := r.db.Query(ctx, `UPDATE booking_attempts SET status=$1, updated_at=now()
		WHERE status=$2 AND created_at <= $3
		RETURNING `+attemptColumns,
		domain.AttemptStatusCancelled, domain.AttemptStatusSelected, deadline)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var expired []domain.BookingAttempt
	for rows.Next() {
		attempt, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		expired = append(expired, *attempt)
	}
	return expired, rows.Err()
}

func (r *PGAttemptRepository) ConfirmedSlots(ctx context.Context, venueID, date string) ([]domain.ConfirmedSlot, error) {
	rows, err := r.db.Query(ctx, `SELECT id, start_time, court_name, booker_id FROM booking_attempts
		WHERE venue_id=$1 AND day=to_date($2, 'YYYY-MM-DD') AND status=$3
		ORDER BY start_time, court_name`, venueID, date, domain.AttemptStatusConfirmed)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	slots := make([]domain.ConfirmedSlot, 0)
	for rows.Next() {
		var s domain.ConfirmedSlot
		if err := rows.Scan(&s.AttemptID, &s.StartTime, &s.CourtName, &s.BookerID); err != nil {
			return nil, err
		}
		slots = append(slots, s)
	}
	return slots, rows.Err()
}

func scanAttempt(row pgx.Row) (*domain.BookingAttempt, error) {
	var (
		a        domain.BookingAttempt
		conflict []byte
	)
	if err := row.Scan(&a.ID, &a.SessionID, &a.VenueID, &a.Date, &a.StartTime, &a.EndTime, &a.CourtName,
		&a.BookerID, &a.Email, &a.PriceCents, &a.WasAvailable, &a.Status, &conflict, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	if len(conflict) > 0 {
		a.Conflict = &domain.BookingConflict{}
		if err := json.Unmarshal(conflict, a.Conflict); err != nil {
			return nil, err
		}
	}
	return &a, nil
}

func encodeConflict(c *domain.BookingConflict) ([]byte, error) {
	if c == nil {
		return nil, nil
	}
	return json.Marshal(c)
}

var _ AttemptRepository = (*PGAttemptRepository)(nil)
