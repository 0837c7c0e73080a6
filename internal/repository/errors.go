package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrSlotTaken means the court-hour already has a confirmed booking.
	ErrSlotTaken = errors.New("slot already booked")
	// ErrStaleAttempt means the attempt left the expected status before the update landed.
	ErrStaleAttempt = errors.New("attempt status changed concurrently")
)

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
