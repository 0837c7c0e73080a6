package repository

import (
	"errors"
	"fmt"
	"testing"

	"github.com/Domenick1991/courtbooking/internal/domain"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rowStub struct {
	values []any
	err    error
}

func (r rowStub) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *string:
			*p = r.values[i].(string)
		case *bool:
			*p = r.values[i].(bool)
		case *int64:
			*p = r.values[i].(int64)
		case *float64:
			*p = r.values[i].(float64)
		case *[]byte:
			if r.values[i] != nil {
				*p = r.values[i].([]byte)
			}
		case *[]string:
			*p = r.values[i].([]string)
		case *domain.AttemptStatus:
			*p = r.values[i].(domain.AttemptStatus)
		}
	}
	return nil
}

func TestNewAttemptRepository(t *testing.T) {
	pool := &pgxpool.Pool{}
	repo := NewAttemptRepository(pool)
	assert.NotNil(t, repo)
}

func TestNewVenueRepository(t *testing.T) {
	pool := &pgxpool.Pool{}
	repo := NewVenueRepository(pool)
	assert.NotNil(t, repo)
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(&pgconn.PgError{Code: "23505"}))
	assert.True(t, isUniqueViolation(fmt.Errorf("save: %w", &pgconn.PgError{Code: "23505"})))
	assert.False(t, isUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, isUniqueViolation(errors.New("boom")))
	assert.False(t, isUniqueViolation(nil))
}

func TestScanAttempt_DecodesConflict(t *testing.T) {
	conflict, err := encodeConflict(&domain.BookingConflict{Type: domain.ConflictMaintenance, StartTime: "10:00"})
	require.NoError(t, err)

	row := rowStub{values: []any{
		"a1", "s1", "v1", "2025-06-02", "10:00", "11:00", "Court 1",
		"u1", "u1@example.com", int64(2500), true, domain.AttemptStatusConflicted, conflict, nil, nil,
	}}

	attempt, err := scanAttempt(row)
	require.NoError(t, err)
	assert.Equal(t, "a1", attempt.ID)
	assert.Equal(t, domain.AttemptStatusConflicted, attempt.Status)
	require.NotNil(t, attempt.Conflict)
	assert.Equal(t, domain.ConflictMaintenance, attempt.Conflict.Type)

	none, err := encodeConflict(nil)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestScanVenue_DecodesHours(t *testing.T) {
	row := rowStub{values: []any{
		"v1", "Riverside", "1 Main St", []string{"Court 1", "Court 2"}, int64(3000), 52.1, 4.3,
		[]byte(`{"monday":{"closed":false,"open":"09:00","close":"21:00"}}`), nil, nil,
	}}

	venue, err := scanVenue(row)
	require.NoError(t, err)
	assert.Len(t, venue.Courts, 2)
	assert.Equal(t, "21:00", venue.Hours[1].Close)
}

func TestScanVenue_PropagatesErrors(t *testing.T) {
	_, err := scanVenue(rowStub{err: errors.New("scan failed")})
	assert.Error(t, err)
}
