package repository

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/Domenick1991/courtbooking/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type VenueRepository interface {
	List(ctx context.Context) ([]domain.Venue, error)
	GetByID(ctx context.Context, id string) (*domain.Venue, error)
	Maintenance(ctx context.Context, venueID, date string) ([]domain.MaintenanceWindow, error)
	Closures(ctx context.Context, venueID, date string) ([]domain.ClosureOverride, error)
}

type PGVenueRepository struct {
	db *pgxpool.Pool
}

func NewVenueRepository(db *pgxpool.Pool) VenueRepository {
	return &PGVenueRepository{db: db}
}

const venueColumns = `id, name, address, courts, price_per_hour_cents, latitude, longitude, hours, created_at, updated_at`

func (r *PGVenueRepository) List(ctx context.Context) ([]domain.Venue, error) {
	rows, err := r.db.Query(ctx, `SELECT `+venueColumns+` FROM venues ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	venues := make([]domain.Venue, 0)
	for rows.Next() {
		v, err := scanVenue(rows)
		if err != nil {
			return nil, err
		}
		venues = append(venues, *v)
	}
	return venues, rows.Err()
}

func (r *PGVenueRepository) GetByID(ctx context.Context, id string) (*domain.Venue, error) {
	v, err := scanVenue(r.db.QueryRow(ctx, `SELECT `+venueColumns+` FROM venues WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return v, err
}

func (r *PGVenueRepository) Maintenance(ctx context.Context, venueID, date string) ([]domain.MaintenanceWindow, error) {
	rows, err := r.db.Query(ctx, `SELECT venue_id, to_char(day, 'YYYY-MM-DD'), start_time, end_time, court_name, reason
		FROM maintenance_windows WHERE venue_id=$1 AND day=to_date($2, 'YYYY-MM-DD') ORDER BY start_time`, venueID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	windows := make([]domain.MaintenanceWindow, 0)
	for rows.Next() {
		var w domain.MaintenanceWindow
		if err := rows.Scan(&w.VenueID, &w.Date, &w.Start, &w.End, &w.CourtName, &w.Reason); err != nil {
			return nil, err
		}
		windows = append(windows, w)
	}
	return windows, rows.Err()
}

func (r *PGVenueRepository) Closures(ctx context.Context, venueID, date string) ([]domain.ClosureOverride, error) {
	rows, err := r.db.Query(ctx, `SELECT venue_id, to_char(day, 'YYYY-MM-DD'), closed, open_time, close_time, reason
		FROM venue_closures WHERE venue_id=$1 AND day=to_date($2, 'YYYY-MM-DD')`, venueID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	closures := make([]domain.ClosureOverride, 0)
	for rows.Next() {
		var c domain.ClosureOverride
		if err := rows.Scan(&c.VenueID, &c.Date, &c.Closed, &c.Open, &c.Close, &c.Reason); err != nil {
			return nil, err
		}
		closures = append(closures, c)
	}
	return closures, rows.Err()
}

func scanVenue(row pgx.Row) (*domain.Venue, error) {
	var (
		v     domain.Venue
		hours []byte
	)
	if err := row.Scan(&v.ID, &v.Name, &v.Address, &v.Courts, &v.PricePerHourCents, &v.Latitude, &v.Longitude, &hours, &v.CreatedAt, &v.UpdatedAt); err != nil {
		return nil, err
	}
	v.Hours = domain.OperatingHours{}
	if len(hours) > 0 {
		if err := json.Unmarshal(hours, &v.Hours); err != nil {
			return nil, err
		}
	}
	return &v, nil
}

var _ VenueRepository = (*PGVenueRepository)(nil)
