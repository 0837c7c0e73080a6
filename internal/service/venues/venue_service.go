package venues

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/Domenick1991/courtbooking/internal/domain"
	"github.com/Domenick1991/courtbooking/internal/repository"
	"github.com/Domenick1991/courtbooking/internal/service/availability"
	"github.com/Domenick1991/courtbooking/internal/service/conflict"
	"go.uber.org/zap"
)

var ErrVenueNotFound = errors.New("venue not found")

type VenueUseCase interface {
	List(ctx context.Context) ([]domain.Venue, error)
	GetByID(ctx context.Context, id string) (*domain.Venue, error)
}

type VenueCache interface {
	GetVenues(ctx context.Context) ([]domain.Venue, error)
	SetVenues(ctx context.Context, venues []domain.Venue) error
}

// VenueService reads venues and assembles what the calendar, the conflict check
// and the alternatives search need from them.
type VenueService struct {
	repo     repository.VenueRepository
	attempts repository.AttemptRepository
	cache    VenueCache
	radiusKM float64
	log      *zap.Logger
}

type VenueServiceOption func(*VenueService)

func WithRadiusKM(km float64) VenueServiceOption {
	return func(s *VenueService) {
		s.radiusKM = km
	}
}

func WithLogger(log *zap.Logger) VenueServiceOption {
	return func(s *VenueService) {
		if log != nil {
			s.log = log.Named("venues")
		}
	}
}

func NewVenueService(repo repository.VenueRepository, attempts repository.AttemptRepository, cache VenueCache, opts ...VenueServiceOption) *VenueService {
	s := &VenueService{
		repo:     repo,
		attempts: attempts,
		cache:    cache,
		radiusKM: 10,
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *VenueService) List(ctx context.Context) ([]domain.Venue, error) {
	if s.cache != nil {
		if cached, err := s.cache.GetVenues(ctx); err == nil && cached != nil {
			return cached, nil
		} else if err != nil {
			s.log.Warn("venue cache read failed", zap.Error(err))
		}
	}

	venues, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.SetVenues(ctx, venues); err != nil {
			s.log.Warn("venue cache write failed", zap.Error(err))
		}
	}
	return venues, nil
}

func (s *VenueService) GetByID(ctx context.Context, id string) (*domain.Venue, error) {
	venue, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrVenueNotFound, id)
	}
	return venue, err
}

// VenueState gathers hours, maintenance windows and closures of a venue for date.
func (s *VenueService) VenueState(ctx context.Context, venueID string, date time.Time) (domain.VenueState, error) {
	venue, err := s.GetByID(ctx, venueID)
	if err != nil {
		return domain.VenueState{}, err
	}
	return s.stateOf(ctx, venue, date.Format(domain.DateLayout))
}

func (s *VenueService) stateOf(ctx context.Context, venue *domain.Venue, day string) (domain.VenueState, error) {
	maintenance, err := s.repo.Maintenance(ctx, venue.ID, day)
	if err != nil {
		return domain.VenueState{}, fmt.Errorf("load maintenance: %w", err)
	}
	closures, err := s.repo.Closures(ctx, venue.ID, day)
	if err != nil {
		return domain.VenueState{}, fmt.Errorf("load closures: %w", err)
	}
	return domain.VenueState{Hours: venue.Hours, Maintenance: maintenance, Closures: closures}, nil
}

// Seed derives initial slot states from confirmed bookings. A slot is taken once every court is booked.
func (s *VenueService) Seed(ctx context.Context, venueID string, date time.Time) (availability.Seed, error) {
	venue, err := s.GetByID(ctx, venueID)
	if err != nil {
		return nil, err
	}
	confirmed, err := s.attempts.ConfirmedSlots(ctx, venueID, date.Format(domain.DateLayout))
	if err != nil {
		return nil, fmt.Errorf("load confirmed bookings: %w", err)
	}

	booked := make(map[string][]string)
	for _, c := range confirmed {
		booked[c.StartTime] = append(booked[c.StartTime], c.BookerID)
	}
	return availability.BookedSeed{Booked: booked, Courts: len(venue.Courts)}, nil
}

// CandidateAlternatives lists court-hours on the requested date at the same venue
// and at venues within the search radius, each marked with its current availability.
func (s *VenueService) CandidateAlternatives(ctx context.Context, criteria domain.AlternativeCriteria) ([]domain.CandidateSlot, error) {
	date, err := time.Parse(domain.DateLayout, criteria.Date)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q: %w", criteria.Date, err)
	}

	origin, err := s.GetByID(ctx, criteria.VenueID)
	if err != nil {
		return nil, err
	}
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	radius := criteria.RadiusKM
	if radius <= 0 {
		radius = s.radiusKM
	}

	candidates := make([]domain.CandidateSlot, 0)
	for i := range all {
		venue := &all[i]
		distance := 0.0
		if venue.ID != origin.ID {
			distance = HaversineKM(origin.Latitude, origin.Longitude, venue.Latitude, venue.Longitude)
			if distance > radius {
				continue
			}
		}

		slots, err := s.venueCandidates(ctx, venue, date, distance, criteria)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, slots...)
	}
	return candidates, nil
}

func (s *VenueService) venueCandidates(ctx context.Context, venue *domain.Venue, date time.Time, distance float64, criteria domain.AlternativeCriteria) ([]domain.CandidateSlot, error) {
	day := date.Format(domain.DateLayout)
	state, err := s.stateOf(ctx, venue, day)
	if err != nil {
		return nil, err
	}

	hours, ok := state.HoursOn(date)
	if !ok || hours.Closed {
		return nil, nil
	}
	open, closing, err := availability.HourRange(hours)
	if err != nil {
		s.log.Warn("skipping venue with invalid hours", zap.String("venue_id", venue.ID), zap.Error(err))
		return nil, nil
	}

	confirmed, err := s.attempts.ConfirmedSlots(ctx, venue.ID, day)
	if err != nil {
		return nil, fmt.Errorf("load confirmed bookings: %w", err)
	}
	taken := make(map[domain.SlotKey]bool, len(confirmed))
	for _, c := range confirmed {
		taken[domain.SlotKey{VenueID: venue.ID, Date: day, StartTime: c.StartTime, CourtName: c.CourtName}] = true
	}

	var out []domain.CandidateSlot
	for h := open; h < closing; h++ {
		start := availability.SlotLabel(h)
		for _, court := range venue.Courts {
			if venue.ID == criteria.VenueID && start == criteria.StartTime && court == criteria.CourtName {
				continue
			}

			key := domain.SlotKey{VenueID: venue.ID, Date: day, StartTime: start, CourtName: court}
			req := domain.SlotRequest{VenueID: venue.ID, Date: day, StartTime: start, EndTime: availability.SlotLabel(h + 1), CourtName: court, WasAvailable: true}
			current := domain.TimeSlot{Time: start, Hour: h, Available: !taken[key]}

			d := distance
			out = append(out, domain.CandidateSlot{
				AlternativeSlot: domain.AlternativeSlot{
					VenueID:    venue.ID,
					VenueName:  venue.Name,
					Date:       day,
					StartTime:  start,
					CourtName:  court,
					PriceCents: venue.PricePerHourCents,
					Distance:   &d,
				},
				Available: conflict.Detect(req, current, state) == nil,
			})
		}
	}
	return out, nil
}

const earthRadiusKM = 6371.0

// HaversineKM is the great-circle distance between two coordinates.
func HaversineKM(lat1, lon1, lat2, lon2 float64) float64 {
	toRad := func(deg float64) float64 { return deg * math.Pi / 180 }

	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKM * math.Asin(math.Sqrt(a))
}

var (
	_ VenueUseCase           = (*VenueService)(nil)
	_ availability.DaySource = (*VenueService)(nil)
)
