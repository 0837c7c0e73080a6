package availability

import (
	"context"
	"time"

	"github.com/Domenick1991/courtbooking/internal/domain"
)

// SimulatedSource keeps the venue data of Source but seeds slot states randomly.
type SimulatedSource struct {
	Source DaySource
	Ratio  float64
}

func NewSimulatedSource(source DaySource, ratio float64) *SimulatedSource {
	return &SimulatedSource{Source: source, Ratio: ratio}
}

func (s *SimulatedSource) VenueState(ctx context.Context, venueID string, date time.Time) (domain.VenueState, error) {
	return s.Source.VenueState(ctx, venueID, date)
}

func (s *SimulatedSource) Seed(context.Context, string, time.Time) (Seed, error) {
	return NewRandomSeed(s.Ratio, nil), nil
}

var _ DaySource = (*SimulatedSource)(nil)
