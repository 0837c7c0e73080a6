package conflict

import (
	"testing"

	"github.com/Domenick1991/courtbooking/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func km(v float64) *float64 { return &v }

func candidate(venue, start string, price int64, distance *float64, available bool) domain.CandidateSlot {
	return domain.CandidateSlot{
		AlternativeSlot: domain.AlternativeSlot{
			VenueID:    venue,
			Date:       "2025-06-02",
			StartTime:  start,
			CourtName:  "Court 1",
			PriceCents: price,
			Distance:   distance,
		},
		Available: available,
	}
}

func TestSuggestAlternatives_Ranking(t *testing.T) {
	req := request("10:00")
	pool := []domain.CandidateSlot{
		candidate("far", "11:00", 2000, km(8), true),
		candidate("taken", "10:00", 1000, nil, false),
		candidate("near", "11:00", 2000, km(2), true),
		candidate("cheap", "09:00", 1500, nil, true),
		candidate("late", "14:00", 500, km(1), true),
		candidate("unknown-distance", "11:00", 2000, nil, true),
	}

	got := SuggestAlternatives(req, nil, pool)

	var venues []string
	for _, a := range got {
		venues = append(venues, a.VenueID)
	}
	assert.Equal(t, []string{"cheap", "near", "far", "unknown-distance", "late"}, venues)
}

func TestSuggestAlternatives_OnlyAvailable(t *testing.T) {
	pool := []domain.CandidateSlot{
		candidate("a", "09:00", 1000, nil, false),
		candidate("b", "11:00", 1000, nil, true),
		candidate("c", "12:00", 1000, nil, false),
	}

	got := SuggestAlternatives(request("10:00"), nil, pool)
	require.Len(t, got, 1)
	assert.Equal(t, "b", got[0].VenueID)
}

func TestSuggestAlternatives_Stable(t *testing.T) {
	pool := []domain.CandidateSlot{
		candidate("x", "11:00", 1000, nil, true),
		candidate("y", "09:00", 1000, nil, true),
		candidate("z", "11:00", 1000, nil, true),
	}

	first := SuggestAlternatives(request("10:00"), nil, pool)
	second := SuggestAlternatives(request("10:00"), nil, pool)
	assert.Equal(t, first, second)
	assert.Equal(t, "x", first[0].VenueID)
	assert.Equal(t, "y", first[1].VenueID)
}

func TestSuggestAlternatives_OtherDates(t *testing.T) {
	nextDay := candidate("tomorrow", "10:00", 1000, nil, true)
	nextDay.Date = "2025-06-03"
	pool := []domain.CandidateSlot{nextDay, candidate("today", "16:00", 1000, nil, true)}

	got := SuggestAlternatives(request("10:00"), nil, pool)
	require.Len(t, got, 2)
	assert.Equal(t, "today", got[0].VenueID)
}

func TestScenario_EmptyPoolMeansNoAlternatives(t *testing.T) {
	req := request("10:00")
	conflict := Detect(req, domain.TimeSlot{Time: "10:00", Available: false, BookedBy: []string{"u1"}}, openVenue())
	require.NotNil(t, conflict)

	got := SuggestAlternatives(req, conflict, nil)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestLimit(t *testing.T) {
	alts := SuggestAlternatives(request("10:00"), nil, []domain.CandidateSlot{
		candidate("a", "09:00", 1, nil, true),
		candidate("b", "11:00", 2, nil, true),
		candidate("c", "12:00", 3, nil, true),
	})
	assert.Len(t, Limit(alts, 2), 2)
	assert.Len(t, Limit(alts, 0), 3)
	assert.Len(t, Limit(alts, 10), 3)
}
