package availability

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/Domenick1991/courtbooking/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 2025-06-02 is a Monday.
var monday = time.Date(2025, 6, 2, 15, 30, 0, 0, time.UTC)

func TestBuildDaySlots_OpenDay(t *testing.T) {
	hours := domain.OperatingHours{time.Monday: {Open: "09:00", Close: "12:00"}}

	schedule, err := BuildDaySlots(hours, monday, nil)
	require.NoError(t, err)

	assert.False(t, schedule.Closed)
	assert.Equal(t, "2025-06-02", schedule.Date)
	require.Len(t, schedule.Slots, 3)

	var labels []string
	for _, s := range schedule.Slots {
		labels = append(labels, s.Time)
		assert.True(t, s.Available)
		assert.Empty(t, s.BookedBy)
	}
	assert.Equal(t, []string{"09:00", "10:00", "11:00"}, labels)
}

func TestBuildDaySlots_CountAndOrder(t *testing.T) {
	for open := 0; open < 24; open++ {
		for closing := open + 1; closing <= 24; closing++ {
			hours := domain.OperatingHours{time.Monday: {Open: SlotLabel(open), Close: SlotLabel(closing)}}

			schedule, err := BuildDaySlots(hours, monday, nil)
			require.NoError(t, err)
			require.Len(t, schedule.Slots, closing-open)

			seen := map[string]bool{}
			for i, s := range schedule.Slots {
				assert.False(t, seen[s.Time], "duplicate slot %s", s.Time)
				seen[s.Time] = true
				if i > 0 {
					assert.Greater(t, s.Hour, schedule.Slots[i-1].Hour)
				}
			}
		}
	}
}

func TestBuildDaySlots_ClosedDay(t *testing.T) {
	testCases := []struct {
		name  string
		hours domain.OperatingHours
	}{
		{name: "flagged closed", hours: domain.OperatingHours{time.Monday: {Closed: true}}},
		{name: "missing entry", hours: domain.OperatingHours{time.Tuesday: {Open: "09:00", Close: "17:00"}}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			schedule, err := BuildDaySlots(tc.hours, monday, nil)
			require.NoError(t, err)
			assert.True(t, schedule.Closed)
			assert.NotEmpty(t, schedule.Reason)
			assert.Empty(t, schedule.Slots)
		})
	}
}

func TestBuildDaySlots_ParseErrors(t *testing.T) {
	testCases := []struct {
		name        string
		open, close string
	}{
		{name: "missing colon", open: "0900", close: "12:00"},
		{name: "single digit hour", open: "9:00", close: "12:00"},
		{name: "hour out of range", open: "09:00", close: "25:00"},
		{name: "minutes out of range", open: "09:61", close: "12:00"},
		{name: "open after close", open: "14:00", close: "12:00"},
		{name: "open equals close", open: "12:00", close: "12:00"},
		{name: "empty", open: "", close: ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			hours := domain.OperatingHours{time.Monday: {Open: tc.open, Close: tc.close}}
			_, err := BuildDaySlots(hours, monday, nil)

			var parseErr *ParseError
			require.True(t, errors.As(err, &parseErr), "expected ParseError, got %v", err)
		})
	}
}

func TestBuildDaySlots_MinutesTruncated(t *testing.T) {
	hours := domain.OperatingHours{time.Monday: {Open: "09:30", Close: "11:45"}}

	schedule, err := BuildDaySlots(hours, monday, nil)
	require.NoError(t, err)
	require.Len(t, schedule.Slots, 2)
	assert.Equal(t, "09:00", schedule.Slots[0].Time)
	assert.Equal(t, "10:00", schedule.Slots[1].Time)
}

func TestBuildStateSlots_EarlyClosure(t *testing.T) {
	state := domain.VenueState{
		Hours:    domain.OperatingHours{time.Monday: {Open: "09:00", Close: "18:00"}},
		Closures: []domain.ClosureOverride{{Date: "2025-06-02", Close: "11:00"}},
	}

	schedule, err := BuildStateSlots(state, monday, nil)
	require.NoError(t, err)
	require.Len(t, schedule.Slots, 2)
	assert.Equal(t, "10:00", schedule.Slots[1].Time)
}

func TestBuildDaySlots_Seeds(t *testing.T) {
	hours := domain.OperatingHours{time.Monday: {Open: "09:00", Close: "12:00"}}

	t.Run("booked seed", func(t *testing.T) {
		seed := BookedSeed{Booked: map[string][]string{"10:00": {"u1"}}, Courts: 1}

		schedule, err := BuildDaySlots(hours, monday, seed)
		require.NoError(t, err)

		assert.True(t, schedule.Slots[0].Available)
		assert.False(t, schedule.Slots[1].Available)
		assert.Equal(t, []string{"u1"}, schedule.Slots[1].BookedBy)
		assert.True(t, schedule.Slots[2].Available)
	})

	t.Run("booked seed with free courts", func(t *testing.T) {
		seed := BookedSeed{Booked: map[string][]string{"10:00": {"u1"}}, Courts: 2}

		schedule, err := BuildDaySlots(hours, monday, seed)
		require.NoError(t, err)
		assert.True(t, schedule.Slots[1].Available)
	})

	t.Run("random seed extremes", func(t *testing.T) {
		schedule, err := BuildDaySlots(hours, monday, NewRandomSeed(1, rand.New(rand.NewSource(1))))
		require.NoError(t, err)
		for _, s := range schedule.Slots {
			assert.True(t, s.Available)
		}

		schedule, err = BuildDaySlots(hours, monday, NewRandomSeed(0, rand.New(rand.NewSource(1))))
		require.NoError(t, err)
		for _, s := range schedule.Slots {
			assert.False(t, s.Available)
			assert.Len(t, s.BookedBy, 1)
		}
	})
}
