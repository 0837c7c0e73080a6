package availability

import (
	"errors"
	"fmt"
	"math/rand"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/Domenick1991/courtbooking/internal/domain"
)

var hourPattern = regexp.MustCompile(`^(\d{2}):(\d{2})$`)

var errHoursOrder = errors.New("open must be before close")

// ParseError marks operating hours that cannot be turned into slots.
// Callers report availability as unknown, which is distinct from closed.
type ParseError struct {
	Field string
	Value string
	Err   error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid %s %q: %v", e.Field, e.Value, e.Err)
	}
	return fmt.Sprintf("invalid %s %q", e.Field, e.Value)
}

func (e *ParseError) Unwrap() error { return e.Err }

// DaySchedule is the slot list of one venue day. Closed days carry a Reason and no slots.
type DaySchedule struct {
	Date   string            `json:"date"`
	Closed bool              `json:"closed"`
	Reason string            `json:"reason,omitempty"`
	Slots  []domain.TimeSlot `json:"slots"`
}

// Seed decides the initial state of a slot.
type Seed interface {
	SlotState(slotTime string) (available bool, bookedBy []string)
}

// ParseHour reads the hour of an "HH:MM" value. Minutes must be valid but are dropped.
func ParseHour(field, value string) (int, error) {
	m := hourPattern.FindStringSubmatch(value)
	if m == nil {
		return 0, &ParseError{Field: field, Value: value}
	}
	h, _ := strconv.Atoi(m[1])
	minute, _ := strconv.Atoi(m[2])
	if h > 24 || minute > 59 || (h == 24 && minute != 0) {
		return 0, &ParseError{Field: field, Value: value}
	}
	return h, nil
}

// HourRange parses hours into the half-open integer range [open, close).
func HourRange(hours domain.DayHours) (int, int, error) {
	open, err := ParseHour("open", hours.Open)
	if err != nil {
		return 0, 0, err
	}
	closing, err := ParseHour("close", hours.Close)
	if err != nil {
		return 0, 0, err
	}
	if open >= closing {
		return 0, 0, &ParseError{Field: "hours", Value: hours.Open + "-" + hours.Close, Err: errHoursOrder}
	}
	return open, closing, nil
}

func SlotLabel(hour int) string {
	return fmt.Sprintf("%02d:00", hour)
}

// BuildDaySlots derives the hourly slots of date from the venue's operating hours.
func BuildDaySlots(hours domain.OperatingHours, date time.Time, seed Seed) (DaySchedule, error) {
	return buildDay(hours[date.Weekday()], hasDay(hours, date.Weekday()), date, seed, time.Now())
}

// BuildStateSlots is BuildDaySlots with same-day closure overrides applied.
func BuildStateSlots(state domain.VenueState, date time.Time, seed Seed) (DaySchedule, error) {
	h, ok := state.HoursOn(date)
	return buildDay(h, ok, date, seed, time.Now())
}

func hasDay(hours domain.OperatingHours, day time.Weekday) bool {
	_, ok := hours[day]
	return ok
}

func buildDay(h domain.DayHours, ok bool, date time.Time, seed Seed, now time.Time) (DaySchedule, error) {
	schedule := DaySchedule{Date: date.Format(domain.DateLayout), Slots: []domain.TimeSlot{}}

	if !ok {
		schedule.Closed = true
		schedule.Reason = fmt.Sprintf("No opening hours are set for %s.", date.Weekday())
		return schedule, nil
	}
	if h.Closed {
		schedule.Closed = true
		schedule.Reason = fmt.Sprintf("The venue is closed on %s.", date.Weekday())
		return schedule, nil
	}

	open, closing, err := HourRange(h)
	if err != nil {
		return DaySchedule{}, err
	}

	schedule.Slots = make([]domain.TimeSlot, 0, closing-open)
	for hour := open; hour < closing; hour++ {
		slot := domain.TimeSlot{
			Time:      SlotLabel(hour),
			Hour:      hour,
			Available: true,
			BookedBy:  []string{},
			UpdatedAt: now,
		}
		if seed != nil {
			available, bookedBy := seed.SlotState(slot.Time)
			slot.Available = available
			if !available {
				slot.BookedBy = append(slot.BookedBy, bookedBy...)
			}
		}
		schedule.Slots = append(schedule.Slots, slot)
	}
	return schedule, nil
}

// RandomSeed stands in for a booking backend: each slot is free with probability Ratio.
type RandomSeed struct {
	Ratio float64

	mu  sync.Mutex
	rng *rand.Rand
}

func NewRandomSeed(ratio float64, rng *rand.Rand) *RandomSeed {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &RandomSeed{Ratio: ratio, rng: rng}
}

func (s *RandomSeed) SlotState(string) (bool, []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.rng.Float64() < s.Ratio {
		return true, nil
	}
	return false, []string{placeholderBooker()}
}

// BookedSeed marks slots taken when every court of the hour is booked.
type BookedSeed struct {
	// Booked maps a slot time to the bookers holding it.
	Booked map[string][]string
	Courts int
}

func (s BookedSeed) SlotState(slotTime string) (bool, []string) {
	bookers := s.Booked[slotTime]
	courts := s.Courts
	if courts <= 0 {
		courts = 1
	}
	if len(bookers) >= courts {
		return false, bookers
	}
	return true, nil
}
