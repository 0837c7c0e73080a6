package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DayHours is one day of a venue's opening schedule. Open and Close are "HH:MM".
type DayHours struct {
	Closed bool   `json:"closed"`
	Open   string `json:"open,omitempty"`
	Close  string `json:"close,omitempty"`
}

// OperatingHours maps each weekday to its hours. A missing weekday is closed.
// In JSON the keys are lower-case weekday names.
type OperatingHours map[time.Weekday]DayHours

func (h OperatingHours) MarshalJSON() ([]byte, error) {
	named := make(map[string]DayHours, len(h))
	for day, hours := range h {
		named[strings.ToLower(day.String())] = hours
	}
	return json.Marshal(named)
}

func (h *OperatingHours) UnmarshalJSON(data []byte) error {
	var named map[string]DayHours
	if err := json.Unmarshal(data, &named); err != nil {
		return err
	}
	out := make(OperatingHours, len(named))
	for name, hours := range named {
		day, ok := parseWeekday(name)
		if !ok {
			return fmt.Errorf("unknown weekday %q", name)
		}
		out[day] = hours
	}
	*h = out
	return nil
}

func parseWeekday(name string) (time.Weekday, bool) {
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.EqualFold(d.String(), name) {
			return d, true
		}
	}
	return 0, false
}

type Venue struct {
	ID                string         `json:"id"`
	Name              string         `json:"name"`
	Address           string         `json:"address"`
	Courts            []string       `json:"courts"`
	PricePerHourCents int64          `json:"price_per_hour_cents"`
	Latitude          float64        `json:"latitude"`
	Longitude         float64        `json:"longitude"`
	Hours             OperatingHours `json:"hours"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

// MaintenanceWindow flags [Start, End) on Date for upkeep. An empty CourtName covers every court.
type MaintenanceWindow struct {
	VenueID   string `json:"venue_id"`
	Date      string `json:"date"`
	Start     string `json:"start"`
	End       string `json:"end"`
	CourtName string `json:"court_name,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// ClosureOverride replaces the regular hours of a single date, e.g. an early closure.
type ClosureOverride struct {
	VenueID string `json:"venue_id"`
	Date    string `json:"date"`
	Closed  bool   `json:"closed"`
	Open    string `json:"open,omitempty"`
	Close   string `json:"close,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// VenueState is everything that decides whether a venue can honour a slot on a date.
type VenueState struct {
	Hours       OperatingHours
	Maintenance []MaintenanceWindow
	Closures    []ClosureOverride
}

// HoursOn returns the effective hours for date, applying any closure override.
func (v VenueState) HoursOn(date time.Time) (DayHours, bool) {
	day := date.Format(DateLayout)
	for _, c := range v.Closures {
		if c.Date != day {
			continue
		}
		if c.Closed {
			return DayHours{Closed: true}, true
		}
		base, ok := v.Hours[date.Weekday()]
		if !ok || base.Closed {
			return DayHours{Closed: true}, true
		}
		if c.Open != "" {
			base.Open = c.Open
		}
		if c.Close != "" {
			base.Close = c.Close
		}
		return base, true
	}

	h, ok := v.Hours[date.Weekday()]
	return h, ok
}
