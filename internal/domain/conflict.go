package domain

type ConflictType string

const (
	ConflictDoubleBooking ConflictType = "double-booking"
	ConflictMaintenance   ConflictType = "maintenance"
	ConflictClosed        ConflictType = "closed"
)

// SlotRequest is the booking a requester intends to make.
// WasAvailable records the slot state the requester saw when selecting it.
type SlotRequest struct {
	VenueID      string `json:"venue_id"`
	Date         string `json:"date"`
	StartTime    string `json:"start_time"`
	EndTime      string `json:"end_time"`
	CourtName    string `json:"court_name"`
	WasAvailable bool   `json:"was_available"`
}

type BookingConflict struct {
	Type      ConflictType `json:"conflict_type"`
	Date      string       `json:"date"`
	StartTime string       `json:"start_time"`
	EndTime   string       `json:"end_time"`
	CourtName string       `json:"court_name"`
	Message   string       `json:"message"`
}

func ConflictMessage(t ConflictType) string {
	switch t {
	case ConflictDoubleBooking:
		return "This slot was just booked by someone else."
	case ConflictMaintenance:
		return "This court is under maintenance during the requested time."
	case ConflictClosed:
		return "The venue is closed at the requested time."
	default:
		return "This slot is no longer available."
	}
}

// AlternativeSlot is a substitute offered after a conflict. Distance is in kilometres.
type AlternativeSlot struct {
	VenueID    string   `json:"venue_id"`
	VenueName  string   `json:"venue_name,omitempty"`
	Date       string   `json:"date"`
	StartTime  string   `json:"start_time"`
	CourtName  string   `json:"court_name"`
	PriceCents int64    `json:"price_cents"`
	Distance   *float64 `json:"distance,omitempty"`
}

// CandidateSlot is an AlternativeSlot together with its current availability.
type CandidateSlot struct {
	AlternativeSlot
	Available bool `json:"available"`
}

// AlternativeCriteria describes what substitutes to look for.
type AlternativeCriteria struct {
	VenueID   string
	Date      string
	StartTime string
	CourtName string
	RadiusKM  float64
}
