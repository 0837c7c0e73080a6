package domain

import "time"

const DateLayout = "2006-01-02"

// TimeSlot is one bookable hour of a venue on a date.
// Available, BookedBy and UpdatedAt always change together.
type TimeSlot struct {
	Time      string    `json:"time"`
	Hour      int       `json:"hour"`
	Available bool      `json:"available"`
	BookedBy  []string  `json:"booked_by"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SlotChange is one availability transition.
type SlotChange struct {
	VenueID   string    `json:"venue_id,omitempty"`
	Date      string    `json:"date,omitempty"`
	Time      string    `json:"time"`
	Available bool      `json:"available"`
	BookedBy  []string  `json:"booked_by,omitempty"`
	At        time.Time `json:"at"`
}

// SlotKey identifies one court-hour of a venue.
type SlotKey struct {
	VenueID   string
	Date      string
	StartTime string
	CourtName string
}
