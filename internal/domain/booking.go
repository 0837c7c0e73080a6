package domain

import "time"

type AttemptStatus string

const (
	AttemptStatusSelected   AttemptStatus = "SELECTED"
	AttemptStatusCommitting AttemptStatus = "COMMITTING"
	AttemptStatusConfirmed  AttemptStatus = "CONFIRMED"
	AttemptStatusConflicted AttemptStatus = "CONFLICTED"
	AttemptStatusCancelled  AttemptStatus = "CANCELLED"
)

var attemptTransitions = map[AttemptStatus][]AttemptStatus{
	AttemptStatusSelected:   {AttemptStatusCommitting, AttemptStatusCancelled},
	AttemptStatusCommitting: {AttemptStatusConfirmed, AttemptStatusConflicted},
	AttemptStatusConflicted: {AttemptStatusCommitting, AttemptStatusCancelled},
}

// CanTransition reports whether an attempt may move from one status to another.
func CanTransition(from, to AttemptStatus) bool {
	for _, s := range attemptTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func (s AttemptStatus) Terminal() bool {
	return s == AttemptStatusConfirmed || s == AttemptStatusCancelled
}

// BookingAttempt tracks one requester's way from selecting a slot to a confirmed or cancelled booking.
type BookingAttempt struct {
	ID           string           `json:"id"`
	SessionID    string           `json:"session_id,omitempty"`
	VenueID      string           `json:"venue_id"`
	Date         string           `json:"date"`
	StartTime    string           `json:"start_time"`
	EndTime      string           `json:"end_time"`
	CourtName    string           `json:"court_name"`
	BookerID     string           `json:"booker_id"`
	Email        string           `json:"email"`
	PriceCents   int64            `json:"price_cents"`
	WasAvailable bool             `json:"was_available"`
	Status       AttemptStatus    `json:"status"`
	Conflict     *BookingConflict `json:"conflict,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

func (a BookingAttempt) Key() SlotKey {
	return SlotKey{VenueID: a.VenueID, Date: a.Date, StartTime: a.StartTime, CourtName: a.CourtName}
}

func (a BookingAttempt) Request() SlotRequest {
	return SlotRequest{
		VenueID:      a.VenueID,
		Date:         a.Date,
		StartTime:    a.StartTime,
		EndTime:      a.EndTime,
		CourtName:    a.CourtName,
		WasAvailable: a.WasAvailable,
	}
}

// ConfirmedSlot is a court-hour held by a confirmed attempt.
type ConfirmedSlot struct {
	AttemptID string `json:"attempt_id"`
	StartTime string `json:"start_time"`
	CourtName string `json:"court_name"`
	BookerID  string `json:"booker_id"`
}
