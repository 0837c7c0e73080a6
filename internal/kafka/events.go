package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Domenick1991/courtbooking/internal/domain"
	"github.com/segmentio/kafka-go"
)

const (
	EventBookingSelected   = "booking_selected"
	EventBookingConfirmed  = "booking_confirmed"
	EventBookingConflicted = "booking_conflicted"
	EventBookingCancelled  = "booking_cancelled"
	EventBookingExpired    = "booking_expired"
)

type BookingEvent struct {
	Type         string    `json:"type"`
	AttemptID    string    `json:"attempt_id"`
	VenueID      string    `json:"venue_id"`
	Date         string    `json:"date"`
	StartTime    string    `json:"start_time"`
	CourtName    string    `json:"court_name"`
	BookerID     string    `json:"booker_id"`
	Email        string    `json:"email"`
	Status       string    `json:"status"`
	ConflictType string    `json:"conflict_type,omitempty"`
	At           time.Time `json:"at"`
}

func NewBookingEvent(eventType string, attempt *domain.BookingAttempt) BookingEvent {
	event := BookingEvent{
		Type:      eventType,
		AttemptID: attempt.ID,
		VenueID:   attempt.VenueID,
		Date:      attempt.Date,
		StartTime: attempt.StartTime,
		CourtName: attempt.CourtName,
		BookerID:  attempt.BookerID,
		Email:     attempt.Email,
		Status:    string(attempt.Status),
		At:        attempt.UpdatedAt,
	}
	if attempt.Conflict != nil {
		event.ConflictType = string(attempt.Conflict.Type)
	}
	if event.At.IsZero() {
		event.At = time.Now()
	}
	return event
}

// AvailabilityKey keys availability events so one venue day stays on one partition.
func AvailabilityKey(venueID, date string) string {
	return venueID + "/" + date
}

func DecodeBookingEvent(msg kafka.Message) (BookingEvent, error) {
	var event BookingEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return BookingEvent{}, fmt.Errorf("decode booking event: %w", err)
	}
	return event, nil
}

func DecodeSlotChange(msg kafka.Message) (domain.SlotChange, error) {
	var change domain.SlotChange
	if err := json.Unmarshal(msg.Value, &change); err != nil {
		return domain.SlotChange{}, fmt.Errorf("decode slot change: %w", err)
	}
	if change.VenueID == "" || change.Date == "" || change.Time == "" {
		return domain.SlotChange{}, fmt.Errorf("decode slot change: missing venue, date or time")
	}
	return change, nil
}
