package email

import (
	"context"
	"fmt"

	"github.com/Domenick1991/courtbooking/internal/kafka"
	"go.uber.org/zap"
)

type Sender struct {
	log *zap.Logger
}

func NewSender(log *zap.Logger) *Sender {
	if log == nil {
		log = zap.NewNop()
	}
	return &Sender{log: log.Named("email")}
}

// Send delivers the notification for a booking event. Delivery is a structured log entry.
func (s *Sender) Send(ctx context.Context, event kafka.BookingEvent) error {
	if event.Email == "" {
		return fmt.Errorf("booking %s has no recipient", event.AttemptID)
	}
	s.log.Info("send email",
		zap.String("to", event.Email),
		zap.String("subject", Subject(event)),
		zap.String("attempt_id", event.AttemptID),
		zap.String("venue_id", event.VenueID),
		zap.String("date", event.Date),
		zap.String("start_time", event.StartTime),
		zap.String("court", event.CourtName))
	return nil
}

func Subject(event kafka.BookingEvent) string {
	slot := fmt.Sprintf("%s %s at %s", event.Date, event.StartTime, event.CourtName)
	switch event.Type {
	case kafka.EventBookingSelected:
		return "Slot held: " + slot
	case kafka.EventBookingConfirmed:
		return "Booking confirmed: " + slot
	case kafka.EventBookingConflicted:
		return "Your slot is no longer available: " + slot
	case kafka.EventBookingCancelled:
		return "Booking cancelled: " + slot
	case kafka.EventBookingExpired:
		return "Hold expired: " + slot
	default:
		return "Booking update: " + slot
	}
}
