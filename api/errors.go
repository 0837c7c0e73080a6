package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/Domenick1991/courtbooking/internal/service/availability"
	"github.com/Domenick1991/courtbooking/internal/service/booking"
	"github.com/Domenick1991/courtbooking/internal/service/venues"
	"github.com/gin-gonic/gin"
)

func statusFor(err error) int {
	switch {
	case errors.Is(err, availability.ErrSessionNotFound),
		errors.Is(err, booking.ErrAttemptNotFound),
		errors.Is(err, venues.ErrVenueNotFound):
		return http.StatusNotFound
	case errors.Is(err, booking.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, availability.ErrNoSelection),
		errors.Is(err, availability.ErrStaleSelection),
		errors.Is(err, booking.ErrSlotUnavailable),
		errors.Is(err, booking.ErrInvalidAttemptState):
		return http.StatusConflict
	case errors.Is(err, availability.ErrFetchFailed),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err as {"error": ...}. Unavailable dependencies are flagged retryable
// and a slot that cannot be selected carries its typed conflict.
func writeError(c *gin.Context, err error) {
	status := statusFor(err)
	body := gin.H{"error": err.Error()}
	if status == http.StatusServiceUnavailable {
		body["retryable"] = true
	}
	var slotConflict *booking.SlotConflictError
	if errors.As(err, &slotConflict) {
		body["conflict"] = slotConflict.Conflict
	}
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		body["error"] = "internal error"
	}
	c.JSON(status, body)
}
