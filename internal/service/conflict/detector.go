package conflict

import (
	"time"

	"github.com/Domenick1991/courtbooking/internal/domain"
	"github.com/Domenick1991/courtbooking/internal/service/availability"
)

// Detect classifies why req can no longer be honoured given the slot as it stands now
// and the venue's hours and upkeep schedule. It returns nil when the booking may proceed.
// Checks run in order: double booking, maintenance, closed.
func Detect(req domain.SlotRequest, current domain.TimeSlot, venue domain.VenueState) *domain.BookingConflict {
	switch {
	case !current.Available && req.WasAvailable:
		return newConflict(req, domain.ConflictDoubleBooking)
	case underMaintenance(req, venue.Maintenance):
		return newConflict(req, domain.ConflictMaintenance)
	case !withinHours(req, venue):
		return newConflict(req, domain.ConflictClosed)
	}
	return nil
}

func newConflict(req domain.SlotRequest, t domain.ConflictType) *domain.BookingConflict {
	return &domain.BookingConflict{
		Type:      t,
		Date:      req.Date,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		CourtName: req.CourtName,
		Message:   domain.ConflictMessage(t),
	}
}

func underMaintenance(req domain.SlotRequest, windows []domain.MaintenanceWindow) bool {
	start, end, ok := requestRange(req)
	if !ok {
		return false
	}
	for _, w := range windows {
		if w.Date != req.Date {
			continue
		}
		if w.CourtName != "" && req.CourtName != "" && w.CourtName != req.CourtName {
			continue
		}
		wStart, err := availability.ParseHour("start", w.Start)
		if err != nil {
			continue
		}
		wEnd, err := availability.ParseHour("end", w.End)
		if err != nil {
			continue
		}
		if start < wEnd && wStart < end {
			return true
		}
	}
	return false
}

// withinHours treats unparseable hours as not covering the slot.
func withinHours(req domain.SlotRequest, venue domain.VenueState) bool {
	date, err := time.Parse(domain.DateLayout, req.Date)
	if err != nil {
		return false
	}
	hours, ok := venue.HoursOn(date)
	if !ok || hours.Closed {
		return false
	}
	open, closing, err := availability.HourRange(hours)
	if err != nil {
		return false
	}
	start, end, ok := requestRange(req)
	if !ok {
		return false
	}
	return start >= open && end <= closing
}

// requestRange returns the requested hours as [start, end). A missing end time means one hour.
func requestRange(req domain.SlotRequest) (int, int, bool) {
	start, err := availability.ParseHour("start_time", req.StartTime)
	if err != nil {
		return 0, 0, false
	}
	end := start + 1
	if req.EndTime != "" {
		end, err = availability.ParseHour("end_time", req.EndTime)
		if err != nil || end <= start {
			return 0, 0, false
		}
	}
	return start, end, true
}
