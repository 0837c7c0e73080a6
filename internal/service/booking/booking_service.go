package booking

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/Domenick1991/courtbooking/internal/domain"
	"github.com/Domenick1991/courtbooking/internal/kafka"
	"github.com/Domenick1991/courtbooking/internal/repository"
	"github.com/Domenick1991/courtbooking/internal/service/availability"
	"github.com/Domenick1991/courtbooking/internal/service/conflict"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrAttemptNotFound     = errors.New("booking attempt not found")
	ErrInvalidAttemptState = errors.New("booking attempt is not in a valid state for this action")
	ErrSlotUnavailable     = errors.New("slot is not available")
	ErrInvalidInput        = errors.New("invalid booking input")
)

// SlotConflictError reports why a slot cannot be selected. It matches ErrSlotUnavailable.
type SlotConflictError struct {
	Conflict *domain.BookingConflict
}

func (e *SlotConflictError) Error() string {
	return fmt.Sprintf("%s: %s", ErrSlotUnavailable, e.Conflict.Message)
}

func (e *SlotConflictError) Unwrap() error {
	return ErrSlotUnavailable
}

type BookingUseCase interface {
	SelectSlot(ctx context.Context, input SelectSlotInput) (*domain.BookingAttempt, error)
	GetAttempt(ctx context.Context, id string) (*domain.BookingAttempt, error)
	CommitBooking(ctx context.Context, id string) (*CommitResult, error)
	ResolveWithAlternative(ctx context.Context, id string, alternative domain.AlternativeSlot) (*CommitResult, error)
	Alternatives(ctx context.Context, id string) ([]domain.AlternativeSlot, error)
	CancelBooking(ctx context.Context, id string) (*domain.BookingAttempt, error)
	ExpireStaleAttempts(ctx context.Context) ([]domain.BookingAttempt, error)
}

type Cache interface {
	AcquireSlotLock(ctx context.Context, key domain.SlotKey, owner string, ttl time.Duration) (bool, error)
	ReleaseSlotLock(ctx context.Context, key domain.SlotKey, owner string) error
}

type Producer interface {
	Publish(ctx context.Context, topic, key string, value interface{}) error
}

// Venues is the venue data the booking flow reads.
type Venues interface {
	GetByID(ctx context.Context, id string) (*domain.Venue, error)
	VenueState(ctx context.Context, venueID string, date time.Time) (domain.VenueState, error)
	CandidateAlternatives(ctx context.Context, criteria domain.AlternativeCriteria) ([]domain.CandidateSlot, error)
}

// LiveState exposes the slot as a viewer session currently sees it.
type LiveState interface {
	LiveSlot(sessionID, venueID, date, slotTime string) (domain.TimeSlot, bool)
}

type SelectSlotInput struct {
	SessionID string `json:"session_id"`
	VenueID   string `json:"venue_id"`
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	CourtName string `json:"court_name"`
	BookerID  string `json:"booker_id"`
	Email     string `json:"email"`
}

// CommitResult is the outcome of a commit. A conflict is a normal result, not an error;
// Alternatives is empty when nothing qualifies.
type CommitResult struct {
	Attempt                 *domain.BookingAttempt   `json:"attempt"`
	Conflict                *domain.BookingConflict  `json:"conflict,omitempty"`
	Alternatives            []domain.AlternativeSlot `json:"alternatives"`
	AlternativesUnavailable bool                     `json:"alternatives_unavailable,omitempty"`
}

type BookingService struct {
	attempts           repository.AttemptRepository
	venues             Venues
	cache              Cache
	producer           Producer
	live               LiveState
	log                *zap.Logger
	bookingTopic       string
	availabilityTopic  string
	notificationsTopic string
	holdTTL            time.Duration
	lockTTL            time.Duration
	alternativesLimit  int
	radiusKM           float64
	now                func() time.Time
}

type BookingServiceOption func(*BookingService)

func WithNotificationsTopic(topic string) BookingServiceOption {
	return func(s *BookingService) {
		s.notificationsTopic = topic
	}
}

func WithAvailabilityTopic(topic string) BookingServiceOption {
	return func(s *BookingService) {
		s.availabilityTopic = topic
	}
}

func WithLiveState(live LiveState) BookingServiceOption {
	return func(s *BookingService) {
		s.live = live
	}
}

func WithLogger(log *zap.Logger) BookingServiceOption {
	return func(s *BookingService) {
		if log != nil {
			s.log = log.Named("booking")
		}
	}
}

func WithAlternatives(limit int, radiusKM float64) BookingServiceOption {
	return func(s *BookingService) {
		s.alternativesLimit = limit
		s.radiusKM = radiusKM
	}
}

func WithLockTTL(ttl time.Duration) BookingServiceOption {
	return func(s *BookingService) {
		if ttl > 0 {
			s.lockTTL = ttl
		}
	}
}

func NewBookingService(
	attempts repository.AttemptRepository,
	venues Venues,
	cache Cache,
	producer Producer,
	bookingTopic string,
	holdTTL time.Duration,
	opts ...BookingServiceOption,
) *BookingService {
	service := &BookingService{
		attempts:     attempts,
		venues:       venues,
		cache:        cache,
		producer:     producer,
		log:          zap.NewNop(),
		bookingTopic: bookingTopic,
		holdTTL:      holdTTL,
		lockTTL:      30 * time.Second,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

// SelectSlot records the requester's intent to book a slot they currently see as available.
func (s *BookingService) SelectSlot(ctx context.Context, input SelectSlotInput) (*domain.BookingAttempt, error) {
	if input.VenueID == "" {
		return nil, fmt.Errorf("%w: venue_id is required", ErrInvalidInput)
	}
	if input.Email == "" {
		return nil, fmt.Errorf("%w: email is required", ErrInvalidInput)
	}
	date, err := time.Parse(domain.DateLayout, input.Date)
	if err != nil {
		return nil, fmt.Errorf("%w: date must be YYYY-MM-DD", ErrInvalidInput)
	}
	hour, err := availability.ParseHour("start_time", input.StartTime)
	if err != nil || hour > 23 {
		return nil, fmt.Errorf("%w: start_time must be HH:00", ErrInvalidInput)
	}
	start := availability.SlotLabel(hour)
	taken := func(court string) error {
		req := domain.SlotRequest{
			VenueID:      input.VenueID,
			Date:         input.Date,
			StartTime:    start,
			EndTime:      availability.SlotLabel(hour + 1),
			CourtName:    court,
			WasAvailable: true,
		}
		return &SlotConflictError{Conflict: conflict.Detect(req, domain.TimeSlot{Time: start}, domain.VenueState{})}
	}

	venue, err := s.venues.GetByID(ctx, input.VenueID)
	if err != nil {
		return nil, err
	}
	if input.CourtName != "" && !slices.Contains(venue.Courts, input.CourtName) {
		return nil, fmt.Errorf("%w: unknown court %q", ErrInvalidInput, input.CourtName)
	}

	if s.live != nil && input.SessionID != "" {
		if slot, ok := s.live.LiveSlot(input.SessionID, venue.ID, input.Date, start); ok && !slot.Available {
			return nil, taken(input.CourtName)
		}
	}

	booked, err := s.bookedCourts(ctx, venue.ID, input.Date, start)
	if err != nil {
		return nil, err
	}
	court := input.CourtName
	if court == "" {
		court = firstFreeCourt(venue.Courts, booked)
	}
	if court == "" || booked[court] {
		return nil, taken(court)
	}

	state, err := s.venues.VenueState(ctx, venue.ID, date)
	if err != nil {
		return nil, err
	}

	bookerID := input.BookerID
	if bookerID == "" {
		bookerID = strings.ToLower(input.Email)
	}

	attempt := &domain.BookingAttempt{
		ID:           uuid.NewString(),
		SessionID:    input.SessionID,
		VenueID:      venue.ID,
		Date:         input.Date,
		StartTime:    start,
		EndTime:      availability.SlotLabel(hour + 1),
		CourtName:    court,
		BookerID:     bookerID,
		Email:        input.Email,
		PriceCents:   venue.PricePerHourCents,
		WasAvailable: true,
		Status:       domain.AttemptStatusSelected,
	}
	if c := conflict.Detect(attempt.Request(), domain.TimeSlot{Time: start, Hour: hour, Available: true}, state); c != nil {
		return nil, &SlotConflictError{Conflict: c}
	}

	if err := s.attempts.Create(ctx, attempt); err != nil {
		return nil, err
	}

	s.publish(ctx, kafka.EventBookingSelected, attempt)
	return attempt, nil
}

func (s *BookingService) GetAttempt(ctx context.Context, id string) (*domain.BookingAttempt, error) {
	attempt, err := s.attempts.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrAttemptNotFound
	}
	return attempt, err
}

// CommitBooking re-validates the selected slot and resolves the attempt to CONFIRMED or CONFLICTED.
func (s *BookingService) CommitBooking(ctx context.Context, id string) (*CommitResult, error) {
	attempt, err := s.GetAttempt(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.commit(ctx, attempt, *attempt)
}

// ResolveWithAlternative moves a conflicted attempt onto the chosen alternative and commits it again.
func (s *BookingService) ResolveWithAlternative(ctx context.Context, id string, alternative domain.AlternativeSlot) (*CommitResult, error) {
	attempt, err := s.GetAttempt(ctx, id)
	if err != nil {
		return nil, err
	}
	if attempt.Status != domain.AttemptStatusConflicted {
		return nil, ErrInvalidAttemptState
	}

	hour, err := availability.ParseHour("start_time", alternative.StartTime)
	if err != nil || hour > 23 {
		return nil, fmt.Errorf("%w: alternative start_time must be HH:00", ErrInvalidInput)
	}
	if _, err := time.Parse(domain.DateLayout, alternative.Date); err != nil {
		return nil, fmt.Errorf("%w: alternative date must be YYYY-MM-DD", ErrInvalidInput)
	}
	venue, err := s.venues.GetByID(ctx, alternative.VenueID)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(venue.Courts, alternative.CourtName) {
		return nil, fmt.Errorf("%w: unknown court %q", ErrInvalidInput, alternative.CourtName)
	}

	prior := *attempt
	attempt.VenueID = venue.ID
	attempt.Date = alternative.Date
	attempt.StartTime = availability.SlotLabel(hour)
	attempt.EndTime = availability.SlotLabel(hour + 1)
	attempt.CourtName = alternative.CourtName
	attempt.PriceCents = venue.PricePerHourCents
	attempt.WasAvailable = true
	// the alternative was picked outside any live view
	attempt.SessionID = ""

	return s.commit(ctx, attempt, prior)
}

// Alternatives recomputes the ranked substitutes for a conflicted attempt.
func (s *BookingService) Alternatives(ctx context.Context, id string) ([]domain.AlternativeSlot, error) {
	attempt, err := s.GetAttempt(ctx, id)
	if err != nil {
		return nil, err
	}
	if attempt.Status != domain.AttemptStatusConflicted {
		return nil, ErrInvalidAttemptState
	}
	return s.alternatives(ctx, attempt)
}

func (s *BookingService) CancelBooking(ctx context.Context, id string) (*domain.BookingAttempt, error) {
	attempt, err := s.GetAttempt(ctx, id)
	if err != nil {
		return nil, err
	}
	if attempt.Status == domain.AttemptStatusCancelled {
		return attempt, nil
	}
	if !domain.CanTransition(attempt.Status, domain.AttemptStatusCancelled) {
		return nil, ErrInvalidAttemptState
	}

	from := attempt.Status
	attempt.Status = domain.AttemptStatusCancelled
	if err := s.save(ctx, attempt, from); err != nil {
		return nil, err
	}

	s.publish(ctx, kafka.EventBookingCancelled, attempt)
	return attempt, nil
}

// ExpireStaleAttempts cancels selections that were never committed within the hold TTL.
func (s *BookingService) ExpireStaleAttempts(ctx context.Context) ([]domain.BookingAttempt, error) {
	expired, err := s.attempts.ExpireSelectedBefore(ctx, s.now().Add(-s.holdTTL))
	if err != nil {
		return nil, err
	}
	for i := range expired {
		s.publish(ctx, kafka.EventBookingExpired, &expired[i])
	}
	return expired, nil
}

// commit runs one attempt through COMMITTING. prior is the attempt as stored before
// this call and is written back if the commit cannot finish.
func (s *BookingService) commit(ctx context.Context, attempt *domain.BookingAttempt, prior domain.BookingAttempt) (*CommitResult, error) {
	from := attempt.Status
	if !domain.CanTransition(from, domain.AttemptStatusCommitting) {
		return nil, ErrInvalidAttemptState
	}
	attempt.Status = domain.AttemptStatusCommitting
	attempt.Conflict = nil
	if err := s.save(ctx, attempt, from); err != nil {
		*attempt = prior
		return nil, err
	}

	key := attempt.Key()
	locked, err := s.acquire(ctx, key, attempt.ID)
	if err != nil {
		return nil, s.rollback(ctx, attempt, prior, err)
	}
	if locked {
		defer s.release(ctx, key, attempt.ID)
	}

	found, err := s.check(ctx, attempt, locked)
	if err != nil {
		return nil, s.rollback(ctx, attempt, prior, err)
	}

	if found == nil {
		attempt.Status = domain.AttemptStatusConfirmed
		err := s.attempts.Save(ctx, attempt, domain.AttemptStatusCommitting)
		switch {
		case err == nil:
			s.publish(ctx, kafka.EventBookingConfirmed, attempt)
			s.publishAvailability(ctx, attempt)
			return &CommitResult{Attempt: attempt, Alternatives: []domain.AlternativeSlot{}}, nil
		case errors.Is(err, repository.ErrSlotTaken):
			found = conflict.Detect(attempt.Request(), domain.TimeSlot{Time: attempt.StartTime, Available: false}, domain.VenueState{})
		default:
			return nil, s.rollback(ctx, attempt, prior, err)
		}
	}

	attempt.Status = domain.AttemptStatusConflicted
	attempt.Conflict = found
	if err := s.save(ctx, attempt, domain.AttemptStatusCommitting); err != nil {
		return nil, err
	}
	s.publish(ctx, kafka.EventBookingConflicted, attempt)

	result := &CommitResult{Attempt: attempt, Conflict: found, Alternatives: []domain.AlternativeSlot{}}
	alternatives, err := s.alternatives(ctx, attempt)
	if err != nil {
		s.log.Warn("alternatives unavailable", zap.String("attempt_id", attempt.ID), zap.Error(err))
		result.AlternativesUnavailable = true
		return result, nil
	}
	result.Alternatives = alternatives
	return result, nil
}

// check gathers the current slot state and classifies it. Without the slot lock another
// commit for the same court-hour is in flight and the slot counts as taken.
func (s *BookingService) check(ctx context.Context, attempt *domain.BookingAttempt, locked bool) (*domain.BookingConflict, error) {
	date, err := time.Parse(domain.DateLayout, attempt.Date)
	if err != nil {
		return nil, fmt.Errorf("%w: stored date %q", ErrInvalidInput, attempt.Date)
	}
	state, err := s.venues.VenueState(ctx, attempt.VenueID, date)
	if err != nil {
		return nil, err
	}

	booked, err := s.bookedCourts(ctx, attempt.VenueID, attempt.Date, attempt.StartTime)
	if err != nil {
		return nil, err
	}

	current := domain.TimeSlot{Time: attempt.StartTime, Available: locked && !booked[attempt.CourtName]}
	if s.live != nil && attempt.SessionID != "" {
		if slot, ok := s.live.LiveSlot(attempt.SessionID, attempt.VenueID, attempt.Date, attempt.StartTime); ok && !slot.Available {
			current.Available = false
		}
	}

	return conflict.Detect(attempt.Request(), current, state), nil
}

func (s *BookingService) alternatives(ctx context.Context, attempt *domain.BookingAttempt) ([]domain.AlternativeSlot, error) {
	pool, err := s.venues.CandidateAlternatives(ctx, domain.AlternativeCriteria{
		VenueID:   attempt.VenueID,
		Date:      attempt.Date,
		StartTime: attempt.StartTime,
		CourtName: attempt.CourtName,
		RadiusKM:  s.radiusKM,
	})
	if err != nil {
		return nil, err
	}
	ranked := conflict.SuggestAlternatives(attempt.Request(), attempt.Conflict, pool)
	return conflict.Limit(ranked, s.alternativesLimit), nil
}

func (s *BookingService) bookedCourts(ctx context.Context, venueID, date, start string) (map[string]bool, error) {
	confirmed, err := s.attempts.ConfirmedSlots(ctx, venueID, date)
	if err != nil {
		return nil, err
	}
	booked := make(map[string]bool)
	for _, c := range confirmed {
		if c.StartTime == start {
			booked[c.CourtName] = true
		}
	}
	return booked, nil
}

func firstFreeCourt(courts []string, booked map[string]bool) string {
	for _, c := range courts {
		if !booked[c] {
			return c
		}
	}
	return ""
}

func (s *BookingService) save(ctx context.Context, attempt *domain.BookingAttempt, expected domain.AttemptStatus) error {
	err := s.attempts.Save(ctx, attempt, expected)
	if errors.Is(err, repository.ErrStaleAttempt) {
		return ErrInvalidAttemptState
	}
	return err
}

// rollback restores an attempt stuck in COMMITTING to prior, including the slot and
// conflict it carried, so the commit can be retried.
func (s *BookingService) rollback(ctx context.Context, attempt *domain.BookingAttempt, prior domain.BookingAttempt, cause error) error {
	*attempt = prior
	if err := s.attempts.Save(ctx, attempt, domain.AttemptStatusCommitting); err != nil {
		s.log.Error("rollback of committing attempt failed", zap.String("attempt_id", attempt.ID), zap.Error(err))
	}
	return cause
}

func (s *BookingService) acquire(ctx context.Context, key domain.SlotKey, owner string) (bool, error) {
	if s.cache == nil {
		return true, nil
	}
	return s.cache.AcquireSlotLock(ctx, key, owner, s.lockTTL)
}

func (s *BookingService) release(ctx context.Context, key domain.SlotKey, owner string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.ReleaseSlotLock(ctx, key, owner); err != nil {
		s.log.Warn("release slot lock", zap.Error(err))
	}
}

func (s *BookingService) publish(ctx context.Context, eventType string, attempt *domain.BookingAttempt) {
	if s.producer == nil || s.bookingTopic == "" {
		return
	}
	event := kafka.NewBookingEvent(eventType, attempt)
	if err := s.producer.Publish(ctx, s.bookingTopic, attempt.ID, event); err != nil {
		s.log.Warn("publish booking event", zap.String("type", eventType), zap.String("attempt_id", attempt.ID), zap.Error(err))
		return
	}
	if s.notificationsTopic != "" {
		if err := s.producer.Publish(ctx, s.notificationsTopic, attempt.ID, event); err != nil {
			s.log.Warn("publish notification", zap.String("type", eventType), zap.String("attempt_id", attempt.ID), zap.Error(err))
		}
	}
}

// publishAvailability announces the confirmed court-hour so live feeds of that venue day update.
func (s *BookingService) publishAvailability(ctx context.Context, attempt *domain.BookingAttempt) {
	if s.producer == nil || s.availabilityTopic == "" {
		return
	}

	venue, err := s.venues.GetByID(ctx, attempt.VenueID)
	if err != nil {
		s.log.Warn("availability event skipped", zap.String("attempt_id", attempt.ID), zap.Error(err))
		return
	}
	confirmed, err := s.attempts.ConfirmedSlots(ctx, attempt.VenueID, attempt.Date)
	if err != nil {
		s.log.Warn("availability event skipped", zap.String("attempt_id", attempt.ID), zap.Error(err))
		return
	}

	booked := make(map[string][]string)
	for _, c := range confirmed {
		booked[c.StartTime] = append(booked[c.StartTime], c.BookerID)
	}
	available, bookedBy := availability.BookedSeed{Booked: booked, Courts: len(venue.Courts)}.SlotState(attempt.StartTime)

	change := domain.SlotChange{
		VenueID:   attempt.VenueID,
		Date:      attempt.Date,
		Time:      attempt.StartTime,
		Available: available,
		BookedBy:  bookedBy,
		At:        s.now(),
	}
	if err := s.producer.Publish(ctx, s.availabilityTopic, kafka.AvailabilityKey(change.VenueID, change.Date), change); err != nil {
		s.log.Warn("publish availability event", zap.String("attempt_id", attempt.ID), zap.Error(err))
	}
}

var _ BookingUseCase = (*BookingService)(nil)
