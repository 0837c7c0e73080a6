package availability

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Domenick1991/courtbooking/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrNoSelection     = errors.New("no venue and date selected")
	ErrStaleSelection  = errors.New("selection changed while loading")
	ErrFetchFailed     = errors.New("availability could not be loaded")
)

type DayState string

const (
	DayStateOpen    DayState = "open"
	DayStateClosed  DayState = "closed"
	DayStateUnknown DayState = "unknown"
)

// DaySource provides what is needed to build a venue day.
type DaySource interface {
	VenueState(ctx context.Context, venueID string, date time.Time) (domain.VenueState, error)
	Seed(ctx context.Context, venueID string, date time.Time) (Seed, error)
}

type SlotView struct {
	domain.TimeSlot
	RecentlyUpdated bool `json:"recently_updated"`
}

type DayView struct {
	VenueID string     `json:"venue_id"`
	Date    string     `json:"date"`
	State   DayState   `json:"state"`
	Reason  string     `json:"reason,omitempty"`
	Slots   []SlotView `json:"slots"`
}

// Session is one viewer's selection of a venue day together with its live feed.
type Session struct {
	ID string

	hub *Hub

	mu       sync.Mutex
	gen      uint64
	cancel   context.CancelFunc
	venueID  string
	date     string
	state    DayState
	reason   string
	feed     *Feed
	lastSeen time.Time
}

// Select switches the session to venueID on date. A load still running for the
// previous selection is cancelled and its late result is discarded.
func (s *Session) Select(ctx context.Context, venueID string, date time.Time) (DayView, error) {
	s.mu.Lock()
	s.gen++
	gen := s.gen
	if s.cancel != nil {
		s.cancel()
	}
	loadCtx, cancel := context.WithTimeout(ctx, s.hub.fetchTimeout)
	s.cancel = cancel
	s.lastSeen = s.hub.now()
	s.mu.Unlock()
	defer cancel()

	schedule, err := s.hub.load(loadCtx, venueID, date)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.gen != gen {
		return DayView{}, ErrStaleSelection
	}
	s.cancel = nil

	var parseErr *ParseError
	switch {
	case errors.As(err, &parseErr):
		s.replace(venueID, date, DayStateUnknown, "Availability is unknown for this venue and day.", nil)
		s.hub.log.Warn("invalid operating hours", zap.String("venue_id", venueID), zap.Error(err))
	case err != nil:
		if ctx.Err() != nil {
			return DayView{}, ctx.Err()
		}
		return DayView{}, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	case schedule.Closed:
		s.replace(venueID, date, DayStateClosed, schedule.Reason, nil)
	default:
		s.replace(venueID, date, DayStateOpen, "", schedule.Slots)
	}

	return s.viewLocked(), nil
}

// replace must be called with s.mu held.
func (s *Session) replace(venueID string, date time.Time, state DayState, reason string, slots []domain.TimeSlot) {
	if s.feed != nil {
		s.feed.Close()
	}
	s.venueID = venueID
	s.date = date.Format(domain.DateLayout)
	s.state = state
	s.reason = reason
	s.feed = NewFeed(s.venueID, s.date, slots, s.hub.feedOptions...)
}

func (s *Session) View() (DayView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.feed == nil {
		return DayView{}, ErrNoSelection
	}
	s.lastSeen = s.hub.now()
	return s.viewLocked(), nil
}

func (s *Session) viewLocked() DayView {
	view := DayView{
		VenueID: s.venueID,
		Date:    s.date,
		State:   s.state,
		Reason:  s.reason,
		Slots:   []SlotView{},
	}
	for _, slot := range s.feed.Slots() {
		view.Slots = append(view.Slots, SlotView{TimeSlot: slot, RecentlyUpdated: s.feed.RecentlyUpdated(slot)})
	}
	return view
}

// Refresh updates the shown day on demand. A simulated hub flips one to three slots.
// Otherwise the day is reloaded from the source and the slots whose state differs are
// set to it, so a refresh never invents bookings.
func (s *Session) Refresh(ctx context.Context) ([]domain.SlotChange, error) {
	feed, err := s.currentFeed()
	if err != nil {
		return nil, err
	}
	if s.hub.simulate {
		return feed.Refresh(), nil
	}

	date, err := time.Parse(domain.DateLayout, feed.Date())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	loadCtx, cancel := context.WithTimeout(ctx, s.hub.fetchTimeout)
	defer cancel()

	schedule, err := s.hub.load(loadCtx, feed.VenueID(), date)
	var parseErr *ParseError
	switch {
	case errors.As(err, &parseErr):
		s.hub.log.Warn("invalid operating hours", zap.String("venue_id", feed.VenueID()), zap.Error(err))
		return []domain.SlotChange{}, nil
	case err != nil:
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	return feed.Sync(schedule.Slots), nil
}

// Subscribe streams the transitions of the shown day until the selection changes,
// the session closes or unsubscribe is called.
func (s *Session) Subscribe(buffer int) (<-chan domain.SlotChange, func(), error) {
	feed, err := s.currentFeed()
	if err != nil {
		return nil, nil, err
	}
	changes, unsubscribe := feed.Subscribe(buffer)
	return changes, unsubscribe, nil
}

func (s *Session) Changes() ([]domain.SlotChange, error) {
	feed, err := s.currentFeed()
	if err != nil {
		return nil, err
	}
	return feed.Recent(), nil
}

// Slot returns the live state of slotTime if the session currently shows venueID on date.
func (s *Session) Slot(venueID, date, slotTime string) (domain.TimeSlot, bool) {
	s.mu.Lock()
	feed := s.feed
	matches := s.venueID == venueID && s.date == date
	s.mu.Unlock()

	if feed == nil || !matches {
		return domain.TimeSlot{}, false
	}
	return feed.Slot(slotTime)
}

func (s *Session) currentFeed() (*Feed, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.feed == nil {
		return nil, ErrNoSelection
	}
	s.lastSeen = s.hub.now()
	return s.feed, nil
}

func (s *Session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	if s.feed != nil {
		s.feed.Close()
	}
}

type HubConfig struct {
	// Simulate drives slot states from random flips instead of the source's bookings.
	Simulate      bool
	FetchTimeout  time.Duration
	RecentLimit   int
	RecencyWindow time.Duration
	IdleTimeout   time.Duration
}

// Hub keeps the viewer sessions and fans availability updates out to their feeds.
type Hub struct {
	source       DaySource
	log          *zap.Logger
	simulate     bool
	fetchTimeout time.Duration
	idleTimeout  time.Duration
	feedOptions  []FeedOption
	now          func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewHub(source DaySource, log *zap.Logger, cfg HubConfig) *Hub {
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		source:       source,
		log:          log.Named("availability"),
		simulate:     cfg.Simulate,
		fetchTimeout: cfg.FetchTimeout,
		idleTimeout:  cfg.IdleTimeout,
		feedOptions:  []FeedOption{WithRecentLimit(cfg.RecentLimit), WithRecencyWindow(cfg.RecencyWindow)},
		now:          time.Now,
		sessions:     make(map[string]*Session),
	}
}

func (h *Hub) load(ctx context.Context, venueID string, date time.Time) (DaySchedule, error) {
	state, err := h.source.VenueState(ctx, venueID, date)
	if err != nil {
		return DaySchedule{}, err
	}
	seed, err := h.source.Seed(ctx, venueID, date)
	if err != nil {
		return DaySchedule{}, err
	}
	if err := ctx.Err(); err != nil {
		return DaySchedule{}, err
	}
	return BuildStateSlots(state, date, seed)
}

func (h *Hub) Open() *Session {
	s := &Session{ID: uuid.NewString(), hub: h, lastSeen: h.now()}

	h.mu.Lock()
	h.sessions[s.ID] = s
	h.mu.Unlock()

	return s
}

func (h *Hub) Get(id string) (*Session, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	s, ok := h.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

func (h *Hub) Close(id string) error {
	h.mu.Lock()
	s, ok := h.sessions[id]
	delete(h.sessions, id)
	h.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}
	s.close()
	return nil
}

func (h *Hub) snapshot() []*Session {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]*Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		out = append(out, s)
	}
	return out
}

// TickAll runs one ambient tick on every session showing an open day.
func (h *Hub) TickAll() int {
	changed := 0
	for _, s := range h.snapshot() {
		s.mu.Lock()
		feed := s.feed
		s.mu.Unlock()
		if feed == nil {
			continue
		}
		changed += len(feed.Tick())
	}
	return changed
}

// Apply delivers a pushed transition to every session showing its venue day.
func (h *Hub) Apply(change domain.SlotChange) int {
	applied := 0
	for _, s := range h.snapshot() {
		s.mu.Lock()
		feed := s.feed
		matches := s.venueID == change.VenueID && s.date == change.Date
		s.mu.Unlock()
		if feed == nil || !matches {
			continue
		}
		if feed.Apply(change) {
			applied++
		}
	}
	return applied
}

// LiveSlot reads the slot as shown in the given session.
func (h *Hub) LiveSlot(sessionID, venueID, date, slotTime string) (domain.TimeSlot, bool) {
	s, err := h.Get(sessionID)
	if err != nil {
		return domain.TimeSlot{}, false
	}
	return s.Slot(venueID, date, slotTime)
}

// EvictIdle closes sessions not used within the idle timeout.
func (h *Hub) EvictIdle() int {
	if h.idleTimeout <= 0 {
		return 0
	}
	cutoff := h.now().Add(-h.idleTimeout)

	evicted := 0
	for _, s := range h.snapshot() {
		s.mu.Lock()
		idle := s.lastSeen.Before(cutoff)
		s.mu.Unlock()
		if idle && h.Close(s.ID) == nil {
			evicted++
		}
	}
	return evicted
}

// Run drives ambient ticks (on a simulated hub) and idle eviction until ctx is done.
func (h *Hub) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if h.simulate {
				if n := h.TickAll(); n > 0 {
					h.log.Debug("ambient tick", zap.Int("changes", n))
				}
			}
			if n := h.EvictIdle(); n > 0 {
				h.log.Info("evicted idle sessions", zap.Int("count", n))
			}
		}
	}
}
