package availability

import (
	"math/rand"
	"slices"
	"sync"
	"time"

	"github.com/Domenick1991/courtbooking/internal/domain"
	"github.com/google/uuid"
)

const (
	DefaultRecentLimit   = 5
	DefaultRecencyWindow = 10 * time.Second

	maxRefreshChanges = 3
)

// Feed owns the slot list of one venue day and applies availability transitions to it.
// Every mutation holds the feed lock, so observers never see a half-updated slot
// and a manual refresh waits for an ambient tick already in progress.
type Feed struct {
	mu      sync.Mutex
	venueID string
	date    string
	slots   []domain.TimeSlot
	index   map[string]int
	recent  []domain.SlotChange
	touched map[string]bool
	limit   int
	window  time.Duration
	rng     *rand.Rand
	now     func() time.Time
	subs    map[int]chan domain.SlotChange
	nextSub int
}

type FeedOption func(*Feed)

func WithRecentLimit(n int) FeedOption {
	return func(f *Feed) {
		if n > 0 {
			f.limit = n
		}
	}
}

func WithRecencyWindow(d time.Duration) FeedOption {
	return func(f *Feed) {
		if d > 0 {
			f.window = d
		}
	}
}

func WithRand(r *rand.Rand) FeedOption {
	return func(f *Feed) {
		if r != nil {
			f.rng = r
		}
	}
}

func WithClock(now func() time.Time) FeedOption {
	return func(f *Feed) {
		if now != nil {
			f.now = now
		}
	}
}

func NewFeed(venueID, date string, slots []domain.TimeSlot, opts ...FeedOption) *Feed {
	f := &Feed{
		venueID: venueID,
		date:    date,
		slots:   cloneSlots(slots),
		index:   make(map[string]int, len(slots)),
		touched: make(map[string]bool),
		limit:   DefaultRecentLimit,
		window:  DefaultRecencyWindow,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		now:     time.Now,
		subs:    make(map[int]chan domain.SlotChange),
	}
	for i, s := range f.slots {
		f.index[s.Time] = i
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Feed) VenueID() string { return f.venueID }

func (f *Feed) Date() string { return f.date }

// Slots returns a copy of the slots in ascending hour order.
func (f *Feed) Slots() []domain.TimeSlot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return cloneSlots(f.slots)
}

func (f *Feed) Slot(slotTime string) (domain.TimeSlot, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	i, ok := f.index[slotTime]
	if !ok {
		return domain.TimeSlot{}, false
	}
	return cloneSlot(f.slots[i]), true
}

// Recent returns the recent-changes log, newest first.
func (f *Feed) Recent() []domain.SlotChange {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]domain.SlotChange, len(f.recent))
	copy(out, f.recent)
	return out
}

// RecentlyUpdated reports whether slot went through a transition within the recency window.
// Slots untouched since the day was loaded are never recent.
func (f *Feed) RecentlyUpdated(slot domain.TimeSlot) bool {
	f.mu.Lock()
	touched := f.touched[slot.Time]
	f.mu.Unlock()

	return touched && f.now().Sub(slot.UpdatedAt) <= f.window
}

// Tick is the ambient update: one pseudo-random slot flips.
func (f *Feed) Tick() []domain.SlotChange {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.slots) == 0 {
		return nil
	}
	return []domain.SlotChange{f.flip(f.rng.Intn(len(f.slots)))}
}

// Refresh is the on-demand update: between one and three distinct slots flip.
func (f *Feed) Refresh() []domain.SlotChange {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.slots) == 0 {
		return nil
	}

	n := 1 + f.rng.Intn(maxRefreshChanges)
	if n > len(f.slots) {
		n = len(f.slots)
	}

	changes := make([]domain.SlotChange, 0, n)
	for _, i := range f.rng.Perm(len(f.slots))[:n] {
		changes = append(changes, f.flip(i))
	}
	return changes
}

// Apply handles a pushed transition. It sets the state instead of inverting it,
// ignores unknown slot times and reports whether the slot changed.
func (f *Feed) Apply(change domain.SlotChange) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	_, changed := f.set(change)
	return changed
}

// Sync sets every known slot to its state in slots and returns the transitions made,
// in ascending slot order.
func (f *Feed) Sync(slots []domain.TimeSlot) []domain.SlotChange {
	f.mu.Lock()
	defer f.mu.Unlock()

	changes := []domain.SlotChange{}
	for _, slot := range slots {
		change, changed := f.set(domain.SlotChange{Time: slot.Time, Available: slot.Available, BookedBy: slot.BookedBy})
		if changed {
			changes = append(changes, change)
		}
	}
	return changes
}

// set must be called with f.mu held.
func (f *Feed) set(change domain.SlotChange) (domain.SlotChange, bool) {
	i, ok := f.index[change.Time]
	if !ok {
		return domain.SlotChange{}, false
	}

	slot := &f.slots[i]
	bookedBy := []string{}
	if !change.Available {
		bookedBy = append(bookedBy, change.BookedBy...)
	}
	if slot.Available == change.Available && slices.Equal(slot.BookedBy, bookedBy) {
		return domain.SlotChange{}, false
	}

	at := change.At
	if at.IsZero() {
		at = f.now()
	}
	slot.Available = change.Available
	slot.BookedBy = bookedBy
	slot.UpdatedAt = at

	recorded := f.changeOf(*slot)
	f.record(recorded)
	return recorded, true
}

// Subscribe streams every future transition. Slow subscribers miss changes rather than block the feed.
func (f *Feed) Subscribe(buffer int) (<-chan domain.SlotChange, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := f.nextSub
	f.nextSub++
	ch := make(chan domain.SlotChange, buffer)
	f.subs[id] = ch

	return ch, func() {
		f.mu.Lock()
		defer f.mu.Unlock()

		// Close may already have ended the subscription
		if sub, ok := f.subs[id]; ok {
			delete(f.subs, id)
			close(sub)
		}
	}
}

// Close ends every subscription. Unsubscribing afterwards is a no-op.
func (f *Feed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	for id, ch := range f.subs {
		delete(f.subs, id)
		close(ch)
	}
}

// flip must be called with f.mu held.
func (f *Feed) flip(i int) domain.SlotChange {
	slot := &f.slots[i]
	slot.Available = !slot.Available
	slot.UpdatedAt = f.now()
	if slot.Available {
		slot.BookedBy = []string{}
	} else {
		slot.BookedBy = []string{placeholderBooker()}
	}

	change := f.changeOf(*slot)
	f.record(change)
	return change
}

func (f *Feed) changeOf(slot domain.TimeSlot) domain.SlotChange {
	return domain.SlotChange{
		VenueID:   f.venueID,
		Date:      f.date,
		Time:      slot.Time,
		Available: slot.Available,
		BookedBy:  slices.Clone(slot.BookedBy),
		At:        slot.UpdatedAt,
	}
}

// record must be called with f.mu held.
func (f *Feed) record(change domain.SlotChange) {
	f.touched[change.Time] = true
	f.recent = append([]domain.SlotChange{change}, f.recent...)
	if len(f.recent) > f.limit {
		f.recent = f.recent[:f.limit]
	}

	for _, ch := range f.subs {
		select {
		case ch <- change:
		default:
		}
	}
}

func placeholderBooker() string {
	return "guest-" + uuid.NewString()[:8]
}

func cloneSlot(s domain.TimeSlot) domain.TimeSlot {
	s.BookedBy = slices.Clone(s.BookedBy)
	if s.BookedBy == nil {
		s.BookedBy = []string{}
	}
	return s
}

func cloneSlots(in []domain.TimeSlot) []domain.TimeSlot {
	out := make([]domain.TimeSlot, len(in))
	for i, s := range in {
		out[i] = cloneSlot(s)
	}
	return out
}
