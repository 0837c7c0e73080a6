package conflict

import (
	"math"
	"sort"
	"time"

	"github.com/Domenick1991/courtbooking/internal/domain"
)

// SuggestAlternatives ranks the available candidates by closeness to the requested time,
// then by price, then by venue distance. Candidates without a distance rank after those with one.
// An empty pool yields an empty, non-nil slice.
func SuggestAlternatives(req domain.SlotRequest, _ *domain.BookingConflict, pool []domain.CandidateSlot) []domain.AlternativeSlot {
	requested, ok := slotInstant(req.Date, req.StartTime)

	type ranked struct {
		slot domain.AlternativeSlot
		gap  int64
	}

	out := make([]ranked, 0, len(pool))
	for _, c := range pool {
		if !c.Available {
			continue
		}
		gap := int64(math.MaxInt64)
		if at, valid := slotInstant(c.Date, c.StartTime); ok && valid {
			gap = int64(at.Sub(requested) / time.Minute)
			if gap < 0 {
				gap = -gap
			}
		}
		out = append(out, ranked{slot: c.AlternativeSlot, gap: gap})
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.gap != b.gap {
			return a.gap < b.gap
		}
		if a.slot.PriceCents != b.slot.PriceCents {
			return a.slot.PriceCents < b.slot.PriceCents
		}
		return closer(a.slot.Distance, b.slot.Distance)
	})

	alternatives := make([]domain.AlternativeSlot, len(out))
	for i, r := range out {
		alternatives[i] = r.slot
	}
	return alternatives
}

func closer(a, b *float64) bool {
	switch {
	case a == nil:
		return false
	case b == nil:
		return true
	default:
		return *a < *b
	}
}

func slotInstant(date, start string) (time.Time, bool) {
	t, err := time.Parse(domain.DateLayout+" 15:04", date+" "+start)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Limit trims alternatives to at most n entries. n <= 0 keeps everything.
func Limit(alternatives []domain.AlternativeSlot, n int) []domain.AlternativeSlot {
	if n <= 0 || len(alternatives) <= n {
		return alternatives
	}
	return alternatives[:n]
}
