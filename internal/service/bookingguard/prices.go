package bookingguard

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// PriceEntry is one accepted price point for a property.
type PriceEntry struct {
	Price     decimal.Decimal
	Timestamp time.Time
	UserID    string
}

// PriceHistory records accepted prices per property. Rejected price changes
// are never appended, so the history only ever contains prices that passed
// the integrity check.
type PriceHistory struct {
	mu      sync.Mutex
	entries map[string][]PriceEntry
	maxKept int
}

// NewPriceHistory creates an empty price history keeping at most maxKept
// entries per property.
func NewPriceHistory(maxKept int) *PriceHistory {
	if maxKept <= 0 {
		maxKept = 100
	}
	return &PriceHistory{
		entries: make(map[string][]PriceEntry),
		maxKept: maxKept,
	}
}

// Check compares proposed against the last recorded price. A change whose
// magnitude exceeds maxChangePct is rejected and NOT appended; anything at
// or below the threshold is appended and accepted. The first price for a
// property is always accepted.
func (h *PriceHistory) Check(propertyID string, proposed decimal.Decimal, userID string, maxChangePct float64) (ok bool, lastPrice decimal.Decimal) {
	h.mu.Lock()
	defer h.mu.Unlock()

	history := h.entries[propertyID]
	if len(history) > 0 {
		last := history[len(history)-1].Price
		if last.IsPositive() {
			change := proposed.Sub(last).Abs().
				Div(last).
				Mul(decimal.NewFromInt(100))
			if change.GreaterThan(decimal.NewFromFloat(maxChangePct)) {
				return false, last
			}
		}
		lastPrice = last
	}

	history = append(history, PriceEntry{Price: proposed, Timestamp: time.Now(), UserID: userID})
	if len(history) > h.maxKept {
		history = history[len(history)-h.maxKept:]
	}
	h.entries[propertyID] = history

	return true, lastPrice
}

// Last returns the most recent accepted price for a property.
func (h *PriceHistory) Last(propertyID string) (decimal.Decimal, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	history := h.entries[propertyID]
	if len(history) == 0 {
		return decimal.Decimal{}, false
	}
	return history[len(history)-1].Price, true
}
