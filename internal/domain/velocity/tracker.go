// Package velocity tracks how often a keyed actor repeats an action.
// The payment and booking risk engines each own an independent Tracker;
// their counters never mix.
package velocity

import (
	"sync"
	"time"
)

// Record is the tracked state for one key. Every evaluated attempt is
// recorded, suspicious or not.
type Record struct {
	Count        int
	LastActivity time.Time
	Activities   []time.Time
}

// maxActivities bounds the per-key activity trail.
const maxActivities = 50

// Tracker is a mutex-guarded in-memory velocity tracker with TTL eviction.
type Tracker struct {
	mu      sync.Mutex
	records map[string]*Record
	ttl     time.Duration
	done    chan struct{}
	once    sync.Once
	now     func() time.Time
}

// NewTracker creates a tracker whose idle records are evicted after ttl.
func NewTracker(ttl time.Duration) *Tracker {
	t := &Tracker{
		records: make(map[string]*Record),
		ttl:     ttl,
		done:    make(chan struct{}),
		now:     time.Now,
	}
	go t.sweep(time.Minute)
	return t
}

// Observe records an attempt for key and returns the updated state plus the
// gap since the previous attempt (0 for the first one).
func (t *Tracker) Observe(key string) (Record, time.Duration) {
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.records[key]
	if !ok {
		rec = &Record{}
		t.records[key] = rec
	}

	var gap time.Duration
	if !rec.LastActivity.IsZero() {
		gap = now.Sub(rec.LastActivity)
	}

	rec.Count++
	rec.LastActivity = now
	rec.Activities = append(rec.Activities, now)
	if len(rec.Activities) > maxActivities {
		rec.Activities = rec.Activities[len(rec.Activities)-maxActivities:]
	}

	return *rec, gap
}

// Reset drops the record for key.
func (t *Tracker) Reset(key string) {
	t.mu.Lock()
	delete(t.records, key)
	t.mu.Unlock()
}

// Close stops the eviction goroutine.
func (t *Tracker) Close() {
	t.once.Do(func() { close(t.done) })
}

func (t *Tracker) sweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-t.done:
			return
		case <-ticker.C:
			cutoff := t.now().Add(-t.ttl)
			t.mu.Lock()
			for key, rec := range t.records {
				if rec.LastActivity.Before(cutoff) {
					delete(t.records, key)
				}
			}
			t.mu.Unlock()
		}
	}
}
