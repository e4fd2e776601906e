package webhook

import (
	"sync"
	"time"
)

// slidingWindow is an in-memory per-rule rate limiter. Calls beyond the cap
// inside the window are rejected before any network I/O. State is
// process-local and resets on restart, like the camera cooldown map.
type slidingWindow struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	calls  map[string][]time.Time
	now    func() time.Time
}

func newSlidingWindow(limit int, window time.Duration) *slidingWindow {
	return &slidingWindow{
		limit:  limit,
		window: window,
		calls:  make(map[string][]time.Time),
		now:    time.Now,
	}
}

// Allow records a call for the rule if it is under the cap. Expired
// timestamps are pruned on every check, which doubles as TTL eviction.
func (w *slidingWindow) Allow(ruleID string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	cutoff := now.Add(-w.window)

	recent := w.calls[ruleID][:0]
	for _, ts := range w.calls[ruleID] {
		if ts.After(cutoff) {
			recent = append(recent, ts)
		}
	}

	if len(recent) >= w.limit {
		w.calls[ruleID] = recent
		return false
	}

	w.calls[ruleID] = append(recent, now)
	return true
}
