// Package presence keeps the in-memory registry of recently active sessions.
package presence

import (
	"context"
	"sync"
	"time"
)

// DefaultWindow is how long a session counts as online after its last request.
const DefaultWindow = 30 * time.Second

// Tracker maps session id to last-seen unix seconds. Stale entries are
// evicted on every MarkSeen.
type Tracker struct {
	mu       sync.Mutex
	lastSeen map[string]int64
	window   int64
}

func NewTracker(window time.Duration) *Tracker {
	if window < time.Second {
		window = DefaultWindow
	}
	return &Tracker{
		lastSeen: make(map[string]int64),
		window:   int64(window / time.Second),
	}
}

// MarkSeen records sid as active at now, evicts entries older than the
// window and returns the number of sessions online afterwards.
func (t *Tracker) MarkSeen(sid string, now time.Time) int {
	ts := now.Unix()

	t.mu.Lock()
	defer t.mu.Unlock()

	t.lastSeen[sid] = ts
	t.evictLocked(ts - t.window)
	return len(t.lastSeen)
}

// CountOnline returns the number of sessions seen within the window ending
// at now. It does not mutate the registry.
func (t *Tracker) CountOnline(now time.Time) int {
	cutoff := now.Unix() - t.window

	t.mu.Lock()
	defer t.mu.Unlock()

	online := 0
	for _, ts := range t.lastSeen {
		if ts >= cutoff {
			online++
		}
	}
	return online
}

// Sweep evicts stale entries and returns how many were removed.
func (t *Tracker) Sweep(now time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.evictLocked(now.Unix() - t.window)
}

// Len is the number of tracked sessions, stale or not.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.lastSeen)
}

// RunSweeper calls Sweep every interval until ctx is done. It blocks.
func (t *Tracker) RunSweeper(ctx context.Context, every time.Duration, onSweep func(removed int)) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			removed := t.Sweep(now)
			if onSweep != nil {
				onSweep(removed)
			}
		}
	}
}

func (t *Tracker) evictLocked(cutoff int64) int {
	removed := 0
	for sid, ts := range t.lastSeen {
		if ts < cutoff {
			delete(t.lastSeen, sid)
			removed++
		}
	}
	return removed
}
