package clock

import (
	"sync"
	"time"
)

// Clock supplies the current time for expiry computation.
type Clock interface {
	Now() time.Time
}

// System reads the wall clock. Readings are truncated to whole seconds in UTC
// because expiry is tracked in seconds since epoch.
type System struct{}

func (System) Now() time.Time {
	return time.Now().UTC().Truncate(time.Second)
}

// Manual is a settable clock for tests.
type Manual struct {
	mu  sync.Mutex
	now time.Time
}

func NewManual(start time.Time) *Manual {
	return &Manual{now: start.UTC().Truncate(time.Second)}
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *Manual) Set(t time.Time) {
	m.mu.Lock()
	m.now = t.UTC().Truncate(time.Second)
	m.mu.Unlock()
}

func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	m.now = m.now.Add(d)
	m.mu.Unlock()
}

// Remaining returns max(0, expiry-now) in whole seconds.
func Remaining(expiry, now time.Time) int64 {
	secs := expiry.Unix() - now.Unix()
	if secs < 0 {
		return 0
	}
	return secs
}
