package input

import "time"

// ManualTimer fires once a key has been held for Hold. It arms again only
// after the key was released.
type ManualTimer struct {
	Key  Key
	Hold time.Duration

	since time.Time
	armed bool
	fired bool
}

func NewManualTimer(key Key, hold time.Duration) ManualTimer {
	return ManualTimer{Key: key, Hold: hold}
}

// Update reports whether the timer fired this frame.
func (t *ManualTimer) Update(keys *Keys, now time.Time) bool {
	if !keys.IsHold(t.Key) {
		t.armed, t.fired = false, false
		return false
	}
	if !t.armed {
		t.armed, t.since = true, now
	}
	if t.fired || now.Sub(t.since) < t.Hold {
		return false
	}
	t.fired = true
	return true
}

// Remaining is how long the key still has to be held, or 0 when the timer
// is not counting.
func (t *ManualTimer) Remaining(now time.Time) time.Duration {
	if !t.armed || t.fired {
		return 0
	}
	return max(t.Hold-now.Sub(t.since), 0)
}
