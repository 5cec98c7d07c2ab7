package strategy

import "time"

// Dedup remembers the last acted-on signal so the orchestrating caller can
// suppress repeats of the same signal type inside a time window. This is
// deliberately explicit cycle-to-cycle state, held by the caller rather
// than hidden inside the engine.
type Dedup struct {
	window   time.Duration
	lastType SignalType
	lastAt   time.Time
}

// NewDedup creates a Dedup with the given suppression window.
func NewDedup(window time.Duration) *Dedup {
	return &Dedup{window: window}
}

// Allow reports whether the signal should be acted on, and records it if
// so. A repeat of the same type within the window is suppressed. HOLD
// signals are always allowed and never recorded.
func (d *Dedup) Allow(sig *Signal) bool {
	if sig == nil || sig.Type == SignalHold {
		return true
	}
	if sig.Type == d.lastType && sig.Timestamp.Sub(d.lastAt) < d.window {
		return false
	}
	d.lastType = sig.Type
	d.lastAt = sig.Timestamp
	return true
}

// Reset clears the remembered signal.
func (d *Dedup) Reset() {
	d.lastType = ""
	d.lastAt = time.Time{}
}
