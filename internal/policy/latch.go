package policy

import "sync/atomic"

// Latch is the one-shot auto-join marker of a session. It goes from unset to
// set at most once and never back.
type Latch struct {
	set atomic.Bool
}

// Set marks the latch and reports whether this call was the one that flipped it
func (l *Latch) Set() bool {
	return l.set.CompareAndSwap(false, true)
}

// IsSet reports whether the latch has been set
func (l *Latch) IsSet() bool {
	return l.set.Load()
}
