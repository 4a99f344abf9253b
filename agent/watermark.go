package agent

import "sync"

// Watermark is the highest message timestamp a polling agent has moved past.
// It only ever increases and is the exclusive lower bound of the next poll.
type Watermark struct {
	mu sync.Mutex
	v  float64
}

// NewWatermark returns a watermark starting at v.
func NewWatermark(v float64) *Watermark { return &Watermark{v: v} }

// Load returns the current value.
func (w *Watermark) Load() float64 {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.v
}

// Advance raises the watermark to ts if ts is greater and reports whether it moved.
func (w *Watermark) Advance(ts float64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if ts <= w.v {
		return false
	}
	w.v = ts

	return true
}
