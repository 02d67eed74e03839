package timing

import (
	"math"
	"sync"
	"time"
)

const (
	tapWindow   = 5
	tapResetGap = 2 * time.Second
)

// TapTempo estimates a tempo from taps. It keeps the most recent taps and
// starts over after a pause longer than two seconds.
type TapTempo struct {
	mu     sync.Mutex
	bounds TempoBounds
	now    func() time.Time
	taps   []time.Time
}

func NewTapTempo(bounds TempoBounds, now func() time.Time) *TapTempo {
	if now == nil {
		now = time.Now
	}
	return &TapTempo{bounds: bounds, now: now}
}

// Tap records a tap and returns the current estimate. ok is false until at
// least two taps are in the window.
func (t *TapTempo) Tap() (bpm int, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	at := t.now()
	if n := len(t.taps); n > 0 && at.Sub(t.taps[n-1]) > tapResetGap {
		t.taps = t.taps[:0]
	}
	t.taps = append(t.taps, at)
	if len(t.taps) > tapWindow {
		t.taps = append(t.taps[:0], t.taps[len(t.taps)-tapWindow:]...)
	}
	return t.estimate()
}

func (t *TapTempo) estimate() (int, bool) {
	if len(t.taps) < 2 {
		return 0, false
	}
	var total time.Duration
	for i := 1; i < len(t.taps); i++ {
		total += t.taps[i].Sub(t.taps[i-1])
	}
	mean := total.Seconds() / float64(len(t.taps)-1)
	if mean <= 0 {
		return 0, false
	}
	return t.bounds.Clamp(int(math.Round(60 / mean))), true
}

func (t *TapTempo) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.taps = t.taps[:0]
}

func (t *TapTempo) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.taps)
}
