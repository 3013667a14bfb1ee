package client

import (
	"sync"
	"time"
)

const TypingTimeout = 3 * time.Second

type Timer interface {
	Stop() bool
}

type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// TypingIndicator: каждый сигнал продлевает индикатор, тишина дольше timeout гасит его.
type TypingIndicator struct {
	mu       sync.Mutex
	clock    Clock
	timeout  time.Duration
	timer    Timer
	gen      uint64
	active   bool
	onChange func(active bool)
}

func NewTypingIndicator(clock Clock, timeout time.Duration, onChange func(bool)) *TypingIndicator {
	if clock == nil {
		clock = realClock{}
	}
	if timeout <= 0 {
		timeout = TypingTimeout
	}
	return &TypingIndicator{clock: clock, timeout: timeout, onChange: onChange}
}

func (t *TypingIndicator) Signal() {
	t.mu.Lock()
	t.stopTimerLocked()
	t.gen++
	gen := t.gen
	t.timer = t.clock.AfterFunc(t.timeout, func() { t.expire(gen) })
	changed := !t.active
	t.active = true
	t.mu.Unlock()

	if changed {
		t.notify(true)
	}
}

func (t *TypingIndicator) Stop() {
	t.mu.Lock()
	t.stopTimerLocked()
	t.gen++
	changed := t.active
	t.active = false
	t.mu.Unlock()

	if changed {
		t.notify(false)
	}
}

func (t *TypingIndicator) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active
}

func (t *TypingIndicator) expire(gen uint64) {
	t.mu.Lock()
	if gen != t.gen || !t.active {
		t.mu.Unlock()
		return
	}
	t.active = false
	t.timer = nil
	t.mu.Unlock()

	t.notify(false)
}

func (t *TypingIndicator) stopTimerLocked() {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}

func (t *TypingIndicator) notify(active bool) {
	if t.onChange != nil {
		t.onChange(active)
	}
}
