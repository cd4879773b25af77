// Package safety implements the check-in countdown and the SOS message that
// is sent when it runs out or the panic button is pressed.
package safety

import (
	"fmt"
	"sync"
	"time"
)

type State int

const (
	Idle State = iota
	Armed
	Triggered
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Armed:
		return "armed"
	case Triggered:
		return "triggered"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// DefaultDuration is the countdown used when none is configured.
const DefaultDuration = time.Hour

// Timer is the countdown state machine. It counts whole seconds and moves
// only when Tick is called, once per second, by its owner.
//
//	Idle -> Armed       Start
//	Armed -> Idle       Stop (keeps the remaining time), CheckIn (resets it)
//	Armed -> Triggered  Tick reaching zero
//	any -> Triggered    Panic
type Timer struct {
	mu        sync.Mutex
	duration  int
	remaining int
	state     State
}

func NewTimer(d time.Duration) *Timer {
	secs := int(d / time.Second)
	if secs <= 0 {
		secs = int(DefaultDuration / time.Second)
	}
	return &Timer{duration: secs, remaining: secs}
}

// Start arms the countdown. A timer that already fired restarts from the
// full duration.
func (t *Timer) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == Armed {
		return
	}
	if t.state == Triggered || t.remaining <= 0 {
		t.remaining = t.duration
	}
	t.state = Armed
}

// Stop pauses an armed countdown.
func (t *Timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == Armed {
		t.state = Idle
	}
}

// CheckIn disarms the timer and resets the countdown. It also clears a
// triggered state.
func (t *Timer) CheckIn() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = Idle
	t.remaining = t.duration
}

// Tick advances an armed countdown by one second and reports whether this
// tick fired the trigger.
func (t *Timer) Tick() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != Armed {
		return false
	}
	t.remaining--
	if t.remaining > 0 {
		return false
	}
	t.remaining = 0
	t.state = Triggered
	return true
}

// Panic fires immediately. It reports false if the timer had already fired.
func (t *Timer) Panic() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == Triggered {
		return false
	}
	t.state = Triggered
	return true
}

func (t *Timer) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Timer) Remaining() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return time.Duration(t.remaining) * time.Second
}
