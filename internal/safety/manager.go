package safety

import (
	"context"
	"sync"
	"time"
)

// Status is the public view of one principal's timer.
type Status struct {
	State            string `json:"state"`
	RemainingSeconds int    `json:"remaining_seconds"`
	DurationSeconds  int    `json:"duration_seconds"`
}

// TriggerFunc is called once for every timer that fires on its own.
type TriggerFunc func(ctx context.Context, uid string)

// InactiveTTL is how long a stopped or fired timer stays visible before the
// manager forgets it.
const InactiveTTL = 24 * time.Hour

type entry struct {
	timer *Timer
	// inactiveSince is set by Tick the first time it sees the timer
	// not armed, and cleared by every operation.
	inactiveSince time.Time
}

// Manager keeps one server-side Timer per principal and drives them all
// from a single ticker.
type Manager struct {
	duration  time.Duration
	retention time.Duration
	onTrigger TriggerFunc
	now       func() time.Time

	mu     sync.Mutex
	timers map[string]*entry
}

func NewManager(d time.Duration, onTrigger TriggerFunc) *Manager {
	if d <= 0 {
		d = DefaultDuration
	}
	return &Manager{
		duration:  d,
		retention: InactiveTTL,
		onTrigger: onTrigger,
		now:       time.Now,
		timers:    make(map[string]*entry),
	}
}

// with runs fn on uid's timer, creating it if needed. It holds the manager
// lock so Tick cannot evict the timer halfway through.
func (m *Manager) with(uid string, fn func(t *Timer)) Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.timers[uid]
	if !ok {
		e = &entry{timer: NewTimer(m.duration)}
		m.timers[uid] = e
	}
	e.inactiveSince = time.Time{}
	fn(e.timer)
	return m.status(e.timer)
}

func (m *Manager) Start(uid string) Status {
	return m.with(uid, (*Timer).Start)
}

func (m *Manager) Stop(uid string) Status {
	return m.with(uid, (*Timer).Stop)
}

// CheckIn resets the principal's countdown and forgets the timer.
func (m *Manager) CheckIn(uid string) Status {
	st := m.with(uid, (*Timer).CheckIn)
	m.mu.Lock()
	delete(m.timers, uid)
	m.mu.Unlock()
	return st
}

// Panic moves the principal's timer to Triggered without calling the
// trigger callback; the caller handles the alert itself.
func (m *Manager) Panic(uid string) Status {
	return m.with(uid, func(t *Timer) { t.Panic() })
}

func (m *Manager) Status(uid string) Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.timers[uid]; ok {
		return m.status(e.timer)
	}
	return m.status(NewTimer(m.duration))
}

func (m *Manager) status(t *Timer) Status {
	return Status{
		State:            t.State().String(),
		RemainingSeconds: int(t.Remaining() / time.Second),
		DurationSeconds:  int(m.duration / time.Second),
	}
}

// Tick advances every armed timer by one second and returns the principals
// whose timers fired. Timers left stopped or fired for longer than the
// retention period are dropped.
func (m *Manager) Tick(ctx context.Context) []string {
	now := m.now()
	m.mu.Lock()
	timers := make(map[string]*Timer, len(m.timers))
	for uid, e := range m.timers {
		switch {
		case e.timer.State() == Armed:
			e.inactiveSince = time.Time{}
		case e.inactiveSince.IsZero():
			e.inactiveSince = now
		case now.Sub(e.inactiveSince) >= m.retention:
			delete(m.timers, uid)
			continue
		}
		timers[uid] = e.timer
	}
	m.mu.Unlock()

	var fired []string
	for uid, t := range timers {
		if t.Tick() {
			fired = append(fired, uid)
			if m.onTrigger != nil {
				m.onTrigger(ctx, uid)
			}
		}
	}
	return fired
}

// Len reports how many principals currently have a timer.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.timers)
}

// Run ticks once per second until ctx is done.
func (m *Manager) Run(ctx context.Context) error {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.Tick(ctx)
		}
	}
}
