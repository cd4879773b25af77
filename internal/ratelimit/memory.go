package ratelimit

import (
	"context"
	"sync"
	"time"
)

const sweepInterval = 5 * time.Minute

type window struct {
	start time.Time
	count int
}

// MemoryLimiter is the single-instance fallback used when Redis is not
// configured. It counts requests in the same fixed windows as RedisLimiter.
type MemoryLimiter struct {
	window time.Duration
	max    int
	now    func() time.Time

	mu      sync.Mutex
	windows map[string]*window
}

func NewMemoryLimiter(d time.Duration, max int) *MemoryLimiter {
	return &MemoryLimiter{
		window:  d,
		max:     max,
		now:     time.Now,
		windows: make(map[string]*window),
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (Result, error) {
	start := l.now().Truncate(l.window)

	l.mu.Lock()
	w, ok := l.windows[key]
	if !ok || !w.start.Equal(start) {
		w = &window{start: start}
		l.windows[key] = w
	}
	w.count++
	count := w.count
	l.mu.Unlock()

	remaining := l.max - count
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		Allowed:   count <= l.max,
		Limit:     l.max,
		Remaining: remaining,
		Reset:     start.Add(l.window),
	}, nil
}

// Sweep drops counters whose window has ended.
func (l *MemoryLimiter) Sweep() {
	current := l.now().Truncate(l.window)
	l.mu.Lock()
	defer l.mu.Unlock()
	for k, w := range l.windows {
		if w.start.Before(current) {
			delete(l.windows, k)
		}
	}
}

// Run sweeps expired windows until ctx is done.
func (l *MemoryLimiter) Run(ctx context.Context) error {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			l.Sweep()
		}
	}
}

func (l *MemoryLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}
