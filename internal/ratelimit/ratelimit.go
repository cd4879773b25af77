// Package ratelimit provides the per-client fixed-window limiter that guards
// the /api/ surface.
package ratelimit

import (
	"context"
	"time"
)

// Result describes the state of a client's window after one request.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	Reset     time.Time
}

type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}
