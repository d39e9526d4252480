package trace

import (
	"context"
	"time"
)

// SetSleep replaces the poll delay of f.
func SetSleep(f *Follower, fn func(ctx context.Context, d time.Duration) error) {
	f.sleep = fn
}
