// Package trace streams a job's log to a writer while the job runs.
package trace

import (
	"context"
	"io"
	"time"

	"github.com/pkg/errors"

	"github.com/waabox/gitlab-trace/internal/domain"
	"github.com/waabox/gitlab-trace/internal/report"
)

// DefaultInterval is the pause between two polls of a running job.
const DefaultInterval = time.Second

// TruncatedNotice is reported whenever the server's trace stops extending what was seen.
const TruncatedNotice = "\n----- trace was truncated -----"

type flusher interface {
	Flush() error
}

// Follower polls a job and writes new trace bytes as they appear.
type Follower struct {
	Interval time.Duration
	// Window trims the first fetch only; nil means Identity.
	Window Windower
	Report report.Reporter

	// sleep is swapped in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewFollower returns a Follower polling every interval.
func NewFollower(interval time.Duration, window Windower, rep report.Reporter) *Follower {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Follower{Interval: interval, Window: window, Report: rep}
}

// Follow writes the job's trace to sink and keeps polling until the job finishes.
// Bytes already written stay written if a later poll fails.
func (f *Follower) Follow(ctx context.Context, job domain.JobHandle, sink io.Writer) error {
	window := f.Window
	if window == nil {
		window = Identity
	}
	sleep := f.sleep
	if sleep == nil {
		sleep = sleepContext
	}

	first, err := job.Trace(ctx)
	if err != nil {
		return errors.Wrap(err, "fetching trace")
	}
	if err := emit(sink, window(first)); err != nil {
		return err
	}

	cur := Cursor{Known: first}
	for !job.Finished() {
		if err := sleep(ctx, f.Interval); err != nil {
			return err
		}
		if err := job.Refresh(ctx); err != nil {
			return errors.Wrap(err, "refreshing job")
		}
		next, err := job.Trace(ctx)
		if err != nil {
			return errors.Wrap(err, "fetching trace")
		}
		delta := cur.Advance(next)
		if cur.Truncated {
			f.Report.Warnf("%s", TruncatedNotice)
		}
		if err := emit(sink, delta); err != nil {
			return err
		}
	}
	return nil
}

// Once writes a single windowed fetch of the job's trace.
func Once(ctx context.Context, job domain.JobHandle, window Windower, sink io.Writer) error {
	if window == nil {
		window = Identity
	}
	b, err := job.Trace(ctx)
	if err != nil {
		return errors.Wrap(err, "fetching trace")
	}
	return emit(sink, window(b))
}

func emit(w io.Writer, b []byte) error {
	if len(b) == 0 {
		return nil
	}
	if _, err := w.Write(b); err != nil {
		return err
	}
	if fl, ok := w.(flusher); ok {
		return fl.Flush()
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
