package loop

import (
	"context"
	"fmt"
	"time"
)

// Next tells Start what to do after a task returns.
type Next struct {
	// non-nil err breaks the loop with that error
	err error

	// quit breaks the loop without error (unless err is set)
	quit bool

	// otherwise, run the task again after interval
	interval time.Duration
}

func (n Next) String() string {
	if n.err != nil {
		return fmt.Sprintf("[break] with error: %v", n.err)
	}
	if n.quit {
		return "[break] without error"
	}
	return fmt.Sprintf("[continue] interval: %s", n.interval)
}

// Continue schedules the next run of the task after interval.
func Continue(interval time.Duration) Next {
	return Next{interval: interval}
}

// Break stops the loop. Pass nil to stop without error.
func Break(err error) Next {
	return Next{quit: true, err: err}
}

// Task is a single step of a loop.
//
// It receives the value from the previous step and returns the value for
// the next one, together with a Next deciding whether the loop goes on.
// The zero Next equals Continue(0).
type Task[T any] func(context.Context, T) (T, Next)

// Start runs task repeatedly until it Breaks or ctx is done.
//
// task is first invoked as task(ctx, init). Whatever T the last invocation
// returned is returned from Start, together with the error from Break(err)
// or ctx.Err() when the context is the cause.
func Start[T any](ctx context.Context, init T, task Task[T], options ...Option) (T, error) {
	select {
	case <-ctx.Done():
		return init, ctx.Err()
	default:
	}

	value := init
	for {
		interval := 0 * time.Nanosecond

		lc := &loopConfig{ctx: ctx}
		for _, opt := range options {
			lc = opt(lc)
		}

		v, n := func() (T, Next) {
			ctx := lc.ctx
			if lc.deferred != nil {
				defer lc.deferred()
			}
			return task(ctx, value)
		}()

		if n.err != nil {
			return v, n.err
		} else if n.quit {
			return v, nil
		} else {
			value = v
			interval = n.interval
		}

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			// shutdown wins over the timer
			if !timer.Stop() {
				<-timer.C
			}
			return value, ctx.Err()

		case <-timer.C:
			continue
		}
	}
}

type loopConfig struct {
	ctx      context.Context
	deferred func()
}

type Option func(*loopConfig) *loopConfig

// WithTimeout bounds each task invocation with a per-run deadline.
func WithTimeout(d time.Duration) Option {
	return func(lc *loopConfig) *loopConfig {
		ctx, cancel := context.WithTimeout(lc.ctx, d)
		return &loopConfig{
			ctx: ctx,
			deferred: func() {
				if lc.deferred != nil {
					defer lc.deferred()
				}
				cancel()
			},
		}
	}
}
