package loop_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/spinvfx/spinfab/pkg/loop"
)

func TestStart(t *testing.T) {
	t.Run("it loops until Break", func(t *testing.T) {
		ctx := context.Background()
		total, err := loop.Start(ctx, 0, func(_ context.Context, value int) (int, loop.Next) {
			value += 1
			if 5 <= value {
				return value, loop.Break(nil)
			}
			return value, loop.Continue(0)
		})
		if err != nil {
			t.Fatal(err)
		}
		if total != 5 {
			t.Errorf("unexpected value: %d", total)
		}
	})

	t.Run("it propagates the error passed to Break", func(t *testing.T) {
		ctx := context.Background()
		expectedErr := errors.New("fake error")
		value, err := loop.Start(ctx, "initial", func(_ context.Context, v string) (string, loop.Next) {
			return "last", loop.Break(expectedErr)
		})
		if !errors.Is(err, expectedErr) {
			t.Errorf("unexpected error: %v", err)
		}
		if value != "last" {
			t.Errorf("unexpected value: %s", value)
		}
	})

	t.Run("it stops with ctx.Err when the context is done before starting", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		called := false
		value, err := loop.Start(ctx, 42, func(_ context.Context, v int) (int, loop.Next) {
			called = true
			return v, loop.Break(nil)
		})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("unexpected error: %v", err)
		}
		if value != 42 {
			t.Errorf("unexpected value: %d", value)
		}
		if called {
			t.Error("task should not run on a canceled context")
		}
	})

	t.Run("it stops with ctx.Err while waiting for the next run", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		count := 0
		_, err := loop.Start(ctx, 0, func(_ context.Context, v int) (int, loop.Next) {
			count += 1
			cancel()
			return v, loop.Continue(30 * time.Second)
		})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("unexpected error: %v", err)
		}
		if count != 1 {
			t.Errorf("task ran %d times", count)
		}
	})

	t.Run("WithTimeout sets a deadline on the task context", func(t *testing.T) {
		ctx := context.Background()
		_, err := loop.Start(
			ctx, struct{}{},
			func(taskCtx context.Context, v struct{}) (struct{}, loop.Next) {
				if _, ok := taskCtx.Deadline(); !ok {
					return v, loop.Break(errors.New("no deadline on task context"))
				}
				return v, loop.Break(nil)
			},
			loop.WithTimeout(10*time.Second),
		)
		if err != nil {
			t.Error(err)
		}
	})
}
