package poll

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrTimeout is returned when the predicate does not finish within the
// configured overall timeout.
var ErrTimeout = errors.New("poll: timed out")

// Predicate reports whether the awaited condition has been reached.
// Returning an error aborts polling immediately.
type Predicate func(ctx context.Context) (done bool, err error)

// Until calls fn at the given interval until it reports done, returns an
// error, the timeout elapses, or ctx is cancelled. fn is invoked once
// immediately before the first wait.
func Until(ctx context.Context, interval, timeout time.Duration, fn Predicate) error {
	if interval <= 0 {
		return fmt.Errorf("poll: invalid interval %v", interval)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		done, err := fn(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return ErrTimeout
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
