package browser

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// CheckFunc reports whether the awaited condition holds.
// A non-nil error aborts the poll immediately.
type CheckFunc func(ctx context.Context) (bool, error)

// Poll runs check immediately and then every interval until it reports true,
// returns an error, or timeout elapses. A condition that first holds at or
// after the deadline is reported as ErrVisibleTimeout.
func Poll(ctx context.Context, timeout, interval time.Duration, check CheckFunc) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		ok, err := check(ctx)
		if ctx.Err() != nil {
			// The check may have raced the deadline; a late success does not count.
			return expired(ctx, timeout)
		}
		if err != nil {
			return err
		}
		if ok {
			return nil
		}

		select {
		case <-ctx.Done():
			return expired(ctx, timeout)
		case <-ticker.C:
		}
	}
}

func expired(ctx context.Context, timeout time.Duration) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return ctx.Err()
	}
	return fmt.Errorf("%w after %v", ErrVisibleTimeout, timeout)
}
