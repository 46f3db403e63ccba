package player

import (
	"context"
	"time"
)

// SpinThreshold is the default wait below which Wait polls the clock
// instead of sleeping. Timer sleeps overshoot by about a millisecond, which
// is audible on short gaps between notes.
const SpinThreshold = 10 * time.Millisecond

// how many spin iterations pass between context checks
const spinCheckEvery = 1 << 10

// Wait blocks for d. Waits shorter than spin busy-poll the wall clock; longer
// waits sleep on a timer. It returns early with the context error if ctx is
// done.
func Wait(ctx context.Context, d, spin time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	if d < spin {
		return spinUntil(ctx, time.Now().Add(d))
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func spinUntil(ctx context.Context, deadline time.Time) error {
	for i := 0; time.Now().Before(deadline); i++ {
		if i%spinCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
	}
	return nil
}
