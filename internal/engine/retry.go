package engine

import (
	"context"
	"time"
)

// retry runs op up to attempts times, sleeping backoff between tries. It
// returns nil as soon as op succeeds and the last error once attempts are
// exhausted or the context ends. Transient exchange failures (rate limits,
// nonce conflicts) are the dominant failure mode, so a few quick retries
// resolve most of them.
func retry(ctx context.Context, attempts int, backoff time.Duration, op func(context.Context) error) error {
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return lastErr
			}
			return err
		}

		if lastErr = op(ctx); lastErr == nil {
			return nil
		}

		if i == attempts-1 {
			break
		}
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return lastErr
		case <-timer.C:
		}
	}
	return lastErr
}
