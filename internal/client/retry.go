package client

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-client/internal/apierr"
)

// withRetry runs fn up to 1+maxRetries times, doubling the backoff
// between attempts. Only transient failures (NETWORK_ERROR,
// SERVER_ERROR) are retried; everything else returns immediately.
func withRetry(ctx context.Context, log zerolog.Logger, maxRetries int, backoff time.Duration, fn func() error) error {
	var err error

	for attempt := 0; ; attempt++ {
		err = fn()
		if err == nil || !apierr.IsRetryable(err) {
			return err
		}
		if attempt >= maxRetries {
			return err
		}

		wait := backoff << attempt
		log.Warn().
			Err(err).
			Int("attempt", attempt+1).
			Dur("backoff", wait).
			Msg("Transient failure, retrying")

		select {
		case <-ctx.Done():
			return err
		case <-time.After(wait):
		}
	}
}
