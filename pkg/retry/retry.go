// Package retry implements the shared resilience policy for outbound calls:
// bounded attempts with exponential backoff, warn-logged retries, and the
// final error surfaced rather than swallowed.
package retry

import (
	"time"

	"github.com/rs/zerolog"
)

const (
	// DefaultAttempts is the total number of tries, including the first.
	DefaultAttempts = 3

	// Backoff schedule: 2s before the first retry, doubling, capped at 8s.
	baseDelay = 2 * time.Second
	maxDelay  = 8 * time.Second
)

// Policy is the reusable retry policy. The zero value is not usable; build
// one with New. Sleep is injectable so tests don't wait out the backoff.
type Policy struct {
	attempts int
	log      zerolog.Logger
	sleep    func(time.Duration)
}

// New returns a Policy with the default schedule (3 attempts, 2s->4s->8s).
func New(log zerolog.Logger) *Policy {
	return &Policy{
		attempts: DefaultAttempts,
		log:      log,
		sleep:    time.Sleep,
	}
}

// WithSleep replaces the sleep function. Used by tests.
func (p *Policy) WithSleep(sleep func(time.Duration)) *Policy {
	p.sleep = sleep
	return p
}

// Do runs fn up to the configured number of attempts. Before each retry it
// logs a warning and sleeps the next backoff step. When all attempts fail,
// the last error is returned unmodified.
func (p *Policy) Do(op string, fn func() error) error {
	var lastErr error

	delay := baseDelay
	for attempt := 1; attempt <= p.attempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		if attempt == p.attempts {
			break
		}

		p.log.Warn().
			Err(lastErr).
			Str("op", op).
			Int("attempt", attempt).
			Dur("wait", delay).
			Msg("Call failed, retrying")
		p.sleep(delay)

		delay *= 2
		if delay > maxDelay {
			delay = maxDelay
		}
	}

	return lastErr
}
