package retry

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPolicy() (*Policy, *[]time.Duration) {
	var slept []time.Duration
	p := New(zerolog.Nop()).WithSleep(func(d time.Duration) {
		slept = append(slept, d)
	})
	return p, &slept
}

func TestDoSucceedsFirstAttempt(t *testing.T) {
	p, slept := testPolicy()

	calls := 0
	err := p.Do("op", func() error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Empty(t, *slept)
}

func TestDoRecoversAfterFailure(t *testing.T) {
	p, slept := testPolicy()

	calls := 0
	err := p.Do("op", func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, *slept)
}

func TestDoExhaustsAttempts(t *testing.T) {
	p, slept := testPolicy()

	final := errors.New("still down")
	calls := 0
	err := p.Do("op", func() error {
		calls++
		return final
	})

	assert.Equal(t, final, err)
	assert.Equal(t, DefaultAttempts, calls)
	// No sleep after the last attempt.
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, *slept)
}
