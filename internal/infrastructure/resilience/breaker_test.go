package resilience

import (
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func run(b *Breaker, outcomes ...bool) {
	for _, ok := range outcomes {
		_ = b.Execute(func() error {
			if ok {
				return nil
			}
			return errBoom
		})
	}
}

func tripAfter(n uint32) func(Counts) bool {
	return func(c Counts) bool { return c.ConsecutiveFailures >= n }
}

func TestBreakerStateTransitions(t *testing.T) {
	tests := []struct {
		name     string
		settings Settings
		requests []bool
		advance  time.Duration
		expected State
	}{
		{
			name:     "stays closed on successes",
			settings: Settings{Timeout: time.Minute},
			requests: []bool{true, true, true},
			expected: StateClosed,
		},
		{
			name:     "opens after consecutive failures",
			settings: Settings{Timeout: time.Minute, ReadyToTrip: tripAfter(3)},
			requests: []bool{false, false, false},
			expected: StateOpen,
		},
		{
			name:     "success resets the failure streak",
			settings: Settings{Timeout: time.Minute, ReadyToTrip: tripAfter(2)},
			requests: []bool{false, true, false},
			expected: StateClosed,
		},
		{
			name:     "half-open after timeout",
			settings: Settings{Timeout: 10 * time.Second, ReadyToTrip: tripAfter(2)},
			requests: []bool{false, false},
			advance:  10 * time.Second,
			expected: StateHalfOpen,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := clockwork.NewFakeClock()
			tt.settings.Clock = clock
			breaker := New("test", tt.settings)

			run(breaker, tt.requests...)
			clock.Advance(tt.advance)

			assert.Equal(t, tt.expected, breaker.State())
		})
	}
}

func TestBreakerRejectsWhileOpen(t *testing.T) {
	clock := clockwork.NewFakeClock()
	breaker := New("store", Settings{Timeout: time.Minute, ReadyToTrip: tripAfter(1), Clock: clock})

	run(breaker, false)
	require.Equal(t, StateOpen, breaker.State())

	called := false
	err := breaker.Execute(func() error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Contains(t, err.Error(), "store")
	assert.False(t, called)
}

func TestBreakerHalfOpenRecovery(t *testing.T) {
	clock := clockwork.NewFakeClock()
	var transitions []string
	breaker := New("test", Settings{
		MaxRequests: 2,
		Timeout:     time.Second,
		ReadyToTrip: tripAfter(1),
		Clock:       clock,
		OnStateChange: func(_ string, from, to State) {
			transitions = append(transitions, from.String()+"->"+to.String())
		},
	})

	run(breaker, false)
	clock.Advance(time.Second)
	run(breaker, true, true)

	assert.Equal(t, StateClosed, breaker.State())
	assert.Equal(t, []string{"closed->open", "open->half-open", "half-open->closed"}, transitions)
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	clock := clockwork.NewFakeClock()
	breaker := New("test", Settings{Timeout: time.Second, ReadyToTrip: tripAfter(1), Clock: clock})

	run(breaker, false)
	clock.Advance(time.Second)
	require.Equal(t, StateHalfOpen, breaker.State())

	run(breaker, false)
	assert.Equal(t, StateOpen, breaker.State())
}

func TestBreakerHalfOpenLimitsTrials(t *testing.T) {
	clock := clockwork.NewFakeClock()
	breaker := New("test", Settings{MaxRequests: 1, Timeout: time.Second, ReadyToTrip: tripAfter(1), Clock: clock})

	run(breaker, false)
	clock.Advance(time.Second)

	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- breaker.Execute(func() error {
			<-release
			return nil
		})
	}()

	require.Eventually(t, func() bool { return breaker.Counts().Requests == 1 }, time.Second, time.Millisecond)
	assert.ErrorIs(t, breaker.Execute(func() error { return nil }), ErrTooManyRequests)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, StateClosed, breaker.State())
}

func TestBreakerIntervalClearsCounts(t *testing.T) {
	clock := clockwork.NewFakeClock()
	breaker := New("test", Settings{Interval: time.Minute, ReadyToTrip: tripAfter(3), Clock: clock})

	run(breaker, false, false)
	assert.Equal(t, uint32(2), breaker.Counts().ConsecutiveFailures)

	clock.Advance(time.Minute)
	run(breaker, false)
	assert.Equal(t, StateClosed, breaker.State())
	assert.Equal(t, uint32(1), breaker.Counts().ConsecutiveFailures)
}

func TestBreakerPanicCountsAsFailure(t *testing.T) {
	breaker := New("test", Settings{ReadyToTrip: tripAfter(1), Clock: clockwork.NewFakeClock()})

	assert.Panics(t, func() {
		_ = breaker.Execute(func() error { panic("kaboom") })
	})
	assert.Equal(t, StateOpen, breaker.State())
}
