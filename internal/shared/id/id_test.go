package id

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateUnique(t *testing.T) {
	gen := NewGenerator()

	id1 := gen.Generate()
	id2 := gen.Generate()

	assert.NotEqual(t, id1.String(), id2.String())
}

func TestGenerateMonotonicWithinMillisecond(t *testing.T) {
	gen := NewGenerator()
	now := time.Now()

	prev := gen.At(now).String()
	for i := 0; i < 1000; i++ {
		next := gen.At(now).String()
		require.Less(t, prev, next)
		prev = next
	}
}

func TestGenerateClampsBackwardsClock(t *testing.T) {
	gen := NewGenerator()
	now := time.Now()

	later := gen.At(now)
	earlier := gen.At(now.Add(-time.Hour))

	assert.Less(t, later.String(), earlier.String())
	assert.Equal(t, later.Time(), earlier.Time())
}

func TestGenerateWithPrefix(t *testing.T) {
	gen := NewGenerator()

	for _, prefix := range []string{SignalPrefix, ConnectionPrefix} {
		s := gen.GenerateWithPrefix(prefix, time.Now())

		parts := strings.Split(s, "_")
		require.Len(t, parts, 2)
		assert.Equal(t, prefix, parts[0])
		assert.Len(t, parts[1], 26)
		assert.True(t, IsValid(s))
	}
}

func TestIsValid(t *testing.T) {
	invalid := []string{"", "invalid", "1234567890", "sig_zzzzzzzzzzzzzzzzzzzzzzzzzzz"}
	for _, s := range invalid {
		assert.False(t, IsValid(s), s)
	}
	assert.True(t, IsValid(string(NewSignalID(time.Now()))))
}

func TestTimestamp(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	gen := NewGenerator()

	ts, err := Timestamp(gen.GenerateWithPrefix(SignalPrefix, at))
	require.NoError(t, err)
	assert.Equal(t, at.UnixMilli(), ts.UnixMilli())
}

func TestConcurrentGeneration(t *testing.T) {
	gen := NewGenerator()

	const goroutines = 50
	const perGoroutine = 100

	var wg sync.WaitGroup
	ids := make(chan string, goroutines*perGoroutine)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				ids <- gen.GenerateWithPrefix(SignalPrefix, time.Now())
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[string]bool)
	for s := range ids {
		require.False(t, seen[s], "duplicate id %s", s)
		seen[s] = true
	}
	assert.Len(t, seen, goroutines*perGoroutine)
}
