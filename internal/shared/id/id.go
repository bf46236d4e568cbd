// Package id provides ULID generation for the shell core.
//
// IDs are lexicographically sortable ULIDs with a short type prefix
// (sig_*, conn_*). A generator draws from monotonic entropy, so IDs minted
// within the same millisecond still sort in creation order.
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// SignalID identifies a routed envelope
type SignalID string

// ConnectionID identifies a bridge connection
type ConnectionID string

const (
	SignalPrefix     = "sig"
	ConnectionPrefix = "conn"
)

// Generator generates monotonic ULIDs
type Generator struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
	last    uint64
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the process-wide generator
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a generator backed by crypto/rand
func NewGenerator() *Generator {
	return NewGeneratorWithEntropy(rand.Reader)
}

// NewGeneratorWithEntropy creates a generator with a custom entropy source.
// Tests pass a deterministic reader.
func NewGeneratorWithEntropy(entropy io.Reader) *Generator {
	return &Generator{entropy: ulid.Monotonic(entropy, 0)}
}

// At creates a ULID for the given instant. Instants earlier than the last
// one issued are clamped so output stays monotonic.
func (g *Generator) At(t time.Time) ulid.ULID {
	g.mu.Lock()
	defer g.mu.Unlock()

	ms := ulid.Timestamp(t)
	if ms < g.last {
		ms = g.last
	}
	g.last = ms
	return ulid.MustNew(ms, g.entropy)
}

// Generate creates a ULID for the current time
func (g *Generator) Generate() ulid.ULID {
	return g.At(time.Now())
}

// GenerateWithPrefix creates a prefixed ULID string for the given instant
func (g *Generator) GenerateWithPrefix(prefix string, t time.Time) string {
	return fmt.Sprintf("%s_%s", prefix, g.At(t).String())
}

// NewSignalID generates a signal ID from the default generator
func NewSignalID(t time.Time) SignalID {
	return SignalID(Default().GenerateWithPrefix(SignalPrefix, t))
}

// NewConnectionID generates a connection ID from the default generator
func NewConnectionID() ConnectionID {
	return ConnectionID(Default().GenerateWithPrefix(ConnectionPrefix, time.Now()))
}

func (id SignalID) String() string     { return string(id) }
func (id ConnectionID) String() string { return string(id) }

// IsValid checks if s is a valid ULID, with or without a prefix
func IsValid(s string) bool {
	_, err := Parse(s)
	return err == nil
}

// Parse parses a ULID string, stripping a known prefix
func Parse(s string) (ulid.ULID, error) {
	for i := 0; i < len(s); i++ {
		if s[i] == '_' {
			s = s[i+1:]
			break
		}
	}
	return ulid.Parse(s)
}

// Timestamp extracts the timestamp from an ID
func Timestamp(s string) (time.Time, error) {
	parsed, err := Parse(s)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(parsed.Time()), nil
}
