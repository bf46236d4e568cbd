package registry

import (
	"context"
	"time"

	"github.com/GriffinCanCode/AgentOS/shell/internal/infrastructure/resilience"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// DefaultPersistInterval is used when no interval is configured
const DefaultPersistInterval = 30 * time.Second

// Persister retries failed registry saves in the background. Writes go
// through a circuit breaker so a broken store is not hit on every tick.
type Persister struct {
	registry *Manager
	breaker  *resilience.Breaker
	interval time.Duration
	clock    clockwork.Clock
	logger   *zap.Logger
}

// NewPersister creates a persister for registry
func NewPersister(registry *Manager, interval time.Duration, clock clockwork.Clock, logger *zap.Logger) *Persister {
	if interval <= 0 {
		interval = DefaultPersistInterval
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	p := &Persister{
		registry: registry,
		interval: interval,
		clock:    clock,
		logger:   logger,
	}
	p.breaker = resilience.New("registry-store", resilience.Settings{
		Timeout: 4 * interval,
		Clock:   clock,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to resilience.State) {
			logger.Warn("Registry store breaker changed state",
				zap.String("breaker", name),
				zap.Stringer("from", from),
				zap.Stringer("to", to))
		},
	})
	return p
}

// Breaker exposes the store breaker
func (p *Persister) Breaker() *resilience.Breaker {
	return p.breaker
}

// Flush saves the registry if it is dirty
func (p *Persister) Flush() error {
	if !p.registry.Dirty() {
		return nil
	}
	return p.breaker.Execute(p.registry.Flush)
}

// Run flushes on every tick until ctx is done, then flushes once more
func (p *Persister) Run(ctx context.Context) error {
	ticker := p.clock.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if err := p.registry.Flush(); err != nil {
				p.logger.Error("Final registry flush failed", zap.Error(err))
			}
			return ctx.Err()
		case <-ticker.Chan():
			if err := p.Flush(); err != nil {
				p.logger.Warn("Registry flush failed", zap.Error(err))
			}
		}
	}
}
