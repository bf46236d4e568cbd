package relay

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/GriffinCanCode/AgentOS/shell/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/shell/internal/shared/id"
	"github.com/GriffinCanCode/AgentOS/shell/internal/shared/types"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

var (
	// ErrNilModule is recorded on registrations made without a module
	ErrNilModule = errors.New("nil module")
	// ErrClaimed is returned when a signal tries to register or unregister
	// a name whose registration another component owns
	ErrClaimed = errors.New("registration is claimed")
)

// ListenerID identifies a registered listener
type ListenerID uint64

// Listener observes every envelope of one signal type, after module delivery
type Listener func(env types.Envelope) error

type registration struct {
	module types.Module
	info   types.Registration
}

type listener struct {
	id ListenerID
	fn Listener
}

type recipient struct {
	name string
	reg  *registration
}

// Relay routes signals between registered modules and keeps a bounded history
type Relay struct {
	mu        sync.Mutex
	modules   map[string]*registration
	order     []string
	claimed   map[string]bool
	listeners map[string][]listener
	nextID    ListenerID
	history   *history
	lastStamp time.Time

	// delivery queue, drained by whichever caller found it idle
	queue    []types.Envelope
	draining bool

	clock     clockwork.Clock
	ids       *id.Generator
	logger    *zap.Logger
	metrics   *monitoring.Metrics
	startTime time.Time
}

// Option configures a Relay
type Option func(*Relay)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(r *Relay) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithClock sets the time source
func WithClock(clock clockwork.Clock) Option {
	return func(r *Relay) {
		if clock != nil {
			r.clock = clock
		}
	}
}

// WithMetrics enables Prometheus recording
func WithMetrics(metrics *monitoring.Metrics) Option {
	return func(r *Relay) {
		r.metrics = metrics
	}
}

// WithIDGenerator sets the envelope id generator
func WithIDGenerator(gen *id.Generator) Option {
	return func(r *Relay) {
		if gen != nil {
			r.ids = gen
		}
	}
}

// New creates a relay with the core listeners installed
func New(opts ...Option) *Relay {
	r := &Relay{
		modules:   make(map[string]*registration),
		claimed:   make(map[string]bool),
		listeners: make(map[string][]listener),
		history:   newHistory(HistorySize),
		clock:     clockwork.NewRealClock(),
		ids:       id.NewGenerator(),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.startTime = r.clock.Now()
	r.installCoreListeners()
	return r
}

// RegisterApp registers module under name and runs its Init. A duplicate
// name is overwritten. The registration is kept even when Init fails, in
// which case its status is error. On success app_registered is broadcast.
func (r *Relay) RegisterApp(name string, module types.Module, meta types.ModuleMetadata) types.Registration {
	reg := &registration{
		module: module,
		info: types.Registration{
			Name:         name,
			Status:       types.RegistrationInitializing,
			Metadata:     meta.Clone(),
			RegisteredAt: r.clock.Now(),
		},
	}

	r.mu.Lock()
	if _, exists := r.modules[name]; exists {
		r.logger.Warn("Overwriting relay registration", zap.String("app", name))
	} else {
		r.order = append(r.order, name)
	}
	r.modules[name] = reg
	r.mu.Unlock()

	var err error
	if module == nil {
		err = ErrNilModule
	} else {
		err = safeCall(module.Init)
	}

	r.mu.Lock()
	if err != nil {
		reg.info.Status = types.RegistrationError
		reg.info.LastError = err.Error()
	} else {
		reg.info.Status = types.RegistrationActive
	}
	info := reg.info
	info.Metadata = info.Metadata.Clone()
	current := r.modules[name] == reg
	r.reportLocked()
	r.mu.Unlock()

	if err != nil {
		r.logger.Error("Module init failed", zap.String("app", name), zap.Error(err))
		return info
	}

	r.logger.Info("Module registered", zap.String("app", name), zap.String("version", meta.Version))
	if current {
		r.Broadcast(types.SignalAppRegistered, info)
	}
	return info
}

// UnregisterApp removes name from the relay. It does not call Shutdown.
func (r *Relay) UnregisterApp(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.modules[name]; !ok {
		return false
	}
	delete(r.modules, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i:i], r.order[i+1:]...)
			break
		}
	}
	r.reportLocked()
	r.logger.Debug("Module unregistered", zap.String("app", name))
	return true
}

// Claim marks name as owned by the caller. The app_register and
// app_unregister listeners refuse claimed names; direct RegisterApp and
// UnregisterApp calls are unaffected.
func (r *Relay) Claim(name string) {
	r.mu.Lock()
	r.claimed[name] = true
	r.mu.Unlock()
}

// Release drops a claim made by Claim
func (r *Relay) Release(name string) {
	r.mu.Lock()
	delete(r.claimed, name)
	r.mu.Unlock()
}

// Claimed reports whether name is claimed
func (r *Relay) Claimed(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.claimed[name]
}

// SetStatus changes the status of a registration
func (r *Relay) SetStatus(name string, status types.RegistrationStatus) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	reg, ok := r.modules[name]
	if !ok {
		return false
	}
	reg.info.Status = status
	if status != types.RegistrationError {
		reg.info.LastError = ""
	}
	r.reportLocked()
	return true
}

// Route records a signal in history and delivers it. A present target gets
// the envelope alone; otherwise every active module does. Listeners for the
// type run after modules. Envelopes routed while another delivery is in
// progress are queued and delivered in history order.
//
// Route only delivers synchronously when the relay is idle. If another
// goroutine is already draining, the envelope is queued, Route returns at
// once, and that goroutine delivers it. Callers must not assume delivery has
// happened when Route returns from a concurrent context.
func (r *Relay) Route(signalType string, payload any, source, target string) types.Envelope {
	r.mu.Lock()
	now := r.clock.Now()
	if now.Before(r.lastStamp) {
		now = r.lastStamp
	}
	r.lastStamp = now

	env := types.Envelope{
		ID:        r.ids.GenerateWithPrefix(id.SignalPrefix, now),
		Type:      signalType,
		Payload:   payload,
		Source:    source,
		Target:    target,
		Timestamp: now,
	}
	r.history.push(env)
	r.queue = append(r.queue, env)
	r.metrics.SetHistorySize(r.history.len())

	idle := !r.draining
	r.draining = true
	r.mu.Unlock()

	r.metrics.RecordSignal(signalType)
	if idle {
		r.drain()
	}
	return env
}

// Broadcast routes a relay-originated signal to every active module
func (r *Relay) Broadcast(signalType string, payload any) types.Envelope {
	return r.Route(signalType, payload, types.RelaySource, "")
}

// AddListener appends fn to the listeners for signalType
func (r *Relay) AddListener(signalType string, fn Listener) ListenerID {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	r.listeners[signalType] = append(r.listeners[signalType], listener{id: r.nextID, fn: fn})
	return r.nextID
}

// RemoveListener removes a listener by id
func (r *Relay) RemoveListener(lid ListenerID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for signalType, ls := range r.listeners {
		for i, l := range ls {
			if l.id != lid {
				continue
			}
			ls = append(ls[:i:i], ls[i+1:]...)
			if len(ls) == 0 {
				delete(r.listeners, signalType)
			} else {
				r.listeners[signalType] = ls
			}
			return true
		}
	}
	return false
}

// GetRegistry returns a copy of every registration
func (r *Relay) GetRegistry() map[string]types.Registration {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]types.Registration, len(r.modules))
	for name, reg := range r.modules {
		info := reg.info
		info.Metadata = info.Metadata.Clone()
		out[name] = info
	}
	return out
}

// Registration returns a copy of one registration
func (r *Relay) Registration(name string) (types.Registration, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	reg, ok := r.modules[name]
	if !ok {
		return types.Registration{}, false
	}
	info := reg.info
	info.Metadata = info.Metadata.Clone()
	return info, true
}

// GetSignalHistory returns up to limit most recent envelopes, oldest first.
// A non-positive limit returns the whole history.
func (r *Relay) GetSignalHistory(limit int) []types.Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.history.last(limit)
}

// Stats returns relay statistics
func (r *Relay) Stats() types.RelayStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats := types.RelayStats{
		Registered:    len(r.modules),
		HistoryLength: r.history.len(),
		Uptime:        r.clock.Since(r.startTime),
	}
	for _, reg := range r.modules {
		switch reg.info.Status {
		case types.RegistrationActive:
			stats.Active++
		case types.RegistrationError:
			stats.Failed++
		}
	}
	for _, ls := range r.listeners {
		stats.Listeners += len(ls)
	}
	return stats
}

func (r *Relay) drain() {
	defer func() {
		if p := recover(); p != nil {
			r.mu.Lock()
			r.draining = false
			r.mu.Unlock()
			panic(p)
		}
	}()

	for {
		r.mu.Lock()
		if len(r.queue) == 0 {
			r.draining = false
			r.queue = nil
			r.mu.Unlock()
			return
		}
		env := r.queue[0]
		r.queue[0] = types.Envelope{}
		r.queue = r.queue[1:]

		targets := r.recipientsLocked(env)
		ls := append([]listener(nil), r.listeners[env.Type]...)
		r.mu.Unlock()

		for _, t := range targets {
			r.deliver(env, t)
		}
		for _, l := range ls {
			r.notify(env, l)
		}
	}
}

func (r *Relay) recipientsLocked(env types.Envelope) []recipient {
	if env.Target != "" {
		if reg, ok := r.modules[env.Target]; ok {
			if reg.info.Status != types.RegistrationActive {
				return nil
			}
			return []recipient{{name: env.Target, reg: reg}}
		}
	}

	out := make([]recipient, 0, len(r.order))
	for _, name := range r.order {
		if reg := r.modules[name]; reg.info.Status == types.RegistrationActive {
			out = append(out, recipient{name: name, reg: reg})
		}
	}
	return out
}

func (r *Relay) deliver(env types.Envelope, t recipient) {
	err := safeCall(func() error {
		return t.reg.module.OnSignal(env.Type, env.Payload, env)
	})
	if err == nil {
		return
	}

	r.logger.Error("Signal delivery failed",
		zap.String("app", t.name),
		zap.String("signal", env.Type),
		zap.String("id", env.ID),
		zap.Error(err))
	r.metrics.RecordDeliveryFailure(env.Type)

	r.mu.Lock()
	if r.modules[t.name] == t.reg {
		t.reg.info.Status = types.RegistrationError
		t.reg.info.LastError = err.Error()
		r.reportLocked()
	}
	r.mu.Unlock()
}

func (r *Relay) notify(env types.Envelope, l listener) {
	if err := safeCall(func() error { return l.fn(env) }); err != nil {
		r.logger.Warn("Signal listener failed",
			zap.String("signal", env.Type),
			zap.Uint64("listener", uint64(l.id)),
			zap.Error(err))
		r.metrics.RecordListenerFailure(env.Type)
	}
}

func (r *Relay) reportLocked() {
	if r.metrics == nil {
		return
	}
	counts := map[types.RegistrationStatus]int{
		types.RegistrationInitializing: 0,
		types.RegistrationActive:       0,
		types.RegistrationInactive:     0,
		types.RegistrationError:        0,
	}
	for _, reg := range r.modules {
		counts[reg.info.Status]++
	}
	for status, n := range counts {
		r.metrics.SetRelayModules(string(status), n)
	}
}

// safeCall runs fn and converts a panic into an error
func safeCall(fn func() error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return fn()
}
