package app

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/GriffinCanCode/AgentOS/shell/internal/domain/registry"
	"github.com/GriffinCanCode/AgentOS/shell/internal/domain/relay"
	"github.com/GriffinCanCode/AgentOS/shell/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/shell/internal/shared/types"
	"github.com/jonboulle/clockwork"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Source is stamped on signals the manager routes itself
const Source = "AppManager"

// Router is the relay surface the manager drives
type Router interface {
	RegisterApp(name string, module types.Module, meta types.ModuleMetadata) types.Registration
	UnregisterApp(name string) bool
	Claim(name string)
	Release(name string)
	SetStatus(name string, status types.RegistrationStatus) bool
	Route(signalType string, payload any, source, target string) types.Envelope
	Broadcast(signalType string, payload any) types.Envelope
	AddListener(signalType string, fn relay.Listener) relay.ListenerID
	Stats() types.RelayStats
}

// Catalog is the registry surface the manager reads and updates
type Catalog interface {
	GetApp(name string) (types.AppEntry, error)
	Add(entry types.AppEntry) error
	RegisterApp(entry types.AppEntry) error
	UnregisterApp(name string) error
	SetStatus(name string, status types.EntryStatus) error
	GetLoadOrder(names ...string) ([]string, error)
	GetStartOrder(name string) ([]string, error)
	GetDependents(name string) []string
	GetDependentClosure(name string) []string
	GetAutoStartApps() []types.AppEntry
	ListApps(filter types.EntryFilter) []types.AppEntry
}

// InstallOptions controls InstallApp
type InstallOptions struct {
	AutoStart        bool
	Overwrite        bool
	SkipDependencies bool
}

// Manager orchestrates module lifecycle on top of the registry and relay.
// Its lock is never held while calling either of them or a module hook.
type Manager struct {
	mu        sync.RWMutex
	running   map[string]types.Module // Protected by mu
	order     []string                // start order, protected by mu
	factories map[string]types.Factory

	starts   singleflight.Group
	relay    Router
	registry Catalog

	clock     clockwork.Clock
	logger    *zap.Logger
	metrics   *monitoring.Metrics
	startTime time.Time
}

// Option configures a Manager
type Option func(*Manager)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithClock sets the time source
func WithClock(clock clockwork.Clock) Option {
	return func(m *Manager) {
		if clock != nil {
			m.clock = clock
		}
	}
}

// WithMetrics adds metrics tracking to the manager
func WithMetrics(metrics *monitoring.Metrics) Option {
	return func(m *Manager) {
		m.metrics = metrics
	}
}

// NewManager creates a manager and subscribes it to the lifecycle control signals
func NewManager(router Router, catalog Catalog, opts ...Option) *Manager {
	m := &Manager{
		running:   make(map[string]types.Module),
		factories: make(map[string]types.Factory),
		relay:     router,
		registry:  catalog,
		clock:     clockwork.NewRealClock(),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.startTime = m.clock.Now()
	m.installControlListeners()
	return m
}

// RegisterFactory sets the constructor used for each start of name
func (m *Manager) RegisterFactory(name string, factory types.Factory) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.factories[name] = factory
}

// HasFactory reports whether name can be constructed
func (m *Manager) HasFactory(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.factories[name]
	return ok
}

// InstallApp records module in the registry using its self-reported config.
// Every later start reuses the same instance.
func (m *Manager) InstallApp(name string, module types.Module, opts InstallOptions) error {
	if module == nil {
		return fmt.Errorf("%w: %s has no module", registry.ErrInvalidEntry, name)
	}

	var cfg types.ModuleConfig
	if d, ok := module.(types.Describer); ok {
		cfg = d.Describe()
	}
	entry := types.AppEntry{
		Name:         name,
		Version:      cfg.Version,
		Description:  cfg.Description,
		Author:       cfg.Author,
		Category:     cfg.Category,
		Status:       types.StatusInstalled,
		AutoStart:    cfg.AutoStart || opts.AutoStart,
		Sovereign:    cfg.Sovereign,
		Dependencies: cfg.Dependencies,
		Permissions:  cfg.Permissions,
	}
	if opts.SkipDependencies {
		entry.Dependencies = nil
	}

	var err error
	if opts.Overwrite {
		err = m.registry.RegisterApp(entry)
	} else {
		err = m.registry.Add(entry)
	}
	if errors.Is(err, registry.ErrAlreadyExists) {
		return fmt.Errorf("%w: %w", ErrAlreadyInstalled, err)
	}
	if err != nil {
		return err
	}

	m.RegisterFactory(name, func() (types.Module, error) { return module, nil })
	m.logger.Info("App installed", zap.String("app", name), zap.String("version", entry.Version))

	if opts.AutoStart {
		return m.StartApp(name)
	}
	return nil
}

// StartApp starts name and any dependency that is not running, in load
// order. Starting a running app succeeds without calling Init again.
// Dependencies started before a later failure are left running.
func (m *Manager) StartApp(name string) (err error) {
	if m.IsRunning(name) {
		return nil
	}
	timer := monitoring.NewTimer(m.metrics, "app", "start")
	defer func() { timer.Stop(err) }()

	entry, err := m.registry.GetApp(name)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrNotInRegistry, name)
	}
	if entry.Status != types.StatusInstalled {
		return fmt.Errorf("%w: %s is %s", ErrNotInstalled, name, entry.Status)
	}

	order, err := m.registry.GetStartOrder(name)
	if err != nil {
		return fmt.Errorf("resolve dependencies of %s: %w", name, err)
	}

	var started []string
	for _, dep := range order {
		if dep == name || m.IsRunning(dep) {
			continue
		}
		if err := m.launchOnce(dep); err != nil {
			if len(started) > 0 {
				m.logger.Warn("Dependency start failed, earlier dependencies left running",
					zap.String("app", name),
					zap.String("dependency", dep),
					zap.Strings("running", started))
			}
			return m.fail(name, fmt.Errorf("start %s: dependency %s: %w", name, dep, err))
		}
		started = append(started, dep)
	}

	return m.launchOnce(name)
}

// launchOnce collapses concurrent launches of one name
func (m *Manager) launchOnce(name string) error {
	_, err, _ := m.starts.Do(name, func() (any, error) {
		if m.IsRunning(name) {
			return nil, nil
		}
		return nil, m.launch(name)
	})
	return err
}

// launch starts one app whose dependencies are already running
func (m *Manager) launch(name string) error {
	entry, err := m.registry.GetApp(name)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrNotInRegistry, name)
	}
	if entry.Status != types.StatusInstalled {
		return fmt.Errorf("%w: %s is %s", ErrNotInstalled, name, entry.Status)
	}

	m.mu.RLock()
	factory := m.factories[name]
	m.mu.RUnlock()
	if factory == nil {
		return m.fail(name, fmt.Errorf("%w: %s", ErrNoFactory, name))
	}

	module, err := build(factory)
	if err != nil {
		return m.fail(name, fmt.Errorf("%w: %s: %w", ErrInitFailure, name, err))
	}

	m.relay.Claim(name)
	reg := m.relay.RegisterApp(name, module, types.ModuleMetadata{
		Version:      entry.Version,
		Description:  entry.Description,
		Dependencies: entry.Dependencies,
	})
	if reg.Status == types.RegistrationError {
		m.relay.UnregisterApp(name)
		m.relay.Release(name)
		return m.fail(name, fmt.Errorf("%w: %s: %s", ErrInitFailure, name, reg.LastError))
	}

	if act, ok := module.(types.Activator); ok {
		if err := safeCall(act.Activate); err != nil {
			if serr := safeCall(module.Shutdown); serr != nil {
				m.logger.Warn("Shutdown after failed activate also failed", zap.String("app", name), zap.Error(serr))
			}
			m.relay.UnregisterApp(name)
			m.relay.Release(name)
			return m.fail(name, fmt.Errorf("%w: %s: activate: %w", ErrInitFailure, name, err))
		}
	}

	m.mu.Lock()
	m.running[name] = module
	m.order = append(m.order, name)
	running := len(m.running)
	m.mu.Unlock()

	m.metrics.SetRunningApps(running)
	m.logger.Info("App started", zap.String("app", name), zap.String("version", entry.Version))
	m.relay.Broadcast(types.SignalAppStarted, types.AppEvent{AppName: name, Version: entry.Version})
	return nil
}

// fail marks name as errored in the registry and returns err
func (m *Manager) fail(name string, err error) error {
	if serr := m.registry.SetStatus(name, types.StatusError); serr != nil {
		m.logger.Warn("Failed to record error status", zap.String("app", name), zap.Error(serr))
	}
	m.logger.Error("App lifecycle failure", zap.String("app", name), zap.Error(err))
	return err
}

// StopApp stops name after every running app that depends on it,
// deepest dependent first. A module whose hooks fail is still removed; its
// registry status becomes error and the failures are returned.
func (m *Manager) StopApp(name string) (err error) {
	if !m.IsRunning(name) {
		return nil
	}
	timer := monitoring.NewTimer(m.metrics, "app", "stop")
	defer func() { timer.Stop(err) }()

	closure := m.registry.GetDependentClosure(name)
	if len(closure) == 0 {
		closure = []string{name}
	}

	for _, n := range closure {
		if n != name && m.IsRunning(n) {
			m.logger.Info("Stopping dependent", zap.String("app", n), zap.String("dependency", name))
		}
		err = multierr.Append(err, m.shutdown(n))
	}
	return err
}

func (m *Manager) shutdown(name string) error {
	m.mu.Lock()
	module, ok := m.running[name]
	if !ok {
		m.mu.Unlock()
		return nil
	}
	delete(m.running, name)
	for i, n := range m.order {
		if n == name {
			m.order = append(m.order[:i:i], m.order[i+1:]...)
			break
		}
	}
	running := len(m.running)
	m.mu.Unlock()

	m.relay.SetStatus(name, types.RegistrationInactive)

	var err error
	if act, ok := module.(types.Activator); ok {
		err = multierr.Append(err, safeCall(act.Deactivate))
	}
	err = multierr.Append(err, safeCall(module.Shutdown))

	m.relay.UnregisterApp(name)
	m.relay.Release(name)
	m.metrics.SetRunningApps(running)

	var version string
	if entry, gerr := m.registry.GetApp(name); gerr == nil {
		version = entry.Version
	}
	m.relay.Broadcast(types.SignalAppStopped, types.AppEvent{AppName: name, Version: version})

	if err != nil {
		return m.fail(name, fmt.Errorf("%w: %s: %w", ErrShutdownFailure, name, err))
	}
	m.logger.Info("App stopped", zap.String("app", name))
	return nil
}

// RestartApp stops name if it is running, then starts it
func (m *Manager) RestartApp(name string) error {
	if err := m.StopApp(name); err != nil {
		return err
	}
	return m.StartApp(name)
}

// UninstallApp stops name and removes it from the registry. It fails
// while other entries still depend on it.
func (m *Manager) UninstallApp(name string) error {
	if _, err := m.registry.GetApp(name); err != nil {
		return fmt.Errorf("%w: %s", ErrNotInRegistry, name)
	}
	if deps := m.registry.GetDependents(name); len(deps) > 0 {
		return fmt.Errorf("%w: %s is required by %v", registry.ErrDependentsExist, name, deps)
	}

	stopErr := m.StopApp(name)
	if err := m.registry.UnregisterApp(name); err != nil {
		return multierr.Append(stopErr, err)
	}

	m.mu.Lock()
	delete(m.factories, name)
	m.mu.Unlock()

	m.logger.Info("App uninstalled", zap.String("app", name))
	return stopErr
}

// StartAutoStartApps starts every installed autostart entry in load order.
// A failure does not stop the remaining starts; all failures are returned.
func (m *Manager) StartAutoStartApps() error {
	entries := m.registry.GetAutoStartApps()
	if len(entries) == 0 {
		return nil
	}
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
	}

	order, err := m.registry.GetLoadOrder(names...)
	if err != nil {
		return fmt.Errorf("autostart order: %w", err)
	}

	var errs error
	for _, name := range order {
		errs = multierr.Append(errs, m.StartApp(name))
	}
	m.logger.Info("Autostart complete", zap.Strings("apps", order), zap.Error(errs))
	return errs
}

// RecoverApp resets an errored entry to installed so it can start again
func (m *Manager) RecoverApp(name string) error {
	entry, err := m.registry.GetApp(name)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrNotInRegistry, name)
	}
	if entry.Status != types.StatusError {
		return nil
	}
	return m.registry.SetStatus(name, types.StatusInstalled)
}

// StopAll stops every running app, dependents before dependencies
func (m *Manager) StopAll() error {
	running := m.RunningApps()
	if len(running) == 0 {
		return nil
	}

	var known []string
	for _, name := range running {
		if _, err := m.registry.GetApp(name); err == nil {
			known = append(known, name)
		}
	}

	order, err := m.registry.GetLoadOrder(known...)
	if err != nil || len(known) == 0 {
		order = running
	}

	var errs error
	for i := len(order) - 1; i >= 0; i-- {
		errs = multierr.Append(errs, m.StopApp(order[i]))
	}
	for _, name := range m.RunningApps() {
		errs = multierr.Append(errs, m.shutdown(name))
	}
	return errs
}

// IsRunning reports whether name is running
func (m *Manager) IsRunning(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.running[name]
	return ok
}

// RunningApps returns running app names in start order
func (m *Manager) RunningApps() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.order...)
}

// Stats returns orchestrator statistics
func (m *Manager) Stats() types.ManagerStats {
	running := m.RunningApps()
	isRunning := make(map[string]bool, len(running))
	for _, name := range running {
		isRunning[name] = true
	}

	entries := m.registry.ListApps(types.EntryFilter{})
	stats := types.ManagerStats{
		TotalApps:     len(entries),
		RunningApps:   len(running),
		RegistrySize:  len(entries),
		HistoryLength: m.relay.Stats().HistoryLength,
		Uptime:        m.clock.Since(m.startTime),
		Running:       running,
	}

	known := make(map[string]bool, len(entries))
	for _, e := range entries {
		known[e.Name] = true
		switch {
		case e.Status == types.StatusError:
			stats.FailedApps++
		case e.Status == types.StatusPending:
			stats.PendingApps++
		case e.Status == types.StatusInstalled && !isRunning[e.Name]:
			stats.PendingApps++
		}
	}

	// Factories registered ahead of their registry entry still count
	m.mu.RLock()
	for name := range m.factories {
		if !known[name] {
			stats.TotalApps++
		}
	}
	m.mu.RUnlock()
	return stats
}

func build(factory types.Factory) (module types.Module, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("factory panic: %v", p)
		}
	}()
	module, err = factory()
	if err == nil && module == nil {
		err = errors.New("factory returned no module")
	}
	return module, err
}

func safeCall(fn func() error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return fn()
}
