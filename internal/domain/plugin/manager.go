package plugin

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/GriffinCanCode/AgentOS/shell/internal/domain/relay"
	"github.com/GriffinCanCode/AgentOS/shell/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/shell/internal/shared/types"
	"github.com/jonboulle/clockwork"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Lifecycle is the orchestrator surface plugins are started through
type Lifecycle interface {
	RegisterFactory(name string, factory types.Factory)
	StartApp(name string) error
	StopApp(name string) error
	RestartApp(name string) error
	UninstallApp(name string) error
	IsRunning(name string) bool
}

// Catalog is the registry surface the plugin manager writes entries to
type Catalog interface {
	GetApp(name string) (types.AppEntry, error)
	Add(entry types.AppEntry) error
	RegisterApp(entry types.AppEntry) error
	GetLoadOrder(names ...string) ([]string, error)
}

// Events is the relay surface used for plugin notifications
type Events interface {
	AddListener(signalType string, fn relay.Listener) relay.ListenerID
	Broadcast(signalType string, payload any) types.Envelope
}

type loaded struct {
	manifest types.PluginManifest
	loadedAt time.Time
	lastErr  string
}

// Manager loads plugin manifests and runs plugins through the orchestrator.
// Activation and deactivation happen inside the orchestrator's start and
// stop; the manager turns them into plugin_activated and plugin_deactivated.
type Manager struct {
	mu      sync.RWMutex
	plugins map[string]*loaded // Protected by mu
	mains   map[string]types.Factory

	apps     Lifecycle
	registry Catalog
	events   Events

	clock   clockwork.Clock
	logger  *zap.Logger
	metrics *monitoring.Metrics
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

// WithMetrics adds metrics tracking
func WithMetrics(metrics *monitoring.Metrics) Option {
	return func(m *Manager) {
		m.metrics = metrics
	}
}

// NewManager creates a plugin manager
func NewManager(apps Lifecycle, catalog Catalog, events Events, opts ...Option) *Manager {
	m := &Manager{
		plugins:  make(map[string]*loaded),
		mains:    make(map[string]types.Factory),
		apps:     apps,
		registry: catalog,
		events:   events,
		clock:    clockwork.NewRealClock(),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	events.AddListener(types.SignalAppStarted, m.relayLifecycle(types.SignalPluginActivated))
	events.AddListener(types.SignalAppStopped, m.relayLifecycle(types.SignalPluginDeactivate))
	return m
}

// RegisterMain binds a manifest main name to a constructor
func (m *Manager) RegisterMain(main string, factory types.Factory) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mains[main] = factory
}

// Load validates manifest and installs it as a plugin entry. A plugin entry
// already present in the registry, say from a previous run, is refreshed
// and keeps its status.
func (m *Manager) Load(manifest types.PluginManifest) error {
	if err := ValidateManifest(manifest); err != nil {
		return err
	}

	m.mu.RLock()
	_, dup := m.plugins[manifest.Name]
	_, hasMain := m.mains[manifest.Main]
	m.mu.RUnlock()
	if dup {
		return fmt.Errorf("%w: %s", ErrAlreadyLoaded, manifest.Name)
	}
	if !hasMain {
		return fmt.Errorf("%w: %s wants %q", ErrNoMain, manifest.Name, manifest.Main)
	}

	e := entry(manifest)
	existing, err := m.registry.GetApp(manifest.Name)
	switch {
	case err == nil && existing.Category != types.CategoryPlugin:
		return fmt.Errorf("%w: %s is a %s entry", ErrNameConflict, manifest.Name, existing.Category)
	case err == nil:
		e.Status = existing.Status
		err = m.registry.RegisterApp(e)
	default:
		err = m.registry.Add(e)
	}
	if err != nil {
		return fmt.Errorf("load plugin %s: %w", manifest.Name, err)
	}

	main := manifest.Main
	m.apps.RegisterFactory(manifest.Name, func() (types.Module, error) {
		m.mu.RLock()
		factory := m.mains[main]
		m.mu.RUnlock()
		if factory == nil {
			return nil, fmt.Errorf("%w: %q", ErrNoMain, main)
		}
		return factory()
	})

	m.mu.Lock()
	m.plugins[manifest.Name] = &loaded{manifest: manifest, loadedAt: m.clock.Now()}
	m.mu.Unlock()

	m.logger.Info("Plugin loaded",
		zap.String("plugin", manifest.Name),
		zap.String("version", manifest.Version),
		zap.String("main", manifest.Main),
		zap.String("path", manifest.Path))
	return nil
}

// Start starts a loaded plugin and its dependencies
func (m *Manager) Start(name string) error {
	if !m.IsLoaded(name) {
		return fmt.Errorf("%w: %s", ErrPluginNotFound, name)
	}
	return m.record(name, m.apps.StartApp(name))
}

// Stop stops a plugin after the modules that depend on it
func (m *Manager) Stop(name string) error {
	if !m.IsLoaded(name) {
		return fmt.Errorf("%w: %s", ErrPluginNotFound, name)
	}
	return m.record(name, m.apps.StopApp(name))
}

// Restart stops and starts a plugin
func (m *Manager) Restart(name string) error {
	if !m.IsLoaded(name) {
		return fmt.Errorf("%w: %s", ErrPluginNotFound, name)
	}
	return m.record(name, m.apps.RestartApp(name))
}

// Unload stops a plugin and removes its registry entry
func (m *Manager) Unload(name string) error {
	if !m.IsLoaded(name) {
		return fmt.Errorf("%w: %s", ErrPluginNotFound, name)
	}
	if err := m.apps.UninstallApp(name); err != nil {
		return m.record(name, err)
	}

	m.mu.Lock()
	delete(m.plugins, name)
	m.mu.Unlock()

	m.logger.Info("Plugin unloaded", zap.String("plugin", name))
	return nil
}

// StartAutoStart starts every loaded autostart plugin in load order
func (m *Manager) StartAutoStart() error {
	var names []string
	m.mu.RLock()
	for name, p := range m.plugins {
		if p.manifest.AutoStart {
			names = append(names, name)
		}
	}
	m.mu.RUnlock()
	if len(names) == 0 {
		return nil
	}
	sort.Strings(names)

	order, err := m.registry.GetLoadOrder(names...)
	if err != nil {
		return fmt.Errorf("plugin autostart order: %w", err)
	}

	var errs error
	for _, name := range order {
		errs = multierr.Append(errs, m.record(name, m.apps.StartApp(name)))
	}
	return errs
}

// IsLoaded reports whether name is a loaded plugin
func (m *Manager) IsLoaded(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.plugins[name]
	return ok
}

// Get returns the listing view of one plugin
func (m *Manager) Get(name string) (types.PluginInfo, error) {
	m.mu.RLock()
	p, ok := m.plugins[name]
	var info types.PluginInfo
	if ok {
		info = types.PluginInfo{Manifest: p.manifest, LoadedAt: p.loadedAt, LastError: p.lastErr}
	}
	m.mu.RUnlock()
	if !ok {
		return types.PluginInfo{}, fmt.Errorf("%w: %s", ErrPluginNotFound, name)
	}
	info.State = m.state(name)
	return info, nil
}

// List returns every loaded plugin sorted by name
func (m *Manager) List() []types.PluginInfo {
	m.mu.RLock()
	out := make([]types.PluginInfo, 0, len(m.plugins))
	for _, p := range m.plugins {
		out = append(out, types.PluginInfo{Manifest: p.manifest, LoadedAt: p.loadedAt, LastError: p.lastErr})
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Manifest.Name < out[j].Manifest.Name })
	for i := range out {
		out[i].State = m.state(out[i].Manifest.Name)
	}
	return out
}

// Stats returns plugin counts by state
func (m *Manager) Stats() types.PluginStats {
	var stats types.PluginStats
	for _, p := range m.List() {
		stats.Loaded++
		switch p.State {
		case types.PluginActive:
			stats.Active++
		case types.PluginError:
			stats.Failed++
		}
	}
	return stats
}

func (m *Manager) state(name string) types.PluginState {
	if m.apps.IsRunning(name) {
		return types.PluginActive
	}
	if e, err := m.registry.GetApp(name); err == nil && e.Status == types.StatusError {
		return types.PluginError
	}
	return types.PluginLoaded
}

// record keeps the last failure of a plugin operation for listings
func (m *Manager) record(name string, err error) error {
	m.mu.Lock()
	if p, ok := m.plugins[name]; ok {
		p.lastErr = ""
		if err != nil {
			p.lastErr = err.Error()
		}
	}
	m.mu.Unlock()
	if err != nil {
		m.logger.Warn("Plugin operation failed", zap.String("plugin", name), zap.Error(err))
	}
	return err
}

// relayLifecycle rebroadcasts orchestrator start and stop events of
// plugins under the plugin signal type
func (m *Manager) relayLifecycle(signalType string) relay.Listener {
	return func(env types.Envelope) error {
		ev, ok := env.Payload.(types.AppEvent)
		if !ok || !m.IsLoaded(ev.AppName) {
			return nil
		}
		m.events.Broadcast(signalType, ev)
		m.metrics.SetActivePlugins(m.activeCount())
		m.logger.Debug("Plugin lifecycle event", zap.String("signal", signalType), zap.String("plugin", ev.AppName))
		return nil
	}
}

func (m *Manager) activeCount() int {
	m.mu.RLock()
	names := make([]string, 0, len(m.plugins))
	for name := range m.plugins {
		names = append(names, name)
	}
	m.mu.RUnlock()

	n := 0
	for _, name := range names {
		if m.apps.IsRunning(name) {
			n++
		}
	}
	return n
}
