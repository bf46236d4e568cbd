package registry

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/GriffinCanCode/AgentOS/shell/internal/domain/depgraph"
	"github.com/GriffinCanCode/AgentOS/shell/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/shell/internal/shared/types"
	"github.com/GriffinCanCode/AgentOS/shell/internal/shared/utils"
	"github.com/bytedance/sonic"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// Manager is the persistent registry of installed modules and their
// dependency graph
type Manager struct {
	mu          sync.RWMutex
	entries     map[string]types.AppEntry
	graph       *depgraph.Graph
	store       Store
	dirty       bool
	lastUpdated time.Time

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

// WithClock sets the time source for install and update stamps
func WithClock(clock clockwork.Clock) Option {
	return func(m *Manager) {
		if clock != nil {
			m.clock = clock
		}
	}
}

// WithMetrics enables Prometheus recording
func WithMetrics(metrics *monitoring.Metrics) Option {
	return func(m *Manager) {
		m.metrics = metrics
	}
}

// NewManager creates a registry and loads it from store. A store that
// cannot be read yields an empty registry; the failure is logged.
func NewManager(store Store, opts ...Option) *Manager {
	if store == nil {
		store = NewMemoryStore()
	}
	m := &Manager{
		entries: make(map[string]types.AppEntry),
		graph:   depgraph.New(),
		store:   store,
		clock:   clockwork.NewRealClock(),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}

	if err := m.Reload(); err != nil {
		m.logger.Error("Failed to load registry, starting empty", zap.Error(err))
	}
	return m
}

// Reload replaces in-memory state with the store contents. On error the
// registry is left empty.
func (m *Manager) Reload() error {
	entries, err := m.store.Load()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.reset()
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.Name == "" {
			continue
		}
		m.putLocked(e)
	}
	m.dirty = false
	m.report()
	m.logger.Info("Registry loaded", zap.Int("apps", len(m.entries)))
	return nil
}

// RegisterApp validates and inserts entry, replacing an entry of the same
// name. Every dependency must exist and be installed.
func (m *Manager) RegisterApp(entry types.AppEntry) error {
	return m.register(entry, true)
}

// Add inserts entry like RegisterApp but fails if the name is taken
func (m *Manager) Add(entry types.AppEntry) error {
	return m.register(entry, false)
}

func (m *Manager) register(entry types.AppEntry, replace bool) error {
	entry = entry.Clone()
	if err := normalize(&entry); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	prev, exists := m.entries[entry.Name]
	if exists && !replace {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, entry.Name)
	}
	if err := m.validateLocked(entry.Name, entry.Dependencies, true); err != nil {
		return err
	}

	now := m.clock.Now()
	entry.InstallDate = now
	if exists {
		entry.InstallDate = prev.InstallDate
	}
	entry.LastUpdate = now
	m.putLocked(entry)
	m.touchLocked(now)

	m.logger.Info("App registered",
		zap.String("app", entry.Name),
		zap.String("version", entry.Version),
		zap.Strings("dependencies", entry.Dependencies))
	return nil
}

// UpdateApp merges patch into an existing entry. A patch that changes
// dependencies is validated like a registration.
func (m *Manager) UpdateApp(name string, patch types.AppPatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	entry = entry.Clone()
	patch.Apply(&entry)
	if !entry.Category.Valid() {
		return fmt.Errorf("%w: unknown category %q", ErrInvalidEntry, entry.Category)
	}
	if patch.Dependencies != nil {
		if err := m.validateLocked(name, entry.Dependencies, false); err != nil {
			return err
		}
	}

	now := m.clock.Now()
	entry.LastUpdate = now
	m.putLocked(entry)
	m.touchLocked(now)
	return nil
}

// SetStatus is UpdateApp for the status field alone
func (m *Manager) SetStatus(name string, status types.EntryStatus) error {
	return m.UpdateApp(name, types.StatusPatch(status))
}

// UnregisterApp deletes an entry no other entry depends on
func (m *Manager) UnregisterApp(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.entries[name]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if dependents := m.graph.Dependents(name); len(dependents) > 0 {
		return fmt.Errorf("%w: %s is required by %s", ErrDependentsExist, name, strings.Join(dependents, ", "))
	}

	delete(m.entries, name)
	m.graph.Remove(name)
	m.touchLocked(m.clock.Now())

	m.logger.Info("App unregistered", zap.String("app", name))
	return nil
}

// GetApp returns a copy of one entry
func (m *Manager) GetApp(name string) (types.AppEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.entries[name]
	if !ok {
		return types.AppEntry{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return entry.Clone(), nil
}

// Has reports whether name is registered
func (m *Manager) Has(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.entries[name]
	return ok
}

// ListApps returns matching entries in insertion order
func (m *Manager) ListApps(filter types.EntryFilter) []types.AppEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]types.AppEntry, 0, len(m.entries))
	for _, name := range m.graph.Nodes() {
		if e := m.entries[name]; filter.Matches(e) {
			out = append(out, e.Clone())
		}
	}
	return out
}

// GetLoadOrder orders names (all entries when empty) so that every
// dependency precedes its dependents
func (m *Manager) GetLoadOrder(names ...string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	order, err := m.graph.TopoSort(names...)
	if errors.Is(err, depgraph.ErrUnknownNode) {
		return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return order, err
}

// GetStartOrder returns name plus every entry it transitively depends on,
// dependencies first and name last
func (m *Manager) GetStartOrder(name string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	order, err := m.graph.Ancestors(name)
	if errors.Is(err, depgraph.ErrUnknownNode) {
		return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return order, err
}

// GetDependents returns the entries that list name as a dependency
func (m *Manager) GetDependents(name string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.graph.Dependents(name)
}

// GetDependentClosure returns name and everything that transitively depends
// on it, dependents before their dependencies
func (m *Manager) GetDependentClosure(name string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.graph.Closure(name)
}

// ValidateDependencies reports whether every name exists and is installed
func (m *Manager) ValidateDependencies(deps []string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, dep := range deps {
		if e, ok := m.entries[dep]; !ok || e.Status != types.StatusInstalled {
			return false
		}
	}
	return true
}

// GetAutoStartApps returns installed entries flagged for autostart
func (m *Manager) GetAutoStartApps() []types.AppEntry {
	return m.ListApps(types.EntryFilter{Status: types.StatusInstalled, AutoStart: true})
}

// Export returns the full registry document
func (m *Manager) Export() types.RegistrySnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return NewSnapshot(m.orderedLocked(), m.clock.Now())
}

// ExportJSON returns Export encoded as JSON
func (m *Manager) ExportJSON() ([]byte, error) {
	return sonic.ConfigStd.MarshalIndent(m.Export(), "", "  ")
}

// Import loads a document. With merge the document overlays the current
// entries; without it the registry is replaced. Dependencies are not
// validated, so a cyclic document is accepted and reported by GetLoadOrder.
func (m *Manager) Import(snap types.RegistrySnapshot, merge bool) error {
	entries := snap.Entries()
	for i := range entries {
		if err := normalize(&entries[i]); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !merge {
		m.reset()
	}
	for _, e := range entries {
		m.putLocked(e)
	}
	m.touchLocked(m.clock.Now())

	m.logger.Info("Registry imported", zap.Int("apps", len(entries)), zap.Bool("merge", merge))
	return nil
}

// ImportJSON decodes and imports a JSON document
func (m *Manager) ImportJSON(data []byte, merge bool) error {
	var snap types.RegistrySnapshot
	if err := sonic.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}
	return m.Import(snap, merge)
}

// Flush saves the registry if an earlier save failed
func (m *Manager) Flush() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.dirty {
		return nil
	}
	return m.saveLocked()
}

// Dirty reports whether in-memory state is ahead of the store
func (m *Manager) Dirty() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.dirty
}

// Len returns the number of entries
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Stats returns registry statistics
func (m *Manager) Stats() types.RegistryStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := types.RegistryStats{
		TotalApps:  len(m.entries),
		Categories: make(map[types.Category]int),
		Statuses:   make(map[types.EntryStatus]int),
		Dirty:      m.dirty,
	}
	for _, e := range m.entries {
		stats.Categories[e.Category]++
		stats.Statuses[e.Status]++
		if e.AutoStart {
			stats.AutoStart++
		}
	}
	if !m.lastUpdated.IsZero() {
		last := m.lastUpdated
		stats.LastUpdated = &last
	}
	return stats
}

// validateLocked checks deps for name. strict also requires every
// dependency to be installed.
func (m *Manager) validateLocked(name string, deps []string, strict bool) error {
	for _, dep := range deps {
		if dep == name {
			return fmt.Errorf("%w: %s depends on itself", ErrCircularDependency, name)
		}
		e, ok := m.entries[dep]
		if !ok {
			return fmt.Errorf("%w: %s requires %s", ErrDependencyMissing, name, dep)
		}
		if strict && e.Status != types.StatusInstalled {
			return fmt.Errorf("%w: %s requires %s (status %s)", ErrDependencyNotInstalled, name, dep, e.Status)
		}
	}

	// Replacing a node can close a loop through its existing dependents
	if m.graph.Has(name) {
		trial := m.graph.Clone()
		trial.Set(name, deps)
		if _, err := trial.TopoSort(name); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) putLocked(e types.AppEntry) {
	m.entries[e.Name] = e
	m.graph.Set(e.Name, e.Dependencies)
}

func (m *Manager) reset() {
	m.entries = make(map[string]types.AppEntry)
	m.graph = depgraph.New()
}

func (m *Manager) orderedLocked() []types.AppEntry {
	out := make([]types.AppEntry, 0, len(m.entries))
	for _, name := range m.graph.Nodes() {
		out = append(out, m.entries[name])
	}
	return out
}

// touchLocked records a mutation and persists it
func (m *Manager) touchLocked(now time.Time) {
	m.lastUpdated = now
	m.dirty = true
	if err := m.saveLocked(); err != nil {
		m.logger.Error("Failed to persist registry", zap.Error(err))
	}
	m.report()
}

func (m *Manager) saveLocked() error {
	err := m.store.Save(m.orderedLocked())
	m.metrics.RecordRegistryPersist(err)
	if err != nil {
		return err
	}
	m.dirty = false
	return nil
}

func (m *Manager) report() {
	m.metrics.SetRegistryApps(len(m.entries))
}

func normalize(e *types.AppEntry) error {
	e.Name = strings.TrimSpace(e.Name)
	if err := utils.ValidateName(e.Name, "name"); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidEntry, err)
	}
	if err := utils.ValidateDescription(e.Description, "description", false); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidEntry, e.Name, err)
	}
	if e.Category == "" {
		e.Category = types.CategoryUser
	}
	if !e.Category.Valid() {
		return fmt.Errorf("%w: %s has unknown category %q", ErrInvalidEntry, e.Name, e.Category)
	}
	if e.Status == "" {
		e.Status = types.StatusInstalled
	}
	return nil
}
