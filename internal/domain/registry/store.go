package registry

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/GriffinCanCode/AgentOS/shell/internal/shared/types"
	"github.com/bytedance/sonic"
	"github.com/jonboulle/clockwork"
)

// SnapshotVersion is the current persisted document version
const SnapshotVersion = 1

// Store persists registry entries. Only the registry writes to it.
type Store interface {
	Load() ([]types.AppEntry, error)
	Save(entries []types.AppEntry) error
}

// NewSnapshot builds the persisted document for entries in order
func NewSnapshot(entries []types.AppEntry, at time.Time) types.RegistrySnapshot {
	snap := types.RegistrySnapshot{
		Version:    SnapshotVersion,
		ExportedAt: at,
		Order:      make([]string, 0, len(entries)),
		Apps:       make(map[string]types.AppEntry, len(entries)),
	}
	for _, e := range entries {
		snap.Order = append(snap.Order, e.Name)
		snap.Apps[e.Name] = e.Clone()
	}
	return snap
}

// FileStore keeps the registry as one JSON document on disk
type FileStore struct {
	path  string
	clock clockwork.Clock
	mu    sync.Mutex
}

// StoreOption configures a FileStore
type StoreOption func(*FileStore)

// WithStoreClock sets the clock that stamps saved documents
func WithStoreClock(clock clockwork.Clock) StoreOption {
	return func(s *FileStore) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewFileStore creates a store backed by path
func NewFileStore(path string, opts ...StoreOption) *FileStore {
	s := &FileStore{path: path, clock: clockwork.NewRealClock()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the document path
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the document. A missing file is an empty registry.
func (s *FileStore) Load() ([]types.AppEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read registry: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	var snap types.RegistrySnapshot
	if err := sonic.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parse registry %s: %w", s.path, err)
	}
	return snap.Entries(), nil
}

// Save writes the document through a temp file and rename
func (s *FileStore) Save(entries []types.AppEntry) error {
	data, err := sonic.ConfigStd.MarshalIndent(NewSnapshot(entries, s.clock.Now().UTC()), "", "  ")
	if err != nil {
		return fmt.Errorf("encode registry: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create registry dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".registry-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write registry: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync registry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close registry: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace registry: %w", err)
	}
	return nil
}

// MemoryStore keeps entries in memory
type MemoryStore struct {
	mu      sync.Mutex
	entries []types.AppEntry
	saves   int
	loadErr error
	saveErr error
}

// NewMemoryStore creates a store seeded with entries
func NewMemoryStore(entries ...types.AppEntry) *MemoryStore {
	return &MemoryStore{entries: cloneEntries(entries)}
}

// Load returns a copy of the stored entries
func (s *MemoryStore) Load() ([]types.AppEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loadErr != nil {
		return nil, s.loadErr
	}
	return cloneEntries(s.entries), nil
}

// Save replaces the stored entries
func (s *MemoryStore) Save(entries []types.AppEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.saveErr != nil {
		return s.saveErr
	}
	s.entries = cloneEntries(entries)
	s.saves++
	return nil
}

// FailLoad makes Load return err until cleared with nil
func (s *MemoryStore) FailLoad(err error) {
	s.mu.Lock()
	s.loadErr = err
	s.mu.Unlock()
}

// FailSave makes Save return err until cleared with nil
func (s *MemoryStore) FailSave(err error) {
	s.mu.Lock()
	s.saveErr = err
	s.mu.Unlock()
}

// Saves returns the number of successful saves
func (s *MemoryStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

func cloneEntries(in []types.AppEntry) []types.AppEntry {
	if in == nil {
		return nil
	}
	out := make([]types.AppEntry, len(in))
	for i, e := range in {
		out[i] = e.Clone()
	}
	return out
}
