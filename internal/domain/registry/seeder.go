package registry

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/GriffinCanCode/AgentOS/shell/internal/domain/depgraph"
	"github.com/GriffinCanCode/AgentOS/shell/internal/shared/codec"
	"github.com/GriffinCanCode/AgentOS/shell/internal/shared/types"
	"go.uber.org/zap"
)

// SeedResult counts what a seeding pass did
type SeedResult struct {
	Loaded  int `json:"loaded"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// Seeder installs registry entries from app manifests on disk
type Seeder struct {
	manager *Manager
	appsDir string
	logger  *zap.Logger
}

// NewSeeder creates a new app seeder
func NewSeeder(manager *Manager, appsDir string, logger *zap.Logger) *Seeder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Seeder{
		manager: manager,
		appsDir: appsDir,
		logger:  logger,
	}
}

// SeedApps loads every manifest under the apps directory. Entries whose
// names are already registered are skipped.
func (s *Seeder) SeedApps() (SeedResult, error) {
	var result SeedResult
	if s.appsDir == "" {
		return result, nil
	}
	if _, err := os.Stat(s.appsDir); errors.Is(err, fs.ErrNotExist) {
		s.logger.Warn("Apps directory not found", zap.String("dir", s.appsDir))
		return result, nil
	}

	var entries []types.AppEntry
	err := filepath.WalkDir(s.appsDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if _, err := codec.Detect(path); err != nil {
			return nil
		}

		var entry types.AppEntry
		if err := codec.DecodeFile(path, &entry); err != nil {
			s.logger.Warn("Failed to read app manifest", zap.String("path", path), zap.Error(err))
			result.Failed++
			return nil
		}
		if entry.Name == "" {
			s.logger.Warn("App manifest has no name", zap.String("path", path))
			result.Failed++
			return nil
		}
		entries = append(entries, entry)
		return nil
	})
	if err != nil {
		return result, fmt.Errorf("walk %s: %w", s.appsDir, err)
	}

	seeded := s.SeedEntries(entries)
	result.Loaded += seeded.Loaded
	result.Skipped += seeded.Skipped
	result.Failed += seeded.Failed

	s.logger.Info("Seeding complete",
		zap.String("dir", s.appsDir),
		zap.Int("loaded", result.Loaded),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed))
	return result, nil
}

// SeedEntries installs entries in dependency order, skipping names that
// already exist
func (s *Seeder) SeedEntries(entries []types.AppEntry) SeedResult {
	var result SeedResult

	byName := make(map[string]types.AppEntry, len(entries))
	graph := depgraph.New()
	for _, e := range entries {
		if s.manager.Has(e.Name) {
			result.Skipped++
			continue
		}
		byName[e.Name] = e
		graph.Set(e.Name, e.Dependencies)
	}

	order, err := graph.TopoSort()
	if err != nil {
		s.logger.Error("Seed manifests form a dependency cycle", zap.Error(err))
		result.Failed += len(byName)
		return result
	}

	for _, name := range order {
		if err := s.manager.Add(byName[name]); err != nil {
			s.logger.Warn("Failed to seed app", zap.String("app", name), zap.Error(err))
			result.Failed++
			continue
		}
		s.logger.Debug("Seeded app", zap.String("app", name))
		result.Loaded++
	}
	return result
}
