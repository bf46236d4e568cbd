package plugin

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/GriffinCanCode/AgentOS/shell/internal/domain/depgraph"
	"github.com/GriffinCanCode/AgentOS/shell/internal/shared/codec"
	"github.com/GriffinCanCode/AgentOS/shell/internal/shared/types"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/charlievieth/fastwalk"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// ManifestPattern matches manifest files relative to the plugin directory
const ManifestPattern = "**/plugin.{json,yaml,yml,toml}"

// FindManifests returns the manifest paths under dir in lexical order. A
// missing dir yields no paths.
func FindManifests(dir string) ([]string, error) {
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}

	var (
		mu    sync.Mutex
		paths []string
	)
	conf := fastwalk.Config{Follow: false}
	err := fastwalk.Walk(&conf, dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return nil
		}
		if ok, _ := doublestar.Match(ManifestPattern, filepath.ToSlash(rel)); !ok {
			return nil
		}
		mu.Lock()
		paths = append(paths, path)
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", dir, err)
	}

	sort.Strings(paths)
	return paths, nil
}

// ReadManifest decodes the manifest at path and records where it came from
func ReadManifest(path string) (types.PluginManifest, error) {
	var manifest types.PluginManifest
	if err := codec.DecodeFile(path, &manifest); err != nil {
		return types.PluginManifest{}, fmt.Errorf("%w: %w", ErrInvalidManifest, err)
	}
	manifest.Path = path
	return manifest, nil
}

// Discover loads every manifest under dir, dependencies first. Plugins
// already loaded are skipped. It returns how many plugins were loaded along
// with every manifest that failed.
func (m *Manager) Discover(dir string) (int, error) {
	paths, err := FindManifests(dir)
	if err != nil {
		return 0, err
	}

	var errs error
	byName := make(map[string]types.PluginManifest, len(paths))
	graph := depgraph.New()
	for _, path := range paths {
		manifest, err := ReadManifest(path)
		if err == nil {
			err = ValidateManifest(manifest)
		}
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if prev, dup := byName[manifest.Name]; dup {
			errs = multierr.Append(errs, fmt.Errorf("%w: %s declared by %s and %s",
				ErrInvalidManifest, manifest.Name, prev.Path, manifest.Path))
			continue
		}
		byName[manifest.Name] = manifest
		graph.Set(manifest.Name, manifest.Dependencies)
	}

	order, err := graph.TopoSort()
	if err != nil {
		// Registration order still lets the registry reject the loop
		errs = multierr.Append(errs, err)
		order = graph.Nodes()
	}

	count := 0
	for _, name := range order {
		if m.IsLoaded(name) {
			continue
		}
		if err := m.Load(byName[name]); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		count++
	}

	m.logger.Info("Plugin discovery complete",
		zap.String("dir", dir),
		zap.Int("manifests", len(paths)),
		zap.Int("loaded", count),
		zap.Int("failed", len(multierr.Errors(errs))))
	return count, errs
}
