package plugin

import (
	"fmt"
	"strings"

	"github.com/GriffinCanCode/AgentOS/shell/internal/shared/types"
	"github.com/GriffinCanCode/AgentOS/shell/internal/shared/utils"
)

// ValidateManifest checks that every required manifest field is set and
// that name and main are usable identifiers
func ValidateManifest(m types.PluginManifest) error {
	var missing []string
	for _, f := range []struct {
		name  string
		value string
	}{
		{"name", m.Name},
		{"version", m.Version},
		{"description", m.Description},
		{"author", m.Author},
		{"main", m.Main},
	} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		label := m.Name
		if label == "" {
			label = m.Path
		}
		return fmt.Errorf("%w: %s missing %s", ErrInvalidManifest, label, strings.Join(missing, ", "))
	}

	if err := utils.ValidateName(m.Name, "name"); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidManifest, err)
	}
	if err := utils.ValidateName(m.Main, "main"); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidManifest, m.Name, err)
	}

	for _, dep := range m.Dependencies {
		if dep == m.Name {
			return fmt.Errorf("%w: %s depends on itself", ErrInvalidManifest, m.Name)
		}
	}
	return nil
}

// entry converts a manifest into its registry entry
func entry(m types.PluginManifest) types.AppEntry {
	return types.AppEntry{
		Name:         m.Name,
		Version:      m.Version,
		Description:  m.Description,
		Author:       m.Author,
		Category:     types.CategoryPlugin,
		Status:       types.StatusInstalled,
		AutoStart:    m.AutoStart,
		Dependencies: m.Dependencies,
		Permissions:  m.Permissions,
	}
}
