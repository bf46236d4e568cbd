package types

import "time"

// PluginManifest describes a discoverable plugin
type PluginManifest struct {
	Name         string   `json:"name" yaml:"name" toml:"name"`
	Version      string   `json:"version" yaml:"version" toml:"version"`
	Description  string   `json:"description" yaml:"description" toml:"description"`
	Author       string   `json:"author" yaml:"author" toml:"author"`
	Main         string   `json:"main" yaml:"main" toml:"main"` // Name of the registered constructor
	Dependencies []string `json:"dependencies,omitempty" yaml:"dependencies,omitempty" toml:"dependencies,omitempty"`
	Permissions  []string `json:"permissions,omitempty" yaml:"permissions,omitempty" toml:"permissions,omitempty"`
	AutoStart    bool     `json:"autoStart,omitempty" yaml:"autoStart,omitempty" toml:"autoStart,omitempty"`

	// Set by discovery
	Path string `json:"path,omitempty" yaml:"-" toml:"-"`
}

// PluginState is the lifecycle state of a loaded plugin
type PluginState string

const (
	PluginLoaded PluginState = "loaded"
	PluginActive PluginState = "active"
	PluginError  PluginState = "error"
)

// PluginInfo is the listing view of a loaded plugin
type PluginInfo struct {
	Manifest  PluginManifest `json:"manifest"`
	State     PluginState    `json:"state"`
	LoadedAt  time.Time      `json:"loaded_at"`
	LastError string         `json:"last_error,omitempty"`
}

// PluginStats contains plugin layer statistics
type PluginStats struct {
	Loaded int `json:"loaded"`
	Active int `json:"active"`
	Failed int `json:"failed"`
}
