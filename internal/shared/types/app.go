package types

import "time"

// Module is the capability every relay participant implements
type Module interface {
	Init() error
	Shutdown() error
	OnSignal(signalType string, payload any, env Envelope) error
}

// Describer is implemented by modules that self-report their install config
type Describer interface {
	Describe() ModuleConfig
}

// Activator is implemented by plugins that need a live phase around init/shutdown
type Activator interface {
	Activate() error
	Deactivate() error
}

// Factory produces a module instance for a start
type Factory func() (Module, error)

// RegistrationStatus is the relay-side status of a registered module
type RegistrationStatus string

const (
	RegistrationInitializing RegistrationStatus = "initializing"
	RegistrationActive       RegistrationStatus = "active"
	RegistrationInactive     RegistrationStatus = "inactive"
	RegistrationError        RegistrationStatus = "error"
)

// ModuleMetadata is the snapshot copied into a relay registration
type ModuleMetadata struct {
	Version      string   `json:"version"`
	Description  string   `json:"description"`
	Dependencies []string `json:"dependencies"`
}

// Clone returns a copy that shares no slices with m
func (m ModuleMetadata) Clone() ModuleMetadata {
	m.Dependencies = cloneStrings(m.Dependencies)
	return m
}

// Registration describes a module the relay currently knows about
type Registration struct {
	Name         string             `json:"name"`
	Status       RegistrationStatus `json:"status"`
	Metadata     ModuleMetadata     `json:"metadata"`
	RegisteredAt time.Time          `json:"registered_at"`
	LastError    string             `json:"last_error,omitempty"`
}

// ModuleConfig is what a module reports about itself at install time
type ModuleConfig struct {
	Version      string
	Description  string
	Author       string
	Category     Category
	Dependencies []string
	Permissions  []string
	AutoStart    bool
	Sovereign    bool
}

// RelayStats contains relay statistics
type RelayStats struct {
	Registered    int           `json:"registered"`
	Active        int           `json:"active"`
	Failed        int           `json:"failed"`
	HistoryLength int           `json:"history_length"`
	Listeners     int           `json:"listeners"`
	Uptime        time.Duration `json:"uptime"`
}

// ManagerStats contains orchestrator statistics
type ManagerStats struct {
	TotalApps     int           `json:"total_apps"`
	RunningApps   int           `json:"running_apps"`
	FailedApps    int           `json:"failed_apps"`
	PendingApps   int           `json:"pending_apps"`
	RegistrySize  int           `json:"registry_size"`
	HistoryLength int           `json:"history_length"`
	Uptime        time.Duration `json:"uptime"`
	Running       []string      `json:"running"`
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
