package types

import (
	"sort"
	"time"
)

// Category classifies a registry entry
type Category string

const (
	CategoryLegacy Category = "legacy"
	CategoryPlugin Category = "plugin"
	CategorySystem Category = "system"
	CategoryUser   Category = "user"
)

// Valid reports whether c is a known category
func (c Category) Valid() bool {
	switch c {
	case CategoryLegacy, CategoryPlugin, CategorySystem, CategoryUser:
		return true
	}
	return false
}

// EntryStatus is the persisted install status of a registry entry
type EntryStatus string

const (
	StatusInstalled EntryStatus = "installed"
	StatusDisabled  EntryStatus = "disabled"
	StatusError     EntryStatus = "error"
	StatusPending   EntryStatus = "pending"
)

// AppEntry is the persisted structural metadata of one module
type AppEntry struct {
	Name         string      `json:"name" yaml:"name" toml:"name"`
	Version      string      `json:"version" yaml:"version" toml:"version"`
	Description  string      `json:"description" yaml:"description" toml:"description"`
	Author       string      `json:"author" yaml:"author" toml:"author"`
	Category     Category    `json:"category" yaml:"category" toml:"category"`
	Status       EntryStatus `json:"status" yaml:"status" toml:"status"`
	AutoStart    bool        `json:"autoStart" yaml:"autoStart" toml:"autoStart"`
	Sovereign    bool        `json:"sovereign" yaml:"sovereign" toml:"sovereign"`
	Dependencies []string    `json:"dependencies" yaml:"dependencies" toml:"dependencies"`
	Permissions  []string    `json:"permissions" yaml:"permissions" toml:"permissions"`
	InstallDate  time.Time   `json:"installDate" yaml:"installDate" toml:"installDate"`
	LastUpdate   time.Time   `json:"lastUpdate" yaml:"lastUpdate" toml:"lastUpdate"`
}

// Clone returns a deep copy of the entry
func (e AppEntry) Clone() AppEntry {
	e.Dependencies = cloneStrings(e.Dependencies)
	e.Permissions = cloneStrings(e.Permissions)
	return e
}

// DependsOn reports whether the entry lists name as a dependency
func (e AppEntry) DependsOn(name string) bool {
	for _, dep := range e.Dependencies {
		if dep == name {
			return true
		}
	}
	return false
}

// AppPatch enumerates the mutable fields of an entry. Nil fields are left unchanged.
type AppPatch struct {
	Version      *string      `json:"version,omitempty"`
	Description  *string      `json:"description,omitempty"`
	Author       *string      `json:"author,omitempty"`
	Category     *Category    `json:"category,omitempty"`
	Status       *EntryStatus `json:"status,omitempty"`
	AutoStart    *bool        `json:"autoStart,omitempty"`
	Sovereign    *bool        `json:"sovereign,omitempty"`
	Dependencies *[]string    `json:"dependencies,omitempty"`
	Permissions  *[]string    `json:"permissions,omitempty"`
}

// StatusPatch is a patch that only changes status
func StatusPatch(status EntryStatus) AppPatch {
	return AppPatch{Status: &status}
}

// Apply merges the patch into e
func (p AppPatch) Apply(e *AppEntry) {
	if p.Version != nil {
		e.Version = *p.Version
	}
	if p.Description != nil {
		e.Description = *p.Description
	}
	if p.Author != nil {
		e.Author = *p.Author
	}
	if p.Category != nil {
		e.Category = *p.Category
	}
	if p.Status != nil {
		e.Status = *p.Status
	}
	if p.AutoStart != nil {
		e.AutoStart = *p.AutoStart
	}
	if p.Sovereign != nil {
		e.Sovereign = *p.Sovereign
	}
	if p.Dependencies != nil {
		e.Dependencies = cloneStrings(*p.Dependencies)
	}
	if p.Permissions != nil {
		e.Permissions = cloneStrings(*p.Permissions)
	}
}

// EntryFilter narrows ListApps results. Zero values match everything.
type EntryFilter struct {
	Category  Category
	Status    EntryStatus
	AutoStart bool // true keeps only autostart entries
}

// Matches reports whether e passes the filter
func (f EntryFilter) Matches(e AppEntry) bool {
	if f.Category != "" && e.Category != f.Category {
		return false
	}
	if f.Status != "" && e.Status != f.Status {
		return false
	}
	if f.AutoStart && !e.AutoStart {
		return false
	}
	return true
}

// RegistrySnapshot is the persisted and exported registry document
type RegistrySnapshot struct {
	Version    int                 `json:"version"`
	ExportedAt time.Time           `json:"exportedAt"`
	Order      []string            `json:"order"`
	Apps       map[string]AppEntry `json:"apps"`
}

// Entries returns snapshot entries in recorded order. Entries missing from
// Order are appended sorted by name.
func (s RegistrySnapshot) Entries() []AppEntry {
	out := make([]AppEntry, 0, len(s.Apps))
	seen := make(map[string]bool, len(s.Apps))
	for _, name := range s.Order {
		if e, ok := s.Apps[name]; ok && !seen[name] {
			if e.Name == "" {
				e.Name = name
			}
			out = append(out, e)
			seen[name] = true
		}
	}
	var rest []string
	for name := range s.Apps {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	for _, name := range rest {
		e := s.Apps[name]
		if e.Name == "" {
			e.Name = name
		}
		out = append(out, e)
	}
	return out
}

// RegistryStats contains registry statistics
type RegistryStats struct {
	TotalApps   int                 `json:"total_apps"`
	AutoStart   int                 `json:"auto_start"`
	Categories  map[Category]int    `json:"categories"`
	Statuses    map[EntryStatus]int `json:"statuses"`
	LastUpdated *time.Time          `json:"last_updated,omitempty"`
	Dirty       bool                `json:"dirty"`
}
