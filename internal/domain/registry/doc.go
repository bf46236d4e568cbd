// Package registry keeps the persistent record of installed modules.
//
// Components:
//   - Manager: entry CRUD, dependency validation, load order, export/import
//   - Store: persistence boundary (FileStore on disk, MemoryStore in tests)
//   - Persister: background retry of failed saves behind a circuit breaker
//   - Seeder: installs entries from JSON, YAML or TOML manifests
//
// Entries keep their insertion order. Dependency walks iterate in that
// order, so GetLoadOrder is deterministic for a fixed registry.
//
// Every mutation is saved immediately. A failed save leaves the registry
// dirty and the Persister retries it.
//
// Example Usage:
//
//	reg := registry.NewManager(registry.NewFileStore("data/registry.json"),
//		registry.WithLogger(logger.Component("registry")))
//	err := reg.RegisterApp(types.AppEntry{Name: "mail", Dependencies: []string{"vault"}})
//	order, err := reg.GetLoadOrder("mail", "vault")
package registry
