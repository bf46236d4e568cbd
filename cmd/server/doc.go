// Command server runs the shell: the signal relay, the app registry, the
// module orchestrator and the plugin layer, behind an HTTP control API.
//
// Configuration comes from the environment (see internal/infrastructure/config);
// flags override the listen address, registry file and plugin directory.
//
//	server -port 8000 -registry data/registry.json -plugins plugins
//
// SIGINT or SIGTERM stops every running module and flushes the registry
// before the process exits.
package main
