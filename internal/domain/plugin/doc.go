// Package plugin loads plugins from manifests and runs them through the app
// orchestrator.
//
// A manifest names the plugin, its version, description, author and main,
// the constructor registered with RegisterMain that builds the module.
// Loading a manifest installs a registry entry in the plugin category, so
// plugins take part in dependency ordering next to every other module.
//
// Modules that implement types.Activator are activated after Init and
// deactivated before Shutdown. Each transition of a loaded plugin is
// announced as plugin_activated or plugin_deactivated.
//
// Discover scans a directory for plugin.json, plugin.yaml, plugin.yml or
// plugin.toml files at any depth.
package plugin
