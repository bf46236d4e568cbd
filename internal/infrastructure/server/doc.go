// Package server wires the shell together and runs it.
//
// New builds the core in dependency order (relay, registry with its file
// store and persister, orchestrator, plugin manager, builtin modules) and
// mounts the control API, /metrics and the /stream websocket bridge on a
// gin engine. Serve boots autostart apps and plugins, serves until its
// context is cancelled, then stops every module and flushes the registry.
package server
