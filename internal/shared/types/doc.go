// Package types provides shared data structures for the shell core.
//
// Core Types:
//   - Envelope: One routed signal (type, payload, source, optional target)
//   - Module: Capability every relay participant implements
//   - Registration: Relay-side view of a registered module
//   - AppEntry: Persisted registry record of a module
//   - AppPatch: Typed partial update of an AppEntry
//   - PluginManifest: Manifest of a discoverable plugin
//
// Control payloads:
//   - AppRequest: app_start_request, app_stop_request, app_restart_request
//   - RegisterRequest: app_register
//   - ControlResponse: replies to lifecycle requests
//
// Example Usage:
//
//	env := types.Envelope{
//	    Type:   "task_create",
//	    Source: "task-manager",
//	}
//	entry := types.AppEntry{Name: "mail", Dependencies: []string{"vault"}}
package types
