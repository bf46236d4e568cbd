// Package app drives module lifecycle: install, start, stop, restart and
// uninstall, on top of the registry and the relay.
//
// Starting a module starts its missing dependencies first, in registry load
// order. Stopping a module first stops every running module that depends on
// it, deepest dependent first. Init and shutdown failures never escape as
// panics; they move the registry entry to the error status, where it stays
// until RecoverApp resets it.
//
// The same operations are reachable as signals. A module routes
// app_start_request, app_stop_request or app_restart_request with an
// {"appName": ...} payload, or app_manager_stats_request, and receives the
// matching *_response addressed to it.
package app
