// Package http provides the REST control API of the shell.
//
// Endpoints:
//   - Status: /, /health, /stats
//   - Apps: /apps, /apps/:name, /apps/:name/{start,stop,restart,recover}
//   - Registry: /registry/export, /registry/import, /registry/load-order
//   - Signals: GET and POST /signals
//   - Plugins: /plugins, /plugins/:name, /plugins/:name/{start,stop}
//
// Domain errors are mapped to status codes by StatusFor and returned as
// {"error": ..., "code": ...}.
//
// Example Usage:
//
//	handlers := http.NewHandlers(relay, registry, apps, plugins, logger)
//	handlers.Register(router)
package http
