// Package logging provides structured logging using uber/zap.
//
// Two modes:
//   - Production: JSON output for machine parsing
//   - Development: Colored console output for human readability
//
// Components (relay, registry, app manager, plugins) each receive a named
// child logger at construction so their lines carry a "component" field.
// Tests inject zap.NewNop() or a zaptest/observer core.
//
// Example Usage:
//
//	logger := logging.NewOrNop(logging.DefaultConfig())
//	r := relay.New(relay.WithLogger(logger.Component("relay")))
//	logger.Info("Server starting", zap.String("port", "8000"))
package logging
