// Package middleware provides the gin middleware stack of the control API.
//
//   - CORS: cross-origin policy, WebSocket upgrades included
//   - RateLimit: per-IP token buckets with idle eviction
//   - GlobalRateLimit: one bucket for all clients
//   - RequestID: X-Request-ID propagation
//   - AccessLog: one zap line per request
//
// Example Usage:
//
//	router.Use(middleware.RequestID(), middleware.AccessLog(logger))
//	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
//	router.Use(middleware.RateLimit(middleware.DefaultRateLimitConfig()))
package middleware
