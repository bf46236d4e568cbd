// Package client is the Go client of the shell control API, used by
// shellctl.
//
// Requests go through resty on a retryablehttp transport. Connection errors
// and 5xx responses are retried, and after three consecutive failures a
// circuit breaker rejects calls until the server has had time to recover.
// 4xx responses come back as *APIError and never trip the breaker.
package client
