// Package ws bridges WebSocket clients onto the relay.
//
// Each connection registers as a relay module named conn_<ulid>, so it
// receives targeted signals and broadcasts like an in-process module.
// Frames are JSON:
//
//	{"type": "ping"}                                 -> {"type": "pong"}
//	{"type": "subscribe", "types": ["app_started"]}  limit forwarded signals
//	{"type": "unsubscribe"}                          forward everything again
//	{"type": "chat", "payload": {...}, "target": "x"} routed with the connection as source
//
// Delivered signals arrive as {"type": "signal", "signal": <envelope>}. A
// client that does not drain its socket fails delivery instead of blocking
// the relay.
package ws
