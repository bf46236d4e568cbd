/*
Package relay routes signals between modules running in one process.

Every Route call appends an envelope to a bounded history (HistorySize, oldest
evicted) and delivers it: to the target alone when the target is registered,
otherwise to every active module, then to the listeners for its type.

Delivery is serialized through a queue. The first caller to find the queue
idle drains it, so envelopes reach modules in history order and a handler
that routes a new signal never re-enters the relay; its envelope is
delivered once the current one finishes. No callback runs with the relay
lock held.

A module that fails (returns an error or panics) while handling a signal is
moved to the error status and skipped by later broadcasts. Listener failures
are logged and never stop the remaining listeners.

Core listeners handle heartbeat, system_status, app_register and
app_unregister; replies are routed back to the requesting source.
*/
package relay
