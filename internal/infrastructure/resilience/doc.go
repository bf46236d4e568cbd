/*
Package resilience provides a circuit breaker for calls into flaky dependencies.

The shell uses it in two places: the registry persister wraps store writes so a
failing disk stops being hammered on every tick, and the HTTP client used by
shellctl wraps calls to the control API.

# Usage

	breaker := resilience.New("registry-store", resilience.Settings{
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to resilience.State) {
			logger.Warn("breaker state change", zap.String("breaker", name),
				zap.Stringer("from", from), zap.Stringer("to", to))
		},
	})

	err := breaker.Execute(func() error {
		return store.Save(entries)
	})

# States

	Closed --[failures]-> Open --[timeout]-> Half-Open --[successes]-> Closed
	                                           |
	                                    [failure]
	                                           |
	                                           v
	                                         Open

Time comes from Settings.Clock, so tests drive transitions with a
clockwork fake clock.
*/
package resilience
