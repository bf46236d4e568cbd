/*
Package monitoring provides Prometheus metrics for the shell core.

Each Metrics value owns its own prometheus.Registry, so several cores (or
tests) can live in one process without colliding on registration. Every
recording method accepts a nil receiver, which lets components treat metrics
as optional.

# Usage

	metrics := monitoring.NewMetrics()
	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	timer := monitoring.NewTimer(metrics, "app", "start")
	err := manager.StartApp(name)
	timer.Stop(err)
*/
package monitoring
