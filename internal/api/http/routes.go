package http

import (
	"github.com/gin-gonic/gin"
)

// Register mounts every control route on r
func (h *Handlers) Register(r gin.IRouter) {
	r.GET("/", h.Root)
	r.GET("/health", h.Health)
	r.GET("/stats", h.Stats)

	apps := r.Group("/apps")
	apps.GET("", h.ListApps)
	apps.GET("/:name", h.GetApp)
	apps.POST("/:name/start", h.StartApp)
	apps.POST("/:name/stop", h.StopApp)
	apps.POST("/:name/restart", h.RestartApp)
	apps.POST("/:name/recover", h.RecoverApp)
	apps.DELETE("/:name", h.UninstallApp)

	reg := r.Group("/registry")
	reg.GET("/export", h.ExportRegistry)
	reg.POST("/import", h.ImportRegistry)
	reg.GET("/load-order", h.LoadOrder)

	r.GET("/signals", h.SignalHistory)
	r.POST("/signals", h.SendSignal)

	plugins := r.Group("/plugins")
	plugins.GET("", h.ListPlugins)
	plugins.GET("/:name", h.GetPlugin)
	plugins.POST("/:name/start", h.StartPlugin)
	plugins.POST("/:name/stop", h.StopPlugin)
}
