package http

import (
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/GriffinCanCode/AgentOS/shell/internal/domain/app"
	"github.com/GriffinCanCode/AgentOS/shell/internal/domain/plugin"
	"github.com/GriffinCanCode/AgentOS/shell/internal/domain/registry"
	"github.com/GriffinCanCode/AgentOS/shell/internal/domain/relay"
	"github.com/GriffinCanCode/AgentOS/shell/internal/shared/types"
	"github.com/GriffinCanCode/AgentOS/shell/internal/shared/utils"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Source is stamped on signals injected through the API when the caller
// gives none
const Source = "http"

// MaxImportSize bounds a registry import body
const MaxImportSize = 8 << 20

// Handlers contains all HTTP handlers
type Handlers struct {
	relay    *relay.Relay
	registry *registry.Manager
	apps     *app.Manager
	plugins  *plugin.Manager
	logger   *zap.Logger
	version  string
}

// NewHandlers creates a new handler set. plugins may be nil.
func NewHandlers(r *relay.Relay, reg *registry.Manager, apps *app.Manager, plugins *plugin.Manager, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		relay:    r,
		registry: reg,
		apps:     apps,
		plugins:  plugins,
		logger:   logger,
		version:  "1.0.0",
	}
}

// AppView is a registry entry with its live state
type AppView struct {
	types.AppEntry
	Running bool `json:"running"`
}

// SignalRequest is the body of POST /signals
type SignalRequest struct {
	Type    string `json:"type" binding:"required"`
	Payload any    `json:"payload"`
	Source  string `json:"source"`
	Target  string `json:"target"`
}

// Root reports the service identity
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "shell",
		"version": h.version,
	})
}

// Health reports component statistics
func (h *Handlers) Health(c *gin.Context) {
	body := gin.H{
		"status":   "healthy",
		"relay":    h.relay.Stats(),
		"apps":     h.apps.Stats(),
		"registry": gin.H{"entries": h.registry.Len(), "dirty": h.registry.Dirty()},
	}
	if h.plugins != nil {
		body["plugins"] = h.plugins.Stats()
	}
	c.JSON(http.StatusOK, body)
}

// Stats returns the external stats query
func (h *Handlers) Stats(c *gin.Context) {
	stats := h.apps.Stats()
	c.JSON(http.StatusOK, gin.H{
		"total_apps":     stats.TotalApps,
		"running_apps":   stats.RunningApps,
		"failed_apps":    stats.FailedApps,
		"pending_apps":   stats.PendingApps,
		"registry_size":  stats.RegistrySize,
		"history_length": stats.HistoryLength,
		"uptime_seconds": int64(stats.Uptime / time.Second),
		"running":        stats.Running,
		"relay":          h.relay.Stats(),
		"registry":       h.registry.Stats(),
	})
}

// ListApps lists registry entries, optionally filtered by category, status
// and autostart
func (h *Handlers) ListApps(c *gin.Context) {
	filter := types.EntryFilter{
		Category: types.Category(c.Query("category")),
		Status:   types.EntryStatus(c.Query("status")),
	}
	if filter.Category != "" && !filter.Category.Valid() {
		badRequest(c, "unknown category "+strconv.Quote(string(filter.Category)))
		return
	}
	if v := c.Query("autostart"); v != "" {
		auto, err := strconv.ParseBool(v)
		if err != nil {
			badRequest(c, "autostart must be a boolean")
			return
		}
		filter.AutoStart = auto
	}

	entries := h.registry.ListApps(filter)
	views := make([]AppView, len(entries))
	for i, e := range entries {
		views[i] = AppView{AppEntry: e, Running: h.apps.IsRunning(e.Name)}
	}
	c.JSON(http.StatusOK, gin.H{
		"apps":  views,
		"count": len(views),
	})
}

// GetApp returns one entry
func (h *Handlers) GetApp(c *gin.Context) {
	name := c.Param("name")
	e, err := h.registry.GetApp(name)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, AppView{AppEntry: e, Running: h.apps.IsRunning(name)})
}

// StartApp starts an app and its dependencies
func (h *Handlers) StartApp(c *gin.Context) {
	h.lifecycle(c, "start", h.apps.StartApp)
}

// StopApp stops an app and its dependents
func (h *Handlers) StopApp(c *gin.Context) {
	h.lifecycle(c, "stop", h.apps.StopApp)
}

// RestartApp restarts an app
func (h *Handlers) RestartApp(c *gin.Context) {
	h.lifecycle(c, "restart", h.apps.RestartApp)
}

// RecoverApp resets an errored app to installed
func (h *Handlers) RecoverApp(c *gin.Context) {
	h.lifecycle(c, "recover", h.apps.RecoverApp)
}

// UninstallApp stops and removes an app
func (h *Handlers) UninstallApp(c *gin.Context) {
	h.lifecycle(c, "uninstall", h.apps.UninstallApp)
}

func (h *Handlers) lifecycle(c *gin.Context, op string, fn func(string) error) {
	name := c.Param("name")
	if err := fn(name); err != nil {
		h.logger.Warn("Lifecycle request failed", zap.String("op", op), zap.String("app", name), zap.Error(err))
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"app":     name,
		"op":      op,
		"success": true,
		"running": h.apps.IsRunning(name),
	})
}

// ExportRegistry returns the registry document
func (h *Handlers) ExportRegistry(c *gin.Context) {
	snap := h.registry.Export()
	etag, err := utils.Fingerprint(struct {
		Order []string                  `json:"order"`
		Apps  map[string]types.AppEntry `json:"apps"`
	}{snap.Order, snap.Apps})
	if err != nil {
		fail(c, err)
		return
	}
	etag = `"` + utils.Short(etag) + `"`
	c.Header("ETag", etag)
	if c.GetHeader("If-None-Match") == etag {
		c.Status(http.StatusNotModified)
		return
	}

	data, err := h.registry.ExportJSON()
	if err != nil {
		fail(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="registry.json"`)
	c.Data(http.StatusOK, "application/json; charset=utf-8", data)
}

// ImportRegistry loads a registry document. merge=true keeps existing
// entries not named in the document.
func (h *Handlers) ImportRegistry(c *gin.Context) {
	merge, _ := strconv.ParseBool(c.DefaultQuery("merge", "false"))

	data, err := io.ReadAll(io.LimitReader(c.Request.Body, MaxImportSize))
	if err != nil {
		badRequest(c, "failed to read body")
		return
	}
	if err := h.registry.ImportJSON(data, merge); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"merge":   merge,
		"entries": h.registry.Len(),
	})
}

// LoadOrder returns the dependency order of the named entries, or of every
// entry when names is empty
func (h *Handlers) LoadOrder(c *gin.Context) {
	var names []string
	for _, n := range strings.Split(c.Query("names"), ",") {
		if n = strings.TrimSpace(n); n != "" {
			names = append(names, n)
		}
	}
	order, err := h.registry.GetLoadOrder(names...)
	if err != nil {
		fail(c, err)
		return
	}
	if order == nil {
		order = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"order": order})
}

// SignalHistory returns recent envelopes, oldest first
func (h *Handlers) SignalHistory(c *gin.Context) {
	limit := 0
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			badRequest(c, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	history := h.relay.GetSignalHistory(limit)
	c.JSON(http.StatusOK, gin.H{
		"signals": history,
		"count":   len(history),
	})
}

// SendSignal routes a signal into the relay
func (h *Handlers) SendSignal(c *gin.Context) {
	var req SignalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid signal: "+err.Error())
		return
	}
	if err := utils.ValidateSignalType(req.Type); err != nil {
		badRequest(c, err.Error())
		return
	}
	if err := utils.ValidateJSONDepth(req.Payload, utils.MaxPayloadDepth); err != nil {
		badRequest(c, "payload: "+err.Error())
		return
	}
	source := req.Source
	if source == "" {
		source = Source
	}
	env := h.relay.Route(req.Type, req.Payload, source, req.Target)
	c.JSON(http.StatusAccepted, env)
}

// ListPlugins lists loaded plugins
func (h *Handlers) ListPlugins(c *gin.Context) {
	if h.plugins == nil {
		c.JSON(http.StatusOK, gin.H{"plugins": []types.PluginInfo{}, "stats": types.PluginStats{}})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"plugins": h.plugins.List(),
		"stats":   h.plugins.Stats(),
	})
}

// GetPlugin returns one plugin
func (h *Handlers) GetPlugin(c *gin.Context) {
	if h.plugins == nil {
		fail(c, plugin.ErrPluginNotFound)
		return
	}
	info, err := h.plugins.Get(c.Param("name"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

// StartPlugin starts a plugin
func (h *Handlers) StartPlugin(c *gin.Context) {
	h.pluginOp(c, "start", func(p *plugin.Manager) func(string) error { return p.Start })
}

// StopPlugin stops a plugin
func (h *Handlers) StopPlugin(c *gin.Context) {
	h.pluginOp(c, "stop", func(p *plugin.Manager) func(string) error { return p.Stop })
}

func (h *Handlers) pluginOp(c *gin.Context, op string, pick func(*plugin.Manager) func(string) error) {
	if h.plugins == nil {
		fail(c, plugin.ErrPluginNotFound)
		return
	}
	name := c.Param("name")
	if err := pick(h.plugins)(name); err != nil {
		fail(c, err)
		return
	}
	info, _ := h.plugins.Get(name)
	c.JSON(http.StatusOK, gin.H{
		"plugin":  name,
		"op":      op,
		"success": true,
		"state":   info.State,
	})
}
