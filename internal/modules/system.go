package modules

import (
	"runtime"
	"sync"
	"time"

	"github.com/GriffinCanCode/AgentOS/shell/internal/shared/types"
	"github.com/jonboulle/clockwork"
)

// SystemName is the registry name of the system module
const SystemName = "system"

// Signals answered by the system module. Replies use the matching
// "_response" type and go to the requester.
const (
	SignalSystemInfo = "system_info_request"
	SignalSystemTime = "system_time_request"
	SignalSystemLog  = "system_log_request"
	SignalSystemLogs = "system_logs_request"
	SignalPing       = "ping_request"
)

const defaultMaxLogs = 1000

// Router sends replies back into the relay
type Router interface {
	Route(signalType string, payload any, source, target string) types.Envelope
}

// LogEntry is one message posted to the system log
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	Source    string    `json:"source,omitempty"`
}

// Failure is the reply payload for a request the module could not serve
type Failure struct {
	Error string `json:"error"`
}

// System answers runtime information requests and keeps a bounded log
// that other modules can append to.
type System struct {
	router  Router
	clock   clockwork.Clock
	started time.Time

	mu      sync.RWMutex
	logs    []LogEntry
	maxLogs int
}

// NewSystem creates the system module
func NewSystem(router Router, clock clockwork.Clock) *System {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &System{
		router:  router,
		clock:   clock,
		maxLogs: defaultMaxLogs,
	}
}

// Describe reports the install config
func (s *System) Describe() types.ModuleConfig {
	return types.ModuleConfig{
		Version:     "1.0.0",
		Description: "Runtime information and shared log",
		Author:      "shell",
		Category:    types.CategorySystem,
		AutoStart:   true,
		Sovereign:   true,
	}
}

func (s *System) Init() error {
	s.mu.Lock()
	s.started = s.clock.Now()
	s.mu.Unlock()
	return nil
}

func (s *System) Shutdown() error {
	return nil
}

func (s *System) OnSignal(signalType string, payload any, env types.Envelope) error {
	var reply any
	switch signalType {
	case SignalSystemInfo:
		reply = s.Info()
	case SignalSystemTime:
		reply = s.Time()
	case SignalPing:
		reply = map[string]any{"pong": true, "timestamp": s.clock.Now().Unix()}
	case SignalSystemLog:
		message := stringField(payload, "message")
		if message == "" {
			reply = Failure{Error: "message required"}
			break
		}
		s.Log(stringField(payload, "level"), message, env.Source)
		reply = map[string]any{"logged": true}
	case SignalSystemLogs:
		logs := s.Logs(intField(payload, "limit"), stringField(payload, "level"))
		reply = map[string]any{"logs": logs, "count": len(logs)}
	default:
		return nil
	}

	if env.Source != "" && env.Source != SystemName {
		s.router.Route(types.ResponseType(signalType), reply, SystemName, env.Source)
	}
	return nil
}

// Info returns process and runtime figures
func (s *System) Info() map[string]any {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	s.mu.RLock()
	started := s.started
	s.mu.RUnlock()

	return map[string]any{
		"go_version":     runtime.Version(),
		"os":             runtime.GOOS,
		"arch":           runtime.GOARCH,
		"cpus":           runtime.NumCPU(),
		"goroutines":     runtime.NumGoroutine(),
		"memory_alloc":   m.Alloc / 1024 / 1024, // MB
		"memory_sys":     m.Sys / 1024 / 1024,   // MB
		"uptime_seconds": s.clock.Since(started).Seconds(),
	}
}

// Time returns the current server time in several encodings
func (s *System) Time() map[string]any {
	now := s.clock.Now()
	return map[string]any{
		"timestamp": now.Unix(),
		"iso":       now.Format(time.RFC3339),
		"unix_ms":   now.UnixMilli(),
	}
}

// Log appends a message, evicting the oldest beyond the cap
func (s *System) Log(level, message, source string) {
	if level == "" {
		level = "info"
	}
	entry := LogEntry{
		Timestamp: s.clock.Now(),
		Level:     level,
		Message:   message,
		Source:    source,
	}

	s.mu.Lock()
	s.logs = append(s.logs, entry)
	if len(s.logs) > s.maxLogs {
		s.logs = s.logs[len(s.logs)-s.maxLogs:]
	}
	s.mu.Unlock()
}

// Logs returns up to limit entries, newest first, optionally filtered by level
func (s *System) Logs(limit int, level string) []LogEntry {
	if limit <= 0 {
		limit = 100
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	filtered := make([]LogEntry, 0, min(limit, len(s.logs)))
	for i := len(s.logs) - 1; i >= 0 && len(filtered) < limit; i-- {
		if level == "" || s.logs[i].Level == level {
			filtered = append(filtered, s.logs[i])
		}
	}
	return filtered
}
