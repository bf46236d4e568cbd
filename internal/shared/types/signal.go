package types

import "time"

// Reserved signal types interpreted by the core
const (
	SignalHeartbeat        = "heartbeat"
	SignalAppRegister      = "app_register"
	SignalAppUnregister    = "app_unregister"
	SignalSystemStatus     = "system_status"
	SignalAppRegistered    = "app_registered"
	SignalAppStarted       = "app_started"
	SignalAppStopped       = "app_stopped"
	SignalAppStartRequest  = "app_start_request"
	SignalAppStopRequest   = "app_stop_request"
	SignalAppRestart       = "app_restart_request"
	SignalManagerStats     = "app_manager_stats_request"
	SignalPluginActivated  = "plugin_activated"
	SignalPluginDeactivate = "plugin_deactivated"
)

// RelaySource is the source stamped on signals the relay emits itself
const RelaySource = "Relay"

// Envelope is one routed signal
type Envelope struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Payload   any       `json:"payload,omitempty"`
	Source    string    `json:"source"`
	Target    string    `json:"target,omitempty"` // Empty means broadcast
	Timestamp time.Time `json:"timestamp"`
}

// IsBroadcast reports whether the envelope had no target
func (e Envelope) IsBroadcast() bool {
	return e.Target == ""
}

// ResponseType maps a "*_request" signal type to its "*_response" counterpart
func ResponseType(signalType string) string {
	const suffix = "_request"
	if n := len(signalType) - len(suffix); n > 0 && signalType[n:] == suffix {
		return signalType[:n] + "_response"
	}
	return signalType + "_response"
}

// AppRequest is the payload of app_*_request and app_unregister signals
type AppRequest struct {
	AppName string `json:"appName"`
}

// RegisterRequest is the payload of an app_register signal
type RegisterRequest struct {
	Name     string         `json:"name"`
	Module   Module         `json:"-"`
	Metadata ModuleMetadata `json:"metadata"`
}

// AppEvent is the payload of app_started and app_stopped
type AppEvent struct {
	AppName string `json:"appName"`
	Version string `json:"version,omitempty"`
}

// ControlResponse answers a lifecycle request signal
type ControlResponse struct {
	AppName string `json:"appName"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// AppNameFromPayload extracts the target app name from a control payload.
// Accepts AppRequest values, pointers, and decoded JSON maps.
func AppNameFromPayload(payload any) (string, bool) {
	switch p := payload.(type) {
	case AppRequest:
		return p.AppName, p.AppName != ""
	case *AppRequest:
		if p == nil {
			return "", false
		}
		return p.AppName, p.AppName != ""
	case AppEvent:
		return p.AppName, p.AppName != ""
	case map[string]any:
		name, _ := p["appName"].(string)
		return name, name != ""
	case map[string]string:
		name := p["appName"]
		return name, name != ""
	case string:
		return p, p != ""
	}
	return "", false
}
