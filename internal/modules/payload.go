package modules

import "strconv"

// LogRequest is the typed payload of system_log_request
type LogRequest struct {
	Level   string `json:"level,omitempty"`
	Message string `json:"message"`
}

// LogsRequest is the typed payload of system_logs_request
type LogsRequest struct {
	Limit int    `json:"limit,omitempty"`
	Level string `json:"level,omitempty"`
}

// stringField reads key from a typed request or a decoded JSON object
func stringField(payload any, key string) string {
	switch p := payload.(type) {
	case LogRequest:
		return logRequestField(p, key)
	case *LogRequest:
		if p != nil {
			return logRequestField(*p, key)
		}
	case LogsRequest:
		if key == "level" {
			return p.Level
		}
	case *LogsRequest:
		if p != nil && key == "level" {
			return p.Level
		}
	case map[string]any:
		s, _ := p[key].(string)
		return s
	case map[string]string:
		return p[key]
	}
	return ""
}

func logRequestField(p LogRequest, key string) string {
	switch key {
	case "level":
		return p.Level
	case "message":
		return p.Message
	}
	return ""
}

// intField reads a numeric key; JSON numbers arrive as float64
func intField(payload any, key string) int {
	switch p := payload.(type) {
	case LogsRequest:
		return p.Limit
	case *LogsRequest:
		if p != nil {
			return p.Limit
		}
	case map[string]any:
		switch v := p[key].(type) {
		case float64:
			return int(v)
		case int:
			return v
		case string:
			n, _ := strconv.Atoi(v)
			return n
		}
	case map[string]string:
		n, _ := strconv.Atoi(p[key])
		return n
	}
	return 0
}
