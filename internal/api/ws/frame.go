package ws

import (
	"github.com/GriffinCanCode/AgentOS/shell/internal/shared/types"
)

// Client frame types
const (
	FramePing        = "ping"
	FrameSubscribe   = "subscribe"
	FrameUnsubscribe = "unsubscribe"
)

// Server frame types
const (
	FrameWelcome = "welcome"
	FramePong    = "pong"
	FrameSignal  = "signal"
	FrameError   = "error"
)

// ClientFrame is a message sent by a bridge client. Any type other than
// the control types above is routed into the relay as a signal.
type ClientFrame struct {
	Type    string   `json:"type"`
	Payload any      `json:"payload,omitempty"`
	Target  string   `json:"target,omitempty"`
	Types   []string `json:"types,omitempty"`
}

// ServerFrame is a message sent to a bridge client
type ServerFrame struct {
	Type    string          `json:"type"`
	Name    string          `json:"name,omitempty"`
	Signal  *types.Envelope `json:"signal,omitempty"`
	Message string          `json:"message,omitempty"`
}
