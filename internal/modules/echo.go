package modules

import (
	"sync/atomic"

	"github.com/GriffinCanCode/AgentOS/shell/internal/shared/types"
)

// EchoMain is the plugin main that answers echo requests
const EchoMain = "echo"

// SignalEcho asks every active echo plugin to send the payload back
const SignalEcho = "echo_request"

// Echo replies to echo_request with the request payload while active
type Echo struct {
	router Router
	active atomic.Bool
	echoed atomic.Int64
}

// NewEcho creates an echo module
func NewEcho(router Router) *Echo {
	return &Echo{router: router}
}

func (e *Echo) Init() error {
	return nil
}

func (e *Echo) Shutdown() error {
	return nil
}

func (e *Echo) Activate() error {
	e.active.Store(true)
	return nil
}

func (e *Echo) Deactivate() error {
	e.active.Store(false)
	return nil
}

// Echoed returns how many requests have been answered
func (e *Echo) Echoed() int64 {
	return e.echoed.Load()
}

func (e *Echo) OnSignal(signalType string, payload any, env types.Envelope) error {
	if signalType != SignalEcho || !e.active.Load() || env.Source == "" {
		return nil
	}

	source := env.Target
	if source == "" {
		source = EchoMain
	}
	if source == env.Source {
		return nil
	}
	e.echoed.Add(1)
	e.router.Route(types.ResponseType(signalType), payload, source, env.Source)
	return nil
}
