package relay

import (
	"errors"
	"fmt"
	"time"

	"github.com/GriffinCanCode/AgentOS/shell/internal/shared/types"
	"go.uber.org/zap"
)

var errBadPayload = errors.New("unexpected payload")

// HeartbeatResponse answers a heartbeat signal
type HeartbeatResponse struct {
	Status    string        `json:"status"`
	Timestamp time.Time     `json:"timestamp"`
	Uptime    time.Duration `json:"uptime"`
}

func (r *Relay) installCoreListeners() {
	r.AddListener(types.SignalHeartbeat, r.onHeartbeat)
	r.AddListener(types.SignalSystemStatus, r.onSystemStatus)
	r.AddListener(types.SignalAppRegister, r.onAppRegister)
	r.AddListener(types.SignalAppUnregister, r.onAppUnregister)
}

func (r *Relay) reply(env types.Envelope, payload any) {
	r.Route(types.ResponseType(env.Type), payload, types.RelaySource, env.Source)
}

func (r *Relay) onHeartbeat(env types.Envelope) error {
	r.reply(env, HeartbeatResponse{
		Status:    "alive",
		Timestamp: r.clock.Now(),
		Uptime:    r.clock.Since(r.startTime),
	})
	return nil
}

func (r *Relay) onSystemStatus(env types.Envelope) error {
	r.reply(env, r.Stats())
	return nil
}

func (r *Relay) onAppRegister(env types.Envelope) error {
	var req types.RegisterRequest
	switch p := env.Payload.(type) {
	case types.RegisterRequest:
		req = p
	case *types.RegisterRequest:
		if p == nil {
			return errBadPayload
		}
		req = *p
	default:
		return errBadPayload
	}
	if req.Name == "" || req.Module == nil {
		return errBadPayload
	}
	if r.Claimed(req.Name) {
		return r.refuse(env, req.Name)
	}
	r.RegisterApp(req.Name, req.Module, req.Metadata)
	return nil
}

func (r *Relay) onAppUnregister(env types.Envelope) error {
	name, ok := types.AppNameFromPayload(env.Payload)
	if !ok {
		return errBadPayload
	}
	if r.Claimed(name) {
		return r.refuse(env, name)
	}
	r.UnregisterApp(name)
	return nil
}

func (r *Relay) refuse(env types.Envelope, name string) error {
	r.logger.Warn("Refusing signal for claimed registration",
		zap.String("signal", env.Type),
		zap.String("app", name),
		zap.String("source", env.Source))
	return fmt.Errorf("%w: %s", ErrClaimed, name)
}
