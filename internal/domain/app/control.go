package app

import (
	"github.com/GriffinCanCode/AgentOS/shell/internal/shared/types"
	"go.uber.org/zap"
)

const errMissingAppName = "missing appName"

func (m *Manager) installControlListeners() {
	m.relay.AddListener(types.SignalAppStartRequest, m.controlHandler(m.StartApp))
	m.relay.AddListener(types.SignalAppStopRequest, m.controlHandler(m.StopApp))
	m.relay.AddListener(types.SignalAppRestart, m.controlHandler(m.RestartApp))
	m.relay.AddListener(types.SignalManagerStats, func(env types.Envelope) error {
		m.reply(env, m.Stats())
		return nil
	})
}

// controlHandler adapts a lifecycle operation to a request signal. The
// outcome is always answered; errors are reported in the response rather
// than returned to the relay.
func (m *Manager) controlHandler(op func(string) error) func(types.Envelope) error {
	return func(env types.Envelope) error {
		name, ok := types.AppNameFromPayload(env.Payload)
		if !ok {
			m.reply(env, types.ControlResponse{Success: false, Error: errMissingAppName})
			return nil
		}

		resp := types.ControlResponse{AppName: name, Success: true}
		if err := op(name); err != nil {
			resp.Success = false
			resp.Error = err.Error()
			m.logger.Warn("Control request failed",
				zap.String("signal", env.Type),
				zap.String("app", name),
				zap.String("source", env.Source),
				zap.Error(err))
		}
		m.reply(env, resp)
		return nil
	}
}

func (m *Manager) reply(env types.Envelope, payload any) {
	m.relay.Route(types.ResponseType(env.Type), payload, Source, env.Source)
}
