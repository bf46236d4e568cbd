package app

import (
	"errors"
	"testing"

	"github.com/GriffinCanCode/AgentOS/shell/internal/shared/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lastResponse(t *testing.T, cli *fakeModule, signalType string) types.Envelope {
	t.Helper()
	got := cli.received(signalType)
	require.NotEmpty(t, got, "no %s received", signalType)
	return got[len(got)-1]
}

func TestSignalControl(t *testing.T) {
	h := newHarness(t)
	h.add(t, "vault")
	h.add(t, "mail", "vault")
	h.add(t, "broken").initErr = errors.New("nope")

	cli := &fakeModule{name: "cli", log: h.log}
	h.relay.RegisterApp("cli", cli, types.ModuleMetadata{})

	t.Run("start", func(t *testing.T) {
		h.relay.Route(types.SignalAppStartRequest, map[string]any{"appName": "mail"}, "cli", "")

		assert.Equal(t, []string{"vault", "mail"}, h.manager.RunningApps())
		env := lastResponse(t, cli, "app_start_response")
		assert.Equal(t, "cli", env.Target)
		assert.Equal(t, Source, env.Source)
		assert.Equal(t, types.ControlResponse{AppName: "mail", Success: true}, env.Payload)
	})

	t.Run("restart", func(t *testing.T) {
		h.relay.Route(types.SignalAppRestart, types.AppRequest{AppName: "mail"}, "cli", "")

		assert.True(t, h.manager.IsRunning("mail"))
		inits, shutdowns := h.modules["mail"].counts()
		assert.Equal(t, 2, inits)
		assert.Equal(t, 1, shutdowns)
		resp := lastResponse(t, cli, "app_restart_response").Payload.(types.ControlResponse)
		assert.True(t, resp.Success)
	})

	t.Run("stop", func(t *testing.T) {
		h.relay.Route(types.SignalAppStopRequest, &types.AppRequest{AppName: "vault"}, "cli", "")

		assert.Empty(t, h.manager.RunningApps())
		resp := lastResponse(t, cli, "app_stop_response").Payload.(types.ControlResponse)
		assert.True(t, resp.Success)
	})

	t.Run("failure is reported", func(t *testing.T) {
		h.relay.Route(types.SignalAppStartRequest, map[string]any{"appName": "broken"}, "cli", "")

		resp := lastResponse(t, cli, "app_start_response").Payload.(types.ControlResponse)
		assert.False(t, resp.Success)
		assert.Contains(t, resp.Error, "nope")
	})

	t.Run("missing name", func(t *testing.T) {
		h.relay.Route(types.SignalAppStartRequest, map[string]any{}, "cli", "")

		resp := lastResponse(t, cli, "app_start_response").Payload.(types.ControlResponse)
		assert.False(t, resp.Success)
		assert.Equal(t, errMissingAppName, resp.Error)
	})

	t.Run("stats", func(t *testing.T) {
		h.relay.Route(types.SignalManagerStats, nil, "cli", "")

		stats := lastResponse(t, cli, "app_manager_stats_response").Payload.(types.ManagerStats)
		assert.Equal(t, 3, stats.RegistrySize)
		assert.Equal(t, 1, stats.FailedApps)
	})
}
