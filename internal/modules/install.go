package modules

import (
	"errors"

	"github.com/GriffinCanCode/AgentOS/shell/internal/domain/app"
	"github.com/GriffinCanCode/AgentOS/shell/internal/shared/types"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// Installer is the orchestrator surface used to install builtins
type Installer interface {
	InstallApp(name string, module types.Module, opts app.InstallOptions) error
	RegisterFactory(name string, factory types.Factory)
}

// Mains accepts plugin main factories
type Mains interface {
	RegisterMain(main string, factory types.Factory)
}

// Install makes the builtin modules available. The system module is added
// to the registry on first boot; later boots reuse the persisted entry.
// Plugin mains are registered for manifests that name them.
func Install(apps Installer, mains Mains, router Router, clock clockwork.Clock, logger *zap.Logger) (*System, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	system := NewSystem(router, clock)
	err := apps.InstallApp(SystemName, system, app.InstallOptions{})
	switch {
	case errors.Is(err, app.ErrAlreadyInstalled):
		apps.RegisterFactory(SystemName, func() (types.Module, error) { return system, nil })
		logger.Debug("Builtin already in registry", zap.String("app", SystemName))
	case err != nil:
		return nil, err
	}

	if mains != nil {
		mains.RegisterMain(EchoMain, func() (types.Module, error) { return NewEcho(router), nil })
	}
	return system, nil
}
