package registry

import (
	"errors"

	"github.com/GriffinCanCode/AgentOS/shell/internal/domain/depgraph"
)

var (
	ErrNotFound               = errors.New("app not found in registry")
	ErrAlreadyExists          = errors.New("app already exists in registry")
	ErrDependencyMissing      = errors.New("dependency not in registry")
	ErrDependencyNotInstalled = errors.New("dependency not installed")
	ErrDependentsExist        = errors.New("app has dependents")
	ErrInvalidEntry           = errors.New("invalid registry entry")

	// ErrCircularDependency is shared with the graph walks so errors.Is matches either
	ErrCircularDependency = depgraph.ErrCircularDependency
)
