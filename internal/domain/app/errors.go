package app

import "errors"

var (
	ErrNotInRegistry    = errors.New("app not in registry")
	ErrNotInstalled     = errors.New("app not installed")
	ErrAlreadyInstalled = errors.New("app already installed")
	ErrNoFactory        = errors.New("no factory registered")
	ErrInitFailure      = errors.New("app init failed")
	ErrShutdownFailure  = errors.New("app shutdown failed")
)
