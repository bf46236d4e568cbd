package plugin

import "errors"

var (
	ErrInvalidManifest = errors.New("invalid plugin manifest")
	ErrPluginNotFound  = errors.New("plugin not found")
	ErrAlreadyLoaded   = errors.New("plugin already loaded")
	ErrNoMain          = errors.New("no constructor registered for plugin main")
	ErrNameConflict    = errors.New("plugin name used by a non-plugin entry")
)
