// Package codec decodes manifest documents by file extension.
//
// Supported formats:
//   - .json: bytedance/sonic
//   - .yaml, .yml: goccy/go-yaml
//   - .toml: pelletier/go-toml/v2
package codec

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/goccy/go-yaml"
	"github.com/pelletier/go-toml/v2"
)

// ErrUnsupportedFormat is returned for unknown file extensions
var ErrUnsupportedFormat = errors.New("unsupported manifest format")

// Format is a document encoding
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// Extensions lists every extension Detect accepts
var Extensions = []string{".json", ".yaml", ".yml", ".toml"}

// Detect returns the format implied by a path's extension
func Detect(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
}

// Unmarshal decodes data in the given format into v
func Unmarshal(format Format, data []byte, v any) error {
	switch format {
	case FormatJSON:
		return sonic.Unmarshal(data, v)
	case FormatYAML:
		return yaml.Unmarshal(data, v)
	case FormatTOML:
		return toml.Unmarshal(data, v)
	}
	return fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
}

// DecodeFile reads path and decodes it according to its extension
func DecodeFile(path string, v any) error {
	format, err := Detect(path)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := Unmarshal(format, data, v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}
