package utils

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Limits applied to names, signal types and payloads crossing the API
const (
	MaxNameLength        = 128
	MaxSignalTypeLength  = 128
	MaxDescriptionLength = 2048
	MaxPayloadDepth      = 32
)

var (
	// NamePattern allows alphanumerics, dots, hyphens and underscores
	NamePattern = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)
	// SignalTypePattern also allows colons for namespaced types
	SignalTypePattern = regexp.MustCompile(`^[a-zA-Z0-9._:-]+$`)
)

// ErrInvalid is wrapped by every validation failure
var ErrInvalid = errors.New("invalid value")

// ValidateString checks length bounds in runes
func ValidateString(value, fieldName string, minLen, maxLen int, required bool) error {
	if value == "" {
		if required {
			return fmt.Errorf("%w: %s is required", ErrInvalid, fieldName)
		}
		return nil
	}

	n := utf8.RuneCountInString(value)
	if minLen > 0 && n < minLen {
		return fmt.Errorf("%w: %s must be at least %d characters", ErrInvalid, fieldName, minLen)
	}
	if maxLen > 0 && n > maxLen {
		return fmt.Errorf("%w: %s must be at most %d characters", ErrInvalid, fieldName, maxLen)
	}
	return nil
}

// ValidateName checks an app, plugin or main name
func ValidateName(name, fieldName string) error {
	if err := ValidateString(name, fieldName, 1, MaxNameLength, true); err != nil {
		return err
	}
	if !NamePattern.MatchString(name) {
		return fmt.Errorf("%w: %s %q may only contain letters, digits, '.', '-' and '_'", ErrInvalid, fieldName, name)
	}
	return nil
}

// ValidateSignalType checks a signal type string
func ValidateSignalType(signalType string) error {
	if err := ValidateString(signalType, "type", 1, MaxSignalTypeLength, true); err != nil {
		return err
	}
	if !SignalTypePattern.MatchString(signalType) {
		return fmt.Errorf("%w: signal type %q has invalid characters", ErrInvalid, signalType)
	}
	return nil
}

// ValidateDescription bounds free-text descriptions
func ValidateDescription(description, fieldName string, required bool) error {
	return ValidateString(strings.TrimSpace(description), fieldName, 0, MaxDescriptionLength, required)
}

// ValidateJSONDepth checks the nesting depth of a decoded JSON value
func ValidateJSONDepth(data any, maxDepth int) error {
	return checkDepth(data, 0, maxDepth)
}

func checkDepth(data any, currentDepth int, maxDepth int) error {
	if currentDepth > maxDepth {
		return fmt.Errorf("%w: nesting depth exceeds maximum %d", ErrInvalid, maxDepth)
	}

	switch v := data.(type) {
	case map[string]any:
		for _, value := range v {
			if err := checkDepth(value, currentDepth+1, maxDepth); err != nil {
				return err
			}
		}
	case []any:
		for _, value := range v {
			if err := checkDepth(value, currentDepth+1, maxDepth); err != nil {
				return err
			}
		}
	}
	return nil
}
