// Package config loads shell configuration from environment variables.
//
// Every field has an envconfig tag and a default, so an empty environment
// yields the same values as Default().
package config
