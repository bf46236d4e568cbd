// Package utils holds input validation and content hashing shared by the
// API, the registry and the plugin layer.
package utils
