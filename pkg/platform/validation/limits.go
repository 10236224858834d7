// Package validation holds the HTTP size limits and the struct-tag validator
// used for configuration.
package validation

// HTTP body limits
const (
	// MaxBodySize is the default request body cap (64 KB).
	MaxBodySize = 64 * 1024
)
