// Package domain provides type-safe identifiers shared across registry modules.
package domain

import (
	"strings"
	"unicode"

	dErrors "vcregistry/pkg/domain-errors"
)

// MaxCallerIDLength bounds caller identities taken from tokens.
const MaxCallerIDLength = 256

// CallerID is the stable identity of the party invoking a registry operation.
// It is whatever the authentication layer vouches for (a token subject), kept
// verbatim so it can be compared for issuer checks.
type CallerID string

// ParseCallerID validates a caller identity at a trust boundary.
func ParseCallerID(s string) (CallerID, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "caller ID cannot be empty")
	}
	if len(s) > MaxCallerIDLength {
		return "", dErrors.New(dErrors.CodeInvalidInput, "caller ID is too long")
	}
	if strings.IndexFunc(s, func(r rune) bool { return unicode.IsSpace(r) || unicode.IsControl(r) }) >= 0 {
		return "", dErrors.New(dErrors.CodeInvalidInput, "caller ID contains invalid characters")
	}
	return CallerID(s), nil
}

func (id CallerID) String() string { return string(id) }

func (id CallerID) IsNil() bool { return id == "" }
