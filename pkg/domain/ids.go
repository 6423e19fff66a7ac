// Package domain holds the typed identifiers shared by every layer.
//
// Construct values through the Parse functions at trust boundaries; direct
// conversion bypasses validation and is reserved for stores reading rows they
// wrote themselves.
package domain

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	dErrors "idregistry/pkg/domain-errors"
)

// maxPrincipalLen bounds principal strings accepted from callers.
const maxPrincipalLen = 128

// Principal is an authenticated caller identity, typically an account address.
// Invariant: non-empty, printable, no whitespace, at most maxPrincipalLen bytes.
type Principal string

func (p Principal) String() string { return string(p) }

// IsZero reports whether p is the empty principal.
func (p Principal) IsZero() bool { return p == "" }

// ParsePrincipal validates a principal received from outside the process.
func ParsePrincipal(s string) (Principal, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeValidation, "principal is required")
	}
	if len(s) > maxPrincipalLen {
		return "", dErrors.New(dErrors.CodeValidation, "principal is too long")
	}
	if !utf8.ValidString(s) {
		return "", dErrors.New(dErrors.CodeValidation, "principal must be valid UTF-8")
	}
	for _, r := range s {
		if unicode.IsSpace(r) || !unicode.IsPrint(r) {
			return "", dErrors.New(dErrors.CodeValidation, "principal contains invalid characters")
		}
	}
	return Principal(s), nil
}

// IdentityID is the sequential, never reused identifier of an identity record.
// Invariant: strictly positive.
type IdentityID uint64

func (id IdentityID) String() string { return strconv.FormatUint(uint64(id), 10) }

// IsZero reports whether id is unset.
func (id IdentityID) IsZero() bool { return id == 0 }

// ParseIdentityID parses a decimal identity id.
func ParseIdentityID(s string) (IdentityID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, dErrors.New(dErrors.CodeValidation, "identity id is required")
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, dErrors.New(dErrors.CodeValidation, "identity id must be a positive integer")
	}
	if n == 0 {
		return 0, dErrors.New(dErrors.CodeValidation, "identity id must be a positive integer")
	}
	return IdentityID(n), nil
}
