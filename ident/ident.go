// Package ident validates and generates the fixed-length hexadecimal
// identifiers used to address postings, users and application records.
package ident

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Length is the number of hex characters in a well-formed identifier.
const Length = 32

// ErrMalformed signals an identifier that is empty, the wrong length or not hex.
var ErrMalformed = errors.New("ident: malformed identifier")

// Valid reports whether s is a syntactically valid identifier.
func Valid(s string) bool {
	if len(s) != Length {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		case c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}

// Parse returns the canonical lowercase form of s.
func Parse(s string) (string, error) {
	if !Valid(s) {
		return "", fmt.Errorf("%w: %q", ErrMalformed, s)
	}
	return strings.ToLower(s), nil
}

// New returns a fresh time-ordered identifier.
func New() string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return hex.EncodeToString(id[:])
}
