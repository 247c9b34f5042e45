// Package models defines the data types shared by the screening engine.
package models

import (
	"fmt"
	"strings"
	"unicode"
)

// maxAddressLen caps the length of an address identifier.
const maxAddressLen = 255

// Address identifies an account. The engine treats it as opaque.
type Address string

// String implements fmt.Stringer.
func (a Address) String() string { return string(a) }

// Validate rejects empty, oversized, or whitespace-bearing addresses.
func (a Address) Validate() error {
	if a == "" {
		return fmt.Errorf("%w: address is required", ErrInvalidInput)
	}

	if len(a) > maxAddressLen {
		return ErrFieldTooLong("address", maxAddressLen)
	}

	if strings.IndexFunc(string(a), func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsControl(r)
	}) >= 0 {
		return fmt.Errorf("%w: address %q contains whitespace or control characters", ErrInvalidInput, string(a))
	}

	return nil
}

// NormalizeAddress trims and lowercases a hex-style ledger address.
func NormalizeAddress(s string) Address {
	return Address(strings.ToLower(strings.TrimSpace(s)))
}

// NodeMeta is the per-address bookkeeping kept by the graph.
type NodeMeta struct {
	// Processed is set once the address's transfers were fetched and merged.
	Processed bool `json:"processed"`
	// Score is the last computed risk score in percent; nil means unset.
	Score *float64 `json:"score,omitempty"`
	// ErroredOut is set when fetching failed permanently.
	ErroredOut bool `json:"errored_out"`
	// Attributes holds per-address annotations when attribute retention is on.
	Attributes map[string]any `json:"attributes,omitempty"`
}

// HasScore reports whether a score was computed for this node.
func (m NodeMeta) HasScore() bool { return m.Score != nil }
