package models

import "time"

// Edge is a recorded transfer between two addresses.
type Edge struct {
	From       Address        `json:"from"`
	To         Address        `json:"to"`
	Attributes map[string]any `json:"attributes,omitempty"`
	Timestamp  *time.Time     `json:"timestamp,omitempty"`
}

// IsSelfLoop reports whether the edge starts and ends at the same address.
func (e Edge) IsSelfLoop() bool { return e.From == e.To }
