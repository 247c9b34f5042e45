// Package allowlist loads the set of known contract addresses that are never
// expanded during a search.
package allowlist

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/persistorai/screener/internal/models"
)

// Set is a collection of normalized addresses. The zero value is an empty set.
type Set map[models.Address]struct{}

// New builds a Set from the given addresses.
func New(addrs ...string) Set {
	s := make(Set, len(addrs))
	for _, a := range addrs {
		s.Add(a)
	}

	return s
}

// Add normalizes a and inserts it. Blank values are ignored.
func (s Set) Add(a string) {
	if n := models.NormalizeAddress(a); n != "" {
		s[n] = struct{}{}
	}
}

// Contains reports whether a is in the set. A nil Set contains nothing.
func (s Set) Contains(a models.Address) bool {
	_, ok := s[models.NormalizeAddress(string(a))]
	return ok
}

// Len returns the number of addresses in the set.
func (s Set) Len() int { return len(s) }

// Sorted returns the members in lexical order.
func (s Set) Sorted() []models.Address {
	out := make([]models.Address, 0, len(s))
	for a := range s {
		out = append(out, a)
	}
	slices.Sort(out)

	return out
}

// LoadCSV reads an allow-list file. See Parse for the accepted layout.
func LoadCSV(path string) (Set, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from operator config.
	if err != nil {
		return nil, fmt.Errorf("opening allow-list: %w", err)
	}
	defer f.Close() //nolint:errcheck // read-only file.

	s, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("reading allow-list %s: %w", path, err)
	}

	return s, nil
}

// Parse reads CSV rows from r. When the header row has an "address" column
// that column is used; otherwise every row's first column is an address.
func Parse(r io.Reader) (Set, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	s := make(Set)
	col := 0
	first := true

	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return s, nil
		}
		if err != nil {
			return nil, err
		}

		if first {
			first = false

			if i := slices.IndexFunc(rec, isAddressHeader); i >= 0 {
				col = i
				continue
			}
		}

		if col < len(rec) {
			s.Add(rec[col])
		}
	}
}

func isAddressHeader(field string) bool {
	return strings.EqualFold(strings.TrimSpace(field), "address")
}
