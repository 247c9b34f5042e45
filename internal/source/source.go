// Package source fetches raw transfer edges for an address from a ledger.
package source

import (
	"context"

	"github.com/persistorai/screener/internal/models"
)

// Source returns the transfers touching an address. Implementations must be
// safe for concurrent use and safe to retry.
//
// Errors wrap models.ErrAddressNotFound for a dead end, models.ErrRateLimited
// or models.ErrNetwork for transient failures. An address with no transfers
// may also return an empty slice and a nil error.
type Source interface {
	Fetch(ctx context.Context, addr models.Address) ([]models.Edge, error)
}

// Canonicalizer is implemented by sources whose ledger treats several
// spellings of an address as one account.
type Canonicalizer interface {
	Canonical(addr models.Address) models.Address
}

// Canonical returns addr in src's canonical spelling. Sources that do not
// implement Canonicalizer treat addresses as opaque and get addr unchanged.
func Canonical(src Source, addr models.Address) models.Address {
	if c, ok := src.(Canonicalizer); ok {
		return c.Canonical(addr)
	}

	return addr
}

// ZeroAddress is the mint/burn counterparty excluded from every result.
const ZeroAddress models.Address = "0x0000000000000000000000000000000000000000"

// Attribute keys attached to nodes after a fetch.
const (
	AttrTransactionCount     = "transaction_count"
	AttrFromTransactionCount = "from_transaction_count"
	AttrToTransactionCount   = "to_transaction_count"
	AttrHasABI               = "has_abi"
)

// Summarize counts addr's transfers in edges, split by direction.
func Summarize(addr models.Address, edges []models.Edge) map[string]any {
	var from, to int

	for _, e := range edges {
		if e.From == addr {
			from++
		}
		if e.To == addr {
			to++
		}
	}

	return map[string]any{
		AttrTransactionCount:     len(edges),
		AttrFromTransactionCount: from,
		AttrToTransactionCount:   to,
	}
}

func dropZero(edges []models.Edge) []models.Edge {
	out := edges[:0]

	for _, e := range edges {
		if e.From == ZeroAddress || e.To == ZeroAddress {
			continue
		}

		out = append(out, e)
	}

	return out
}
