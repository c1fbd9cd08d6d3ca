package utxo

import (
	"errors"
	"fmt"
	"slices"

	"github.com/Klingon-tech/novanet/internal/storage"
	"github.com/Klingon-tech/novanet/pkg/tx"
	"github.com/Klingon-tech/novanet/pkg/types"
)

// View is an in-memory overlay over a Set. Blocks are connected and
// disconnected against a View; nothing reaches the base set until the
// View is flushed, so a rejected block leaves storage untouched.
//
// A View is not safe for concurrent use.
type View struct {
	base Set
	// entries holds outputs added in the view, or nil for outputs spent in
	// it.
	entries map[types.Outpoint]*UTXO
	// spent remembers what a spent base output looked like, so flushing
	// can clean up its index entries.
	spent map[types.Outpoint]*UTXO
}

// NewView creates an empty overlay over base.
func NewView(base Set) *View {
	return &View{
		base:    base,
		entries: make(map[types.Outpoint]*UTXO),
		spent:   make(map[types.Outpoint]*UTXO),
	}
}

// Get returns the output at op as seen through the overlay.
func (v *View) Get(op types.Outpoint) (*UTXO, error) {
	if u, ok := v.entries[op]; ok {
		if u == nil {
			return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		return u, nil
	}
	return v.base.Get(op)
}

// GetUTXO implements tx.UTXOProvider.
func (v *View) GetUTXO(op types.Outpoint) (*tx.PrevOutput, error) {
	u, err := v.Get(op)
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("%w: %v", tx.ErrInputNotFound, err)
	}
	if err != nil {
		return nil, err
	}
	return u.PrevOutput(), nil
}

// Add makes u spendable in the view.
func (v *View) Add(u *UTXO) {
	v.entries[u.Outpoint] = u
}

// Spend removes the output at op and returns it. Spending an unknown or
// already spent output returns ErrNotFound.
func (v *View) Spend(op types.Outpoint) (*UTXO, error) {
	u, err := v.Get(op)
	if err != nil {
		return nil, err
	}
	if _, inView := v.entries[op]; !inView {
		v.spent[op] = u
	}
	v.entries[op] = nil
	return u, nil
}

// Len returns the number of overlay entries, spent ones included.
func (v *View) Len() int {
	return len(v.entries)
}

// Flush writes the overlay into batch through store's key layout. The view
// is left unchanged; the caller commits the batch.
func (v *View) Flush(store *Store, batch storage.Batch) error {
	ops := make([]types.Outpoint, 0, len(v.entries))
	for op := range v.entries {
		ops = append(ops, op)
	}
	slices.SortFunc(ops, compareOutpoints)

	for _, op := range ops {
		u := v.entries[op]
		if u != nil {
			if err := store.put(batch, u); err != nil {
				return err
			}
			continue
		}
		old, ok := v.spent[op]
		if !ok {
			// Created and spent inside the view: nothing was stored.
			continue
		}
		if err := store.delete(batch, old); err != nil {
			return err
		}
	}
	return nil
}

func compareOutpoints(a, b types.Outpoint) int {
	if c := slices.Compare(a.TxID[:], b.TxID[:]); c != 0 {
		return c
	}
	switch {
	case a.Index < b.Index:
		return -1
	case a.Index > b.Index:
		return 1
	}
	return 0
}
