package utxo

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Klingon-tech/novanet/internal/storage"
	"github.com/Klingon-tech/novanet/pkg/crypto"
	"github.com/Klingon-tech/novanet/pkg/script"
	"github.com/Klingon-tech/novanet/pkg/types"
)

// Key prefixes for the UTXO store.
var (
	prefixUTXO = []byte("u/") // u/<txid><index> -> UTXO JSON
	prefixAddr = []byte("a/") // a/<hash160><txid><index> -> empty (index)
)

// Store implements Set backed by a storage.DB. Writes normally go through
// a View flushed into a batch; Put and Delete write directly.
type Store struct {
	db storage.DB
}

// NewStore creates a new UTXO store backed by the given database.
func NewStore(db storage.DB) *Store {
	return &Store{db: db}
}

// utxoKey builds a storage key for an outpoint: "u/" + txid(32) + index(4).
func utxoKey(op types.Outpoint) []byte {
	key := make([]byte, len(prefixUTXO)+types.HashSize+4)
	copy(key, prefixUTXO)
	copy(key[len(prefixUTXO):], op.TxID[:])
	binary.BigEndian.PutUint32(key[len(prefixUTXO)+types.HashSize:], op.Index)
	return key
}

// addrKey builds an address index key: "a/" + hash160(20) + txid(32) + index(4).
func addrKey(addr [20]byte, op types.Outpoint) []byte {
	key := make([]byte, len(prefixAddr)+len(addr)+types.HashSize+4)
	copy(key, prefixAddr)
	copy(key[len(prefixAddr):], addr[:])
	off := len(prefixAddr) + len(addr)
	copy(key[off:], op.TxID[:])
	binary.BigEndian.PutUint32(key[off+types.HashSize:], op.Index)
	return key
}

// scriptAddress returns the key hash a script pays to. Pay-to-pubkey
// outputs are indexed under the hash of their key, so one lookup finds
// both forms.
func scriptAddress(s []byte) ([20]byte, bool) {
	if h, ok := script.ExtractPubKeyHash(s); ok {
		return h, true
	}
	if pk, ok := script.ExtractPubKey(s); ok {
		return crypto.Hash160(pk), true
	}
	return [20]byte{}, false
}

// Get retrieves a UTXO by its outpoint.
func (s *Store) Get(outpoint types.Outpoint) (*UTXO, error) {
	data, err := s.db.Get(utxoKey(outpoint))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", outpoint, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("utxo get: %w", err)
	}
	var u UTXO
	if err := json.Unmarshal(data, &u); err != nil {
		return nil, fmt.Errorf("utxo unmarshal: %w", err)
	}
	return &u, nil
}

// Has checks if a UTXO exists for the given outpoint.
func (s *Store) Has(outpoint types.Outpoint) (bool, error) {
	return s.db.Has(utxoKey(outpoint))
}

// Put stores a UTXO and updates the address index.
func (s *Store) Put(u *UTXO) error {
	return s.put(s.db, u)
}

// Delete removes a UTXO and its address index entry.
func (s *Store) Delete(outpoint types.Outpoint) error {
	u, err := s.Get(outpoint)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return s.delete(s.db, u)
}

// writer is the subset of storage.DB and storage.Batch used for writes.
type writer interface {
	Put(key, value []byte) error
	Delete(key []byte) error
}

func (s *Store) put(w writer, u *UTXO) error {
	data, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("utxo marshal: %w", err)
	}
	if err := w.Put(utxoKey(u.Outpoint), data); err != nil {
		return fmt.Errorf("utxo put: %w", err)
	}
	if addr, ok := scriptAddress(u.ScriptPubKey); ok {
		if err := w.Put(addrKey(addr, u.Outpoint), []byte{}); err != nil {
			return fmt.Errorf("utxo index put: %w", err)
		}
	}
	return nil
}

func (s *Store) delete(w writer, u *UTXO) error {
	if addr, ok := scriptAddress(u.ScriptPubKey); ok {
		if err := w.Delete(addrKey(addr, u.Outpoint)); err != nil {
			return fmt.Errorf("utxo index delete: %w", err)
		}
	}
	if err := w.Delete(utxoKey(u.Outpoint)); err != nil {
		return fmt.Errorf("utxo delete: %w", err)
	}
	return nil
}

// ForEach iterates over all UTXOs in the store in outpoint key order.
func (s *Store) ForEach(fn func(*UTXO) error) error {
	return s.db.ForEach(prefixUTXO, func(_, value []byte) error {
		var u UTXO
		if err := json.Unmarshal(value, &u); err != nil {
			return fmt.Errorf("utxo unmarshal: %w", err)
		}
		return fn(&u)
	})
}

// GetByAddress returns all UTXOs paying to the given key hash, whether by
// pay-to-pubkey-hash or pay-to-pubkey script.
func (s *Store) GetByAddress(addr [20]byte) ([]*UTXO, error) {
	// Build the prefix: "a/" + hash160(20).
	prefix := make([]byte, len(prefixAddr)+len(addr))
	copy(prefix, prefixAddr)
	copy(prefix[len(prefixAddr):], addr[:])

	var utxos []*UTXO
	err := s.db.ForEach(prefix, func(key, _ []byte) error {
		// Key layout: "a/" + hash160(20) + txid(32) + index(4).
		off := len(prefix)
		if len(key) < off+types.HashSize+4 {
			return nil // Malformed key, skip.
		}
		var op types.Outpoint
		copy(op.TxID[:], key[off:off+types.HashSize])
		op.Index = binary.BigEndian.Uint32(key[off+types.HashSize:])

		u, err := s.Get(op)
		if err != nil {
			return nil // UTXO may have been spent, skip.
		}
		utxos = append(utxos, u)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan address index: %w", err)
	}
	return utxos, nil
}
