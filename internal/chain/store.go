package chain

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Klingon-tech/novanet/internal/checkpoint"
	"github.com/Klingon-tech/novanet/internal/storage"
	"github.com/Klingon-tech/novanet/pkg/block"
	"github.com/Klingon-tech/novanet/pkg/types"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Key prefixes and state keys for the block store. UTXO records share the
// database under their own prefixes (see package utxo), so one batch can
// commit a whole block.
var (
	prefixBlock   = []byte("b/") // b/<hash(32)> -> block wire bytes
	prefixNode    = []byte("i/") // i/<hash(32)> -> index record JSON
	prefixUndo    = []byte("d/") // d/<hash(32)> -> undo data JSON
	keyTipHash    = []byte("s/tip")
	keyCheckpoint = []byte("s/checkpoint")
)

// DefaultCacheBlocks is the number of decoded blocks kept in memory when
// no size is configured.
const DefaultCacheBlocks = 256

// writer is the subset of storage.DB and storage.Batch used for writes.
type writer interface {
	Put(key, value []byte) error
	Delete(key []byte) error
}

// nodeRecord is the persisted form of a blockNode. Work, counts and the
// stake modifier are derived again when the index is loaded.
type nodeRecord struct {
	Hash      types.Hash `json:"hash"`
	PrevHash  types.Hash `json:"prev_hash"`
	Height    uint32     `json:"height"`
	Timestamp uint32     `json:"timestamp"`
	Bits      uint32     `json:"bits"`
	Kind      block.Kind `json:"kind"`
	ProofHash types.Hash `json:"proof_hash"`
	Seq       uint64     `json:"seq"`
	Status    nodeStatus `json:"status"`
	Supply    uint64     `json:"supply"`
}

func recordOf(n *blockNode) nodeRecord {
	r := nodeRecord{
		Hash:      n.hash,
		Height:    n.height,
		Timestamp: n.timestamp,
		Bits:      n.bits,
		Kind:      n.kind,
		ProofHash: n.proofHash,
		Seq:       n.seq,
		Status:    n.status,
		Supply:    n.supply,
	}
	if n.parent != nil {
		r.PrevHash = n.parent.hash
	}
	return r
}

// BlockStore persists blocks, index records, undo data and chain metadata
// to a storage.DB, with an LRU of decoded blocks in front.
type BlockStore struct {
	db    storage.Store
	cache *lru.Cache[types.Hash, *block.Block]
}

// NewBlockStore creates a block store backed by db that caches up to
// cacheBlocks decoded blocks.
func NewBlockStore(db storage.Store, cacheBlocks int) (*BlockStore, error) {
	if cacheBlocks <= 0 {
		cacheBlocks = DefaultCacheBlocks
	}
	cache, err := lru.New[types.Hash, *block.Block](cacheBlocks)
	if err != nil {
		return nil, fmt.Errorf("block cache: %w", err)
	}
	return &BlockStore{db: db, cache: cache}, nil
}

func hashKey(prefix []byte, hash types.Hash) []byte {
	key := make([]byte, len(prefix)+types.HashSize)
	copy(key, prefix)
	copy(key[len(prefix):], hash[:])
	return key
}

// NewBatch starts an atomic write.
func (bs *BlockStore) NewBatch() storage.Batch {
	return bs.db.NewBatch()
}

// GetBlock retrieves a block by its hash.
func (bs *BlockStore) GetBlock(hash types.Hash) (*block.Block, error) {
	if blk, ok := bs.cache.Get(hash); ok {
		return blk, nil
	}
	data, err := bs.db.Get(hashKey(prefixBlock, hash))
	if err != nil {
		return nil, fmt.Errorf("block get %s: %w", hash, err)
	}
	blk, err := block.Deserialize(data)
	if err != nil {
		return nil, fmt.Errorf("block %s: %w", hash, err)
	}
	bs.cache.Add(hash, blk)
	return blk, nil
}

// HasBlock checks if a block exists by hash.
func (bs *BlockStore) HasBlock(hash types.Hash) (bool, error) {
	if bs.cache.Contains(hash) {
		return true, nil
	}
	return bs.db.Has(hashKey(prefixBlock, hash))
}

func (bs *BlockStore) putBlock(w writer, blk *block.Block) error {
	if err := w.Put(hashKey(prefixBlock, blk.Hash()), blk.Serialize()); err != nil {
		return fmt.Errorf("block put: %w", err)
	}
	return nil
}

func (bs *BlockStore) putNode(w writer, r nodeRecord) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("index marshal: %w", err)
	}
	if err := w.Put(hashKey(prefixNode, r.Hash), data); err != nil {
		return fmt.Errorf("index put: %w", err)
	}
	return nil
}

// loadNodes returns every persisted index record.
func (bs *BlockStore) loadNodes() ([]nodeRecord, error) {
	var records []nodeRecord
	err := bs.db.ForEach(prefixNode, func(_, value []byte) error {
		var r nodeRecord
		if err := json.Unmarshal(value, &r); err != nil {
			return fmt.Errorf("index unmarshal: %w", err)
		}
		records = append(records, r)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load block index: %w", err)
	}
	return records, nil
}

func (bs *BlockStore) putUndo(w writer, hash types.Hash, undo *UndoData) error {
	data, err := json.Marshal(undo)
	if err != nil {
		return fmt.Errorf("undo marshal: %w", err)
	}
	if err := w.Put(hashKey(prefixUndo, hash), data); err != nil {
		return fmt.Errorf("undo put: %w", err)
	}
	return nil
}

func (bs *BlockStore) deleteUndo(w writer, hash types.Hash) error {
	if err := w.Delete(hashKey(prefixUndo, hash)); err != nil {
		return fmt.Errorf("undo delete: %w", err)
	}
	return nil
}

// GetUndo retrieves the undo data of a connected block.
func (bs *BlockStore) GetUndo(hash types.Hash) (*UndoData, error) {
	data, err := bs.db.Get(hashKey(prefixUndo, hash))
	if err != nil {
		return nil, fmt.Errorf("undo get %s: %w", hash, err)
	}
	var undo UndoData
	if err := json.Unmarshal(data, &undo); err != nil {
		return nil, fmt.Errorf("undo unmarshal: %w", err)
	}
	return &undo, nil
}

func (bs *BlockStore) setTip(w writer, hash types.Hash) error {
	if err := w.Put(keyTipHash, hash[:]); err != nil {
		return fmt.Errorf("set tip: %w", err)
	}
	return nil
}

// GetTip returns the persisted tip hash, or a zero hash for an empty store.
func (bs *BlockStore) GetTip() (types.Hash, error) {
	data, err := bs.db.Get(keyTipHash)
	if errors.Is(err, storage.ErrNotFound) {
		return types.Hash{}, nil
	}
	if err != nil {
		return types.Hash{}, fmt.Errorf("get tip: %w", err)
	}
	if len(data) != types.HashSize {
		return types.Hash{}, fmt.Errorf("corrupt tip: got %d bytes, want %d", len(data), types.HashSize)
	}
	var hash types.Hash
	copy(hash[:], data)
	return hash, nil
}

func (bs *BlockStore) putCheckpoint(w writer, cp *checkpoint.Checkpoint) error {
	if err := w.Put(keyCheckpoint, cp.Serialize()); err != nil {
		return fmt.Errorf("put checkpoint: %w", err)
	}
	return nil
}

// GetCheckpoint returns the accepted checkpoint, or nil if there is none.
func (bs *BlockStore) GetCheckpoint() (*checkpoint.Checkpoint, error) {
	data, err := bs.db.Get(keyCheckpoint)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get checkpoint: %w", err)
	}
	return checkpoint.Deserialize(data)
}
