package node

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/Klingon-tech/novanet/config"
	"github.com/Klingon-tech/novanet/internal/chain"
	nlog "github.com/Klingon-tech/novanet/internal/log"
	"github.com/Klingon-tech/novanet/pkg/block"
)

// importBatch is the number of blocks sanity-checked in parallel before
// they are accepted in file order.
const importBatch = 256

// Import file errors.
var (
	ErrBadMagic      = errors.New("record magic does not match network")
	ErrRecordTooLong = errors.New("record exceeds max block size")
)

// ImportStats counts the verdicts of an import.
type ImportStats struct {
	Accepted  int
	SideChain int
	Rejected  int
}

func (s *ImportStats) add(v chain.Verdict) {
	switch v.Status {
	case chain.StatusAccepted:
		s.Accepted++
	case chain.StatusSideChain:
		s.SideChain++
	default:
		s.Rejected++
	}
}

// WriteBlock appends one import record: the network magic, the block
// length as a little-endian uint32, then the wire-encoded block.
func WriteBlock(w io.Writer, magic config.Magic, blk *block.Block) error {
	data := blk.Serialize()
	var hdr [8]byte
	copy(hdr[:4], magic[:])
	binary.LittleEndian.PutUint32(hdr[4:], uint32(len(data)))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	_, err := w.Write(data)
	return err
}

// ReadBlocks decodes import records from r until EOF, calling fn for each
// block. A truncated trailing record is an error.
func ReadBlocks(r io.Reader, magic config.Magic, maxSize uint32, fn func(*block.Block) error) error {
	br := bufio.NewReader(r)
	for i := 0; ; i++ {
		var hdr [8]byte
		if _, err := io.ReadFull(br, hdr[:]); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("record %d header: %w", i, err)
		}
		var got config.Magic
		copy(got[:], hdr[:4])
		if got != magic {
			return fmt.Errorf("record %d: %w: %x", i, ErrBadMagic, hdr[:4])
		}
		size := binary.LittleEndian.Uint32(hdr[4:])
		if size > maxSize {
			return fmt.Errorf("record %d: %w: %d > %d", i, ErrRecordTooLong, size, maxSize)
		}
		data := make([]byte, size)
		if _, err := io.ReadFull(br, data); err != nil {
			return fmt.Errorf("record %d body: %w", i, err)
		}
		blk, err := block.Deserialize(data)
		if err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
		if err := fn(blk); err != nil {
			return err
		}
	}
}

// Import feeds the blocks in r to the chain in batches. Rule violations are
// counted, not returned; only read errors and cancellation stop an import.
func (n *Node) Import(ctx context.Context, r io.Reader) (ImportStats, error) {
	var stats ImportStats
	batch := make([]*block.Block, 0, importBatch)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		verdicts, err := n.ch.ProcessBlocks(ctx, batch)
		for _, v := range verdicts {
			stats.add(v)
		}
		batch = batch[:0]
		return err
	}

	err := ReadBlocks(r, n.params.MagicBytes, n.params.MaxBlockSize, func(blk *block.Block) error {
		batch = append(batch, blk)
		if len(batch) == importBatch {
			return flush()
		}
		return nil
	})
	if err != nil {
		return stats, err
	}
	return stats, flush()
}

// ImportFile runs Import on the file at path.
func (n *Node) ImportFile(ctx context.Context, path string) (ImportStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return ImportStats{}, fmt.Errorf("open import file: %w", err)
	}
	defer f.Close()

	n.logger.Info().Str("path", path).Msg("Importing blocks")
	defer nlog.Benchmark("import")()
	return n.Import(ctx, f)
}
