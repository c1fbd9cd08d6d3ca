package consensus

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/Klingon-tech/novanet/internal/consensus/ruleerrors"
	"github.com/Klingon-tech/novanet/pkg/block"
	"github.com/Klingon-tech/novanet/pkg/crypto"
	"github.com/Klingon-tech/novanet/pkg/target"
	"github.com/Klingon-tech/novanet/pkg/types"
	pkgerrors "github.com/pkg/errors"
)

// ErrNonceExhausted is returned by Mine when no 32-bit nonce satisfies
// the header's target.
var ErrNonceExhausted = errors.New("nonce space exhausted")

// CheckProofOfWork checks that bits decodes to a target in (0, limit] and
// that hash, read as a little-endian integer, does not exceed it.
func CheckProofOfWork(hash types.Hash, bits uint32, limit target.Target) error {
	t, err := target.FromCompact(bits)
	if err != nil {
		return pkgerrors.Wrapf(ruleerrors.ErrBadProofOfWork, "bits %08x: %v", bits, err)
	}
	if t.IsZero() || t.Cmp(limit) > 0 {
		return pkgerrors.Wrapf(ruleerrors.ErrBadProofOfWork, "target %s outside (0, %s]", t, limit)
	}
	if target.FromHash(hash).Cmp(t) > 0 {
		return pkgerrors.Wrapf(ruleerrors.ErrBadProofOfWork, "hash %s above target %s", hash, t)
	}
	return nil
}

// Miner searches the nonce space of a header. It is a tool for tests and
// block producers; validation never mines.
type Miner struct {
	// Threads controls the number of parallel mining goroutines.
	// 0 or 1 = single-threaded. Each goroutine searches a strided
	// partition of the nonce space.
	Threads int
}

// Mine iterates the header nonce until the header hash meets the target in
// its bits. When ctx is cancelled, mining stops and ctx.Err() is returned.
func (m *Miner) Mine(ctx context.Context, h *block.Header) error {
	if h == nil {
		return fmt.Errorf("nil header")
	}
	t, err := h.Target()
	if err != nil {
		return fmt.Errorf("header bits: %w", err)
	}
	if t.IsZero() {
		return fmt.Errorf("header target is zero")
	}

	if m.Threads <= 1 {
		return mineSingle(ctx, h, t)
	}
	return mineParallel(ctx, h, t, m.Threads)
}

// headerPrefix returns the serialized header without the trailing nonce,
// so the hot loop only rewrites four bytes.
func headerPrefix(h *block.Header) []byte {
	buf := h.Serialize()
	return buf[:block.HeaderSize-4]
}

func mineSingle(ctx context.Context, h *block.Header, t target.Target) error {
	buf := make([]byte, block.HeaderSize)
	copy(buf, headerPrefix(h))

	for nonce := uint32(0); ; nonce++ {
		// Check cancellation every 65536 iterations.
		if nonce&0xFFFF == 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
		}

		binary.LittleEndian.PutUint32(buf[block.HeaderSize-4:], nonce)
		if target.FromHash(crypto.Hash(buf)).Cmp(t) <= 0 {
			h.Nonce = nonce
			return nil
		}
		if nonce == ^uint32(0) {
			return ErrNonceExhausted
		}
	}
}

// mineParallel mines with multiple goroutines, goroutine i starting at
// nonce i and stepping by threads.
func mineParallel(ctx context.Context, h *block.Header, t target.Target, threads int) error {
	prefix := headerPrefix(h)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	found := make(chan uint32, 1)

	var wg sync.WaitGroup
	for i := 0; i < threads; i++ {
		wg.Add(1)
		start := uint32(i)
		stride := uint32(threads)
		go func() {
			defer wg.Done()
			buf := make([]byte, block.HeaderSize)
			copy(buf, prefix)

			for nonce, n := start, 0; ; nonce, n = nonce+stride, n+1 {
				if n&0xFFFF == 0 && n > 0 {
					select {
					case <-ctx.Done():
						return
					default:
					}
				}

				binary.LittleEndian.PutUint32(buf[block.HeaderSize-4:], nonce)
				if target.FromHash(crypto.Hash(buf)).Cmp(t) <= 0 {
					select {
					case found <- nonce:
					default:
					}
					cancel()
					return
				}

				// Would wrap around past the largest nonce.
				if nonce > ^uint32(0)-stride {
					return
				}
			}
		}()
	}

	// Wait in background so goroutines are cleaned up.
	go func() {
		wg.Wait()
		close(found)
	}()

	select {
	case nonce, ok := <-found:
		if !ok {
			return ErrNonceExhausted
		}
		h.Nonce = nonce
		return nil
	case <-ctx.Done():
		// A goroutine may have found a nonce and cancelled.
		select {
		case nonce, ok := <-found:
			if ok {
				h.Nonce = nonce
				return nil
			}
		default:
		}
		return ctx.Err()
	}
}
