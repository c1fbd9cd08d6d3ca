package node

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Klingon-tech/novanet/internal/checkpoint"
)

// expandHome replaces a leading ~ with the user's home directory.
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}

// LoadCheckpoint reads a signed checkpoint file and raises the chain's
// reorg floor to it.
func (n *Node) LoadCheckpoint(path string) error {
	cp, err := checkpoint.Load(path)
	if err != nil {
		return err
	}
	if err := n.ch.AcceptCheckpoint(cp); err != nil {
		return fmt.Errorf("accept checkpoint %s: %w", path, err)
	}
	return nil
}
