// Package node wires configuration, storage, the block validator and the
// metrics exporter into a runnable process.
package node

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/Klingon-tech/novanet/config"
	"github.com/Klingon-tech/novanet/internal/chain"
	nlog "github.com/Klingon-tech/novanet/internal/log"
	"github.com/Klingon-tech/novanet/internal/metrics"
	"github.com/Klingon-tech/novanet/internal/storage"
	"github.com/Klingon-tech/novanet/pkg/block"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// Node is a validating node: a chain on persistent storage fed from block
// import files.
type Node struct {
	cfg      *config.Config
	params   *config.Params
	logger   zerolog.Logger
	db       storage.Store
	ch       *chain.Chain
	registry *prometheus.Registry

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a node from cfg. Invalid consensus parameters or a genesis
// block that does not reproduce the configured hash are fatal here, before
// any block is validated.
func New(cfg *config.Config) (*Node, error) {
	// ── 1. Init logger ──────────────────────────────────────────────
	logFile := cfg.Log.File
	if logFile == "" {
		logsDir := cfg.LogsDir()
		if err := os.MkdirAll(logsDir, 0755); err != nil {
			return nil, fmt.Errorf("creating logs dir: %w", err)
		}
		logFile = filepath.Join(logsDir, "novad.log")
	}
	if err := nlog.Init(cfg.Log.Level, cfg.Log.JSON, expandHome(logFile)); err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}
	logger := nlog.WithNetwork(string(cfg.Network)).With().Str("component", "node").Logger()

	// ── 2. Consensus parameters ─────────────────────────────────────
	params, err := cfg.LoadParams()
	if err != nil {
		return nil, fmt.Errorf("load params: %w", err)
	}
	if _, err := block.VerifyGenesis(params); err != nil {
		return nil, err
	}

	logger.Info().
		Str("network", string(cfg.Network)).
		Str("params", params.Name).
		Str("genesis", params.GenesisHash.String()).
		Msg("Starting Novanet validator")

	// ── 3. Open storage ─────────────────────────────────────────────
	dbPath := cfg.ChainDBPath()
	db, err := storage.Open(cfg.DB.Backend, dbPath)
	if err != nil {
		return nil, err
	}
	logger.Info().Str("backend", cfg.DB.Backend).Str("path", dbPath).Msg("Database opened")

	// ── 4. Chain ────────────────────────────────────────────────────
	registry := prometheus.NewRegistry()
	ch, err := chain.New(params, db, chain.Options{
		Workers:     cfg.Workers,
		Scripts:     chain.StandardScripts{},
		CacheBlocks: cfg.DB.CacheBlocks,
		Metrics:     metrics.New(registry),
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("open chain: %w", err)
	}

	if snap := ch.Snapshot(); !snap.Initialized() {
		if err := ch.InitFromGenesis(); err != nil {
			db.Close()
			return nil, fmt.Errorf("init genesis: %w", err)
		}
		logger.Info().Msg("Chain initialized from genesis")
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Node{
		cfg:      cfg,
		params:   params,
		logger:   logger,
		db:       db,
		ch:       ch,
		registry: registry,
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Start processes the configured import and checkpoint files and starts
// the metrics exporter.
func (n *Node) Start() error {
	if n.cfg.ImportFile != "" {
		stats, err := n.ImportFile(n.ctx, expandHome(n.cfg.ImportFile))
		if err != nil {
			return fmt.Errorf("import blocks: %w", err)
		}
		n.logger.Info().
			Int("accepted", stats.Accepted).
			Int("sidechain", stats.SideChain).
			Int("rejected", stats.Rejected).
			Msg("Block import finished")
	}

	if n.cfg.CheckpointFile != "" {
		if err := n.LoadCheckpoint(expandHome(n.cfg.CheckpointFile)); err != nil {
			return err
		}
	}

	if n.cfg.Metrics.Enabled {
		n.wg.Add(1)
		go func() {
			defer n.wg.Done()
			if err := metrics.Serve(n.ctx, n.cfg.Metrics.Addr, n.registry); err != nil {
				n.logger.Error().Err(err).Msg("Metrics server failed")
			}
		}()
	}

	s := n.ch.Snapshot()
	n.logger.Info().
		Uint32("height", s.Height).
		Str("tip", s.TipHash.String()).
		Uint64("supply", s.Supply).
		Uint32("checkpoint", s.CheckpointHeight).
		Msg("Node started successfully")
	return nil
}

// Stop performs graceful shutdown in reverse order.
func (n *Node) Stop() {
	n.cancel()
	n.wg.Wait()

	if n.db != nil {
		if err := n.db.Close(); err != nil {
			n.logger.Error().Err(err).Msg("Closing database")
		}
	}

	n.logger.Info().Msg("Goodbye!")
}

// Chain returns the node's block validator.
func (n *Node) Chain() *chain.Chain {
	return n.ch
}

// Height returns the current chain height.
func (n *Node) Height() uint32 {
	return n.ch.Height()
}

// Gatherer exposes the node's metrics registry.
func (n *Node) Gatherer() prometheus.Gatherer {
	return n.registry
}
