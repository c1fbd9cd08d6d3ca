// Package metrics exposes chain validation metrics for Prometheus.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Klingon-tech/novanet/internal/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "novanet"

// Metrics holds the chain's collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	verdicts        *prometheus.CounterVec
	reorgs          prometheus.Counter
	reorgDepth      prometheus.Histogram
	tipHeight       prometheus.Gauge
	moneySupply     prometheus.Gauge
	checkpointFloor prometheus.Gauge
	blockDuration   prometheus.Histogram
}

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		verdicts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "block_verdicts_total",
			Help:      "Blocks processed, by status and rejection reason",
		}, []string{"status", "reason"}),
		reorgs: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "reorgs_total",
			Help:      "Chain reorganizations performed",
		}),
		reorgDepth: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "reorg_depth",
			Help:      "Blocks disconnected per reorganization",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),
		tipHeight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "tip_height",
			Help:      "Height of the active chain tip",
		}),
		moneySupply: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "money_supply",
			Help:      "Cumulative money supply at the tip, in base units",
		}),
		checkpointFloor: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "checkpoint_floor_height",
			Help:      "Height of the latest accepted checkpoint",
		}),
		blockDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "block_process_seconds",
			Help:      "Time spent validating and connecting a block",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

// ObserveVerdict counts a processed block. reason is empty for accepted
// blocks.
func (m *Metrics) ObserveVerdict(status, reason string, took time.Duration) {
	if m == nil {
		return
	}
	m.verdicts.WithLabelValues(status, reason).Inc()
	m.blockDuration.Observe(took.Seconds())
}

// ObserveReorg records a reorganization of the given depth.
func (m *Metrics) ObserveReorg(depth int) {
	if m == nil {
		return
	}
	m.reorgs.Inc()
	m.reorgDepth.Observe(float64(depth))
}

// SetTip publishes the tip height and supply.
func (m *Metrics) SetTip(height uint32, supply uint64) {
	if m == nil {
		return
	}
	m.tipHeight.Set(float64(height))
	m.moneySupply.Set(float64(supply))
}

// SetCheckpointFloor publishes the checkpoint floor height.
func (m *Metrics) SetCheckpointFloor(height uint32) {
	if m == nil {
		return
	}
	m.checkpointFloor.Set(float64(height))
}

// Serve exposes the default gatherer on addr at /metrics until ctx is
// cancelled.
func Serve(ctx context.Context, addr string, gatherer prometheus.Gatherer) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Metrics.Info().Str("addr", addr).Msg("Serving metrics")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
