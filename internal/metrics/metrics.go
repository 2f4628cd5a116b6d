package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"

	"bookpub/internal/config"
	"bookpub/internal/logging"
)

const namespace = "bookpub"

// Recorder collects pipeline metrics in a private registry and pushes them to
// a Prometheus pushgateway at the end of a batch. A nil *Recorder is valid and
// records nothing.
type Recorder struct {
	registry *prometheus.Registry
	items    *prometheus.CounterVec
	stages   *prometheus.HistogramVec
	batches  prometheus.Counter
	pusher   *push.Pusher
	logger   *slog.Logger
}

// NewRecorder builds a Recorder. Pushing is disabled when
// metrics.pushgateway_url is empty.
func NewRecorder(cfg *config.Config, logger *slog.Logger) *Recorder {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	r := &Recorder{
		registry: registry,
		items: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "items_finished_total",
				Help:      "Items that reached a terminal status, partitioned by status and failure kind.",
			},
			[]string{"status", "kind"},
		),
		stages: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "stage_duration_seconds",
				Help:      "Wall time spent in each pipeline stage.",
				Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
			},
			[]string{"stage", "outcome"},
		),
		batches: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_total",
			Help:      "Batch runs started.",
		}),
		logger: logging.NewComponentLogger(logger, "metrics"),
	}

	if cfg != nil {
		if url := strings.TrimSpace(cfg.Metrics.PushgatewayURL); url != "" {
			job := cfg.Metrics.JobName
			if job == "" {
				job = namespace
			}
			r.pusher = push.New(url, job).Gatherer(registry).Grouping("instance", instanceID())
		}
	}
	return r
}

// Registry exposes the underlying registry for inspection.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// BatchStarted counts a batch run.
func (r *Recorder) BatchStarted() {
	if r == nil {
		return
	}
	r.batches.Inc()
}

// ItemFinished counts an item reaching status. kind is the failure class
// (services.Kind) and is empty on success.
func (r *Recorder) ItemFinished(status, kind string) {
	if r == nil {
		return
	}
	if kind == "" {
		kind = "none"
	}
	r.items.WithLabelValues(status, kind).Inc()
}

// ObserveStage records how long stage took and whether it failed.
func (r *Recorder) ObserveStage(stage string, elapsed time.Duration, err error) {
	if r == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	r.stages.WithLabelValues(stage, outcome).Observe(elapsed.Seconds())
}

// Push sends the registry to the pushgateway. It is a no-op when pushing is
// disabled.
func (r *Recorder) Push(ctx context.Context) error {
	if r == nil || r.pusher == nil {
		return nil
	}
	if err := r.pusher.PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	r.logger.Debug("metrics pushed")
	return nil
}

func instanceID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "unknown"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}
