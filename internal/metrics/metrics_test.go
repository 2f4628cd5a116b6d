package metrics_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"bookpub/internal/logging"
	"bookpub/internal/metrics"
	"bookpub/internal/testsupport"
)

func TestRecorderCountsItemsAndStages(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	rec := metrics.NewRecorder(cfg, logging.NewNop())

	rec.BatchStarted()
	rec.ItemFinished("completed", "")
	rec.ItemFinished("completed", "")
	rec.ItemFinished("failed", "mint_failed")
	rec.ObserveStage("minting", 3*time.Second, nil)
	rec.ObserveStage("minting", time.Second, errors.New("boom"))

	if got := testutil.CollectAndCount(rec.Registry(), "bookpub_items_finished_total"); got != 2 {
		t.Fatalf("expected 2 item series, got %d", got)
	}
	if got := testutil.CollectAndCount(rec.Registry(), "bookpub_stage_duration_seconds"); got != 2 {
		t.Fatalf("expected 2 stage series, got %d", got)
	}
	if got := testutil.CollectAndCount(rec.Registry(), "bookpub_batches_total"); got != 1 {
		t.Fatalf("expected batches counter, got %d series", got)
	}
}

func TestNilRecorderIsSafe(t *testing.T) {
	var rec *metrics.Recorder
	rec.BatchStarted()
	rec.ItemFinished("failed", "x")
	rec.ObserveStage("listing", time.Second, nil)
	if err := rec.Push(context.Background()); err != nil {
		t.Fatalf("nil push: %v", err)
	}
}

func TestPushDisabledWithoutGateway(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Metrics.PushgatewayURL = ""
	rec := metrics.NewRecorder(cfg, logging.NewNop())
	if err := rec.Push(context.Background()); err != nil {
		t.Fatalf("expected no-op push, got %v", err)
	}
}

func TestPushSendsToGateway(t *testing.T) {
	var hits atomic.Int32
	var path atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		path.Store(r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := testsupport.NewConfig(t)
	cfg.Metrics.PushgatewayURL = server.URL
	cfg.Metrics.JobName = "bookpub_test"
	rec := metrics.NewRecorder(cfg, logging.NewNop())
	rec.ItemFinished("completed", "")

	if err := rec.Push(context.Background()); err != nil {
		t.Fatalf("push: %v", err)
	}
	if hits.Load() != 1 {
		t.Fatalf("expected one push request, got %d", hits.Load())
	}
	if p, _ := path.Load().(string); !strings.HasPrefix(p, "/metrics/job/bookpub_test") {
		t.Fatalf("unexpected push path %q", p)
	}
}
