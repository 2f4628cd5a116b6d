package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofrs/flock"

	"bookpub/internal/logging"
	"bookpub/internal/metrics"
	"bookpub/internal/notifications"
	"bookpub/internal/queue"
	"bookpub/internal/services"
)

// ErrBatchLocked reports another driver holding the session store.
var ErrBatchLocked = errors.New("another bookpub batch is already running")

// BatchOptions tunes a batch run.
type BatchOptions struct {
	// ShouldContinue is checked before each item; returning false stops the
	// batch cleanly.
	ShouldContinue func() bool
	// Delay is slept after each processed item except the last.
	Delay time.Duration
	// OnItem observes every processed item.
	OnItem func(item *queue.Item, ok bool)
	// Sequential uploads the cover and ebook one after the other.
	Sequential bool
}

// BatchResult counts items by outcome. Items already completed before the
// run count as completed.
type BatchResult struct {
	Completed int
	Failed    int
}

// Batch drives a session's items through an Orchestrator one at a time.
type Batch struct {
	store        *queue.Store
	orchestrator *Orchestrator
	lock         *flock.Flock
	lockPath     string
	notifier     notifications.Service
	metrics      *metrics.Recorder
	logger       *slog.Logger
}

// NewBatch constructs a Batch guarded by the lock file at lockPath.
func NewBatch(store *queue.Store, orchestrator *Orchestrator, lockPath string, notifier notifications.Service, recorder *metrics.Recorder, logger *slog.Logger) *Batch {
	return &Batch{
		store:        store,
		orchestrator: orchestrator,
		lock:         flock.New(lockPath),
		lockPath:     lockPath,
		notifier:     notifier,
		metrics:      recorder,
		logger:       logging.NewComponentLogger(logger, "batch"),
	}
}

// Run processes items in order. It returns early only when the wallet is
// missing, the context is canceled, or the store cannot record progress.
func (b *Batch) Run(ctx context.Context, session *queue.Session, items []*queue.Item, opts BatchOptions) (BatchResult, error) {
	var result BatchResult
	if session == nil {
		return result, fmt.Errorf("batch: session is required")
	}

	ok, err := b.lock.TryLock()
	if err != nil {
		return result, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return result, fmt.Errorf("%w (lock %s)", ErrBatchLocked, b.lockPath)
	}
	defer func() {
		if err := b.lock.Unlock(); err != nil {
			b.logger.Warn("failed to release batch lock", logging.Error(err))
		}
	}()

	ctx = services.WithSessionID(ctx, session.ID)
	logger := logging.WithContext(ctx, b.logger)
	started := time.Now()
	pending := countPending(items)

	b.metrics.BatchStarted()
	logger.Info("batch started",
		logging.String(logging.FieldEventType, "batch_start"),
		logging.Int("items", len(items)),
		logging.Int("pending", pending))
	if b.notifier != nil && pending > 0 {
		if err := b.notifier.NotifyBatchStarted(ctx, pending); err != nil {
			logger.Debug("batch start notification failed", logging.Error(err))
		}
	}
	defer b.finish(ctx, logger, &result, started, pending)

	process := b.orchestrator.Process
	if opts.Sequential {
		process = b.orchestrator.ProcessSingle
	}

	for i, item := range items {
		if opts.ShouldContinue != nil && !opts.ShouldContinue() {
			logger.Info("batch stopped before completion", logging.Int("cursor", i))
			break
		}
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if item.Status == queue.StatusCompleted {
			result.Completed++
			continue
		}

		ok, err := process(ctx, item)
		if err != nil {
			logging.ErrorWithContext(logger, "batch aborted", "batch_aborted",
				logging.String(logging.FieldItemID, item.ID),
				logging.String(logging.FieldErrorHint, services.Hint(err)),
				logging.Error(err))
			return result, err
		}
		if ok {
			result.Completed++
		} else {
			result.Failed++
		}
		if opts.OnItem != nil {
			opts.OnItem(item, ok)
		}
		if err := b.store.SetCursor(ctx, session.ID, i+1); err != nil {
			return result, fmt.Errorf("persist cursor: %w", err)
		}
		session.Cursor = i + 1

		if opts.Delay > 0 && i < len(items)-1 {
			if err := sleepContext(ctx, opts.Delay); err != nil {
				return result, err
			}
		}
	}
	return result, nil
}

func (b *Batch) finish(ctx context.Context, logger *slog.Logger, result *BatchResult, started time.Time, pending int) {
	elapsed := time.Since(started)
	logger.Info("batch finished",
		logging.String(logging.FieldEventType, "batch_complete"),
		logging.Int("completed", result.Completed),
		logging.Int("failed", result.Failed),
		logging.Duration("batch_duration", elapsed))

	// Reporting must still happen after a cancellation.
	reportCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
	defer cancel()
	if b.notifier != nil && pending > 0 {
		if err := b.notifier.NotifyBatchCompleted(reportCtx, result.Completed, result.Failed, elapsed); err != nil {
			logger.Debug("batch completion notification failed", logging.Error(err))
		}
	}
	if err := b.metrics.Push(reportCtx); err != nil {
		logger.Warn("metrics push failed", logging.Error(err))
	}
}

func countPending(items []*queue.Item) int {
	n := 0
	for _, item := range items {
		if item.Status != queue.StatusCompleted {
			n++
		}
	}
	return n
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
