package stageexec

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"bookpub/internal/logging"
	"bookpub/internal/metrics"
	"bookpub/internal/notifications"
	"bookpub/internal/queue"
	"bookpub/internal/services"
	"bookpub/internal/stage"
)

// Store persists item transitions. *queue.Store satisfies it.
type Store interface {
	UpdateItem(ctx context.Context, item *queue.Item) error
}

// Options controls stage execution and item persistence.
type Options struct {
	Logger     *slog.Logger
	Store      Store
	Notifier   notifications.Service
	Metrics    *metrics.Recorder
	Handler    stage.Handler
	StageName  string
	Processing queue.Status
	Item       *queue.Item
}

// Run moves the item into the processing status, persists it, and runs the
// handler. On success the handler's output fields and advanced stage are
// persisted in one write. On failure the item is marked failed and the stage
// error is returned. Batch-fatal errors leave the item untouched so a later
// run resumes it.
//
// Once started the handler is not canceled by ctx; it ends on its own
// request and receipt timeouts. Handlers may persist mid-stage through
// stage.SaveCheckpoint.
func Run(ctx context.Context, opts Options) error {
	if opts.Handler == nil {
		return fmt.Errorf("stage handler unavailable: %s", opts.StageName)
	}
	if opts.Store == nil {
		return fmt.Errorf("item store is required")
	}
	if opts.Item == nil {
		return fmt.Errorf("item is required")
	}

	stageCtx := services.WithStage(ctx, opts.StageName)
	stageLogger := logging.WithContext(stageCtx, opts.Logger)
	started := time.Now()

	stageLogger.Info(
		"stage started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.String("processing_status", string(opts.Processing)),
		logging.String("title", strings.TrimSpace(opts.Item.Title)),
	)

	opts.Item.Status = opts.Processing
	opts.Item.ErrorMessage = ""
	if err := opts.Store.UpdateItem(stageCtx, opts.Item); err != nil {
		return fmt.Errorf("persist processing transition: %w", err)
	}

	handlerCtx := stage.WithCheckpoint(context.WithoutCancel(stageCtx), opts.Store.UpdateItem)
	err := opts.Handler.Prepare(handlerCtx, opts.Item)
	if err == nil {
		err = opts.Handler.Execute(handlerCtx, opts.Item)
	}
	opts.Metrics.ObserveStage(opts.StageName, time.Since(started), err)
	if err != nil {
		if services.IsBatchFatal(handlerCtx, err) {
			stageLogger.Warn("stage interrupted",
				logging.String(logging.FieldEventType, "stage_interrupted"),
				logging.Error(err))
			return err
		}
		return handleFailure(stageCtx, stageLogger, opts, err)
	}

	if err := opts.Store.UpdateItem(handlerCtx, opts.Item); err != nil {
		return fmt.Errorf("persist stage result: %w", err)
	}

	stageLogger.Info(
		"stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.String("progress_stage", string(opts.Item.Stage)),
		logging.Duration("stage_duration", time.Since(started)),
	)
	return nil
}

func handleFailure(ctx context.Context, logger *slog.Logger, opts Options, stageErr error) error {
	message := strings.TrimSpace(stageErr.Error())
	if message == "" {
		message = fmt.Sprintf("%s failed", opts.StageName)
	}
	opts.Item.SetFailed(message)

	hint := services.Hint(stageErr)
	if hint == "" {
		hint = "retry the item once the cause is fixed"
	}
	logging.ErrorWithContext(logger, "stage failed", "stage_failure",
		logging.String("resolved_status", string(queue.StatusFailed)),
		logging.String("error_kind", services.Kind(stageErr)),
		logging.String(logging.FieldErrorHint, hint),
		logging.Error(stageErr),
	)

	// The stage context may already be done; the failure must still land.
	persistCtx := ctx
	if ctx.Err() != nil {
		persistCtx = context.WithoutCancel(ctx)
	}
	if err := opts.Store.UpdateItem(persistCtx, opts.Item); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Debug("shutting down, could not record stage failure")
		} else {
			logger.Error("failed to persist stage failure", logging.Error(err))
		}
	}

	if opts.Notifier != nil {
		if err := opts.Notifier.NotifyItemFailed(ctx, opts.Item.Title, stageErr); err != nil {
			logger.Debug("stage failure notification failed", logging.Error(err))
		}
	}
	return stageErr
}
