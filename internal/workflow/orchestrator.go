package workflow

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"bookpub/internal/logging"
	"bookpub/internal/metrics"
	"bookpub/internal/notifications"
	"bookpub/internal/queue"
	"bookpub/internal/services"
	"bookpub/internal/stage"
	"bookpub/internal/stageexec"
	"bookpub/internal/storage"
)

// WalletSource reports the signing wallet. *chain.Client satisfies it.
type WalletSource interface {
	Wallet() (common.Address, error)
}

// Uploader stores book files. *storage.Coordinator satisfies it.
type Uploader interface {
	Upload(ctx context.Context, req storage.PrepareRequest) (storage.Result, error)
	UploadPair(ctx context.Context, req storage.PairRequest, onComplete storage.CompleteFunc) error
}

// StageSet bundles the chain and listing stages the orchestrator runs after
// the uploads.
type StageSet struct {
	Registration stage.Handler
	Minting      stage.Handler
	Listing      stage.Handler
}

// Dependencies wires an Orchestrator. Notifier and Metrics are optional.
type Dependencies struct {
	Store    *queue.Store
	Wallet   WalletSource
	Uploader Uploader
	Stages   StageSet
	Notifier notifications.Service
	Metrics  *metrics.Recorder
	Logger   *slog.Logger
}

// Orchestrator runs single items through every pipeline stage.
type Orchestrator struct {
	store    *queue.Store
	wallet   WalletSource
	uploader Uploader
	stages   StageSet
	notifier notifications.Service
	metrics  *metrics.Recorder
	logger   *slog.Logger
}

type pipelineStage struct {
	name       string
	handler    stage.Handler
	processing queue.Status
	done       func(*queue.Item) bool
}

// NewOrchestrator constructs an Orchestrator.
func NewOrchestrator(deps Dependencies) *Orchestrator {
	return &Orchestrator{
		store:    deps.Store,
		wallet:   deps.Wallet,
		uploader: deps.Uploader,
		stages:   deps.Stages,
		notifier: deps.Notifier,
		metrics:  deps.Metrics,
		logger:   logging.NewComponentLogger(deps.Logger, "workflow"),
	}
}

// Process runs item through the pipeline with the cover and ebook uploads
// overlapped. It reports whether the item completed. The error is non-nil
// only for batch-fatal conditions; ordinary stage failures are recorded on
// the item and reported as false.
func (o *Orchestrator) Process(ctx context.Context, item *queue.Item) (bool, error) {
	return o.process(ctx, item, true)
}

// ProcessSingle is Process with the two uploads run one after the other.
func (o *Orchestrator) ProcessSingle(ctx context.Context, item *queue.Item) (bool, error) {
	return o.process(ctx, item, false)
}

func (o *Orchestrator) process(ctx context.Context, item *queue.Item, pipelined bool) (bool, error) {
	if item == nil {
		return false, fmt.Errorf("process: nil item")
	}
	if o.wallet == nil {
		return false, services.Wrap(services.ErrWalletNotConnected, "workflow", "", "no wallet configured", nil)
	}
	if _, err := o.wallet.Wallet(); err != nil {
		return false, err
	}

	ctx = services.WithItemID(ctx, item.ID)
	ctx = services.WithSessionID(ctx, item.SessionID)
	ctx = services.WithRequestID(ctx, uuid.NewString())
	logger := logging.WithContext(ctx, o.logger)

	item.ReconcileStage()
	if item.Status == queue.StatusCompleted && item.Stage.AtLeast(queue.StageListed) {
		logger.Debug("item already published")
		return true, nil
	}

	for _, st := range o.pipeline(pipelined) {
		if st.done(item) {
			logger.Debug("stage already complete", logging.String(logging.FieldStage, st.name))
			continue
		}
		if err := ctx.Err(); err != nil {
			return false, err
		}
		err := stageexec.Run(ctx, stageexec.Options{
			Logger:     o.logger,
			Store:      o.store,
			Notifier:   o.notifier,
			Metrics:    o.metrics,
			Handler:    st.handler,
			StageName:  st.name,
			Processing: st.processing,
			Item:       item,
		})
		if err == nil {
			continue
		}
		if services.IsBatchFatal(ctx, err) {
			return false, err
		}
		o.metrics.ItemFinished(string(queue.StatusFailed), services.Kind(err))
		return false, nil
	}

	item.Status = queue.StatusCompleted
	item.ErrorMessage = ""
	item.Advance(queue.StageListed)
	if err := o.store.UpdateItem(ctx, item); err != nil {
		return false, fmt.Errorf("persist completion: %w", err)
	}
	o.metrics.ItemFinished(string(queue.StatusCompleted), "")
	logger.Info("book published",
		logging.String(logging.FieldEventType, "item_complete"),
		logging.String("title", item.Title),
		logging.String("class_id", item.AssetClassID),
		logging.String(logging.FieldTxHash, item.MintTxHash))
	return true, nil
}

func (o *Orchestrator) pipeline(pipelined bool) []pipelineStage {
	return []pipelineStage{
		{
			name:       "uploads",
			handler:    &uploadStage{uploader: o.uploader, store: o.store, pipelined: pipelined},
			processing: queue.StatusUploadingFiles,
			done:       (*queue.Item).FilesUploaded,
		},
		{
			name:       "registration",
			handler:    o.stages.Registration,
			processing: queue.StatusCreatingNFT,
			done:       (*queue.Item).ClassCreated,
		},
		{
			name:       "minting",
			handler:    o.stages.Minting,
			processing: queue.StatusMinting,
			done:       (*queue.Item).Minted,
		},
		{
			name:       "listing",
			handler:    o.stages.Listing,
			processing: queue.StatusListing,
			done:       func(item *queue.Item) bool { return item.Stage.AtLeast(queue.StageListed) },
		},
	}
}

// HealthChecks reports the readiness of every configured stage.
func (o *Orchestrator) HealthChecks(ctx context.Context) []stage.Health {
	checks := make([]stage.Health, 0, 4)
	for _, st := range o.pipeline(true) {
		if st.handler == nil {
			checks = append(checks, stage.Unhealthy(st.name, "not configured"))
			continue
		}
		checks = append(checks, st.handler.HealthCheck(ctx))
	}
	return checks
}
