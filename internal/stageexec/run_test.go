package stageexec_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"bookpub/internal/logging"
	"bookpub/internal/queue"
	"bookpub/internal/services"
	"bookpub/internal/stage"
	"bookpub/internal/stageexec"
	"bookpub/internal/testsupport"
)

type fakeHandler struct {
	prepareErr error
	executeErr error
	seen       queue.Status
	onExecute  func(*queue.Item)
}

func (f *fakeHandler) Prepare(_ context.Context, item *queue.Item) error {
	f.seen = item.Status
	return f.prepareErr
}

func (f *fakeHandler) Execute(_ context.Context, item *queue.Item) error {
	if f.executeErr != nil {
		return f.executeErr
	}
	if f.onExecute != nil {
		f.onExecute(item)
	}
	return nil
}

func (f *fakeHandler) HealthCheck(context.Context) stage.Health { return stage.Healthy("fake") }

type recordingNotifier struct {
	failures []string
}

func (r *recordingNotifier) NotifyBatchStarted(context.Context, int) error { return nil }

func (r *recordingNotifier) NotifyBatchCompleted(context.Context, int, int, time.Duration) error {
	return nil
}

func (r *recordingNotifier) NotifyItemFailed(_ context.Context, title string, _ error) error {
	r.failures = append(r.failures, title)
	return nil
}

func (r *recordingNotifier) NotifyInsufficientBalance(context.Context, string, string, string, string) error {
	return nil
}

func (r *recordingNotifier) TestNotification(context.Context) error { return nil }

func setup(t *testing.T) (*queue.Store, *queue.Item) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	item := testsupport.NewItem("Dune")
	testsupport.MustCreateSession(t, store, item)
	return store, item
}

func TestRunPersistsOutputsAndStage(t *testing.T) {
	store, item := setup(t)
	handler := &fakeHandler{onExecute: func(it *queue.Item) {
		it.AssetClassID = "0x00000000000000000000000000000000000000c1"
		it.Advance(queue.StageClassCreated)
	}}

	err := stageexec.Run(context.Background(), stageexec.Options{
		Logger:     logging.NewNop(),
		Store:      store,
		Handler:    handler,
		StageName:  "registration",
		Processing: queue.StatusCreatingNFT,
		Item:       item,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if handler.seen != queue.StatusCreatingNFT {
		t.Fatalf("expected handler to see processing status, got %q", handler.seen)
	}

	stored, err := store.GetItem(context.Background(), item.ID)
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if stored.AssetClassID != item.AssetClassID || stored.Stage != queue.StageClassCreated {
		t.Fatalf("expected class id and stage persisted, got %q / %q", stored.AssetClassID, stored.Stage)
	}
}

func TestRunMarksItemFailedAndNotifies(t *testing.T) {
	store, item := setup(t)
	notifier := &recordingNotifier{}
	stageErr := services.Wrap(services.ErrMintFailed, "minting", "send", "reverted", nil)

	err := stageexec.Run(context.Background(), stageexec.Options{
		Logger:     logging.NewNop(),
		Store:      store,
		Notifier:   notifier,
		Handler:    &fakeHandler{executeErr: stageErr},
		StageName:  "minting",
		Processing: queue.StatusMinting,
		Item:       item,
	})
	if !errors.Is(err, services.ErrMintFailed) {
		t.Fatalf("expected mint failure, got %v", err)
	}

	stored, err := store.GetItem(context.Background(), item.ID)
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if stored.Status != queue.StatusFailed {
		t.Fatalf("expected failed status, got %q", stored.Status)
	}
	if !strings.Contains(stored.ErrorMessage, "reverted") {
		t.Fatalf("expected error message to carry cause, got %q", stored.ErrorMessage)
	}
	if len(notifier.failures) != 1 || notifier.failures[0] != "Dune" {
		t.Fatalf("expected one failure notification, got %v", notifier.failures)
	}
}

func TestRunLeavesItemOnBatchFatalError(t *testing.T) {
	store, item := setup(t)
	notifier := &recordingNotifier{}
	fatal := services.Wrap(services.ErrWalletNotConnected, "chain", "", "no signing key configured", nil)

	err := stageexec.Run(context.Background(), stageexec.Options{
		Logger:     logging.NewNop(),
		Store:      store,
		Notifier:   notifier,
		Handler:    &fakeHandler{prepareErr: fatal},
		StageName:  "minting",
		Processing: queue.StatusMinting,
		Item:       item,
	})
	if !errors.Is(err, services.ErrWalletNotConnected) {
		t.Fatalf("expected wallet error, got %v", err)
	}
	if item.Status == queue.StatusFailed {
		t.Fatal("batch-fatal error must not mark the item failed")
	}
	if len(notifier.failures) != 0 {
		t.Fatalf("expected no failure notification, got %v", notifier.failures)
	}
}

func TestRunMarksItemFailedOnRequestTimeout(t *testing.T) {
	store, item := setup(t)
	timeout := services.Wrap(services.ErrListingFailed, "listing", "create", "",
		fmt.Errorf("listing request: %w", context.DeadlineExceeded))

	err := stageexec.Run(context.Background(), stageexec.Options{
		Logger:     logging.NewNop(),
		Store:      store,
		Handler:    &fakeHandler{executeErr: timeout},
		StageName:  "listing",
		Processing: queue.StatusListing,
		Item:       item,
	})
	if !errors.Is(err, services.ErrListingFailed) {
		t.Fatalf("expected listing failure, got %v", err)
	}
	stored, err := store.GetItem(context.Background(), item.ID)
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if stored.Status != queue.StatusFailed || !strings.Contains(stored.ErrorMessage, "deadline exceeded") {
		t.Fatalf("expected timeout recorded as failure, got %q (%q)", stored.Status, stored.ErrorMessage)
	}
}

type checkpointHandler struct {
	cancel    context.CancelFunc
	handlerOK bool
}

func (h *checkpointHandler) Prepare(context.Context, *queue.Item) error { return nil }

func (h *checkpointHandler) Execute(ctx context.Context, item *queue.Item) error {
	item.PendingMintTx = "0xfeed"
	h.cancel()
	h.handlerOK = ctx.Err() == nil
	if err := stage.SaveCheckpoint(ctx, item); err != nil {
		return err
	}
	item.MintTxHash = item.PendingMintTx
	item.Advance(queue.StageMinted)
	return nil
}

func (h *checkpointHandler) HealthCheck(context.Context) stage.Health {
	return stage.Healthy("checkpoint")
}

func TestRunFinishesStageAfterCancelAndCheckpoints(t *testing.T) {
	store, item := setup(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	handler := &checkpointHandler{cancel: cancel}

	err := stageexec.Run(ctx, stageexec.Options{
		Logger:     logging.NewNop(),
		Store:      store,
		Handler:    handler,
		StageName:  "minting",
		Processing: queue.StatusMinting,
		Item:       item,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !handler.handlerOK {
		t.Fatal("expected the running stage to be shielded from cancellation")
	}
	stored, err := store.GetItem(context.Background(), item.ID)
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if stored.PendingMintTx != "0xfeed" || stored.MintTxHash != "0xfeed" || stored.Stage != queue.StageMinted {
		t.Fatalf("expected checkpoint and result persisted, got %+v", stored)
	}
}
