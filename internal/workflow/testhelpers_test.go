package workflow_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"bookpub/internal/config"
	"bookpub/internal/logging"
	"bookpub/internal/queue"
	"bookpub/internal/services"
	"bookpub/internal/stage"
	"bookpub/internal/storage"
	"bookpub/internal/testsupport"
	"bookpub/internal/workflow"
)

type stubStage struct {
	name        string
	executeHook func(*queue.Item)
	failFor     func(*queue.Item) error
	prepareErr  error
	executes    int
	health      stage.Health
}

func newStubStage(name string, hook func(*queue.Item)) *stubStage {
	return &stubStage{name: name, executeHook: hook, health: stage.Healthy(name)}
}

func (s *stubStage) Prepare(context.Context, *queue.Item) error {
	return s.prepareErr
}

func (s *stubStage) Execute(_ context.Context, item *queue.Item) error {
	s.executes++
	if s.failFor != nil {
		if err := s.failFor(item); err != nil {
			return err
		}
	}
	if s.executeHook != nil {
		s.executeHook(item)
	}
	return nil
}

func (s *stubStage) HealthCheck(context.Context) stage.Health {
	return s.health
}

type fakeUploader struct {
	mu      sync.Mutex
	uploads int
	pairs   int
	next    int
}

func (f *fakeUploader) Upload(_ context.Context, req storage.PrepareRequest) (storage.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads++
	f.next++
	id := fmt.Sprintf("storage-%02d", f.next)
	result := storage.Result{StorageID: id, Link: "https://gateway.test/" + id, ContentID: fmt.Sprintf("Qm%02d", f.next)}
	if req.Encrypt {
		result.Key = "a2V5"
	}
	return result, nil
}

func (f *fakeUploader) UploadPair(ctx context.Context, req storage.PairRequest, onComplete storage.CompleteFunc) error {
	f.mu.Lock()
	f.pairs++
	f.mu.Unlock()
	for _, entry := range []struct {
		role storage.Role
		req  *storage.PrepareRequest
	}{{storage.RoleCover, req.Cover}, {storage.RoleEbook, req.Ebook}} {
		if entry.req == nil {
			continue
		}
		result, err := f.Upload(ctx, *entry.req)
		if err != nil {
			return err
		}
		if err := onComplete(ctx, entry.role, result); err != nil {
			return err
		}
	}
	return nil
}

type fakeWallet struct {
	err error
}

func (w fakeWallet) Wallet() (common.Address, error) {
	if w.err != nil {
		return common.Address{}, w.err
	}
	return common.HexToAddress("0x00000000000000000000000000000000000000aa"), nil
}

type harness struct {
	cfg          *config.Config
	store        *queue.Store
	uploader     *fakeUploader
	registration *stubStage
	minting      *stubStage
	listing      *stubStage
	wallet       *fakeWallet
	orchestrator *workflow.Orchestrator
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	h := &harness{
		cfg:      cfg,
		store:    testsupport.MustOpenStore(t, cfg),
		uploader: &fakeUploader{},
		wallet:   &fakeWallet{},
		registration: newStubStage("registration", func(item *queue.Item) {
			item.AssetClassID = "0x00000000000000000000000000000000000000c1"
			item.Advance(queue.StageClassCreated)
		}),
		minting: newStubStage("minting", func(item *queue.Item) {
			item.MintTxHash = "0x" + fmt.Sprintf("%064d", 7)
			item.Advance(queue.StageMinted)
		}),
		listing: newStubStage("listing", func(item *queue.Item) {
			item.Advance(queue.StageListed)
		}),
	}
	h.orchestrator = workflow.NewOrchestrator(workflow.Dependencies{
		Store:    h.store,
		Wallet:   h.wallet,
		Uploader: h.uploader,
		Stages: workflow.StageSet{
			Registration: h.registration,
			Minting:      h.minting,
			Listing:      h.listing,
		},
		Logger: logging.NewNop(),
	})
	return h
}

// useListing rebuilds the orchestrator around a different listing stage.
func (h *harness) useListing(listing stage.Handler) {
	h.orchestrator = workflow.NewOrchestrator(workflow.Dependencies{
		Store:    h.store,
		Wallet:   h.wallet,
		Uploader: h.uploader,
		Stages: workflow.StageSet{
			Registration: h.registration,
			Minting:      h.minting,
			Listing:      listing,
		},
		Logger: logging.NewNop(),
	})
}

func (h *harness) reload(t *testing.T, id string) *queue.Item {
	t.Helper()
	item, err := h.store.GetItem(context.Background(), id)
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	return item
}

func mintFailure(title string) func(*queue.Item) error {
	return func(item *queue.Item) error {
		if item.Title == title {
			return services.Wrap(services.ErrMintFailed, "minting", "send", "execution reverted", nil)
		}
		return nil
	}
}
