package main

import (
	"context"
	"fmt"
	"log/slog"

	"bookpub/internal/chain"
	"bookpub/internal/config"
	"bookpub/internal/listing"
	"bookpub/internal/metrics"
	"bookpub/internal/minting"
	"bookpub/internal/notifications"
	"bookpub/internal/preflight"
	"bookpub/internal/queue"
	"bookpub/internal/registration"
	"bookpub/internal/storage"
	"bookpub/internal/workflow"
)

// publishRuntime owns everything a publishing run talks to. The chain
// client is dialled once and shared by every stage.
type publishRuntime struct {
	cfg          *config.Config
	logger       *slog.Logger
	store        *queue.Store
	chain        *chain.Client
	notifier     notifications.Service
	metrics      *metrics.Recorder
	orchestrator *workflow.Orchestrator
}

func (c *commandContext) newPublishRuntime(ctx context.Context) (*publishRuntime, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	if err := cfg.RequirePublishing(); err != nil {
		return nil, err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	notifier := notifications.NewService(cfg)
	client, err := dialChain(ctx, cfg, notifier, logger)
	if err != nil {
		return nil, err
	}
	store, err := queue.Open(cfg)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("open session store: %w", err)
	}

	rt := &publishRuntime{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		chain:    client,
		notifier: notifier,
		metrics:  metrics.NewRecorder(cfg, logger),
	}
	rt.orchestrator = newOrchestrator(cfg, store, client, notifier, rt.metrics, logger)
	return rt, nil
}

func newOrchestrator(cfg *config.Config, store *queue.Store, client *chain.Client, notifier notifications.Service, recorder *metrics.Recorder, logger *slog.Logger) *workflow.Orchestrator {
	return workflow.NewOrchestrator(workflow.Dependencies{
		Store:    store,
		Wallet:   client,
		Uploader: storage.NewCoordinatorFromConfig(cfg, client, appVersion, logger),
		Stages: workflow.StageSet{
			Registration: registration.NewFromConfig(cfg, client, logger),
			Minting:      minting.NewFromConfig(cfg, client, logger),
			Listing:      listing.NewFromConfig(cfg, logger),
		},
		Notifier: notifier,
		Metrics:  recorder,
		Logger:   logger,
	})
}

func (r *publishRuntime) preflight(ctx context.Context) []preflight.Result {
	return preflight.RunAll(ctx, r.cfg, r.chain, r.orchestrator.HealthChecks(ctx))
}

func (r *publishRuntime) batch() *workflow.Batch {
	return workflow.NewBatch(r.store, r.orchestrator, r.cfg.LockPath(), r.notifier, r.metrics, r.logger)
}

func (r *publishRuntime) Close() {
	if r == nil {
		return
	}
	if r.store != nil {
		r.store.Close()
	}
	r.chain.Close()
}
