package stage

import (
	"context"

	"bookpub/internal/queue"
)

// Handler describes the contract the orchestrator needs from each stage.
// Prepare validates inputs without side effects; Execute performs the stage
// and records its outputs on the item.
type Handler interface {
	Prepare(context.Context, *queue.Item) error
	Execute(context.Context, *queue.Item) error
	HealthCheck(context.Context) Health
}
