package stage

import (
	"context"

	"bookpub/internal/queue"
)

// Checkpoint persists an item while its stage is still running.
type Checkpoint func(context.Context, *queue.Item) error

type checkpointKey struct{}

// WithCheckpoint attaches fn to ctx for the handler being run.
func WithCheckpoint(ctx context.Context, fn Checkpoint) context.Context {
	if fn == nil {
		return ctx
	}
	return context.WithValue(ctx, checkpointKey{}, fn)
}

// SaveCheckpoint records item mid-stage, typically a transaction hash right
// after broadcast so a retry awaits it instead of sending again. It is a
// no-op when ctx carries no checkpoint.
func SaveCheckpoint(ctx context.Context, item *queue.Item) error {
	fn, ok := ctx.Value(checkpointKey{}).(Checkpoint)
	if !ok || fn == nil {
		return nil
	}
	return fn(ctx, item)
}
