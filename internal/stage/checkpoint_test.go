package stage

import (
	"context"
	"errors"
	"testing"

	"bookpub/internal/queue"
)

func TestSaveCheckpointWithoutHook(t *testing.T) {
	if err := SaveCheckpoint(context.Background(), &queue.Item{}); err != nil {
		t.Fatalf("expected no-op, got %v", err)
	}
}

func TestSaveCheckpointCallsHook(t *testing.T) {
	var saved *queue.Item
	failure := errors.New("disk full")
	ctx := WithCheckpoint(context.Background(), func(_ context.Context, item *queue.Item) error {
		saved = item
		return failure
	})

	item := &queue.Item{ID: "a", PendingMintTx: "0xabc"}
	if err := SaveCheckpoint(ctx, item); !errors.Is(err, failure) {
		t.Fatalf("expected hook error, got %v", err)
	}
	if saved != item {
		t.Fatal("expected hook to receive the item")
	}
}
