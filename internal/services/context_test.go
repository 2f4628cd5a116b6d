package services_test

import (
	"context"
	"testing"

	"bookpub/internal/services"
)

func TestContextRoundTrip(t *testing.T) {
	ctx := services.WithItemID(context.Background(), "item-1")
	ctx = services.WithSessionID(ctx, "sess-1")
	ctx = services.WithStage(ctx, "minting")
	ctx = services.WithRequestID(ctx, "req-1")

	if id, ok := services.ItemIDFromContext(ctx); !ok || id != "item-1" {
		t.Fatalf("item id = %q, %v", id, ok)
	}
	if id, ok := services.SessionIDFromContext(ctx); !ok || id != "sess-1" {
		t.Fatalf("session id = %q, %v", id, ok)
	}
	if stage, ok := services.StageFromContext(ctx); !ok || stage != "minting" {
		t.Fatalf("stage = %q, %v", stage, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-1" {
		t.Fatalf("request id = %q, %v", rid, ok)
	}
}

func TestContextIgnoresEmptyValues(t *testing.T) {
	ctx := services.WithStage(context.Background(), "")
	if _, ok := services.StageFromContext(ctx); ok {
		t.Fatal("empty stage should not be stored")
	}
	if _, ok := services.ItemIDFromContext(services.WithItemID(ctx, "")); ok {
		t.Fatal("empty item id should not be stored")
	}
}
