package stage

import (
	"errors"
	"strings"
	"testing"

	"bookpub/internal/queue"
	"bookpub/internal/services"
)

func TestRequireField(t *testing.T) {
	if err := RequireField("minting", "asset class id", "0xabc"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := RequireField("minting", "asset class id", "  ")
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if !strings.Contains(err.Error(), "asset class id is required") {
		t.Fatalf("message missing field name: %v", err)
	}
}

func TestRequireFile(t *testing.T) {
	if err := RequireFile("storage", "cover", &queue.FileRef{Name: "c.jpg", Data: []byte{}}); err != nil {
		t.Fatalf("empty but loaded buffer should pass: %v", err)
	}
	err := RequireFile("storage", "cover", &queue.FileRef{Name: "c.jpg"})
	if !errors.Is(err, services.ErrFilesUnavailable) {
		t.Fatalf("expected files unavailable, got %v", err)
	}
	if !strings.Contains(err.Error(), `"c.jpg"`) {
		t.Fatalf("message should name the file: %v", err)
	}
	if err := RequireFile("storage", "ebook", nil); !errors.Is(err, services.ErrFilesUnavailable) {
		t.Fatalf("nil ref should be unavailable, got %v", err)
	}
}
