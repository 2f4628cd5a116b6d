package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"bookpub/internal/config"
	"bookpub/internal/notifications"
)

type capture struct {
	title    string
	tags     string
	priority string
	actions  string
	body     string
	calls    int
}

func newCaptureServer(t *testing.T, status int) (*httptest.Server, *capture) {
	t.Helper()
	captured := &capture{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method: %s", r.Method)
		}
		captured.calls++
		captured.title = r.Header.Get("Title")
		captured.tags = r.Header.Get("Tags")
		captured.priority = r.Header.Get("Priority")
		captured.actions = r.Header.Get("Actions")
		body, _ := io.ReadAll(r.Body)
		captured.body = string(body)
		w.WriteHeader(status)
	}))
	t.Cleanup(server.Close)
	return server, captured
}

func newService(url string) notifications.Service {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = url
	cfg.Notifications.RequestTimeout = 5
	return notifications.NewService(&cfg)
}

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = "  "
	svc := notifications.NewService(&cfg)
	if err := svc.NotifyItemFailed(context.Background(), "Example", errors.New("boom")); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
	if err := svc.NotifyInsufficientBalance(context.Background(), "0xabc", "0", "1", ""); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsEvents(t *testing.T) {
	tests := []struct {
		name           string
		notify         func(notifications.Service) error
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name:          "batch started",
			notify:        func(s notifications.Service) error { return s.NotifyBatchStarted(context.Background(), 3) },
			expectTitle:   "bookpub - Batch Started",
			expectMessage: "Publishing 3 books",
			expectTags:    "bookpub,batch,started",
		},
		{
			name: "batch completed cleanly",
			notify: func(s notifications.Service) error {
				return s.NotifyBatchCompleted(context.Background(), 4, 0, 90*time.Second)
			},
			expectTitle:   "bookpub - Batch Complete",
			expectMessage: "📚 Published 4 books in 1m30s",
			expectTags:    "bookpub,batch,completed",
		},
		{
			name: "batch completed with failures",
			notify: func(s notifications.Service) error {
				return s.NotifyBatchCompleted(context.Background(), 4, 1, 2*time.Second)
			},
			expectTitle:    "bookpub - Batch Complete (with errors)",
			expectMessage:  "Batch finished: 4 published, 1 failed in 2s",
			expectTags:     "bookpub,batch,completed",
			expectPriority: "high",
		},
		{
			name: "item failed",
			notify: func(s notifications.Service) error {
				return s.NotifyItemFailed(context.Background(), "Dune", errors.New("mint failed: reverted"))
			},
			expectTitle:    "bookpub - Publish Failed",
			expectMessage:  "❌ Failed to publish Dune: mint failed: reverted",
			expectTags:     "bookpub,error,alert",
			expectPriority: "high",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			server, captured := newCaptureServer(t, http.StatusOK)
			if err := tc.notify(newService(server.URL)); err != nil {
				t.Fatalf("notification returned error: %v", err)
			}
			if captured.title != tc.expectTitle {
				t.Fatalf("expected title %q, got %q", tc.expectTitle, captured.title)
			}
			if captured.body != tc.expectMessage {
				t.Fatalf("expected message %q, got %q", tc.expectMessage, captured.body)
			}
			if captured.tags != tc.expectTags {
				t.Fatalf("expected tags %q, got %q", tc.expectTags, captured.tags)
			}
			if captured.priority != tc.expectPriority {
				t.Fatalf("expected priority %q, got %q", tc.expectPriority, captured.priority)
			}
		})
	}
}

func TestInsufficientBalanceCarriesContactAction(t *testing.T) {
	server, captured := newCaptureServer(t, http.StatusOK)
	svc := newService(server.URL)

	err := svc.NotifyInsufficientBalance(context.Background(), "0x00000000000000000000000000000000000000aa", "0.001", "0.012", "mailto:help@example.com")
	if err != nil {
		t.Fatalf("NotifyInsufficientBalance: %v", err)
	}
	if captured.priority != "urgent" {
		t.Fatalf("expected urgent priority, got %q", captured.priority)
	}
	if captured.actions != "view, Contact support, mailto:help@example.com" {
		t.Fatalf("unexpected actions header %q", captured.actions)
	}
	want := "Wallet 0x00000000000000000000000000000000000000aa holds 0.001 ETH but needs 0.012 ETH including gas"
	if captured.body != want {
		t.Fatalf("expected message %q, got %q", want, captured.body)
	}
}

func TestNtfyServiceReportsServerErrors(t *testing.T) {
	server, captured := newCaptureServer(t, http.StatusBadGateway)
	if err := newService(server.URL).TestNotification(context.Background()); err == nil {
		t.Fatal("expected error for 502 response")
	}
	if captured.calls != 1 {
		t.Fatalf("expected exactly one request, got %d", captured.calls)
	}
}
