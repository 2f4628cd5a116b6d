package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"bookpub/internal/config"
)

const userAgent = "bookpub/0.1.0"

// Service defines the notification surface exposed to workflow components.
type Service interface {
	NotifyBatchStarted(ctx context.Context, count int) error
	NotifyBatchCompleted(ctx context.Context, completed, failed int, duration time.Duration) error
	NotifyItemFailed(ctx context.Context, title string, err error) error
	NotifyInsufficientBalance(ctx context.Context, wallet, balance, required, contact string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
	actions  string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) NotifyBatchStarted(ctx context.Context, count int) error {
	noun := "books"
	if count == 1 {
		noun = "book"
	}
	return n.send(ctx, payload{
		title:   "bookpub - Batch Started",
		message: fmt.Sprintf("Publishing %d %s", count, noun),
		tags:    []string{"bookpub", "batch", "started"},
	})
}

func (n *ntfyService) NotifyBatchCompleted(ctx context.Context, completed, failed int, duration time.Duration) error {
	duration = duration.Round(time.Second)
	if duration < 0 {
		duration = 0
	}

	data := payload{
		title:   "bookpub - Batch Complete",
		message: fmt.Sprintf("📚 Published %d books in %s", completed, duration),
		tags:    []string{"bookpub", "batch", "completed"},
	}
	if failed > 0 {
		data.title = "bookpub - Batch Complete (with errors)"
		data.message = fmt.Sprintf("Batch finished: %d published, %d failed in %s", completed, failed, duration)
		data.priority = "high"
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyItemFailed(ctx context.Context, title string, err error) error {
	var builder strings.Builder
	builder.WriteString("❌ Failed to publish")
	if title = strings.TrimSpace(title); title != "" {
		builder.WriteString(" ")
		builder.WriteString(title)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}

	return n.send(ctx, payload{
		title:    "bookpub - Publish Failed",
		message:  builder.String(),
		tags:     []string{"bookpub", "error", "alert"},
		priority: "high",
	})
}

// NotifyInsufficientBalance satisfies chain.BalanceReporter. When contact is
// set the message carries a view action pointing at it.
func (n *ntfyService) NotifyInsufficientBalance(ctx context.Context, wallet, balance, required, contact string) error {
	data := payload{
		title:    "bookpub - Insufficient Balance",
		message:  fmt.Sprintf("Wallet %s holds %s ETH but needs %s ETH including gas", strings.TrimSpace(wallet), balance, required),
		tags:     []string{"bookpub", "wallet", "warning"},
		priority: "urgent",
	}
	if contact = strings.TrimSpace(contact); contact != "" {
		data.actions = "view, Contact support, " + contact
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, payload{
		title:    "bookpub - Test",
		message:  "🧪 Notification system test",
		tags:     []string{"bookpub", "test"},
		priority: "low",
	})
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}
	if data.actions != "" {
		req.Header.Set("Actions", data.actions)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyBatchStarted(context.Context, int) error {
	return nil
}

func (noopService) NotifyBatchCompleted(context.Context, int, int, time.Duration) error {
	return nil
}

func (noopService) NotifyItemFailed(context.Context, string, error) error {
	return nil
}

func (noopService) NotifyInsufficientBalance(context.Context, string, string, string, string) error {
	return nil
}

func (noopService) TestNotification(context.Context) error {
	return nil
}
