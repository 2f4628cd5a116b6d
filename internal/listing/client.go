package listing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultHTTPTimeout = time.Minute
	maxErrorBody       = 512
)

// ErrAlreadyListed is returned when the backend reports an existing listing.
var ErrAlreadyListed = errors.New("already listed")

// Config captures the listings backend settings.
type Config struct {
	BaseURL   string
	AuthToken string
	Timeout   time.Duration
}

// Client posts listings to the commerce backend.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient constructs a listings client.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	cfg.AuthToken = strings.TrimSpace(cfg.AuthToken)
	client := &Client{cfg: cfg, httpClient: &http.Client{Timeout: timeout}}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// StatusError reports a non-2xx listing response. ReadErr is set when the
// body excerpt could not be read in full.
type StatusError struct {
	StatusCode int
	Body       string
	ReadErr    error
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("listing request: http %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
	if e.ReadErr != nil {
		msg += fmt.Sprintf(" (read body: %v)", e.ReadErr)
	}
	return msg
}

// Create posts a new listing for classID. A 409 yields ErrAlreadyListed.
func (c *Client) Create(ctx context.Context, classID string, payload Payload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode listing: %w", err)
	}
	endpoint := fmt.Sprintf("%s/likernft/book/store/%s/new", c.cfg.BaseURL, url.PathEscape(classID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build listing request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.AuthToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("listing request: %w", err)
	}
	defer resp.Body.Close()
	// Only the error excerpt is read; a 2xx body carries nothing we use.
	data, readErr := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	switch {
	case resp.StatusCode == http.StatusConflict:
		return ErrAlreadyListed
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return &StatusError{StatusCode: resp.StatusCode, Body: string(data), ReadErr: readErr}
	}
	return nil
}

// Ping checks that the backend answers at all.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.cfg.BaseURL, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}
