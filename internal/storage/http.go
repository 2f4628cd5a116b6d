package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/params"

	"bookpub/internal/config"
)

const (
	defaultHTTPTimeout = 5 * time.Minute
	maxErrorBody       = 512
	tagsHeader         = "X-Upload-Tags"
	paymentHeader      = "X-Payment-Tx"
	contentIDHeader    = "X-IPFS-CID"
)

// HTTPConfig captures the storage backend endpoints.
type HTTPConfig struct {
	BaseURL      string
	QuotePath    string
	UploadPath   string
	RegisterPath string
	AuthToken    string
	Timeout      time.Duration
}

// HTTPNetwork talks to the storage backend over JSON/HTTP.
type HTTPNetwork struct {
	cfg        HTTPConfig
	httpClient *http.Client
}

// Option customizes the HTTP network client.
type Option func(*HTTPNetwork)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(n *HTTPNetwork) {
		if client != nil {
			n.httpClient = client
		}
	}
}

// NewHTTPNetwork constructs a storage client.
func NewHTTPNetwork(cfg HTTPConfig, opts ...Option) *HTTPNetwork {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	n := &HTTPNetwork{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// NewHTTPNetworkFromConfig builds a client from the [storage] section.
func NewHTTPNetworkFromConfig(cfg *config.Config, opts ...Option) *HTTPNetwork {
	return NewHTTPNetwork(HTTPConfig{
		BaseURL:      cfg.Storage.APIURL,
		QuotePath:    cfg.Storage.QuotePath,
		UploadPath:   cfg.Storage.UploadPath,
		RegisterPath: cfg.Storage.RegisterPath,
		AuthToken:    cfg.Storage.AuthToken,
		Timeout:      cfg.StorageTimeout(),
	}, opts...)
}

type statusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("%s: http %d: %s", e.Op, e.StatusCode, strings.TrimSpace(e.Body))
}

type quoteResponse struct {
	EVMAddress string `json:"evmAddress"`
	ETH        string `json:"ETH"`
	ArweaveID  string `json:"arweaveId"`
}

// Quote asks the backend for a storage fee.
func (n *HTTPNetwork) Quote(ctx context.Context, req QuoteRequest) (Quote, error) {
	body := struct {
		FileSize int    `json:"fileSize"`
		IPFSHash string `json:"ipfsHash,omitempty"`
	}{req.FileSize, req.ContentID}

	var resp quoteResponse
	if err := n.postJSON(ctx, "quote", n.cfg.QuotePath, body, &resp); err != nil {
		return Quote{}, err
	}
	quote := Quote{
		PaymentAddress:    strings.TrimSpace(resp.EVMAddress),
		ExistingStorageID: strings.TrimSpace(resp.ArweaveID),
	}
	if strings.TrimSpace(resp.ETH) != "" {
		fee, err := parseEther(resp.ETH)
		if err != nil {
			return Quote{}, fmt.Errorf("quote: %w", err)
		}
		quote.Fee = fee
	}
	return quote, nil
}

// Upload posts the raw bytes with their tags and returns the storage id.
func (n *HTTPNetwork) Upload(ctx context.Context, req UploadRequest) (string, error) {
	tags, err := json.Marshal(req.Tags)
	if err != nil {
		return "", fmt.Errorf("upload: encode tags: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.BaseURL+n.cfg.UploadPath, bytes.NewReader(req.Data))
	if err != nil {
		return "", fmt.Errorf("upload: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/octet-stream")
	httpReq.Header.Set(tagsHeader, string(tags))
	httpReq.Header.Set(paymentHeader, req.PaymentTxHash)
	if req.ContentID != "" {
		httpReq.Header.Set(contentIDHeader, req.ContentID)
	}
	n.authorize(httpReq)

	var resp struct {
		ID string `json:"id"`
	}
	if err := n.do(httpReq, "upload", &resp); err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.ID), nil
}

// Register links the upload to its fee payment and returns the public link,
// which may be empty when the backend does not provide one.
func (n *HTTPNetwork) Register(ctx context.Context, req RegisterRequest) (string, error) {
	body := struct {
		FileSize  int    `json:"fileSize"`
		IPFSHash  string `json:"ipfsHash"`
		TxHash    string `json:"txHash"`
		ArweaveID string `json:"arweaveId"`
		Key       string `json:"key,omitempty"`
	}{req.FileSize, req.ContentID, req.PaymentTxHash, req.StorageID, req.Key}

	var resp struct {
		Link string `json:"link"`
	}
	if err := n.postJSON(ctx, "register", n.cfg.RegisterPath, body, &resp); err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Link), nil
}

func (n *HTTPNetwork) postJSON(ctx context.Context, op, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%s: encode body: %w", op, err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	n.authorize(httpReq)
	return n.do(httpReq, op, out)
}

func (n *HTTPNetwork) authorize(req *http.Request) {
	if token := strings.TrimSpace(n.cfg.AuthToken); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

func (n *HTTPNetwork) do(req *http.Request, op string, out any) error {
	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: read response: %w", op, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &statusError{Op: op, StatusCode: resp.StatusCode, Body: truncate(string(data), maxErrorBody)}
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

// parseEther converts a decimal ETH amount to wei, rounding up any
// fraction below one wei.
func parseEther(value string) (*big.Int, error) {
	amount, ok := new(big.Rat).SetString(strings.TrimSpace(value))
	if !ok {
		return nil, fmt.Errorf("invalid ETH amount %q", value)
	}
	if amount.Sign() < 0 {
		return nil, errors.New("negative ETH amount")
	}
	amount.Mul(amount, new(big.Rat).SetInt64(params.Ether))
	wei := new(big.Int).Quo(amount.Num(), amount.Denom())
	if new(big.Int).Mul(wei, amount.Denom()).Cmp(amount.Num()) != 0 {
		wei.Add(wei, big.NewInt(1))
	}
	return wei, nil
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
