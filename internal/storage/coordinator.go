package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/gabriel-vasile/mimetype"

	"bookpub/internal/chain"
	"bookpub/internal/config"
	"bookpub/internal/contentid"
	"bookpub/internal/encryption"
	"bookpub/internal/logging"
	"bookpub/internal/services"
)

const (
	stageName            = "storage"
	defaultConfirmations = 2
	encodingTag          = "aes256gcm"
)

// Payer sends and confirms fee transactions. *chain.Client satisfies it.
type Payer interface {
	Send(ctx context.Context, cand chain.Candidate) (common.Hash, error)
	Await(ctx context.Context, hash common.Hash, confirmations int) (*types.Receipt, error)
}

// Options configures a Coordinator.
type Options struct {
	GatewayURL    string
	AppName       string
	AppVersion    string
	Confirmations int
}

// Coordinator moves one file at a time through quote, pay, upload, and
// register.
type Coordinator struct {
	network Network
	payer   Payer
	opts    Options
	logger  *slog.Logger
}

// NewCoordinator wires a Coordinator.
func NewCoordinator(network Network, payer Payer, opts Options, logger *slog.Logger) *Coordinator {
	if opts.Confirmations <= 0 {
		opts.Confirmations = defaultConfirmations
	}
	opts.GatewayURL = strings.TrimRight(strings.TrimSpace(opts.GatewayURL), "/")
	return &Coordinator{
		network: network,
		payer:   payer,
		opts:    opts,
		logger:  logging.NewComponentLogger(logger, stageName),
	}
}

// NewCoordinatorFromConfig wires the HTTP network and gateway settings from
// the [storage] and [chain] sections.
func NewCoordinatorFromConfig(cfg *config.Config, payer Payer, version string, logger *slog.Logger) *Coordinator {
	return NewCoordinator(NewHTTPNetworkFromConfig(cfg), payer, Options{
		GatewayURL:    cfg.Storage.GatewayURL,
		AppName:       cfg.Storage.AppName,
		AppVersion:    version,
		Confirmations: cfg.Chain.FeeConfirmations,
	}, logger)
}

// PrepareRequest describes one file to store. FileType is sniffed from
// the plaintext when empty.
type PrepareRequest struct {
	Data     []byte
	FileType string
	Encrypt  bool
}

// Result identifies stored content. Key is the base64 AES key for
// encrypted uploads and empty otherwise.
type Result struct {
	StorageID string
	Link      string
	ContentID string
	Key       string
}

// PrepareOutcome is either AlreadyExists or *Prepared.
type PrepareOutcome interface {
	isPrepareOutcome()
}

// AlreadyExists reports content the network already stores. No fee was paid.
type AlreadyExists struct {
	Result Result
}

func (AlreadyExists) isPrepareOutcome() {}

// Prepared is a paid upload awaiting Execute. It can be executed once.
type Prepared struct {
	Data          []byte
	FileSize      int
	ContentID     string
	ContentType   string
	Key           string
	PaymentTxHash common.Hash
	executed      atomic.Bool
}

func (*Prepared) isPrepareOutcome() {}

type feeMemo struct {
	IPFS     string `json:"ipfs"`
	FileSize int    `json:"fileSize"`
}

// Prepare hashes, optionally encrypts, quotes, and pays for req. Content the
// network already holds returns AlreadyExists without any transaction.
func (c *Coordinator) Prepare(ctx context.Context, req PrepareRequest) (PrepareOutcome, error) {
	logger := logging.WithContext(ctx, c.logger)
	contentType := strings.TrimSpace(req.FileType)
	if contentType == "" {
		contentType = mimetype.Detect(req.Data).String()
	}

	buffer := req.Data
	var key string
	if req.Encrypt {
		rawKey, combined, err := encryption.Encrypt(req.Data)
		if err != nil {
			return nil, services.Wrap(services.ErrUploadFailed, stageName, "encrypt", "", err)
		}
		buffer = combined
		key = encryption.EncodeKey(rawKey)
	}
	cid, err := contentid.Compute(buffer)
	if err != nil {
		return nil, services.Wrap(services.ErrUploadFailed, stageName, "content id", "", err)
	}

	quoteReq := QuoteRequest{FileSize: len(buffer)}
	if !req.Encrypt {
		quoteReq.ContentID = cid
	}
	quote, err := c.network.Quote(ctx, quoteReq)
	if err != nil {
		return nil, services.Wrap(services.ErrUploadFailed, stageName, "quote", "", err)
	}
	if quote.ExistingStorageID != "" {
		logger.Info("content already stored",
			logging.String("storage_id", quote.ExistingStorageID),
			logging.String("content_id", cid))
		return AlreadyExists{Result: Result{
			StorageID: quote.ExistingStorageID,
			Link:      c.gatewayLink(quote.ExistingStorageID),
			ContentID: cid,
			Key:       key,
		}}, nil
	}
	if !common.IsHexAddress(quote.PaymentAddress) || quote.Fee == nil || quote.Fee.Sign() <= 0 {
		return nil, services.Wrap(services.ErrUploadFailed, stageName, "quote", "fee estimate missing payment address or amount", nil)
	}

	memo, err := json.Marshal(feeMemo{IPFS: cid, FileSize: len(buffer)})
	if err != nil {
		return nil, fmt.Errorf("encode fee memo: %w", err)
	}
	hash, err := c.payer.Send(ctx, chain.Candidate{
		To:    common.HexToAddress(quote.PaymentAddress),
		Value: new(big.Int).Set(quote.Fee),
		Data:  memo,
		Kind:  chain.KindTransfer,
		Label: "storage fee",
	})
	if err != nil {
		return nil, services.Wrap(services.ErrPaymentFailed, stageName, "send fee", "", err)
	}
	receipt, err := c.payer.Await(ctx, hash, c.opts.Confirmations)
	if err != nil {
		return nil, services.Wrap(services.ErrPaymentFailed, stageName, "await fee", hash.Hex(), err)
	}
	if !chain.Succeeded(receipt) {
		return nil, services.Wrap(services.ErrPaymentFailed, stageName, "await fee", hash.Hex()+" reverted", nil)
	}
	logger.Info("storage fee paid",
		logging.String(logging.FieldTxHash, hash.Hex()),
		logging.String("fee_eth", chain.FormatEther(quote.Fee)),
		logging.Int("file_size", len(buffer)))

	return &Prepared{
		Data:          buffer,
		FileSize:      len(buffer),
		ContentID:     cid,
		ContentType:   contentType,
		Key:           key,
		PaymentTxHash: hash,
	}, nil
}

// Execute uploads and registers a prepared file. A registration failure
// after a successful upload falls back to the gateway link; the upload is
// already paid and stored.
func (c *Coordinator) Execute(ctx context.Context, p *Prepared) (Result, error) {
	if p == nil {
		return Result{}, services.Wrap(services.ErrUploadFailed, stageName, "execute", "nothing prepared", nil)
	}
	if !p.executed.CompareAndSwap(false, true) {
		return Result{}, services.Wrap(services.ErrUploadFailed, stageName, "execute", "prepared upload already executed", nil)
	}
	logger := logging.WithContext(ctx, c.logger)

	storageID, err := c.network.Upload(ctx, UploadRequest{
		Data:          p.Data,
		Tags:          c.tags(p),
		ContentID:     p.ContentID,
		PaymentTxHash: p.PaymentTxHash.Hex(),
	})
	if err != nil {
		return Result{}, services.Wrap(services.ErrUploadFailed, stageName, "upload", p.PaymentTxHash.Hex(), err)
	}
	if storageID == "" {
		return Result{}, services.Wrap(services.ErrUploadFailed, stageName, "upload", "backend returned no storage id", nil)
	}

	link, err := c.network.Register(ctx, RegisterRequest{
		FileSize:      p.FileSize,
		ContentID:     p.ContentID,
		PaymentTxHash: p.PaymentTxHash.Hex(),
		StorageID:     storageID,
		Key:           p.Key,
	})
	if err != nil {
		logging.WarnWithContext(logger, "register upload failed", "storage_register_failed",
			logging.String("storage_id", storageID),
			logging.Error(err))
	}
	if link == "" {
		link = c.gatewayLink(storageID)
	}
	logger.Info("file stored",
		logging.String("storage_id", storageID),
		logging.String("content_id", p.ContentID),
		logging.Bool("encrypted", p.Key != ""))
	return Result{StorageID: storageID, Link: link, ContentID: p.ContentID, Key: p.Key}, nil
}

// Upload prepares and executes req in sequence.
func (c *Coordinator) Upload(ctx context.Context, req PrepareRequest) (Result, error) {
	outcome, err := c.Prepare(ctx, req)
	if err != nil {
		return Result{}, err
	}
	return c.resolve(ctx, outcome)
}

func (c *Coordinator) resolve(ctx context.Context, outcome PrepareOutcome) (Result, error) {
	switch o := outcome.(type) {
	case AlreadyExists:
		return o.Result, nil
	case *Prepared:
		return c.Execute(ctx, o)
	default:
		return Result{}, fmt.Errorf("unexpected prepare outcome %T", outcome)
	}
}

func (c *Coordinator) tags(p *Prepared) []Tag {
	appName := c.opts.AppName
	if appName == "" {
		appName = "bookpub"
	}
	version := c.opts.AppVersion
	if version == "" {
		version = "dev"
	}
	tags := []Tag{
		{Name: "App-Name", Value: appName},
		{Name: "App-Version", Value: version},
		{Name: "User-Agent", Value: appName + "/" + version},
		{Name: "IPFS-CID", Value: p.ContentID},
	}
	if p.ContentType != "" {
		tags = append(tags, Tag{Name: "Content-Type", Value: p.ContentType})
	}
	if p.Key != "" {
		tags = append(tags, Tag{Name: "Content-Encoding", Value: encodingTag})
	}
	return tags
}

func (c *Coordinator) gatewayLink(storageID string) string {
	if c.opts.GatewayURL == "" {
		return storageID
	}
	return c.opts.GatewayURL + "/" + storageID
}
