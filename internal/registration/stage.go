package registration

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"bookpub/internal/chain"
	"bookpub/internal/config"
	"bookpub/internal/logging"
	"bookpub/internal/queue"
	"bookpub/internal/services"
	"bookpub/internal/stage"
)

const stageName = "registration"

// Chain is the subset of *chain.Client the stage writes through.
type Chain interface {
	Wallet() (common.Address, error)
	Send(ctx context.Context, cand chain.Candidate) (common.Hash, error)
	Await(ctx context.Context, hash common.Hash, confirmations int) (*types.Receipt, error)
}

// Options configures class creation.
type Options struct {
	FactoryAddress     common.Address
	PlatformOperator   common.Address
	MaxSupply          uint64
	RoyaltyBasisPoints int64
	StoreURL           string
	Confirmations      int
}

// Registrar creates one asset class per book through the class factory.
type Registrar struct {
	chain  Chain
	opts   Options
	logger *slog.Logger
	now    func() time.Time
}

// New constructs the registration stage.
func New(client Chain, opts Options, logger *slog.Logger) *Registrar {
	if opts.Confirmations <= 0 {
		opts.Confirmations = 1
	}
	opts.StoreURL = strings.TrimRight(opts.StoreURL, "/")
	return &Registrar{
		chain:  client,
		opts:   opts,
		logger: logging.NewComponentLogger(logger, stageName),
		now:    time.Now,
	}
}

// NewFromConfig builds the stage from the [chain] and [publishing] sections.
func NewFromConfig(cfg *config.Config, client Chain, logger *slog.Logger) *Registrar {
	opts := Options{
		FactoryAddress:     common.HexToAddress(cfg.Chain.ClassFactoryAddress),
		MaxSupply:          cfg.Publishing.MaxSupply,
		RoyaltyBasisPoints: cfg.Publishing.RoyaltyBasisPoints,
		StoreURL:           cfg.Publishing.StoreURL,
	}
	if common.IsHexAddress(cfg.Chain.PlatformOperatorAddress) {
		opts.PlatformOperator = common.HexToAddress(cfg.Chain.PlatformOperatorAddress)
	}
	return New(client, opts, logger)
}

// Salt derives the deterministic class salt from the creator wallet and the
// ebook content id, so a retried creation targets the same class address.
func Salt(wallet common.Address, bookContentID string) [32]byte {
	return crypto.Keccak256Hash(wallet.Bytes(), []byte(bookContentID))
}

func (r *Registrar) Prepare(_ context.Context, item *queue.Item) error {
	if item.ClassCreated() {
		return nil
	}
	if err := stage.RequireField(stageName, "title", item.Title); err != nil {
		return err
	}
	if err := stage.RequireField(stageName, "cover storage id", item.CoverStorageID); err != nil {
		return err
	}
	return stage.RequireField(stageName, "book storage id", item.BookStorageID)
}

// Execute creates the asset class and records its address on item. Items
// that already have a class are left untouched. A class creation broadcast
// by an earlier attempt is awaited rather than sent again, since the
// deterministic salt makes a second creation revert.
func (r *Registrar) Execute(ctx context.Context, item *queue.Item) error {
	if item.ClassCreated() {
		return nil
	}
	logger := logging.WithContext(ctx, r.logger)

	if item.PendingClassTx != "" {
		hash := common.HexToHash(item.PendingClassTx)
		receipt, err := r.chain.Await(ctx, hash, r.opts.Confirmations)
		if err != nil {
			return services.Wrap(services.ErrClassCreationFailed, stageName, "await pending creation", hash.Hex(), err)
		}
		if chain.Succeeded(receipt) {
			return r.record(ctx, item, hash, receipt)
		}
		logger.Warn("pending class creation reverted, sending again",
			logging.String(logging.FieldTxHash, hash.Hex()))
	}

	wallet, err := r.chain.Wallet()
	if err != nil {
		return err
	}
	externalLink := ""
	if r.opts.StoreURL != "" {
		externalLink = r.opts.StoreURL + "/store"
	}
	metadata := BuildMetadata(item, externalLink, r.now())
	encoded, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("encode class metadata: %w", err)
	}

	roles := []common.Address{wallet}
	if r.opts.PlatformOperator != (common.Address{}) && r.opts.PlatformOperator != wallet {
		roles = append(roles, r.opts.PlatformOperator)
	}
	saltSource := item.BookContentID
	if saltSource == "" {
		saltSource = item.BookStorageID
	}
	data, err := chain.PackNewClass(Salt(wallet, saltSource), chain.NewClassMsg{
		Creator:  wallet,
		Updaters: roles,
		Minters:  roles,
		Config: chain.ClassConfig{
			Name:      item.Title,
			Symbol:    classSymbol,
			Metadata:  string(encoded),
			MaxSupply: r.opts.MaxSupply,
		},
	}, r.opts.RoyaltyBasisPoints)
	if err != nil {
		return services.Wrap(services.ErrClassCreationFailed, stageName, "encode call", "", err)
	}

	hash, err := r.chain.Send(ctx, chain.Candidate{
		To:    r.opts.FactoryAddress,
		Data:  data,
		Kind:  chain.KindContractCall,
		Label: "class creation",
	})
	if err != nil {
		return services.Wrap(services.ErrClassCreationFailed, stageName, "send", "", err)
	}
	item.PendingClassTx = hash.Hex()
	if err := stage.SaveCheckpoint(ctx, item); err != nil {
		logger.Warn("could not record pending class creation",
			logging.String(logging.FieldTxHash, item.PendingClassTx),
			logging.Error(err))
	}
	receipt, err := r.chain.Await(ctx, hash, r.opts.Confirmations)
	if err != nil {
		return services.Wrap(services.ErrClassCreationFailed, stageName, "await", hash.Hex(), err)
	}
	if !chain.Succeeded(receipt) {
		return services.Wrap(services.ErrClassCreationFailed, stageName, "await", hash.Hex()+" reverted", nil)
	}
	return r.record(ctx, item, hash, receipt)
}

// record takes the class id from the first log of a successful creation.
func (r *Registrar) record(ctx context.Context, item *queue.Item, hash common.Hash, receipt *types.Receipt) error {
	if len(receipt.Logs) == 0 || receipt.Logs[0] == nil || receipt.Logs[0].Address == (common.Address{}) {
		return services.Wrap(services.ErrClassCreationFailed, stageName, "read class id", "receipt has no class address", nil)
	}

	item.AssetClassID = receipt.Logs[0].Address.Hex()
	item.Advance(queue.StageClassCreated)
	logging.WithContext(ctx, r.logger).Info("asset class created",
		logging.String("class_id", item.AssetClassID),
		logging.String(logging.FieldTxHash, hash.Hex()))
	return nil
}

func (r *Registrar) HealthCheck(context.Context) stage.Health {
	if r.opts.FactoryAddress == (common.Address{}) {
		return stage.Unhealthy(stageName, "class factory address not configured")
	}
	if _, err := r.chain.Wallet(); err != nil {
		return stage.Unhealthy(stageName, err.Error())
	}
	return stage.Healthy(stageName)
}
