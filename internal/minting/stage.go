package minting

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"bookpub/internal/chain"
	"bookpub/internal/config"
	"bookpub/internal/logging"
	"bookpub/internal/queue"
	"bookpub/internal/services"
	"bookpub/internal/stage"
)

const (
	stageName         = "minting"
	defaultMintAmount = 50
)

// Chain is the subset of *chain.Client the stage reads and writes through.
type Chain interface {
	Wallet() (common.Address, error)
	Call(ctx context.Context, to common.Address, data []byte) ([]byte, error)
	Send(ctx context.Context, cand chain.Candidate) (common.Hash, error)
	Await(ctx context.Context, hash common.Hash, confirmations int) (*types.Receipt, error)
}

// Options configures minting.
type Options struct {
	MintAmount    int
	StoreURL      string
	Confirmations int
}

// Minter mints the initial copies of a book into the publisher's wallet.
type Minter struct {
	chain  Chain
	opts   Options
	logger *slog.Logger
}

// New constructs the minting stage.
func New(client Chain, opts Options, logger *slog.Logger) *Minter {
	if opts.MintAmount <= 0 {
		opts.MintAmount = defaultMintAmount
	}
	if opts.Confirmations <= 0 {
		opts.Confirmations = 1
	}
	opts.StoreURL = strings.TrimRight(opts.StoreURL, "/")
	return &Minter{
		chain:  client,
		opts:   opts,
		logger: logging.NewComponentLogger(logger, stageName),
	}
}

// NewFromConfig builds the stage from the [publishing] section.
func NewFromConfig(cfg *config.Config, client Chain, logger *slog.Logger) *Minter {
	return New(client, Options{
		MintAmount: cfg.Publishing.MintAmount,
		StoreURL:   cfg.Publishing.StoreURL,
	}, logger)
}

func (m *Minter) Prepare(_ context.Context, item *queue.Item) error {
	if item.Minted() {
		return nil
	}
	if err := stage.RequireField(stageName, "asset class id", item.AssetClassID); err != nil {
		return err
	}
	if !common.IsHexAddress(item.AssetClassID) {
		return services.Wrap(services.ErrValidation, stageName, "prepare",
			fmt.Sprintf("asset class id %q is not an address", item.AssetClassID), nil)
	}
	return stage.RequireField(stageName, "cover storage id", item.CoverStorageID)
}

// Execute mints MintAmount copies and records the mint transaction hash.
// Items that were already minted are left untouched. A mint broadcast by an
// earlier attempt is awaited rather than sent again.
func (m *Minter) Execute(ctx context.Context, item *queue.Item) error {
	if item.Minted() {
		return nil
	}
	logger := logging.WithContext(ctx, m.logger)

	if item.PendingMintTx != "" {
		done, err := m.resumePending(ctx, item)
		if err != nil || done {
			return err
		}
	}

	wallet, err := m.chain.Wallet()
	if err != nil {
		return err
	}
	class := common.HexToAddress(item.AssetClassID)
	if err := m.ensureMinter(ctx, class, wallet); err != nil {
		return err
	}

	from, err := m.currentIndex(ctx, class)
	if err != nil {
		return err
	}
	count := m.opts.MintAmount
	recipients := make([]common.Address, count)
	memos := make([]string, count)
	metadata := make([]string, count)
	for i := range count {
		id := new(big.Int).Add(from, big.NewInt(int64(i)))
		encoded, err := json.Marshal(BuildTokenMetadata(item, m.opts.StoreURL, id))
		if err != nil {
			return fmt.Errorf("encode token metadata: %w", err)
		}
		recipients[i] = wallet
		metadata[i] = string(encoded)
	}

	data, err := chain.ClassABI.Pack("safeMintWithTokenId", from, recipients, memos, metadata)
	if err != nil {
		return services.Wrap(services.ErrMintFailed, stageName, "encode call", "", err)
	}
	hash, err := m.broadcast(ctx, class, data, "mint")
	if err != nil {
		return err
	}
	item.PendingMintTx = hash.Hex()
	if err := stage.SaveCheckpoint(ctx, item); err != nil {
		logger.Warn("could not record pending mint",
			logging.String(logging.FieldTxHash, item.PendingMintTx),
			logging.Error(err))
	}
	if err := m.confirm(ctx, hash, "mint"); err != nil {
		return err
	}

	item.MintTxHash = hash.Hex()
	item.Advance(queue.StageMinted)
	logger.Info("tokens minted",
		logging.String("class_id", item.AssetClassID),
		logging.String(logging.FieldTxHash, item.MintTxHash),
		logging.String("from_token_id", from.String()),
		logging.Int("count", count))
	return nil
}

// resumePending awaits the mint recorded by an earlier attempt. It reports
// done once that mint has landed. A reverted mint minted nothing and may be
// sent again; a receipt that is still missing fails the stage without
// sending.
func (m *Minter) resumePending(ctx context.Context, item *queue.Item) (bool, error) {
	logger := logging.WithContext(ctx, m.logger)
	hash := common.HexToHash(item.PendingMintTx)
	receipt, err := m.chain.Await(ctx, hash, m.opts.Confirmations)
	if err != nil {
		return false, services.Wrap(services.ErrMintFailed, stageName, "await pending mint", hash.Hex(), err)
	}
	if !chain.Succeeded(receipt) {
		logger.Warn("pending mint reverted, sending again",
			logging.String(logging.FieldTxHash, hash.Hex()))
		return false, nil
	}
	item.MintTxHash = hash.Hex()
	item.Advance(queue.StageMinted)
	logger.Info("pending mint confirmed",
		logging.String("class_id", item.AssetClassID),
		logging.String(logging.FieldTxHash, item.MintTxHash))
	return true, nil
}

// ensureMinter grants MINTER_ROLE to wallet on class when it is missing.
func (m *Minter) ensureMinter(ctx context.Context, class, wallet common.Address) error {
	role, err := m.minterRole(ctx, class)
	if err != nil {
		return err
	}
	data, err := chain.ClassABI.Pack("hasRole", role, wallet)
	if err != nil {
		return services.Wrap(services.ErrMintFailed, stageName, "encode hasRole", "", err)
	}
	out, err := m.chain.Call(ctx, class, data)
	if err != nil {
		return services.Wrap(services.ErrMintFailed, stageName, "check minter role", "", err)
	}
	has, err := chain.UnpackSingle[bool](chain.ClassABI, "hasRole", out)
	if err != nil {
		return services.Wrap(services.ErrMintFailed, stageName, "check minter role", "", err)
	}
	if has {
		return nil
	}

	data, err = chain.ClassABI.Pack("grantRole", role, wallet)
	if err != nil {
		return services.Wrap(services.ErrMintFailed, stageName, "encode grantRole", "", err)
	}
	hash, err := m.send(ctx, class, data, "minter role grant")
	if err != nil {
		return err
	}
	logging.WithContext(ctx, m.logger).Info("minter role granted",
		logging.String("class_id", class.Hex()),
		logging.String(logging.FieldTxHash, hash.Hex()))
	return nil
}

func (m *Minter) minterRole(ctx context.Context, class common.Address) ([32]byte, error) {
	data, err := chain.ClassABI.Pack("MINTER_ROLE")
	if err != nil {
		return [32]byte{}, services.Wrap(services.ErrMintFailed, stageName, "encode MINTER_ROLE", "", err)
	}
	out, err := m.chain.Call(ctx, class, data)
	if err != nil {
		return [32]byte{}, services.Wrap(services.ErrMintFailed, stageName, "read minter role", "", err)
	}
	role, err := chain.UnpackSingle[[32]byte](chain.ClassABI, "MINTER_ROLE", out)
	if err != nil {
		return [32]byte{}, services.Wrap(services.ErrMintFailed, stageName, "read minter role", "", err)
	}
	return role, nil
}

func (m *Minter) currentIndex(ctx context.Context, class common.Address) (*big.Int, error) {
	data, err := chain.ClassABI.Pack("getCurrentIndex")
	if err != nil {
		return nil, services.Wrap(services.ErrMintFailed, stageName, "encode getCurrentIndex", "", err)
	}
	out, err := m.chain.Call(ctx, class, data)
	if err != nil {
		return nil, services.Wrap(services.ErrMintFailed, stageName, "read current index", "", err)
	}
	index, err := chain.UnpackSingle[*big.Int](chain.ClassABI, "getCurrentIndex", out)
	if err != nil {
		return nil, services.Wrap(services.ErrMintFailed, stageName, "read current index", "", err)
	}
	return index, nil
}

func (m *Minter) send(ctx context.Context, to common.Address, data []byte, label string) (common.Hash, error) {
	hash, err := m.broadcast(ctx, to, data, label)
	if err != nil {
		return common.Hash{}, err
	}
	return hash, m.confirm(ctx, hash, label)
}

func (m *Minter) broadcast(ctx context.Context, to common.Address, data []byte, label string) (common.Hash, error) {
	hash, err := m.chain.Send(ctx, chain.Candidate{
		To:    to,
		Data:  data,
		Kind:  chain.KindContractCall,
		Label: label,
	})
	if err != nil {
		return common.Hash{}, services.Wrap(services.ErrMintFailed, stageName, label, "", err)
	}
	return hash, nil
}

func (m *Minter) confirm(ctx context.Context, hash common.Hash, label string) error {
	receipt, err := m.chain.Await(ctx, hash, m.opts.Confirmations)
	if err != nil {
		return services.Wrap(services.ErrMintFailed, stageName, label, hash.Hex(), err)
	}
	if !chain.Succeeded(receipt) {
		return services.Wrap(services.ErrMintFailed, stageName, label, hash.Hex()+" reverted", nil)
	}
	return nil
}

func (m *Minter) HealthCheck(context.Context) stage.Health {
	if _, err := m.chain.Wallet(); err != nil {
		return stage.Unhealthy(stageName, err.Error())
	}
	return stage.Healthy(stageName)
}
