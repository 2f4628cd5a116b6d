package chain

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"bookpub/internal/config"
	"bookpub/internal/logging"
	"bookpub/internal/services"
)

// Client bundles the RPC backend, the signer, the balance guard, and the
// receipt waiter. Construct one per process and pass it to every stage.
type Client struct {
	backend       Backend
	signer        Signer
	chainID       *big.Int
	marginPercent int64
	guard         *Guard
	waiter        *Waiter
	logger        *slog.Logger
	closer        func()
}

// Options configures a Client.
type Options struct {
	ChainID *big.Int
	Guard   GuardOptions
	Waiter  WaiterOptions
}

// New wires a Client around an existing backend. signer may be nil, in which
// case every write fails with services.ErrWalletNotConnected.
func New(backend Backend, signer Signer, opts Options, logger *slog.Logger) *Client {
	chainID := opts.ChainID
	if chainID == nil {
		chainID = big.NewInt(1)
	}
	return &Client{
		backend:       backend,
		signer:        signer,
		chainID:       chainID,
		marginPercent: opts.Guard.MarginPercent,
		guard:         NewGuard(backend, opts.Guard, logger),
		waiter:        NewWaiter(backend, opts.Waiter, logger),
		logger:        logging.NewComponentLogger(logger, "chain"),
	}
}

// Dial connects to cfg.Chain.RPCURL and builds a Client. The signer is read
// from the configured environment variable; a missing key yields a
// read-only client rather than an error.
func Dial(ctx context.Context, cfg *config.Config, reporter BalanceReporter, logger *slog.Logger) (*Client, error) {
	rpc, err := ethclient.DialContext(ctx, cfg.Chain.RPCURL)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "chain", "dial", cfg.Chain.RPCURL, err)
	}
	var signer Signer
	if key := cfg.PrivateKey(); key != "" {
		ks, err := NewKeySigner(key)
		if err != nil {
			rpc.Close()
			return nil, services.Wrap(services.ErrConfiguration, "chain", "load signer", cfg.Chain.PrivateKeyEnv, err)
		}
		signer = ks
	}
	client := New(rpc, signer, Options{
		ChainID: big.NewInt(cfg.Chain.ChainID),
		Guard: GuardOptions{
			MarginPercent:    int64(cfg.Chain.GasMarginPercent),
			FallbackGasPrice: big.NewInt(cfg.Chain.FallbackGasPriceWei),
			SupportContact:   cfg.Publishing.SupportContact,
			Reporter:         reporter,
		},
		Waiter: WaiterOptions{
			PollInterval: cfg.ReceiptPollInterval(),
			Timeout:      cfg.ReceiptTimeout(),
			RetryDelay:   cfg.ReceiptRetryDelay(),
		},
	}, logger)
	client.closer = rpc.Close
	return client, nil
}

// Close releases the RPC connection when the client owns one.
func (c *Client) Close() {
	if c != nil && c.closer != nil {
		c.closer()
	}
}

// Wallet returns the signing address or services.ErrWalletNotConnected.
func (c *Client) Wallet() (common.Address, error) {
	if c == nil || c.signer == nil {
		return common.Address{}, services.Wrap(services.ErrWalletNotConnected, "chain", "", "no signing key configured", nil)
	}
	return c.signer.Address(), nil
}

func (c *Client) ChainID() *big.Int { return new(big.Int).Set(c.chainID) }

// VerifyChainID compares the node's chain id with the configured one.
func (c *Client) VerifyChainID(ctx context.Context) error {
	remote, err := c.backend.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("query chain id: %w", err)
	}
	if remote.Cmp(c.chainID) != 0 {
		return services.Wrap(services.ErrConfiguration, "chain", "verify chain id",
			fmt.Sprintf("node reports %s, config expects %s", remote, c.chainID), nil)
	}
	return nil
}

// Balance returns the wallet balance in wei.
func (c *Client) Balance(ctx context.Context) (*big.Int, error) {
	wallet, err := c.Wallet()
	if err != nil {
		return nil, err
	}
	return c.backend.BalanceAt(ctx, wallet, nil)
}

// Call executes a read-only contract call from the wallet (or the zero
// address when no signer is configured).
func (c *Client) Call(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	var from common.Address
	if c.signer != nil {
		from = c.signer.Address()
	}
	out, err := c.backend.CallContract(ctx, ethereum.CallMsg{From: from, To: &to, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", to.Hex(), err)
	}
	return out, nil
}

// Send runs the balance guard, then prices, signs, and broadcasts cand.
// Nothing is broadcast when the guard rejects.
func (c *Client) Send(ctx context.Context, cand Candidate) (common.Hash, error) {
	wallet, err := c.Wallet()
	if err != nil {
		return common.Hash{}, err
	}
	quote, err := c.guard.AssertAffordable(ctx, wallet, cand)
	if err != nil {
		return common.Hash{}, err
	}
	nonce, err := c.backend.PendingNonceAt(ctx, wallet)
	if err != nil {
		return common.Hash{}, fmt.Errorf("pending nonce for %s: %w", wallet.Hex(), err)
	}
	to := cand.To
	gasLimit := quote.GasEstimate + quote.GasEstimate*uint64(c.marginPercent)/100
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: quote.GasPrice,
		Gas:      gasLimit,
		To:       &to,
		Value:    cand.value(),
		Data:     cand.Data,
	})
	signed, err := c.signer.SignTx(tx, c.chainID)
	if err != nil {
		return common.Hash{}, fmt.Errorf("sign %s: %w", labelOr(cand.Label, cand.Kind.String()), err)
	}
	if err := c.backend.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, fmt.Errorf("broadcast %s: %w", labelOr(cand.Label, cand.Kind.String()), err)
	}
	logging.WithContext(ctx, c.logger).Info("transaction sent",
		logging.String("operation", labelOr(cand.Label, cand.Kind.String())),
		logging.String(logging.FieldTxHash, signed.Hash().Hex()),
		logging.Uint64("gas_limit", gasLimit),
		logging.String("value_eth", FormatEther(cand.value())))
	return signed.Hash(), nil
}

// Await waits for a receipt; see Waiter.Await.
func (c *Client) Await(ctx context.Context, hash common.Hash, confirmations int) (*types.Receipt, error) {
	return c.waiter.Await(ctx, hash, confirmations)
}

// Guard exposes the balance guard for pre-flight checks.
func (c *Client) Guard() *Guard { return c.guard }
