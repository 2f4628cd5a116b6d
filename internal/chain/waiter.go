package chain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"bookpub/internal/logging"
	"bookpub/internal/services"
)

// WaiterOptions configures receipt polling.
type WaiterOptions struct {
	PollInterval time.Duration
	// Timeout bounds one polling window. Zero means a single lookup.
	Timeout time.Duration
	// RetryDelay is slept once before the second and final window.
	RetryDelay time.Duration
}

// Waiter polls for transaction receipts. A receipt that is still missing
// after the first window gets exactly one more window after RetryDelay; the
// broadcast-to-index race on public RPC nodes rarely outlasts that.
type Waiter struct {
	backend Backend
	opts    WaiterOptions
	logger  *slog.Logger
	sleep   func(context.Context, time.Duration) error
}

func NewWaiter(backend Backend, opts WaiterOptions, logger *slog.Logger) *Waiter {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Second
	}
	return &Waiter{
		backend: backend,
		opts:    opts,
		logger:  logging.NewComponentLogger(logger, "waiter"),
		sleep:   sleepContext,
	}
}

// Await returns the receipt for hash once it has at least confirmations
// blocks on top (counting its own). A receipt that never appears yields an
// error wrapping services.ErrReceiptNotFound.
func (w *Waiter) Await(ctx context.Context, hash common.Hash, confirmations int) (*types.Receipt, error) {
	receipt, err := w.window(ctx, hash)
	if errors.Is(err, ethereum.NotFound) {
		logging.WithContext(ctx, w.logger).Info("receipt not indexed yet, retrying once",
			logging.String(logging.FieldTxHash, hash.Hex()),
			logging.Duration("delay", w.opts.RetryDelay))
		if err := w.sleep(ctx, w.opts.RetryDelay); err != nil {
			return nil, err
		}
		receipt, err = w.window(ctx, hash)
	}
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return nil, services.Wrap(services.ErrReceiptNotFound, "", "await receipt", hash.Hex(), err)
		}
		return nil, fmt.Errorf("await receipt %s: %w", hash.Hex(), err)
	}
	if confirmations > 1 {
		if err := w.awaitDepth(ctx, receipt, confirmations); err != nil {
			return nil, err
		}
	}
	return receipt, nil
}

func (w *Waiter) window(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	deadline := time.Now().Add(w.opts.Timeout)
	for {
		receipt, err := w.backend.TransactionReceipt(ctx, hash)
		if err == nil && receipt != nil {
			return receipt, nil
		}
		if err == nil {
			err = ethereum.NotFound
		}
		if !errors.Is(err, ethereum.NotFound) {
			return nil, err
		}
		if !time.Now().Add(w.opts.PollInterval).Before(deadline) {
			return nil, err
		}
		if err := w.sleep(ctx, w.opts.PollInterval); err != nil {
			return nil, err
		}
	}
}

func (w *Waiter) awaitDepth(ctx context.Context, receipt *types.Receipt, confirmations int) error {
	if receipt.BlockNumber == nil {
		return nil
	}
	target := receipt.BlockNumber.Uint64() + uint64(confirmations) - 1
	for {
		head, err := w.backend.BlockNumber(ctx)
		if err != nil {
			return fmt.Errorf("read block number: %w", err)
		}
		if head >= target {
			return nil
		}
		if err := w.sleep(ctx, w.opts.PollInterval); err != nil {
			return err
		}
	}
}

// Succeeded reports whether the receipt exists and did not revert.
func Succeeded(r *types.Receipt) bool {
	return r != nil && r.Status == types.ReceiptStatusSuccessful
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
