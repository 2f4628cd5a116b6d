package chain

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/params"
	"golang.org/x/sync/errgroup"

	"bookpub/internal/logging"
	"bookpub/internal/services"
)

// BalanceReporter receives guard rejections so an operator can act on them.
type BalanceReporter interface {
	NotifyInsufficientBalance(ctx context.Context, wallet, balance, required, contact string) error
}

// GuardResult is advisory; it never mutates chain state.
type GuardResult struct {
	Balance         *big.Int
	GasEstimate     uint64
	GasPrice        *big.Int
	EstimatedCost   *big.Int
	RequiredBalance *big.Int
	// Fallback flags record which inputs came from defaults.
	GasFallback   bool
	PriceFallback bool
}

// InsufficientBalanceError carries the amounts needed to act on a rejection.
type InsufficientBalanceError struct {
	Wallet   common.Address
	Label    string
	Balance  *big.Int
	Required *big.Int
	Contact  string
}

func (e *InsufficientBalanceError) Error() string {
	msg := fmt.Sprintf("wallet %s holds %s ETH but %s needs %s ETH including gas",
		e.Wallet.Hex(), FormatEther(e.Balance), labelOr(e.Label, "this transaction"), FormatEther(e.Required))
	if e.Contact != "" {
		msg += "; top up the wallet or contact support at " + e.Contact
	}
	return msg
}

func (e *InsufficientBalanceError) Unwrap() error { return services.ErrInsufficientBalance }

// GuardOptions configures margins and fallbacks.
type GuardOptions struct {
	MarginPercent    int64
	FallbackGasPrice *big.Int
	SupportContact   string
	Reporter         BalanceReporter
}

// Guard checks that a wallet can afford a transaction before it is sent.
type Guard struct {
	backend          Backend
	marginPercent    int64
	fallbackGasPrice *big.Int
	contact          string
	reporter         BalanceReporter
	logger           *slog.Logger
}

func NewGuard(backend Backend, opts GuardOptions, logger *slog.Logger) *Guard {
	price := opts.FallbackGasPrice
	if price == nil || price.Sign() <= 0 {
		price = big.NewInt(params.GWei)
	}
	return &Guard{
		backend:          backend,
		marginPercent:    opts.MarginPercent,
		fallbackGasPrice: new(big.Int).Set(price),
		contact:          opts.SupportContact,
		reporter:         opts.Reporter,
		logger:           logging.NewComponentLogger(logger, "guard"),
	}
}

// RequiredBalance is gas*price*(100+margin)/100 + value, multiplied before
// dividing so small values do not truncate to zero.
func RequiredBalance(gas uint64, price *big.Int, marginPercent int64, value *big.Int) *big.Int {
	required := new(big.Int).SetUint64(gas)
	required.Mul(required, price)
	required.Mul(required, big.NewInt(100+marginPercent))
	required.Quo(required, big.NewInt(100))
	if value != nil {
		required.Add(required, value)
	}
	return required
}

// AssertAffordable fetches balance, gas estimate, and gas price concurrently
// and fails with *InsufficientBalanceError when the wallet cannot cover the
// candidate. Callers must not send the transaction on error.
func (g *Guard) AssertAffordable(ctx context.Context, wallet common.Address, cand Candidate) (GuardResult, error) {
	var (
		result  GuardResult
		balance *big.Int
	)
	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		b, err := g.backend.BalanceAt(gctx, wallet, nil)
		if err != nil {
			return fmt.Errorf("fetch balance of %s: %w", wallet.Hex(), err)
		}
		balance = b
		return nil
	})
	group.Go(func() error {
		gas, err := g.backend.EstimateGas(gctx, cand.callMsg(wallet))
		if err != nil || gas == 0 {
			result.GasEstimate = cand.Kind.fallbackGas()
			result.GasFallback = true
			g.logger.Debug("gas estimate unavailable, using fallback",
				logging.String("kind", cand.Kind.String()),
				logging.Uint64("gas", result.GasEstimate),
				logging.Any("cause", err))
			return nil
		}
		result.GasEstimate = gas
		return nil
	})
	group.Go(func() error {
		price, err := g.backend.SuggestGasPrice(gctx)
		if err != nil || price == nil || price.Sign() <= 0 {
			result.GasPrice = new(big.Int).Set(g.fallbackGasPrice)
			result.PriceFallback = true
			return nil
		}
		result.GasPrice = price
		return nil
	})
	if err := group.Wait(); err != nil {
		return GuardResult{}, err
	}

	result.Balance = balance
	result.EstimatedCost = new(big.Int).Mul(new(big.Int).SetUint64(result.GasEstimate), result.GasPrice)
	result.RequiredBalance = RequiredBalance(result.GasEstimate, result.GasPrice, g.marginPercent, cand.value())

	if balance.Cmp(result.RequiredBalance) >= 0 {
		return result, nil
	}

	rejection := &InsufficientBalanceError{
		Wallet:   wallet,
		Label:    cand.Label,
		Balance:  balance,
		Required: result.RequiredBalance,
		Contact:  g.contact,
	}
	logging.WarnWithContext(logging.WithContext(ctx, g.logger), "transaction blocked by balance guard", "insufficient_balance",
		logging.String("wallet", wallet.Hex()),
		logging.String("operation", labelOr(cand.Label, cand.Kind.String())),
		logging.String("balance_eth", FormatEther(balance)),
		logging.String("required_eth", FormatEther(result.RequiredBalance)),
		logging.String(logging.FieldErrorHint, "top up the wallet or contact support"),
	)
	if g.reporter != nil {
		if err := g.reporter.NotifyInsufficientBalance(ctx, wallet.Hex(), FormatEther(balance), FormatEther(result.RequiredBalance), g.contact); err != nil {
			g.logger.Debug("balance notification failed", logging.Error(err))
		}
	}
	return result, rejection
}

// FormatEther renders wei as a decimal ETH string without float rounding.
func FormatEther(wei *big.Int) string {
	if wei == nil {
		return "0"
	}
	r := new(big.Rat).SetFrac(wei, big.NewInt(params.Ether))
	s := r.FloatString(18)
	for len(s) > 1 && s[len(s)-1] == '0' {
		s = s[:len(s)-1]
	}
	if s[len(s)-1] == '.' {
		s = s[:len(s)-1]
	}
	return s
}

func labelOr(label, fallback string) string {
	if label == "" {
		return fallback
	}
	return label
}
