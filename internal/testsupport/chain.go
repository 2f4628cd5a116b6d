package testsupport

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"bookpub/internal/chain"
	"bookpub/internal/logging"
)

// TestPrivateKey is a throwaway key used only by tests.
const TestPrivateKey = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

// TestChainID is the chain id used by NewChainClient.
var TestChainID = big.NewInt(1337)

// CallHandler answers a decoded contract call with output values.
type CallHandler func(args []any) ([]any, error)

// FakeBackend is an in-memory chain.Backend. Every sent transaction mines
// immediately at Head unless Receipt overrides the result.
type FakeBackend struct {
	mu sync.Mutex

	Head     uint64
	Balance  *big.Int
	Gas      uint64
	GasErr   error
	Price    *big.Int
	PriceErr error
	SendErr  error

	// MissingReceipts makes that many receipt lookups report NotFound first.
	MissingReceipts int
	ReceiptLookups  int
	// Receipt customises the receipt for a sent transaction.
	Receipt func(tx *types.Transaction) *types.Receipt

	Sent     []*types.Transaction
	handlers map[string]callRoute
}

type callRoute struct {
	to      *common.Address
	method  abi.Method
	handler CallHandler
}

// NewFakeBackend returns a backend with a generous balance and 1 gwei gas.
func NewFakeBackend() *FakeBackend {
	return &FakeBackend{
		Head:     100,
		Balance:  new(big.Int).Mul(big.NewInt(10), big.NewInt(1e18)),
		Gas:      50_000,
		Price:    big.NewInt(1_000_000_000),
		handlers: make(map[string]callRoute),
	}
}

// Handle registers a handler for method calls on any address.
func (f *FakeBackend) Handle(contract abi.ABI, method string, handler CallHandler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := contract.Methods[method]
	if !ok {
		panic("testsupport: unknown method " + method)
	}
	f.handlers[string(m.ID)] = callRoute{method: m, handler: handler}
}

func (f *FakeBackend) ChainID(context.Context) (*big.Int, error) {
	return new(big.Int).Set(TestChainID), nil
}

func (f *FakeBackend) BlockNumber(context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	head := f.Head
	// Each poll advances the chain so confirmation waits terminate.
	f.Head++
	return head, nil
}

func (f *FakeBackend) BalanceAt(context.Context, common.Address, *big.Int) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return new(big.Int).Set(f.Balance), nil
}

func (f *FakeBackend) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return uint64(len(f.Sent)), nil
}

func (f *FakeBackend) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Gas, f.GasErr
}

func (f *FakeBackend) SuggestGasPrice(context.Context) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PriceErr != nil {
		return nil, f.PriceErr
	}
	return new(big.Int).Set(f.Price), nil
}

func (f *FakeBackend) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	if len(msg.Data) < 4 {
		return nil, errors.New("fake backend: call data too short")
	}
	f.mu.Lock()
	route, ok := f.handlers[string(msg.Data[:4])]
	f.mu.Unlock()
	if !ok {
		return nil, errors.New("fake backend: no handler for selector")
	}
	args, err := route.method.Inputs.Unpack(msg.Data[4:])
	if err != nil {
		return nil, err
	}
	out, err := route.handler(args)
	if err != nil {
		return nil, err
	}
	return route.method.Outputs.Pack(out...)
}

func (f *FakeBackend) SendTransaction(_ context.Context, tx *types.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SendErr != nil {
		return f.SendErr
	}
	f.Sent = append(f.Sent, tx)
	return nil
}

func (f *FakeBackend) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ReceiptLookups++
	if f.MissingReceipts > 0 {
		f.MissingReceipts--
		return nil, ethereum.NotFound
	}
	for _, tx := range f.Sent {
		if tx.Hash() != hash {
			continue
		}
		if f.Receipt != nil {
			if r := f.Receipt(tx); r != nil {
				return r, nil
			}
		}
		return &types.Receipt{
			Status:      types.ReceiptStatusSuccessful,
			TxHash:      hash,
			BlockNumber: new(big.Int).SetUint64(f.Head),
		}, nil
	}
	return nil, ethereum.NotFound
}

// SentCount returns the number of broadcast transactions.
func (f *FakeBackend) SentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Sent)
}

// SentTo returns the broadcast transactions addressed to addr.
func (f *FakeBackend) SentTo(addr common.Address) []*types.Transaction {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*types.Transaction
	for _, tx := range f.Sent {
		if tx.To() != nil && *tx.To() == addr {
			out = append(out, tx)
		}
	}
	return out
}

// MustSigner returns the test key signer.
func MustSigner(t testing.TB) *chain.KeySigner {
	t.Helper()
	signer, err := chain.NewKeySigner(TestPrivateKey)
	if err != nil {
		t.Fatalf("NewKeySigner: %v", err)
	}
	return signer
}

// NewChainClient wires a chain.Client around backend with the test signer
// and zero-delay receipt polling.
func NewChainClient(t testing.TB, backend chain.Backend) *chain.Client {
	t.Helper()
	return chain.New(backend, MustSigner(t), chain.Options{
		ChainID: TestChainID,
		Guard:   chain.GuardOptions{MarginPercent: 20},
		Waiter:  chain.WaiterOptions{PollInterval: time.Millisecond},
	}, logging.NewNop())
}
