package chain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Backend is the JSON-RPC surface the pipeline needs. *ethclient.Client
// satisfies it; tests substitute an in-memory fake.
type Backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// Kind selects the gas fallback used when estimation fails.
type Kind int

const (
	KindTransfer Kind = iota
	KindContractCall
)

const (
	FallbackTransferGas     uint64 = 21_000
	FallbackContractCallGas uint64 = 1_500_000
)

func (k Kind) fallbackGas() uint64 {
	if k == KindContractCall {
		return FallbackContractCallGas
	}
	return FallbackTransferGas
}

func (k Kind) String() string {
	if k == KindContractCall {
		return "contract_call"
	}
	return "transfer"
}

// Candidate describes a transaction before it is priced, signed, and sent.
type Candidate struct {
	To    common.Address
	Value *big.Int
	Data  []byte
	Kind  Kind
	// Label names the operation in logs and errors, e.g. "storage fee".
	Label string
}

func (c Candidate) value() *big.Int {
	if c.Value == nil {
		return new(big.Int)
	}
	return c.Value
}

func (c Candidate) callMsg(from common.Address) ethereum.CallMsg {
	to := c.To
	return ethereum.CallMsg{From: from, To: &to, Value: c.value(), Data: c.Data}
}
