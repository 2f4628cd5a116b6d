package chain

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

const factoryABIJSON = `[
 {"type":"function","name":"newBookNFT","stateMutability":"nonpayable",
  "inputs":[
   {"name":"salt","type":"bytes32"},
   {"name":"msgNewBookNFT","type":"tuple","components":[
     {"name":"creator","type":"address"},
     {"name":"updaters","type":"address[]"},
     {"name":"minters","type":"address[]"},
     {"name":"config","type":"tuple","components":[
       {"name":"name","type":"string"},
       {"name":"symbol","type":"string"},
       {"name":"metadata","type":"string"},
       {"name":"max_supply","type":"uint64"}]}]},
   {"name":"royaltyFraction","type":"uint96"}],
  "outputs":[{"name":"","type":"address"}]}
]`

const classABIJSON = `[
 {"type":"function","name":"MINTER_ROLE","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"bytes32"}]},
 {"type":"function","name":"UPDATER_ROLE","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"bytes32"}]},
 {"type":"function","name":"hasRole","stateMutability":"view",
  "inputs":[{"name":"role","type":"bytes32"},{"name":"account","type":"address"}],
  "outputs":[{"name":"","type":"bool"}]},
 {"type":"function","name":"grantRole","stateMutability":"nonpayable",
  "inputs":[{"name":"role","type":"bytes32"},{"name":"account","type":"address"}],"outputs":[]},
 {"type":"function","name":"getCurrentIndex","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
 {"type":"function","name":"safeMintWithTokenId","stateMutability":"nonpayable",
  "inputs":[
   {"name":"fromTokenId","type":"uint256"},
   {"name":"to","type":"address[]"},
   {"name":"memos","type":"string[]"},
   {"name":"metadataList","type":"string[]"}],
  "outputs":[]}
]`

var (
	// FactoryABI describes the book NFT class factory.
	FactoryABI = mustParseABI("factory", factoryABIJSON)
	// ClassABI describes a deployed book NFT class.
	ClassABI = mustParseABI("class", classABIJSON)
)

// ClassConfig mirrors the config tuple of newBookNFT.
type ClassConfig struct {
	Name      string
	Symbol    string
	Metadata  string
	MaxSupply uint64
}

// NewClassMsg mirrors the msgNewBookNFT tuple.
type NewClassMsg struct {
	Creator  common.Address
	Updaters []common.Address
	Minters  []common.Address
	Config   ClassConfig
}

// PackNewClass encodes a newBookNFT call.
func PackNewClass(salt [32]byte, msg NewClassMsg, royaltyBasisPoints int64) ([]byte, error) {
	return FactoryABI.Pack("newBookNFT", salt, msg, big.NewInt(royaltyBasisPoints))
}

// UnpackSingle decodes a view call that returns one value of type T.
func UnpackSingle[T any](contract abi.ABI, method string, data []byte) (T, error) {
	var zero T
	values, err := contract.Unpack(method, data)
	if err != nil {
		return zero, fmt.Errorf("decode %s: %w", method, err)
	}
	if len(values) != 1 {
		return zero, fmt.Errorf("decode %s: expected 1 value, got %d", method, len(values))
	}
	v, ok := values[0].(T)
	if !ok {
		return zero, fmt.Errorf("decode %s: unexpected type %T", method, values[0])
	}
	return v, nil
}

func mustParseABI(name, raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("parse %s abi: %v", name, err))
	}
	return parsed
}
