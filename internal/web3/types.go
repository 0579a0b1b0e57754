package web3

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// FeeData carries the EIP-1559 pricing used for outgoing transactions.
type FeeData struct {
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
}

// Call is a populated, not yet signed, state-changing call.
type Call struct {
	To       common.Address
	Data     []byte
	Value    *big.Int
	GasLimit uint64
	// Fees are fetched from the node when left nil.
	Fees *FeeData
}

// Receipt summarises a confirmed transaction.
type Receipt struct {
	Hash        common.Hash
	GasUsed     uint64
	BlockNumber uint64
}

// TxSummary is the subset of a block transaction needed by callers.
type TxSummary struct {
	Hash common.Hash
	From common.Address
}

// Signer is the signing capability bound to a wallet identity.
type Signer interface {
	Address() common.Address
	SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error)
}

// Client defines what the automation engine needs from an EVM network.
type Client interface {
	Balance(ctx context.Context, account common.Address) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
	BlockTransactions(ctx context.Context, number uint64) ([]TxSummary, error)
	Code(ctx context.Context, account common.Address) ([]byte, error)
	FeeData(ctx context.Context) (FeeData, error)
	Call(ctx context.Context, to common.Address, data []byte) ([]byte, error)
	Submit(ctx context.Context, signer Signer, call Call) (*types.Transaction, error)
	Wait(ctx context.Context, tx *types.Transaction) (Receipt, error)
	Close()
}
