package action

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	xerrors "EVM-Automator/internal/errors"
)

func (e *Executor) callERC20(ctx context.Context, token common.Address, method string, args ...any) ([]any, error) {
	data, err := ERC20ABI.Pack(method, args...)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "encode "+method)
	}
	raw, err := e.client.Call(ctx, token, data)
	if err != nil {
		return nil, err
	}
	out, err := ERC20ABI.Unpack(method, raw)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeChainFailure, err, fmt.Sprintf("decode %s from %s", method, token.Hex()))
	}
	return out, nil
}

func (e *Executor) tokenBalance(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	out, err := e.callERC20(ctx, token, "balanceOf", owner)
	if err != nil {
		return nil, err
	}
	return uintResult(out, "balanceOf")
}

func (e *Executor) allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error) {
	out, err := e.callERC20(ctx, token, "allowance", owner, spender)
	if err != nil {
		return nil, err
	}
	return uintResult(out, "allowance")
}

func (e *Executor) decimals(ctx context.Context, token common.Address) (uint8, error) {
	out, err := e.callERC20(ctx, token, "decimals")
	if err != nil {
		return 0, err
	}
	if len(out) == 1 {
		if d, ok := out[0].(uint8); ok {
			return d, nil
		}
	}
	return 0, xerrors.New(xerrors.CodeChainFailure, "unexpected decimals result")
}

func uintResult(out []any, method string) (*big.Int, error) {
	if len(out) == 1 {
		if v, ok := out[0].(*big.Int); ok {
			return v, nil
		}
	}
	return nil, xerrors.Newf(xerrors.CodeChainFailure, "unexpected %s result", method)
}
