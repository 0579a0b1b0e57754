package action

import (
	"context"
	"math/big"

	xerrors "EVM-Automator/internal/errors"
	"EVM-Automator/internal/web3"
)

func (e *Executor) resolveSwap(ctx context.Context, signer web3.Signer) (Intent, error) {
	router, err := e.catalog.Router()
	if err != nil {
		return nil, err
	}
	inSymbol, outSymbol, err := e.catalog.PickPair()
	if err != nil {
		return nil, err
	}
	inAddr, err := e.catalog.Token(inSymbol)
	if err != nil {
		return nil, err
	}
	outAddr, err := e.catalog.Token(outSymbol)
	if err != nil {
		return nil, err
	}

	balance, err := e.tokenBalance(ctx, inAddr, signer.Address())
	if err != nil {
		return nil, err
	}
	swap := e.catalog.Run().Swap
	amount := e.catalog.Amount(balance, swap.AmountInPercent)
	if amount.Sign() == 0 {
		return nil, xerrors.Newf(xerrors.CodeZeroAmount, "Calculated swap amount for %s is 0", inSymbol)
	}
	decimals, err := e.decimals(ctx, inAddr)
	if err != nil {
		return nil, err
	}

	return SwapIntent{
		Router:   router,
		TokenIn:  Token{Symbol: inSymbol, Address: inAddr, Decimals: decimals},
		TokenOut: Token{Symbol: outSymbol, Address: outAddr},
		AmountIn: amount,
		Fee:      swap.FeeTier,
		Deadline: e.deadline(),
	}, nil
}

// EncodeSwap 构造 multicall(deadline, [exactInputSingle]) 调用数据，不设最小输出与价格限制。
func EncodeSwap(in SwapIntent, recipient web3.Signer) ([]byte, error) {
	inner, err := RouterABI.Pack("exactInputSingle", ExactInputSingleParams{
		TokenIn:           in.TokenIn.Address,
		TokenOut:          in.TokenOut.Address,
		Fee:               new(big.Int).SetUint64(uint64(in.Fee)),
		Recipient:         recipient.Address(),
		AmountIn:          in.AmountIn,
		AmountOutMinimum:  new(big.Int),
		SqrtPriceLimitX96: new(big.Int),
	})
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "encode exactInputSingle")
	}
	data, err := RouterABI.Pack("multicall", in.Deadline, [][]byte{inner})
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "encode multicall")
	}
	return data, nil
}

func (e *Executor) executeSwap(ctx context.Context, signer web3.Signer, in SwapIntent) (web3.Receipt, error) {
	if err := e.ensureAllowance(ctx, signer, in.TokenIn, in.Router, in.AmountIn); err != nil {
		return web3.Receipt{}, err
	}
	data, err := EncodeSwap(in, signer)
	if err != nil {
		return web3.Receipt{}, err
	}
	fees, err := e.currentFees(ctx)
	if err != nil {
		return web3.Receipt{}, err
	}
	return e.submit(ctx, signer, web3.Call{To: in.Router, Data: data, GasLimit: DexGasLimit, Fees: fees})
}
