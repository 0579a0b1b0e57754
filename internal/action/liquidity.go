package action

import (
	"context"
	"math/big"

	"EVM-Automator/internal/config"
	xerrors "EVM-Automator/internal/errors"
	"EVM-Automator/internal/web3"
)

func (e *Executor) resolveLiquidity(ctx context.Context, signer web3.Signer) (Intent, error) {
	manager, err := e.catalog.PositionManager()
	if err != nil {
		return nil, err
	}
	lp := e.catalog.Run().AddLiquidity
	addrA, err := e.catalog.Token(lp.TokenA)
	if err != nil {
		return nil, err
	}
	addrB, err := e.catalog.Token(lp.TokenB)
	if err != nil {
		return nil, err
	}

	balanceA, err := e.tokenBalance(ctx, addrA, signer.Address())
	if err != nil {
		return nil, err
	}
	balanceB, err := e.tokenBalance(ctx, addrB, signer.Address())
	if err != nil {
		return nil, err
	}
	amountA := e.catalog.Amount(balanceA, lp.AmountAPercent)
	amountB := e.catalog.Amount(balanceB, lp.AmountBPercent)
	if amountA.Sign() == 0 || amountB.Sign() == 0 {
		return nil, zeroAmount("liquidity")
	}

	token0, token1, amount0, amount1 := SortTokens(
		Token{Symbol: lp.TokenA, Address: addrA},
		Token{Symbol: lp.TokenB, Address: addrB},
		amountA, amountB,
	)
	return LiquidityIntent{
		PositionManager: manager,
		Pair:            [2]string{lp.TokenA, lp.TokenB},
		Token0:          token0,
		Token1:          token1,
		Amount0:         amount0,
		Amount1:         amount1,
		Fee:             lp.FeeTier,
		TickLower:       tickOr(lp.TickLower, config.DefaultTickLower),
		TickUpper:       tickOr(lp.TickUpper, config.DefaultTickUpper),
		Deadline:        e.deadline(),
	}, nil
}

func tickOr(v *int32, fallback int32) int32 {
	if v == nil {
		return fallback
	}
	return *v
}

// EncodeMint 构造全区间 mint 调用数据，最小数额为 0。
func EncodeMint(in LiquidityIntent, recipient web3.Signer) ([]byte, error) {
	data, err := PositionManagerABI.Pack("mint", MintParams{
		Token0:         in.Token0.Address,
		Token1:         in.Token1.Address,
		Fee:            new(big.Int).SetUint64(uint64(in.Fee)),
		TickLower:      big.NewInt(int64(in.TickLower)),
		TickUpper:      big.NewInt(int64(in.TickUpper)),
		Amount0Desired: in.Amount0,
		Amount1Desired: in.Amount1,
		Amount0Min:     new(big.Int),
		Amount1Min:     new(big.Int),
		Recipient:      recipient.Address(),
		Deadline:       in.Deadline,
	})
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "encode mint")
	}
	return data, nil
}

func (e *Executor) executeLiquidity(ctx context.Context, signer web3.Signer, in LiquidityIntent) (web3.Receipt, error) {
	if err := e.ensureAllowance(ctx, signer, in.Token0, in.PositionManager, in.Amount0); err != nil {
		return web3.Receipt{}, err
	}
	if err := e.ensureAllowance(ctx, signer, in.Token1, in.PositionManager, in.Amount1); err != nil {
		return web3.Receipt{}, err
	}
	data, err := EncodeMint(in, signer)
	if err != nil {
		return web3.Receipt{}, err
	}
	fees, err := e.currentFees(ctx)
	if err != nil {
		return web3.Receipt{}, err
	}
	return e.submit(ctx, signer, web3.Call{To: in.PositionManager, Data: data, GasLimit: DexGasLimit, Fees: fees})
}
