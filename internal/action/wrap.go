package action

import (
	"context"

	"EVM-Automator/internal/web3"
)

func (e *Executor) wrappedToken() (Token, error) {
	symbol, addr, err := e.catalog.WrappedNative()
	if err != nil {
		return Token{}, err
	}
	return Token{Symbol: symbol, Address: addr, Decimals: 18}, nil
}

func (e *Executor) resolveWrap(ctx context.Context, signer web3.Signer) (Intent, error) {
	wrapped, err := e.wrappedToken()
	if err != nil {
		return nil, err
	}
	balance, err := e.client.Balance(ctx, signer.Address())
	if err != nil {
		return nil, err
	}
	amount := e.catalog.Amount(balance, e.catalog.Run().Wrap.AmountPercent)
	if amount.Sign() == 0 {
		return nil, zeroAmount("wrap")
	}
	return WrapIntent{NativeSymbol: e.catalog.NativeSymbol(), Wrapped: wrapped, Amount: amount}, nil
}

func (e *Executor) resolveUnwrap(ctx context.Context, signer web3.Signer) (Intent, error) {
	wrapped, err := e.wrappedToken()
	if err != nil {
		return nil, err
	}
	balance, err := e.tokenBalance(ctx, wrapped.Address, signer.Address())
	if err != nil {
		return nil, err
	}
	amount := e.catalog.Amount(balance, e.catalog.Run().UnwrapPercent())
	if amount.Sign() == 0 {
		return nil, zeroAmount("unwrap")
	}
	return UnwrapIntent{NativeSymbol: e.catalog.NativeSymbol(), Wrapped: wrapped, Amount: amount}, nil
}

func (e *Executor) executeWrap(ctx context.Context, signer web3.Signer, in WrapIntent) (web3.Receipt, error) {
	data, err := ERC20ABI.Pack("deposit")
	if err != nil {
		return web3.Receipt{}, err
	}
	return e.submit(ctx, signer, web3.Call{To: in.Wrapped.Address, Data: data, Value: in.Amount})
}

func (e *Executor) executeUnwrap(ctx context.Context, signer web3.Signer, in UnwrapIntent) (web3.Receipt, error) {
	data, err := ERC20ABI.Pack("withdraw", in.Amount)
	if err != nil {
		return web3.Receipt{}, err
	}
	return e.submit(ctx, signer, web3.Call{To: in.Wrapped.Address, Data: data})
}
