package action

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	xerrors "EVM-Automator/internal/errors"
	"EVM-Automator/internal/web3"
)

// FindRecipient 在近期区块中随机挑选一个外部账户作为收款方。单次采样失败会被忽略。
func (e *Executor) FindRecipient(ctx context.Context) (common.Address, error) {
	rng := e.catalog.Rand()
	for attempt := 1; attempt <= RecipientSearchAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return common.Address{}, err
		}
		latest, err := e.client.BlockNumber(ctx)
		if err != nil {
			e.log.Debug("recipient search: block number failed", "attempt", attempt, "error", err)
			continue
		}
		offset := uint64(attempt + RecipientBlockOffset)
		if latest < offset {
			continue
		}
		txs, err := e.client.BlockTransactions(ctx, latest-offset)
		if err != nil || len(txs) == 0 {
			continue
		}
		candidate := txs[rng.IntN(len(txs))].From
		if candidate == (common.Address{}) {
			continue
		}
		code, err := e.client.Code(ctx, candidate)
		if err != nil || len(code) != 0 {
			continue
		}
		return candidate, nil
	}
	return common.Address{}, xerrors.New(xerrors.CodeRecipientNotFound, "Failed to find a valid recipient")
}

func (e *Executor) resolveSend(ctx context.Context, signer web3.Signer) (Intent, error) {
	send := e.catalog.Run().Send
	tokenAddr, err := e.catalog.Token(send.Token)
	if err != nil {
		return nil, err
	}
	recipient, err := e.FindRecipient(ctx)
	if err != nil {
		return nil, err
	}
	balance, err := e.tokenBalance(ctx, tokenAddr, signer.Address())
	if err != nil {
		return nil, err
	}
	amount := e.catalog.Amount(balance, send.AmountPercent)
	if amount.Sign() == 0 {
		return nil, zeroAmount("send")
	}
	decimals, err := e.decimals(ctx, tokenAddr)
	if err != nil {
		return nil, err
	}
	return SendIntent{
		Token:     Token{Symbol: send.Token, Address: tokenAddr, Decimals: decimals},
		Recipient: recipient,
		Amount:    amount,
	}, nil
}

func (e *Executor) executeSend(ctx context.Context, signer web3.Signer, in SendIntent) (web3.Receipt, error) {
	data, err := ERC20ABI.Pack("transfer", in.Recipient, in.Amount)
	if err != nil {
		return web3.Receipt{}, err
	}
	fees, err := e.currentFees(ctx)
	if err != nil {
		return web3.Receipt{}, err
	}
	return e.submit(ctx, signer, web3.Call{To: in.Token.Address, Data: data, Fees: fees})
}
