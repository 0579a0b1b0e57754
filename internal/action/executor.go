package action

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"

	xerrors "EVM-Automator/internal/errors"
	"EVM-Automator/internal/ledger"
	"EVM-Automator/internal/web3"
	"EVM-Automator/pkg/logger"
)

const (
	// DexGasLimit 是 swap 与 mint 使用的固定 gas 上限。
	DexGasLimit uint64 = 1_000_000
	// DeadlineWindow 是路由调用的有效期。
	DeadlineWindow = 20 * time.Minute
	// RecipientSearchAttempts 是寻找收款地址时最多采样的区块数。
	RecipientSearchAttempts = 10
	// RecipientBlockOffset 使采样区块落在最新区块之后若干个。
	RecipientBlockOffset = 4
)

// Recorder 接收交易记录，不返回错误。
type Recorder interface {
	Record(ctx context.Context, entry ledger.Entry)
}

// Options 调整执行器的等待行为。
type Options struct {
	ApprovalSettle time.Duration
	Sleep          SleepFunc
	Now            func() time.Time
}

// Executor 解析并执行各类动作。
type Executor struct {
	client         web3.Client
	catalog        *Catalog
	recorder       Recorder
	approvalSettle time.Duration
	sleep          SleepFunc
	now            func() time.Time
	log            *slog.Logger
}

// NewExecutor 创建执行器。
func NewExecutor(client web3.Client, catalog *Catalog, recorder Recorder, opts Options) *Executor {
	if opts.Sleep == nil {
		opts.Sleep = Sleep
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Executor{
		client:         client,
		catalog:        catalog,
		recorder:       recorder,
		approvalSettle: opts.ApprovalSettle,
		sleep:          opts.Sleep,
		now:            opts.Now,
		log:            logger.Named("action"),
	}
}

// Perform 基于最新链上状态解析意图并执行，用于每一次尝试。
func (e *Executor) Perform(ctx context.Context, signer web3.Signer, kind Kind) error {
	intent, err := e.Resolve(ctx, signer, kind)
	if err != nil {
		return err
	}
	_, err = e.Execute(ctx, signer, intent)
	return err
}

// Resolve 读取余额并随机化参数。数额为 0 或配置缺失时返回错误，不写记录。
func (e *Executor) Resolve(ctx context.Context, signer web3.Signer, kind Kind) (Intent, error) {
	switch kind {
	case KindWrap:
		return e.resolveWrap(ctx, signer)
	case KindUnwrap:
		return e.resolveUnwrap(ctx, signer)
	case KindSwap:
		return e.resolveSwap(ctx, signer)
	case KindAddLiquidity:
		return e.resolveLiquidity(ctx, signer)
	case KindSend:
		return e.resolveSend(ctx, signer)
	default:
		return nil, xerrors.Newf(xerrors.CodeInvalidArgument, "unsupported action kind %q", kind)
	}
}

// Execute 写入 pending 记录，提交交易并在确认后写入 success 记录。
func (e *Executor) Execute(ctx context.Context, signer web3.Signer, intent Intent) (web3.Receipt, error) {
	details := intent.Details()
	e.log.Info(details, "wallet", signer.Address().Hex(), "kind", intent.Kind().String())
	e.record(ctx, signer, intent.Kind(), ledger.StatusPending, details, web3.Receipt{})

	var (
		receipt web3.Receipt
		err     error
	)
	switch in := intent.(type) {
	case WrapIntent:
		receipt, err = e.executeWrap(ctx, signer, in)
	case UnwrapIntent:
		receipt, err = e.executeUnwrap(ctx, signer, in)
	case SwapIntent:
		receipt, err = e.executeSwap(ctx, signer, in)
	case LiquidityIntent:
		receipt, err = e.executeLiquidity(ctx, signer, in)
	case SendIntent:
		receipt, err = e.executeSend(ctx, signer, in)
	default:
		err = xerrors.Newf(xerrors.CodeInvalidArgument, "unsupported intent %T", intent)
	}
	if err != nil {
		return web3.Receipt{}, err
	}

	e.record(ctx, signer, intent.Kind(), ledger.StatusSuccess, details, receipt)
	return receipt, nil
}

func (e *Executor) record(ctx context.Context, signer web3.Signer, kind Kind, status ledger.Status, details string, receipt web3.Receipt) {
	if e.recorder == nil {
		return
	}
	entry := ledger.Entry{
		Wallet:  signer.Address().Hex(),
		Type:    kind.String(),
		Status:  status,
		Details: details,
		GasUsed: receipt.GasUsed,
	}
	if receipt.Hash != (common.Hash{}) {
		entry.TxHash = receipt.Hash.Hex()
	}
	e.recorder.Record(ctx, entry)
}

// submit 发送交易并等待一次确认。
func (e *Executor) submit(ctx context.Context, signer web3.Signer, call web3.Call) (web3.Receipt, error) {
	tx, err := e.client.Submit(ctx, signer, call)
	if err != nil {
		return web3.Receipt{}, err
	}
	e.log.Debug("transaction submitted", "hash", tx.Hash().Hex(), "to", call.To.Hex())
	return e.client.Wait(ctx, tx)
}

func (e *Executor) currentFees(ctx context.Context) (*web3.FeeData, error) {
	fees, err := e.client.FeeData(ctx)
	if err != nil {
		return nil, err
	}
	return &fees, nil
}

func (e *Executor) deadline() *big.Int {
	return big.NewInt(e.now().Add(DeadlineWindow).Unix())
}

// ensureAllowance 授权不足时授权最大值，并等待授权生效。
func (e *Executor) ensureAllowance(ctx context.Context, signer web3.Signer, token Token, spender common.Address, amount *big.Int) error {
	current, err := e.allowance(ctx, token.Address, signer.Address(), spender)
	if err != nil {
		return err
	}
	if current.Cmp(amount) >= 0 {
		return nil
	}
	data, err := ERC20ABI.Pack("approve", spender, math.MaxBig256)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeInvalidArgument, err, "encode approve")
	}
	e.log.Info(fmt.Sprintf("Approving %s for %s", token.Symbol, spender.Hex()), "wallet", signer.Address().Hex())
	if _, err := e.submit(ctx, signer, web3.Call{To: token.Address, Data: data}); err != nil {
		return err
	}
	return e.sleep(ctx, e.approvalSettle)
}

func zeroAmount(what string) error {
	return xerrors.Newf(xerrors.CodeZeroAmount, "Calculated %s amount is 0", what)
}
