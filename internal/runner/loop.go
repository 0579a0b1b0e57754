package runner

import (
	"context"
	"fmt"
	"log/slog"

	"EVM-Automator/internal/action"
	"EVM-Automator/internal/config"
	xerrors "EVM-Automator/internal/errors"
	"EVM-Automator/internal/observability/metrics"
	"EVM-Automator/internal/wallet"
	"EVM-Automator/pkg/logger"
)

// RunState 记录运行进度，只存在于内存中。
type RunState struct {
	RunID     string
	Network   string
	Iteration int
	Successes int
	Failures  int
}

// WalletSource 按策略返回下一个签名身份，*wallet.Pool 满足该接口。
type WalletSource interface {
	Next(policy wallet.Policy) (*wallet.Identity, error)
}

// KindPicker 选出本轮的交易类型，*action.Catalog 满足该接口。
type KindPicker interface {
	PickKind() action.Kind
}

// LoopOptions 配置运行循环。
type LoopOptions struct {
	RunID   string
	Network string
	Count   int
	Delay   config.Range
	Policy  wallet.Policy
	Rand    action.Rand
	Sleep   action.SleepFunc
}

// Loop 顺序执行 Count 轮交易。
type Loop struct {
	wallets WalletSource
	kinds   KindPicker
	orch    *Orchestrator
	opts    LoopOptions
	log     *slog.Logger
}

// NewLoop 创建运行循环。
func NewLoop(wallets WalletSource, kinds KindPicker, orch *Orchestrator, opts LoopOptions) *Loop {
	if opts.Rand == nil {
		opts.Rand = action.DefaultRand()
	}
	if opts.Sleep == nil {
		opts.Sleep = action.Sleep
	}
	if opts.Policy == "" {
		opts.Policy = wallet.PolicyRoundRobin
	}
	return &Loop{
		wallets: wallets,
		kinds:   kinds,
		orch:    orch,
		opts:    opts,
		log:     logger.Named("runner"),
	}
}

// NextDelay 在配置区间内均匀取一个等待秒数。
func (l *Loop) NextDelay() float64 {
	return action.Uniform(l.opts.Rand, l.opts.Delay)
}

// Run 执行全部迭代。单轮重试耗尽只计入失败并继续；钱包选择失败或 ctx 取消会中止运行。
func (l *Loop) Run(ctx context.Context) (RunState, error) {
	state := RunState{RunID: l.opts.RunID, Network: l.opts.Network}
	if l.wallets == nil || l.kinds == nil || l.orch == nil {
		return state, xerrors.New(xerrors.CodeInitializationFailure, "run loop not initialized")
	}

	total := l.opts.Count
	l.log.Info(fmt.Sprintf("Starting transaction loop for %d transactions...", total))
	for i := 0; i < total; i++ {
		if err := ctx.Err(); err != nil {
			return state, err
		}
		state.Iteration = i + 1
		identity, err := l.wallets.Next(l.opts.Policy)
		if err != nil {
			return state, err
		}
		l.log.Info(fmt.Sprintf("--- Transaction #%d/%d | Wallet: %s ---", state.Iteration, total, identity.Address().Hex()))

		task := Task{
			Iteration: state.Iteration,
			Total:     total,
			Signer:    identity,
			Kind:      l.kinds.PickKind(),
		}
		switch err := l.orch.Run(ctx, task); {
		case err == nil:
			state.Successes++
		case xerrors.HasCode(err, xerrors.CodeRetriesExhausted):
			state.Failures++
		default:
			return state, err
		}
		metrics.RunIterations.WithLabelValues(l.opts.Network).Inc()

		if state.Iteration < total {
			delay := l.NextDelay()
			l.log.Info(fmt.Sprintf("Waiting for %.2f seconds...", delay))
			if err := l.opts.Sleep(ctx, action.Seconds(delay)); err != nil {
				return state, err
			}
		}
	}
	l.log.Info("Transaction loop finished",
		slog.Int("successes", state.Successes),
		slog.Int("failures", state.Failures),
	)
	return state, nil
}
