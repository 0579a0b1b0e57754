// Package runner 驱动整个运行：钱包轮换、动作选择、重试编排与顶层告警。
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"EVM-Automator/internal/action"
	xerrors "EVM-Automator/internal/errors"
	"EVM-Automator/internal/ledger"
	"EVM-Automator/internal/observability/metrics"
	"EVM-Automator/internal/web3"
	"EVM-Automator/pkg/logger"
)

// Performer 执行一次完整的动作尝试，*action.Executor 满足该接口。
type Performer interface {
	Perform(ctx context.Context, signer web3.Signer, kind action.Kind) error
}

// Recorder 写入交易记录，*ledger.Ledger 满足该接口。
type Recorder interface {
	Record(ctx context.Context, entry ledger.Entry)
}

// Task 描述一轮迭代中需要执行的动作。交易类型在一轮内固定，重试复用同一类型。
type Task struct {
	Iteration int
	Total     int
	Signer    web3.Signer
	Kind      action.Kind
}

// RetryOptions 配置重试编排器。
type RetryOptions struct {
	RetryCount int
	Settle     time.Duration
	Network    string
	Sleep      action.SleepFunc
}

// Orchestrator 在失败时按固定间隔重试，最多 RetryCount+1 次尝试。
type Orchestrator struct {
	performer Performer
	recorder  Recorder
	opts      RetryOptions
	log       *slog.Logger
}

// NewOrchestrator 创建重试编排器。
func NewOrchestrator(performer Performer, recorder Recorder, opts RetryOptions) *Orchestrator {
	if opts.RetryCount < 0 {
		opts.RetryCount = 0
	}
	if opts.Sleep == nil {
		opts.Sleep = action.Sleep
	}
	return &Orchestrator{
		performer: performer,
		recorder:  recorder,
		opts:      opts,
		log:       logger.Named("runner"),
	}
}

// MaxAttempts 返回单个任务的尝试上限。
func (o *Orchestrator) MaxAttempts() int { return o.opts.RetryCount + 1 }

// Run 执行任务直到成功或重试耗尽。耗尽时写入一条 failure 记录并返回 RETRIES_EXHAUSTED；
// ctx 取消时直接返回，不写失败记录。
func (o *Orchestrator) Run(ctx context.Context, task Task) error {
	kind := string(task.Kind)
	var lastErr error
	attempt := 0
	for attempt < o.MaxAttempts() {
		attempt++
		metrics.ActionAttempts.WithLabelValues(o.opts.Network, kind).Inc()
		started := time.Now()
		err := o.performer.Perform(ctx, task.Signer, task.Kind)
		metrics.ActionDuration.WithLabelValues(o.opts.Network, kind).Observe(time.Since(started).Seconds())
		if err == nil {
			metrics.ActionOutcomes.WithLabelValues(o.opts.Network, kind, string(ledger.StatusSuccess)).Inc()
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		lastErr = err
		o.log.Warn(fmt.Sprintf("Attempt %d failed: %s", attempt, err.Error()),
			slog.Int("tx", task.Iteration),
			slog.String("kind", kind),
			slog.String("error_code", string(xerrors.CodeOf(err))),
		)
		if attempt >= o.MaxAttempts() {
			break
		}
		metrics.ActionRetries.WithLabelValues(o.opts.Network, kind).Inc()
		if err := o.opts.Sleep(ctx, o.opts.Settle); err != nil {
			return err
		}
	}

	o.log.Error(fmt.Sprintf("[FAILED] Tx #%d/%d (%s) after all retries.", task.Iteration, task.Total, kind),
		slog.Int("attempts", attempt),
		slog.Any("error", lastErr),
	)
	metrics.ActionOutcomes.WithLabelValues(o.opts.Network, kind, string(ledger.StatusFailure)).Inc()
	if o.recorder != nil {
		o.recorder.Record(ctx, ledger.Entry{
			Wallet: signerAddress(task.Signer),
			Type:   kind,
			Status: ledger.StatusFailure,
			Error:  lastErr.Error(),
		})
	}
	return xerrors.Wrap(xerrors.CodeRetriesExhausted, lastErr,
		fmt.Sprintf("%s failed after %d attempts", kind, attempt),
		xerrors.WithMetadata("wallet", signerAddress(task.Signer)),
	)
}

func signerAddress(signer web3.Signer) string {
	if signer == nil {
		return ""
	}
	return signer.Address().Hex()
}
