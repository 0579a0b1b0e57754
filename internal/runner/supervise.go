package runner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	xerrors "EVM-Automator/internal/errors"
	"EVM-Automator/internal/observability/alerting"
	"EVM-Automator/pkg/logger"
)

// AlertTimeout 限制结束告警的发送时间，独立于已取消的运行 ctx。
const AlertTimeout = 30 * time.Second

// RunFunc 是被托管的运行体，包含启动后的全部装配与循环。
type RunFunc func(ctx context.Context) (RunState, error)

// Supervise 执行 fn 并根据结果发送一次告警，返回进程退出码。
// 正常结束发送完成通知并返回 0；错误或 panic 发送严重告警并返回 1。
func Supervise(ctx context.Context, dispatcher alerting.Dispatcher, fn RunFunc) (code int) {
	log := logger.Named("runner")
	var state RunState

	defer func() {
		r := recover()
		if r == nil {
			return
		}
		err, ok := r.(error)
		if !ok {
			err = fmt.Errorf("%v", r)
		}
		err = xerrors.Wrap(xerrors.CodeUnknown, err, "unhandled panic")
		log.Error("An unhandled error occurred", slog.Any("error", err))
		notify(dispatcher, withState(alerting.Crash(err), state))
		code = 1
	}()

	state, err := fn(ctx)
	if err != nil {
		log.Error("A critical error occurred during execution", slog.Any("error", err))
		notify(dispatcher, withState(alerting.Critical(err), state))
		return 1
	}
	notify(dispatcher, withState(alerting.Success(state.Successes, state.Failures), state))
	return 0
}

func withState(event alerting.Event, state RunState) alerting.Event {
	event.RunID = state.RunID
	event.Network = state.Network
	event.Successes = state.Successes
	event.Failures = state.Failures
	event.OccurredAt = time.Now()
	return event
}

func notify(dispatcher alerting.Dispatcher, event alerting.Event) {
	if dispatcher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), AlertTimeout)
	defer cancel()
	if err := dispatcher.Notify(ctx, event); err != nil {
		logger.Named("runner").Error("告警通知失败", slog.Any("error", err), slog.String("kind", string(event.Kind)))
	}
}
