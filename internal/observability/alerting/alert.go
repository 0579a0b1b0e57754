// Package alerting 在运行结束或崩溃时通过 Telegram、Slack 与 Webhook 发送通知。
package alerting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	xerrors "EVM-Automator/internal/errors"
	"EVM-Automator/internal/observability/metrics"
	"EVM-Automator/pkg/logger"
)

// Channel 表示通知渠道。
type Channel string

// 支持的通知渠道
const (
	ChannelTelegram Channel = "telegram"
	ChannelSlack    Channel = "slack"
	ChannelWebhook  Channel = "webhook"
)

// Kind 区分运行完成与运行崩溃。
type Kind string

const (
	KindSuccess  Kind = "success"
	KindCritical Kind = "critical"
)

// Event 描述一次需要告警的事件。
type Event struct {
	Kind       Kind              `json:"kind"`
	Code       xerrors.Code      `json:"code,omitempty"`
	Severity   xerrors.Severity  `json:"severity"`
	Text       string            `json:"text"`
	RunID      string            `json:"run_id,omitempty"`
	Network    string            `json:"network,omitempty"`
	Successes  int               `json:"successes"`
	Failures   int               `json:"failures"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// Notifier 负责将事件发送到指定渠道。
type Notifier interface {
	Channel() Channel
	Notify(ctx context.Context, event Event) error
}

// Dispatcher 将事件广播给多个通知器。
type Dispatcher interface {
	Notify(ctx context.Context, event Event) error
}

// FanoutDispatcher 按注册顺序将事件投递到多个通知器。
type FanoutDispatcher struct {
	notifiers []Notifier
	log       *slog.Logger
}

// NewFanout 创建一个新的 FanoutDispatcher，同一渠道只保留最后一个。
func NewFanout(notifiers ...Notifier) *FanoutDispatcher {
	var list []Notifier
	index := make(map[Channel]int, len(notifiers))
	for _, n := range notifiers {
		if n == nil {
			continue
		}
		if i, ok := index[n.Channel()]; ok {
			list[i] = n
			continue
		}
		index[n.Channel()] = len(list)
		list = append(list, n)
	}
	return &FanoutDispatcher{notifiers: list, log: logger.Named("alerting")}
}

// Notify 将事件广播至所有注册渠道，单个渠道失败不影响其余渠道。
func (d *FanoutDispatcher) Notify(ctx context.Context, event Event) error {
	if d == nil {
		return nil
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	var errs []error
	for _, notifier := range d.notifiers {
		if err := notifier.Notify(ctx, event); err != nil {
			metrics.AlertsSent.WithLabelValues(string(notifier.Channel()), "error").Inc()
			d.log.Error(fmt.Sprintf("Failed to send %s alert.", notifier.Channel()), "error", err)
			errs = append(errs, fmt.Errorf("channel %s: %w", notifier.Channel(), err))
			continue
		}
		metrics.AlertsSent.WithLabelValues(string(notifier.Channel()), "ok").Inc()
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Success 构造运行完成事件。
func Success(successes, failures int) Event {
	text := "✅ Script finished its run successfully!"
	if successes+failures > 0 {
		text = fmt.Sprintf("%s\n\n*Transactions:* %d succeeded, %d failed", text, successes, failures)
	}
	return Event{
		Kind:      KindSuccess,
		Severity:  xerrors.SeverityInfo,
		Text:      text,
		Successes: successes,
		Failures:  failures,
	}
}

// Critical 构造运行崩溃事件。
func Critical(err error) Event {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	event := Event{
		Kind:     KindCritical,
		Code:     xerrors.CodeOf(err),
		Severity: xerrors.SeverityCritical,
		Text:     fmt.Sprintf("❌ CRITICAL ERROR: The script has crashed!\n\n*Error:* `%s`", msg),
	}
	if e, ok := xerrors.From(err); ok {
		event.Metadata = e.Metadata()
	}
	return event
}

// Crash 构造未捕获 panic 的事件。
func Crash(err error) Event {
	event := Critical(err)
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	event.Text = fmt.Sprintf("🔥 UNHANDLED CRASH: The script has crashed unexpectedly!\n\n*Error:* `%s`", msg)
	return event
}
