package alerting

import (
	"context"
	"strings"

	"EVM-Automator/internal/config"
	"EVM-Automator/pkg/logger"
)

// TelegramNotifier 通过 Telegram 机器人发送 Markdown 消息。
type TelegramNotifier struct {
	Enabled   bool
	BotToken  string
	ChatID    string
	APIBase   string
	Transport Transport
}

// Channel 返回 Telegram 渠道。
func (n *TelegramNotifier) Channel() Channel { return ChannelTelegram }

// Notify 调用 sendMessage。
func (n *TelegramNotifier) Notify(ctx context.Context, event Event) error {
	if n == nil || !n.Enabled || n.BotToken == "" || n.ChatID == "" {
		logger.Named("alerting").Warn("Telegram notification is not enabled or fully configured. Skipping alert.")
		return nil
	}
	base := n.APIBase
	if base == "" {
		base = DefaultTelegramAPI
	}
	url := strings.TrimRight(base, "/") + "/bot" + n.BotToken + "/sendMessage"
	if err := n.Transport.PostJSON(ctx, url, map[string]string{
		"chat_id":    n.ChatID,
		"text":       event.Text,
		"parse_mode": "Markdown",
	}); err != nil {
		return err
	}
	logger.Named("alerting").Info("Successfully sent Telegram alert.")
	return nil
}

// SlackNotifier 通过 Slack Incoming Webhook 发送告警。
type SlackNotifier struct {
	WebhookURL string
	Transport  Transport
}

// Channel 返回 Slack 渠道。
func (n *SlackNotifier) Channel() Channel { return ChannelSlack }

// Notify 发送 Slack 消息。
func (n *SlackNotifier) Notify(ctx context.Context, event Event) error {
	if n == nil || n.WebhookURL == "" {
		logger.Named("alerting").Warn("SlackNotifier 未正确配置，跳过发送")
		return nil
	}
	return n.Transport.PostJSON(ctx, n.WebhookURL, map[string]string{"text": event.Text})
}

// WebhookNotifier 将完整事件以 JSON 形式推送到任意地址。
type WebhookNotifier struct {
	URL       string
	Transport Transport
}

// Channel 返回 Webhook 渠道。
func (n *WebhookNotifier) Channel() Channel { return ChannelWebhook }

// Notify 推送事件。
func (n *WebhookNotifier) Notify(ctx context.Context, event Event) error {
	if n == nil || n.URL == "" {
		logger.Named("alerting").Warn("WebhookNotifier 未正确配置，跳过发送")
		return nil
	}
	return n.Transport.PostJSON(ctx, n.URL, event)
}

// FromConfig 按配置构建分发器。Telegram 始终注册，未启用时发送会被跳过并记录警告。
func FromConfig(cfg config.NotificationConfig) *FanoutDispatcher {
	notifiers := []Notifier{&TelegramNotifier{
		Enabled:  cfg.Telegram.Enabled,
		BotToken: cfg.Telegram.BotToken,
		ChatID:   cfg.Telegram.ChatID,
	}}
	if cfg.Slack.WebhookURL != "" {
		notifiers = append(notifiers, &SlackNotifier{WebhookURL: cfg.Slack.WebhookURL})
	}
	if cfg.Webhook.URL != "" {
		notifiers = append(notifiers, &WebhookNotifier{URL: cfg.Webhook.URL})
	}
	return NewFanout(notifiers...)
}
