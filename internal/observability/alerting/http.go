package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// DefaultTelegramAPI 是 Telegram Bot API 的地址。
const DefaultTelegramAPI = "https://api.telegram.org"

// Transport 封装 JSON POST 与有限次数的重试。
type Transport struct {
	Client        *http.Client
	MaxRetries    uint64
	RetryInterval time.Duration
}

func (t Transport) client() *http.Client {
	if t.Client != nil {
		return t.Client
	}
	return &http.Client{Timeout: 10 * time.Second}
}

func (t Transport) policy(ctx context.Context) backoff.BackOff {
	interval := t.RetryInterval
	if interval <= 0 {
		interval = time.Second
	}
	retries := t.MaxRetries
	if retries == 0 {
		retries = 2
	}
	return backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(interval), retries), ctx)
}

// PostJSON 发送 JSON 请求，4xx 不重试。
func (t Transport) PostJSON(ctx context.Context, url string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := t.client().Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			_, _ = io.Copy(io.Discard, resp.Body)
			return nil
		}
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		statusErr := fmt.Errorf("responded with status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
		if resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return backoff.Permanent(statusErr)
		}
		return statusErr
	}
	return backoff.Retry(op, t.policy(ctx))
}
