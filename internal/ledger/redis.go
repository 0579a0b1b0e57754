package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

type streamClient interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
	Close() error
}

// RedisStreamSink 将记录追加到 Redis Stream，供下游消费。
type RedisStreamSink struct {
	client streamClient
	stream string
	maxLen int64
}

// RedisConfig 描述 Redis Stream 的连接参数。
type RedisConfig struct {
	Address  string
	Password string
	DB       int
	Stream   string
	MaxLen   int64
}

// NewRedisStreamSink 创建 Redis 连接并检查可用性。
func NewRedisStreamSink(ctx context.Context, cfg RedisConfig) (*RedisStreamSink, error) {
	if cfg.Address == "" {
		return nil, errors.New("Redis address 不能为空")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("连接 Redis 失败: %w", err)
	}
	return newRedisStreamSink(client, cfg.Stream, cfg.MaxLen), nil
}

func newRedisStreamSink(client streamClient, stream string, maxLen int64) *RedisStreamSink {
	if stream == "" {
		stream = "automator:transactions"
	}
	return &RedisStreamSink{client: client, stream: stream, maxLen: maxLen}
}

func (s *RedisStreamSink) Name() string { return "redis" }

// Write 通过 XADD 追加记录。
func (s *RedisStreamSink) Write(ctx context.Context, e Entry) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("序列化交易记录失败: %w", err)
	}
	args := &redis.XAddArgs{
		Stream: s.stream,
		Values: map[string]any{
			"id":     e.ID,
			"status": string(e.Status),
			"type":   e.Type,
			"entry":  string(payload),
		},
	}
	if s.maxLen > 0 {
		args.MaxLen = s.maxLen
		args.Approx = true
	}
	if err := s.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("Redis 写入记录失败: %w", err)
	}
	return nil
}

// Close 关闭 Redis 连接。
func (s *RedisStreamSink) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}
