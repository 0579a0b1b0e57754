package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

type amqpPublisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// RabbitMQConfig 描述 RabbitMQ 的连接参数。
type RabbitMQConfig struct {
	URL      string
	Exchange string
	Queue    string
}

// RabbitMQSink 将每条记录作为持久化消息投递。
type RabbitMQSink struct {
	conn     *amqp.Connection
	ch       amqpPublisher
	exchange string
	key      string
}

// NewRabbitMQSink 建立连接并声明持久队列。
func NewRabbitMQSink(cfg RabbitMQConfig) (*RabbitMQSink, error) {
	if cfg.URL == "" {
		return nil, errors.New("RabbitMQ URL 不能为空")
	}
	queue := cfg.Queue
	if queue == "" {
		queue = "automator.transactions"
	}
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("连接 RabbitMQ 失败: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("创建 RabbitMQ channel 失败: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("声明 RabbitMQ 队列失败: %w", err)
	}
	if cfg.Exchange != "" {
		if err := ch.QueueBind(queue, queue, cfg.Exchange, false, nil); err != nil {
			ch.Close()
			conn.Close()
			return nil, fmt.Errorf("绑定 RabbitMQ 队列失败: %w", err)
		}
	}
	sink := newRabbitMQSink(ch, cfg.Exchange, queue)
	sink.conn = conn
	return sink, nil
}

func newRabbitMQSink(ch amqpPublisher, exchange, key string) *RabbitMQSink {
	return &RabbitMQSink{ch: ch, exchange: exchange, key: key}
}

func (s *RabbitMQSink) Name() string { return "rabbitmq" }

// Write 投递一条 JSON 消息。
func (s *RabbitMQSink) Write(ctx context.Context, e Entry) error {
	if s == nil || s.ch == nil {
		return errors.New("RabbitMQ 未初始化")
	}
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("序列化交易记录失败: %w", err)
	}
	return s.ch.PublishWithContext(ctx, s.exchange, s.key, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    e.ID,
		Timestamp:    e.Timestamp,
		Type:         e.Type,
		Body:         body,
	})
}

// Close 关闭 RabbitMQ 连接。
func (s *RabbitMQSink) Close() error {
	if s == nil {
		return nil
	}
	if s.ch != nil {
		_ = s.ch.Close()
	}
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}
