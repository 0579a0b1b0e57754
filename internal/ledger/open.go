package ledger

import (
	"context"
	"fmt"

	"EVM-Automator/internal/config"
	xerrors "EVM-Automator/internal/errors"
)

// OpenSinks 按配置顺序构建 sink，任一失败会关闭已打开的 sink。
func OpenSinks(ctx context.Context, cfg config.LedgerConfig) ([]Sink, error) {
	var sinks []Sink
	fail := func(name string, err error) ([]Sink, error) {
		for _, s := range sinks {
			_ = s.Close()
		}
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, fmt.Sprintf("open %s ledger sink", name))
	}

	for _, name := range cfg.Sinks {
		var (
			sink Sink
			err  error
		)
		switch name {
		case "csv":
			sink, err = NewCSVSink(cfg.CSVPath)
		case "jsonl":
			sink, err = NewJSONLSink(cfg.JSONLPath)
		case "mysql":
			sink, err = NewMySQLSink(ctx, cfg.MySQL.DSN, cfg.MySQL.Table)
		case "redis":
			sink, err = NewRedisStreamSink(ctx, RedisConfig{
				Address:  cfg.Redis.Address,
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
				Stream:   cfg.Redis.Stream,
				MaxLen:   cfg.Redis.MaxLen,
			})
		case "rabbitmq":
			sink, err = NewRabbitMQSink(RabbitMQConfig{
				URL:      cfg.RabbitMQ.URL,
				Exchange: cfg.RabbitMQ.Exchange,
				Queue:    cfg.RabbitMQ.Queue,
			})
		default:
			err = fmt.Errorf("unknown sink %q", name)
		}
		if err != nil {
			return fail(name, err)
		}
		sinks = append(sinks, sink)
	}
	return sinks, nil
}
