package ledger

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"EVM-Automator/internal/observability/metrics"
	"EVM-Automator/pkg/logger"
)

// Sink 是记录的一个落地目标。
type Sink interface {
	Name() string
	Write(ctx context.Context, entry Entry) error
	Close() error
}

// Ledger 将记录依次写入所有 sink，写入失败只记日志，不影响调用方。
type Ledger struct {
	mu      sync.Mutex
	runID   string
	network string
	sinks   []Sink
	now     func() time.Time
	log     *slog.Logger
}

// New 创建 Ledger，runID 为空时自动生成。
func New(runID, network string, sinks ...Sink) *Ledger {
	if runID == "" {
		runID = uuid.NewString()
	}
	return &Ledger{
		runID:   runID,
		network: network,
		sinks:   sinks,
		now:     time.Now,
		log:     logger.Named("ledger"),
	}
}

// RunID 返回本次运行的标识。
func (l *Ledger) RunID() string { return l.runID }

// Record 补全 ID、时间戳与运行信息后写入所有 sink。
func (l *Ledger) Record(ctx context.Context, entry Entry) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.RunID == "" {
		entry.RunID = l.runID
	}
	if entry.Network == "" {
		entry.Network = l.network
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = l.now().UTC()
	}

	logger.Audit().Info("transaction",
		"id", entry.ID,
		"run_id", entry.RunID,
		"wallet", entry.Wallet,
		"type", entry.Type,
		"status", string(entry.Status),
		"tx_hash", entry.TxHash,
		"details", entry.Details,
	)

	for _, sink := range l.sinks {
		if err := sink.Write(ctx, entry); err != nil {
			metrics.LedgerWriteFailures.WithLabelValues(sink.Name()).Inc()
			l.log.Error("Failed to write transaction record", "sink", sink.Name(), "error", err)
			continue
		}
		metrics.LedgerWrites.WithLabelValues(sink.Name(), string(entry.Status)).Inc()
	}
}

// Close 关闭所有 sink。
func (l *Ledger) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	var errs []error
	for _, sink := range l.sinks {
		if err := sink.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	l.sinks = nil
	return errors.Join(errs...)
}
