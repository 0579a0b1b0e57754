package ledger

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

var csvHeader = []string{"Timestamp", "Wallet", "Type", "Status", "TxHash", "Details", "GasUsed", "Error"}

// CSVSink 以追加方式写入 transactions.csv，文件为空时先写表头。
type CSVSink struct {
	mu   sync.Mutex
	file *os.File
	w    *csv.Writer
}

// NewCSVSink 打开或创建 CSV 文件。
func NewCSVSink(path string) (*CSVSink, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("创建 CSV 目录失败: %w", err)
		}
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("打开 CSV 文件失败: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("读取 CSV 文件信息失败: %w", err)
	}

	sink := &CSVSink{file: file, w: csv.NewWriter(file)}
	if info.Size() == 0 {
		if err := sink.w.Write(csvHeader); err != nil {
			file.Close()
			return nil, fmt.Errorf("写入 CSV 表头失败: %w", err)
		}
		sink.w.Flush()
		if err := sink.w.Error(); err != nil {
			file.Close()
			return nil, fmt.Errorf("写入 CSV 表头失败: %w", err)
		}
	}
	return sink, nil
}

func (s *CSVSink) Name() string { return "csv" }

// Write 追加一行记录。
func (s *CSVSink) Write(_ context.Context, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.w.Write([]string{
		e.Timestamp.Format(time.RFC3339Nano),
		e.Wallet,
		e.Type,
		string(e.Status),
		e.TxHash,
		e.Details,
		e.gasUsedText(),
		e.Error,
	}); err != nil {
		return err
	}
	s.w.Flush()
	return s.w.Error()
}

func (s *CSVSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.w.Flush()
	return s.file.Close()
}
