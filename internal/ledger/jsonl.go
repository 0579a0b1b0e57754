package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// JSONLSink 每条记录一行 JSON，便于后续导入分析。
type JSONLSink struct {
	mu       sync.Mutex
	dataFile string
}

// NewJSONLSink 创建 JSONL 文件所在目录。
func NewJSONLSink(path string) (*JSONLSink, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("创建数据目录失败: %w", err)
		}
	}
	return &JSONLSink{dataFile: path}, nil
}

func (s *JSONLSink) Name() string { return "jsonl" }

// Write 以追加写的方式记录交易结果。
func (s *JSONLSink) Write(_ context.Context, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.OpenFile(s.dataFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("打开交易日志失败: %w", err)
	}
	defer file.Close()

	encoded, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("序列化交易记录失败: %w", err)
	}
	if _, err := file.Write(append(encoded, '\n')); err != nil {
		return fmt.Errorf("写入交易日志失败: %w", err)
	}
	return nil
}

func (s *JSONLSink) Close() error { return nil }
