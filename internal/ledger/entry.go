// Package ledger 记录每一次交易尝试的结果，并扇出到 CSV、JSONL、MySQL、Redis 与 RabbitMQ。
package ledger

import (
	"strconv"
	"time"
)

// Status 表示一条记录所处的阶段。
type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

// Entry 是一条只追加的交易记录。
type Entry struct {
	ID        string    `json:"id"`
	RunID     string    `json:"run_id"`
	Network   string    `json:"network,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Wallet    string    `json:"wallet"`
	Type      string    `json:"type"`
	Status    Status    `json:"status"`
	TxHash    string    `json:"tx_hash,omitempty"`
	Details   string    `json:"details"`
	GasUsed   uint64    `json:"gas_used,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// gasUsedText 只有成功记录才写 GasUsed。
func (e Entry) gasUsedText() string {
	if e.GasUsed == 0 {
		return ""
	}
	return strconv.FormatUint(e.GasUsed, 10)
}
