package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
)

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// MySQLSink 使用真实的 MySQL 数据库存储交易记录。
type MySQLSink struct {
	db    *sql.DB
	table string
}

// NewMySQLSink 创建连接池并初始化数据表。
func NewMySQLSink(ctx context.Context, dsn, table string) (*MySQLSink, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("MySQL DSN 不能为空")
	}
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("解析 MySQL DSN 失败: %w", err)
	}
	cfg.ParseTime = true
	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, fmt.Errorf("连接 MySQL 失败: %w", err)
	}

	db := sql.OpenDB(connector)
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("无法连接到 MySQL: %w", err)
	}

	sink, err := newMySQLSink(ctx, db, table)
	if err != nil {
		db.Close()
		return nil, err
	}
	return sink, nil
}

func newMySQLSink(ctx context.Context, db *sql.DB, table string) (*MySQLSink, error) {
	if table == "" {
		table = "transactions"
	}
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("非法的表名 %q", table)
	}
	sink := &MySQLSink{db: db, table: table}
	if err := sink.initSchema(ctx); err != nil {
		return nil, err
	}
	return sink, nil
}

func (s *MySQLSink) initSchema(ctx context.Context) error {
	schema := `CREATE TABLE IF NOT EXISTS ` + s.table + ` (
        id CHAR(36) PRIMARY KEY,
        run_id CHAR(36) NOT NULL,
        network VARCHAR(64) DEFAULT '',
        created_at DATETIME(3) NOT NULL,
        wallet VARCHAR(42) NOT NULL,
        type VARCHAR(32) NOT NULL,
        status VARCHAR(16) NOT NULL,
        tx_hash VARCHAR(66) DEFAULT '',
        details TEXT NOT NULL,
        gas_used BIGINT UNSIGNED DEFAULT 0,
        error TEXT,
        INDEX idx_run_id (run_id),
        INDEX idx_created_at (created_at)
)`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("初始化 %s 表失败: %w", s.table, err)
	}
	return nil
}

func (s *MySQLSink) Name() string { return "mysql" }

// Write 将记录写入 MySQL。
func (s *MySQLSink) Write(ctx context.Context, e Entry) error {
	stmt := `INSERT INTO ` + s.table + `
        (id, run_id, network, created_at, wallet, type, status, tx_hash, details, gas_used, error)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, stmt,
		e.ID,
		e.RunID,
		e.Network,
		e.Timestamp,
		e.Wallet,
		e.Type,
		string(e.Status),
		e.TxHash,
		e.Details,
		int64(e.GasUsed),
		e.Error,
	); err != nil {
		return fmt.Errorf("写入 MySQL 失败: %w", err)
	}
	return nil
}

// Close 关闭底层数据库连接。
func (s *MySQLSink) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
