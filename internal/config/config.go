package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	xerrors "EVM-Automator/internal/errors"
	"EVM-Automator/pkg/logger"
)

// 钱包选择策略。
const (
	SelectionRoundRobin = "round-robin"
	SelectionRandom     = "random"
)

// 可配置的交易类型，取值与配置文件保持一致。
const (
	TypeSwap      = "swap"
	TypeLiquidity = "liquidity"
	TypeSend      = "send"
	TypeWrap      = "wrap"
	TypeUnwrap    = "unwrap"
)

// 默认值与原始脚本中的常量保持一致。
const (
	DefaultSettleSeconds         = 5
	DefaultApprovalSettleSeconds = 5
	DefaultFeeTier               = 500
	DefaultTickLower             = -887270
	DefaultTickUpper             = 887270
	DefaultConfirmTimeoutSeconds = 180
	DefaultPollIntervalMillis    = 2000
)

// Config 描述了自动化程序在启动阶段需要加载的全部配置。
type Config struct {
	Run           RunConfig            `json:"run"`
	Dexes         map[string]DexConfig `json:"dexes"`
	Notifications NotificationConfig   `json:"notifications"`
	Ledger        LedgerConfig         `json:"ledger"`
	Log           logger.Config        `json:"log"`
	Metrics       MetricsConfig        `json:"metrics"`
	Web3          Web3Config           `json:"web3"`
}

// RunConfig 控制一次运行的全部行为。
type RunConfig struct {
	Network               string            `json:"network"`
	Dex                   string            `json:"dex"`
	Wallets               WalletConfig      `json:"wallets"`
	Transactions          TransactionConfig `json:"transactions"`
	Swap                  SwapConfig        `json:"swap"`
	AddLiquidity          LiquidityConfig   `json:"add_liquidity"`
	Send                  SendConfig        `json:"send"`
	Wrap                  PercentConfig     `json:"wrap"`
	Unwrap                *PercentConfig    `json:"unwrap,omitempty"`
	ApprovalSettleSeconds *float64          `json:"approval_settle_seconds,omitempty"`
}

// WalletConfig 决定每轮如何挑选钱包。
type WalletConfig struct {
	Selection string `json:"selection"`
}

// Range 表示闭区间 [Min, Max]。
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

func (r Range) validate(name string, upper float64) error {
	if r.Min < 0 || r.Max < r.Min {
		return fmt.Errorf("%s: invalid range [%v, %v]", name, r.Min, r.Max)
	}
	if upper > 0 && r.Max > upper {
		return fmt.Errorf("%s: max %v exceeds %v", name, r.Max, upper)
	}
	return nil
}

// TransactionConfig 描述循环次数、间隔与重试。
type TransactionConfig struct {
	Count         int      `json:"count"`
	DelaySeconds  Range    `json:"delay_seconds"`
	Types         []string `json:"types"`
	RetryCount    int      `json:"retry_count"`
	SettleSeconds *float64 `json:"settle_seconds,omitempty"`
}

// SwapConfig 描述兑换交易对与输入比例。
type SwapConfig struct {
	ValidPairs      [][]string `json:"valid_pairs"`
	AmountInPercent Range      `json:"amount_in_percent"`
	FeeTier         uint32     `json:"fee_tier"`
}

// LiquidityConfig 描述全区间流动性添加。
type LiquidityConfig struct {
	TokenA         string `json:"token_a"`
	TokenB         string `json:"token_b"`
	AmountAPercent Range  `json:"amount_a_percent"`
	AmountBPercent Range  `json:"amount_b_percent"`
	FeeTier        uint32 `json:"fee_tier"`
	TickLower      *int32 `json:"tick_lower,omitempty"`
	TickUpper      *int32 `json:"tick_upper,omitempty"`
}

// SendConfig 描述 ERC-20 转账。
type SendConfig struct {
	Token         string `json:"token"`
	AmountPercent Range  `json:"amount_percent"`
}

// PercentConfig 用于 wrap/unwrap 的余额比例。
type PercentConfig struct {
	AmountPercent Range `json:"amount_percent"`
}

// DexConfig 记录路由与仓位管理合约地址。
type DexConfig struct {
	Router          string `json:"router"`
	PositionManager string `json:"position_manager,omitempty"`
}

// NotificationConfig 汇总告警渠道。
type NotificationConfig struct {
	Telegram TelegramConfig `json:"telegram"`
	Slack    SlackConfig    `json:"slack"`
	Webhook  WebhookConfig  `json:"webhook"`
}

// TelegramConfig 对应 Telegram 机器人推送。
type TelegramConfig struct {
	Enabled  bool   `json:"enabled"`
	BotToken string `json:"bot_token"`
	ChatID   string `json:"chat_id"`
}

// SlackConfig 对应 Slack Incoming Webhook。
type SlackConfig struct {
	WebhookURL string `json:"webhook_url"`
}

// WebhookConfig 对应通用 JSON Webhook。
type WebhookConfig struct {
	URL string `json:"url"`
}

// LedgerConfig 决定交易记录写入哪些后端。
type LedgerConfig struct {
	Sinks     []string       `json:"sinks"`
	CSVPath   string         `json:"csv_path"`
	JSONLPath string         `json:"jsonl_path"`
	MySQL     MySQLConfig    `json:"mysql"`
	Redis     RedisConfig    `json:"redis"`
	RabbitMQ  RabbitMQConfig `json:"rabbitmq"`
}

// MySQLConfig 描述 MySQL 连接。
type MySQLConfig struct {
	DSN   string `json:"dsn"`
	Table string `json:"table"`
}

// RedisConfig 描述 Redis Stream 写入。
type RedisConfig struct {
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	Stream   string `json:"stream"`
	MaxLen   int64  `json:"max_len"`
}

// RabbitMQConfig 描述 RabbitMQ 投递。
type RabbitMQConfig struct {
	URL      string `json:"url"`
	Exchange string `json:"exchange"`
	Queue    string `json:"queue"`
}

// MetricsConfig 控制 Prometheus 指标暴露。
type MetricsConfig struct {
	Address string `json:"address"`
}

// Web3Config 指定链定义文件和 RPC 调用参数。
type Web3Config struct {
	ChainConfig           string  `json:"chain_config"`
	RequestsPerSecond     float64 `json:"rpc_requests_per_second"`
	ConfirmTimeoutSeconds int     `json:"confirm_timeout_seconds"`
	PollIntervalMillis    int     `json:"poll_interval_ms"`
}

// Overrides 是命令行提供的覆盖项，零值表示不覆盖。
type Overrides struct {
	Network string
	Dex     string
	TxCount *int
}

// Load 负责解析指定路径的 JSON 配置文件。
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("配置文件路径为空")
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开配置文件失败: %w", err)
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	return Parse(content, filepath.Dir(path))
}

// Parse 解析 JSON 内容，相对路径以 baseDir 为基准。
func Parse(content []byte, baseDir string) (*Config, error) {
	var cfg Config
	if err := json.Unmarshal(content, &cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}
	cfg.applyDefaults(baseDir)
	return &cfg, nil
}

// applyDefaults 在用户未填写部分字段时设置合理的默认值。
func (c *Config) applyDefaults(baseDir string) {
	run := &c.Run
	if run.Wallets.Selection == "" {
		run.Wallets.Selection = SelectionRoundRobin
	}
	// 显式写 0 表示不等待，只有缺省时才取默认值
	if run.Transactions.SettleSeconds == nil {
		settle := float64(DefaultSettleSeconds)
		run.Transactions.SettleSeconds = &settle
	}
	if run.ApprovalSettleSeconds == nil {
		settle := float64(DefaultApprovalSettleSeconds)
		run.ApprovalSettleSeconds = &settle
	}
	if run.Swap.FeeTier == 0 {
		run.Swap.FeeTier = DefaultFeeTier
	}
	if run.AddLiquidity.FeeTier == 0 {
		run.AddLiquidity.FeeTier = DefaultFeeTier
	}
	if run.AddLiquidity.TickLower == nil {
		lower := int32(DefaultTickLower)
		run.AddLiquidity.TickLower = &lower
	}
	if run.AddLiquidity.TickUpper == nil {
		upper := int32(DefaultTickUpper)
		run.AddLiquidity.TickUpper = &upper
	}

	if len(c.Ledger.Sinks) == 0 {
		c.Ledger.Sinks = []string{"csv"}
	}
	c.Ledger.CSVPath = resolvePath(baseDir, c.Ledger.CSVPath, filepath.Join("logs", "transactions.csv"))
	c.Ledger.JSONLPath = resolvePath(baseDir, c.Ledger.JSONLPath, filepath.Join("logs", "transactions.jsonl"))
	if c.Ledger.MySQL.Table == "" {
		c.Ledger.MySQL.Table = "transactions"
	}
	if c.Ledger.Redis.Stream == "" {
		c.Ledger.Redis.Stream = "automator:transactions"
	}
	if c.Ledger.RabbitMQ.Queue == "" {
		c.Ledger.RabbitMQ.Queue = "automator.transactions"
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if len(c.Log.OutputPaths) == 0 {
		c.Log.OutputPaths = []string{"stdout", filepath.Join("logs", "all.log")}
	}
	if c.Log.ErrorPath == "" {
		c.Log.ErrorPath = filepath.Join("logs", "errors.log")
	}

	if c.Web3.ChainConfig == "" {
		c.Web3.ChainConfig = filepath.Join(baseDir, "chains.yaml")
	} else {
		c.Web3.ChainConfig = resolvePath(baseDir, c.Web3.ChainConfig, "")
	}
	if c.Web3.ConfirmTimeoutSeconds == 0 {
		c.Web3.ConfirmTimeoutSeconds = DefaultConfirmTimeoutSeconds
	}
	if c.Web3.PollIntervalMillis == 0 {
		c.Web3.PollIntervalMillis = DefaultPollIntervalMillis
	}
}

// resolvePath 为空时返回相对工作目录的 fallback，相对路径以配置文件所在目录为基准。
func resolvePath(baseDir, value, fallback string) string {
	if value == "" {
		return fallback
	}
	if filepath.IsAbs(value) {
		return value
	}
	return filepath.Join(baseDir, value)
}

// ApplyOverrides 将命令行参数写入配置，未知的 DEX 直接报错。
func (c *Config) ApplyOverrides(o Overrides) error {
	if o.Network != "" {
		c.Run.Network = o.Network
	}
	if o.TxCount != nil {
		if *o.TxCount < 0 {
			return xerrors.Newf(xerrors.CodeInvalidArgument, "txcount must not be negative, got %d", *o.TxCount)
		}
		c.Run.Transactions.Count = *o.TxCount
	}
	if o.Dex != "" {
		if _, ok := c.Dexes[o.Dex]; !ok {
			return xerrors.Newf(xerrors.CodeConfigMissing, "DEX '%s' not found", o.Dex)
		}
		c.Run.Dex = o.Dex
	}
	return nil
}

// ActiveDex 返回当前运行使用的 DEX 配置。
func (c *Config) ActiveDex() (DexConfig, error) {
	dex, ok := c.Dexes[c.Run.Dex]
	if !ok {
		return DexConfig{}, xerrors.Newf(xerrors.CodeConfigMissing, "DEX '%s' not found", c.Run.Dex)
	}
	return dex, nil
}

// RetrySettle 返回失败重试前的等待秒数。
func (r RunConfig) RetrySettle() float64 {
	if r.Transactions.SettleSeconds == nil {
		return DefaultSettleSeconds
	}
	return *r.Transactions.SettleSeconds
}

// ApprovalSettle 返回授权交易确认后的等待秒数。
func (r RunConfig) ApprovalSettle() float64 {
	if r.ApprovalSettleSeconds == nil {
		return DefaultApprovalSettleSeconds
	}
	return *r.ApprovalSettleSeconds
}

// UnwrapPercent 返回 unwrap 的比例区间，未配置时沿用 wrap。
func (r RunConfig) UnwrapPercent() Range {
	if r.Unwrap != nil {
		return r.Unwrap.AmountPercent
	}
	return r.Wrap.AmountPercent
}

// Validate 在运行开始前检查配置的完整性。
func (c *Config) Validate() error {
	var problems []string
	add := func(err error) {
		if err != nil {
			problems = append(problems, err.Error())
		}
	}

	run := c.Run
	if strings.TrimSpace(run.Network) == "" {
		add(errors.New("run.network is required"))
	}
	if _, err := c.ActiveDex(); err != nil {
		add(fmt.Errorf("run.dex: DEX '%s' not found", run.Dex))
	}
	switch run.Wallets.Selection {
	case SelectionRoundRobin, SelectionRandom:
	default:
		add(fmt.Errorf("run.wallets.selection: unknown policy %q", run.Wallets.Selection))
	}

	tx := run.Transactions
	if tx.Count < 0 {
		add(fmt.Errorf("run.transactions.count must not be negative, got %d", tx.Count))
	}
	if tx.RetryCount < 0 {
		add(fmt.Errorf("run.transactions.retry_count must not be negative, got %d", tx.RetryCount))
	}
	if tx.SettleSeconds != nil && *tx.SettleSeconds < 0 {
		add(errors.New("run.transactions.settle_seconds must not be negative"))
	}
	if run.ApprovalSettleSeconds != nil && *run.ApprovalSettleSeconds < 0 {
		add(errors.New("run.approval_settle_seconds must not be negative"))
	}
	add(tx.DelaySeconds.validate("run.transactions.delay_seconds", 0))
	if len(tx.Types) == 0 {
		add(errors.New("run.transactions.types must enable at least one type"))
	}
	for _, kind := range tx.Types {
		switch kind {
		case TypeSwap:
			if len(run.Swap.ValidPairs) == 0 {
				add(errors.New("run.swap.valid_pairs is empty"))
			}
			for i, pair := range run.Swap.ValidPairs {
				if len(pair) != 2 || pair[0] == "" || pair[1] == "" || pair[0] == pair[1] {
					add(fmt.Errorf("run.swap.valid_pairs[%d] must name two distinct tokens", i))
				}
			}
			add(run.Swap.AmountInPercent.validate("run.swap.amount_in_percent", 100))
		case TypeLiquidity:
			lp := run.AddLiquidity
			if lp.TokenA == "" || lp.TokenB == "" || lp.TokenA == lp.TokenB {
				add(errors.New("run.add_liquidity requires two distinct tokens"))
			}
			if lp.TickLower != nil && lp.TickUpper != nil && *lp.TickLower >= *lp.TickUpper {
				add(errors.New("run.add_liquidity.tick_lower must be below tick_upper"))
			}
			add(lp.AmountAPercent.validate("run.add_liquidity.amount_a_percent", 100))
			add(lp.AmountBPercent.validate("run.add_liquidity.amount_b_percent", 100))
		case TypeSend:
			if run.Send.Token == "" {
				add(errors.New("run.send.token is required"))
			}
			add(run.Send.AmountPercent.validate("run.send.amount_percent", 100))
		case TypeWrap:
			add(run.Wrap.AmountPercent.validate("run.wrap.amount_percent", 100))
		case TypeUnwrap:
			add(run.UnwrapPercent().validate("run.unwrap.amount_percent", 100))
		default:
			add(fmt.Errorf("run.transactions.types: unknown type %q", kind))
		}
	}

	for _, sink := range c.Ledger.Sinks {
		switch sink {
		case "csv", "jsonl":
		case "mysql":
			if c.Ledger.MySQL.DSN == "" {
				add(errors.New("ledger.mysql.dsn is required for the mysql sink"))
			}
		case "redis":
			if c.Ledger.Redis.Address == "" {
				add(errors.New("ledger.redis.address is required for the redis sink"))
			}
		case "rabbitmq":
			if c.Ledger.RabbitMQ.URL == "" {
				add(errors.New("ledger.rabbitmq.url is required for the rabbitmq sink"))
			}
		default:
			add(fmt.Errorf("ledger.sinks: unknown sink %q", sink))
		}
	}

	if len(problems) > 0 {
		return xerrors.New(xerrors.CodeInvalidArgument, "invalid configuration: "+strings.Join(problems, "; "))
	}
	return nil
}
