package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	xerrors "EVM-Automator/internal/errors"
)

const sample = `{
  "run": {
    "network": "pharos-testnet",
    "dex": "zenith",
    "wallets": {"selection": "round-robin"},
    "transactions": {
      "count": 10,
      "delay_seconds": {"min": 30, "max": 90},
      "types": ["swap", "liquidity", "send", "wrap", "unwrap"],
      "retry_count": 2
    },
    "swap": {"valid_pairs": [["WPHRS", "USDC"]], "amount_in_percent": {"min": 1, "max": 5}},
    "add_liquidity": {
      "token_a": "WPHRS", "token_b": "USDC",
      "amount_a_percent": {"min": 1, "max": 2},
      "amount_b_percent": {"min": 1, "max": 2}
    },
    "send": {"token": "USDC", "amount_percent": {"min": 0.1, "max": 0.5}},
    "wrap": {"amount_percent": {"min": 1, "max": 3}}
  },
  "dexes": {
    "zenith": {"router": "0x1A4DE519154Ae51200b0Ad7c90F7faC75547888a", "position_manager": "0xF8a1D4FF0f9b9Af7CE58E1fc1833688F3BFd6115"},
    "faroswap": {"router": "0x3541423f25A1Ca5C98fdBCf478405d3f0aaD1164"}
  }
}`

func loadSample(t *testing.T) *Config {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "automator.json")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))
	cfg, err := Load(path)
	require.NoError(t, err)
	return cfg
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg := loadSample(t)

	assert.Equal(t, float64(DefaultSettleSeconds), cfg.Run.RetrySettle())
	assert.Equal(t, float64(DefaultApprovalSettleSeconds), cfg.Run.ApprovalSettle())
	assert.EqualValues(t, DefaultFeeTier, cfg.Run.Swap.FeeTier)
	require.NotNil(t, cfg.Run.AddLiquidity.TickLower)
	assert.EqualValues(t, -887270, *cfg.Run.AddLiquidity.TickLower)
	assert.EqualValues(t, 887270, *cfg.Run.AddLiquidity.TickUpper)
	assert.Equal(t, []string{"csv"}, cfg.Ledger.Sinks)
	assert.Equal(t, "transactions.csv", filepath.Base(cfg.Ledger.CSVPath))
	assert.Equal(t, "chains.yaml", filepath.Base(cfg.Web3.ChainConfig))
	assert.Equal(t, "info", cfg.Log.Level)
	assert.NoError(t, cfg.Validate())
}

func TestExplicitZeroSettleIsKept(t *testing.T) {
	content := []byte(`{"run": {"transactions": {"settle_seconds": 0}, "approval_settle_seconds": 0}}`)
	cfg, err := Parse(content, t.TempDir())
	require.NoError(t, err)

	require.NotNil(t, cfg.Run.Transactions.SettleSeconds)
	assert.Zero(t, cfg.Run.RetrySettle())
	assert.Zero(t, cfg.Run.ApprovalSettle())

	cfg, err = Parse([]byte(`{"run": {"transactions": {"settle_seconds": 1.5}}}`), t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 1.5, cfg.Run.RetrySettle())
	assert.Equal(t, float64(DefaultApprovalSettleSeconds), cfg.Run.ApprovalSettle())
}

func TestUnwrapFallsBackToWrapRange(t *testing.T) {
	cfg := loadSample(t)
	assert.Equal(t, Range{Min: 1, Max: 3}, cfg.Run.UnwrapPercent())

	cfg.Run.Unwrap = &PercentConfig{AmountPercent: Range{Min: 10, Max: 20}}
	assert.Equal(t, Range{Min: 10, Max: 20}, cfg.Run.UnwrapPercent())
}

func TestApplyOverrides(t *testing.T) {
	cfg := loadSample(t)
	count := 3
	require.NoError(t, cfg.ApplyOverrides(Overrides{Network: "sepolia", Dex: "faroswap", TxCount: &count}))
	assert.Equal(t, "sepolia", cfg.Run.Network)
	assert.Equal(t, "faroswap", cfg.Run.Dex)
	assert.Equal(t, 3, cfg.Run.Transactions.Count)

	err := cfg.ApplyOverrides(Overrides{Dex: "uniswap"})
	require.Error(t, err)
	assert.True(t, xerrors.HasCode(err, xerrors.CodeConfigMissing))
	assert.Equal(t, "faroswap", cfg.Run.Dex)

	negative := -1
	err = cfg.ApplyOverrides(Overrides{TxCount: &negative})
	assert.True(t, xerrors.HasCode(err, xerrors.CodeInvalidArgument))
}

func TestValidateRejectsBadConfig(t *testing.T) {
	cases := map[string]func(*Config){
		"unknown policy":   func(c *Config) { c.Run.Wallets.Selection = "weighted" },
		"inverted delay":   func(c *Config) { c.Run.Transactions.DelaySeconds = Range{Min: 10, Max: 5} },
		"unknown type":     func(c *Config) { c.Run.Transactions.Types = []string{"bridge"} },
		"no types":         func(c *Config) { c.Run.Transactions.Types = nil },
		"percent over 100": func(c *Config) { c.Run.Swap.AmountInPercent = Range{Min: 50, Max: 150} },
		"bad pair":         func(c *Config) { c.Run.Swap.ValidPairs = [][]string{{"USDC"}} },
		"missing dex":      func(c *Config) { c.Run.Dex = "nope" },
		"negative retry":   func(c *Config) { c.Run.Transactions.RetryCount = -1 },
		"negative settle": func(c *Config) {
			settle := -1.0
			c.Run.Transactions.SettleSeconds = &settle
		},
		"mysql sink":   func(c *Config) { c.Ledger.Sinks = []string{"mysql"} },
		"unknown sink": func(c *Config) { c.Ledger.Sinks = []string{"kafka"} },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := loadSample(t)
			mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, xerrors.HasCode(err, xerrors.CodeInvalidArgument))
		})
	}
}

func TestLoadErrors(t *testing.T) {
	_, err := Load("")
	require.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)

	_, err = Parse([]byte("{"), ".")
	require.Error(t, err)
}
