package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"EVM-Automator/internal/config"
	"EVM-Automator/internal/observability/alerting"
	"EVM-Automator/internal/runner"
	"EVM-Automator/pkg/logger"
)

var (
	configPath string
	network    string
	dex        string
	txCount    int

	rootCmd = &cobra.Command{
		Use:   "automatord",
		Short: "EVM activity automator",
		Long: `automatord drives randomized wrap, unwrap, swap, liquidity and send
transactions from a pool of wallets against an EVM network, with bounded
retries, randomized pacing and a ledger of every attempt.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runRoot,
	}

	bannerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 2)
)

// exitCode 让 RunE 在执行完 defer 之后再以指定退出码结束进程。
type exitCode int

func (c exitCode) Error() string { return fmt.Sprintf("exit status %d", int(c)) }

func init() {
	rootCmd.Flags().StringVar(&configPath, "config", filepath.Join("configs", "automator.json"), "run configuration file")
	rootCmd.Flags().StringVar(&network, "network", "", "override run.network")
	rootCmd.Flags().StringVar(&dex, "dex", "", "override run.dex")
	rootCmd.Flags().IntVar(&txCount, "txcount", 0, "override run.transactions.count")
}

// main 是 automatord 的入口。
func main() {
	if err := rootCmd.Execute(); err != nil {
		var code exitCode
		if errors.As(err, &code) {
			os.Exit(int(code))
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runRoot(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "加载 .env 失败: %v\n", err)
	}
	fmt.Println(bannerStyle.Render("EVM Activity Automator"))

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := logger.Init(cfg.Log); err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	overrides := config.Overrides{Network: network, Dex: dex}
	if cmd.Flags().Changed("txcount") {
		overrides.TxCount = &txCount
	}

	dispatcher := alerting.FromConfig(cfg.Notifications)
	code := runner.Supervise(ctx, dispatcher, func(ctx context.Context) (runner.RunState, error) {
		return run(ctx, cfg, overrides)
	})
	if code != 0 {
		return exitCode(code)
	}
	return nil
}
