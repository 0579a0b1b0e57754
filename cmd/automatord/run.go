package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"EVM-Automator/internal/action"
	"EVM-Automator/internal/config"
	xerrors "EVM-Automator/internal/errors"
	"EVM-Automator/internal/ledger"
	"EVM-Automator/internal/observability/metrics"
	"EVM-Automator/internal/runner"
	"EVM-Automator/internal/wallet"
	"EVM-Automator/internal/web3"
	"EVM-Automator/internal/web3/provider"
	"EVM-Automator/pkg/logger"
)

// run 完成覆盖项、链客户端、钱包池与记录后端的装配，然后执行交易循环。
func run(ctx context.Context, cfg *config.Config, overrides config.Overrides) (runner.RunState, error) {
	state := runner.RunState{Network: cfg.Run.Network}
	if err := cfg.ApplyOverrides(overrides); err != nil {
		return state, err
	}
	state.Network = cfg.Run.Network
	if err := cfg.Validate(); err != nil {
		return state, err
	}
	log := logger.Named("automatord")
	log.Info(fmt.Sprintf("Using Network: %s | Using DEX: %s", cfg.Run.Network, cfg.Run.Dex))

	defs, err := web3.LoadChainDefinitions(cfg.Web3.ChainConfig)
	if err != nil {
		return state, err
	}
	registry, err := provider.NewRegistry(defs, provider.Options{
		RequestsPerSecond: cfg.Web3.RequestsPerSecond,
		PollInterval:      time.Duration(cfg.Web3.PollIntervalMillis) * time.Millisecond,
		ConfirmTimeout:    time.Duration(cfg.Web3.ConfirmTimeoutSeconds) * time.Second,
	})
	if err != nil {
		return state, xerrors.Wrap(xerrors.CodeInitializationFailure, err, "chain registry")
	}
	defer registry.Close()

	chain, err := registry.Definition(cfg.Run.Network)
	if err != nil {
		return state, err
	}
	client, err := registry.Client(ctx, cfg.Run.Network)
	if err != nil {
		return state, xerrors.Wrap(xerrors.CodeInitializationFailure, err, fmt.Sprintf("connect network %s", cfg.Run.Network))
	}

	identities, err := wallet.Load(wallet.FromEnviron(os.Environ()))
	if err != nil {
		return state, err
	}
	pool, err := wallet.NewPool(identities, nil)
	if err != nil {
		return state, err
	}
	policy, err := wallet.ParsePolicy(cfg.Run.Wallets.Selection)
	if err != nil {
		return state, err
	}
	log.Info(fmt.Sprintf("Loaded %d wallets", pool.Size()), slog.String("selection", string(policy)))

	sinks, err := ledger.OpenSinks(ctx, cfg.Ledger)
	if err != nil {
		return state, err
	}
	book := ledger.New("", cfg.Run.Network, sinks...)
	defer func() {
		if err := book.Close(); err != nil {
			log.Error("关闭交易记录失败", slog.Any("error", err))
		}
	}()
	state.RunID = book.RunID()

	dexCfg, err := cfg.ActiveDex()
	if err != nil {
		return state, err
	}
	rng := action.DefaultRand()
	catalog, err := action.NewCatalog(cfg.Run, dexCfg, chain, rng)
	if err != nil {
		return state, err
	}
	executor := action.NewExecutor(client, catalog, book, action.Options{
		ApprovalSettle: action.Seconds(cfg.Run.ApprovalSettle()),
	})
	orch := runner.NewOrchestrator(executor, book, runner.RetryOptions{
		RetryCount: cfg.Run.Transactions.RetryCount,
		Settle:     action.Seconds(cfg.Run.RetrySettle()),
		Network:    cfg.Run.Network,
	})
	loop := runner.NewLoop(pool, catalog, orch, runner.LoopOptions{
		RunID:   book.RunID(),
		Network: cfg.Run.Network,
		Count:   cfg.Run.Transactions.Count,
		Delay:   cfg.Run.Transactions.DelaySeconds,
		Policy:  policy,
		Rand:    rng,
	})

	// 循环结束后取消 ctx，让指标服务随之退出。
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gCtx := errgroup.WithContext(runCtx)
	if addr := cfg.Metrics.Address; addr != "" {
		g.Go(func() error {
			if err := metrics.StartServer(gCtx, addr); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("指标服务退出", slog.Any("error", err), slog.String("address", addr))
			}
			return nil
		})
	}
	g.Go(func() error {
		defer cancel()
		var err error
		state, err = loop.Run(gCtx)
		return err
	})
	err = g.Wait()
	return state, err
}
