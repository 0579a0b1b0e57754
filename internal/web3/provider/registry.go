package provider

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	xerrors "EVM-Automator/internal/errors"
	"EVM-Automator/internal/web3"
	"EVM-Automator/internal/web3/ethereum"
)

// Options tunes every client opened by the registry.
type Options struct {
	RequestsPerSecond float64
	PollInterval      time.Duration
	ConfirmTimeout    time.Duration
}

// Dialer builds a chain client; replaced in tests.
type Dialer func(ctx context.Context, cfg ethereum.Config) (web3.Client, error)

// Registry manages chain clients keyed by network name.
type Registry struct {
	defs    web3.ChainDefinitions
	opts    Options
	dial    Dialer
	mu      sync.Mutex
	clients map[string]web3.Client
}

// NewRegistry validates the definitions and prepares lazy client construction.
func NewRegistry(defs web3.ChainDefinitions, opts Options) (*Registry, error) {
	if len(defs.Chains) == 0 {
		return nil, errors.New("未配置任何链的 RPC 端点")
	}
	for name, chain := range defs.Chains {
		chainType := strings.ToLower(strings.TrimSpace(chain.Type))
		if chainType != "" && chainType != "evm" {
			return nil, fmt.Errorf("链 %s 使用了不支持的类型 %s", name, chain.Type)
		}
	}
	return &Registry{
		defs: defs,
		opts: opts,
		dial: func(ctx context.Context, cfg ethereum.Config) (web3.Client, error) {
			return ethereum.NewClient(ctx, cfg)
		},
		clients: make(map[string]web3.Client),
	}, nil
}

// WithDialer swaps the client constructor.
func (r *Registry) WithDialer(d Dialer) *Registry {
	r.dial = d
	return r
}

// Definition returns the chain definition for name.
func (r *Registry) Definition(name string) (web3.ChainDefinition, error) {
	chain, ok := r.defs.Chains[name]
	if !ok {
		return web3.ChainDefinition{}, xerrors.Newf(xerrors.CodeConfigMissing, "network %s not found in chain definitions", name)
	}
	return chain, nil
}

// Client returns the client for network name, dialing it on first use.
func (r *Registry) Client(ctx context.Context, name string) (web3.Client, error) {
	if r == nil {
		return nil, errors.New("未初始化的链客户端注册表")
	}
	chain, err := r.Definition(name)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if client, ok := r.clients[name]; ok {
		return client, nil
	}
	client, err := r.dial(ctx, ethereum.Config{
		Name:              name,
		RPCURL:            chain.RPCURL,
		ChainID:           chain.ChainID,
		RequestsPerSecond: r.opts.RequestsPerSecond,
		PollInterval:      r.opts.PollInterval,
		ConfirmTimeout:    r.opts.ConfirmTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("初始化链 %s 失败: %w", name, err)
	}
	r.clients[name] = client
	return client, nil
}

// Close releases all clients managed by the registry.
func (r *Registry) Close() {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, client := range r.clients {
		if client != nil {
			client.Close()
		}
		delete(r.clients, name)
	}
}

// Chains returns the list of configured network names.
func (r *Registry) Chains() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.defs.Chains))
	for name := range r.defs.Chains {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
