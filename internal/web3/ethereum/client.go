package ethereum

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	gethcore "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	coretypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/ethclient/simulated"
	gethrpc "github.com/ethereum/go-ethereum/rpc"
	"golang.org/x/time/rate"

	xerrors "EVM-Automator/internal/errors"
	"EVM-Automator/internal/web3"
)

const (
	defaultPollInterval   = 2 * time.Second
	defaultConfirmTimeout = 3 * time.Minute
	// verifyTimeout 限制启动时探测节点的耗时。
	verifyTimeout = 15 * time.Second
)

// Config describes how to construct an EVM compatible client.
type Config struct {
	Name   string
	RPCURL string
	// ChainID is checked against the node when set, queried from it when zero.
	ChainID           int64
	RequestsPerSecond float64
	PollInterval      time.Duration
	ConfirmTimeout    time.Duration
}

// backend is the subset of ethclient.Client used here; the simulated
// backend client satisfies it as well.
type backend interface {
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
	BlockByNumber(ctx context.Context, number *big.Int) (*coretypes.Block, error)
	CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*coretypes.Header, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	CallContract(ctx context.Context, call gethcore.CallMsg, blockNumber *big.Int) ([]byte, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	EstimateGas(ctx context.Context, call gethcore.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *coretypes.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*coretypes.Receipt, error)
	ChainID(ctx context.Context) (*big.Int, error)
}

// Client implements web3.Client for EVM compatible chains.
type Client struct {
	name           string
	rpcClient      *gethrpc.Client
	eth            *ethclient.Client
	backend        backend
	limiter        *rate.Limiter
	pollInterval   time.Duration
	confirmTimeout time.Duration
	// commit mines a block after each send on simulated chains.
	commit func()

	mu       sync.Mutex
	chainID  *big.Int
	expected *big.Int
}

// NewClient dials the configured RPC endpoint and returns a ready-to-use client.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	rpcURL := strings.TrimSpace(cfg.RPCURL)
	if rpcURL == "" {
		return nil, xerrors.Newf(xerrors.CodeConfigMissing, "network %s has no rpc_url", cfg.Name)
	}

	rpcClient, err := gethrpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeInitializationFailure, err, "连接以太坊节点失败")
	}
	eth := ethclient.NewClient(rpcClient)

	c := newClient(cfg, eth)
	c.rpcClient = rpcClient
	c.eth = eth

	// HTTP 拨号不会真正连接节点，这里发一次请求确认节点可用
	verifyCtx, cancel := context.WithTimeout(ctx, verifyTimeout)
	defer cancel()
	if err := c.Verify(verifyCtx); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

// NewSimulatedClient wraps a go-ethereum simulated backend for testing purposes.
func NewSimulatedClient(name string, sim *simulated.Backend) *Client {
	c := newClient(Config{Name: name, PollInterval: 10 * time.Millisecond, ConfirmTimeout: 5 * time.Second}, sim.Client())
	c.commit = func() { sim.Commit() }
	return c
}

func newClient(cfg Config, b backend) *Client {
	c := &Client{
		name:           cfg.Name,
		backend:        b,
		pollInterval:   cfg.PollInterval,
		confirmTimeout: cfg.ConfirmTimeout,
	}
	if c.pollInterval <= 0 {
		c.pollInterval = defaultPollInterval
	}
	if c.confirmTimeout <= 0 {
		c.confirmTimeout = defaultConfirmTimeout
	}
	if cfg.ChainID > 0 {
		c.chainID = big.NewInt(cfg.ChainID)
		c.expected = big.NewInt(cfg.ChainID)
	}
	if cfg.RequestsPerSecond > 0 {
		burst := int(cfg.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return c
}

// Name returns the network name the client was built for.
func (c *Client) Name() string { return c.name }

// Close releases network connections held by the client.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.eth != nil {
		c.eth.Close()
		c.eth = nil
	}
	if c.rpcClient != nil {
		c.rpcClient.Close()
		c.rpcClient = nil
	}
}

func (c *Client) throttle(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return xerrors.Wrap(xerrors.CodeChainFailure, err, "rpc rate limiter")
	}
	return nil
}

// Balance returns the native balance of account at the latest block.
func (c *Client) Balance(ctx context.Context, account common.Address) (*big.Int, error) {
	if err := c.throttle(ctx); err != nil {
		return nil, err
	}
	balance, err := c.backend.BalanceAt(ctx, account, nil)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeChainFailure, err, "查询余额失败")
	}
	return balance, nil
}

// BlockNumber returns the latest block height.
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	if err := c.throttle(ctx); err != nil {
		return 0, err
	}
	number, err := c.backend.BlockNumber(ctx)
	if err != nil {
		return 0, xerrors.Wrap(xerrors.CodeChainFailure, err, "获取最新区块高度失败")
	}
	return number, nil
}

// BlockTransactions loads a block with its transactions and recovers each sender.
// Transactions whose sender cannot be recovered are skipped.
func (c *Client) BlockTransactions(ctx context.Context, number uint64) ([]web3.TxSummary, error) {
	if err := c.throttle(ctx); err != nil {
		return nil, err
	}
	block, err := c.backend.BlockByNumber(ctx, new(big.Int).SetUint64(number))
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeChainFailure, err, fmt.Sprintf("获取区块 %d 失败", number))
	}
	chainID, err := c.ChainID(ctx)
	if err != nil {
		return nil, err
	}
	signer := coretypes.LatestSignerForChainID(chainID)

	txs := block.Transactions()
	out := make([]web3.TxSummary, 0, len(txs))
	for _, tx := range txs {
		from, err := coretypes.Sender(signer, tx)
		if err != nil {
			continue
		}
		out = append(out, web3.TxSummary{Hash: tx.Hash(), From: from})
	}
	return out, nil
}

// Code returns the deployed bytecode at account; empty for externally owned accounts.
func (c *Client) Code(ctx context.Context, account common.Address) ([]byte, error) {
	if err := c.throttle(ctx); err != nil {
		return nil, err
	}
	code, err := c.backend.CodeAt(ctx, account, nil)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeChainFailure, err, "查询合约代码失败")
	}
	return code, nil
}

// FeeData derives EIP-1559 caps as maxFee = 2*baseFee + tip. Chains without a
// base fee fall back to the legacy gas price for both caps.
func (c *Client) FeeData(ctx context.Context) (web3.FeeData, error) {
	if err := c.throttle(ctx); err != nil {
		return web3.FeeData{}, err
	}
	head, err := c.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return web3.FeeData{}, xerrors.Wrap(xerrors.CodeChainFailure, err, "获取最新区块头失败")
	}
	if head.BaseFee == nil {
		price, err := c.backend.SuggestGasPrice(ctx)
		if err != nil {
			return web3.FeeData{}, xerrors.Wrap(xerrors.CodeChainFailure, err, "获取 gas price 失败")
		}
		return web3.FeeData{MaxFeePerGas: price, MaxPriorityFeePerGas: new(big.Int).Set(price)}, nil
	}
	tip, err := c.backend.SuggestGasTipCap(ctx)
	if err != nil {
		return web3.FeeData{}, xerrors.Wrap(xerrors.CodeChainFailure, err, "获取 gas tip 失败")
	}
	maxFee := new(big.Int).Mul(head.BaseFee, big.NewInt(2))
	maxFee.Add(maxFee, tip)
	return web3.FeeData{MaxFeePerGas: maxFee, MaxPriorityFeePerGas: tip}, nil
}

// Call runs a read-only eth_call against the latest block.
func (c *Client) Call(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	if err := c.throttle(ctx); err != nil {
		return nil, err
	}
	out, err := c.backend.CallContract(ctx, gethcore.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeChainFailure, err, fmt.Sprintf("调用合约 %s 失败", to.Hex()))
	}
	return out, nil
}

// ChainID returns the configured chain id or asks the node once.
func (c *Client) ChainID(ctx context.Context) (*big.Int, error) {
	c.mu.Lock()
	cached := c.chainID
	c.mu.Unlock()
	if cached != nil {
		return cached, nil
	}
	if err := c.throttle(ctx); err != nil {
		return nil, err
	}
	id, err := c.backend.ChainID(ctx)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeChainFailure, err, "获取链 ID 失败")
	}
	c.mu.Lock()
	c.chainID = id
	c.mu.Unlock()
	return id, nil
}

// Verify asks the node for its chain id. An unreachable node or one whose
// chain id differs from the configured value is an initialization failure.
func (c *Client) Verify(ctx context.Context) error {
	if err := c.throttle(ctx); err != nil {
		return xerrors.Wrap(xerrors.CodeInitializationFailure, err, fmt.Sprintf("network %s is unreachable", c.name))
	}
	id, err := c.backend.ChainID(ctx)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeInitializationFailure, err, fmt.Sprintf("network %s is unreachable", c.name))
	}
	if c.expected != nil && c.expected.Cmp(id) != 0 {
		return xerrors.New(xerrors.CodeInitializationFailure,
			fmt.Sprintf("network %s: configured chain_id %s but node reports %s", c.name, c.expected, id),
			xerrors.WithMetadata("network", c.name))
	}
	c.mu.Lock()
	c.chainID = id
	c.mu.Unlock()
	return nil
}

// Submit populates nonce, gas and fees, signs the call with signer and
// broadcasts it.
func (c *Client) Submit(ctx context.Context, signer web3.Signer, call web3.Call) (*coretypes.Transaction, error) {
	if signer == nil {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "未提供交易签名器")
	}
	chainID, err := c.ChainID(ctx)
	if err != nil {
		return nil, err
	}
	from := signer.Address()

	fees := call.Fees
	if fees == nil {
		data, err := c.FeeData(ctx)
		if err != nil {
			return nil, err
		}
		fees = &data
	}
	value := call.Value
	if value == nil {
		value = new(big.Int)
	}

	if err := c.throttle(ctx); err != nil {
		return nil, err
	}
	nonce, err := c.backend.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeChainFailure, err, "查询交易计数失败")
	}

	gas := call.GasLimit
	if gas == 0 {
		if err := c.throttle(ctx); err != nil {
			return nil, err
		}
		to := call.To
		gas, err = c.backend.EstimateGas(ctx, gethcore.CallMsg{
			From:      from,
			To:        &to,
			Value:     value,
			Data:      call.Data,
			GasFeeCap: fees.MaxFeePerGas,
			GasTipCap: fees.MaxPriorityFeePerGas,
		})
		if err != nil {
			return nil, xerrors.Wrap(xerrors.CodeChainFailure, err, "估算 gas 失败")
		}
	}

	to := call.To
	tx := coretypes.NewTx(&coretypes.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     nonce,
		GasTipCap: fees.MaxPriorityFeePerGas,
		GasFeeCap: fees.MaxFeePerGas,
		Gas:       gas,
		To:        &to,
		Value:     value,
		Data:      call.Data,
	})
	signed, err := signer.SignTx(tx, chainID)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "签名交易失败")
	}

	if err := c.throttle(ctx); err != nil {
		return nil, err
	}
	if err := c.backend.SendTransaction(ctx, signed); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeChainFailure, err, "发送交易失败")
	}
	if c.commit != nil {
		c.commit()
	}
	return signed, nil
}

// Wait polls for the receipt of tx until it is mined, reverted or the
// confirmation timeout elapses.
func (c *Client) Wait(ctx context.Context, tx *coretypes.Transaction) (web3.Receipt, error) {
	if tx == nil {
		return web3.Receipt{}, xerrors.New(xerrors.CodeInvalidArgument, "交易为空")
	}
	waitCtx, cancel := context.WithTimeout(ctx, c.confirmTimeout)
	defer cancel()

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	hash := tx.Hash()
	for {
		if err := c.throttle(waitCtx); err != nil {
			return web3.Receipt{}, c.waitError(ctx, hash, err)
		}
		receipt, err := c.backend.TransactionReceipt(waitCtx, hash)
		if err == nil && receipt != nil {
			if receipt.Status != coretypes.ReceiptStatusSuccessful {
				return web3.Receipt{}, xerrors.New(xerrors.CodeTxReverted, fmt.Sprintf("交易 %s 执行回滚", hash.Hex()),
					xerrors.WithMetadata("tx_hash", hash.Hex()))
			}
			var block uint64
			if receipt.BlockNumber != nil {
				block = receipt.BlockNumber.Uint64()
			}
			return web3.Receipt{Hash: hash, GasUsed: receipt.GasUsed, BlockNumber: block}, nil
		}
		if err != nil && !errors.Is(err, gethcore.NotFound) && waitCtx.Err() == nil {
			return web3.Receipt{}, xerrors.Wrap(xerrors.CodeChainFailure, err, fmt.Sprintf("查询交易 %s 回执失败", hash.Hex()))
		}

		select {
		case <-waitCtx.Done():
			return web3.Receipt{}, c.waitError(ctx, hash, waitCtx.Err())
		case <-ticker.C:
		}
	}
}

func (c *Client) waitError(parent context.Context, hash common.Hash, err error) error {
	if parent.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
		return xerrors.Wrap(xerrors.CodeTimeout, err, fmt.Sprintf("等待交易 %s 确认超时", hash.Hex()))
	}
	return xerrors.Wrap(xerrors.CodeChainFailure, err, fmt.Sprintf("等待交易 %s 确认中断", hash.Hex()))
}

var _ web3.Client = (*Client)(nil)
