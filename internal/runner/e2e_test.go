package runner

import (
	"context"
	"encoding/csv"
	"math/big"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"EVM-Automator/internal/action"
	"EVM-Automator/internal/config"
	xerrors "EVM-Automator/internal/errors"
	"EVM-Automator/internal/ledger"
	"EVM-Automator/internal/observability/alerting"
	"EVM-Automator/internal/web3"
)

var wrappedAddr = common.HexToAddress("0x76aaaDA469D23216bE5f7C596fA25F282Ff9b364")

// wrapChain 只支持 wrap 所需的余额查询与提交。
type wrapChain struct {
	mu        sync.Mutex
	balance   *big.Int
	submitErr error
	// failFirst 让前 N 次提交失败，之后恢复正常。
	failFirst int
	nonce     uint64
	submitted int
}

func (c *wrapChain) Balance(context.Context, common.Address) (*big.Int, error) {
	return new(big.Int).Set(c.balance), nil
}

func (c *wrapChain) BlockNumber(context.Context) (uint64, error) { return 1, nil }

func (c *wrapChain) BlockTransactions(context.Context, uint64) ([]web3.TxSummary, error) {
	return nil, nil
}

func (c *wrapChain) Code(context.Context, common.Address) ([]byte, error) { return nil, nil }

func (c *wrapChain) FeeData(context.Context) (web3.FeeData, error) {
	return web3.FeeData{MaxFeePerGas: big.NewInt(2), MaxPriorityFeePerGas: big.NewInt(1)}, nil
}

func (c *wrapChain) Call(context.Context, common.Address, []byte) ([]byte, error) { return nil, nil }

func (c *wrapChain) Submit(_ context.Context, _ web3.Signer, call web3.Call) (*types.Transaction, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.submitted++
	if c.submitErr != nil {
		return nil, c.submitErr
	}
	if c.submitted <= c.failFirst {
		return nil, xerrors.New(xerrors.CodeChainFailure, "replacement transaction underpriced")
	}
	c.nonce++
	return types.NewTx(&types.DynamicFeeTx{Nonce: c.nonce, To: &call.To, Value: call.Value, Data: call.Data}), nil
}

func (c *wrapChain) Wait(_ context.Context, tx *types.Transaction) (web3.Receipt, error) {
	return web3.Receipt{Hash: tx.Hash(), GasUsed: 45_000, BlockNumber: tx.Nonce()}, nil
}

func (c *wrapChain) Close() {}

type scenario struct {
	chain      *wrapChain
	csvPath    string
	sleeps     *sleepLog
	dispatcher *captureDispatcher
	run        RunFunc
}

// newScenario 按 count=3、单钱包、仅 wrap、retry=1、延迟 [1,1] 装配完整链路。
func newScenario(t *testing.T, submitErr error) *scenario {
	t.Helper()
	return newScenarioWith(t, &wrapChain{submitErr: submitErr}, 3, 1)
}

func newScenarioWith(t *testing.T, chain *wrapChain, count, retry int) *scenario {
	t.Helper()
	if chain.balance == nil {
		chain.balance = big.NewInt(1_000_000_000_000_000_000)
	}
	s := &scenario{
		chain:      chain,
		csvPath:    filepath.Join(t.TempDir(), "transactions.csv"),
		sleeps:     &sleepLog{},
		dispatcher: &captureDispatcher{},
	}
	runCfg := config.RunConfig{
		Network: "pharos-testnet",
		Transactions: config.TransactionConfig{
			Count:        count,
			DelaySeconds: config.Range{Min: 1, Max: 1},
			Types:        []string{config.TypeWrap},
			RetryCount:   retry,
		},
		Wrap: config.PercentConfig{AmountPercent: config.Range{Min: 10, Max: 10}},
	}
	def := web3.ChainDefinition{
		ChainID:       688688,
		NativeSymbol:  "PHRS",
		WrappedNative: "WPHRS",
		Tokens:        map[string]string{"WPHRS": wrappedAddr.Hex()},
	}

	s.run = func(ctx context.Context) (RunState, error) {
		sink, err := ledger.NewCSVSink(s.csvPath)
		if err != nil {
			return RunState{}, err
		}
		book := ledger.New("", runCfg.Network, sink)
		defer book.Close()

		catalog, err := action.NewCatalog(runCfg, config.DexConfig{}, def, nil)
		if err != nil {
			return RunState{}, err
		}
		executor := action.NewExecutor(s.chain, catalog, book, action.Options{Sleep: s.sleeps.sleep})
		orch := NewOrchestrator(executor, book, RetryOptions{
			RetryCount: runCfg.Transactions.RetryCount,
			Settle:     5 * time.Second,
			Network:    runCfg.Network,
			Sleep:      s.sleeps.sleep,
		})
		pool, _ := newPool(t, 1)
		loop := NewLoop(pool, catalog, orch, LoopOptions{
			RunID:   book.RunID(),
			Network: runCfg.Network,
			Count:   runCfg.Transactions.Count,
			Delay:   runCfg.Transactions.DelaySeconds,
			Sleep:   s.sleeps.sleep,
		})
		return loop.Run(ctx)
	}
	return s
}

func (s *scenario) statuses(t *testing.T) map[string]int {
	t.Helper()
	f, err := os.Open(s.csvPath)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.NotEmpty(t, rows)
	assert.Equal(t, "Status", rows[0][3])
	counts := map[string]int{}
	for _, row := range rows[1:] {
		assert.Equal(t, "Wrap", row[2])
		counts[row[3]]++
	}
	return counts
}

func TestScenarioWrapAlwaysSucceeds(t *testing.T) {
	s := newScenario(t, nil)

	code := Supervise(context.Background(), s.dispatcher, s.run)
	assert.Equal(t, 0, code)

	counts := s.statuses(t)
	assert.Equal(t, 3, counts[string(ledger.StatusSuccess)])
	assert.Equal(t, 3, counts[string(ledger.StatusPending)])
	assert.Zero(t, counts[string(ledger.StatusFailure)])
	assert.Equal(t, 3, s.chain.submitted)
	assert.Equal(t, []time.Duration{time.Second, time.Second}, s.sleeps.waits)

	require.Len(t, s.dispatcher.events, 1)
	assert.Equal(t, alerting.KindSuccess, s.dispatcher.events[0].Kind)
	assert.Equal(t, 3, s.dispatcher.events[0].Successes)
}

func TestScenarioWrapAlwaysFails(t *testing.T) {
	s := newScenario(t, xerrors.New(xerrors.CodeChainFailure, "insufficient funds for gas"))

	code := Supervise(context.Background(), s.dispatcher, s.run)
	assert.Equal(t, 0, code)

	counts := s.statuses(t)
	assert.Equal(t, 3, counts[string(ledger.StatusFailure)])
	assert.Zero(t, counts[string(ledger.StatusSuccess)])
	// 每轮两次尝试，每次尝试各写一条 pending
	assert.Equal(t, 6, counts[string(ledger.StatusPending)])
	assert.Equal(t, 6, s.chain.submitted)

	// 每轮一次重试间隔，外加两次迭代间隔
	assert.Equal(t, []time.Duration{
		5 * time.Second, time.Second,
		5 * time.Second, time.Second,
		5 * time.Second,
	}, s.sleeps.waits)

	require.Len(t, s.dispatcher.events, 1)
	ev := s.dispatcher.events[0]
	assert.Equal(t, alerting.KindSuccess, ev.Kind)
	assert.Equal(t, 3, ev.Failures)
	assert.Contains(t, ev.Text, "0 succeeded, 3 failed")
}

func TestScenarioWrapSucceedsOnThirdAttempt(t *testing.T) {
	s := newScenarioWith(t, &wrapChain{failFirst: 2}, 1, 3)

	code := Supervise(context.Background(), s.dispatcher, s.run)
	assert.Equal(t, 0, code)

	// 第 k 次成功：k 条 pending，一条 success，没有 failure
	counts := s.statuses(t)
	assert.Equal(t, 3, counts[string(ledger.StatusPending)])
	assert.Equal(t, 1, counts[string(ledger.StatusSuccess)])
	assert.Zero(t, counts[string(ledger.StatusFailure)])
	assert.Equal(t, 3, s.chain.submitted)
	assert.Equal(t, []time.Duration{5 * time.Second, 5 * time.Second}, s.sleeps.waits)

	require.Len(t, s.dispatcher.events, 1)
	assert.Equal(t, 1, s.dispatcher.events[0].Successes)
	assert.Zero(t, s.dispatcher.events[0].Failures)
}
