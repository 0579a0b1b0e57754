package action

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"EVM-Automator/internal/config"
	"EVM-Automator/internal/ledger"
	"EVM-Automator/internal/web3"
)

var (
	wphrsAddr   = common.HexToAddress("0x76aaaDA469D23216bE5f7C596fA25F282Ff9b364")
	usdcAddr    = common.HexToAddress("0x72df0bcd7276f2dFbAc900D1CE63c272C4BCcCED")
	usdtAddr    = common.HexToAddress("0xD4071393f8716661958F766DF660033b3d35fD29")
	routerAddr  = common.HexToAddress("0x1A4DE519154Ae51200b0Ad7c90F7faC75547888a")
	managerAddr = common.HexToAddress("0xF8a1D4FF0f9b9Af7CE58E1fc1833688F3BFd6115")
)

func ether(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1_000_000_000_000_000_000))
}

type keySigner struct{ addr common.Address }

func newSigner() keySigner {
	key, _ := crypto.GenerateKey()
	return keySigner{addr: crypto.PubkeyToAddress(key.PublicKey)}
}

func (s keySigner) Address() common.Address { return s.addr }

func (s keySigner) SignTx(tx *types.Transaction, _ *big.Int) (*types.Transaction, error) {
	return tx, nil
}

type submitted struct {
	call   web3.Call
	method string
	args   []any
}

// fakeChain 在内存中模拟 ERC-20 查询、授权与区块数据。
type fakeChain struct {
	mu        sync.Mutex
	native    map[common.Address]*big.Int
	balances  map[common.Address]map[common.Address]*big.Int
	allowance map[[3]common.Address]*big.Int
	decimals  map[common.Address]uint8
	code      map[common.Address][]byte
	latest    uint64
	blocks    map[uint64][]web3.TxSummary
	calls     []submitted
	blockReqs int
	submitErr error
	waitErr   error
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		native:    map[common.Address]*big.Int{},
		balances:  map[common.Address]map[common.Address]*big.Int{},
		allowance: map[[3]common.Address]*big.Int{},
		decimals:  map[common.Address]uint8{wphrsAddr: 18, usdcAddr: 6, usdtAddr: 6},
		code:      map[common.Address][]byte{},
		blocks:    map[uint64][]web3.TxSummary{},
	}
}

func (f *fakeChain) setBalance(token, owner common.Address, v *big.Int) {
	if f.balances[token] == nil {
		f.balances[token] = map[common.Address]*big.Int{}
	}
	f.balances[token][owner] = v
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}

func (f *fakeChain) Balance(_ context.Context, account common.Address) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return orZero(f.native[account]), nil
}

func (f *fakeChain) BlockNumber(context.Context) (uint64, error) { return f.latest, nil }

func (f *fakeChain) BlockTransactions(_ context.Context, number uint64) ([]web3.TxSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blockReqs++
	txs, ok := f.blocks[number]
	if !ok {
		return nil, fmt.Errorf("block %d not found", number)
	}
	return txs, nil
}

func (f *fakeChain) Code(_ context.Context, account common.Address) ([]byte, error) {
	return f.code[account], nil
}

func (f *fakeChain) FeeData(context.Context) (web3.FeeData, error) {
	return web3.FeeData{MaxFeePerGas: big.NewInt(3_000_000_000), MaxPriorityFeePerGas: big.NewInt(1_000_000_000)}, nil
}

func (f *fakeChain) Call(_ context.Context, to common.Address, data []byte) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	method, err := ERC20ABI.MethodById(data[:4])
	if err != nil {
		return nil, err
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, err
	}
	switch method.Name {
	case "balanceOf":
		return method.Outputs.Pack(orZero(f.balances[to][args[0].(common.Address)]))
	case "allowance":
		key := [3]common.Address{to, args[0].(common.Address), args[1].(common.Address)}
		return method.Outputs.Pack(orZero(f.allowance[key]))
	case "decimals":
		return method.Outputs.Pack(f.decimals[to])
	default:
		return nil, fmt.Errorf("unexpected eth_call %s", method.Name)
	}
}

func (f *fakeChain) Submit(_ context.Context, signer web3.Signer, call web3.Call) (*types.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	entry := submitted{call: call}
	entry.method, entry.args, _ = decodeCall(call.Data)
	if entry.method == "approve" {
		key := [3]common.Address{call.To, signer.Address(), entry.args[0].(common.Address)}
		f.allowance[key] = entry.args[1].(*big.Int)
	}
	f.calls = append(f.calls, entry)
	to := call.To
	return types.NewTx(&types.LegacyTx{Nonce: uint64(len(f.calls)), To: &to, Data: call.Data, Value: call.Value, Gas: call.GasLimit}), nil
}

func (f *fakeChain) Wait(_ context.Context, tx *types.Transaction) (web3.Receipt, error) {
	if f.waitErr != nil {
		return web3.Receipt{}, f.waitErr
	}
	return web3.Receipt{Hash: tx.Hash(), GasUsed: 50_000 + tx.Nonce(), BlockNumber: f.latest}, nil
}

func (f *fakeChain) Close() {}

func (f *fakeChain) methods() []string {
	names := make([]string, len(f.calls))
	for i, c := range f.calls {
		names[i] = c.method
	}
	return names
}

func decodeCall(data []byte) (string, []any, bool) {
	if len(data) < 4 {
		return "", nil, false
	}
	for _, parsed := range []abi.ABI{ERC20ABI, RouterABI, PositionManagerABI} {
		method, err := parsed.MethodById(data[:4])
		if err != nil {
			continue
		}
		args, err := method.Inputs.Unpack(data[4:])
		if err != nil {
			return "", nil, false
		}
		return method.Name, args, true
	}
	return "", nil, false
}

type memRecorder struct{ entries []ledger.Entry }

func (m *memRecorder) Record(_ context.Context, e ledger.Entry) { m.entries = append(m.entries, e) }

func (m *memRecorder) statuses() []ledger.Status {
	out := make([]ledger.Status, len(m.entries))
	for i, e := range m.entries {
		out[i] = e.Status
	}
	return out
}

// seqRand 依次返回预设的随机值，用尽后返回 0。
type seqRand struct {
	floats []float64
	ints   []int
}

func (r *seqRand) Float64() float64 {
	if len(r.floats) == 0 {
		return 0
	}
	v := r.floats[0]
	r.floats = r.floats[1:]
	return v
}

func (r *seqRand) IntN(n int) int {
	if len(r.ints) == 0 {
		return 0
	}
	v := r.ints[0] % n
	r.ints = r.ints[1:]
	return v
}

func testRun() config.RunConfig {
	lower, upper := int32(config.DefaultTickLower), int32(config.DefaultTickUpper)
	return config.RunConfig{
		Network: "pharos-testnet",
		Dex:     "zenith",
		Transactions: config.TransactionConfig{
			Types: []string{"swap", "liquidity", "send", "wrap", "unwrap"},
		},
		Swap: config.SwapConfig{
			ValidPairs:      [][]string{{"WPHRS", "USDC"}, {"USDC", "WPHRS"}},
			AmountInPercent: config.Range{Min: 1, Max: 5},
			FeeTier:         500,
		},
		AddLiquidity: config.LiquidityConfig{
			TokenA: "USDT", TokenB: "USDC",
			AmountAPercent: config.Range{Min: 1, Max: 1},
			AmountBPercent: config.Range{Min: 2, Max: 2},
			FeeTier:        500,
			TickLower:      &lower,
			TickUpper:      &upper,
		},
		Send: config.SendConfig{Token: "USDC", AmountPercent: config.Range{Min: 0.1, Max: 0.5}},
		Wrap: config.PercentConfig{AmountPercent: config.Range{Min: 1, Max: 3}},
	}
}

func testChain() web3.ChainDefinition {
	return web3.ChainDefinition{
		RPCURL:        "http://127.0.0.1:8545",
		ChainID:       688688,
		NativeSymbol:  "PHRS",
		WrappedNative: "WPHRS",
		Tokens: map[string]string{
			"WPHRS": wphrsAddr.Hex(),
			"USDC":  usdcAddr.Hex(),
			"USDT":  usdtAddr.Hex(),
		},
	}
}

var fixedNow = time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

type harness struct {
	chain    *fakeChain
	recorder *memRecorder
	rng      *seqRand
	sleeps   []time.Duration
	exec     *Executor
}

func newHarness(run config.RunConfig, dex config.DexConfig) *harness {
	h := &harness{chain: newFakeChain(), recorder: &memRecorder{}, rng: &seqRand{}}
	catalog, err := NewCatalog(run, dex, testChain(), h.rng)
	if err != nil {
		panic(err)
	}
	h.exec = NewExecutor(h.chain, catalog, h.recorder, Options{
		ApprovalSettle: 5 * time.Second,
		Sleep: func(_ context.Context, d time.Duration) error {
			h.sleeps = append(h.sleeps, d)
			return nil
		},
		Now: func() time.Time { return fixedNow },
	})
	return h
}

func defaultDex() config.DexConfig {
	return config.DexConfig{Router: routerAddr.Hex(), PositionManager: managerAddr.Hex()}
}
