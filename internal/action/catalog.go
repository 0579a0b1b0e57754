package action

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"EVM-Automator/internal/config"
	xerrors "EVM-Automator/internal/errors"
	"EVM-Automator/internal/web3"
)

// Catalog 持有启用的交易类型与各类型的随机化规则。
type Catalog struct {
	kinds []Kind
	run   config.RunConfig
	dex   config.DexConfig
	chain web3.ChainDefinition
	rng   Rand
}

// NewCatalog 从运行配置构建目录，类型列表不能为空。
func NewCatalog(run config.RunConfig, dex config.DexConfig, chain web3.ChainDefinition, rng Rand) (*Catalog, error) {
	if rng == nil {
		rng = DefaultRand()
	}
	kinds := make([]Kind, 0, len(run.Transactions.Types))
	for _, name := range run.Transactions.Types {
		kind, err := ParseKind(name)
		if err != nil {
			return nil, err
		}
		kinds = append(kinds, kind)
	}
	if len(kinds) == 0 {
		return nil, xerrors.New(xerrors.CodeConfigMissing, "no transaction types enabled")
	}
	return &Catalog{kinds: kinds, run: run, dex: dex, chain: chain, rng: rng}, nil
}

// PickKind 均匀选择一个启用的类型。
func (c *Catalog) PickKind() Kind {
	return c.kinds[c.rng.IntN(len(c.kinds))]
}

// PickPair 均匀选择一个兑换交易对，返回 (输入, 输出)。
func (c *Catalog) PickPair() (string, string, error) {
	pairs := c.run.Swap.ValidPairs
	if len(pairs) == 0 {
		return "", "", xerrors.New(xerrors.CodeConfigMissing, "no swap pairs configured")
	}
	pair := pairs[c.rng.IntN(len(pairs))]
	if len(pair) != 2 {
		return "", "", xerrors.Newf(xerrors.CodeConfigMissing, "swap pair %v must name two tokens", pair)
	}
	return pair[0], pair[1], nil
}

// Amount 按区间随机取余额的一部分。
func (c *Catalog) Amount(balance *big.Int, r config.Range) *big.Int {
	return ResolveAmount(c.rng, balance, r)
}

// Token 查找当前网络上的代币地址。
func (c *Catalog) Token(symbol string) (common.Address, error) {
	return c.chain.TokenAddress(symbol)
}

// WrappedNative 返回包装原生币的符号与地址。
func (c *Catalog) WrappedNative() (string, common.Address, error) {
	addr, err := c.chain.WrappedNativeAddress()
	if err != nil {
		return "", common.Address{}, err
	}
	return c.chain.WrappedNative, addr, nil
}

// NativeSymbol 返回原生币符号。
func (c *Catalog) NativeSymbol() string {
	if c.chain.NativeSymbol == "" {
		return "ETH"
	}
	return c.chain.NativeSymbol
}

// Router 返回当前 DEX 的路由合约。
func (c *Catalog) Router() (common.Address, error) {
	if !common.IsHexAddress(c.dex.Router) {
		return common.Address{}, xerrors.Newf(xerrors.CodeConfigMissing, "DEX '%s' router not configured", c.run.Dex)
	}
	return common.HexToAddress(c.dex.Router), nil
}

// PositionManager 返回当前 DEX 的仓位管理合约。
func (c *Catalog) PositionManager() (common.Address, error) {
	if !common.IsHexAddress(c.dex.PositionManager) {
		return common.Address{}, xerrors.New(xerrors.CodeConfigMissing, "Position Manager not configured")
	}
	return common.HexToAddress(c.dex.PositionManager), nil
}

// Run 返回运行配置。
func (c *Catalog) Run() config.RunConfig { return c.run }

// Rand 返回目录使用的随机源。
func (c *Catalog) Rand() Rand { return c.rng }
