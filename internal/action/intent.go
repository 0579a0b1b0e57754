package action

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Token 是解析后的代币。
type Token struct {
	Symbol   string
	Address  common.Address
	Decimals uint8
}

// Intent 是一次尝试的已解析动作，每次尝试重新构建。
type Intent interface {
	Kind() Kind
	Details() string
	isIntent()
}

// WrapIntent 将原生币存入包装合约。
type WrapIntent struct {
	NativeSymbol string
	Wrapped      Token
	Amount       *big.Int
}

// UnwrapIntent 从包装合约取回原生币。
type UnwrapIntent struct {
	NativeSymbol string
	Wrapped      Token
	Amount       *big.Int
}

// SwapIntent 通过路由合约单池兑换。
type SwapIntent struct {
	Router   common.Address
	TokenIn  Token
	TokenOut Token
	AmountIn *big.Int
	Fee      uint32
	Deadline *big.Int
}

// LiquidityIntent 在仓位管理合约上铸造全区间仓位，Token0 地址总是较小的一方。
type LiquidityIntent struct {
	PositionManager common.Address
	// Pair 保留配置中的顺序，只用于展示。
	Pair      [2]string
	Token0    Token
	Token1    Token
	Amount0   *big.Int
	Amount1   *big.Int
	Fee       uint32
	TickLower int32
	TickUpper int32
	Deadline  *big.Int
}

// SendIntent 将代币转给一个近期活跃的外部账户。
type SendIntent struct {
	Token     Token
	Recipient common.Address
	Amount    *big.Int
}

func (WrapIntent) Kind() Kind      { return KindWrap }
func (UnwrapIntent) Kind() Kind    { return KindUnwrap }
func (SwapIntent) Kind() Kind      { return KindSwap }
func (LiquidityIntent) Kind() Kind { return KindAddLiquidity }
func (SendIntent) Kind() Kind      { return KindSend }

func (WrapIntent) isIntent()      {}
func (UnwrapIntent) isIntent()    {}
func (SwapIntent) isIntent()      {}
func (LiquidityIntent) isIntent() {}
func (SendIntent) isIntent()      {}

func (i WrapIntent) Details() string {
	return fmt.Sprintf("Wrap %s %s to %s", FormatUnits(i.Amount, 18), i.NativeSymbol, i.Wrapped.Symbol)
}

func (i UnwrapIntent) Details() string {
	return fmt.Sprintf("Unwrap %s %s to %s", FormatUnits(i.Amount, 18), i.Wrapped.Symbol, i.NativeSymbol)
}

func (i SwapIntent) Details() string {
	return fmt.Sprintf("Swap %s %s for %s", FormatUnits(i.AmountIn, i.TokenIn.Decimals), i.TokenIn.Symbol, i.TokenOut.Symbol)
}

func (i LiquidityIntent) Details() string {
	return fmt.Sprintf("Add V3 Liquidity for %s/%s", i.Pair[0], i.Pair[1])
}

func (i SendIntent) Details() string {
	return fmt.Sprintf("Send %s %s to %s", FormatUnits(i.Amount, i.Token.Decimals), i.Token.Symbol, i.Recipient.Hex())
}

// SortTokens 按地址升序返回两个代币及其对应数额。
func SortTokens(a, b Token, amountA, amountB *big.Int) (Token, Token, *big.Int, *big.Int) {
	if a.Address.Cmp(b.Address) > 0 {
		return b, a, amountB, amountA
	}
	return a, b, amountA, amountB
}
