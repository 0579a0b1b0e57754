package action

import (
	"context"
	"math"
	"math/big"
	"math/rand/v2"
	"time"

	"github.com/shopspring/decimal"

	"EVM-Automator/internal/config"
)

// Rand 是参数随机化所需的随机源，*rand.Rand 与默认实现均满足。
type Rand interface {
	Float64() float64
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) Float64() float64 { return rand.Float64() }
func (globalRand) IntN(n int) int   { return rand.IntN(n) }

// DefaultRand 返回基于 math/rand/v2 全局源的随机数。
func DefaultRand() Rand { return globalRand{} }

// Uniform 在 [Min, Max] 内均匀取值。
func Uniform(rng Rand, r config.Range) float64 {
	return r.Min + rng.Float64()*(r.Max-r.Min)
}

// PercentOf 按百分比取余额，百分比先截断到 0.01%，整数运算保证不超过余额。
func PercentOf(balance *big.Int, percent float64) *big.Int {
	if balance == nil || balance.Sign() <= 0 || percent <= 0 {
		return new(big.Int)
	}
	bps := big.NewInt(int64(math.Floor(percent * 100)))
	amount := new(big.Int).Mul(balance, bps)
	return amount.Div(amount, big.NewInt(10000))
}

// ResolveAmount 从区间中随机取百分比并计算数额。
func ResolveAmount(rng Rand, balance *big.Int, r config.Range) *big.Int {
	return PercentOf(balance, Uniform(rng, r))
}

// FormatUnits 将最小单位数额按精度格式化。
func FormatUnits(amount *big.Int, decimals uint8) string {
	if amount == nil {
		return "0"
	}
	return decimal.NewFromBigInt(amount, -int32(decimals)).String()
}

// SleepFunc 可被测试替换的等待函数。
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep 等待 d 或直到 ctx 结束。
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Seconds 将秒数转换为 Duration。
func Seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
