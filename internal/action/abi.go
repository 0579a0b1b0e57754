package action

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

const erc20JSON = `[
{"type":"function","name":"allowance","stateMutability":"view","inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"approve","stateMutability":"nonpayable","inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
{"type":"function","name":"transfer","stateMutability":"nonpayable","inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
{"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"decimals","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]},
{"type":"function","name":"deposit","stateMutability":"payable","inputs":[],"outputs":[]},
{"type":"function","name":"withdraw","stateMutability":"nonpayable","inputs":[{"name":"amount","type":"uint256"}],"outputs":[]}
]`

// SwapRouter02 布局：exactInputSingle 不带 deadline，由 multicall 统一携带。
const routerJSON = `[
{"type":"function","name":"multicall","stateMutability":"payable","inputs":[{"name":"deadline","type":"uint256"},{"name":"data","type":"bytes[]"}],"outputs":[{"name":"results","type":"bytes[]"}]},
{"type":"function","name":"exactInputSingle","stateMutability":"payable","inputs":[{"name":"params","type":"tuple","components":[
  {"name":"tokenIn","type":"address"},
  {"name":"tokenOut","type":"address"},
  {"name":"fee","type":"uint24"},
  {"name":"recipient","type":"address"},
  {"name":"amountIn","type":"uint256"},
  {"name":"amountOutMinimum","type":"uint256"},
  {"name":"sqrtPriceLimitX96","type":"uint160"}]}],"outputs":[{"name":"amountOut","type":"uint256"}]}
]`

const positionManagerJSON = `[
{"type":"function","name":"mint","stateMutability":"payable","inputs":[{"name":"params","type":"tuple","components":[
  {"name":"token0","type":"address"},
  {"name":"token1","type":"address"},
  {"name":"fee","type":"uint24"},
  {"name":"tickLower","type":"int24"},
  {"name":"tickUpper","type":"int24"},
  {"name":"amount0Desired","type":"uint256"},
  {"name":"amount1Desired","type":"uint256"},
  {"name":"amount0Min","type":"uint256"},
  {"name":"amount1Min","type":"uint256"},
  {"name":"recipient","type":"address"},
  {"name":"deadline","type":"uint256"}]}],"outputs":[
  {"name":"tokenId","type":"uint256"},
  {"name":"liquidity","type":"uint128"},
  {"name":"amount0","type":"uint256"},
  {"name":"amount1","type":"uint256"}]}
]`

var (
	ERC20ABI           = mustParseABI(erc20JSON)
	RouterABI          = mustParseABI(routerJSON)
	PositionManagerABI = mustParseABI(positionManagerJSON)
)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(err)
	}
	return parsed
}

// ExactInputSingleParams 对应 SwapRouter02 的参数结构。
type ExactInputSingleParams struct {
	TokenIn           common.Address
	TokenOut          common.Address
	Fee               *big.Int
	Recipient         common.Address
	AmountIn          *big.Int
	AmountOutMinimum  *big.Int
	SqrtPriceLimitX96 *big.Int
}

// MintParams 对应 NonfungiblePositionManager.mint 的参数结构。
type MintParams struct {
	Token0         common.Address
	Token1         common.Address
	Fee            *big.Int
	TickLower      *big.Int
	TickUpper      *big.Int
	Amount0Desired *big.Int
	Amount1Desired *big.Int
	Amount0Min     *big.Int
	Amount1Min     *big.Int
	Recipient      common.Address
	Deadline       *big.Int
}
