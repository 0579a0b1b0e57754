// Package action 定义每轮可执行的链上动作：参数随机化、意图构建与执行。
package action

import (
	"EVM-Automator/internal/config"
	xerrors "EVM-Automator/internal/errors"
)

// Kind 是交易类型，取值同时作为记录中的 Type 列。
type Kind string

const (
	KindWrap         Kind = "Wrap"
	KindUnwrap       Kind = "Unwrap"
	KindSwap         Kind = "Swap"
	KindAddLiquidity Kind = "AddLiquidity"
	KindSend         Kind = "Send"
)

var kindsByConfigName = map[string]Kind{
	config.TypeWrap:      KindWrap,
	config.TypeUnwrap:    KindUnwrap,
	config.TypeSwap:      KindSwap,
	config.TypeLiquidity: KindAddLiquidity,
	config.TypeSend:      KindSend,
}

// ParseKind 将配置中的类型名称转换为 Kind。
func ParseKind(name string) (Kind, error) {
	kind, ok := kindsByConfigName[name]
	if !ok {
		return "", xerrors.Newf(xerrors.CodeInvalidArgument, "unknown transaction type %q", name)
	}
	return kind, nil
}

func (k Kind) String() string { return string(k) }
