package wallet

import (
	"fmt"
	"math/rand/v2"
	"sync"

	xerrors "EVM-Automator/internal/errors"
)

// Policy 决定 Next 如何挑选钱包。
type Policy string

const (
	PolicyRoundRobin Policy = "round-robin"
	PolicyRandom     Policy = "random"
)

// ParsePolicy 校验策略名称。
func ParsePolicy(name string) (Policy, error) {
	switch Policy(name) {
	case PolicyRoundRobin, PolicyRandom:
		return Policy(name), nil
	default:
		return "", xerrors.Newf(xerrors.CodeInvalidArgument, "unknown wallet selection policy %q", name)
	}
}

// Intner 提供随机下标，测试中可替换。
type Intner interface {
	IntN(n int) int
}

type defaultIntner struct{}

func (defaultIntner) IntN(n int) int { return rand.IntN(n) }

// Pool 持有全部身份与轮询游标。
type Pool struct {
	mu         sync.Mutex
	identities []*Identity
	cursor     int
	rng        Intner
}

// NewPool 创建钱包池，空池返回 ErrNoWallets。
func NewPool(identities []*Identity, rng Intner) (*Pool, error) {
	if len(identities) == 0 {
		return nil, ErrNoWallets
	}
	if rng == nil {
		rng = defaultIntner{}
	}
	ids := make([]*Identity, len(identities))
	copy(ids, identities)
	return &Pool{identities: ids, rng: rng}, nil
}

// Size 返回钱包数量。
func (p *Pool) Size() int { return len(p.identities) }

// Cursor 返回下一次轮询将使用的下标。
func (p *Pool) Cursor() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cursor
}

// Next 按策略返回一个身份。round-robin 取游标处身份并前移，random 不改变游标。
func (p *Pool) Next(policy Policy) (*Identity, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch policy {
	case PolicyRandom:
		return p.identities[p.rng.IntN(len(p.identities))], nil
	case PolicyRoundRobin, "":
		id := p.identities[p.cursor]
		p.cursor = (p.cursor + 1) % len(p.identities)
		return id, nil
	default:
		return nil, xerrors.New(xerrors.CodeInvalidArgument, fmt.Sprintf("unknown wallet selection policy %q", policy))
	}
}
