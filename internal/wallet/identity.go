// Package wallet 管理签名身份：从私钥与助记词加载钱包，并按策略轮换。
package wallet

import (
	"crypto/ecdsa"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// Identity 是一个可签名的钱包身份，私钥只保存在内存中。
type Identity struct {
	address common.Address
	label   string
	key     *ecdsa.PrivateKey
}

// NewIdentity 根据私钥构建身份，label 用于日志定位来源。
func NewIdentity(label string, key *ecdsa.PrivateKey) *Identity {
	return &Identity{
		address: crypto.PubkeyToAddress(key.PublicKey),
		label:   label,
		key:     key,
	}
}

// Address 返回钱包地址。
func (i *Identity) Address() common.Address { return i.address }

// Label 返回钱包来源，例如 PRIVATE_KEY_1 或 mnemonic/0。
func (i *Identity) Label() string { return i.label }

// String 只暴露地址，避免私钥出现在日志中。
func (i *Identity) String() string { return i.address.Hex() }

// SignTx 使用该身份的私钥为交易签名。
func (i *Identity) SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	return types.SignTx(tx, types.LatestSignerForChainID(chainID), i.key)
}
