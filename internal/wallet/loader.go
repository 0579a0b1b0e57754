package wallet

import (
	"fmt"
	"sort"
	"strings"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/tyler-smith/go-bip39"

	xerrors "EVM-Automator/internal/errors"
	"EVM-Automator/pkg/logger"
)

const (
	// PrivateKeyPrefix 标记承载私钥的环境变量。
	PrivateKeyPrefix = "PRIVATE_KEY_"
	// MnemonicVar 是助记词所在的环境变量。
	MnemonicVar = "MNEMONIC"
	// DerivedWalletCount 是从助记词派生的账户数量。
	DerivedWalletCount = 5
	// DerivationPathFormat 是以太坊标准派生路径。
	DerivationPathFormat = "m/44'/60'/0'/0/%d"
)

// ErrNoWallets 表示所有来源都没有产出有效钱包。
var ErrNoWallets = xerrors.New(xerrors.CodeNoWallets, "No wallets loaded. Please check your .env file for valid PRIVATE_KEY_... or MNEMONIC entries.")

// NamedKey 是一条命名的私钥来源。
type NamedKey struct {
	Name  string
	Value string
}

// Sources 汇总钱包来源。
type Sources struct {
	PrivateKeys []NamedKey
	Mnemonic    string
}

// FromEnviron 从 KEY=VALUE 形式的环境变量中提取钱包来源，私钥按变量名排序。
func FromEnviron(environ []string) Sources {
	var src Sources
	for _, kv := range environ {
		name, value, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		switch {
		case strings.HasPrefix(name, PrivateKeyPrefix):
			if strings.TrimSpace(value) != "" {
				src.PrivateKeys = append(src.PrivateKeys, NamedKey{Name: name, Value: strings.TrimSpace(value)})
			}
		case name == MnemonicVar:
			src.Mnemonic = strings.TrimSpace(value)
		}
	}
	sort.Slice(src.PrivateKeys, func(i, j int) bool {
		return src.PrivateKeys[i].Name < src.PrivateKeys[j].Name
	})
	return src
}

// Load 构建全部身份，无效条目记录错误后跳过。
func Load(src Sources) ([]*Identity, error) {
	log := logger.Named("wallet")
	var identities []*Identity

	for _, pk := range src.PrivateKeys {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(pk.Value, "0x"))
		if err != nil {
			log.Error(fmt.Sprintf("Invalid private key for %s. Skipping.", pk.Name))
			continue
		}
		identities = append(identities, NewIdentity(pk.Name, key))
	}

	if src.Mnemonic != "" {
		derived, err := deriveFromMnemonic(src.Mnemonic, DerivedWalletCount)
		if err != nil {
			log.Error("Invalid Mnemonic. Skipping.", "error", err)
		} else {
			identities = append(identities, derived...)
		}
	}

	if len(identities) == 0 {
		return nil, ErrNoWallets
	}
	log.Info(fmt.Sprintf("Successfully loaded %d wallets.", len(identities)))
	return identities, nil
}

func deriveFromMnemonic(mnemonic string, count int) ([]*Identity, error) {
	seed, err := bip39.NewSeedWithErrorChecking(mnemonic, "")
	if err != nil {
		return nil, err
	}
	master, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		return nil, err
	}

	identities := make([]*Identity, 0, count)
	for i := 0; i < count; i++ {
		path, err := accounts.ParseDerivationPath(fmt.Sprintf(DerivationPathFormat, i))
		if err != nil {
			return nil, err
		}
		node := master
		for _, index := range path {
			node, err = node.Derive(index)
			if err != nil {
				return nil, fmt.Errorf("derive index %d: %w", i, err)
			}
		}
		priv, err := node.ECPrivKey()
		if err != nil {
			return nil, err
		}
		key, err := crypto.ToECDSA(priv.Serialize())
		if err != nil {
			return nil, err
		}
		identities = append(identities, NewIdentity(fmt.Sprintf("mnemonic/%d", i), key))
	}
	return identities, nil
}
