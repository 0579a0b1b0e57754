package web3

import (
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"

	xerrors "EVM-Automator/internal/errors"
)

// ChainDefinitions models the structure of configs/chains.yaml.
type ChainDefinitions struct {
	Chains map[string]ChainDefinition `yaml:"chains"`
}

// ChainDefinition describes a single network: endpoints and token book.
type ChainDefinition struct {
	Type          string            `yaml:"type"`
	RPCURL        string            `yaml:"rpc_url"`
	ChainID       int64             `yaml:"chain_id"`
	Description   string            `yaml:"description"`
	NativeSymbol  string            `yaml:"native_symbol"`
	WrappedNative string            `yaml:"wrapped_native"`
	Tokens        map[string]string `yaml:"tokens"`
}

// LoadChainDefinitions parses the YAML file containing chain metadata.
func LoadChainDefinitions(path string) (ChainDefinitions, error) {
	if strings.TrimSpace(path) == "" {
		return ChainDefinitions{Chains: map[string]ChainDefinition{}}, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return ChainDefinitions{}, fmt.Errorf("读取链配置失败: %w", err)
	}
	return ParseChainDefinitions(content)
}

// ParseChainDefinitions decodes chain definitions from YAML bytes.
func ParseChainDefinitions(content []byte) (ChainDefinitions, error) {
	var defs ChainDefinitions
	if err := yaml.Unmarshal(content, &defs); err != nil {
		return ChainDefinitions{}, fmt.Errorf("解析链配置失败: %w", err)
	}
	if defs.Chains == nil {
		defs.Chains = map[string]ChainDefinition{}
	}
	for name, chain := range defs.Chains {
		for symbol, addr := range chain.Tokens {
			if !common.IsHexAddress(addr) {
				return ChainDefinitions{}, fmt.Errorf("链 %s 的代币 %s 地址无效: %q", name, symbol, addr)
			}
		}
	}
	return defs, nil
}

// TokenAddress resolves a token symbol on this network.
func (c ChainDefinition) TokenAddress(symbol string) (common.Address, error) {
	addr, ok := c.Tokens[symbol]
	if !ok || strings.TrimSpace(addr) == "" {
		return common.Address{}, xerrors.Newf(xerrors.CodeConfigMissing, "token %s not configured for network", symbol)
	}
	return common.HexToAddress(addr), nil
}

// WrappedNativeAddress resolves the wrapped-native token of this network.
func (c ChainDefinition) WrappedNativeAddress() (common.Address, error) {
	if strings.TrimSpace(c.WrappedNative) == "" {
		return common.Address{}, xerrors.New(xerrors.CodeConfigMissing, "wrapped native token not configured for network")
	}
	return c.TokenAddress(c.WrappedNative)
}
