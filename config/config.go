// Package config defines the client configuration and its defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

const (
	// DefaultChainID is Sepolia; every write path fails fast on any other
	// network.
	DefaultChainID = 11155111

	DefaultRPCURL     = "https://sepolia.gateway.tenderly.co"
	DefaultRelayerURL = "https://relayer.testnet.zama.cloud"

	// DefaultContractAddress is the deployed BlindNFT contract.
	DefaultContractAddress = "0xaDc2F5DB582f6d479c2FE5c4Dd2b377bedAdBeC8"

	// DefaultDecryptionVerifier is the EIP-712 verifying contract of the
	// relayer's user-decryption flow on Sepolia.
	DefaultDecryptionVerifier = "0xb6e160b1ff80d67bfe90a85ee06ce0a2613607d1"

	DefaultListenAddr  = "127.0.0.1:8090"
	defaultCacheDBName = "blindnft.db"
	defaultDataDirname = ".blindnft"
)

// Config collects every tunable of the client. Values come from defaults,
// then an optional config file, then environment, then flags.
type Config struct {
	RPCURL             string `mapstructure:"rpc-url"`
	ChainID            uint64 `mapstructure:"chain-id"`
	ContractAddress    string `mapstructure:"contract-address"`
	RelayerURL         string `mapstructure:"relayer-url"`
	DecryptionVerifier string `mapstructure:"decryption-verifier"`
	CacheDBPath        string `mapstructure:"cache-db"`
	ListenAddr         string `mapstructure:"listen"`
	PinataAPIKey       string `mapstructure:"pinata-api-key"`
	PinataSecretKey    string `mapstructure:"pinata-secret-key"`
	IPFSGateway        string `mapstructure:"ipfs-gateway"`
	// PrivateKey is the hex signing key. Prefer the environment over flags
	// or files for this one.
	PrivateKey string `mapstructure:"private-key"`
}

// Default returns the configuration for the public Sepolia deployment.
func Default() Config {
	return Config{
		RPCURL:             DefaultRPCURL,
		ChainID:            DefaultChainID,
		ContractAddress:    DefaultContractAddress,
		RelayerURL:         DefaultRelayerURL,
		DecryptionVerifier: DefaultDecryptionVerifier,
		CacheDBPath:        filepath.Join(defaultDataDir(), defaultCacheDBName),
		ListenAddr:         DefaultListenAddr,
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return defaultDataDirname
	}
	return filepath.Join(home, defaultDataDirname)
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.RPCURL) == "" {
		return fmt.Errorf("invalid `rpc-url`; expected: a node endpoint, given: empty")
	}
	if c.ChainID == 0 {
		return fmt.Errorf("invalid `chain-id`; expected: > 0, given: 0")
	}
	if !common.IsHexAddress(c.ContractAddress) {
		return fmt.Errorf("invalid `contract-address`; expected: a hex address, given: %q", c.ContractAddress)
	}
	if !common.IsHexAddress(c.DecryptionVerifier) {
		return fmt.Errorf("invalid `decryption-verifier`; expected: a hex address, given: %q", c.DecryptionVerifier)
	}
	if strings.TrimSpace(c.RelayerURL) == "" {
		return fmt.Errorf("invalid `relayer-url`; expected: a relayer endpoint, given: empty")
	}
	if strings.TrimSpace(c.CacheDBPath) == "" {
		return fmt.Errorf("invalid `cache-db`; expected: a file path, given: empty")
	}
	return nil
}

// Contract returns the parsed contract address.
func (c *Config) Contract() common.Address {
	return common.HexToAddress(c.ContractAddress)
}

// Verifier returns the parsed decryption-verifier address.
func (c *Config) Verifier() common.Address {
	return common.HexToAddress(c.DecryptionVerifier)
}
