package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	require.EqualValues(t, 11155111, cfg.ChainID)
	require.NotEmpty(t, cfg.CacheDBPath)
}

func TestValidate(t *testing.T) {
	mutate := func(f func(*Config)) Config {
		cfg := Default()
		f(&cfg)
		return cfg
	}
	cases := []struct {
		name string
		cfg  Config
		want string
	}{
		{"empty rpc url", mutate(func(c *Config) { c.RPCURL = " " }), "invalid `rpc-url`"},
		{"zero chain id", mutate(func(c *Config) { c.ChainID = 0 }), "invalid `chain-id`"},
		{"bad contract", mutate(func(c *Config) { c.ContractAddress = "not-an-address" }), "invalid `contract-address`"},
		{"bad verifier", mutate(func(c *Config) { c.DecryptionVerifier = "0x123" }), "invalid `decryption-verifier`"},
		{"empty relayer", mutate(func(c *Config) { c.RelayerURL = "" }), "invalid `relayer-url`"},
		{"empty cache path", mutate(func(c *Config) { c.CacheDBPath = "" }), "invalid `cache-db`"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestParsedAddresses(t *testing.T) {
	cfg := Default()
	// Hex() comes back checksummed; compare case-insensitively.
	require.Equal(t, strings.ToLower(DefaultContractAddress), strings.ToLower(cfg.Contract().Hex()))
	require.Equal(t, strings.ToLower(DefaultDecryptionVerifier), strings.ToLower(cfg.Verifier().Hex()))
}
