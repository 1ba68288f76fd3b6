// Package wallet abstracts transaction and typed-data signing so the rest
// of the client never touches key material directly.
package wallet

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// Signer signs on behalf of one address. Implementations may hold a raw
// key, talk to a hardware wallet, or proxy a browser wallet; callers only
// see this surface.
type Signer interface {
	Address() common.Address
	// SignTypedData signs an EIP-712 payload and returns the 65-byte
	// signature with V in {27, 28}.
	SignTypedData(td apitypes.TypedData) ([]byte, error)
	// TransactOpts returns keyed transaction options for chainID.
	TransactOpts(chainID *big.Int) (*bind.TransactOpts, error)
}

// KeySigner signs with an in-memory secp256k1 key.
type KeySigner struct {
	key  *ecdsa.PrivateKey
	addr common.Address
}

// NewKeySigner parses a hex private key (with or without 0x).
func NewKeySigner(hexKey string) (*KeySigner, error) {
	hexKey = strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("wallet: parse private key: %w", err)
	}
	return &KeySigner{key: key, addr: crypto.PubkeyToAddress(key.PublicKey)}, nil
}

func (s *KeySigner) Address() common.Address {
	return s.addr
}

func (s *KeySigner) SignTypedData(td apitypes.TypedData) ([]byte, error) {
	digest, _, err := apitypes.TypedDataAndHash(td)
	if err != nil {
		return nil, fmt.Errorf("wallet: hash typed data: %w", err)
	}
	sig, err := crypto.Sign(digest, s.key)
	if err != nil {
		return nil, fmt.Errorf("wallet: sign typed data: %w", err)
	}
	// Transform V from 0/1 to 27/28 per the Ethereum signature convention.
	sig[64] += 27
	return sig, nil
}

func (s *KeySigner) TransactOpts(chainID *big.Int) (*bind.TransactOpts, error) {
	return bind.NewKeyedTransactorWithChainID(s.key, chainID)
}
