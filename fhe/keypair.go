package fhe

import (
	"crypto/rand"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"golang.org/x/crypto/nacl/box"
)

// Keypair is the ephemeral X25519 pair a decryption request is re-encrypted
// against. Generated fresh per request, held in memory only, never reused.
type Keypair struct {
	// PublicKey and PrivateKey are 0x-prefixed hex of the 32-byte halves.
	PublicKey  string
	PrivateKey string
}

// GenerateKeypair draws a fresh X25519 keypair from crypto/rand.
func GenerateKeypair() (*Keypair, error) {
	pub, priv, err := box.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("fhe: generate keypair: %w", err)
	}
	return &Keypair{
		PublicKey:  hexutil.Encode(pub[:]),
		PrivateKey: hexutil.Encode(priv[:]),
	}, nil
}
