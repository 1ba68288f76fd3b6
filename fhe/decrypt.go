// Package fhe drives user decryption of on-chain ciphertext handles through
// the relayer: ephemeral key material, a signed time-bounded authorization,
// and a batched decrypt call whose results stay keyed by handle.
package fhe

import (
	"context"
	"encoding/hex"
	"fmt"
	"log"
	"math/big"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/branba-810/FHE-BlindNFT/wallet"
)

// Orchestrator owns the relayer session and turns ciphertext handles into
// plaintext integers. It never touches the local cache: persisting results
// is the caller's job, and only on success.
type Orchestrator struct {
	session  RelayerSession
	chainID  *big.Int
	verifier common.Address
	now      func() time.Time
}

// NewOrchestrator wires the orchestrator to its one required dependency.
// chainID and verifier parameterize the EIP-712 domain the user signs.
func NewOrchestrator(session RelayerSession, chainID *big.Int, verifier common.Address) (*Orchestrator, error) {
	if session == nil {
		return nil, ErrDependencyMissing
	}
	if chainID == nil || chainID.Sign() <= 0 {
		return nil, fmt.Errorf("fhe: invalid chain id")
	}
	return &Orchestrator{
		session:  session,
		chainID:  chainID,
		verifier: verifier,
		now:      time.Now,
	}, nil
}

// Close releases the relayer session.
func (o *Orchestrator) Close() error {
	return o.session.Close()
}

// SessionOpen reports whether the relayer session is currently established.
func (o *Orchestrator) SessionOpen() bool {
	return o.session.IsOpen()
}

// DecryptBatch decrypts every handle in pairs for the signer's address and
// returns raw plaintext values keyed by original handle.
//
// The result map may be smaller than pairs: a handle the service skipped is
// a failure for that handle only, and callers must treat it so rather than
// discarding the batch.
//
// No retries happen here; re-invoking is always safe.
func (o *Orchestrator) DecryptBatch(ctx context.Context, pairs []HandlePair, signer wallet.Signer) (map[common.Hash]*big.Int, error) {
	if len(pairs) == 0 {
		return nil, fmt.Errorf("fhe: empty handle batch")
	}
	if signer == nil {
		return nil, fmt.Errorf("fhe: nil signer")
	}

	if !o.session.IsOpen() {
		if err := o.session.Open(ctx); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrDecryptionUnavailable, err)
		}
	}

	// Fresh key material per request. The private half lives only in this
	// call frame.
	keypair, err := GenerateKeypair()
	if err != nil {
		return nil, err
	}

	contracts := dedupeAddresses(pairs)
	auth := Authorization{
		PublicKey:    keypair.PublicKey,
		Contracts:    contracts,
		ValidFrom:    uint64(o.now().Unix()),
		DurationDays: DefaultValidityDays,
	}

	sig, err := signer.SignTypedData(auth.TypedData(o.chainID, o.verifier))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSigningRejected, err)
	}

	req := &UserDecryptRequest{
		HandleContractPairs: pairs,
		PrivateKey:          keypair.PrivateKey,
		PublicKey:           keypair.PublicKey,
		Signature:           hex.EncodeToString(sig),
		ContractAddresses:   contracts,
		UserAddress:         signer.Address(),
		StartTimestamp:      strconv.FormatUint(auth.ValidFrom, 10),
		DurationDays:        strconv.FormatUint(auth.DurationDays, 10),
	}

	results, err := o.session.UserDecrypt(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecryptionFailed, err)
	}
	if len(results) < len(pairs) {
		log.Printf("fhe: partial decrypt batch: requested %d handles, got %d", len(pairs), len(results))
	}
	return results, nil
}

// dedupeAddresses extracts the distinct contract addresses of a batch,
// preserving first-seen order.
func dedupeAddresses(pairs []HandlePair) []common.Address {
	seen := make(map[common.Address]struct{}, len(pairs))
	var out []common.Address
	for _, p := range pairs {
		if _, ok := seen[p.ContractAddress]; ok {
			continue
		}
		seen[p.ContractAddress] = struct{}{}
		out = append(out, p.ContractAddress)
	}
	return out
}
