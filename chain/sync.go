package chain

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/branba-810/FHE-BlindNFT/attrcache"
	"github.com/branba-810/FHE-BlindNFT/blindnft"
	"github.com/branba-810/FHE-BlindNFT/fhe"
	"github.com/branba-810/FHE-BlindNFT/state"
	"github.com/branba-810/FHE-BlindNFT/wallet"
)

// ErrMintUnresolved: neither the receipt nor the owned-token fallback could
// identify the freshly minted token.
var ErrMintUnresolved = errors.New("chain: minted token id unresolved")

// MintSync reconciles a confirmed mint: it learns the new token id, keys
// the just-uploaded asset reference under it, and fires a best-effort local
// decryption so the token is viewable right away.
type MintSync struct {
	reader *Reader
	cache  *attrcache.Cache
	orch   *fhe.Orchestrator
}

func NewMintSync(reader *Reader, cache *attrcache.Cache, orch *fhe.Orchestrator) *MintSync {
	return &MintSync{reader: reader, cache: cache, orch: orch}
}

// MintedTokenID extracts the new token id from the mint confirmation.
//
// Primary path: the receipt's Transfer event from the zero address to
// owner. Fallback: the numerically largest id in tokensOfOwner, read as
// "most recently minted". The fallback is a heuristic — it mis-attributes
// when the same address has another mint in flight concurrently.
func (s *MintSync) MintedTokenID(ctx context.Context, receipt *types.Receipt, owner common.Address) (uint64, error) {
	if receipt != nil {
		for _, l := range receipt.Logs {
			if l == nil {
				continue
			}
			ev, err := blindnft.ParseTransfer(*l)
			if err != nil {
				continue
			}
			if ev.From == (common.Address{}) && ev.To == owner {
				return ev.TokenID.Uint64(), nil
			}
		}
		log.Printf("chain: mint receipt carried no matching Transfer, falling back to tokensOfOwner")
	}

	ids, err := s.reader.OwnedTokens(ctx, owner)
	if err != nil {
		return 0, fmt.Errorf("%w: fallback query failed: %w", ErrMintUnresolved, err)
	}
	if len(ids) == 0 {
		return 0, fmt.Errorf("%w: owner holds no tokens", ErrMintUnresolved)
	}
	max := ids[0]
	for _, id := range ids[1:] {
		if id > max {
			max = id
		}
	}
	return max, nil
}

// AfterMint runs the full reconciliation: resolve the token id, record the
// uploaded asset reference under it, and attempt an automatic decryption.
// The decryption failing is non-fatal — the token simply stays Encrypted
// until decrypted manually.
func (s *MintSync) AfterMint(ctx context.Context, receipt *types.Receipt, signer wallet.Signer, assetRef string) (uint64, error) {
	owner := signer.Address()
	tokenID, err := s.MintedTokenID(ctx, receipt, owner)
	if err != nil {
		return 0, err
	}

	if assetRef != "" {
		if err := s.cache.PutAssetRef(owner, tokenID, assetRef); err != nil {
			log.Printf("chain: record asset ref for token %d: %v", tokenID, err)
		}
	}

	if err := s.DecryptToken(ctx, tokenID, signer); err != nil {
		log.Printf("chain: auto decrypt of token %d failed (stays encrypted): %v", tokenID, err)
	}
	return tokenID, nil
}

// DecryptToken runs one decryption round for tokenID and persists the
// normalized plaintext in the cache. The cache is written only after the
// relayer round succeeded for a handle.
func (s *MintSync) DecryptToken(ctx context.Context, tokenID uint64, signer wallet.Signer) error {
	if s.orch == nil {
		return fhe.ErrDependencyMissing
	}

	handles, err := s.reader.EncryptedHandles(ctx, tokenID)
	if err != nil {
		return err
	}
	results, err := s.orch.DecryptBatch(ctx, handles.Pairs(s.reader.Contract()), signer)
	if err != nil {
		return err
	}

	rarity, okR := results[handles.Rarity]
	power, okP := results[handles.Power]
	speed, okS := results[handles.Speed]
	if !okR || !okP || !okS {
		// Partial batch: this token misses a handle, so its plaintext stays
		// unknown. Other tokens in a wider batch are unaffected.
		return fmt.Errorf("%w: incomplete result for token %d", fhe.ErrDecryptionFailed, tokenID)
	}

	attrs := state.Attributes{
		Rarity: state.NormalizeAttribute(rarity),
		Power:  state.NormalizeAttribute(power),
		Speed:  state.NormalizeAttribute(speed),
	}
	if err := s.cache.Put(signer.Address(), tokenID, attrs); err != nil {
		return err
	}
	log.Printf("chain: token %d locally decrypted: %s", tokenID, attrs)
	return nil
}

// DecryptTokens decrypts several tokens in one relayer round. Tokens whose
// handles are missing from the result map are reported in failed and stay
// Encrypted; the rest are cached.
func (s *MintSync) DecryptTokens(ctx context.Context, tokenIDs []uint64, signer wallet.Signer) (failed []uint64, err error) {
	if s.orch == nil {
		return nil, fhe.ErrDependencyMissing
	}
	if len(tokenIDs) == 0 {
		return nil, nil
	}

	perToken := make(map[uint64]EncryptedHandles, len(tokenIDs))
	var pairs []fhe.HandlePair
	for _, id := range tokenIDs {
		handles, err := s.reader.EncryptedHandles(ctx, id)
		if err != nil {
			log.Printf("chain: handles for token %d: %v", id, err)
			failed = append(failed, id)
			continue
		}
		perToken[id] = handles
		pairs = append(pairs, handles.Pairs(s.reader.Contract())...)
	}
	if len(pairs) == 0 {
		return failed, fmt.Errorf("chain: no decryptable handles among %d tokens", len(tokenIDs))
	}

	results, err := s.orch.DecryptBatch(ctx, pairs, signer)
	if err != nil {
		return tokenIDs, err
	}

	for id, handles := range perToken {
		rarity, okR := results[handles.Rarity]
		power, okP := results[handles.Power]
		speed, okS := results[handles.Speed]
		if !okR || !okP || !okS {
			failed = append(failed, id)
			continue
		}
		attrs := state.Attributes{
			Rarity: state.NormalizeAttribute(rarity),
			Power:  state.NormalizeAttribute(power),
			Speed:  state.NormalizeAttribute(speed),
		}
		if err := s.cache.Put(signer.Address(), id, attrs); err != nil {
			log.Printf("chain: cache decrypted token %d: %v", id, err)
			failed = append(failed, id)
		}
	}
	return failed, nil
}
