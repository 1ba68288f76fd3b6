// Package chain holds the read and write paths against the BlindNFT
// contract: owned-token enumeration, per-token views, gas estimation, the
// reveal transaction, and mint-confirmation reconciliation.
package chain

import (
	"context"
	"fmt"
	"log"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/singleflight"

	"github.com/branba-810/FHE-BlindNFT/blindnft"
	"github.com/branba-810/FHE-BlindNFT/fhe"
	"github.com/branba-810/FHE-BlindNFT/state"
)

// ContractReader is the read-only contract surface the reader consumes.
// *blindnft.Contract satisfies it; tests substitute fakes.
type ContractReader interface {
	Address() common.Address
	TokensOfOwner(opts *bind.CallOpts, owner common.Address) ([]*big.Int, error)
	OwnerOf(opts *bind.CallOpts, tokenID *big.Int) (common.Address, error)
	IsRevealed(opts *bind.CallOpts, tokenID *big.Int) (bool, error)
	GetEncryptedRarity(opts *bind.CallOpts, tokenID *big.Int) (common.Hash, error)
	GetEncryptedAttributes(opts *bind.CallOpts, tokenID *big.Int) (common.Hash, common.Hash, error)
	GetEncryptedTokenURI(opts *bind.CallOpts, tokenID *big.Int) (string, error)
	GetRevealedAttributes(opts *bind.CallOpts, tokenID *big.Int) (blindnft.RevealedAttributes, error)
	GetRevealedTokenURI(opts *bind.CallOpts, tokenID *big.Int) (string, error)
}

// EncryptedHandles are one token's three ciphertext handles.
type EncryptedHandles struct {
	Rarity common.Hash
	Power  common.Hash
	Speed  common.Hash
}

// Pairs binds the handles to contractAddr for a relayer batch, in
// rarity/power/speed order.
func (h EncryptedHandles) Pairs(contractAddr common.Address) []fhe.HandlePair {
	return []fhe.HandlePair{
		{Handle: h.Rarity, ContractAddress: contractAddr},
		{Handle: h.Power, ContractAddress: contractAddr},
		{Handle: h.Speed, ContractAddress: contractAddr},
	}
}

// Reader issues read-only queries. Concurrent enumerations for the same
// owner collapse into one RPC round.
type Reader struct {
	contract ContractReader
	sf       singleflight.Group
}

func NewReader(contract ContractReader) *Reader {
	return &Reader{contract: contract}
}

// Contract exposes the bound contract address.
func (r *Reader) Contract() common.Address {
	return r.contract.Address()
}

// OwnedTokens lists the token ids owned by owner, ascending.
func (r *Reader) OwnedTokens(ctx context.Context, owner common.Address) ([]uint64, error) {
	v, err, _ := r.sf.Do("owned|"+owner.Hex(), func() (any, error) {
		raw, err := r.contract.TokensOfOwner(&bind.CallOpts{Context: ctx}, owner)
		if err != nil {
			return nil, fmt.Errorf("tokensOfOwner(%s): %w", owner.Hex(), err)
		}
		ids := make([]uint64, 0, len(raw))
		for _, id := range raw {
			ids = append(ids, id.Uint64())
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		return ids, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]uint64), nil
}

// TokenView snapshots one token's on-chain disclosure record.
func (r *Reader) TokenView(ctx context.Context, tokenID uint64) (state.ChainView, error) {
	opts := &bind.CallOpts{Context: ctx}
	id := new(big.Int).SetUint64(tokenID)

	owner, err := r.contract.OwnerOf(opts, id)
	if err != nil {
		return state.ChainView{}, fmt.Errorf("ownerOf(%d): %w", tokenID, err)
	}
	attrs, err := r.contract.GetRevealedAttributes(opts, id)
	if err != nil {
		return state.ChainView{}, fmt.Errorf("getRevealedAttributes(%d): %w", tokenID, err)
	}

	view := state.ChainView{
		TokenID:  tokenID,
		Owner:    owner,
		Revealed: attrs.Revealed,
		Rarity:   attrs.Rarity,
		Power:    attrs.Power,
		Speed:    attrs.Speed,
	}

	// URI lookups are best effort: a token without one is still listable.
	if attrs.Revealed {
		if uri, err := r.contract.GetRevealedTokenURI(opts, id); err == nil {
			view.RevealedURI = uri
		} else {
			log.Printf("chain: getRevealedTokenURI(%d): %v", tokenID, err)
		}
	} else {
		if uri, err := r.contract.GetEncryptedTokenURI(opts, id); err == nil {
			view.EncryptedURI = uri
		}
	}
	return view, nil
}

// EncryptedHandles fetches the three ciphertext handles of a token.
func (r *Reader) EncryptedHandles(ctx context.Context, tokenID uint64) (EncryptedHandles, error) {
	opts := &bind.CallOpts{Context: ctx}
	id := new(big.Int).SetUint64(tokenID)

	rarity, err := r.contract.GetEncryptedRarity(opts, id)
	if err != nil {
		return EncryptedHandles{}, fmt.Errorf("getEncryptedRarity(%d): %w", tokenID, err)
	}
	power, speed, err := r.contract.GetEncryptedAttributes(opts, id)
	if err != nil {
		return EncryptedHandles{}, fmt.Errorf("getEncryptedAttributes(%d): %w", tokenID, err)
	}
	return EncryptedHandles{Rarity: rarity, Power: power, Speed: speed}, nil
}

// ListOwned snapshots every token of owner. A failing token is logged and
// skipped; one bad token never empties the listing.
func (r *Reader) ListOwned(ctx context.Context, owner common.Address) ([]state.ChainView, error) {
	ids, err := r.OwnedTokens(ctx, owner)
	if err != nil {
		return nil, err
	}
	views := make([]state.ChainView, 0, len(ids))
	for _, id := range ids {
		view, err := r.TokenView(ctx, id)
		if err != nil {
			log.Printf("chain: token %d query failed, skipping: %v", id, err)
			continue
		}
		views = append(views, view)
	}
	return views, nil
}
