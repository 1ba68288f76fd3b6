package state

import (
	"github.com/ethereum/go-ethereum/common"
)

// DisclosureState classifies how much of a token's attributes is visible,
// and to whom. It is always derived from the chain view and the local
// cache; it is never stored.
type DisclosureState int

const (
	// Encrypted: no plaintext is known, locally or on-chain.
	Encrypted DisclosureState = iota
	// LocallyDecrypted: plaintext exists only in the local cache of the
	// owning address. Nothing public has changed.
	LocallyDecrypted
	// PubliclyRevealed: plaintext is committed on-chain. Terminal.
	PubliclyRevealed
)

func (s DisclosureState) String() string {
	switch s {
	case LocallyDecrypted:
		return "locally_decrypted"
	case PubliclyRevealed:
		return "publicly_revealed"
	default:
		return "encrypted"
	}
}

// ChainView is the on-chain snapshot of one token, as reported by the
// contract. Attribute fields are only meaningful when Revealed is true.
type ChainView struct {
	TokenID  uint64
	Owner    common.Address
	Revealed bool
	Rarity   uint64
	Power    uint64
	Speed    uint64
	// RevealedURI is the canonical token URI once revealed; empty before.
	RevealedURI string
	// EncryptedURI is whatever URI the contract exposes for the encrypted
	// phase, possibly empty.
	EncryptedURI string
}

// CacheView is the local cache's knowledge of one token: decrypted
// attributes (nil if none) and the asset reference recorded at mint time
// (empty if none).
type CacheView struct {
	Attrs    *Attributes
	AssetRef string
}

// Projection is the merged, display-ready view of one token.
type Projection struct {
	TokenID uint64
	Owner   common.Address
	State   DisclosureState
	// Attrs is nil while the token is Encrypted.
	Attrs *Attributes
	// ImageRef is the best-known image locator: canonical on reveal, the
	// cached upload before that, else the encrypted-phase URI if any.
	ImageRef string
}

// Project merges the chain view with the cache view into exactly one
// disclosure state. The chain-reported reveal is absorbing: once Revealed
// is true the cache is ignored entirely, whatever it holds.
func Project(chain ChainView, cache CacheView) Projection {
	p := Projection{TokenID: chain.TokenID, Owner: chain.Owner}

	if chain.Revealed {
		p.State = PubliclyRevealed
		p.Attrs = &Attributes{Rarity: chain.Rarity, Power: chain.Power, Speed: chain.Speed}
		p.ImageRef = chain.RevealedURI
		return p
	}

	if cache.Attrs != nil {
		p.State = LocallyDecrypted
		attrs := *cache.Attrs
		p.Attrs = &attrs
		// The chain URI may not resolve yet for an unrevealed token, so the
		// locally recorded upload wins.
		if cache.AssetRef != "" {
			p.ImageRef = cache.AssetRef
		} else {
			p.ImageRef = chain.EncryptedURI
		}
		return p
	}

	p.State = Encrypted
	if cache.AssetRef != "" {
		p.ImageRef = cache.AssetRef
	} else {
		p.ImageRef = chain.EncryptedURI
	}
	return p
}
