package state

import (
	"fmt"
	"math/big"
)

// AttributeModulus bounds every plaintext attribute to [0, 100]. The
// on-chain ciphertexts hold full euint64 randomness; the displayed value is
// always the residue mod 101.
const AttributeModulus = 101

var attributeModulusBig = big.NewInt(AttributeModulus)

// Attributes is the decrypted plaintext attribute set of one token. All
// three values are normalized into [0, 100].
type Attributes struct {
	Rarity uint64 `json:"rarity"`
	Power  uint64 `json:"power"`
	Speed  uint64 `json:"speed"`
}

// NormalizeAttribute reduces a raw decrypted value into the [0, 100]
// attribute range. Works for any non-negative raw value, including ones far
// above the modulus.
func NormalizeAttribute(raw *big.Int) uint64 {
	if raw == nil || raw.Sign() < 0 {
		return 0
	}
	var mod big.Int
	mod.Mod(raw, attributeModulusBig)
	return mod.Uint64()
}

// RarityTier is the ordinal display tier of a rarity value. The numeric
// rarity stays authoritative; tiers only exist for presentation.
type RarityTier int

const (
	TierUnknown RarityTier = iota
	TierCommon
	TierUncommon
	TierRare
	TierEpic
	TierLegendary
)

func (t RarityTier) String() string {
	switch t {
	case TierCommon:
		return "Common"
	case TierUncommon:
		return "Uncommon"
	case TierRare:
		return "Rare"
	case TierEpic:
		return "Epic"
	case TierLegendary:
		return "Legendary"
	default:
		return "Unknown"
	}
}

// TierForRarity grades a normalized rarity value. Thresholds follow the
// contract tooling: 100 and above is Legendary, then quartiles down to
// Common. TierUnknown is reserved for tokens whose rarity has not been
// decrypted yet and is never returned here.
func TierForRarity(rarity uint64) RarityTier {
	switch {
	case rarity >= 100:
		return TierLegendary
	case rarity >= 75:
		return TierEpic
	case rarity >= 50:
		return TierRare
	case rarity >= 25:
		return TierUncommon
	default:
		return TierCommon
	}
}

// Tier returns the display tier of the set's rarity.
func (a Attributes) Tier() RarityTier {
	return TierForRarity(a.Rarity)
}

func (a Attributes) String() string {
	return fmt.Sprintf("rarity=%d(%s) power=%d speed=%d", a.Rarity, a.Tier(), a.Power, a.Speed)
}
