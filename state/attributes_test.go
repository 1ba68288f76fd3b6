package state

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeAttribute(t *testing.T) {
	cases := []struct {
		raw  *big.Int
		want uint64
	}{
		{big.NewInt(0), 0},
		{big.NewInt(42), 42},
		{big.NewInt(100), 100},
		{big.NewInt(101), 0},
		{big.NewInt(102), 1},
		{big.NewInt(1000), 91},
		{nil, 0},
		{big.NewInt(-5), 0},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, NormalizeAttribute(tc.raw), "raw=%v", tc.raw)
	}
}

func TestNormalizeAttributeHugeValue(t *testing.T) {
	// Full euint64 randomness, well past uint64 after squaring.
	raw := new(big.Int).Lsh(big.NewInt(1), 200)
	got := NormalizeAttribute(raw)
	require.Less(t, got, uint64(AttributeModulus))

	want := new(big.Int).Mod(raw, big.NewInt(AttributeModulus)).Uint64()
	require.Equal(t, want, got)
}

func TestTierForRarity(t *testing.T) {
	cases := []struct {
		rarity uint64
		want   RarityTier
	}{
		{0, TierCommon},
		{24, TierCommon},
		{25, TierUncommon},
		{49, TierUncommon},
		{50, TierRare},
		{74, TierRare},
		{75, TierEpic},
		{99, TierEpic},
		{100, TierLegendary},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, TierForRarity(tc.rarity), "rarity=%d", tc.rarity)
	}
}

func TestAttributesString(t *testing.T) {
	a := Attributes{Rarity: 80, Power: 12, Speed: 3}
	require.Equal(t, "rarity=80(Epic) power=12 speed=3", a.String())
	require.Equal(t, "Unknown", TierUnknown.String())
}
