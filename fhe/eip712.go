package fhe

import (
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// DefaultValidityDays is how long a signed decryption authorization stays
// usable. Matches the relayer protocol default.
const DefaultValidityDays = 10

// Authorization is the time-bounded statement the user signs: this
// ephemeral public key may receive re-encrypted plaintexts for these
// contracts, starting at ValidFrom, for DurationDays.
type Authorization struct {
	PublicKey    string
	Contracts    []common.Address
	ValidFrom    uint64
	DurationDays uint64
}

// TypedData renders the authorization as the relayer's EIP-712
// UserDecryptRequestVerification message.
func (a Authorization) TypedData(chainID *big.Int, verifyingContract common.Address) apitypes.TypedData {
	contracts := make([]interface{}, len(a.Contracts))
	for i, addr := range a.Contracts {
		contracts[i] = addr.Hex()
	}
	return apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": {
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
				{Name: "verifyingContract", Type: "address"},
			},
			"UserDecryptRequestVerification": {
				{Name: "publicKey", Type: "bytes"},
				{Name: "contractAddresses", Type: "address[]"},
				{Name: "startTimestamp", Type: "uint256"},
				{Name: "durationDays", Type: "uint256"},
			},
		},
		PrimaryType: "UserDecryptRequestVerification",
		Domain: apitypes.TypedDataDomain{
			Name:              "Decryption",
			Version:           "1",
			ChainId:           math.NewHexOrDecimal256(chainID.Int64()),
			VerifyingContract: verifyingContract.Hex(),
		},
		Message: apitypes.TypedDataMessage{
			"publicKey":         a.PublicKey,
			"contractAddresses": contracts,
			"startTimestamp":    strconv.FormatUint(a.ValidFrom, 10),
			"durationDays":      strconv.FormatUint(a.DurationDays, 10),
		},
	}
}
