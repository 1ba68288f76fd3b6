package blindnft

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

func TestEventTopics(t *testing.T) {
	if got := TransferTopic(); got != crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)")) {
		t.Fatalf("Transfer topic %s", got.Hex())
	}
	if got := RevealedTopic(); got != crypto.Keccak256Hash([]byte("Revealed(uint256)")) {
		t.Fatalf("Revealed topic %s", got.Hex())
	}
}

func TestParseTransfer(t *testing.T) {
	to := common.HexToAddress("0x00000000000000000000000000000000000000AA")
	l := types.Log{Topics: []common.Hash{
		TransferTopic(),
		common.Hash{},
		common.BytesToHash(to.Bytes()),
		common.BigToHash(big.NewInt(17)),
	}}
	ev, err := ParseTransfer(l)
	if err != nil {
		t.Fatalf("ParseTransfer: %v", err)
	}
	if ev.From != (common.Address{}) || ev.To != to || ev.TokenID.Int64() != 17 {
		t.Fatalf("event: %+v", ev)
	}
}

func TestParseTransferRejectsOtherLogs(t *testing.T) {
	if _, err := ParseTransfer(types.Log{Topics: []common.Hash{RevealedTopic(), {}, {}, {}}}); err == nil {
		t.Fatalf("wrong topic accepted")
	}
	if _, err := ParseTransfer(types.Log{Topics: []common.Hash{TransferTopic(), {}}}); err == nil {
		t.Fatalf("short topic list accepted")
	}
}

func TestParseRevealed(t *testing.T) {
	l := types.Log{Topics: []common.Hash{RevealedTopic(), common.BigToHash(big.NewInt(5))}}
	ev, err := ParseRevealed(l)
	if err != nil {
		t.Fatalf("ParseRevealed: %v", err)
	}
	if ev.TokenID.Uint64() != 5 {
		t.Fatalf("token id %d", ev.TokenID.Uint64())
	}
	if _, err := ParseRevealed(types.Log{Topics: []common.Hash{TransferTopic(), {}}}); err == nil {
		t.Fatalf("wrong topic accepted")
	}
}

func TestCallDataPacks(t *testing.T) {
	data, err := MintCallData("ipfs://QmMeta")
	if err != nil {
		t.Fatalf("MintCallData: %v", err)
	}
	if len(data) < 4 {
		t.Fatalf("calldata too short: %d", len(data))
	}

	data, err = SubmitRevealedCallData(big.NewInt(3), 80, 12, 9)
	if err != nil {
		t.Fatalf("SubmitRevealedCallData: %v", err)
	}
	// selector + 4 words
	if len(data) != 4+4*32 {
		t.Fatalf("calldata length %d", len(data))
	}
}
