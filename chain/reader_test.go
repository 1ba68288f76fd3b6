package chain

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"

	"github.com/branba-810/FHE-BlindNFT/blindnft"
)

// fakeContract implements ContractReader and ContractTransactor backed by
// in-memory token records.
type fakeContract struct {
	addr     common.Address
	owned    map[common.Address][]uint64
	ownedErr error

	owners   map[uint64]common.Address
	revealed map[uint64]blindnft.RevealedAttributes
	handles  map[uint64]EncryptedHandles
	encURIs  map[uint64]string
	revURIs  map[uint64]string

	viewErr map[uint64]error

	submitErr error
	submitted []uint64
}

func newFakeContract() *fakeContract {
	return &fakeContract{
		addr:     common.HexToAddress("0xaDc2F5DB582f6d479c2FE5c4Dd2b377bedAdBeC8"),
		owned:    make(map[common.Address][]uint64),
		owners:   make(map[uint64]common.Address),
		revealed: make(map[uint64]blindnft.RevealedAttributes),
		handles:  make(map[uint64]EncryptedHandles),
		encURIs:  make(map[uint64]string),
		revURIs:  make(map[uint64]string),
		viewErr:  make(map[uint64]error),
	}
}

func (f *fakeContract) Address() common.Address { return f.addr }

func (f *fakeContract) TokensOfOwner(_ *bind.CallOpts, owner common.Address) ([]*big.Int, error) {
	if f.ownedErr != nil {
		return nil, f.ownedErr
	}
	ids := f.owned[owner]
	out := make([]*big.Int, len(ids))
	for i, id := range ids {
		out[i] = new(big.Int).SetUint64(id)
	}
	return out, nil
}

func (f *fakeContract) OwnerOf(_ *bind.CallOpts, tokenID *big.Int) (common.Address, error) {
	id := tokenID.Uint64()
	if err := f.viewErr[id]; err != nil {
		return common.Address{}, err
	}
	owner, ok := f.owners[id]
	if !ok {
		return common.Address{}, errors.New("nonexistent token")
	}
	return owner, nil
}

func (f *fakeContract) IsRevealed(_ *bind.CallOpts, tokenID *big.Int) (bool, error) {
	return f.revealed[tokenID.Uint64()].Revealed, nil
}

func (f *fakeContract) GetEncryptedRarity(_ *bind.CallOpts, tokenID *big.Int) (common.Hash, error) {
	h, ok := f.handles[tokenID.Uint64()]
	if !ok {
		return common.Hash{}, errors.New("no handles")
	}
	return h.Rarity, nil
}

func (f *fakeContract) GetEncryptedAttributes(_ *bind.CallOpts, tokenID *big.Int) (common.Hash, common.Hash, error) {
	h, ok := f.handles[tokenID.Uint64()]
	if !ok {
		return common.Hash{}, common.Hash{}, errors.New("no handles")
	}
	return h.Power, h.Speed, nil
}

func (f *fakeContract) GetEncryptedTokenURI(_ *bind.CallOpts, tokenID *big.Int) (string, error) {
	return f.encURIs[tokenID.Uint64()], nil
}

func (f *fakeContract) GetRevealedAttributes(_ *bind.CallOpts, tokenID *big.Int) (blindnft.RevealedAttributes, error) {
	return f.revealed[tokenID.Uint64()], nil
}

func (f *fakeContract) GetRevealedTokenURI(_ *bind.CallOpts, tokenID *big.Int) (string, error) {
	return f.revURIs[tokenID.Uint64()], nil
}

var (
	ownerA = common.HexToAddress("0xAAA0000000000000000000000000000000000001")
	ownerB = common.HexToAddress("0xBBB0000000000000000000000000000000000002")
)

func (f *fakeContract) addToken(owner common.Address, id uint64) {
	f.owned[owner] = append(f.owned[owner], id)
	f.owners[id] = owner
	f.handles[id] = EncryptedHandles{
		Rarity: common.Hash{byte(id), 1},
		Power:  common.Hash{byte(id), 2},
		Speed:  common.Hash{byte(id), 3},
	}
}

func TestOwnedTokensSorted(t *testing.T) {
	contract := newFakeContract()
	contract.addToken(ownerA, 9)
	contract.addToken(ownerA, 3)
	contract.addToken(ownerA, 5)

	r := NewReader(contract)
	ids, err := r.OwnedTokens(context.Background(), ownerA)
	if err != nil {
		t.Fatalf("OwnedTokens: %v", err)
	}
	want := []uint64{3, 5, 9}
	if len(ids) != len(want) {
		t.Fatalf("got %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("got %v, want %v", ids, want)
		}
	}
}

func TestListOwnedSkipsFailingToken(t *testing.T) {
	contract := newFakeContract()
	contract.addToken(ownerA, 1)
	contract.addToken(ownerA, 2)
	contract.addToken(ownerA, 3)
	contract.viewErr[2] = errors.New("rpc hiccup")

	r := NewReader(contract)
	views, err := r.ListOwned(context.Background(), ownerA)
	if err != nil {
		t.Fatalf("ListOwned: %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("got %d views, want 2", len(views))
	}
	if views[0].TokenID != 1 || views[1].TokenID != 3 {
		t.Fatalf("wrong tokens survived: %+v", views)
	}
}

func TestListOwnedIsolatedPerOwner(t *testing.T) {
	contract := newFakeContract()
	contract.addToken(ownerA, 1)
	contract.addToken(ownerB, 2)

	r := NewReader(contract)
	views, err := r.ListOwned(context.Background(), ownerA)
	if err != nil {
		t.Fatalf("ListOwned: %v", err)
	}
	if len(views) != 1 || views[0].TokenID != 1 {
		t.Fatalf("owner A listing polluted: %+v", views)
	}
}

func TestTokenViewRevealed(t *testing.T) {
	contract := newFakeContract()
	contract.addToken(ownerA, 4)
	contract.revealed[4] = blindnft.RevealedAttributes{Rarity: 88, Power: 10, Speed: 5, Revealed: true}
	contract.revURIs[4] = "ipfs://canonical"
	contract.encURIs[4] = "ipfs://enc"

	r := NewReader(contract)
	view, err := r.TokenView(context.Background(), 4)
	if err != nil {
		t.Fatalf("TokenView: %v", err)
	}
	if !view.Revealed || view.Rarity != 88 {
		t.Fatalf("view: %+v", view)
	}
	if view.RevealedURI != "ipfs://canonical" || view.EncryptedURI != "" {
		t.Fatalf("revealed token must expose the canonical URI: %+v", view)
	}
}

func TestEncryptedHandlesPairs(t *testing.T) {
	contract := newFakeContract()
	contract.addToken(ownerA, 7)

	r := NewReader(contract)
	handles, err := r.EncryptedHandles(context.Background(), 7)
	if err != nil {
		t.Fatalf("EncryptedHandles: %v", err)
	}
	pairs := handles.Pairs(contract.addr)
	if len(pairs) != 3 {
		t.Fatalf("got %d pairs, want 3", len(pairs))
	}
	for _, p := range pairs {
		if p.ContractAddress != contract.addr {
			t.Fatalf("pair bound to %s", p.ContractAddress)
		}
	}
	if pairs[0].Handle != handles.Rarity || pairs[1].Handle != handles.Power || pairs[2].Handle != handles.Speed {
		t.Fatalf("pair order changed: %+v", pairs)
	}
}
