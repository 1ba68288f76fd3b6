package chain

import (
	"context"
	"errors"
	"math/big"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/branba-810/FHE-BlindNFT/attrcache"
	"github.com/branba-810/FHE-BlindNFT/blindnft"
	"github.com/branba-810/FHE-BlindNFT/state"
)

func (f *fakeContract) SubmitRevealedAttributes(_ *bind.TransactOpts, tokenID *big.Int, rarity, power, speed uint64) (*types.Transaction, error) {
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	f.submitted = append(f.submitted, tokenID.Uint64())
	return types.NewTx(&types.LegacyTx{Nonce: 1, Gas: 21000, GasPrice: big.NewInt(1)}), nil
}

type fakeNetwork struct {
	chainID *big.Int
	err     error
}

func (f *fakeNetwork) ChainID(context.Context) (*big.Int, error) {
	return f.chainID, f.err
}

type fakeWallet struct {
	addr common.Address
}

func (w *fakeWallet) Address() common.Address { return w.addr }

func (w *fakeWallet) SignTypedData(apitypes.TypedData) ([]byte, error) {
	return make([]byte, 65), nil
}

func (w *fakeWallet) TransactOpts(chainID *big.Int) (*bind.TransactOpts, error) {
	return &bind.TransactOpts{
		From: w.addr,
		Signer: func(_ common.Address, tx *types.Transaction) (*types.Transaction, error) {
			return tx, nil
		},
	}, nil
}

func newRevealFixture(t *testing.T) (*Coordinator, *fakeContract, *attrcache.Cache, *fakeWallet) {
	t.Helper()
	contract := newFakeContract()

	cache, err := attrcache.Open(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}
	t.Cleanup(func() { cache.Close() })

	w := &fakeWallet{addr: ownerA}
	cache.SetActiveAddress(w.addr)

	network := &fakeNetwork{chainID: big.NewInt(11155111)}
	gas := NewEstimator(&fakeGasBackend{estimate: 90000})
	coord := NewCoordinator(contract, network, big.NewInt(11155111), cache, gas)
	return coord, contract, cache, w
}

func TestRevealRequiresLocalPlaintext(t *testing.T) {
	coord, _, _, w := newRevealFixture(t)

	_, err := coord.Reveal(context.Background(), 5, w)
	if !errors.Is(err, ErrNotDecrypted) {
		t.Fatalf("got %v, want ErrNotDecrypted", err)
	}
}

func TestRevealWrongNetwork(t *testing.T) {
	coord, _, cache, w := newRevealFixture(t)
	if err := cache.Put(w.addr, 5, state.Attributes{Rarity: 80}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	coord.network = &fakeNetwork{chainID: big.NewInt(1)}

	_, err := coord.Reveal(context.Background(), 5, w)
	if !errors.Is(err, ErrWrongNetwork) {
		t.Fatalf("got %v, want ErrWrongNetwork", err)
	}
}

func TestRevealSubmits(t *testing.T) {
	coord, contract, cache, w := newRevealFixture(t)
	if err := cache.Put(w.addr, 5, state.Attributes{Rarity: 80, Power: 3, Speed: 9}); err != nil {
		t.Fatalf("Put: %v", err)
	}

	tx, err := coord.Reveal(context.Background(), 5, w)
	if err != nil {
		t.Fatalf("Reveal: %v", err)
	}
	if tx == nil {
		t.Fatalf("no transaction returned")
	}
	if len(contract.submitted) != 1 || contract.submitted[0] != 5 {
		t.Fatalf("submitted: %v", contract.submitted)
	}
	// Plaintext stays cached until the receipt confirms the event.
	if _, ok, _ := cache.Lookup(w.addr, 5); !ok {
		t.Fatalf("cache evicted before confirmation")
	}
}

func TestRevealAlreadyRevealedEvicts(t *testing.T) {
	coord, contract, cache, w := newRevealFixture(t)
	if err := cache.Put(w.addr, 5, state.Attributes{Rarity: 80}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	contract.submitErr = errors.New("execution reverted: already revealed")
	contract.revealed[5] = blindnft.RevealedAttributes{Revealed: true}

	_, err := coord.Reveal(context.Background(), 5, w)
	if !errors.Is(err, ErrAlreadyRevealed) {
		t.Fatalf("got %v, want ErrAlreadyRevealed", err)
	}
	if _, ok, _ := cache.Lookup(w.addr, 5); ok {
		t.Fatalf("cache entry survived an already-revealed token")
	}
}

func TestRevealSubmitFailureKeepsCache(t *testing.T) {
	coord, contract, cache, w := newRevealFixture(t)
	if err := cache.Put(w.addr, 5, state.Attributes{Rarity: 80}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	contract.submitErr = errors.New("nonce too low")

	_, err := coord.Reveal(context.Background(), 5, w)
	if err == nil || errors.Is(err, ErrAlreadyRevealed) {
		t.Fatalf("got %v, want plain submit error", err)
	}
	if _, ok, _ := cache.Lookup(w.addr, 5); !ok {
		t.Fatalf("cache evicted on a transient submit failure")
	}
}

func revealedLog(tokenID uint64) *types.Log {
	return &types.Log{Topics: []common.Hash{
		blindnft.RevealedTopic(),
		common.BigToHash(new(big.Int).SetUint64(tokenID)),
	}}
}

func TestFinalizeRevealEvicts(t *testing.T) {
	coord, _, cache, w := newRevealFixture(t)
	if err := cache.Put(w.addr, 5, state.Attributes{Rarity: 80}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := cache.PutAssetRef(w.addr, 5, "ipfs://Qm/img"); err != nil {
		t.Fatalf("PutAssetRef: %v", err)
	}

	receipt := &types.Receipt{Logs: []*types.Log{revealedLog(5)}}
	if err := coord.FinalizeReveal(receipt, w.addr, 5); err != nil {
		t.Fatalf("FinalizeReveal: %v", err)
	}
	if _, ok, _ := cache.Lookup(w.addr, 5); ok {
		t.Fatalf("plaintext survived the confirmed reveal")
	}
	if ref, _ := cache.AssetRef(w.addr, 5); ref != "" {
		t.Fatalf("asset ref survived the confirmed reveal: %q", ref)
	}
}

func TestFinalizeRevealNoEventKeepsCache(t *testing.T) {
	coord, _, cache, w := newRevealFixture(t)
	if err := cache.Put(w.addr, 5, state.Attributes{Rarity: 80}); err != nil {
		t.Fatalf("Put: %v", err)
	}

	// A receipt with an unrelated event for another token.
	receipt := &types.Receipt{Logs: []*types.Log{revealedLog(6)}}
	err := coord.FinalizeReveal(receipt, w.addr, 5)
	if !errors.Is(err, ErrRevealUnconfirmed) {
		t.Fatalf("got %v, want ErrRevealUnconfirmed", err)
	}
	if _, ok, _ := cache.Lookup(w.addr, 5); !ok {
		t.Fatalf("cache must stay untouched without a matching event")
	}

	if err := coord.FinalizeReveal(nil, w.addr, 5); !errors.Is(err, ErrRevealUnconfirmed) {
		t.Fatalf("nil receipt: got %v, want ErrRevealUnconfirmed", err)
	}
}
