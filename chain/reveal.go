package chain

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/big"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/branba-810/FHE-BlindNFT/attrcache"
	"github.com/branba-810/FHE-BlindNFT/blindnft"
	"github.com/branba-810/FHE-BlindNFT/wallet"
)

var (
	// ErrWrongNetwork: the connected node reports a chain id other than the
	// expected network. Raised before any gas work.
	ErrWrongNetwork = errors.New("chain: wrong network, switch to the expected chain")

	// ErrNotDecrypted: reveal was requested for a token with no locally
	// decrypted attributes. The coordinator never decrypts on its own.
	ErrNotDecrypted = errors.New("chain: token not locally decrypted")

	// ErrAlreadyRevealed: the ledger rejected the reveal because the token
	// is already public. Callers treat this as success.
	ErrAlreadyRevealed = errors.New("chain: token already revealed")

	// ErrRevealUnconfirmed: the confirmation carried no matching Revealed
	// event. The cache is left untouched for the next full sync to settle.
	ErrRevealUnconfirmed = errors.New("chain: reveal not confirmed by receipt events")
)

// ContractTransactor is the write surface of the contract the coordinator
// uses.
type ContractTransactor interface {
	Address() common.Address
	IsRevealed(opts *bind.CallOpts, tokenID *big.Int) (bool, error)
	SubmitRevealedAttributes(opts *bind.TransactOpts, tokenID *big.Int, rarity, power, speed uint64) (*types.Transaction, error)
}

type networkReader interface {
	ChainID(ctx context.Context) (*big.Int, error)
}

// Coordinator submits reveal transactions and reconciles the local cache
// once they confirm. Revealing is irreversible; callers warn the user
// before invoking.
type Coordinator struct {
	contract ContractTransactor
	network  networkReader
	expected *big.Int
	cache    *attrcache.Cache
	gas      *Estimator
}

func NewCoordinator(contract ContractTransactor, network networkReader, expectedChainID *big.Int, cache *attrcache.Cache, gas *Estimator) *Coordinator {
	return &Coordinator{
		contract: contract,
		network:  network,
		expected: expectedChainID,
		cache:    cache,
		gas:      gas,
	}
}

// Reveal publishes the locally decrypted attributes of tokenID on-chain.
// The plaintext must already be in the cache. Confirmation is awaited by
// the caller; pass the receipt to FinalizeReveal.
//
// If the ledger rejects the transaction because the token is already
// public, the cache entry is evicted and ErrAlreadyRevealed is returned:
// the end state is the one the caller wanted.
func (c *Coordinator) Reveal(ctx context.Context, tokenID uint64, signer wallet.Signer) (*types.Transaction, error) {
	owner := signer.Address()
	attrs, ok, err := c.cache.Lookup(owner, tokenID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: token %d", ErrNotDecrypted, tokenID)
	}

	chainID, err := c.network.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("chain: query chain id: %w", err)
	}
	if chainID.Cmp(c.expected) != 0 {
		return nil, fmt.Errorf("%w: got %s, want %s", ErrWrongNetwork, chainID, c.expected)
	}

	opts, err := signer.TransactOpts(chainID)
	if err != nil {
		return nil, err
	}
	opts.Context = ctx

	id := new(big.Int).SetUint64(tokenID)
	if data, err := blindnft.SubmitRevealedCallData(id, attrs.Rarity, attrs.Power, attrs.Speed); err == nil {
		contractAddr := c.contract.Address()
		opts.GasLimit = c.gas.WithBuffer(ctx, ethereum.CallMsg{
			From: owner,
			To:   &contractAddr,
			Data: data,
		})
	}

	tx, err := c.contract.SubmitRevealedAttributes(opts, id, attrs.Rarity, attrs.Power, attrs.Speed)
	if err != nil {
		if revealed, checkErr := c.contract.IsRevealed(&bind.CallOpts{Context: ctx}, id); checkErr == nil && revealed {
			if evictErr := c.cache.Evict(owner, tokenID); evictErr != nil {
				log.Printf("chain: evict after already-revealed: %v", evictErr)
			}
			return nil, ErrAlreadyRevealed
		}
		return nil, fmt.Errorf("chain: submit reveal for token %d: %w", tokenID, err)
	}
	log.Printf("chain: reveal tx for token %d sent: %s", tokenID, tx.Hash().Hex())
	return tx, nil
}

// FinalizeReveal inspects the confirmation receipt for a Revealed event
// carrying tokenID. On match the cache entry and any asset reference are
// evicted atomically: the on-chain record is authoritative from here. With
// no match nothing is touched and ErrRevealUnconfirmed is returned; the
// next full chain sync settles it.
func (c *Coordinator) FinalizeReveal(receipt *types.Receipt, owner common.Address, tokenID uint64) error {
	if receipt == nil {
		return ErrRevealUnconfirmed
	}
	for _, l := range receipt.Logs {
		if l == nil {
			continue
		}
		ev, err := blindnft.ParseRevealed(*l)
		if err != nil {
			continue
		}
		if ev.TokenID.Uint64() != tokenID {
			continue
		}
		if err := c.cache.Evict(owner, tokenID); err != nil {
			return fmt.Errorf("chain: evict revealed token %d: %w", tokenID, err)
		}
		log.Printf("chain: token %d revealed on-chain, local plaintext evicted", tokenID)
		return nil
	}
	return fmt.Errorf("%w: token %d", ErrRevealUnconfirmed, tokenID)
}
