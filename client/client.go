// Package client assembles the full BlindNFT stack: node connection,
// contract binding, relayer orchestrator, durable cache, and the
// disclosure-state projection consumed by the CLI and the HTTP API.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"math/big"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/branba-810/FHE-BlindNFT/attrcache"
	"github.com/branba-810/FHE-BlindNFT/blindnft"
	"github.com/branba-810/FHE-BlindNFT/chain"
	"github.com/branba-810/FHE-BlindNFT/config"
	"github.com/branba-810/FHE-BlindNFT/fhe"
	"github.com/branba-810/FHE-BlindNFT/ipfs"
	"github.com/branba-810/FHE-BlindNFT/state"
	"github.com/branba-810/FHE-BlindNFT/wallet"
)

// Client is one connected session for one address.
type Client struct {
	cfg       config.Config
	eth       *ethclient.Client
	contract  *blindnft.Contract
	reader    *chain.Reader
	estimator *chain.Estimator
	cache     *attrcache.Cache
	orch      *fhe.Orchestrator
	reveal    *chain.Coordinator
	sync      *chain.MintSync
	ipfs      *ipfs.Client
	signer    wallet.Signer
}

// Dial connects to the node, opens the cache and builds the orchestration
// stack for signer's address.
func Dial(ctx context.Context, cfg config.Config, signer wallet.Signer) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if signer == nil {
		return nil, fmt.Errorf("client: nil signer")
	}

	eth, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("client: dial %s: %w", cfg.RPCURL, err)
	}

	cache, err := attrcache.Open(cfg.CacheDBPath)
	if err != nil {
		eth.Close()
		return nil, err
	}
	cache.SetActiveAddress(signer.Address())

	session := fhe.NewHTTPSession(cfg.RelayerURL)
	orch, err := fhe.NewOrchestrator(session, new(big.Int).SetUint64(cfg.ChainID), cfg.Verifier())
	if err != nil {
		cache.Close()
		eth.Close()
		return nil, err
	}

	contract := blindnft.New(cfg.Contract(), eth)
	reader := chain.NewReader(contract)
	estimator := chain.NewEstimator(eth)

	var gateways []ipfs.Option
	if cfg.IPFSGateway != "" {
		gateways = append(gateways, ipfs.WithGatewayBase(cfg.IPFSGateway))
	}

	c := &Client{
		cfg:       cfg,
		eth:       eth,
		contract:  contract,
		reader:    reader,
		estimator: estimator,
		cache:     cache,
		orch:      orch,
		reveal:    chain.NewCoordinator(contract, eth, new(big.Int).SetUint64(cfg.ChainID), cache, estimator),
		sync:      chain.NewMintSync(reader, cache, orch),
		ipfs:      ipfs.NewClient(cfg.PinataAPIKey, cfg.PinataSecretKey, gateways...),
		signer:    signer,
	}
	return c, nil
}

func (c *Client) Close() {
	if err := c.orch.Close(); err != nil {
		log.Printf("client: close relayer session: %v", err)
	}
	if err := c.cache.Close(); err != nil {
		log.Printf("client: close cache: %v", err)
	}
	c.eth.Close()
}

func (c *Client) Address() string         { return c.signer.Address().Hex() }
func (c *Client) IPFS() *ipfs.Client      { return c.ipfs }
func (c *Client) Cache() *attrcache.Cache { return c.cache }

// Tokens projects every token owned by the connected address into its
// disclosure state.
func (c *Client) Tokens(ctx context.Context) ([]state.Projection, error) {
	views, err := c.reader.ListOwned(ctx, c.signer.Address())
	if err != nil {
		return nil, err
	}
	out := make([]state.Projection, 0, len(views))
	for _, view := range views {
		cacheView, err := c.cache.View(c.signer.Address(), view.TokenID)
		if err != nil {
			log.Printf("client: cache view for token %d: %v", view.TokenID, err)
		}
		out = append(out, state.Project(view, cacheView))
	}
	return out, nil
}

// Token projects a single token.
func (c *Client) Token(ctx context.Context, tokenID uint64) (state.Projection, error) {
	view, err := c.reader.TokenView(ctx, tokenID)
	if err != nil {
		return state.Projection{}, err
	}
	cacheView, err := c.cache.View(c.signer.Address(), tokenID)
	if err != nil {
		log.Printf("client: cache view for token %d: %v", tokenID, err)
	}
	return state.Project(view, cacheView), nil
}

// Decrypt runs one relayer round over the given tokens (all of them when
// none are named). Returns the ids that stayed encrypted.
func (c *Client) Decrypt(ctx context.Context, tokenIDs ...uint64) ([]uint64, error) {
	if len(tokenIDs) == 0 {
		var err error
		tokenIDs, err = c.reader.OwnedTokens(ctx, c.signer.Address())
		if err != nil {
			return nil, err
		}
	}
	return c.sync.DecryptTokens(ctx, tokenIDs, c.signer)
}

// Reveal publishes tokenID's locally decrypted attributes, waits for the
// confirmation, and evicts the cache entry once the Revealed event is seen.
// Irreversible.
func (c *Client) Reveal(ctx context.Context, tokenID uint64) (string, error) {
	tx, err := c.reveal.Reveal(ctx, tokenID, c.signer)
	if errors.Is(err, chain.ErrAlreadyRevealed) {
		// The ledger already holds the plaintext; nothing left to do.
		return "", nil
	}
	if err != nil {
		return "", err
	}

	receipt, err := bind.WaitMined(ctx, c.eth, tx)
	if err != nil {
		return tx.Hash().Hex(), fmt.Errorf("client: await reveal confirmation: %w", err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return tx.Hash().Hex(), fmt.Errorf("client: reveal tx %s reverted", tx.Hash().Hex())
	}
	if err := c.reveal.FinalizeReveal(receipt, c.signer.Address(), tokenID); err != nil {
		return tx.Hash().Hex(), err
	}
	return tx.Hash().Hex(), nil
}

// Mint submits a mint for uri, waits for the confirmation, reconciles the
// new token id and records assetRef under it. assetRef may be empty when
// nothing was uploaded through us.
func (c *Client) Mint(ctx context.Context, uri, assetRef string) (uint64, string, error) {
	chainID, err := c.eth.ChainID(ctx)
	if err != nil {
		return 0, "", fmt.Errorf("client: query chain id: %w", err)
	}
	if chainID.Uint64() != c.cfg.ChainID {
		return 0, "", fmt.Errorf("%w: got %s, want %d", chain.ErrWrongNetwork, chainID, c.cfg.ChainID)
	}

	opts, err := c.signer.TransactOpts(chainID)
	if err != nil {
		return 0, "", err
	}
	opts.Context = ctx

	if data, err := blindnft.MintCallData(uri); err == nil {
		contractAddr := c.contract.Address()
		opts.GasLimit = c.estimator.WithBuffer(ctx, ethereum.CallMsg{
			From: c.signer.Address(),
			To:   &contractAddr,
			Data: data,
		})
	}

	tx, err := c.contract.Mint(opts, uri)
	if err != nil {
		return 0, "", fmt.Errorf("client: submit mint: %w", err)
	}
	log.Printf("client: mint tx sent: %s", tx.Hash().Hex())

	receipt, err := bind.WaitMined(ctx, c.eth, tx)
	if err != nil {
		return 0, tx.Hash().Hex(), fmt.Errorf("client: await mint confirmation: %w", err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return 0, tx.Hash().Hex(), fmt.Errorf("client: mint tx %s reverted", tx.Hash().Hex())
	}

	tokenID, err := c.sync.AfterMint(ctx, receipt, c.signer, assetRef)
	if err != nil {
		return 0, tx.Hash().Hex(), err
	}
	return tokenID, tx.Hash().Hex(), nil
}

// MintWithAsset pins the image through Pinata first, then mints with the
// pinned metadata URI.
func (c *Client) MintWithAsset(ctx context.Context, name, description, filename string, image io.Reader) (uint64, string, error) {
	upload, err := c.ipfs.UploadAsset(ctx, name, description, filename, image)
	if err != nil {
		return 0, "", err
	}
	return c.Mint(ctx, upload.MetadataURI, upload.ImageRef)
}

// Status reports connectivity facts for the status endpoint.
type Status struct {
	Address     string `json:"address"`
	ChainID     uint64 `json:"chain_id"`
	Contract    string `json:"contract"`
	RelayerOpen bool   `json:"relayer_open"`
	ExpectedNet bool   `json:"expected_network"`
	OwnedTokens int    `json:"owned_tokens"`
}

func (c *Client) Status(ctx context.Context) (Status, error) {
	st := Status{
		Address:  c.Address(),
		ChainID:  c.cfg.ChainID,
		Contract: c.cfg.ContractAddress,
	}
	chainID, err := c.eth.ChainID(ctx)
	if err != nil {
		return st, fmt.Errorf("client: query chain id: %w", err)
	}
	st.ExpectedNet = chainID.Uint64() == c.cfg.ChainID

	ids, err := c.reader.OwnedTokens(ctx, c.signer.Address())
	if err != nil {
		return st, err
	}
	st.OwnedTokens = len(ids)
	st.RelayerOpen = c.orch.SessionOpen()
	return st, nil
}
