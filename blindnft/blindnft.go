// Package blindnft wraps the BlindNFT contract: an ERC-721 whose rarity,
// power and speed are minted as FHE ciphertext handles and optionally
// published later through submitRevealedAttributes.
package blindnft

import (
	"errors"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// ABI covers the contract surface this client consumes. Ciphertext handles
// surface as bytes32.
const ABI = `[
  {"type":"function","name":"mint","inputs":[{"name":"uri","type":"string"}],"outputs":[],"stateMutability":"nonpayable"},
  {"type":"function","name":"tokensOfOwner","inputs":[{"name":"owner","type":"address"}],"outputs":[{"name":"","type":"uint256[]"}],"stateMutability":"view"},
  {"type":"function","name":"ownerOf","inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[{"name":"","type":"address"}],"stateMutability":"view"},
  {"type":"function","name":"totalSupply","inputs":[],"outputs":[{"name":"","type":"uint256"}],"stateMutability":"view"},
  {"type":"function","name":"isRevealed","inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[{"name":"","type":"bool"}],"stateMutability":"view"},
  {"type":"function","name":"getEncryptedRarity","inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[{"name":"","type":"bytes32"}],"stateMutability":"view"},
  {"type":"function","name":"getEncryptedAttributes","inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[{"name":"power","type":"bytes32"},{"name":"speed","type":"bytes32"}],"stateMutability":"view"},
  {"type":"function","name":"getEncryptedTokenURI","inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[{"name":"","type":"string"}],"stateMutability":"view"},
  {"type":"function","name":"getRevealedAttributes","inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[{"name":"rarity","type":"uint64"},{"name":"power","type":"uint64"},{"name":"speed","type":"uint64"},{"name":"revealed","type":"bool"}],"stateMutability":"view"},
  {"type":"function","name":"getRevealedTokenURI","inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[{"name":"","type":"string"}],"stateMutability":"view"},
  {"type":"function","name":"submitRevealedAttributes","inputs":[{"name":"tokenId","type":"uint256"},{"name":"rarity","type":"uint64"},{"name":"power","type":"uint64"},{"name":"speed","type":"uint64"}],"outputs":[],"stateMutability":"nonpayable"},
  {"type":"event","name":"Transfer","inputs":[{"name":"from","type":"address","indexed":true},{"name":"to","type":"address","indexed":true},{"name":"tokenId","type":"uint256","indexed":true}],"anonymous":false},
  {"type":"event","name":"Revealed","inputs":[{"name":"tokenId","type":"uint256","indexed":true}],"anonymous":false}
]`

var parsedABI = func() abi.ABI {
	a, err := abi.JSON(strings.NewReader(ABI))
	if err != nil {
		panic("blindnft: bad ABI: " + err.Error())
	}
	return a
}()

// Contract is a bound BlindNFT instance.
type Contract struct {
	address  common.Address
	contract *bind.BoundContract
}

// New binds the contract at address to backend.
func New(address common.Address, backend bind.ContractBackend) *Contract {
	return &Contract{
		address:  address,
		contract: bind.NewBoundContract(address, parsedABI, backend, backend, backend),
	}
}

// Address returns the bound contract address.
func (c *Contract) Address() common.Address {
	return c.address
}

func (c *Contract) TokensOfOwner(opts *bind.CallOpts, owner common.Address) ([]*big.Int, error) {
	var out []interface{}
	if err := c.contract.Call(opts, &out, "tokensOfOwner", owner); err != nil {
		return nil, err
	}
	return *abi.ConvertType(out[0], new([]*big.Int)).(*[]*big.Int), nil
}

func (c *Contract) OwnerOf(opts *bind.CallOpts, tokenID *big.Int) (common.Address, error) {
	var out []interface{}
	if err := c.contract.Call(opts, &out, "ownerOf", tokenID); err != nil {
		return common.Address{}, err
	}
	return *abi.ConvertType(out[0], new(common.Address)).(*common.Address), nil
}

func (c *Contract) TotalSupply(opts *bind.CallOpts) (*big.Int, error) {
	var out []interface{}
	if err := c.contract.Call(opts, &out, "totalSupply"); err != nil {
		return nil, err
	}
	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}

func (c *Contract) IsRevealed(opts *bind.CallOpts, tokenID *big.Int) (bool, error) {
	var out []interface{}
	if err := c.contract.Call(opts, &out, "isRevealed", tokenID); err != nil {
		return false, err
	}
	return *abi.ConvertType(out[0], new(bool)).(*bool), nil
}

func (c *Contract) GetEncryptedRarity(opts *bind.CallOpts, tokenID *big.Int) (common.Hash, error) {
	var out []interface{}
	if err := c.contract.Call(opts, &out, "getEncryptedRarity", tokenID); err != nil {
		return common.Hash{}, err
	}
	raw := *abi.ConvertType(out[0], new([32]byte)).(*[32]byte)
	return common.Hash(raw), nil
}

// GetEncryptedAttributes returns the power and speed ciphertext handles.
func (c *Contract) GetEncryptedAttributes(opts *bind.CallOpts, tokenID *big.Int) (common.Hash, common.Hash, error) {
	var out []interface{}
	if err := c.contract.Call(opts, &out, "getEncryptedAttributes", tokenID); err != nil {
		return common.Hash{}, common.Hash{}, err
	}
	power := *abi.ConvertType(out[0], new([32]byte)).(*[32]byte)
	speed := *abi.ConvertType(out[1], new([32]byte)).(*[32]byte)
	return common.Hash(power), common.Hash(speed), nil
}

func (c *Contract) GetEncryptedTokenURI(opts *bind.CallOpts, tokenID *big.Int) (string, error) {
	var out []interface{}
	if err := c.contract.Call(opts, &out, "getEncryptedTokenURI", tokenID); err != nil {
		return "", err
	}
	return *abi.ConvertType(out[0], new(string)).(*string), nil
}

// RevealedAttributes is the public attribute record of a token. The three
// values are zero until Revealed is true.
type RevealedAttributes struct {
	Rarity   uint64
	Power    uint64
	Speed    uint64
	Revealed bool
}

func (c *Contract) GetRevealedAttributes(opts *bind.CallOpts, tokenID *big.Int) (RevealedAttributes, error) {
	var out []interface{}
	if err := c.contract.Call(opts, &out, "getRevealedAttributes", tokenID); err != nil {
		return RevealedAttributes{}, err
	}
	return RevealedAttributes{
		Rarity:   *abi.ConvertType(out[0], new(uint64)).(*uint64),
		Power:    *abi.ConvertType(out[1], new(uint64)).(*uint64),
		Speed:    *abi.ConvertType(out[2], new(uint64)).(*uint64),
		Revealed: *abi.ConvertType(out[3], new(bool)).(*bool),
	}, nil
}

func (c *Contract) GetRevealedTokenURI(opts *bind.CallOpts, tokenID *big.Int) (string, error) {
	var out []interface{}
	if err := c.contract.Call(opts, &out, "getRevealedTokenURI", tokenID); err != nil {
		return "", err
	}
	return *abi.ConvertType(out[0], new(string)).(*string), nil
}

func (c *Contract) Mint(opts *bind.TransactOpts, uri string) (*types.Transaction, error) {
	return c.contract.Transact(opts, "mint", uri)
}

func (c *Contract) SubmitRevealedAttributes(opts *bind.TransactOpts, tokenID *big.Int, rarity, power, speed uint64) (*types.Transaction, error) {
	return c.contract.Transact(opts, "submitRevealedAttributes", tokenID, rarity, power, speed)
}

// MintCallData packs the mint calldata for gas estimation.
func MintCallData(uri string) ([]byte, error) {
	return parsedABI.Pack("mint", uri)
}

// SubmitRevealedCallData packs the submitRevealedAttributes calldata for gas
// estimation.
func SubmitRevealedCallData(tokenID *big.Int, rarity, power, speed uint64) ([]byte, error) {
	return parsedABI.Pack("submitRevealedAttributes", tokenID, rarity, power, speed)
}

var (
	transferTopic = parsedABI.Events["Transfer"].ID
	revealedTopic = parsedABI.Events["Revealed"].ID

	errNotTransfer = errors.New("blindnft: not a Transfer log")
	errNotRevealed = errors.New("blindnft: not a Revealed log")
)

// TransferEvent is an ERC-721 Transfer log. A mint has the zero address as
// From.
type TransferEvent struct {
	From    common.Address
	To      common.Address
	TokenID *big.Int
}

// ParseTransfer decodes log as a Transfer event, which carries all of its
// fields in topics.
func ParseTransfer(log types.Log) (*TransferEvent, error) {
	if len(log.Topics) != 4 || log.Topics[0] != transferTopic {
		return nil, errNotTransfer
	}
	return &TransferEvent{
		From:    common.BytesToAddress(log.Topics[1].Bytes()),
		To:      common.BytesToAddress(log.Topics[2].Bytes()),
		TokenID: new(big.Int).SetBytes(log.Topics[3].Bytes()),
	}, nil
}

// RevealedEvent marks the irreversible publication of one token's
// attributes.
type RevealedEvent struct {
	TokenID *big.Int
}

// ParseRevealed decodes log as a Revealed event.
func ParseRevealed(log types.Log) (*RevealedEvent, error) {
	if len(log.Topics) != 2 || log.Topics[0] != revealedTopic {
		return nil, errNotRevealed
	}
	return &RevealedEvent{TokenID: new(big.Int).SetBytes(log.Topics[1].Bytes())}, nil
}

// TransferTopic and RevealedTopic expose the event signatures for log
// filtering.
func TransferTopic() common.Hash { return transferTopic }
func RevealedTopic() common.Hash { return revealedTopic }
