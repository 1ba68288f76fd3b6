package fhe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// HandlePair binds one ciphertext handle to the contract it lives in.
// Batches may mix contract addresses.
type HandlePair struct {
	Handle          common.Hash    `json:"handle"`
	ContractAddress common.Address `json:"contractAddress"`
}

// UserDecryptRequest is the relayer wire request: the handle/contract
// pairs, the ephemeral keypair halves, the user's EIP-712 signature (hex,
// no 0x prefix) and the signed validity window.
type UserDecryptRequest struct {
	HandleContractPairs []HandlePair     `json:"handleContractPairs"`
	PrivateKey          string           `json:"privateKey"`
	PublicKey           string           `json:"publicKey"`
	Signature           string           `json:"signature"`
	ContractAddresses   []common.Address `json:"contractAddresses"`
	UserAddress         common.Address   `json:"userAddress"`
	StartTimestamp      string           `json:"startTimestamp"`
	DurationDays        string           `json:"durationDays"`
}

// RelayerSession is an explicit handle on a decryption-service connection.
// The orchestrator owns one; nothing is looked up ambiently.
type RelayerSession interface {
	Open(ctx context.Context) error
	Close() error
	IsOpen() bool
	// UserDecrypt submits a signed decryption request and returns the
	// plaintext values keyed by the original handle. The returned map may
	// be missing handles the service could not decrypt.
	UserDecrypt(ctx context.Context, req *UserDecryptRequest) (map[common.Hash]*big.Int, error)
}

// HTTPSession talks JSON to a relayer endpoint.
type HTTPSession struct {
	base   string
	client *http.Client

	mu   sync.Mutex
	open bool
}

// NewHTTPSession builds a session against base (e.g. the public testnet
// relayer). The session is closed until Open succeeds.
func NewHTTPSession(base string) *HTTPSession {
	return &HTTPSession{
		base:   strings.TrimRight(base, "/"),
		client: &http.Client{Timeout: 90 * time.Second},
	}
}

// Open verifies the relayer answers its key-material endpoint. Holding key
// metadata is what the SDK calls an initialized instance; we only need the
// liveness signal.
func (s *HTTPSession) Open(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.base+"/v1/keyurl", nil)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("relayer unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("relayer keyurl returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	s.mu.Lock()
	s.open = true
	s.mu.Unlock()
	return nil
}

func (s *HTTPSession) Close() error {
	s.mu.Lock()
	s.open = false
	s.mu.Unlock()
	return nil
}

func (s *HTTPSession) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

type userDecryptResponse struct {
	// Results maps handle hex to decimal plaintext.
	Results map[string]string `json:"results"`
	Error   string            `json:"error,omitempty"`
}

func (s *HTTPSession) UserDecrypt(ctx context.Context, req *UserDecryptRequest) (map[common.Hash]*big.Int, error) {
	bz, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.base+"/v1/user-decrypt", bytes.NewReader(bz))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("relayer request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("relayer response read failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("relayer returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var decoded userDecryptResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("relayer response parse failed: %w", err)
	}
	if decoded.Error != "" {
		return nil, fmt.Errorf("relayer error: %s", decoded.Error)
	}

	out := make(map[common.Hash]*big.Int, len(decoded.Results))
	for handle, value := range decoded.Results {
		v, ok := new(big.Int).SetString(strings.TrimSpace(value), 10)
		if !ok {
			return nil, fmt.Errorf("relayer returned non-numeric value %q for handle %s", value, handle)
		}
		out[common.HexToHash(handle)] = v
	}
	return out, nil
}
