// Package ipfs pins mint assets through Pinata and resolves token URIs
// back to fetchable image URLs.
package ipfs

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

const (
	defaultAPIBase     = "https://api.pinata.cloud"
	defaultGatewayBase = "https://gateway.pinata.cloud/ipfs/"
)

// Client pins files and JSON documents. A zero API key disables pinning but
// URI resolution still works.
type Client struct {
	apiKey      string
	secretKey   string
	apiBase     string
	gatewayBase string
	http        *http.Client
}

type Option func(*Client)

// WithAPIBase overrides the pinning endpoint (tests).
func WithAPIBase(base string) Option {
	return func(c *Client) { c.apiBase = strings.TrimRight(base, "/") }
}

// WithGatewayBase overrides the public gateway prefix.
func WithGatewayBase(base string) Option {
	return func(c *Client) {
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		c.gatewayBase = base
	}
}

func NewClient(apiKey, secretKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:      apiKey,
		secretKey:   secretKey,
		apiBase:     defaultAPIBase,
		gatewayBase: defaultGatewayBase,
		http:        &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CanPin reports whether API credentials are configured.
func (c *Client) CanPin() bool {
	return c.apiKey != "" && c.secretKey != ""
}

func (c *Client) auth(req *http.Request) {
	req.Header.Set("pinata_api_key", c.apiKey)
	req.Header.Set("pinata_secret_api_key", c.secretKey)
}

type pinResponse struct {
	IpfsHash string `json:"IpfsHash"`
}

// PinFile pins a file and returns its CID.
func (c *Client) PinFile(ctx context.Context, name string, r io.Reader) (string, error) {
	if !c.CanPin() {
		return "", fmt.Errorf("ipfs: pinning credentials not configured")
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, r); err != nil {
		return "", err
	}
	meta, _ := json.Marshal(map[string]string{"name": name})
	if err := mw.WriteField("pinataMetadata", string(meta)); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiBase+"/pinning/pinFileToIPFS", &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	c.auth(req)
	return c.doPin(req)
}

// PinJSON pins a JSON document and returns its CID.
func (c *Client) PinJSON(ctx context.Context, name string, v any) (string, error) {
	if !c.CanPin() {
		return "", fmt.Errorf("ipfs: pinning credentials not configured")
	}

	payload, err := json.Marshal(map[string]any{
		"pinataContent":  v,
		"pinataMetadata": map[string]string{"name": name},
	})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiBase+"/pinning/pinJSONToIPFS", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	c.auth(req)
	return c.doPin(req)
}

func (c *Client) doPin(req *http.Request) (string, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("ipfs: pin request failed: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ipfs: pin returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var pinned pinResponse
	if err := json.Unmarshal(body, &pinned); err != nil {
		return "", fmt.Errorf("ipfs: pin response parse: %w", err)
	}
	if pinned.IpfsHash == "" {
		return "", fmt.Errorf("ipfs: pin response missing hash")
	}
	return pinned.IpfsHash, nil
}

// TokenMetadata is the ERC-721 metadata document minted alongside an
// asset. Attributes mark the token as an unrevealed blind box.
type TokenMetadata struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Image       string          `json:"image"`
	Attributes  []MetadataTrait `json:"attributes"`
}

type MetadataTrait struct {
	TraitType string `json:"trait_type"`
	Value     string `json:"value"`
}

// AssetUpload is the result of pinning an image plus its metadata.
type AssetUpload struct {
	ImageCID    string
	MetadataCID string
	// ImageRef is the ipfs:// locator of the image, recorded per token
	// until the canonical URI resolves on-chain.
	ImageRef string
	// MetadataURI is the ipfs:// locator minted as the token URI.
	MetadataURI string
}

// UploadAsset pins the image and a freshly built metadata document.
func (c *Client) UploadAsset(ctx context.Context, name, description, filename string, image io.Reader) (*AssetUpload, error) {
	imageCID, err := c.PinFile(ctx, filename, image)
	if err != nil {
		return nil, err
	}

	if name == "" {
		name = fmt.Sprintf("Blind NFT #%d", time.Now().Unix())
	}
	if description == "" {
		description = "A mystery blind-box NFT waiting to reveal its true attributes."
	}
	meta := TokenMetadata{
		Name:        name,
		Description: description,
		Image:       "ipfs://" + imageCID,
		Attributes: []MetadataTrait{
			{TraitType: "Type", Value: "Blind Box"},
			{TraitType: "Status", Value: "Unrevealed"},
		},
	}
	metaCID, err := c.PinJSON(ctx, "nft-metadata-"+name, meta)
	if err != nil {
		return nil, err
	}

	return &AssetUpload{
		ImageCID:    imageCID,
		MetadataCID: metaCID,
		ImageRef:    "ipfs://" + imageCID,
		MetadataURI: "ipfs://" + metaCID,
	}, nil
}

// GatewayURL maps an ipfs:// locator to an HTTP gateway URL. Other URIs
// pass through unchanged.
func (c *Client) GatewayURL(uri string) string {
	if cid, ok := strings.CutPrefix(uri, "ipfs://"); ok {
		return c.gatewayBase + cid
	}
	return uri
}

// ResolveTokenImage resolves a token URI to the image URL inside its
// metadata. Handles ipfs:// locators, inline data:application/json;base64
// documents and plain http(s) URLs; anything else resolves to empty.
func (c *Client) ResolveTokenImage(ctx context.Context, tokenURI string) (string, error) {
	tokenURI = strings.TrimSpace(tokenURI)
	switch {
	case tokenURI == "":
		return "", nil

	case strings.HasPrefix(tokenURI, "data:application/json"):
		_, encoded, ok := strings.Cut(tokenURI, ",")
		if !ok {
			return "", fmt.Errorf("ipfs: malformed data URI")
		}
		raw, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return "", fmt.Errorf("ipfs: data URI decode: %w", err)
		}
		return c.imageFromMetadata(raw)

	case strings.HasPrefix(tokenURI, "ipfs://"), strings.HasPrefix(tokenURI, "http://"), strings.HasPrefix(tokenURI, "https://"):
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.GatewayURL(tokenURI), nil)
		if err != nil {
			return "", err
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return "", fmt.Errorf("ipfs: metadata fetch: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return "", fmt.Errorf("ipfs: metadata fetch returned %d", resp.StatusCode)
		}
		body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return "", err
		}
		return c.imageFromMetadata(body)

	default:
		return "", nil
	}
}

func (c *Client) imageFromMetadata(raw []byte) (string, error) {
	var meta TokenMetadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		return "", fmt.Errorf("ipfs: metadata parse: %w", err)
	}
	if meta.Image == "" {
		return "", nil
	}
	return c.GatewayURL(meta.Image), nil
}
