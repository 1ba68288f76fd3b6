// Package api exposes the disclosure client over a local HTTP surface.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/branba-810/FHE-BlindNFT/chain"
	"github.com/branba-810/FHE-BlindNFT/client"
	"github.com/branba-810/FHE-BlindNFT/fhe"
	"github.com/branba-810/FHE-BlindNFT/state"
)

// Service is the slice of client behavior the handlers consume. Satisfied
// by *client.Client; tests install fakes.
type Service interface {
	Tokens(ctx context.Context) ([]state.Projection, error)
	Token(ctx context.Context, tokenID uint64) (state.Projection, error)
	Decrypt(ctx context.Context, tokenIDs ...uint64) ([]uint64, error)
	Reveal(ctx context.Context, tokenID uint64) (string, error)
	Mint(ctx context.Context, uri, assetRef string) (uint64, string, error)
	Status(ctx context.Context) (client.Status, error)
}

// Server routes the local API.
type Server struct {
	svc    Service
	router *mux.Router
}

func NewServer(svc Service) *Server {
	s := &Server{svc: svc}
	r := mux.NewRouter()
	r.HandleFunc("/v1/status", s.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/v1/tokens", s.handleListTokens).Methods(http.MethodGet)
	r.HandleFunc("/v1/tokens/{id}", s.handleGetToken).Methods(http.MethodGet)
	r.HandleFunc("/v1/tokens/{id}/decrypt", s.handleDecrypt).Methods(http.MethodPost)
	r.HandleFunc("/v1/tokens/{id}/reveal", s.handleReveal).Methods(http.MethodPost)
	r.HandleFunc("/v1/mint", s.handleMint).Methods(http.MethodPost)
	s.router = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe blocks serving the API on addr.
func (s *Server) ListenAndServe(addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // reveal waits for a confirmation
	}
	log.Printf("api: listening on %s", addr)
	return srv.ListenAndServe()
}

type jsonErrorResponse struct {
	Error string `json:"error"`
	Hint  string `json:"hint,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, message, hint string) {
	writeJSON(w, status, jsonErrorResponse{Error: message, Hint: hint})
}

// writeServiceError maps the error taxonomy onto HTTP statuses, keeping the
// original message attached.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, chain.ErrWrongNetwork):
		writeJSONError(w, http.StatusPreconditionFailed, err.Error(), "switch the connected node to the expected network")
	case errors.Is(err, chain.ErrNotDecrypted):
		writeJSONError(w, http.StatusConflict, err.Error(), "decrypt the token before revealing it")
	case errors.Is(err, chain.ErrRevealUnconfirmed):
		writeJSONError(w, http.StatusAccepted, err.Error(), "the next chain sync will settle the state")
	case errors.Is(err, fhe.ErrSigningRejected):
		writeJSONError(w, http.StatusForbidden, err.Error(), "")
	case errors.Is(err, fhe.ErrDecryptionUnavailable):
		writeJSONError(w, http.StatusServiceUnavailable, err.Error(), "relayer session could not be established")
	case errors.Is(err, fhe.ErrDecryptionFailed):
		writeJSONError(w, http.StatusBadGateway, err.Error(), "")
	default:
		writeJSONError(w, http.StatusInternalServerError, err.Error(), "")
	}
}

type tokenResponse struct {
	TokenID  uint64            `json:"token_id"`
	Owner    string            `json:"owner"`
	State    string            `json:"state"`
	Attrs    *state.Attributes `json:"attributes,omitempty"`
	Tier     string            `json:"tier,omitempty"`
	ImageRef string            `json:"image_ref,omitempty"`
}

func toTokenResponse(p state.Projection) tokenResponse {
	resp := tokenResponse{
		TokenID:  p.TokenID,
		Owner:    p.Owner.Hex(),
		State:    p.State.String(),
		Attrs:    p.Attrs,
		ImageRef: p.ImageRef,
	}
	if p.Attrs != nil {
		resp.Tier = p.Attrs.Tier().String()
	}
	return resp
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.svc.Status(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleListTokens(w http.ResponseWriter, r *http.Request) {
	tokens, err := s.svc.Tokens(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	out := make([]tokenResponse, 0, len(tokens))
	for _, t := range tokens {
		out = append(out, toTokenResponse(t))
	}
	writeJSON(w, http.StatusOK, map[string]any{"tokens": out})
}

func tokenIDVar(r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	return id, err == nil
}

func (s *Server) handleGetToken(w http.ResponseWriter, r *http.Request) {
	id, ok := tokenIDVar(r)
	if !ok {
		writeJSONError(w, http.StatusBadRequest, "invalid token id", "")
		return
	}
	token, err := s.svc.Token(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTokenResponse(token))
}

func (s *Server) handleDecrypt(w http.ResponseWriter, r *http.Request) {
	id, ok := tokenIDVar(r)
	if !ok {
		writeJSONError(w, http.StatusBadRequest, "invalid token id", "")
		return
	}
	failed, err := s.svc.Decrypt(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if len(failed) > 0 {
		// The relayer answered but skipped this token's handles; it stays
		// encrypted.
		writeJSONError(w, http.StatusBadGateway, "token not decrypted", "the relayer returned no value for its handles")
		return
	}
	token, err := s.svc.Token(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTokenResponse(token))
}

type revealResponse struct {
	TokenID uint64 `json:"token_id"`
	TxHash  string `json:"tx_hash,omitempty"`
	State   string `json:"state"`
}

func (s *Server) handleReveal(w http.ResponseWriter, r *http.Request) {
	id, ok := tokenIDVar(r)
	if !ok {
		writeJSONError(w, http.StatusBadRequest, "invalid token id", "")
		return
	}
	txHash, err := s.svc.Reveal(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, revealResponse{
		TokenID: id,
		TxHash:  txHash,
		State:   state.PubliclyRevealed.String(),
	})
}

type mintRequest struct {
	URI      string `json:"uri"`
	AssetRef string `json:"asset_ref,omitempty"`
}

type mintResponse struct {
	TokenID uint64 `json:"token_id"`
	TxHash  string `json:"tx_hash"`
}

func (s *Server) handleMint(w http.ResponseWriter, r *http.Request) {
	var req mintRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid mint request body", err.Error())
		return
	}
	if req.URI == "" {
		writeJSONError(w, http.StatusBadRequest, "uri is required", "upload an asset first or pass a metadata URI")
		return
	}
	tokenID, txHash, err := s.svc.Mint(r.Context(), req.URI, req.AssetRef)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mintResponse{TokenID: tokenID, TxHash: txHash})
}
