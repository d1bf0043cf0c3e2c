package distributor

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/merkledrop-labs/merkledrop-go/pkg/types"
)

// handleClaim handles POST /claim
func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if !s.limiter.Allow() {
		s.writeError(w, http.StatusTooManyRequests, "rate_limited", "too many claim requests")
		return
	}

	var req types.ClaimRequestV1
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "bad_request", fmt.Sprintf("failed to parse request: %v", err))
		return
	}

	if !common.IsHexAddress(req.Account) {
		s.writeError(w, http.StatusBadRequest, "bad_request", "account must be a 0x-prefixed 20-byte hex address")
		return
	}
	account := common.HexToAddress(req.Account)

	amount, err := types.ParseAmount(req.Amount)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	proof, err := types.ParseProof(req.Proof)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	signature, err := hexutil.Decode(req.Signature)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "bad_request", fmt.Sprintf("invalid signature encoding: %v", err))
		return
	}

	ev, err := s.dist.Claim(r.Context(), account, amount, proof, signature)
	if err != nil {
		status, code := claimErrorStatus(err)
		s.logger.Sugar().Infow("Claim rejected",
			"account", account.Hex(),
			"code", code,
			"error", err,
		)
		s.writeError(w, status, code, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, types.ClaimResponseV1{
		ClaimID: ev.ID,
		Account: ev.Account.Hex(),
		Amount:  ev.Amount.String(),
	})
}

// handleRoot handles GET /root
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	root := s.dist.Root()
	s.writeJSON(w, http.StatusOK, types.RootResponseV1{Root: hexutil.Encode(root[:])})
}

// handleClaimStatus handles GET /claimed/{address}
func (s *Server) handleClaimStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	addr := strings.TrimPrefix(r.URL.Path, "/claimed/")
	if !common.IsHexAddress(addr) {
		s.writeError(w, http.StatusBadRequest, "bad_request", "path must be /claimed/{0x-address}")
		return
	}
	account := common.HexToAddress(addr)

	claimed, err := s.dist.HasClaimed(account)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "internal", "failed to read claim ledger")
		return
	}

	s.writeJSON(w, http.StatusOK, types.ClaimStatusResponseV1{
		Account: account.Hex(),
		Claimed: claimed,
	})
}

// handleHealthz handles GET /healthz
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if err := s.dist.HealthCheck(); err != nil {
		s.writeError(w, http.StatusServiceUnavailable, "unhealthy", err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// claimErrorStatus maps the claim failure taxonomy onto HTTP statuses.
func claimErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, ErrAlreadyClaimed):
		return http.StatusConflict, "already_claimed"
	case errors.Is(err, ErrInvalidSignature):
		return http.StatusUnauthorized, "invalid_signature"
	case errors.Is(err, ErrInvalidProof):
		return http.StatusUnprocessableEntity, "invalid_proof"
	case errors.Is(err, ErrTransferFailed):
		return http.StatusBadGateway, "transfer_failed"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Sugar().Errorw("Failed to encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, code, msg string) {
	s.writeJSON(w, status, types.ErrorResponseV1{Code: code, Error: msg})
}
