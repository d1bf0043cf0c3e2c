package distributor

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/merkledrop-labs/merkledrop-go/pkg/logger"
	"github.com/merkledrop-labs/merkledrop-go/pkg/types"
)

func newTestServer(t *testing.T, f *fixture, cfg ServerConfig) http.Handler {
	t.Helper()

	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: false})
	require.NoError(t, err)

	return NewServer(f.dist, cfg, l).httpServer.Handler
}

func claimRequestBody(t *testing.T, f *fixture, i int) *bytes.Buffer {
	t.Helper()

	proof, sig := f.claimArgs(t, i)
	proofHex := make([]string, len(proof))
	for j, p := range proof {
		proofHex[j] = hexutil.Encode(p[:])
	}

	body, err := json.Marshal(types.ClaimRequestV1{
		Account:   f.accounts[i].Hex(),
		Amount:    f.amounts[i].String(),
		Proof:     proofHex,
		Signature: hexutil.Encode(sig),
	})
	require.NoError(t, err)
	return bytes.NewBuffer(body)
}

func TestHandleClaim_Success(t *testing.T) {
	f := newFixture(t, 4, 1000)
	h := newTestServer(t, f, ServerConfig{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/claim", claimRequestBody(t, f, 0)))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp types.ClaimResponseV1
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.ClaimID)
	assert.Equal(t, f.accounts[0].Hex(), resp.Account)
	assert.Equal(t, f.amounts[0].String(), resp.Amount)
}

func TestHandleClaim_ErrorMapping(t *testing.T) {
	t.Run("already claimed is 409", func(t *testing.T) {
		f := newFixture(t, 4, 1000)
		h := newTestServer(t, f, ServerConfig{})

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/claim", claimRequestBody(t, f, 0)))
		require.Equal(t, http.StatusOK, rec.Code)

		rec = httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/claim", claimRequestBody(t, f, 0)))
		assert.Equal(t, http.StatusConflict, rec.Code)

		var resp types.ErrorResponseV1
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "already_claimed", resp.Code)
	})

	t.Run("wrong signer is 401", func(t *testing.T) {
		f := newFixture(t, 4, 1000)
		h := newTestServer(t, f, ServerConfig{})

		proof, _ := f.claimArgs(t, 0)
		_, sigOther := f.claimArgs(t, 1)
		proofHex := make([]string, len(proof))
		for j, p := range proof {
			proofHex[j] = hexutil.Encode(p[:])
		}
		body, err := json.Marshal(types.ClaimRequestV1{
			Account:   f.accounts[0].Hex(),
			Amount:    f.amounts[0].String(),
			Proof:     proofHex,
			Signature: hexutil.Encode(sigOther),
		})
		require.NoError(t, err)

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/claim", bytes.NewBuffer(body)))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)

		var resp types.ErrorResponseV1
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "invalid_signature", resp.Code)
	})

	t.Run("bad proof is 422", func(t *testing.T) {
		f := newFixture(t, 4, 1000)
		h := newTestServer(t, f, ServerConfig{})

		proof, sig := f.claimArgs(t, 0)
		proofHex := make([]string, len(proof))
		for j, p := range proof {
			proofHex[j] = hexutil.Encode(p[:])
		}
		// Drop the last sibling
		proofHex = proofHex[:len(proofHex)-1]

		body, err := json.Marshal(types.ClaimRequestV1{
			Account:   f.accounts[0].Hex(),
			Amount:    f.amounts[0].String(),
			Proof:     proofHex,
			Signature: hexutil.Encode(sig),
		})
		require.NoError(t, err)

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/claim", bytes.NewBuffer(body)))
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

		var resp types.ErrorResponseV1
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "invalid_proof", resp.Code)
	})

	t.Run("failed transfer is 502 and claimable again", func(t *testing.T) {
		f := newFixture(t, 4, 1) // pool too small
		h := newTestServer(t, f, ServerConfig{})

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/claim", claimRequestBody(t, f, 0)))
		assert.Equal(t, http.StatusBadGateway, rec.Code)

		var resp types.ErrorResponseV1
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "transfer_failed", resp.Code)

		claimed, err := f.dist.HasClaimed(f.accounts[0])
		require.NoError(t, err)
		assert.False(t, claimed)
	})
}

func TestHandleClaim_BadRequests(t *testing.T) {
	f := newFixture(t, 4, 1000)
	h := newTestServer(t, f, ServerConfig{})

	testCases := []struct {
		name string
		body string
	}{
		{"not json", "not json at all"},
		{"bad account", `{"account":"0x12","amount":"25","proof":[],"signature":"0x00"}`},
		{"bad amount", `{"account":"0x1111111111111111111111111111111111111111","amount":"25.5","proof":[],"signature":"0x00"}`},
		{"negative amount", `{"account":"0x1111111111111111111111111111111111111111","amount":"-25","proof":[],"signature":"0x00"}`},
		{"bad proof element", `{"account":"0x1111111111111111111111111111111111111111","amount":"25","proof":["0x1234"],"signature":"0x00"}`},
		{"bad signature encoding", `{"account":"0x1111111111111111111111111111111111111111","amount":"25","proof":[],"signature":"zzzz"}`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/claim", bytes.NewBufferString(tc.body)))
			assert.Equal(t, http.StatusBadRequest, rec.Code)

			var resp types.ErrorResponseV1
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, "bad_request", resp.Code)
		})
	}
}

func TestHandleClaim_MethodNotAllowed(t *testing.T) {
	f := newFixture(t, 4, 1000)
	h := newTestServer(t, f, ServerConfig{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/claim", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandleClaim_RateLimited(t *testing.T) {
	f := newFixture(t, 4, 1000)
	// Burst of 1: the second immediate request must be shed
	h := newTestServer(t, f, ServerConfig{ClaimRateLimit: 0.001, ClaimRateBurst: 1})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/claim", claimRequestBody(t, f, 0)))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/claim", claimRequestBody(t, f, 1)))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	var resp types.ErrorResponseV1
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "rate_limited", resp.Code)
}

func TestHandleRoot(t *testing.T) {
	f := newFixture(t, 4, 1000)
	h := newTestServer(t, f, ServerConfig{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/root", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp types.RootResponseV1
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	root := f.tree.Root
	assert.Equal(t, hexutil.Encode(root[:]), resp.Root)
}

func TestHandleClaimStatus(t *testing.T) {
	f := newFixture(t, 4, 1000)
	h := newTestServer(t, f, ServerConfig{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/claimed/"+f.accounts[0].Hex(), nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp types.ClaimStatusResponseV1
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Claimed)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/claim", claimRequestBody(t, f, 0)))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/claimed/"+f.accounts[0].Hex(), nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Claimed)
	assert.Equal(t, f.accounts[0].Hex(), resp.Account)
}

func TestHandleClaimStatus_BadAddress(t *testing.T) {
	f := newFixture(t, 4, 1000)
	h := newTestServer(t, f, ServerConfig{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/claimed/not-an-address", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleHealthz(t *testing.T) {
	f := newFixture(t, 4, 1000)
	h := newTestServer(t, f, ServerConfig{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	require.NoError(t, f.ledger.Close())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
