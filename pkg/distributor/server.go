package distributor

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

/*
Server exposes the claim engine over HTTP.

Claim Flow:
  POST /claim:
    - Request: { account, amount, proof, signature }
    - Anyone may submit; only the entitled account's EIP-712 signature
      authorizes release (gas-sponsorship pattern)
    - 200 with { claim_id, account, amount } on success
    - 409 already_claimed / 401 invalid_signature /
      422 invalid_proof / 502 transfer_failed on rejection

Read-only accessors:
  GET /root              - the committed merkle root
  GET /claimed/{address} - per-account claimed status
  GET /healthz           - ledger health

The /claim endpoint carries a global token-bucket rate limit: proof and
signature verification are cheap but not free, and the endpoint is
internet-facing by design.
*/

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port int

	// ClaimRateLimit is the sustained claims-per-second budget.
	// Zero uses DefaultClaimRateLimit.
	ClaimRateLimit float64

	// ClaimRateBurst is the burst allowance. Zero uses DefaultClaimRateBurst.
	ClaimRateBurst int
}

const (
	DefaultClaimRateLimit = 50.0
	DefaultClaimRateBurst = 100
)

// Server handles HTTP requests for the distributor
type Server struct {
	dist       *Distributor
	logger     *zap.Logger
	limiter    *rate.Limiter
	httpServer *http.Server
}

// NewServer creates a new server instance
func NewServer(dist *Distributor, cfg ServerConfig, logger *zap.Logger) *Server {
	limit := cfg.ClaimRateLimit
	if limit <= 0 {
		limit = DefaultClaimRateLimit
	}
	burst := cfg.ClaimRateBurst
	if burst <= 0 {
		burst = DefaultClaimRateBurst
	}

	s := &Server{
		dist:    dist,
		logger:  logger,
		limiter: rate.NewLimiter(rate.Limit(limit), burst),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/claim", s.handleClaim)
	mux.HandleFunc("/root", s.handleRoot)
	mux.HandleFunc("/claimed/", s.handleClaimStatus)
	mux.HandleFunc("/healthz", s.handleHealthz)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return s
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.logger.Sugar().Infow("Distributor server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
