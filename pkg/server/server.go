package server

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/papilo-cloud/merkle-tree-airdrop/pkg/auth"
	"github.com/papilo-cloud/merkle-tree-airdrop/pkg/distributor"
)

/*
Server handles HTTP requests for claimants and operators.

Claimant Flow:
  GET /proof?campaign_id=<id>&index=<n>:
    - Returns the allocation tuple, the membership proof and the active root
    - The claimant submits the same tuple back to /claim later

  POST /claim:
    - Request: { campaignID, index, account, amount, proof }
    - The leaf is rebuilt server-side from the tuple; the proof is verified
      against the active root before the claim bit is set
    - A proof that simply does not verify is a 200 with claimed=false;
      structural problems are 4xx

  POST /claim/batch:
    - One multiproof covering several allocations of a sorted-mode campaign
    - All covered allocations are claimed atomically, or none

Operator Flow (JWT-gated when auth is configured):
  POST /admin/campaigns: commit a recipient set
  POST /admin/roots: stage or activate a signed root rotation
  POST /admin/roots/activate: promote a staged rotation
  POST /admin/verify: check an ad-hoc proof without touching claim state

Status discipline:
  - 200 with claimed=false / valid=false: well-formed proof that does not
    verify. Not an HTTP error; the distinction matters to callers.
  - 400: malformed request, malformed multiproof, unparseable tuple
  - 404: unknown campaign or index
  - 409: allocation already claimed
  - 503: campaign has no active root
*/

// Server handles HTTP requests for the distributor
type Server struct {
	distributor *distributor.Distributor
	verifier    auth.IAdminVerifier
	limiter     *ipRateLimiter
	logger      *zap.Logger
	httpServer  *http.Server
}

// NewServer creates a new server instance. A nil verifier leaves the admin
// endpoints open, which is only acceptable for local development.
func NewServer(d *distributor.Distributor, verifier auth.IAdminVerifier, port int, logger *zap.Logger) *Server {
	s := &Server{
		distributor: d,
		verifier:    verifier,
		limiter:     newIPRateLimiter(defaultClaimRate, defaultClaimBurst),
		logger:      logger,
	}

	mux := http.NewServeMux()

	// Claimant endpoints
	mux.HandleFunc("/claim", s.rateLimited(s.handleClaim))
	mux.HandleFunc("/claim/batch", s.rateLimited(s.handleBatchClaim))
	mux.HandleFunc("/proof", s.handleProof)

	// Campaign listing
	mux.HandleFunc("/campaigns", s.handleListCampaigns)
	mux.HandleFunc("/campaigns/", s.handleGetCampaign)

	// Admin endpoints
	mux.HandleFunc("/admin/campaigns", s.requireAdmin(s.handleCreateCampaign))
	mux.HandleFunc("/admin/roots", s.requireAdmin(s.handleUpdateRoot))
	mux.HandleFunc("/admin/roots/activate", s.requireAdmin(s.handleActivateRoot))
	mux.HandleFunc("/admin/verify", s.requireAdmin(s.handleVerify))

	// Health endpoint
	mux.HandleFunc("/health", s.handleHealth)

	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	return s
}

// Start starts the HTTP server
func (s *Server) Start() error {
	go func() {
		s.logger.Sugar().Infow("Starting HTTP server", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
			s.logger.Sugar().Errorw("HTTP server error", "error", err)
		}
	}()
	return nil
}

// Stop stops the HTTP server
func (s *Server) Stop() error {
	return s.httpServer.Close()
}

// GetHandler returns the HTTP handler (for testing)
func (s *Server) GetHandler() http.Handler {
	return s.httpServer.Handler
}
