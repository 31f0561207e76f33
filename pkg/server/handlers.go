package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/papilo-cloud/merkle-tree-airdrop/pkg/distributor"
	"github.com/papilo-cloud/merkle-tree-airdrop/pkg/merkle"
	"github.com/papilo-cloud/merkle-tree-airdrop/pkg/rootstore"
	"github.com/papilo-cloud/merkle-tree-airdrop/pkg/types"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// handleClaim handles the /claim endpoint for single membership proofs
func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req types.ClaimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Failed to parse request: %v", err), http.StatusBadRequest)
		return
	}
	if req.CampaignID == "" {
		http.Error(w, "campaign_id is required", http.StatusBadRequest)
		return
	}

	record, err := s.distributor.Claim(r.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, distributor.ErrInvalidProof):
			// A proof that does not verify is a result, not a transport error
			writeJSON(w, http.StatusOK, types.ClaimResponse{Claimed: false, Error: err.Error()})
		case errors.Is(err, distributor.ErrAlreadyClaimed):
			writeJSON(w, http.StatusConflict, types.ClaimResponse{Claimed: false, Error: err.Error()})
		case errors.Is(err, distributor.ErrUnknownCampaign):
			http.Error(w, err.Error(), http.StatusNotFound)
		case errors.Is(err, rootstore.ErrNoActiveRoot):
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
		default:
			http.Error(w, err.Error(), http.StatusBadRequest)
		}
		return
	}

	writeJSON(w, http.StatusOK, types.ClaimResponse{
		Claimed:   true,
		LeafHash:  record.LeafHash,
		ClaimedAt: record.ClaimedAt,
	})
}

// handleBatchClaim handles the /claim/batch endpoint for multiproofs
func (s *Server) handleBatchClaim(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req types.BatchClaimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Failed to parse request: %v", err), http.StatusBadRequest)
		return
	}

	count, err := s.distributor.BatchClaim(r.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, distributor.ErrInvalidProof):
			writeJSON(w, http.StatusOK, types.BatchClaimResponse{Claimed: false, Error: err.Error()})
		case errors.Is(err, distributor.ErrAlreadyClaimed):
			writeJSON(w, http.StatusConflict, types.BatchClaimResponse{Claimed: false, Error: err.Error()})
		case errors.Is(err, distributor.ErrUnknownCampaign):
			http.Error(w, err.Error(), http.StatusNotFound)
		case errors.Is(err, rootstore.ErrNoActiveRoot):
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
		case errors.Is(err, merkle.ErrInvalidMultiProof):
			// Malformed multiproofs are structural, unlike a false result
			http.Error(w, err.Error(), http.StatusBadRequest)
		default:
			http.Error(w, err.Error(), http.StatusBadRequest)
		}
		return
	}

	writeJSON(w, http.StatusOK, types.BatchClaimResponse{Claimed: true, Count: count})
}

// handleProof handles the /proof endpoint
func (s *Server) handleProof(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	campaignID := r.URL.Query().Get("campaign_id")
	if campaignID == "" {
		http.Error(w, "campaign_id is required", http.StatusBadRequest)
		return
	}
	index, err := strconv.ParseUint(r.URL.Query().Get("index"), 10, 64)
	if err != nil {
		http.Error(w, "index must be an unsigned integer", http.StatusBadRequest)
		return
	}

	proof, err := s.distributor.Proof(campaignID, index)
	if err != nil {
		switch {
		case errors.Is(err, rootstore.ErrNoActiveRoot):
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
		default:
			// Unknown campaign or index out of range
			http.Error(w, err.Error(), http.StatusNotFound)
		}
		return
	}

	writeJSON(w, http.StatusOK, proof)
}

// handleListCampaigns handles the /campaigns endpoint
func (s *Server) handleListCampaigns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, s.distributor.ListCampaigns())
}

// handleGetCampaign handles the /campaigns/{id} endpoint
func (s *Server) handleGetCampaign(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	campaignID := strings.TrimPrefix(r.URL.Path, "/campaigns/")
	if campaignID == "" || strings.Contains(campaignID, "/") {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	info, err := s.distributor.CampaignInfo(campaignID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, info)
}

// handleCreateCampaign handles the /admin/campaigns endpoint
func (s *Server) handleCreateCampaign(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req types.CreateCampaignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Failed to parse request: %v", err), http.StatusBadRequest)
		return
	}

	c, err := s.distributor.CreateCampaign(r.Context(), &req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	info, err := s.distributor.CampaignInfo(c.ID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, info)
}

// handleUpdateRoot handles the /admin/roots endpoint
func (s *Server) handleUpdateRoot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req types.RootUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Failed to parse request: %v", err), http.StatusBadRequest)
		return
	}

	rv, err := s.distributor.UpdateRoot(r.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, rootstore.ErrUnauthorizedUpdater):
			http.Error(w, err.Error(), http.StatusForbidden)
		case errors.Is(err, distributor.ErrUnknownCampaign):
			http.Error(w, err.Error(), http.StatusNotFound)
		default:
			http.Error(w, err.Error(), http.StatusBadRequest)
		}
		return
	}

	writeJSON(w, http.StatusOK, types.RootUpdateResponse{
		CampaignID: rv.CampaignID,
		Version:    rv.Version,
		Active:     rv.IsActive,
	})
}

// handleActivateRoot handles the /admin/roots/activate endpoint
func (s *Server) handleActivateRoot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		CampaignID string `json:"campaign_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Failed to parse request: %v", err), http.StatusBadRequest)
		return
	}

	rv, err := s.distributor.ActivatePendingRoot(r.Context(), req.CampaignID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusOK, types.RootUpdateResponse{
		CampaignID: rv.CampaignID,
		Version:    rv.Version,
		Active:     rv.IsActive,
	})
}

// handleVerify handles the /admin/verify endpoint for ad-hoc proof checks
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req types.VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Failed to parse request: %v", err), http.StatusBadRequest)
		return
	}

	valid, err := s.distributor.VerifyAdHoc(&req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusOK, types.VerifyResponse{Valid: valid})
}

// handleHealth handles the /health endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, types.HealthResponse{
		Status:    "ok",
		Campaigns: s.distributor.CampaignCount(),
	})
}
