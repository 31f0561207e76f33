package types

import "github.com/papilo-cloud/merkle-tree-airdrop/pkg/merkle"

// RecipientEntry is the wire form of one allocation row. Amounts travel as
// decimal strings so values above 2^53 survive JSON.
type RecipientEntry struct {
	Index   uint64 `json:"index"`
	Account string `json:"account"`
	Amount  string `json:"amount"`
}

// ClaimRequest asks the distributor to honor a single membership proof
type ClaimRequest struct {
	CampaignID string          `json:"campaign_id"`
	Index      uint64          `json:"index"`
	Account    string          `json:"account"`
	Amount     string          `json:"amount"`
	Proof      []merkle.Digest `json:"proof"`
}

// ClaimResponse reports the outcome of a claim
type ClaimResponse struct {
	Claimed   bool          `json:"claimed"`
	LeafHash  merkle.Digest `json:"leaf_hash,omitempty"`
	ClaimedAt int64         `json:"claimed_at,omitempty"`
	Error     string        `json:"error,omitempty"`
}

// BatchClaimRequest asks the distributor to honor one multiproof covering
// several allocations of the same campaign
type BatchClaimRequest struct {
	CampaignID string            `json:"campaign_id"`
	Claims     []RecipientEntry  `json:"claims"`
	MultiProof merkle.MultiProof `json:"multiproof"`
}

// BatchClaimResponse reports the outcome of a batch claim
type BatchClaimResponse struct {
	Claimed bool   `json:"claimed"`
	Count   int    `json:"count,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ProofRequest asks for the proof of one recipient index
type ProofRequest struct {
	CampaignID string `json:"campaign_id"`
	Index      uint64 `json:"index"`
}

// ProofResponse carries everything a claimant needs to submit later
type ProofResponse struct {
	CampaignID  string          `json:"campaign_id"`
	Index       uint64          `json:"index"`
	Account     string          `json:"account"`
	Amount      string          `json:"amount"`
	LeafHash    merkle.Digest   `json:"leaf_hash"`
	Root        merkle.Digest   `json:"root"`
	RootVersion int64           `json:"root_version"`
	Proof       []merkle.Digest `json:"proof"`
}

// CampaignInfo summarizes one campaign for listing endpoints
type CampaignInfo struct {
	ID             string        `json:"id"`
	Name           string        `json:"name"`
	HashScheme     string        `json:"hash_scheme"`
	Mode           TreeMode      `json:"mode"`
	RecipientCount int           `json:"recipient_count"`
	TotalAmount    string        `json:"total_amount"`
	Root           merkle.Digest `json:"root"`
	RootVersion    int64         `json:"root_version"`
	ClaimedCount   uint64        `json:"claimed_count"`
	CreatedAt      int64         `json:"created_at"`
}

// CreateCampaignRequest uploads a recipient set for commitment
type CreateCampaignRequest struct {
	Name       string           `json:"name"`
	HashScheme string           `json:"hash_scheme,omitempty"`
	Mode       TreeMode         `json:"mode,omitempty"`
	Recipients []RecipientEntry `json:"recipients"`
}

// RootUpdateRequest stages or activates a new root version. The signature
// authorizes the update: an ECDSA signature by the configured updater key
// over keccak256(campaign_id || version || root).
type RootUpdateRequest struct {
	CampaignID string        `json:"campaign_id"`
	Version    int64         `json:"version"`
	Root       merkle.Digest `json:"root"`
	Signature  string        `json:"signature"`
	Activate   bool          `json:"activate"`
}

// RootUpdateResponse reports the staged or activated version
type RootUpdateResponse struct {
	CampaignID string `json:"campaign_id"`
	Version    int64  `json:"version"`
	Active     bool   `json:"active"`
	Error      string `json:"error,omitempty"`
}

// VerifyRequest checks an ad-hoc proof without touching claim state
type VerifyRequest struct {
	Root   merkle.Digest   `json:"root"`
	Leaf   merkle.Digest   `json:"leaf"`
	Proof  []merkle.Digest `json:"proof"`
	Index  *uint64         `json:"index,omitempty"`
	Scheme string          `json:"scheme,omitempty"`
}

// VerifyResponse reports an ad-hoc verification result
type VerifyResponse struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

// HealthResponse reports service liveness
type HealthResponse struct {
	Status    string `json:"status"`
	Campaigns int    `json:"campaigns"`
}
