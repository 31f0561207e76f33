package persistence

import (
	"github.com/papilo-cloud/merkle-tree-airdrop/pkg/merkle"
	"github.com/papilo-cloud/merkle-tree-airdrop/pkg/types"
)

// CampaignRecord is the persisted form of a committed campaign. The full
// recipient set is stored alongside the commitment so the tree can be rebuilt
// and proofs served after a restart.
type CampaignRecord struct {
	// ID is the campaign identifier (UUID). Primary key for campaign storage.
	ID string `json:"id"`

	// Name is the operator-chosen display name.
	Name string `json:"name"`

	// HashScheme names the registered hash scheme the tree was built with.
	HashScheme string `json:"hashScheme"`

	// Mode records the sibling pair order ("sorted" or "indexed").
	Mode string `json:"mode"`

	// RecipientCount is the number of committed allocations.
	RecipientCount int `json:"recipientCount"`

	// TotalAmount is the sum of all allocations, as a decimal string.
	TotalAmount string `json:"totalAmount"`

	// Root is the merkle root the recipient set commits to.
	Root merkle.Digest `json:"root"`

	// CreatedAt is the Unix timestamp when the campaign was committed.
	CreatedAt int64 `json:"createdAt"`

	// Recipients is the committed allocation set, ordered by index.
	Recipients []types.RecipientEntry `json:"recipients"`
}

// ClaimRecord is the persisted form of one honored claim. A record exists
// exactly when the corresponding bit in the campaign's claim bitmap is set.
type ClaimRecord struct {
	// CampaignID is the campaign the claim belongs to.
	CampaignID string `json:"campaignId"`

	// Index is the recipient's position in the committed leaf order.
	// Together with CampaignID this is the primary key for claim storage.
	Index uint64 `json:"index"`

	// Account is the recipient address, hex encoded.
	Account string `json:"account"`

	// Amount is the claimed allocation, as a decimal string.
	Amount string `json:"amount"`

	// LeafHash is the leaf digest the proof was verified against.
	LeafHash merkle.Digest `json:"leafHash"`

	// RootVersion is the root version the proof was verified against.
	RootVersion int64 `json:"rootVersion"`

	// ClaimedAt is the Unix timestamp when the claim was honored.
	ClaimedAt int64 `json:"claimedAt"`

	// OnChain marks claims mirrored from chain events rather than served locally.
	OnChain bool `json:"onChain"`
}

// RootVersionRecord is the persisted form of one root version of a campaign.
// Versions are append-only; rotation activates a new version without deleting
// prior ones so claims proved against an earlier epoch remain auditable.
type RootVersionRecord struct {
	// CampaignID is the campaign the root commits.
	CampaignID string `json:"campaignId"`

	// Version is the monotonically increasing version number.
	// Together with CampaignID this is the primary key for root storage.
	Version int64 `json:"version"`

	// Root is the committed digest.
	Root merkle.Digest `json:"root"`

	// ActivatedAt is the Unix timestamp when the version became active,
	// or 0 while it is staged.
	ActivatedAt int64 `json:"activatedAt"`

	// IsActive marks the version claims are currently verified against.
	IsActive bool `json:"isActive"`
}
