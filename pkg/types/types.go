package types

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/papilo-cloud/merkle-tree-airdrop/pkg/merkle"
)

const AdminJWTAudience = "Airdrop Distributor"

// TreeMode selects how sibling pairs are ordered when a campaign tree is hashed
type TreeMode string

const (
	// TreeModeSorted pairs siblings smaller-first; proofs carry no position
	// information and batch claims are supported
	TreeModeSorted TreeMode = "sorted"
	// TreeModeIndexed pairs siblings by position; proofs verify together
	// with the recipient index
	TreeModeIndexed TreeMode = "indexed"
)

// Valid reports whether the mode is one of the supported pair orders
func (m TreeMode) Valid() bool {
	return m == TreeModeSorted || m == TreeModeIndexed
}

// ClaimEvent is emitted after a claim has been verified and recorded
type ClaimEvent struct {
	CampaignID string
	Index      uint64
	Account    common.Address
	Amount     *big.Int
	LeafHash   merkle.Digest
	ClaimedAt  int64
	OnChain    bool // mirrored from a chain event rather than claimed locally
}

// RootEvent is emitted when a campaign's active root changes
type RootEvent struct {
	CampaignID  string
	Version     int64
	Root        merkle.Digest
	ActivatedAt int64
	OnChain     bool
}

// AuthenticatedMessage wraps a webhook payload with its keccak256 digest and
// an ECDSA signature over that digest
type AuthenticatedMessage struct {
	Payload   []byte        `json:"payload"`
	Hash      merkle.Digest `json:"hash"`
	Signature []byte        `json:"signature"`
}
