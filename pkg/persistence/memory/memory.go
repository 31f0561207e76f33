package memory

import (
	"fmt"
	"sort"
	"sync"

	"github.com/papilo-cloud/merkle-tree-airdrop/pkg/persistence"
	"github.com/papilo-cloud/merkle-tree-airdrop/pkg/types"
)

// claimKey identifies one claim record within the claims map.
type claimKey struct {
	campaignID string
	index      uint64
}

// rootKey identifies one root version within the roots map.
type rootKey struct {
	campaignID string
	version    int64
}

// MemoryPersistence is an in-memory implementation of IDistributorPersistence.
// This implementation is intended for TESTING ONLY.
//
// All data is stored in memory and will be lost when the process exits.
// Thread-safe using sync.RWMutex for concurrent access.
// Deep copies data to prevent external mutation.
type MemoryPersistence struct {
	mu sync.RWMutex

	// Campaign storage: campaign ID -> CampaignRecord
	campaigns map[string]*persistence.CampaignRecord

	// Claim storage: (campaign ID, index) -> ClaimRecord
	claims map[claimKey]*persistence.ClaimRecord

	// Root version storage: (campaign ID, version) -> RootVersionRecord
	roots map[rootKey]*persistence.RootVersionRecord

	// Active version tracking per campaign
	activeVersions map[string]int64

	// Claim bitmap snapshots per campaign
	bitmaps map[string][]byte

	// Closed flag
	closed bool
}

// NewMemoryPersistence creates a new in-memory persistence layer.
// Prints a loud warning since this should only be used for testing.
func NewMemoryPersistence() *MemoryPersistence {
	fmt.Println("⚠️  WARNING: Using in-memory persistence - ALL DATA WILL BE LOST ON RESTART")
	fmt.Println("⚠️  This should ONLY be used for testing. Set AIRDROP_BACKEND=badger for production")

	return &MemoryPersistence{
		campaigns:      make(map[string]*persistence.CampaignRecord),
		claims:         make(map[claimKey]*persistence.ClaimRecord),
		roots:          make(map[rootKey]*persistence.RootVersionRecord),
		activeVersions: make(map[string]int64),
		bitmaps:        make(map[string][]byte),
	}
}

// SaveCampaign persists a campaign record.
func (m *MemoryPersistence) SaveCampaign(campaign *persistence.CampaignRecord) error {
	if campaign == nil {
		return fmt.Errorf("cannot save nil CampaignRecord")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	// Deep copy to prevent external mutation
	m.campaigns[campaign.ID] = deepCopyCampaignRecord(campaign)

	return nil
}

// GetCampaign retrieves a campaign by ID.
func (m *MemoryPersistence) GetCampaign(campaignID string) (*persistence.CampaignRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, fmt.Errorf("persistence layer is closed")
	}

	campaign, exists := m.campaigns[campaignID]
	if !exists {
		return nil, nil // Not found is not an error
	}

	// Deep copy to prevent external mutation
	return deepCopyCampaignRecord(campaign), nil
}

// ListCampaigns returns all campaigns sorted by creation time.
func (m *MemoryPersistence) ListCampaigns() ([]*persistence.CampaignRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, fmt.Errorf("persistence layer is closed")
	}

	result := make([]*persistence.CampaignRecord, 0, len(m.campaigns))
	for _, campaign := range m.campaigns {
		result = append(result, deepCopyCampaignRecord(campaign))
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt != result[j].CreatedAt {
			return result[i].CreatedAt < result[j].CreatedAt
		}
		return result[i].ID < result[j].ID
	})

	return result, nil
}

// SaveClaim persists a claim record.
func (m *MemoryPersistence) SaveClaim(claim *persistence.ClaimRecord) error {
	if claim == nil {
		return fmt.Errorf("cannot save nil ClaimRecord")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	copied := *claim
	m.claims[claimKey{claim.CampaignID, claim.Index}] = &copied

	return nil
}

// GetClaim retrieves a claim record by campaign and index.
func (m *MemoryPersistence) GetClaim(campaignID string, index uint64) (*persistence.ClaimRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, fmt.Errorf("persistence layer is closed")
	}

	claim, exists := m.claims[claimKey{campaignID, index}]
	if !exists {
		return nil, nil // Not found is not an error
	}

	copied := *claim
	return &copied, nil
}

// ListClaims returns all claim records for a campaign sorted by index.
func (m *MemoryPersistence) ListClaims(campaignID string) ([]*persistence.ClaimRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, fmt.Errorf("persistence layer is closed")
	}

	result := make([]*persistence.ClaimRecord, 0)
	for key, claim := range m.claims {
		if key.campaignID != campaignID {
			continue
		}
		copied := *claim
		result = append(result, &copied)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Index < result[j].Index
	})

	return result, nil
}

// SaveRootVersion persists a root version record.
func (m *MemoryPersistence) SaveRootVersion(version *persistence.RootVersionRecord) error {
	if version == nil {
		return fmt.Errorf("cannot save nil RootVersionRecord")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	copied := *version
	m.roots[rootKey{version.CampaignID, version.Version}] = &copied

	return nil
}

// GetRootVersion retrieves a root version by campaign and version number.
func (m *MemoryPersistence) GetRootVersion(campaignID string, version int64) (*persistence.RootVersionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, fmt.Errorf("persistence layer is closed")
	}

	record, exists := m.roots[rootKey{campaignID, version}]
	if !exists {
		return nil, nil // Not found is not an error
	}

	copied := *record
	return &copied, nil
}

// ListRootVersions returns all root versions for a campaign sorted by version.
func (m *MemoryPersistence) ListRootVersions(campaignID string) ([]*persistence.RootVersionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, fmt.Errorf("persistence layer is closed")
	}

	result := make([]*persistence.RootVersionRecord, 0)
	for key, record := range m.roots {
		if key.campaignID != campaignID {
			continue
		}
		copied := *record
		result = append(result, &copied)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Version < result[j].Version
	})

	return result, nil
}

// SetActiveRootVersion stores the active root version for a campaign.
func (m *MemoryPersistence) SetActiveRootVersion(campaignID string, version int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	m.activeVersions[campaignID] = version
	return nil
}

// GetActiveRootVersion retrieves the active root version for a campaign.
func (m *MemoryPersistence) GetActiveRootVersion(campaignID string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return 0, fmt.Errorf("persistence layer is closed")
	}

	return m.activeVersions[campaignID], nil
}

// SaveClaimBitmap persists the claim bitmap snapshot for a campaign.
func (m *MemoryPersistence) SaveClaimBitmap(campaignID string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	// Deep copy
	copied := make([]byte, len(data))
	copy(copied, data)
	m.bitmaps[campaignID] = copied

	return nil
}

// GetClaimBitmap retrieves the claim bitmap snapshot for a campaign.
func (m *MemoryPersistence) GetClaimBitmap(campaignID string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, fmt.Errorf("persistence layer is closed")
	}

	data, exists := m.bitmaps[campaignID]
	if !exists {
		return nil, nil // Not found is not an error
	}

	// Deep copy
	copied := make([]byte, len(data))
	copy(copied, data)
	return copied, nil
}

// Close shuts down the persistence layer.
func (m *MemoryPersistence) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	return nil
}

// HealthCheck verifies the persistence layer is operational.
func (m *MemoryPersistence) HealthCheck() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	return nil
}

// Deep copy helpers

func deepCopyCampaignRecord(c *persistence.CampaignRecord) *persistence.CampaignRecord {
	if c == nil {
		return nil
	}

	recipients := make([]types.RecipientEntry, len(c.Recipients))
	copy(recipients, c.Recipients)

	return &persistence.CampaignRecord{
		ID:             c.ID,
		Name:           c.Name,
		HashScheme:     c.HashScheme,
		Mode:           c.Mode,
		RecipientCount: c.RecipientCount,
		TotalAmount:    c.TotalAmount,
		Root:           c.Root,
		CreatedAt:      c.CreatedAt,
		Recipients:     recipients,
	}
}
