package persistence

// IDistributorPersistence defines the interface for persisting distributor
// state across restarts. All implementations must be thread-safe as the
// distributor serves claims concurrently.
//
// The interface supports:
// - Campaign management (save, load, list)
// - Claim records (save, load, list per campaign)
// - Root version management (save, load, list, active version tracking)
// - Claim bitmap snapshots (double-claim prevention state)
// - Lifecycle management (close, health check)
type IDistributorPersistence interface {
	// Campaign Management

	// SaveCampaign persists a campaign record keyed by its ID.
	// Overwrites any existing record with the same ID.
	SaveCampaign(campaign *CampaignRecord) error

	// GetCampaign retrieves a campaign by ID.
	// Returns nil if the campaign doesn't exist, error only on storage failure.
	GetCampaign(campaignID string) (*CampaignRecord, error)

	// ListCampaigns returns all persisted campaigns sorted by creation time (ascending).
	// Returns empty slice if no campaigns exist, error only on storage failure.
	ListCampaigns() ([]*CampaignRecord, error)

	// Claim Records

	// SaveClaim persists a claim record keyed by (campaign ID, recipient index).
	// Returns error only on storage failure, not if the claim already exists (idempotent).
	SaveClaim(claim *ClaimRecord) error

	// GetClaim retrieves a claim record by campaign ID and recipient index.
	// Returns nil if the claim doesn't exist, error only on storage failure.
	GetClaim(campaignID string, index uint64) (*ClaimRecord, error)

	// ListClaims returns all claim records for a campaign sorted by index (ascending).
	// Returns empty slice if no claims exist, error only on storage failure.
	ListClaims(campaignID string) ([]*ClaimRecord, error)

	// Root Versions

	// SaveRootVersion persists a root version keyed by (campaign ID, version).
	SaveRootVersion(version *RootVersionRecord) error

	// GetRootVersion retrieves a root version by campaign ID and version number.
	// Returns nil if the version doesn't exist, error only on storage failure.
	GetRootVersion(campaignID string, version int64) (*RootVersionRecord, error)

	// ListRootVersions returns all root versions for a campaign sorted by version (ascending).
	// Returns empty slice if no versions exist, error only on storage failure.
	ListRootVersions(campaignID string) ([]*RootVersionRecord, error)

	// SetActiveRootVersion stores which root version is currently active for a campaign.
	// Setting version=0 indicates no active version.
	SetActiveRootVersion(campaignID string, version int64) error

	// GetActiveRootVersion returns the active root version for a campaign.
	// Returns 0 if no active version is set (first run).
	GetActiveRootVersion(campaignID string) (int64, error)

	// Claim Bitmaps

	// SaveClaimBitmap persists the serialized claimed-index bitmap for a campaign.
	// Overwrites any existing snapshot.
	SaveClaimBitmap(campaignID string, data []byte) error

	// GetClaimBitmap retrieves the serialized claimed-index bitmap for a campaign.
	// Returns nil if no snapshot exists (first run), error only on storage failure.
	GetClaimBitmap(campaignID string) ([]byte, error)

	// Lifecycle Management

	// Close cleanly shuts down the persistence layer.
	// Idempotent - safe to call multiple times.
	// After Close(), all other operations should return errors.
	Close() error

	// HealthCheck verifies the persistence layer is operational.
	// Returns nil if healthy, error describing the problem if not.
	// Should be called during server startup to fail fast.
	HealthCheck() error
}
