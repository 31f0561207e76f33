package rootstore

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"github.com/papilo-cloud/merkle-tree-airdrop/pkg/merkle"
	"github.com/papilo-cloud/merkle-tree-airdrop/pkg/util"
)

// ErrNoActiveRoot is returned when a campaign has no active root version.
var ErrNoActiveRoot = errors.New("no active root version")

// ErrUnauthorizedUpdater is returned when a root update signature does not
// recover to the configured updater address.
var ErrUnauthorizedUpdater = errors.New("root update not signed by authorized updater")

// RootVersion is one committed root of a campaign. Versions are
// monotonically increasing; rotation activates a new version without
// discarding prior ones.
type RootVersion struct {
	CampaignID  string
	Version     int64
	Root        merkle.Digest
	ActivatedAt int64
	IsActive    bool
}

// Store manages root versions per campaign and provides thread-safe access.
// Updates are gated by an ECDSA signature check against the configured
// updater address; the verification core never sees any of this state.
type Store struct {
	mu sync.RWMutex

	// Per-campaign version history, ascending by version
	versions map[string][]*RootVersion
	active   map[string]*RootVersion
	pending  map[string]*RootVersion

	// updater is the address allowed to authorize rotations. The zero
	// address disables the signature gate (local/dev mode).
	updater common.Address

	logger *zap.Logger
}

// NewStore creates a root store gated by the given updater address.
func NewStore(updater common.Address, logger *zap.Logger) *Store {
	return &Store{
		versions: make(map[string][]*RootVersion),
		active:   make(map[string]*RootVersion),
		pending:  make(map[string]*RootVersion),
		updater:  updater,
		logger:   logger,
	}
}

// UpdaterAddress returns the address allowed to authorize rotations.
func (s *Store) UpdaterAddress() common.Address {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.updater
}

// AddVersion records a new root version. The first version of a campaign
// becomes active immediately; later versions must be activated explicitly.
func (s *Store) AddVersion(version *RootVersion) error {
	if version == nil {
		return fmt.Errorf("cannot add nil root version")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing := s.versions[version.CampaignID]
	if len(existing) > 0 && version.Version <= existing[len(existing)-1].Version {
		return fmt.Errorf("version %d is not above current latest %d for campaign %s",
			version.Version, existing[len(existing)-1].Version, version.CampaignID)
	}

	s.versions[version.CampaignID] = append(existing, version)

	if len(existing) == 0 || version.IsActive {
		s.activateLocked(version)
	}

	return nil
}

// activateLocked marks the version active and deactivates the prior one.
// Caller must hold the write lock.
func (s *Store) activateLocked(version *RootVersion) {
	if prev := s.active[version.CampaignID]; prev != nil {
		prev.IsActive = false
	}
	version.IsActive = true
	if version.ActivatedAt == 0 {
		version.ActivatedAt = time.Now().Unix()
	}
	s.active[version.CampaignID] = version
}

// GetActiveRoot returns the root claims are currently verified against.
func (s *Store) GetActiveRoot(campaignID string) (merkle.Digest, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	active := s.active[campaignID]
	if active == nil {
		return merkle.Digest{}, 0, fmt.Errorf("%w for campaign %s", ErrNoActiveRoot, campaignID)
	}
	return active.Root, active.Version, nil
}

// GetActiveVersion returns the active version record, or nil when none exists.
func (s *Store) GetActiveVersion(campaignID string) *RootVersion {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.active[campaignID]
}

// GetVersion returns the record of a specific version, or nil when it does
// not exist.
func (s *Store) GetVersion(campaignID string, version int64) *RootVersion {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, v := range s.versions[campaignID] {
		if v.Version == version {
			return v
		}
	}
	return nil
}

// ListVersions returns all recorded versions of a campaign in ascending
// version order.
func (s *Store) ListVersions(campaignID string) []*RootVersion {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*RootVersion, len(s.versions[campaignID]))
	copy(out, s.versions[campaignID])
	return out
}

// GetVersionAt returns the version that was active at the given timestamp,
// for auditing claims proved against a prior epoch. Falls back to the
// current active version when no earlier activation covers the timestamp.
func (s *Store) GetVersionAt(campaignID string, timestamp int64) *RootVersion {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var best *RootVersion
	for _, v := range s.versions[campaignID] {
		if v.ActivatedAt != 0 && v.ActivatedAt <= timestamp {
			if best == nil || v.ActivatedAt > best.ActivatedAt {
				best = v
			}
		}
	}
	if best == nil {
		return s.active[campaignID]
	}
	return best
}

// SetPendingVersion stages a version for rotation without activating it.
func (s *Store) SetPendingVersion(version *RootVersion) error {
	if version == nil {
		return fmt.Errorf("cannot stage nil root version")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing := s.versions[version.CampaignID]
	if len(existing) > 0 && version.Version <= existing[len(existing)-1].Version {
		return fmt.Errorf("version %d is not above current latest %d for campaign %s",
			version.Version, existing[len(existing)-1].Version, version.CampaignID)
	}

	version.IsActive = false
	s.pending[version.CampaignID] = version
	return nil
}

// GetPendingVersion returns the staged version, or nil when none is staged.
func (s *Store) GetPendingVersion(campaignID string) *RootVersion {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.pending[campaignID]
}

// ActivatePendingVersion promotes the staged version to active.
func (s *Store) ActivatePendingVersion(campaignID string) (*RootVersion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	staged := s.pending[campaignID]
	if staged == nil {
		return nil, fmt.Errorf("no pending root version for campaign %s", campaignID)
	}

	s.versions[campaignID] = append(s.versions[campaignID], staged)
	s.activateLocked(staged)
	delete(s.pending, campaignID)

	return staged, nil
}

// ClearPendingVersion discards the staged version.
func (s *Store) ClearPendingVersion(campaignID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.pending, campaignID)
}

// VerifyUpdateSignature checks that the given signature over
// keccak256(campaignID || version || root) recovers to the configured
// updater address. Signatures are 65 bytes, r || s || v, with v either
// 0/1 or the Ethereum 27/28 convention.
func (s *Store) VerifyUpdateSignature(campaignID string, version int64, root merkle.Digest, signature []byte) error {
	s.mu.RLock()
	updater := s.updater
	s.mu.RUnlock()

	if updater == (common.Address{}) {
		// No updater configured: the gate is open (local/dev mode)
		return nil
	}

	if len(signature) != 65 {
		return fmt.Errorf("%w: signature must be 65 bytes, got %d", ErrUnauthorizedUpdater, len(signature))
	}

	digest := crypto.Keccak256(util.PackRootUpdate(campaignID, version, root))

	sig := make([]byte, 65)
	copy(sig, signature)
	if sig[64] >= 27 {
		sig[64] -= 27
	}

	pubKey, err := crypto.SigToPub(digest, sig)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnauthorizedUpdater, err)
	}

	recovered := crypto.PubkeyToAddress(*pubKey)
	if recovered != updater {
		return fmt.Errorf("%w: recovered %s, expected %s", ErrUnauthorizedUpdater, recovered.Hex(), updater.Hex())
	}

	return nil
}

// ApplySignedUpdate verifies the authorization signature and then stages or
// activates the version depending on activate. This is the only write path
// exposed to the admin API.
func (s *Store) ApplySignedUpdate(campaignID string, version int64, root merkle.Digest, signature []byte, activate bool) (*RootVersion, error) {
	if err := s.VerifyUpdateSignature(campaignID, version, root, signature); err != nil {
		return nil, err
	}

	rv := &RootVersion{
		CampaignID: campaignID,
		Version:    version,
		Root:       root,
	}

	if !activate {
		if err := s.SetPendingVersion(rv); err != nil {
			return nil, err
		}
		s.logger.Sugar().Infow("Staged root version",
			"campaignId", campaignID, "version", version, "root", root.Hex())
		return rv, nil
	}

	rv.IsActive = true
	if err := s.AddVersion(rv); err != nil {
		return nil, err
	}
	s.logger.Sugar().Infow("Activated root version",
		"campaignId", campaignID, "version", version, "root", root.Hex())
	return rv, nil
}
