package badger

import (
	"context"
	"encoding/binary"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	badgerdb "github.com/dgraph-io/badger/v3"
	"go.uber.org/zap"

	"github.com/papilo-cloud/merkle-tree-airdrop/pkg/persistence"
)

// Key prefixes for namespacing
const (
	keyPrefixCampaign    = "campaign:"
	keyPrefixClaim       = "claim:"
	keyPrefixRootVersion = "rootversion:"
	keyPrefixActiveRoot  = "activeroot:"
	keyPrefixBitmap      = "bitmap:"
	keySchemaVersion     = "metadata:schema_version"
	currentSchemaVersion = "v1"
)

// BadgerPersistence is a production-ready persistence implementation using Badger.
// Provides durable, disk-based storage with ACID guarantees.
type BadgerPersistence struct {
	db       *badgerdb.DB
	logger   *zap.Logger
	gcCancel context.CancelFunc
	gcWg     sync.WaitGroup
	mu       sync.RWMutex
	closed   bool
}

// NewBadgerPersistence creates a new Badger-backed persistence layer.
// The database is opened at the specified path with SyncWrites enabled for durability.
// A background goroutine is started for garbage collection.
func NewBadgerPersistence(dataPath string, logger *zap.Logger) (*BadgerPersistence, error) {
	absPath, err := filepath.Abs(dataPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path: %w", err)
	}

	// Configure Badger for production use
	opts := badgerdb.DefaultOptions(absPath)
	opts.Logger = &badgerLoggerAdapter{logger: logger}
	opts.SyncWrites = true // Ensure durability (fsync on every write)
	opts.CompactL0OnClose = true
	opts.NumVersionsToKeep = 1 // We don't need versioning within Badger

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database at %s: %w", absPath, err)
	}

	bp := &BadgerPersistence{
		db:     db,
		logger: logger,
	}

	// Initialize schema version
	if err := bp.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	// Start background GC
	ctx, cancel := context.WithCancel(context.Background())
	bp.gcCancel = cancel
	bp.gcWg.Add(1)
	go bp.runGC(ctx)

	logger.Sugar().Infow("Badger persistence initialized", "path", absPath)

	return bp, nil
}

// initSchema initializes or validates the schema version
func (b *BadgerPersistence) initSchema() error {
	return b.db.Update(func(txn *badgerdb.Txn) error {
		item, err := txn.Get([]byte(keySchemaVersion))
		if err == badgerdb.ErrKeyNotFound {
			// First time setup - set schema version
			return txn.Set([]byte(keySchemaVersion), []byte(currentSchemaVersion))
		}
		if err != nil {
			return fmt.Errorf("failed to read schema version: %w", err)
		}

		var existingVersion string
		err = item.Value(func(val []byte) error {
			existingVersion = string(val)
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to read schema version value: %w", err)
		}

		if existingVersion != currentSchemaVersion {
			return fmt.Errorf("unsupported schema version: %s (expected: %s)", existingVersion, currentSchemaVersion)
		}

		return nil
	})
}

// runGC runs periodic garbage collection in the background
func (b *BadgerPersistence) runGC(ctx context.Context) {
	defer b.gcWg.Done()

	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			// Run value log GC with 0.5 discard ratio
			err := b.db.RunValueLogGC(0.5)
			if err != nil && err != badgerdb.ErrNoRewrite {
				b.logger.Sugar().Warnw("Badger GC error", "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

// campaignKey builds the storage key for one campaign record.
func campaignKey(campaignID string) []byte {
	return []byte(keyPrefixCampaign + campaignID)
}

// claimStorageKey builds the storage key for one claim record. The index is
// zero-padded so prefix iteration yields claims in index order.
func claimStorageKey(campaignID string, index uint64) []byte {
	return []byte(fmt.Sprintf("%s%s:%020d", keyPrefixClaim, campaignID, index))
}

// rootVersionKey builds the storage key for one root version. The version is
// zero-padded so prefix iteration yields versions in ascending order.
func rootVersionKey(campaignID string, version int64) []byte {
	return []byte(fmt.Sprintf("%s%s:%020d", keyPrefixRootVersion, campaignID, version))
}

// set stores one key under a write transaction.
func (b *BadgerPersistence) set(key, data []byte) error {
	return b.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set(key, data)
	})
}

// get reads one key, returning nil data when the key does not exist.
func (b *BadgerPersistence) get(key []byte) ([]byte, error) {
	var data []byte
	err := b.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(key)
		if err == badgerdb.ErrKeyNotFound {
			return nil // Not found is not an error
		}
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			data = append([]byte{}, val...) // Copy value
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

// SaveCampaign persists a campaign record
func (b *BadgerPersistence) SaveCampaign(campaign *persistence.CampaignRecord) error {
	if campaign == nil {
		return fmt.Errorf("cannot save nil CampaignRecord")
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	data, err := persistence.MarshalCampaignRecord(campaign)
	if err != nil {
		return fmt.Errorf("failed to marshal CampaignRecord: %w", err)
	}

	return b.set(campaignKey(campaign.ID), data)
}

// GetCampaign retrieves a campaign record
func (b *BadgerPersistence) GetCampaign(campaignID string) (*persistence.CampaignRecord, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, fmt.Errorf("persistence layer is closed")
	}

	data, err := b.get(campaignKey(campaignID))
	if err != nil {
		return nil, fmt.Errorf("failed to load CampaignRecord: %w", err)
	}
	if data == nil {
		return nil, nil // Not found
	}

	campaign, err := persistence.UnmarshalCampaignRecord(data)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal CampaignRecord: %w", err)
	}

	return campaign, nil
}

// ListCampaigns returns all campaigns sorted by creation time
func (b *BadgerPersistence) ListCampaigns() ([]*persistence.CampaignRecord, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, fmt.Errorf("persistence layer is closed")
	}

	campaigns := make([]*persistence.CampaignRecord, 0)

	err := b.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefixCampaign)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()

			var data []byte
			err := item.Value(func(val []byte) error {
				data = append([]byte{}, val...) // Copy value
				return nil
			})
			if err != nil {
				return fmt.Errorf("failed to read value: %w", err)
			}

			campaign, err := persistence.UnmarshalCampaignRecord(data)
			if err != nil {
				b.logger.Sugar().Warnw("Failed to unmarshal CampaignRecord, skipping",
					"key", string(item.Key()), "error", err)
				continue
			}

			campaigns = append(campaigns, campaign)
		}

		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to list CampaignRecords: %w", err)
	}

	sort.Slice(campaigns, func(i, j int) bool {
		if campaigns[i].CreatedAt != campaigns[j].CreatedAt {
			return campaigns[i].CreatedAt < campaigns[j].CreatedAt
		}
		return campaigns[i].ID < campaigns[j].ID
	})

	return campaigns, nil
}

// SaveClaim persists a claim record
func (b *BadgerPersistence) SaveClaim(claim *persistence.ClaimRecord) error {
	if claim == nil {
		return fmt.Errorf("cannot save nil ClaimRecord")
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	data, err := persistence.MarshalClaimRecord(claim)
	if err != nil {
		return fmt.Errorf("failed to marshal ClaimRecord: %w", err)
	}

	return b.set(claimStorageKey(claim.CampaignID, claim.Index), data)
}

// GetClaim retrieves a claim record
func (b *BadgerPersistence) GetClaim(campaignID string, index uint64) (*persistence.ClaimRecord, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, fmt.Errorf("persistence layer is closed")
	}

	data, err := b.get(claimStorageKey(campaignID, index))
	if err != nil {
		return nil, fmt.Errorf("failed to load ClaimRecord: %w", err)
	}
	if data == nil {
		return nil, nil // Not found
	}

	claim, err := persistence.UnmarshalClaimRecord(data)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal ClaimRecord: %w", err)
	}

	return claim, nil
}

// ListClaims returns all claim records for a campaign sorted by index
func (b *BadgerPersistence) ListClaims(campaignID string) ([]*persistence.ClaimRecord, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, fmt.Errorf("persistence layer is closed")
	}

	claims := make([]*persistence.ClaimRecord, 0)

	err := b.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefixClaim + campaignID + ":")

		it := txn.NewIterator(opts)
		defer it.Close()

		// Keys are zero-padded by index, so iteration order is index order
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()

			var data []byte
			err := item.Value(func(val []byte) error {
				data = append([]byte{}, val...) // Copy value
				return nil
			})
			if err != nil {
				return fmt.Errorf("failed to read value: %w", err)
			}

			claim, err := persistence.UnmarshalClaimRecord(data)
			if err != nil {
				b.logger.Sugar().Warnw("Failed to unmarshal ClaimRecord, skipping",
					"key", string(item.Key()), "error", err)
				continue
			}

			claims = append(claims, claim)
		}

		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to list ClaimRecords: %w", err)
	}

	return claims, nil
}

// SaveRootVersion persists a root version record
func (b *BadgerPersistence) SaveRootVersion(version *persistence.RootVersionRecord) error {
	if version == nil {
		return fmt.Errorf("cannot save nil RootVersionRecord")
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	data, err := persistence.MarshalRootVersionRecord(version)
	if err != nil {
		return fmt.Errorf("failed to marshal RootVersionRecord: %w", err)
	}

	return b.set(rootVersionKey(version.CampaignID, version.Version), data)
}

// GetRootVersion retrieves a root version record
func (b *BadgerPersistence) GetRootVersion(campaignID string, version int64) (*persistence.RootVersionRecord, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, fmt.Errorf("persistence layer is closed")
	}

	data, err := b.get(rootVersionKey(campaignID, version))
	if err != nil {
		return nil, fmt.Errorf("failed to load RootVersionRecord: %w", err)
	}
	if data == nil {
		return nil, nil // Not found
	}

	record, err := persistence.UnmarshalRootVersionRecord(data)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal RootVersionRecord: %w", err)
	}

	return record, nil
}

// ListRootVersions returns all root versions for a campaign sorted by version
func (b *BadgerPersistence) ListRootVersions(campaignID string) ([]*persistence.RootVersionRecord, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, fmt.Errorf("persistence layer is closed")
	}

	versions := make([]*persistence.RootVersionRecord, 0)

	err := b.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefixRootVersion + campaignID + ":")

		it := txn.NewIterator(opts)
		defer it.Close()

		// Keys are zero-padded by version, so iteration order is version order
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()

			var data []byte
			err := item.Value(func(val []byte) error {
				data = append([]byte{}, val...) // Copy value
				return nil
			})
			if err != nil {
				return fmt.Errorf("failed to read value: %w", err)
			}

			record, err := persistence.UnmarshalRootVersionRecord(data)
			if err != nil {
				b.logger.Sugar().Warnw("Failed to unmarshal RootVersionRecord, skipping",
					"key", string(item.Key()), "error", err)
				continue
			}

			versions = append(versions, record)
		}

		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to list RootVersionRecords: %w", err)
	}

	return versions, nil
}

// SetActiveRootVersion stores the active root version for a campaign
func (b *BadgerPersistence) SetActiveRootVersion(campaignID string, version int64) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(version))

	return b.set([]byte(keyPrefixActiveRoot+campaignID), buf)
}

// GetActiveRootVersion retrieves the active root version for a campaign
func (b *BadgerPersistence) GetActiveRootVersion(campaignID string) (int64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return 0, fmt.Errorf("persistence layer is closed")
	}

	data, err := b.get([]byte(keyPrefixActiveRoot + campaignID))
	if err != nil {
		return 0, fmt.Errorf("failed to get active root version: %w", err)
	}
	if data == nil {
		return 0, nil // No active version set yet
	}
	if len(data) != 8 {
		return 0, fmt.Errorf("invalid active version data length: %d", len(data))
	}

	return int64(binary.BigEndian.Uint64(data)), nil
}

// SaveClaimBitmap persists the claim bitmap snapshot for a campaign
func (b *BadgerPersistence) SaveClaimBitmap(campaignID string, data []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	return b.set([]byte(keyPrefixBitmap+campaignID), data)
}

// GetClaimBitmap retrieves the claim bitmap snapshot for a campaign
func (b *BadgerPersistence) GetClaimBitmap(campaignID string) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, fmt.Errorf("persistence layer is closed")
	}

	data, err := b.get([]byte(keyPrefixBitmap + campaignID))
	if err != nil {
		return nil, fmt.Errorf("failed to load claim bitmap: %w", err)
	}

	return data, nil
}

// Close shuts down the persistence layer
func (b *BadgerPersistence) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil // Already closed, idempotent
	}
	b.closed = true
	b.mu.Unlock()

	// Stop GC goroutine
	if b.gcCancel != nil {
		b.gcCancel()
	}
	b.gcWg.Wait()

	if err := b.db.Close(); err != nil {
		return fmt.Errorf("failed to close badger database: %w", err)
	}

	b.logger.Sugar().Info("Badger persistence closed")
	return nil
}

// HealthCheck verifies the persistence layer is operational
func (b *BadgerPersistence) HealthCheck() error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	// Try a simple read operation to verify database is accessible
	return b.db.View(func(txn *badgerdb.Txn) error {
		_, err := txn.Get([]byte(keySchemaVersion))
		if err == badgerdb.ErrKeyNotFound {
			return fmt.Errorf("schema version not found - database may be corrupted")
		}
		return err
	})
}
