package redis

import (
	"context"
	"encoding/binary"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/papilo-cloud/merkle-tree-airdrop/pkg/persistence"
)

// Key prefixes for namespacing in Redis
const (
	keyPrefixCampaign    = "airdrop:campaign:"
	keyPrefixClaim       = "airdrop:claim:"
	keyPrefixRootVersion = "airdrop:rootversion:"
	keyPrefixActiveRoot  = "airdrop:activeroot:"
	keyPrefixBitmap      = "airdrop:bitmap:"
	keySchemaVersion     = "airdrop:metadata:schema_version"
	currentSchemaVersion = "v1"

	// Index sets for listing operations (Redis doesn't support prefix iteration natively)
	keySetCampaigns          = "airdrop:campaigns:index"
	keySetClaimsPrefix       = "airdrop:claims:index:"
	keySetRootVersionsPrefix = "airdrop:rootversions:index:"
)

// RedisPersistence is a production-ready persistence implementation using Redis.
// Provides durable, distributed storage suitable for cloud-native deployments.
type RedisPersistence struct {
	client    *redis.Client
	logger    *zap.Logger
	keyPrefix string // Custom prefix for all keys
	mu        sync.RWMutex
	closed    bool
}

// RedisConfig holds the configuration for connecting to Redis
type RedisConfig struct {
	// Address is the Redis server address (host:port)
	Address string
	// Password is the optional Redis password
	Password string
	// DB is the Redis database number (0-15)
	DB int
	// KeyPrefix is an optional custom prefix for all keys (for multi-tenant setups).
	// If set, this prefix is prepended to all keys, e.g., "myapp:" would result in
	// keys like "myapp:airdrop:campaign:abc". If empty, keys use the default
	// "airdrop:" prefix.
	KeyPrefix string
}

// NewRedisPersistence creates a new Redis-backed persistence layer.
func NewRedisPersistence(cfg *RedisConfig, logger *zap.Logger) (*RedisPersistence, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config cannot be nil")
	}

	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address cannot be empty")
	}

	opts := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	}

	client := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Address, err)
	}

	rp := &RedisPersistence{
		client:    client,
		logger:    logger,
		keyPrefix: cfg.KeyPrefix,
	}

	// Initialize schema version
	if err := rp.initSchema(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	if cfg.KeyPrefix != "" {
		logger.Sugar().Infow("Redis persistence initialized", "address", cfg.Address, "db", cfg.DB, "key_prefix", cfg.KeyPrefix)
	} else {
		logger.Sugar().Infow("Redis persistence initialized", "address", cfg.Address, "db", cfg.DB)
	}

	return rp, nil
}

// prefixKey adds the custom key prefix (if configured) to a key
func (r *RedisPersistence) prefixKey(key string) string {
	if r.keyPrefix == "" {
		return key
	}
	return r.keyPrefix + key
}

// initSchema initializes or validates the schema version
func (r *RedisPersistence) initSchema(ctx context.Context) error {
	schemaKey := r.prefixKey(keySchemaVersion)

	existingVersion, err := r.client.Get(ctx, schemaKey).Result()
	if err == redis.Nil {
		// First time setup - set schema version
		return r.client.Set(ctx, schemaKey, currentSchemaVersion, 0).Err()
	}
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	if existingVersion != currentSchemaVersion {
		return fmt.Errorf("unsupported schema version: %s (expected: %s)", existingVersion, currentSchemaVersion)
	}

	return nil
}

// SaveCampaign persists a campaign record
func (r *RedisPersistence) SaveCampaign(campaign *persistence.CampaignRecord) error {
	if campaign == nil {
		return fmt.Errorf("cannot save nil CampaignRecord")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	ctx := context.Background()

	data, err := persistence.MarshalCampaignRecord(campaign)
	if err != nil {
		return fmt.Errorf("failed to marshal CampaignRecord: %w", err)
	}

	// Store value and index membership atomically via pipeline
	key := r.prefixKey(keyPrefixCampaign + campaign.ID)
	indexKey := r.prefixKey(keySetCampaigns)
	pipe := r.client.Pipeline()
	pipe.Set(ctx, key, data, 0)
	pipe.SAdd(ctx, indexKey, campaign.ID)

	_, err = pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to save CampaignRecord: %w", err)
	}

	return nil
}

// GetCampaign retrieves a campaign record
func (r *RedisPersistence) GetCampaign(campaignID string) (*persistence.CampaignRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, fmt.Errorf("persistence layer is closed")
	}

	ctx := context.Background()
	key := r.prefixKey(keyPrefixCampaign + campaignID)

	data, err := r.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil // Not found is not an error
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load CampaignRecord: %w", err)
	}

	campaign, err := persistence.UnmarshalCampaignRecord(data)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal CampaignRecord: %w", err)
	}

	return campaign, nil
}

// ListCampaigns returns all campaigns sorted by creation time
func (r *RedisPersistence) ListCampaigns() ([]*persistence.CampaignRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, fmt.Errorf("persistence layer is closed")
	}

	ctx := context.Background()
	indexKey := r.prefixKey(keySetCampaigns)

	ids, err := r.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list campaign IDs: %w", err)
	}

	if len(ids) == 0 {
		return []*persistence.CampaignRecord{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.prefixKey(keyPrefixCampaign + id)
	}

	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch CampaignRecords: %w", err)
	}

	campaigns := make([]*persistence.CampaignRecord, 0, len(values))
	for i, val := range values {
		if val == nil {
			// Key was in index but doesn't exist - clean up index
			r.client.SRem(ctx, indexKey, ids[i])
			continue
		}

		data, ok := val.(string)
		if !ok {
			r.logger.Sugar().Warnw("Unexpected value type for CampaignRecord", "key", keys[i])
			continue
		}

		campaign, err := persistence.UnmarshalCampaignRecord([]byte(data))
		if err != nil {
			r.logger.Sugar().Warnw("Failed to unmarshal CampaignRecord, skipping",
				"key", keys[i], "error", err)
			continue
		}

		campaigns = append(campaigns, campaign)
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
func (r *RedisPersistence) SaveClaim(claim *persistence.ClaimRecord) error {
	if claim == nil {
		return fmt.Errorf("cannot save nil ClaimRecord")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	ctx := context.Background()

	data, err := persistence.MarshalClaimRecord(claim)
	if err != nil {
		return fmt.Errorf("failed to marshal ClaimRecord: %w", err)
	}

	key := r.prefixKey(fmt.Sprintf("%s%s:%d", keyPrefixClaim, claim.CampaignID, claim.Index))
	indexKey := r.prefixKey(keySetClaimsPrefix + claim.CampaignID)
	pipe := r.client.Pipeline()
	pipe.Set(ctx, key, data, 0)
	pipe.SAdd(ctx, indexKey, claim.Index)

	_, err = pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to save ClaimRecord: %w", err)
	}

	return nil
}

// GetClaim retrieves a claim record
func (r *RedisPersistence) GetClaim(campaignID string, index uint64) (*persistence.ClaimRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, fmt.Errorf("persistence layer is closed")
	}

	ctx := context.Background()
	key := r.prefixKey(fmt.Sprintf("%s%s:%d", keyPrefixClaim, campaignID, index))

	data, err := r.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil // Not found is not an error
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load ClaimRecord: %w", err)
	}

	claim, err := persistence.UnmarshalClaimRecord(data)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal ClaimRecord: %w", err)
	}

	return claim, nil
}

// ListClaims returns all claim records for a campaign sorted by index
func (r *RedisPersistence) ListClaims(campaignID string) ([]*persistence.ClaimRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, fmt.Errorf("persistence layer is closed")
	}

	ctx := context.Background()
	indexKey := r.prefixKey(keySetClaimsPrefix + campaignID)

	indices, err := r.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list claim indices: %w", err)
	}

	if len(indices) == 0 {
		return []*persistence.ClaimRecord{}, nil
	}

	keys := make([]string, len(indices))
	for i, idx := range indices {
		keys[i] = r.prefixKey(fmt.Sprintf("%s%s:%s", keyPrefixClaim, campaignID, idx))
	}

	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch ClaimRecords: %w", err)
	}

	claims := make([]*persistence.ClaimRecord, 0, len(values))
	for i, val := range values {
		if val == nil {
			// Key was in index but doesn't exist - clean up index
			r.client.SRem(ctx, indexKey, indices[i])
			continue
		}

		data, ok := val.(string)
		if !ok {
			r.logger.Sugar().Warnw("Unexpected value type for ClaimRecord", "key", keys[i])
			continue
		}

		claim, err := persistence.UnmarshalClaimRecord([]byte(data))
		if err != nil {
			r.logger.Sugar().Warnw("Failed to unmarshal ClaimRecord, skipping",
				"key", keys[i], "error", err)
			continue
		}

		claims = append(claims, claim)
	}

	sort.Slice(claims, func(i, j int) bool {
		return claims[i].Index < claims[j].Index
	})

	return claims, nil
}

// SaveRootVersion persists a root version record
func (r *RedisPersistence) SaveRootVersion(version *persistence.RootVersionRecord) error {
	if version == nil {
		return fmt.Errorf("cannot save nil RootVersionRecord")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	ctx := context.Background()

	data, err := persistence.MarshalRootVersionRecord(version)
	if err != nil {
		return fmt.Errorf("failed to marshal RootVersionRecord: %w", err)
	}

	key := r.prefixKey(fmt.Sprintf("%s%s:%d", keyPrefixRootVersion, version.CampaignID, version.Version))
	indexKey := r.prefixKey(keySetRootVersionsPrefix + version.CampaignID)
	pipe := r.client.Pipeline()
	pipe.Set(ctx, key, data, 0)
	pipe.SAdd(ctx, indexKey, version.Version)

	_, err = pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to save RootVersionRecord: %w", err)
	}

	return nil
}

// GetRootVersion retrieves a root version record
func (r *RedisPersistence) GetRootVersion(campaignID string, version int64) (*persistence.RootVersionRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, fmt.Errorf("persistence layer is closed")
	}

	ctx := context.Background()
	key := r.prefixKey(fmt.Sprintf("%s%s:%d", keyPrefixRootVersion, campaignID, version))

	data, err := r.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil // Not found is not an error
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load RootVersionRecord: %w", err)
	}

	record, err := persistence.UnmarshalRootVersionRecord(data)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal RootVersionRecord: %w", err)
	}

	return record, nil
}

// ListRootVersions returns all root versions for a campaign sorted by version
func (r *RedisPersistence) ListRootVersions(campaignID string) ([]*persistence.RootVersionRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, fmt.Errorf("persistence layer is closed")
	}

	ctx := context.Background()
	indexKey := r.prefixKey(keySetRootVersionsPrefix + campaignID)

	versionStrs, err := r.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list root versions: %w", err)
	}

	if len(versionStrs) == 0 {
		return []*persistence.RootVersionRecord{}, nil
	}

	keys := make([]string, len(versionStrs))
	for i, v := range versionStrs {
		keys[i] = r.prefixKey(fmt.Sprintf("%s%s:%s", keyPrefixRootVersion, campaignID, v))
	}

	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch RootVersionRecords: %w", err)
	}

	versions := make([]*persistence.RootVersionRecord, 0, len(values))
	for i, val := range values {
		if val == nil {
			// Key was in index but doesn't exist - clean up index
			r.client.SRem(ctx, indexKey, versionStrs[i])
			continue
		}

		data, ok := val.(string)
		if !ok {
			r.logger.Sugar().Warnw("Unexpected value type for RootVersionRecord", "key", keys[i])
			continue
		}

		record, err := persistence.UnmarshalRootVersionRecord([]byte(data))
		if err != nil {
			r.logger.Sugar().Warnw("Failed to unmarshal RootVersionRecord, skipping",
				"key", keys[i], "error", err)
			continue
		}

		versions = append(versions, record)
	}

	sort.Slice(versions, func(i, j int) bool {
		return versions[i].Version < versions[j].Version
	})

	return versions, nil
}

// SetActiveRootVersion stores the active root version for a campaign
func (r *RedisPersistence) SetActiveRootVersion(campaignID string, version int64) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	ctx := context.Background()
	key := r.prefixKey(keyPrefixActiveRoot + campaignID)

	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(version))

	return r.client.Set(ctx, key, buf, 0).Err()
}

// GetActiveRootVersion retrieves the active root version for a campaign
func (r *RedisPersistence) GetActiveRootVersion(campaignID string) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return 0, fmt.Errorf("persistence layer is closed")
	}

	ctx := context.Background()
	key := r.prefixKey(keyPrefixActiveRoot + campaignID)

	data, err := r.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return 0, nil // No active version set yet
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get active root version: %w", err)
	}

	if len(data) != 8 {
		return 0, fmt.Errorf("invalid active version data length: %d", len(data))
	}

	return int64(binary.BigEndian.Uint64(data)), nil
}

// SaveClaimBitmap persists the claim bitmap snapshot for a campaign
func (r *RedisPersistence) SaveClaimBitmap(campaignID string, data []byte) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	ctx := context.Background()
	key := r.prefixKey(keyPrefixBitmap + campaignID)

	return r.client.Set(ctx, key, data, 0).Err()
}

// GetClaimBitmap retrieves the claim bitmap snapshot for a campaign
func (r *RedisPersistence) GetClaimBitmap(campaignID string) ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, fmt.Errorf("persistence layer is closed")
	}

	ctx := context.Background()
	key := r.prefixKey(keyPrefixBitmap + campaignID)

	data, err := r.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil // Not found is not an error
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load claim bitmap: %w", err)
	}

	return data, nil
}

// Close shuts down the persistence layer
func (r *RedisPersistence) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil // Already closed, idempotent
	}
	r.closed = true
	r.mu.Unlock()

	if err := r.client.Close(); err != nil {
		return fmt.Errorf("failed to close Redis client: %w", err)
	}

	r.logger.Sugar().Info("Redis persistence closed")
	return nil
}

// HealthCheck verifies the persistence layer is operational
func (r *RedisPersistence) HealthCheck() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}

	// Verify schema version exists
	schemaKey := r.prefixKey(keySchemaVersion)
	_, err := r.client.Get(ctx, schemaKey).Result()
	if err == redis.Nil {
		return fmt.Errorf("schema version not found - database may not be properly initialized")
	}
	if err != nil {
		return fmt.Errorf("failed to verify schema version: %w", err)
	}

	return nil
}
