package badger

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/papilo-cloud/merkle-tree-airdrop/pkg/logger"
	"github.com/papilo-cloud/merkle-tree-airdrop/pkg/merkle"
	"github.com/papilo-cloud/merkle-tree-airdrop/pkg/persistence"
	"github.com/papilo-cloud/merkle-tree-airdrop/pkg/types"
)

func newTestPersistence(t *testing.T) *BadgerPersistence {
	t.Helper()

	tmpDir := t.TempDir()
	testLogger, _ := logger.NewLogger(&logger.LoggerConfig{Debug: false})

	bp, err := NewBadgerPersistence(tmpDir, testLogger)
	require.NoError(t, err)
	return bp
}

func sampleCampaign(id string, createdAt int64) *persistence.CampaignRecord {
	return &persistence.CampaignRecord{
		ID:             id,
		Name:           "campaign " + id,
		HashScheme:     "keccak256",
		Mode:           "sorted",
		RecipientCount: 1,
		TotalAmount:    "1000",
		Root:           merkle.HashLeaf([]byte(id)),
		CreatedAt:      createdAt,
		Recipients: []types.RecipientEntry{
			{Index: 0, Account: "0x1111111111111111111111111111111111111111", Amount: "1000"},
		},
	}
}

func TestBadgerPersistence_SaveAndGetCampaign(t *testing.T) {
	bp := newTestPersistence(t)
	defer func() { _ = bp.Close() }()

	campaign := sampleCampaign("c-1", 100)

	err := bp.SaveCampaign(campaign)
	require.NoError(t, err)

	loaded, err := bp.GetCampaign("c-1")
	require.NoError(t, err)
	require.NotNil(t, loaded)

	assert.Equal(t, campaign.ID, loaded.ID)
	assert.Equal(t, campaign.Root, loaded.Root)
	assert.Equal(t, campaign.Recipients, loaded.Recipients)
}

func TestBadgerPersistence_GetCampaign_NotFound(t *testing.T) {
	bp := newTestPersistence(t)
	defer func() { _ = bp.Close() }()

	loaded, err := bp.GetCampaign("missing")
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestBadgerPersistence_SaveCampaign_Nil(t *testing.T) {
	bp := newTestPersistence(t)
	defer func() { _ = bp.Close() }()

	err := bp.SaveCampaign(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nil CampaignRecord")
}

func TestBadgerPersistence_ListCampaigns(t *testing.T) {
	bp := newTestPersistence(t)
	defer func() { _ = bp.Close() }()

	require.NoError(t, bp.SaveCampaign(sampleCampaign("c-b", 300)))
	require.NoError(t, bp.SaveCampaign(sampleCampaign("c-a", 100)))

	campaigns, err := bp.ListCampaigns()
	require.NoError(t, err)
	require.Len(t, campaigns, 2)
	assert.Equal(t, "c-a", campaigns[0].ID)
	assert.Equal(t, "c-b", campaigns[1].ID)
}

func TestBadgerPersistence_ClaimsSortedByIndex(t *testing.T) {
	bp := newTestPersistence(t)
	defer func() { _ = bp.Close() }()

	// Indices chosen to break lexicographic ordering without zero padding
	for _, idx := range []uint64{100, 2, 30} {
		require.NoError(t, bp.SaveClaim(&persistence.ClaimRecord{
			CampaignID: "c-1",
			Index:      idx,
			Amount:     "1",
		}))
	}
	require.NoError(t, bp.SaveClaim(&persistence.ClaimRecord{CampaignID: "c-2", Index: 1}))

	claims, err := bp.ListClaims("c-1")
	require.NoError(t, err)
	require.Len(t, claims, 3)
	assert.Equal(t, uint64(2), claims[0].Index)
	assert.Equal(t, uint64(30), claims[1].Index)
	assert.Equal(t, uint64(100), claims[2].Index)

	loaded, err := bp.GetClaim("c-1", 30)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, uint64(30), loaded.Index)
}

func TestBadgerPersistence_RootVersions(t *testing.T) {
	bp := newTestPersistence(t)
	defer func() { _ = bp.Close() }()

	for v := int64(1); v <= 3; v++ {
		require.NoError(t, bp.SaveRootVersion(&persistence.RootVersionRecord{
			CampaignID: "c-1",
			Version:    v,
			Root:       merkle.HashLeaf([]byte{byte(v)}),
			IsActive:   v == 3,
		}))
	}

	loaded, err := bp.GetRootVersion("c-1", 2)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, int64(2), loaded.Version)

	versions, err := bp.ListRootVersions("c-1")
	require.NoError(t, err)
	require.Len(t, versions, 3)
	assert.Equal(t, int64(1), versions[0].Version)
	assert.Equal(t, int64(3), versions[2].Version)
}

func TestBadgerPersistence_ActiveRootVersion(t *testing.T) {
	bp := newTestPersistence(t)
	defer func() { _ = bp.Close() }()

	v, err := bp.GetActiveRootVersion("c-1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), v)

	require.NoError(t, bp.SetActiveRootVersion("c-1", 5))

	v, err = bp.GetActiveRootVersion("c-1")
	require.NoError(t, err)
	assert.Equal(t, int64(5), v)
}

func TestBadgerPersistence_ClaimBitmap(t *testing.T) {
	bp := newTestPersistence(t)
	defer func() { _ = bp.Close() }()

	data, err := bp.GetClaimBitmap("c-1")
	require.NoError(t, err)
	assert.Nil(t, data)

	snapshot := []byte{0xAA, 0x55, 0x01}
	require.NoError(t, bp.SaveClaimBitmap("c-1", snapshot))

	loaded, err := bp.GetClaimBitmap("c-1")
	require.NoError(t, err)
	assert.Equal(t, snapshot, loaded)
}

func TestBadgerPersistence_SurvivesReopen(t *testing.T) {
	tmpDir := t.TempDir()
	testLogger, _ := logger.NewLogger(&logger.LoggerConfig{Debug: false})

	bp, err := NewBadgerPersistence(tmpDir, testLogger)
	require.NoError(t, err)

	require.NoError(t, bp.SaveCampaign(sampleCampaign("c-1", 100)))
	require.NoError(t, bp.SetActiveRootVersion("c-1", 2))
	require.NoError(t, bp.SaveClaimBitmap("c-1", []byte{0x03}))
	require.NoError(t, bp.Close())

	// Reopen the same directory
	bp2, err := NewBadgerPersistence(tmpDir, testLogger)
	require.NoError(t, err)
	defer func() { _ = bp2.Close() }()

	loaded, err := bp2.GetCampaign("c-1")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "c-1", loaded.ID)

	v, err := bp2.GetActiveRootVersion("c-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), v)

	bitmap, err := bp2.GetClaimBitmap("c-1")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x03}, bitmap)
}

func TestBadgerPersistence_OperationsAfterClose(t *testing.T) {
	bp := newTestPersistence(t)
	require.NoError(t, bp.Close())

	err := bp.SaveCampaign(sampleCampaign("c-1", 1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "closed")

	err = bp.HealthCheck()
	require.Error(t, err)

	// Close is idempotent
	require.NoError(t, bp.Close())
}

func TestBadgerPersistence_HealthCheck(t *testing.T) {
	bp := newTestPersistence(t)
	defer func() { _ = bp.Close() }()

	require.NoError(t, bp.HealthCheck())
}

func TestBadgerPersistence_ConcurrentAccess(t *testing.T) {
	bp := newTestPersistence(t)
	defer func() { _ = bp.Close() }()

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				idx := uint64(n*10 + j)
				_ = bp.SaveClaim(&persistence.ClaimRecord{
					CampaignID: "c-1",
					Index:      idx,
					Amount:     "1",
				})
				_, _ = bp.GetClaim("c-1", idx)
			}
		}(i)
	}
	wg.Wait()

	claims, err := bp.ListClaims("c-1")
	require.NoError(t, err)
	assert.Len(t, claims, 50)
}
