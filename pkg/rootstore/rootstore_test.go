package rootstore

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/papilo-cloud/merkle-tree-airdrop/pkg/logger"
	"github.com/papilo-cloud/merkle-tree-airdrop/pkg/merkle"
	"github.com/papilo-cloud/merkle-tree-airdrop/pkg/util"
)

func newTestStore(t *testing.T, updater common.Address) *Store {
	t.Helper()

	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: true})
	require.NoError(t, err)
	return NewStore(updater, l)
}

func digestOf(s string) merkle.Digest {
	return merkle.HashLeaf([]byte(s))
}

func TestStore_FirstVersionBecomesActive(t *testing.T) {
	s := newTestStore(t, common.Address{})

	err := s.AddVersion(&RootVersion{CampaignID: "c-1", Version: 1, Root: digestOf("v1")})
	require.NoError(t, err)

	root, version, err := s.GetActiveRoot("c-1")
	require.NoError(t, err)
	assert.Equal(t, digestOf("v1"), root)
	assert.Equal(t, int64(1), version)
	assert.True(t, s.GetActiveVersion("c-1").IsActive)
}

func TestStore_NoActiveRoot(t *testing.T) {
	s := newTestStore(t, common.Address{})

	_, _, err := s.GetActiveRoot("missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoActiveRoot)
}

func TestStore_VersionsMustIncrease(t *testing.T) {
	s := newTestStore(t, common.Address{})

	require.NoError(t, s.AddVersion(&RootVersion{CampaignID: "c-1", Version: 2, Root: digestOf("v2")}))

	err := s.AddVersion(&RootVersion{CampaignID: "c-1", Version: 2, Root: digestOf("dup")})
	require.Error(t, err)

	err = s.AddVersion(&RootVersion{CampaignID: "c-1", Version: 1, Root: digestOf("old")})
	require.Error(t, err)

	// Another campaign has its own version sequence
	require.NoError(t, s.AddVersion(&RootVersion{CampaignID: "c-2", Version: 1, Root: digestOf("other")}))
}

func TestStore_ActivateNewVersionDeactivatesOld(t *testing.T) {
	s := newTestStore(t, common.Address{})

	require.NoError(t, s.AddVersion(&RootVersion{CampaignID: "c-1", Version: 1, Root: digestOf("v1")}))
	first := s.GetActiveVersion("c-1")

	require.NoError(t, s.AddVersion(&RootVersion{CampaignID: "c-1", Version: 2, Root: digestOf("v2"), IsActive: true}))

	root, version, err := s.GetActiveRoot("c-1")
	require.NoError(t, err)
	assert.Equal(t, digestOf("v2"), root)
	assert.Equal(t, int64(2), version)
	assert.False(t, first.IsActive)
}

func TestStore_StagedRotation(t *testing.T) {
	s := newTestStore(t, common.Address{})

	require.NoError(t, s.AddVersion(&RootVersion{CampaignID: "c-1", Version: 1, Root: digestOf("v1")}))
	require.NoError(t, s.SetPendingVersion(&RootVersion{CampaignID: "c-1", Version: 2, Root: digestOf("v2")}))

	// Active root unchanged while staged
	root, _, err := s.GetActiveRoot("c-1")
	require.NoError(t, err)
	assert.Equal(t, digestOf("v1"), root)
	require.NotNil(t, s.GetPendingVersion("c-1"))

	activated, err := s.ActivatePendingVersion("c-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), activated.Version)
	assert.Nil(t, s.GetPendingVersion("c-1"))

	root, version, err := s.GetActiveRoot("c-1")
	require.NoError(t, err)
	assert.Equal(t, digestOf("v2"), root)
	assert.Equal(t, int64(2), version)

	// Activating again fails: nothing staged
	_, err = s.ActivatePendingVersion("c-1")
	require.Error(t, err)
}

func TestStore_ClearPendingVersion(t *testing.T) {
	s := newTestStore(t, common.Address{})

	require.NoError(t, s.SetPendingVersion(&RootVersion{CampaignID: "c-1", Version: 1, Root: digestOf("v1")}))
	s.ClearPendingVersion("c-1")
	assert.Nil(t, s.GetPendingVersion("c-1"))
}

func TestStore_GetVersionAt(t *testing.T) {
	s := newTestStore(t, common.Address{})

	require.NoError(t, s.AddVersion(&RootVersion{CampaignID: "c-1", Version: 1, Root: digestOf("v1"), ActivatedAt: 100}))
	require.NoError(t, s.AddVersion(&RootVersion{CampaignID: "c-1", Version: 2, Root: digestOf("v2"), ActivatedAt: 200, IsActive: true}))

	assert.Equal(t, int64(1), s.GetVersionAt("c-1", 150).Version)
	assert.Equal(t, int64(2), s.GetVersionAt("c-1", 250).Version)
	// Before any activation, fall back to the active version
	assert.Equal(t, int64(2), s.GetVersionAt("c-1", 50).Version)
}

func TestStore_SignatureGate(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	updater := crypto.PubkeyToAddress(key.PublicKey)

	s := newTestStore(t, updater)

	root := digestOf("signed")
	digest := crypto.Keccak256(util.PackRootUpdate("c-1", 1, root))
	sig, err := crypto.Sign(digest, key)
	require.NoError(t, err)

	t.Run("valid signature activates", func(t *testing.T) {
		rv, err := s.ApplySignedUpdate("c-1", 1, root, sig, true)
		require.NoError(t, err)
		assert.True(t, rv.IsActive)

		got, _, err := s.GetActiveRoot("c-1")
		require.NoError(t, err)
		assert.Equal(t, root, got)
	})

	t.Run("ethereum v offset accepted", func(t *testing.T) {
		root2 := digestOf("signed-2")
		digest2 := crypto.Keccak256(util.PackRootUpdate("c-1", 2, root2))
		sig2, err := crypto.Sign(digest2, key)
		require.NoError(t, err)
		sig2[64] += 27

		_, err = s.ApplySignedUpdate("c-1", 2, root2, sig2, true)
		require.NoError(t, err)
	})

	t.Run("wrong signer rejected", func(t *testing.T) {
		otherKey, err := crypto.GenerateKey()
		require.NoError(t, err)

		root3 := digestOf("forged")
		digest3 := crypto.Keccak256(util.PackRootUpdate("c-1", 3, root3))
		badSig, err := crypto.Sign(digest3, otherKey)
		require.NoError(t, err)

		_, err = s.ApplySignedUpdate("c-1", 3, root3, badSig, true)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrUnauthorizedUpdater)

		// No state change on rejection
		_, version, err := s.GetActiveRoot("c-1")
		require.NoError(t, err)
		assert.Equal(t, int64(2), version)
	})

	t.Run("tampered payload rejected", func(t *testing.T) {
		root4 := digestOf("tampered")
		digest4 := crypto.Keccak256(util.PackRootUpdate("c-1", 4, root4))
		sig4, err := crypto.Sign(digest4, key)
		require.NoError(t, err)

		otherRoot := digestOf("not-what-was-signed")
		_, err = s.ApplySignedUpdate("c-1", 4, otherRoot, sig4, true)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrUnauthorizedUpdater)
	})

	t.Run("short signature rejected", func(t *testing.T) {
		_, err := s.ApplySignedUpdate("c-1", 5, digestOf("short"), []byte{1, 2, 3}, true)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrUnauthorizedUpdater)
	})
}

func TestStore_OpenGateWithoutUpdater(t *testing.T) {
	s := newTestStore(t, common.Address{})

	// Zero updater address means unauthenticated updates are allowed
	_, err := s.ApplySignedUpdate("c-1", 1, digestOf("open"), nil, true)
	require.NoError(t, err)
}

func TestStore_SignedStagedUpdate(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	s := newTestStore(t, crypto.PubkeyToAddress(key.PublicKey))

	require.NoError(t, s.AddVersion(&RootVersion{CampaignID: "c-1", Version: 1, Root: digestOf("v1")}))

	root := digestOf("staged")
	digest := crypto.Keccak256(util.PackRootUpdate("c-1", 2, root))
	sig, err := crypto.Sign(digest, key)
	require.NoError(t, err)

	rv, err := s.ApplySignedUpdate("c-1", 2, root, sig, false)
	require.NoError(t, err)
	assert.False(t, rv.IsActive)

	// Still on v1 until activation
	_, version, err := s.GetActiveRoot("c-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)

	_, err = s.ActivatePendingVersion("c-1")
	require.NoError(t, err)

	_, version, err = s.GetActiveRoot("c-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), version)
}
