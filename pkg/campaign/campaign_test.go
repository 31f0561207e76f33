package campaign

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/papilo-cloud/merkle-tree-airdrop/pkg/merkle"
	"github.com/papilo-cloud/merkle-tree-airdrop/pkg/types"
)

func testEntries(n int) []types.RecipientEntry {
	entries := make([]types.RecipientEntry, n)
	for i := 0; i < n; i++ {
		entries[i] = types.RecipientEntry{
			Index:   uint64(i),
			Account: fmt.Sprintf("0x%040x", i+1),
			Amount:  fmt.Sprintf("%d", (i+1)*100),
		}
	}
	return entries
}

func TestNew_BuildsVerifiableTree(t *testing.T) {
	c, err := New("spring drop", "", types.TreeModeIndexed, testEntries(7))
	require.NoError(t, err)

	assert.NotEmpty(t, c.ID)
	assert.Equal(t, merkle.SchemeKeccak256, c.HashScheme)
	assert.Equal(t, "2800", c.TotalAmount.String())

	// Every allocation's proof verifies with its index against the root
	for _, r := range c.Recipients {
		proof, err := c.Prove(r.Index)
		require.NoError(t, err)

		leaf, err := c.LeafFor(r.Index, r.Account, r.Amount)
		require.NoError(t, err)

		assert.True(t, c.Verifier().VerifyWithIndex(proof, c.Root(), leaf, r.Index),
			"proof for index %d should verify", r.Index)
	}
}

func TestNew_SortedModeServesMultiProofs(t *testing.T) {
	c, err := New("batch drop", merkle.SchemeKeccak256, types.TreeModeSorted, testEntries(8))
	require.NoError(t, err)

	mp, leaves, err := c.ProveMulti([]uint64{1, 4, 6})
	require.NoError(t, err)

	ok, err := c.Verifier().VerifyMultiProof(mp, c.Root(), leaves)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestNew_IndexedModeRejectsMultiProof(t *testing.T) {
	c, err := New("indexed drop", "", types.TreeModeIndexed, testEntries(4))
	require.NoError(t, err)

	_, _, err = c.ProveMulti([]uint64{0, 2})
	require.Error(t, err)
}

func TestNew_AlternateSchemes(t *testing.T) {
	for _, scheme := range []string{merkle.SchemeSHA3, merkle.SchemeBlake3, merkle.SchemeMiMC} {
		t.Run(scheme, func(t *testing.T) {
			c, err := New("scheme test", scheme, types.TreeModeIndexed, testEntries(3))
			require.NoError(t, err)

			proof, err := c.Prove(1)
			require.NoError(t, err)
			leaf, err := c.Leaf(1)
			require.NoError(t, err)
			assert.True(t, c.Verifier().VerifyWithIndex(proof, c.Root(), leaf, 1))
		})
	}
}

func TestNew_ValidationFailures(t *testing.T) {
	base := testEntries(3)

	t.Run("empty set", func(t *testing.T) {
		_, err := New("empty drop", "", types.TreeModeIndexed, nil)
		require.Error(t, err)
	})

	t.Run("short name", func(t *testing.T) {
		_, err := New("ab", "", types.TreeModeIndexed, base)
		require.Error(t, err)
	})

	t.Run("unknown scheme", func(t *testing.T) {
		_, err := New("bad scheme", "md5", types.TreeModeIndexed, base)
		require.Error(t, err)
	})

	t.Run("bad mode", func(t *testing.T) {
		_, err := New("bad mode", "", types.TreeMode("spiral"), base)
		require.Error(t, err)
	})

	t.Run("non-contiguous indices", func(t *testing.T) {
		entries := testEntries(3)
		entries[2].Index = 5
		_, err := New("gap drop", "", types.TreeModeIndexed, entries)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "contiguous")
	})

	t.Run("invalid address", func(t *testing.T) {
		entries := testEntries(3)
		entries[1].Account = "not-an-address"
		_, err := New("addr drop", "", types.TreeModeIndexed, entries)
		require.Error(t, err)
	})

	t.Run("duplicate account", func(t *testing.T) {
		entries := testEntries(3)
		entries[2].Account = entries[0].Account
		_, err := New("dup drop", "", types.TreeModeIndexed, entries)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "duplicates account")
	})

	t.Run("zero amount", func(t *testing.T) {
		entries := testEntries(3)
		entries[0].Amount = "0"
		_, err := New("zero drop", "", types.TreeModeIndexed, entries)
		require.Error(t, err)
	})

	t.Run("unparseable amount", func(t *testing.T) {
		entries := testEntries(3)
		entries[0].Amount = "1.5e18"
		_, err := New("float drop", "", types.TreeModeIndexed, entries)
		require.Error(t, err)
	})
}

func TestRecordRoundTrip(t *testing.T) {
	c, err := New("persisted drop", "", types.TreeModeSorted, testEntries(5))
	require.NoError(t, err)

	record := c.ToRecord()
	assert.Equal(t, c.ID, record.ID)
	assert.Equal(t, c.Root(), record.Root)
	assert.Len(t, record.Recipients, 5)

	restored, err := FromRecord(record)
	require.NoError(t, err)
	assert.Equal(t, c.Root(), restored.Root())
	assert.Equal(t, c.TotalAmount.String(), restored.TotalAmount.String())

	// The restored campaign serves identical proofs
	orig, err := c.Prove(2)
	require.NoError(t, err)
	rest, err := restored.Prove(2)
	require.NoError(t, err)
	assert.Equal(t, orig, rest)
}

func TestFromRecord_RootMismatch(t *testing.T) {
	c, err := New("tamper drop", "", types.TreeModeIndexed, testEntries(4))
	require.NoError(t, err)

	record := c.ToRecord()
	record.Root[0] ^= 0xFF

	_, err = FromRecord(record)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not match recorded root")
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, 0, r.Count())
	assert.Nil(t, r.Get("missing"))

	c1, err := New("first drop", "", types.TreeModeIndexed, testEntries(2))
	require.NoError(t, err)
	c2, err := New("second drop", "", types.TreeModeIndexed, testEntries(2))
	require.NoError(t, err)

	require.NoError(t, r.Add(c1))
	require.NoError(t, r.Add(c2))
	assert.Equal(t, 2, r.Count())

	// Duplicate registration fails
	require.Error(t, r.Add(c1))

	assert.Equal(t, c1, r.Get(c1.ID))

	listed := r.List()
	require.Len(t, listed, 2)
	assert.Equal(t, c1.ID, listed[0].ID)
	assert.Equal(t, c2.ID, listed[1].ID)
}
