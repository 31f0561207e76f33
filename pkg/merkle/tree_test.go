package merkle

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestNewTree tests ordered tree construction with various leaf counts
func TestNewTree(t *testing.T) {
	testCases := []struct {
		name      string
		numLeaves int
		depth     int
	}{
		{"Single leaf", 1, 1},
		{"Two leaves", 2, 2},
		{"Three leaves", 3, 3},
		{"Four leaves (power of 2)", 4, 3},
		{"Seven leaves", 7, 4},
		{"Eight leaves (power of 2)", 8, 4},
		{"Hundred leaves", 100, 8},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			leaves := hashLeaves(makeLeafData(tc.numLeaves))
			tree, err := NewTree(Keccak256Hasher{}, leaves)
			require.NoError(t, err)
			require.NotNil(t, tree)

			// Verify tree structure
			require.Equal(t, tc.numLeaves, len(tree.Leaves))
			require.Equal(t, tc.depth, tree.Depth())
			require.NotEqual(t, Digest{}, tree.Root)
			require.False(t, tree.Sorted())
			require.Equal(t, SchemeKeccak256, tree.Scheme())
		})
	}
}

// TestNewTreeEmpty tests that building a tree from no leaves fails
func TestNewTreeEmpty(t *testing.T) {
	tree, err := NewTree(Keccak256Hasher{}, nil)
	require.Error(t, err)
	require.Nil(t, tree)
	require.Contains(t, err.Error(), "empty")

	tree, err = NewSortedTree(Keccak256Hasher{}, []Digest{})
	require.Error(t, err)
	require.Nil(t, tree)
}

// TestSortedTreeRoot tests that the sorted build hashes each pair smaller-first
func TestSortedTreeRoot(t *testing.T) {
	// Choose leaves so the first pair arrives in descending order
	a := Digest{0xFF, 0x01}
	b := Digest{0x01, 0x02}
	c := Digest{0x7F, 0x03}
	d := Digest{0x03, 0x04}

	sorted, err := NewSortedTree(Keccak256Hasher{}, []Digest{a, b, c, d})
	require.NoError(t, err)

	ordered, err := NewTree(Keccak256Hasher{}, []Digest{a, b, c, d})
	require.NoError(t, err)

	// Pair order differs, so the roots must differ
	require.NotEqual(t, ordered.Root, sorted.Root)

	// The sorted root is reproducible by hand
	left := CombineUnordered(a, b)
	right := CombineUnordered(c, d)
	require.Equal(t, CombineUnordered(left, right), sorted.Root)

	// And the ordered root preserves presentation order
	require.Equal(t, Combine(Combine(a, b), Combine(c, d)), ordered.Root)
}

// TestTreeOddDuplication tests that a trailing node is paired with itself
func TestTreeOddDuplication(t *testing.T) {
	leaves := hashLeaves(makeLeafData(3))

	t.Run("Ordered", func(t *testing.T) {
		tree, err := NewTree(Keccak256Hasher{}, leaves)
		require.NoError(t, err)

		expected := Combine(Combine(leaves[0], leaves[1]), Combine(leaves[2], leaves[2]))
		require.Equal(t, expected, tree.Root)

		// The duplicated leaf still proves membership
		proof, err := tree.Prove(2)
		require.NoError(t, err)
		require.Equal(t, leaves[2], proof[0])
		require.True(t, VerifyWithIndex(proof, tree.Root, leaves[2], 2))
	})

	t.Run("Sorted", func(t *testing.T) {
		tree, err := NewSortedTree(Keccak256Hasher{}, leaves)
		require.NoError(t, err)

		expected := CombineUnordered(CombineUnordered(leaves[0], leaves[1]), CombineUnordered(leaves[2], leaves[2]))
		require.Equal(t, expected, tree.Root)

		proof, err := tree.Prove(2)
		require.NoError(t, err)
		require.True(t, Verify(proof, tree.Root, leaves[2]))
	})
}

// TestProveInvalidIndex tests proof generation with out of range indices
func TestProveInvalidIndex(t *testing.T) {
	leaves := hashLeaves(makeLeafData(4))
	tree, err := NewTree(Keccak256Hasher{}, leaves)
	require.NoError(t, err)

	t.Run("Negative index", func(t *testing.T) {
		proof, err := tree.Prove(-1)
		require.Error(t, err)
		require.Nil(t, proof)
	})

	t.Run("Index out of bounds", func(t *testing.T) {
		proof, err := tree.Prove(10)
		require.Error(t, err)
		require.Nil(t, proof)
	})
}

// TestProveMultiValidation tests multiproof generation input checks
func TestProveMultiValidation(t *testing.T) {
	leaves := hashLeaves(makeLeafData(8))
	tree, err := NewSortedTree(Keccak256Hasher{}, leaves)
	require.NoError(t, err)

	t.Run("Empty indices", func(t *testing.T) {
		mp, _, err := tree.ProveMulti(nil)
		require.Error(t, err)
		require.Nil(t, mp)
	})

	t.Run("Index out of bounds", func(t *testing.T) {
		mp, _, err := tree.ProveMulti([]int{0, 9})
		require.Error(t, err)
		require.Nil(t, mp)
	})

	t.Run("Negative index", func(t *testing.T) {
		mp, _, err := tree.ProveMulti([]int{-1, 2})
		require.Error(t, err)
		require.Nil(t, mp)
	})

	t.Run("Descending indices", func(t *testing.T) {
		mp, _, err := tree.ProveMulti([]int{5, 2})
		require.Error(t, err)
		require.Nil(t, mp)
		require.Contains(t, err.Error(), "ascending")
	})

	t.Run("Duplicate indices", func(t *testing.T) {
		mp, _, err := tree.ProveMulti([]int{2, 2, 5})
		require.Error(t, err)
		require.Nil(t, mp)
	})

	t.Run("Ordered tree rejected", func(t *testing.T) {
		orderedTree, err := NewTree(Keccak256Hasher{}, leaves)
		require.NoError(t, err)

		mp, _, err := orderedTree.ProveMulti([]int{0, 1})
		require.Error(t, err)
		require.Nil(t, mp)
		require.Contains(t, err.Error(), "sorted")
	})
}

// TestTreeDeterminism tests that the same leaves always produce the same tree
func TestTreeDeterminism(t *testing.T) {
	leaves := hashLeaves(makeLeafData(10))

	tree1, err := NewSortedTree(Keccak256Hasher{}, leaves)
	require.NoError(t, err)

	tree2, err := NewSortedTree(Keccak256Hasher{}, leaves)
	require.NoError(t, err)

	require.Equal(t, tree1.Root, tree2.Root)
	require.Equal(t, tree1.Leaves, tree2.Leaves)
}

// TestTreeProofLength tests that proof length stays logarithmic in the leaf count
func TestTreeProofLength(t *testing.T) {
	testCases := []struct {
		numLeaves   int
		proofLength int
	}{
		{1, 0},
		{2, 1},
		{4, 2},
		{8, 3},
		{16, 4},
		{100, 7},
	}

	for _, tc := range testCases {
		t.Run(fmt.Sprintf("%d_leaves", tc.numLeaves), func(t *testing.T) {
			leaves := hashLeaves(makeLeafData(tc.numLeaves))
			tree, err := NewSortedTree(Keccak256Hasher{}, leaves)
			require.NoError(t, err)

			proof, err := tree.Prove(0)
			require.NoError(t, err)
			require.Equal(t, tc.proofLength, len(proof))
		})
	}
}

// TestTreeAllSchemes tests both build modes end to end under every registered scheme
func TestTreeAllSchemes(t *testing.T) {
	for _, name := range SchemeNames() {
		t.Run(name, func(t *testing.T) {
			hasher, err := GetHasher(name)
			require.NoError(t, err)
			verifier := NewVerifier(hasher)

			data := makeLeafData(7)
			leaves := make([]Digest, len(data))
			for i, d := range data {
				leaves[i] = verifier.HashLeaf(d)
			}

			sorted, err := NewSortedTree(hasher, leaves)
			require.NoError(t, err)

			ordered, err := NewTree(hasher, leaves)
			require.NoError(t, err)

			for i := range leaves {
				sortedProof, err := sorted.Prove(i)
				require.NoError(t, err)
				require.True(t, verifier.Verify(sortedProof, sorted.Root, leaves[i]))

				orderedProof, err := ordered.Prove(i)
				require.NoError(t, err)
				require.True(t, verifier.VerifyWithIndex(orderedProof, ordered.Root, leaves[i], uint64(i)))
			}
		})
	}
}
