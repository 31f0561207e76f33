package merkle

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestVerifyMultiProofRoundTrip tests batch proofs for assorted subsets across tree sizes
func TestVerifyMultiProofRoundTrip(t *testing.T) {
	testCases := []struct {
		name      string
		numLeaves int
		indices   []int
	}{
		{"Single leaf tree", 1, []int{0}},
		{"Both of two", 2, []int{0, 1}},
		{"First of two", 2, []int{0}},
		{"Middle of three", 3, []int{1}},
		{"Last of three (duplicated sibling)", 3, []int{2}},
		{"Adjacent pair of four", 4, []int{0, 1}},
		{"Split pair of four", 4, []int{0, 2}},
		{"All of four", 4, []int{0, 1, 2, 3}},
		{"Scattered in seven", 7, []int{0, 3, 6}},
		{"Scattered in eight", 8, []int{1, 2, 5}},
		{"All of eight", 8, []int{0, 1, 2, 3, 4, 5, 6, 7}},
		{"Sparse in sixteen", 16, []int{0, 7, 8, 15}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			leaves := hashLeaves(makeLeafData(tc.numLeaves))
			tree, err := NewSortedTree(Keccak256Hasher{}, leaves)
			require.NoError(t, err)

			mp, proofLeaves, err := tree.ProveMulti(tc.indices)
			require.NoError(t, err)
			require.Len(t, proofLeaves, len(tc.indices))

			// The flag count invariant must hold for generated proofs
			require.Equal(t, len(proofLeaves)+len(mp.Proof)-1, len(mp.Flags))

			ok, err := VerifyMultiProof(mp, tree.Root, proofLeaves)
			require.NoError(t, err)
			require.True(t, ok)
		})
	}
}

// TestVerifyMultiProofSubsetAgainstSingleProofs tests that a batch proof over
// {A, C} of [A, B, C, D] reconstructs the same root the single proofs do
func TestVerifyMultiProofSubsetAgainstSingleProofs(t *testing.T) {
	leaves := hashLeaves([][]byte{
		[]byte("A"), []byte("B"), []byte("C"), []byte("D"),
	})
	tree, err := NewSortedTree(Keccak256Hasher{}, leaves)
	require.NoError(t, err)

	// Single proofs for A and C verify against the root
	for _, idx := range []int{0, 2} {
		proof, err := tree.Prove(idx)
		require.NoError(t, err)
		require.True(t, Verify(proof, tree.Root, leaves[idx]))
	}

	// One batch proof covering both must verify against the same root
	mp, proofLeaves, err := tree.ProveMulti([]int{0, 2})
	require.NoError(t, err)
	require.Equal(t, []Digest{leaves[0], leaves[2]}, proofLeaves)

	ok, err := VerifyMultiProof(mp, tree.Root, proofLeaves)
	require.NoError(t, err)
	require.True(t, ok)

	// Two proof elements are needed: the siblings B and D
	require.Len(t, mp.Proof, 2)
	require.Len(t, mp.Flags, 3)
}

// TestVerifyMultiProofLengthInvariant tests that a wrong flag count is a structural error
func TestVerifyMultiProofLengthInvariant(t *testing.T) {
	leaves := hashLeaves(makeLeafData(8))
	tree, err := NewSortedTree(Keccak256Hasher{}, leaves)
	require.NoError(t, err)

	mp, proofLeaves, err := tree.ProveMulti([]int{1, 4, 6})
	require.NoError(t, err)

	t.Run("Missing flag", func(t *testing.T) {
		truncated := &MultiProof{Proof: mp.Proof, Flags: mp.Flags[:len(mp.Flags)-1]}
		ok, err := VerifyMultiProof(truncated, tree.Root, proofLeaves)
		require.ErrorIs(t, err, ErrInvalidMultiProof)
		require.False(t, ok)
	})

	t.Run("Extra flag", func(t *testing.T) {
		extended := &MultiProof{Proof: mp.Proof, Flags: append(append([]bool(nil), mp.Flags...), true)}
		ok, err := VerifyMultiProof(extended, tree.Root, proofLeaves)
		require.ErrorIs(t, err, ErrInvalidMultiProof)
		require.False(t, ok)
	})

	t.Run("Dropped proof element", func(t *testing.T) {
		short := &MultiProof{Proof: mp.Proof[:len(mp.Proof)-1], Flags: mp.Flags}
		ok, err := VerifyMultiProof(short, tree.Root, proofLeaves)
		require.ErrorIs(t, err, ErrInvalidMultiProof)
		require.False(t, ok)
	})

	t.Run("Dropped leaf", func(t *testing.T) {
		ok, err := VerifyMultiProof(mp, tree.Root, proofLeaves[:len(proofLeaves)-1])
		require.ErrorIs(t, err, ErrInvalidMultiProof)
		require.False(t, ok)
	})
}

// TestVerifyMultiProofStructuralErrors tests malformed shapes that satisfy the
// length invariant but cannot be evaluated
func TestVerifyMultiProofStructuralErrors(t *testing.T) {
	t.Run("No leaves and no proof", func(t *testing.T) {
		mp := &MultiProof{}
		ok, err := VerifyMultiProof(mp, randomDigest(), nil)
		require.ErrorIs(t, err, ErrInvalidMultiProof)
		require.False(t, ok)
	})

	t.Run("Flag consumes uncomputed hash", func(t *testing.T) {
		// One leaf and one proof element allow one flag, but a true flag
		// asks for a second stream operand that does not exist yet
		mp := &MultiProof{Proof: []Digest{randomDigest()}, Flags: []bool{true}}
		ok, err := VerifyMultiProof(mp, randomDigest(), []Digest{randomDigest()})
		require.ErrorIs(t, err, ErrInvalidMultiProof)
		require.False(t, ok)
	})

	t.Run("Flag consumes missing proof element", func(t *testing.T) {
		// Two leaves and no proof elements allow one flag, but a false
		// flag asks for a proof element that was never supplied
		mp := &MultiProof{Flags: []bool{false}}
		ok, err := VerifyMultiProof(mp, randomDigest(), []Digest{randomDigest(), randomDigest()})
		require.ErrorIs(t, err, ErrInvalidMultiProof)
		require.False(t, ok)
	})
}

// TestVerifyMultiProofWrongRoot tests that a well-formed proof against the
// wrong root is a clean false, not an error
func TestVerifyMultiProofWrongRoot(t *testing.T) {
	leaves := hashLeaves(makeLeafData(8))
	tree, err := NewSortedTree(Keccak256Hasher{}, leaves)
	require.NoError(t, err)

	mp, proofLeaves, err := tree.ProveMulti([]int{2, 3, 7})
	require.NoError(t, err)

	wrongRoot := tree.Root
	wrongRoot[16] ^= 0x01

	ok, err := VerifyMultiProof(mp, wrongRoot, proofLeaves)
	require.NoError(t, err)
	require.False(t, ok)
}

// TestVerifyMultiProofTampered tests that tampering with any component is a
// clean false while the shape stays well-formed
func TestVerifyMultiProofTampered(t *testing.T) {
	leaves := hashLeaves(makeLeafData(8))
	tree, err := NewSortedTree(Keccak256Hasher{}, leaves)
	require.NoError(t, err)

	mp, proofLeaves, err := tree.ProveMulti([]int{0, 5})
	require.NoError(t, err)

	t.Run("Tampered leaf", func(t *testing.T) {
		tampered := append([]Digest(nil), proofLeaves...)
		tampered[0][0] ^= 0xFF

		ok, err := VerifyMultiProof(mp, tree.Root, tampered)
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("Tampered proof element", func(t *testing.T) {
		tamperedProof := append([]Digest(nil), mp.Proof...)
		tamperedProof[0][0] ^= 0xFF
		tampered := &MultiProof{Proof: tamperedProof, Flags: mp.Flags}

		ok, err := VerifyMultiProof(tampered, tree.Root, proofLeaves)
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("Reordered leaves", func(t *testing.T) {
		swapped := []Digest{proofLeaves[1], proofLeaves[0]}

		ok, err := VerifyMultiProof(mp, tree.Root, swapped)
		require.NoError(t, err)
		require.False(t, ok)
	})
}

// TestVerifyMultiProofSingleElement tests the degenerate shapes with no pair hashes
func TestVerifyMultiProofSingleElement(t *testing.T) {
	leaf := HashLeaf([]byte("sole recipient"))

	t.Run("Lone leaf equals root", func(t *testing.T) {
		mp := &MultiProof{}
		ok, err := VerifyMultiProof(mp, leaf, []Digest{leaf})
		require.NoError(t, err)
		require.True(t, ok)
	})

	t.Run("Lone leaf differs from root", func(t *testing.T) {
		mp := &MultiProof{}
		ok, err := VerifyMultiProof(mp, randomDigest(), []Digest{leaf})
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("No leaves, proof carries the root", func(t *testing.T) {
		root := randomDigest()
		mp := &MultiProof{Proof: []Digest{root}}
		ok, err := VerifyMultiProof(mp, root, nil)
		require.NoError(t, err)
		require.True(t, ok)
	})
}

// TestVerifyMultiProofErrorDistinction tests that structural failure and
// membership failure stay distinguishable to callers
func TestVerifyMultiProofErrorDistinction(t *testing.T) {
	leaves := hashLeaves(makeLeafData(4))
	tree, err := NewSortedTree(Keccak256Hasher{}, leaves)
	require.NoError(t, err)

	mp, proofLeaves, err := tree.ProveMulti([]int{0, 3})
	require.NoError(t, err)

	// Membership failure: false with nil error
	ok, err := VerifyMultiProof(mp, randomDigest(), proofLeaves)
	require.NoError(t, err)
	require.False(t, ok)

	// Structural failure: error that unwraps to the package sentinel
	broken := &MultiProof{Proof: mp.Proof, Flags: mp.Flags[:1]}
	ok, err = VerifyMultiProof(broken, tree.Root, proofLeaves)
	require.False(t, ok)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrInvalidMultiProof))
	require.Contains(t, err.Error(), "invalid multiproof")
}

// TestVerifyMultiProofAcrossSchemes tests batch proofs under every registered scheme
func TestVerifyMultiProofAcrossSchemes(t *testing.T) {
	for _, name := range SchemeNames() {
		t.Run(name, func(t *testing.T) {
			hasher, err := GetHasher(name)
			require.NoError(t, err)
			verifier := NewVerifier(hasher)

			data := makeLeafData(8)
			leaves := make([]Digest, len(data))
			for i, d := range data {
				leaves[i] = verifier.HashLeaf(d)
			}

			tree, err := NewSortedTree(hasher, leaves)
			require.NoError(t, err)

			mp, proofLeaves, err := tree.ProveMulti([]int{1, 2, 6})
			require.NoError(t, err)

			ok, err := verifier.VerifyMultiProof(mp, tree.Root, proofLeaves)
			require.NoError(t, err)
			require.True(t, ok)
		})
	}
}

// TestProveMultiFlagEncoding tests the flag layout for a known small tree
func TestProveMultiFlagEncoding(t *testing.T) {
	leaves := hashLeaves(makeLeafData(4))
	tree, err := NewSortedTree(Keccak256Hasher{}, leaves)
	require.NoError(t, err)

	t.Run("Adjacent pair", func(t *testing.T) {
		// Leaves 0 and 1 pair with each other, then need sibling subtree
		mp, _, err := tree.ProveMulti([]int{0, 1})
		require.NoError(t, err)
		require.Equal(t, []bool{true, false}, mp.Flags)
		require.Len(t, mp.Proof, 1)
	})

	t.Run("Split pair", func(t *testing.T) {
		// Leaves 0 and 2 each need their leaf sibling, then pair together
		mp, _, err := tree.ProveMulti([]int{0, 2})
		require.NoError(t, err)
		require.Equal(t, []bool{false, false, true}, mp.Flags)
		require.Len(t, mp.Proof, 2)
	})

	t.Run("Full tree", func(t *testing.T) {
		mp, _, err := tree.ProveMulti([]int{0, 1, 2, 3})
		require.NoError(t, err)
		require.Equal(t, []bool{true, true, true}, mp.Flags)
		require.Empty(t, mp.Proof)
	})
}

// TestProveMultiLargeSubsets tests batch proofs over larger trees and subset shapes
func TestProveMultiLargeSubsets(t *testing.T) {
	sizes := []int{50, 100, 200}

	for _, size := range sizes {
		t.Run(fmt.Sprintf("Size_%d", size), func(t *testing.T) {
			leaves := hashLeaves(makeLeafData(size))
			tree, err := NewSortedTree(Keccak256Hasher{}, leaves)
			require.NoError(t, err)

			indices := []int{0, size / 4, size / 2, size - 2, size - 1}
			mp, proofLeaves, err := tree.ProveMulti(indices)
			require.NoError(t, err)

			ok, err := VerifyMultiProof(mp, tree.Root, proofLeaves)
			require.NoError(t, err)
			require.True(t, ok)
		})
	}
}
