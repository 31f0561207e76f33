package merkle

import "fmt"

// Tree is an in-memory binary merkle tree over pre-hashed leaves.
//
// A tree is built in one of two pair orders. NewTree hashes each pair
// left-to-right, and its proofs carry the leaf index so VerifyWithIndex can
// replay the operand order. NewSortedTree hashes each pair smaller-first,
// so its proofs need no position information and verify with Verify and
// VerifyMultiProof.
type Tree struct {
	Leaves []Digest
	Root   Digest

	levels   [][]Digest
	verifier *Verifier
	sorted   bool
}

// NewTree builds an ordered tree from pre-hashed leaves.
// If there's an odd number of nodes at any level, the last node is duplicated.
func NewTree(hasher Hasher, leaves []Digest) (*Tree, error) {
	return buildTree(hasher, leaves, false)
}

// NewSortedTree builds a tree whose pairs are hashed smaller-first from
// pre-hashed leaves.
// If there's an odd number of nodes at any level, the last node is duplicated.
func NewSortedTree(hasher Hasher, leaves []Digest) (*Tree, error) {
	return buildTree(hasher, leaves, true)
}

func buildTree(hasher Hasher, leaves []Digest, sorted bool) (*Tree, error) {
	if len(leaves) == 0 {
		return nil, fmt.Errorf("cannot build merkle tree from empty leaf list")
	}

	verifier := NewVerifier(hasher)
	combine := verifier.Combine
	if sorted {
		combine = verifier.CombineUnordered
	}

	// Build tree levels bottom-up
	levels := make([][]Digest, 0)
	levels = append(levels, leaves)

	currentLevel := leaves
	for len(currentLevel) > 1 {
		nextLevel := make([]Digest, 0, (len(currentLevel)+1)/2)

		for i := 0; i < len(currentLevel); i += 2 {
			left := currentLevel[i]

			// If odd number of nodes, duplicate the last one
			right := left
			if i+1 < len(currentLevel) {
				right = currentLevel[i+1]
			}

			nextLevel = append(nextLevel, combine(left, right))
		}

		levels = append(levels, nextLevel)
		currentLevel = nextLevel
	}

	return &Tree{
		Leaves:   leaves,
		Root:     currentLevel[0],
		levels:   levels,
		verifier: verifier,
		sorted:   sorted,
	}, nil
}

// Sorted reports whether the tree was built with smaller-first pair hashing.
func (t *Tree) Sorted() bool {
	return t.sorted
}

// Scheme returns the name of the tree's hash scheme.
func (t *Tree) Scheme() string {
	return t.verifier.Scheme()
}

// Depth returns the number of levels from leaves to root.
func (t *Tree) Depth() int {
	return len(t.levels)
}

// Prove returns the sibling hashes along the path from the leaf at the
// given index to the root.
func (t *Tree) Prove(leafIndex int) ([]Digest, error) {
	if leafIndex < 0 || leafIndex >= len(t.Leaves) {
		return nil, fmt.Errorf("leaf index %d out of bounds (tree has %d leaves)", leafIndex, len(t.Leaves))
	}

	proof := make([]Digest, 0, len(t.levels)-1)
	index := leafIndex

	for level := 0; level < len(t.levels)-1; level++ {
		currentLevel := t.levels[level]

		// Find sibling index
		var siblingIndex int
		if index%2 == 0 {
			siblingIndex = index + 1
		} else {
			siblingIndex = index - 1
		}

		// Handle case where this is the last node (odd number of nodes)
		if siblingIndex >= len(currentLevel) {
			siblingIndex = index
		}

		proof = append(proof, currentLevel[siblingIndex])

		// Move to parent index in next level
		index = index / 2
	}

	return proof, nil
}

// ProveMulti returns one combined proof covering the leaves at the given
// indices, in the flag encoding consumed by VerifyMultiProof, together with
// the leaf digests in the order the verifier must receive them. Indices
// must be strictly ascending, and the tree must have been built with
// NewSortedTree.
func (t *Tree) ProveMulti(leafIndices []int) (*MultiProof, []Digest, error) {
	if !t.sorted {
		return nil, nil, fmt.Errorf("multiproof generation requires a sorted tree")
	}
	if len(leafIndices) == 0 {
		return nil, nil, fmt.Errorf("cannot generate multiproof from empty index list")
	}

	leaves := make([]Digest, 0, len(leafIndices))
	for i, leafIndex := range leafIndices {
		if leafIndex < 0 || leafIndex >= len(t.Leaves) {
			return nil, nil, fmt.Errorf("leaf index %d out of bounds (tree has %d leaves)", leafIndex, len(t.Leaves))
		}
		if i > 0 && leafIndex <= leafIndices[i-1] {
			return nil, nil, fmt.Errorf("leaf indices must be strictly ascending")
		}
		leaves = append(leaves, t.Leaves[leafIndex])
	}

	proof := make([]Digest, 0)
	flags := make([]bool, 0)

	// Walk levels bottom-up. At each level the known indices are paired:
	// when both children of a parent are known the pair hash is described
	// by a true flag, otherwise the missing sibling joins the proof and the
	// flag is false.
	indices := append([]int(nil), leafIndices...)
	for level := 0; level < len(t.levels)-1; level++ {
		currentLevel := t.levels[level]
		nextIndices := make([]int, 0, len(indices))

		for i := 0; i < len(indices); i++ {
			index := indices[i]

			if index%2 == 0 && i+1 < len(indices) && indices[i+1] == index+1 {
				// Sibling is also known, consume both
				flags = append(flags, true)
				i++
			} else {
				flags = append(flags, false)

				var siblingIndex int
				if index%2 == 0 {
					siblingIndex = index + 1
				} else {
					siblingIndex = index - 1
				}

				if siblingIndex >= len(currentLevel) {
					siblingIndex = index
				}

				proof = append(proof, currentLevel[siblingIndex])
			}

			nextIndices = append(nextIndices, index/2)
		}

		indices = nextIndices
	}

	return &MultiProof{Proof: proof, Flags: flags}, leaves, nil
}
