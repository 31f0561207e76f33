package merkle

import "bytes"

// Verifier checks merkle membership proofs under a single hash scheme.
// The zero value is not usable; construct with NewVerifier.
type Verifier struct {
	hasher Hasher
}

// NewVerifier returns a verifier bound to the given hash scheme.
func NewVerifier(hasher Hasher) *Verifier {
	return &Verifier{hasher: hasher}
}

// defaultVerifier backs the package-level functions. Keccak256 matches the
// hashing used by Solidity verifier contracts.
var defaultVerifier = NewVerifier(Keccak256Hasher{})

// Scheme returns the name of the verifier's hash scheme.
func (v *Verifier) Scheme() string {
	return v.hasher.Name()
}

// HashLeaf hashes application data into a leaf digest.
func (v *Verifier) HashLeaf(data []byte) Digest {
	return v.hasher.HashLeaf(data)
}

// Combine hashes two child digests into their parent, preserving operand
// order. Trees built with Combine serve index-carrying proofs.
func (v *Verifier) Combine(a, b Digest) Digest {
	return v.hasher.Combine(a, b)
}

// CombineUnordered hashes two child digests into their parent with the
// numerically smaller digest as the left operand, so the result is the same
// whichever way the pair is presented. Trees built with CombineUnordered
// serve proofs that carry no position information.
func (v *Verifier) CombineUnordered(a, b Digest) Digest {
	if bytes.Compare(a[:], b[:]) > 0 {
		a, b = b, a
	}
	return v.hasher.Combine(a, b)
}

// Verify recomputes the root by folding the leaf through the proof with
// unordered pair hashing and reports whether it matches the expected root.
// An empty proof verifies exactly when the leaf itself is the root.
func (v *Verifier) Verify(proof []Digest, root Digest, leaf Digest) bool {
	currentHash := leaf

	for _, siblingHash := range proof {
		currentHash = v.CombineUnordered(currentHash, siblingHash)
	}

	return currentHash == root
}

// VerifyWithIndex recomputes the root by folding the leaf through the proof
// using the leaf position to order each pair: an even index places the
// running hash on the left, an odd index on the right, and the index is
// halved after every level. The fold must consume the index completely, so
// a proof shorter than the leaf's depth cannot verify.
func (v *Verifier) VerifyWithIndex(proof []Digest, root Digest, leaf Digest, index uint64) bool {
	currentHash := leaf

	for _, siblingHash := range proof {
		if index%2 == 0 {
			// Current node is on the left, sibling is on the right
			currentHash = v.Combine(currentHash, siblingHash)
		} else {
			// Current node is on the right, sibling is on the left
			currentHash = v.Combine(siblingHash, currentHash)
		}

		index = index / 2
	}

	if index != 0 {
		return false
	}

	return currentHash == root
}

// HashLeaf hashes application data into a leaf digest using the default
// keccak256 scheme.
func HashLeaf(data []byte) Digest {
	return defaultVerifier.HashLeaf(data)
}

// Combine hashes two child digests in order using the default keccak256
// scheme.
func Combine(a, b Digest) Digest {
	return defaultVerifier.Combine(a, b)
}

// CombineUnordered hashes two child digests smaller-first using the default
// keccak256 scheme.
func CombineUnordered(a, b Digest) Digest {
	return defaultVerifier.CombineUnordered(a, b)
}

// Verify checks an unordered membership proof under the default keccak256
// scheme.
func Verify(proof []Digest, root Digest, leaf Digest) bool {
	return defaultVerifier.Verify(proof, root, leaf)
}

// VerifyWithIndex checks an index-carrying membership proof under the
// default keccak256 scheme.
func VerifyWithIndex(proof []Digest, root Digest, leaf Digest, index uint64) bool {
	return defaultVerifier.VerifyWithIndex(proof, root, leaf, index)
}
