package merkle

import "fmt"

// VerifyMultiProof reconstructs the root from several leaves and one shared
// proof, then reports whether it matches the expected root. The layout
// follows the OpenZeppelin processMultiProof encoding: every flag describes
// one pair hash, where the first operand is the next unconsumed leaf or
// previously computed hash, and the second is another leaf/computed hash
// when the flag is true or the next proof element when it is false. Leaves
// must be ordered as the proof generator emitted them.
//
// A structurally malformed proof returns ErrInvalidMultiProof; the boolean
// result is meaningful only when the error is nil. The tree must have been
// built with unordered pair hashing.
func (v *Verifier) VerifyMultiProof(mp *MultiProof, root Digest, leaves []Digest) (bool, error) {
	totalHashes := len(mp.Flags)

	if len(leaves)+len(mp.Proof) == 0 {
		return false, fmt.Errorf("%w: no leaves and no proof elements", ErrInvalidMultiProof)
	}
	if len(leaves)+len(mp.Proof) != totalHashes+1 {
		return false, fmt.Errorf("%w: %d leaves and %d proof elements need %d flags, got %d",
			ErrInvalidMultiProof, len(leaves), len(mp.Proof), len(leaves)+len(mp.Proof)-1, totalHashes)
	}

	// No pair hashes means a single element tree: the lone leaf or the lone
	// proof element must itself be the root.
	if totalHashes == 0 {
		if len(leaves) == 1 {
			return leaves[0] == root, nil
		}
		return mp.Proof[0] == root, nil
	}

	hashes := make([]Digest, totalHashes)
	var leafPos, hashPos, proofPos int

	for i := 0; i < totalHashes; i++ {
		var a Digest
		if leafPos < len(leaves) {
			a = leaves[leafPos]
			leafPos++
		} else {
			if hashPos >= i {
				return false, fmt.Errorf("%w: flag %d consumes a hash that has not been computed", ErrInvalidMultiProof, i)
			}
			a = hashes[hashPos]
			hashPos++
		}

		var b Digest
		if mp.Flags[i] {
			if leafPos < len(leaves) {
				b = leaves[leafPos]
				leafPos++
			} else {
				if hashPos >= i {
					return false, fmt.Errorf("%w: flag %d consumes a hash that has not been computed", ErrInvalidMultiProof, i)
				}
				b = hashes[hashPos]
				hashPos++
			}
		} else {
			if proofPos >= len(mp.Proof) {
				return false, fmt.Errorf("%w: flag %d consumes a proof element past the end", ErrInvalidMultiProof, i)
			}
			b = mp.Proof[proofPos]
			proofPos++
		}

		hashes[i] = v.CombineUnordered(a, b)
	}

	if proofPos != len(mp.Proof) {
		return false, fmt.Errorf("%w: %d proof elements left unconsumed", ErrInvalidMultiProof, len(mp.Proof)-proofPos)
	}

	return hashes[totalHashes-1] == root, nil
}

// VerifyMultiProof checks a batch membership proof under the default
// keccak256 scheme.
func VerifyMultiProof(mp *MultiProof, root Digest, leaves []Digest) (bool, error) {
	return defaultVerifier.VerifyMultiProof(mp, root, leaves)
}
