package merkle

import (
	"errors"
	"reflect"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// DigestLength is the fixed width of every digest in the tree, in bytes.
const DigestLength = 32

// Domain tags prepended to hash inputs. Leaves and internal nodes hash
// under distinct tags so an internal node can never be replayed as a leaf.
const (
	LeafPrefix byte = 0x00
	NodePrefix byte = 0x01
)

// Digest is a fixed-width hash value. Equality is byte-wise.
type Digest [DigestLength]byte

var digestT = reflect.TypeOf(Digest{})

// Hex returns the 0x-prefixed hex encoding of the digest.
func (d Digest) Hex() string {
	return hexutil.Encode(d[:])
}

// MarshalText implements encoding.TextMarshaler.
func (d Digest) MarshalText() ([]byte, error) {
	return hexutil.Bytes(d[:]).MarshalText()
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Digest) UnmarshalText(input []byte) error {
	return hexutil.UnmarshalFixedText("Digest", input, d[:])
}

// UnmarshalJSON decodes a 0x-prefixed hex string of exactly 32 bytes.
func (d *Digest) UnmarshalJSON(input []byte) error {
	return hexutil.UnmarshalFixedJSON(digestT, input, d[:])
}

// HexToDigest parses a 0x-prefixed hex string into a Digest.
func HexToDigest(s string) (Digest, error) {
	var d Digest
	b, err := hexutil.Decode(s)
	if err != nil {
		return d, err
	}
	if len(b) != DigestLength {
		return d, errors.New("merkle: digest must be exactly 32 bytes")
	}
	copy(d[:], b)
	return d, nil
}

// MultiProof proves several leaves at once. Proof holds the sibling digests
// not derivable from the proved leaves themselves, ordered as consumed during
// reconstruction. Flags drives reconstruction: one entry per combine step,
// true when the second operand comes from the proved set (a leaf or an
// already-computed node), false when it comes from Proof.
//
// A well-formed multiproof satisfies
// len(Flags) == len(leaves) + len(Proof) - 1.
type MultiProof struct {
	Proof []Digest `json:"proof"`
	Flags []bool   `json:"flags"`
}

// ErrInvalidMultiProof reports a structurally malformed multiproof: the flag
// sequence length does not match the leaf and proof counts, or reconstruction
// would consume elements that do not exist. This is distinct from a proof
// that is well-formed but does not match the root, which is reported as a
// boolean false.
var ErrInvalidMultiProof = errors.New("merkle: invalid multiproof")
