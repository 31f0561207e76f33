package merkle

import (
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/zeebo/blake3"
	"golang.org/x/crypto/sha3"
)

// Hasher computes domain-tagged digests for one hash scheme. HashLeaf and
// Combine must use distinct domain tags so leaf and internal hashes can
// never collide across roles.
type Hasher interface {
	// Name returns the registry name of the scheme.
	Name() string

	// HashLeaf hashes application data into a leaf digest under the leaf tag.
	HashLeaf(data []byte) Digest

	// Combine hashes two child digests into a parent digest under the
	// internal-node tag, preserving operand order.
	Combine(a, b Digest) Digest
}

// Scheme names accepted by GetHasher.
const (
	SchemeKeccak256 = "keccak256"
	SchemeSHA3      = "sha3-256"
	SchemeBlake3    = "blake3"
	SchemeMiMC      = "mimc"
)

var hashers = map[string]Hasher{
	SchemeKeccak256: Keccak256Hasher{},
	SchemeSHA3:      SHA3Hasher{},
	SchemeBlake3:    Blake3Hasher{},
	SchemeMiMC:      MiMCHasher{},
}

// GetHasher looks up a registered hash scheme by name.
func GetHasher(name string) (Hasher, error) {
	h, ok := hashers[name]
	if !ok {
		return nil, fmt.Errorf("unknown hash scheme %q", name)
	}
	return h, nil
}

// SchemeNames returns the names of all registered hash schemes.
func SchemeNames() []string {
	names := make([]string, 0, len(hashers))
	for name := range hashers {
		names = append(names, name)
	}
	return names
}

// Keccak256Hasher is the default scheme. It matches the hashing used by
// Solidity verifier contracts, so roots committed on-chain can be checked
// off-chain and vice versa.
type Keccak256Hasher struct{}

func (Keccak256Hasher) Name() string {
	return SchemeKeccak256
}

func (Keccak256Hasher) HashLeaf(data []byte) Digest {
	buf := make([]byte, 0, 1+len(data))
	buf = append(buf, LeafPrefix)
	buf = append(buf, data...)

	hash := crypto.Keccak256Hash(buf)
	return Digest(hash)
}

func (Keccak256Hasher) Combine(a, b Digest) Digest {
	buf := make([]byte, 1+2*DigestLength)
	buf[0] = NodePrefix
	copy(buf[1:33], a[:])
	copy(buf[33:65], b[:])

	hash := crypto.Keccak256Hash(buf)
	return Digest(hash)
}

// SHA3Hasher hashes with standard SHA3-256.
type SHA3Hasher struct{}

func (SHA3Hasher) Name() string {
	return SchemeSHA3
}

func (SHA3Hasher) HashLeaf(data []byte) Digest {
	h := sha3.New256()
	h.Write([]byte{LeafPrefix})
	h.Write(data)

	var d Digest
	copy(d[:], h.Sum(nil))
	return d
}

func (SHA3Hasher) Combine(a, b Digest) Digest {
	h := sha3.New256()
	h.Write([]byte{NodePrefix})
	h.Write(a[:])
	h.Write(b[:])

	var d Digest
	copy(d[:], h.Sum(nil))
	return d
}

// Blake3Hasher hashes with BLAKE3.
type Blake3Hasher struct{}

func (Blake3Hasher) Name() string {
	return SchemeBlake3
}

func (Blake3Hasher) HashLeaf(data []byte) Digest {
	h := blake3.New()
	_, _ = h.Write([]byte{LeafPrefix})
	_, _ = h.Write(data)

	var d Digest
	copy(d[:], h.Sum(nil)[:DigestLength])
	return d
}

func (Blake3Hasher) Combine(a, b Digest) Digest {
	h := blake3.New()
	_, _ = h.Write([]byte{NodePrefix})
	_, _ = h.Write(a[:])
	_, _ = h.Write(b[:])

	var d Digest
	copy(d[:], h.Sum(nil)[:DigestLength])
	return d
}

// MiMCHasher hashes over the BN254 scalar field. Trees built with this
// scheme can be re-verified inside arithmetic circuits where bit-oriented
// hashes are prohibitively expensive. Inputs are absorbed as canonical
// field elements: arbitrary leaf data is split into 31-byte chunks so each
// block stays below the field modulus, and child digests are reduced into
// the field before absorption.
type MiMCHasher struct{}

// mimcChunkSize keeps every absorbed block strictly below the BN254 modulus.
const mimcChunkSize = 31

func (MiMCHasher) Name() string {
	return SchemeMiMC
}

func (MiMCHasher) HashLeaf(data []byte) Digest {
	h := mimc.NewMiMC()
	writeMiMCTag(h, LeafPrefix)

	for start := 0; start < len(data); start += mimcChunkSize {
		end := start + mimcChunkSize
		if end > len(data) {
			end = len(data)
		}
		var block [fr.Bytes]byte
		copy(block[fr.Bytes-(end-start):], data[start:end])
		_, _ = h.Write(block[:])
	}

	var d Digest
	copy(d[:], h.Sum(nil))
	return d
}

func (MiMCHasher) Combine(a, b Digest) Digest {
	h := mimc.NewMiMC()
	writeMiMCTag(h, NodePrefix)
	writeMiMCDigest(h, a)
	writeMiMCDigest(h, b)

	var d Digest
	copy(d[:], h.Sum(nil))
	return d
}

func writeMiMCTag(h interface{ Write([]byte) (int, error) }, tag byte) {
	var block [fr.Bytes]byte
	block[fr.Bytes-1] = tag
	_, _ = h.Write(block[:])
}

func writeMiMCDigest(h interface{ Write([]byte) (int, error) }, d Digest) {
	var e fr.Element
	e.SetBytes(d[:])
	block := e.Bytes()
	_, _ = h.Write(block[:])
}
