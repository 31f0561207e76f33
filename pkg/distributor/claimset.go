package distributor

import (
	"fmt"
	"sync"

	"github.com/bits-and-blooms/bitset"
)

// ClaimSet tracks which allocation indices of one campaign have been
// claimed. The bitmap grows on demand and every mutation is an atomic
// check-then-set, so two concurrent claims of the same index can never both
// succeed.
type ClaimSet struct {
	mu   sync.Mutex
	bits *bitset.BitSet
}

// NewClaimSet creates an empty claim set.
func NewClaimSet() *ClaimSet {
	return &ClaimSet{bits: bitset.New(0)}
}

// RestoreClaimSet rebuilds a claim set from a Snapshot.
func RestoreClaimSet(data []byte) (*ClaimSet, error) {
	bits := bitset.New(0)
	if len(data) > 0 {
		if err := bits.UnmarshalBinary(data); err != nil {
			return nil, fmt.Errorf("failed to restore claim bitmap: %w", err)
		}
	}
	return &ClaimSet{bits: bits}, nil
}

// TestAndClaim marks the index claimed. Returns false when the index was
// already claimed, in which case no state changes.
func (c *ClaimSet) TestAndClaim(index uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.bits.Test(uint(index)) {
		return false
	}
	c.bits.Set(uint(index))
	return true
}

// TestAndClaimAll marks every index claimed, or none of them. Returns the
// first already-claimed index and false when the batch cannot be applied.
func (c *ClaimSet) TestAndClaimAll(indices []uint64) (uint64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, index := range indices {
		if c.bits.Test(uint(index)) {
			return index, false
		}
	}
	for _, index := range indices {
		c.bits.Set(uint(index))
	}
	return 0, true
}

// IsClaimed reports whether the index has been claimed.
func (c *ClaimSet) IsClaimed(index uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.bits.Test(uint(index))
}

// Count returns the number of claimed indices.
func (c *ClaimSet) Count() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	return uint64(c.bits.Count())
}

// Snapshot serializes the bitmap for persistence.
func (c *ClaimSet) Snapshot() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := c.bits.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot claim bitmap: %w", err)
	}
	return data, nil
}
