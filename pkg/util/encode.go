package util

import (
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/papilo-cloud/merkle-tree-airdrop/pkg/merkle"
)

// PackClaimLeaf encodes one allocation as the packed tuple
// (uint256 index, address account, uint256 amount).
// This is the leaf preimage convention shared with Solidity distributor
// contracts, so proofs generated here validate on-chain and vice versa.
func PackClaimLeaf(index uint64, account common.Address, amount *big.Int) ([]byte, error) {
	if amount == nil {
		return nil, fmt.Errorf("amount is required")
	}
	if amount.Sign() < 0 {
		return nil, fmt.Errorf("amount must not be negative")
	}
	if amount.BitLen() > 256 {
		return nil, fmt.Errorf("amount exceeds 256 bits")
	}

	data := make([]byte, 0, 32+common.AddressLength+32)

	var indexWord [32]byte
	new(big.Int).SetUint64(index).FillBytes(indexWord[:])
	data = append(data, indexWord[:]...)

	data = append(data, account.Bytes()...)

	var amountWord [32]byte
	amount.FillBytes(amountWord[:])
	data = append(data, amountWord[:]...)

	return data, nil
}

// PackRootUpdate encodes the root rotation authorization preimage
// campaignID || version || root. The configured updater key signs the
// keccak256 of these bytes.
func PackRootUpdate(campaignID string, version int64, root merkle.Digest) []byte {
	data := make([]byte, 0, len(campaignID)+8+merkle.DigestLength)
	data = append(data, []byte(campaignID)...)

	var versionBytes [8]byte
	binary.BigEndian.PutUint64(versionBytes[:], uint64(version))
	data = append(data, versionBytes[:]...)

	data = append(data, root[:]...)
	return data
}
