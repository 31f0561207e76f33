package util

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func FuzzPackClaimLeaf(f *testing.F) {
	f.Add(uint64(0), []byte{}, uint64(0))
	f.Add(uint64(1), []byte{0x12, 0x34}, uint64(1000))
	f.Add(uint64(1<<63), []byte{0xFF}, uint64(1)<<62)

	f.Fuzz(func(t *testing.T, index uint64, accountSeed []byte, amountSeed uint64) {
		account := common.BytesToAddress(accountSeed)
		amount := new(big.Int).SetUint64(amountSeed)

		data, err := PackClaimLeaf(index, account, amount)
		require.NoError(t, err)
		require.Len(t, data, 84)

		// Every field decodes back out of its fixed slot
		require.Equal(t, index, new(big.Int).SetBytes(data[:32]).Uint64())
		require.Equal(t, account, common.BytesToAddress(data[32:52]))
		require.Zero(t, amount.Cmp(new(big.Int).SetBytes(data[52:])))
	})
}
