package testutil

import (
	"context"
	"testing"
	"time"

	chainPoller "github.com/Layr-Labs/chain-indexer/pkg/chainPollers"
	"github.com/Layr-Labs/chain-indexer/pkg/clients/ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/papilo-cloud/merkle-tree-airdrop/pkg/campaign"
	"github.com/papilo-cloud/merkle-tree-airdrop/pkg/chainwatch"
	"github.com/papilo-cloud/merkle-tree-airdrop/pkg/distributor"
	"github.com/papilo-cloud/merkle-tree-airdrop/pkg/logger"
	"github.com/papilo-cloud/merkle-tree-airdrop/pkg/persistence/memory"
	"github.com/papilo-cloud/merkle-tree-airdrop/pkg/registry"
	"github.com/papilo-cloud/merkle-tree-airdrop/pkg/rootstore"
)

func TestMockChainPoller(t *testing.T) {
	testLogger, _ := logger.NewLogger(&logger.LoggerConfig{Debug: false})

	campaigns := campaign.NewRegistry()
	d := distributor.NewDistributor(
		campaigns,
		rootstore.NewStore(common.Address{}, testLogger),
		memory.NewMemoryPersistence(),
		distributor.NewEventBus(testLogger),
		testLogger,
	)
	watcher := chainwatch.NewWatcher(d, campaigns, registry.NewStubClient(), testLogger)

	poller := NewMockChainPoller([]chainPoller.IBlockHandler{watcher}, 5, testLogger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, poller.Start(ctx))

	receivedBlocks := make(chan uint64, 10)
	go watcher.ListenToChannel(ctx, func(block *ethereum.EthereumBlock) {
		receivedBlocks <- block.Number.Value()
	})

	time.Sleep(50 * time.Millisecond)

	// Each emission advances by the configured interval
	require.NoError(t, poller.EmitBlock())
	require.NoError(t, poller.EmitBlock())
	require.NoError(t, poller.EmitBlockAtNumber(42))

	expected := []uint64{5, 10, 42}
	for _, want := range expected {
		select {
		case got := <-receivedBlocks:
			require.Equal(t, want, got)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for block %d", want)
		}
	}

	require.Equal(t, uint64(42), poller.GetCurrentBlock())

	poller.SetCurrentBlock(100)
	require.NoError(t, poller.EmitBlock())
	select {
	case got := <-receivedBlocks:
		require.Equal(t, uint64(105), got)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for block 105")
	}

	poller.Stop()
}
