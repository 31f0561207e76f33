package chainwatch

import (
	"context"
	"sync"

	chainPoller "github.com/Layr-Labs/chain-indexer/pkg/chainPollers"
	"github.com/Layr-Labs/chain-indexer/pkg/clients/ethereum"
	"go.uber.org/zap"

	"github.com/papilo-cloud/merkle-tree-airdrop/pkg/campaign"
	"github.com/papilo-cloud/merkle-tree-airdrop/pkg/distributor"
	"github.com/papilo-cloud/merkle-tree-airdrop/pkg/registry"
	"github.com/papilo-cloud/merkle-tree-airdrop/pkg/types"
)

type IChainWatcher interface {
	chainPoller.IBlockHandler
	ListenToChannel(ctx context.Context, handleFunc func(*ethereum.EthereumBlock))
}

// Watcher mirrors on-chain distributor state into the local service. It
// receives finalized blocks from the chain poller and, per block, pulls
// Claimed events and root rotations from the contract.
type Watcher struct {
	BlockChannel chan *ethereum.EthereumBlock

	distributor *distributor.Distributor
	campaigns   *campaign.Registry
	client      registry.IRegistryClient
	logger      *zap.Logger

	mu            sync.Mutex
	lastProcessed uint64
}

func NewWatcher(
	d *distributor.Distributor,
	campaigns *campaign.Registry,
	client registry.IRegistryClient,
	logger *zap.Logger,
) *Watcher {
	return &Watcher{
		// 100 block capacity should be more than enough for finalized blocks
		BlockChannel: make(chan *ethereum.EthereumBlock, 100),
		distributor:  d,
		campaigns:    campaigns,
		client:       client,
		logger:       logger,
	}
}

func (w *Watcher) HandleBlock(ctx context.Context, block *ethereum.EthereumBlock) error {
	select {
	case w.BlockChannel <- block:
		w.logger.Sugar().Debugf("Block %d sent to channel", block.Number)
	case <-ctx.Done():
		w.logger.Sugar().Warnf("Context done before sending block %d to channel", block.Number)
	default:
		w.logger.Sugar().Warnf("Block channel is full, dropping block %d", block.Number)
	}
	return nil
}

func (w *Watcher) HandleLog(ctx context.Context, logWithBlock *chainPoller.LogWithBlock) error {
	// claims are pulled in block ranges, individual log delivery is unused
	return nil
}

func (w *Watcher) HandleReorgBlock(ctx context.Context, blockNumber uint64) {
	// we'll be indexing finalized blocks only, so no reorgs
}

func (w *Watcher) ListenToChannel(ctx context.Context, handleFunc func(*ethereum.EthereumBlock)) {
	for {
		select {
		case block := <-w.BlockChannel:
			w.logger.Sugar().Infof("Watcher received block %d from channel", block.Number)
			handleFunc(block)
		case <-ctx.Done():
			w.logger.Sugar().Info("Watcher channel listener exiting due to context done")
			return
		}
	}
}

// Run consumes blocks until the context is cancelled.
func (w *Watcher) Run(ctx context.Context) {
	w.ListenToChannel(ctx, func(block *ethereum.EthereumBlock) {
		if err := w.ProcessBlock(ctx, block); err != nil {
			w.logger.Sugar().Errorw("Failed to process block",
				"block", uint64(block.Number), "error", err)
		}
	})
}

// ProcessBlock mirrors contract state as of the given block: Claimed events
// since the last processed block, then root rotations per campaign.
func (w *Watcher) ProcessBlock(ctx context.Context, block *ethereum.EthereumBlock) error {
	blockNumber := uint64(block.Number)
	blockTime := int64(block.Timestamp)

	w.mu.Lock()
	fromBlock := w.lastProcessed + 1
	if w.lastProcessed == 0 {
		fromBlock = blockNumber
	}
	w.mu.Unlock()

	if err := w.mirrorClaims(ctx, fromBlock, blockNumber, blockTime); err != nil {
		return err
	}
	if err := w.mirrorRoots(ctx, blockTime); err != nil {
		return err
	}

	w.mu.Lock()
	w.lastProcessed = blockNumber
	w.mu.Unlock()
	return nil
}

func (w *Watcher) mirrorClaims(ctx context.Context, fromBlock uint64, toBlock uint64, blockTime int64) error {
	events, err := w.client.FilterClaims(ctx, fromBlock, toBlock)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return nil
	}

	// Contract logs carry the hashed campaign key, map it back to the ID
	byKey := make(map[[32]byte]*campaign.Campaign)
	for _, c := range w.campaigns.List() {
		byKey[registry.CampaignKey(c.ID)] = c
	}

	for _, event := range events {
		c := byKey[event.CampaignKey]
		if c == nil {
			w.logger.Sugar().Warnw("Claimed event for unknown campaign key",
				"block", event.BlockNumber, "index", event.Index)
			continue
		}

		leaf, err := c.LeafFor(event.Index, event.Account, event.Amount)
		if err != nil {
			w.logger.Sugar().Warnw("Failed to rebuild leaf for chain claim",
				"campaignId", c.ID, "index", event.Index, "error", err)
			continue
		}

		if err := w.distributor.MirrorChainClaim(ctx, &types.ClaimEvent{
			CampaignID: c.ID,
			Index:      event.Index,
			Account:    event.Account,
			Amount:     event.Amount,
			LeafHash:   leaf,
			ClaimedAt:  blockTime,
			OnChain:    true,
		}); err != nil {
			return err
		}
	}
	return nil
}

func (w *Watcher) mirrorRoots(ctx context.Context, blockTime int64) error {
	for _, c := range w.campaigns.List() {
		info, err := w.distributor.CampaignInfo(c.ID)
		if err != nil {
			return err
		}

		onchain, err := w.client.GetOnchainRoot(ctx, registry.CampaignKey(c.ID))
		if err != nil {
			return err
		}
		if onchain == nil || onchain.Version <= info.RootVersion {
			continue
		}

		if err := w.distributor.MirrorChainRoot(ctx, &types.RootEvent{
			CampaignID:  c.ID,
			Version:     onchain.Version,
			Root:        onchain.Root,
			ActivatedAt: blockTime,
			OnChain:     true,
		}); err != nil {
			return err
		}
	}
	return nil
}
