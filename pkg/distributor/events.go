package distributor

import (
	"context"

	"go.uber.org/zap"

	"github.com/papilo-cloud/merkle-tree-airdrop/pkg/types"
)

// EventBus fans out claim and root rotation events to background consumers.
// Publishing never blocks the claim path: when a channel is full the event is
// dropped with a warning.
type EventBus struct {
	ClaimChannel chan *types.ClaimEvent
	RootChannel  chan *types.RootEvent
	logger       *zap.Logger
}

func NewEventBus(
	logger *zap.Logger,
) *EventBus {
	return &EventBus{
		// 100 event capacity covers bursts of batch claims
		ClaimChannel: make(chan *types.ClaimEvent, 100),
		RootChannel:  make(chan *types.RootEvent, 100),
		logger:       logger,
	}
}

func (b *EventBus) PublishClaim(ctx context.Context, event *types.ClaimEvent) {
	select {
	case b.ClaimChannel <- event:
		b.logger.Sugar().Debugf("Claim event for index %d sent to channel", event.Index)
	case <-ctx.Done():
		b.logger.Sugar().Warnf("Context done before sending claim event for index %d to channel", event.Index)
	default:
		b.logger.Sugar().Warnf("Claim channel is full, dropping event for index %d", event.Index)
	}
}

func (b *EventBus) PublishRoot(ctx context.Context, event *types.RootEvent) {
	select {
	case b.RootChannel <- event:
		b.logger.Sugar().Debugf("Root event version %d sent to channel", event.Version)
	case <-ctx.Done():
		b.logger.Sugar().Warnf("Context done before sending root event version %d to channel", event.Version)
	default:
		b.logger.Sugar().Warnf("Root channel is full, dropping event version %d", event.Version)
	}
}

func (b *EventBus) ListenToClaims(ctx context.Context, handleFunc func(*types.ClaimEvent)) {
	for {
		select {
		// read claim events from the channel and call handleFunc
		case event := <-b.ClaimChannel:
			b.logger.Sugar().Infof("EventBus received claim for index %d from channel", event.Index)
			handleFunc(event)
		case <-ctx.Done():
			b.logger.Sugar().Info("EventBus claim listener exiting due to context done")
			return
		}
	}
}

func (b *EventBus) ListenToRoots(ctx context.Context, handleFunc func(*types.RootEvent)) {
	for {
		select {
		case event := <-b.RootChannel:
			b.logger.Sugar().Infof("EventBus received root version %d from channel", event.Version)
			handleFunc(event)
		case <-ctx.Done():
			b.logger.Sugar().Info("EventBus root listener exiting due to context done")
			return
		}
	}
}
