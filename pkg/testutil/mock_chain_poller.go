package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	chainPoller "github.com/Layr-Labs/chain-indexer/pkg/chainPollers"
	"github.com/Layr-Labs/chain-indexer/pkg/clients/ethereum"
	"go.uber.org/zap"
)

// MockChainPoller implements IChainPoller for testing. It broadcasts blocks
// to the registered handlers without actually polling a chain, so watcher
// tests can drive block delivery deterministically.
type MockChainPoller struct {
	blockHandlers []chainPoller.IBlockHandler
	logger        *zap.Logger
	currentBlock  uint64
	blockInterval uint64 // How many blocks to increment per emission
	ctx           context.Context
	cancel        context.CancelFunc
	mu            sync.Mutex
}

// NewMockChainPoller creates a mock poller that broadcasts to the given
// handlers. blockInterval determines how many blocks each emission advances.
func NewMockChainPoller(
	blockHandlers []chainPoller.IBlockHandler,
	blockInterval uint64,
	logger *zap.Logger,
) *MockChainPoller {
	return &MockChainPoller{
		blockHandlers: blockHandlers,
		logger:        logger,
		currentBlock:  0,
		blockInterval: blockInterval,
	}
}

// Start implements IChainPoller.Start. Blocks are only emitted explicitly.
func (m *MockChainPoller) Start(ctx context.Context) error {
	m.mu.Lock()
	m.ctx, m.cancel = context.WithCancel(ctx)
	m.mu.Unlock()

	m.logger.Sugar().Info("MockChainPoller started")
	return nil
}

// Stop stops the mock poller.
func (m *MockChainPoller) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cancel != nil {
		m.cancel()
		m.logger.Sugar().Info("MockChainPoller stopped")
	}
}

// EmitBlock advances to the next interval boundary and broadcasts that block.
func (m *MockChainPoller) EmitBlock() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ctx == nil {
		return nil
	}

	m.currentBlock += m.blockInterval
	return m.broadcast(m.currentBlock)
}

// EmitBlockAtNumber broadcasts a block with the given number. Useful for
// testing specific range boundaries.
func (m *MockChainPoller) EmitBlockAtNumber(blockNumber uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ctx == nil {
		return nil
	}

	m.currentBlock = blockNumber
	return m.broadcast(blockNumber)
}

func (m *MockChainPoller) broadcast(blockNumber uint64) error {
	block := &ethereum.EthereumBlock{
		Number:       ethereum.EthereumQuantity(blockNumber),
		Hash:         ethereum.EthereumHexString(mockBlockHash(blockNumber)),
		Timestamp:    ethereum.EthereumQuantity(time.Now().Unix()),
		ParentHash:   ethereum.EthereumHexString(mockBlockHash(blockNumber - 1)),
		Nonce:        ethereum.EthereumHexString("0x0000000000000000"),
		Transactions: []*ethereum.EthereumTransaction{},
	}

	m.logger.Sugar().Debugf("MockChainPoller emitting block %d to %d handlers", blockNumber, len(m.blockHandlers))

	for i, handler := range m.blockHandlers {
		if err := handler.HandleBlock(m.ctx, block); err != nil {
			m.logger.Sugar().Warnf("Failed to send block %d to handler %d: %v", blockNumber, i, err)
		}
	}
	return nil
}

// GetCurrentBlock returns the current block number.
func (m *MockChainPoller) GetCurrentBlock() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentBlock
}

// SetCurrentBlock sets the current block number for test setup.
func (m *MockChainPoller) SetCurrentBlock(blockNumber uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.currentBlock = blockNumber
}

// mockBlockHash generates a deterministic block hash for testing.
func mockBlockHash(blockNumber uint64) string {
	return fmt.Sprintf("0x%064x", blockNumber)
}
