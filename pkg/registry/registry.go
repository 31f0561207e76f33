package registry

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	goethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"github.com/papilo-cloud/merkle-tree-airdrop/pkg/merkle"
)

// distributorABI is the slice of the on-chain distributor contract the
// mirror needs: the current root per campaign and the Claimed event.
const distributorABI = `[
	{"name":"getRoot","type":"function","stateMutability":"view",
	 "inputs":[{"name":"campaignKey","type":"bytes32"}],
	 "outputs":[{"name":"root","type":"bytes32"},{"name":"version","type":"uint64"}]},
	{"name":"Claimed","type":"event","anonymous":false,
	 "inputs":[{"name":"campaignKey","type":"bytes32","indexed":true},
	           {"name":"index","type":"uint256","indexed":false},
	           {"name":"account","type":"address","indexed":false},
	           {"name":"amount","type":"uint256","indexed":false}]}
]`

// CampaignKey derives the bytes32 key the contract indexes campaigns by.
func CampaignKey(campaignID string) [32]byte {
	var key [32]byte
	copy(key[:], crypto.Keccak256([]byte(campaignID)))
	return key
}

// OnchainRoot is the root the contract currently honors for one campaign.
type OnchainRoot struct {
	Root    merkle.Digest
	Version int64
}

// ClaimedEvent is one Claimed log emitted by the contract.
type ClaimedEvent struct {
	CampaignKey [32]byte
	Index       uint64
	Account     common.Address
	Amount      *big.Int
	BlockNumber uint64
}

// IRegistryClient reads distributor state from the chain.
type IRegistryClient interface {
	// GetOnchainRoot returns the contract's current root for the campaign,
	// or nil when the campaign is not registered on chain.
	GetOnchainRoot(ctx context.Context, campaignKey [32]byte) (*OnchainRoot, error)

	// FilterClaims returns Claimed events in the inclusive block range.
	FilterClaims(ctx context.Context, fromBlock uint64, toBlock uint64) ([]*ClaimedEvent, error)
}

// ContractBackend is the subset of the geth client the registry client
// needs. Satisfied by *ethclient.Client.
type ContractBackend interface {
	CallContract(ctx context.Context, call goethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	FilterLogs(ctx context.Context, q goethereum.FilterQuery) ([]types.Log, error)
}

// Client reads the on-chain distributor contract.
type Client struct {
	backend  ContractBackend
	contract common.Address
	abi      abi.ABI
	logger   *zap.Logger
}

func NewClient(backend ContractBackend, contract common.Address, logger *zap.Logger) (*Client, error) {
	parsed, err := abi.JSON(strings.NewReader(distributorABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse distributor ABI: %w", err)
	}

	return &Client{
		backend:  backend,
		contract: contract,
		abi:      parsed,
		logger:   logger,
	}, nil
}

func (c *Client) GetOnchainRoot(ctx context.Context, campaignKey [32]byte) (*OnchainRoot, error) {
	data, err := c.abi.Pack("getRoot", campaignKey)
	if err != nil {
		return nil, fmt.Errorf("failed to pack getRoot call: %w", err)
	}

	result, err := c.backend.CallContract(ctx, goethereum.CallMsg{
		To:   &c.contract,
		Data: data,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("getRoot call failed: %w", err)
	}

	outputs, err := c.abi.Unpack("getRoot", result)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack getRoot result: %w", err)
	}
	if len(outputs) != 2 {
		return nil, fmt.Errorf("getRoot returned %d values, expected 2", len(outputs))
	}

	root, ok := outputs[0].([32]byte)
	if !ok {
		return nil, fmt.Errorf("getRoot returned unexpected root type %T", outputs[0])
	}
	version, ok := outputs[1].(uint64)
	if !ok {
		return nil, fmt.Errorf("getRoot returned unexpected version type %T", outputs[1])
	}

	// Version zero means the campaign is not registered on chain
	if version == 0 {
		return nil, nil
	}

	return &OnchainRoot{
		Root:    merkle.Digest(root),
		Version: int64(version),
	}, nil
}

func (c *Client) FilterClaims(ctx context.Context, fromBlock uint64, toBlock uint64) ([]*ClaimedEvent, error) {
	claimedTopic := c.abi.Events["Claimed"].ID

	logs, err := c.backend.FilterLogs(ctx, goethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: []common.Address{c.contract},
		Topics:    [][]common.Hash{{claimedTopic}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to filter Claimed logs: %w", err)
	}

	events := make([]*ClaimedEvent, 0, len(logs))
	for _, entry := range logs {
		if len(entry.Topics) < 2 {
			c.logger.Sugar().Warnw("Skipping Claimed log without campaign topic",
				"block", entry.BlockNumber, "txHash", entry.TxHash.Hex())
			continue
		}

		values, err := c.abi.Unpack("Claimed", entry.Data)
		if err != nil {
			c.logger.Sugar().Warnw("Skipping undecodable Claimed log",
				"block", entry.BlockNumber, "error", err)
			continue
		}
		if len(values) != 3 {
			continue
		}

		index, ok := values[0].(*big.Int)
		if !ok {
			continue
		}
		account, ok := values[1].(common.Address)
		if !ok {
			continue
		}
		amount, ok := values[2].(*big.Int)
		if !ok {
			continue
		}

		events = append(events, &ClaimedEvent{
			CampaignKey: [32]byte(entry.Topics[1]),
			Index:       index.Uint64(),
			Account:     account,
			Amount:      amount,
			BlockNumber: entry.BlockNumber,
		})
	}

	return events, nil
}

// StubClient is an in-memory registry client for tests and local mode.
type StubClient struct {
	mu     sync.Mutex
	roots  map[[32]byte]*OnchainRoot
	claims []*ClaimedEvent
}

func NewStubClient() *StubClient {
	return &StubClient{
		roots: make(map[[32]byte]*OnchainRoot),
	}
}

// SetRoot sets the stub's root for a campaign key.
func (s *StubClient) SetRoot(campaignKey [32]byte, root merkle.Digest, version int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.roots[campaignKey] = &OnchainRoot{Root: root, Version: version}
}

// AddClaim queues a Claimed event for the given block.
func (s *StubClient) AddClaim(event *ClaimedEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.claims = append(s.claims, event)
}

func (s *StubClient) GetOnchainRoot(ctx context.Context, campaignKey [32]byte) (*OnchainRoot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	root := s.roots[campaignKey]
	if root == nil {
		return nil, nil
	}
	out := *root
	return &out, nil
}

func (s *StubClient) FilterClaims(ctx context.Context, fromBlock uint64, toBlock uint64) ([]*ClaimedEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*ClaimedEvent
	for _, event := range s.claims {
		if event.BlockNumber >= fromBlock && event.BlockNumber <= toBlock {
			out = append(out, event)
		}
	}
	return out, nil
}
