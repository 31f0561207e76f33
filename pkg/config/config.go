package config

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"k8s.io/apimachinery/pkg/util/validation/field"
)

// Environment variable names for distributor server configuration
const (
	EnvAirdropPort               = "AIRDROP_PORT"
	EnvAirdropDataDir            = "AIRDROP_DATA_DIR"
	EnvAirdropBackend            = "AIRDROP_BACKEND"
	EnvAirdropChainID            = "AIRDROP_CHAIN_ID"
	EnvAirdropRPCURL             = "AIRDROP_RPC_URL"
	EnvAirdropDistributorAddress = "AIRDROP_DISTRIBUTOR_ADDRESS"
	EnvAirdropUpdaterAddress     = "AIRDROP_UPDATER_ADDRESS"
	EnvAirdropRedisAddress       = "AIRDROP_REDIS_ADDRESS"
	EnvAirdropJWKSURL            = "AIRDROP_JWKS_URL"
	EnvAirdropJWTIssuer          = "AIRDROP_JWT_ISSUER"
	EnvAirdropWebhookURLs        = "AIRDROP_WEBHOOK_URLS"
	EnvAirdropVerbose            = "AIRDROP_VERBOSE"
)

// StorageBackend selects the persistence implementation
type StorageBackend string

func (b StorageBackend) String() string {
	return string(b)
}

const (
	StorageBackendMemory StorageBackend = "memory"
	StorageBackendBadger StorageBackend = "badger"
	StorageBackendRedis  StorageBackend = "redis"
)

// SupportedBackends lists the accepted values for the backend flag
func SupportedBackends() []StorageBackend {
	return []StorageBackend{StorageBackendMemory, StorageBackendBadger, StorageBackendRedis}
}

type ChainId uint

const (
	ChainId_EthereumMainnet ChainId = 1
	ChainId_EthereumSepolia ChainId = 11155111
	ChainId_EthereumAnvil   ChainId = 31337
)

type ChainName string

const (
	ChainName_EthereumMainnet ChainName = "mainnet"
	ChainName_EthereumSepolia ChainName = "sepolia"
	ChainName_EthereumAnvil   ChainName = "devnet"
)

var ChainIdToName = map[ChainId]ChainName{
	ChainId_EthereumMainnet: ChainName_EthereumMainnet,
	ChainId_EthereumSepolia: ChainName_EthereumSepolia,
	ChainId_EthereumAnvil:   ChainName_EthereumAnvil,
}
var ChainNameToId = map[ChainName]ChainId{
	ChainName_EthereumMainnet: ChainId_EthereumMainnet,
	ChainName_EthereumSepolia: ChainId_EthereumSepolia,
	ChainName_EthereumAnvil:   ChainId_EthereumAnvil,
}

// GetPollIntervalForChain returns how often the chain watcher polls for new
// blocks, roughly half the chain's block time
func GetPollIntervalForChain(chainId ChainId) time.Duration {
	switch chainId {
	case ChainId_EthereumMainnet:
		return 6 * time.Second
	case ChainId_EthereumSepolia:
		return 6 * time.Second
	case ChainId_EthereumAnvil:
		return 1 * time.Second
	default:
		return 6 * time.Second
	}
}

// GetSupportedChainIDs returns all supported chain IDs
func GetSupportedChainIDs() []ChainId {
	return []ChainId{
		ChainId_EthereumMainnet,
		ChainId_EthereumSepolia,
		ChainId_EthereumAnvil,
	}
}

// GetSupportedChainIDsString returns supported chain IDs as strings for CLI help
func GetSupportedChainIDsString() string {
	return fmt.Sprintf("%d (mainnet), %d (sepolia), %d (anvil)",
		ChainId_EthereumMainnet, ChainId_EthereumSepolia, ChainId_EthereumAnvil)
}

// DistributorConfig represents the complete configuration for a distributor server
type DistributorConfig struct {
	Port    int            `json:"port"`
	DataDir string         `json:"data_dir"` // badger database directory
	Backend StorageBackend `json:"backend"`

	// Chain configuration
	ChainID   ChainId   `json:"chain_id"`
	ChainName ChainName `json:"chain_name"`

	// On-chain mirroring (optional; local-only mode when RpcUrl is empty)
	RpcUrl             string `json:"rpc_url"`
	DistributorAddress string `json:"distributor_address"` // distributor contract address
	UpdaterAddress     string `json:"updater_address"`     // address allowed to rotate roots

	RedisAddress string `json:"redis_address"`

	Webhook *WebhookConfig `json:"webhook,omitempty"`
	Auth    *AuthConfig    `json:"auth,omitempty"`

	// Operational settings
	Debug   bool `json:"debug"`
	Verbose bool `json:"verbose"`
}

// Validate validates the distributor server configuration and fills in
// derived fields (chain name)
func (c *DistributorConfig) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1-65535, got %d", c.Port)
	}

	switch c.Backend {
	case StorageBackendMemory:
	case StorageBackendBadger:
		if c.DataDir == "" {
			return fmt.Errorf("data dir is required for the badger backend")
		}
	case StorageBackendRedis:
		if c.RedisAddress == "" {
			return fmt.Errorf("redis address is required for the redis backend")
		}
	default:
		return fmt.Errorf("unsupported storage backend %q. Supported: %v", c.Backend, SupportedBackends())
	}

	// Validate chain ID
	chainName, exists := ChainIdToName[c.ChainID]
	if !exists {
		return fmt.Errorf("unsupported chain ID %d. Supported: %s", c.ChainID, GetSupportedChainIDsString())
	}
	c.ChainName = chainName

	if c.UpdaterAddress != "" && !common.IsHexAddress(c.UpdaterAddress) {
		return fmt.Errorf("invalid updater address format: %s", c.UpdaterAddress)
	}

	// Chain mirroring needs the contract to watch
	if c.RpcUrl != "" {
		if c.DistributorAddress == "" {
			return fmt.Errorf("distributor address is required when an RPC URL is configured")
		}
		if !common.IsHexAddress(c.DistributorAddress) {
			return fmt.Errorf("invalid distributor address format: %s", c.DistributorAddress)
		}
	}

	if c.Webhook != nil {
		if err := c.Webhook.Validate(); err != nil {
			return fmt.Errorf("webhook config: %w", err)
		}
	}
	if c.Auth != nil {
		if err := c.Auth.Validate(); err != nil {
			return fmt.Errorf("auth config: %w", err)
		}
	}

	return nil
}

// WebhookConfig configures claim/root notification delivery
type WebhookConfig struct {
	URLs            []string `json:"urls" yaml:"urls"`
	MaxAttempts     int      `json:"maxAttempts" yaml:"maxAttempts"`
	InitialBackoff  string   `json:"initialBackoff" yaml:"initialBackoff"` // duration string, e.g. "100ms"
	SigningKeyAlias string   `json:"signingKeyAlias" yaml:"signingKeyAlias"`
}

func (wc *WebhookConfig) Validate() error {
	var allErrors field.ErrorList
	if len(wc.URLs) == 0 {
		allErrors = append(allErrors, field.Required(field.NewPath("urls"), "at least one webhook URL is required"))
	}
	if wc.MaxAttempts < 0 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("maxAttempts"), wc.MaxAttempts, "must not be negative"))
	}
	if wc.InitialBackoff != "" {
		if _, err := time.ParseDuration(wc.InitialBackoff); err != nil {
			allErrors = append(allErrors, field.Invalid(field.NewPath("initialBackoff"), wc.InitialBackoff, err.Error()))
		}
	}
	if len(allErrors) > 0 {
		return allErrors.ToAggregate()
	}
	return nil
}

// AuthConfig configures JWT verification for the admin endpoints
type AuthConfig struct {
	JWKSUrl  string `json:"jwksUrl" yaml:"jwksUrl"`
	Issuer   string `json:"issuer" yaml:"issuer"`
	Audience string `json:"audience" yaml:"audience"`
}

func (ac *AuthConfig) Validate() error {
	var allErrors field.ErrorList
	if ac.JWKSUrl == "" {
		allErrors = append(allErrors, field.Required(field.NewPath("jwksUrl"), "jwksUrl is required"))
	}
	if ac.Issuer == "" {
		allErrors = append(allErrors, field.Required(field.NewPath("issuer"), "issuer is required"))
	}
	if len(allErrors) > 0 {
		return allErrors.ToAggregate()
	}
	return nil
}
