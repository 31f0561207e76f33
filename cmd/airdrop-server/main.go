package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	EVMChainPoller "github.com/Layr-Labs/chain-indexer/pkg/chainPollers/evm"
	pollerMemory "github.com/Layr-Labs/chain-indexer/pkg/chainPollers/persistence/memory"
	"github.com/Layr-Labs/chain-indexer/pkg/clients/ethereum"
	chainIndexerConfig "github.com/Layr-Labs/chain-indexer/pkg/config"
	"github.com/Layr-Labs/chain-indexer/pkg/contractStore/inMemoryContractStore"
	"github.com/Layr-Labs/chain-indexer/pkg/transactionLogParser"
	"github.com/ethereum/go-ethereum/common"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	internalAws "github.com/papilo-cloud/merkle-tree-airdrop/internal/aws"
	"github.com/papilo-cloud/merkle-tree-airdrop/internal/signer"
	"github.com/papilo-cloud/merkle-tree-airdrop/internal/signer/awskms"
	"github.com/papilo-cloud/merkle-tree-airdrop/internal/signer/local"
	"github.com/papilo-cloud/merkle-tree-airdrop/pkg/auth"
	"github.com/papilo-cloud/merkle-tree-airdrop/pkg/campaign"
	"github.com/papilo-cloud/merkle-tree-airdrop/pkg/chainwatch"
	"github.com/papilo-cloud/merkle-tree-airdrop/pkg/config"
	"github.com/papilo-cloud/merkle-tree-airdrop/pkg/distributor"
	"github.com/papilo-cloud/merkle-tree-airdrop/pkg/logger"
	"github.com/papilo-cloud/merkle-tree-airdrop/pkg/notifier"
	"github.com/papilo-cloud/merkle-tree-airdrop/pkg/persistence"
	"github.com/papilo-cloud/merkle-tree-airdrop/pkg/persistence/badger"
	"github.com/papilo-cloud/merkle-tree-airdrop/pkg/persistence/memory"
	"github.com/papilo-cloud/merkle-tree-airdrop/pkg/persistence/redis"
	"github.com/papilo-cloud/merkle-tree-airdrop/pkg/registry"
	"github.com/papilo-cloud/merkle-tree-airdrop/pkg/rootstore"
	"github.com/papilo-cloud/merkle-tree-airdrop/pkg/server"
)

func main() {
	app := &cli.App{
		Name:  "airdrop-server",
		Usage: "Merkle airdrop distributor server",
		Description: `A campaign distribution server built on merkle membership proofs.

This server implements:
- Campaign commitment: recipient sets committed to merkle roots
- Claim verification for indexed and sorted trees, single and batch
- Signed root rotation with staged activation
- On-chain claim and root mirroring via a chain poller
- Authenticated webhook delivery of claim and rotation events`,
		Version: "1.0.0",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Value:   9000,
				Usage:   "HTTP server port",
				EnvVars: []string{config.EnvAirdropPort},
			},
			&cli.StringFlag{
				Name:    "backend",
				Aliases: []string{"b"},
				Value:   config.StorageBackendMemory.String(),
				Usage:   fmt.Sprintf("Storage backend: %v", config.SupportedBackends()),
				EnvVars: []string{config.EnvAirdropBackend},
			},
			&cli.StringFlag{
				Name:    "data-dir",
				Usage:   "Badger database directory (badger backend only)",
				EnvVars: []string{config.EnvAirdropDataDir},
			},
			&cli.StringFlag{
				Name:    "redis-address",
				Usage:   "Redis server address (redis backend only)",
				EnvVars: []string{config.EnvAirdropRedisAddress},
			},
			&cli.Uint64Flag{
				Name:    "chain-id",
				Aliases: []string{"chain"},
				Value:   uint64(config.ChainId_EthereumAnvil),
				Usage:   fmt.Sprintf("Ethereum chain ID: %s", config.GetSupportedChainIDsString()),
				EnvVars: []string{config.EnvAirdropChainID},
			},
			&cli.StringFlag{
				Name:    "rpc-url",
				Aliases: []string{"rpc"},
				Usage:   "Ethereum RPC endpoint URL; enables on-chain mirroring",
				EnvVars: []string{config.EnvAirdropRPCURL},
			},
			&cli.StringFlag{
				Name:    "distributor-address",
				Usage:   "On-chain distributor contract address",
				EnvVars: []string{config.EnvAirdropDistributorAddress},
			},
			&cli.StringFlag{
				Name:    "updater-address",
				Usage:   "Ethereum address allowed to sign root rotations",
				EnvVars: []string{config.EnvAirdropUpdaterAddress},
			},
			&cli.StringFlag{
				Name:    "jwks-url",
				Usage:   "JWKS endpoint for admin token verification; admin endpoints are open when unset",
				EnvVars: []string{config.EnvAirdropJWKSURL},
			},
			&cli.StringFlag{
				Name:    "jwt-issuer",
				Usage:   "Expected issuer of admin tokens",
				EnvVars: []string{config.EnvAirdropJWTIssuer},
			},
			&cli.StringSliceFlag{
				Name:    "webhook-url",
				Usage:   "Webhook endpoint for claim and rotation events (repeatable)",
				EnvVars: []string{config.EnvAirdropWebhookURLs},
			},
			&cli.StringFlag{
				Name:  "webhook-signer",
				Value: "local",
				Usage: "Webhook signing backend: local or awskms",
			},
			&cli.StringFlag{
				Name:  "webhook-key-id",
				Usage: "Existing signing key ID (AWS KMS key ID, or hex private key for the local backend)",
			},
			&cli.StringFlag{
				Name:  "aws-region",
				Usage: "AWS region override for the awskms signing backend",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Usage:   "Enable verbose logging",
				EnvVars: []string{config.EnvAirdropVerbose},
			},
		},
		Action: runDistributorServer,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func runDistributorServer(c *cli.Context) error {
	l, err := logger.NewLogger(&logger.LoggerConfig{
		Debug: c.Bool("verbose"),
	})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = l.Sync() }()

	cfg := parseDistributorConfig(c)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	l.Sugar().Infow("Using chain", "name", cfg.ChainName, "chain_id", cfg.ChainID)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := buildPersistence(cfg, l)
	if err != nil {
		return fmt.Errorf("failed to create persistence: %w", err)
	}
	defer func() { _ = store.Close() }()

	if err := store.HealthCheck(); err != nil {
		return fmt.Errorf("persistence health check failed: %w", err)
	}

	campaigns := campaign.NewRegistry()
	roots := rootstore.NewStore(common.HexToAddress(cfg.UpdaterAddress), l)
	events := distributor.NewEventBus(l)
	d := distributor.NewDistributor(campaigns, roots, store, events, l)

	if err := d.LoadState(); err != nil {
		return fmt.Errorf("failed to load persisted state: %w", err)
	}
	l.Sugar().Infow("Loaded persisted state", "campaigns", d.CampaignCount())

	var verifier auth.IAdminVerifier
	if cfg.Auth != nil {
		adminVerifier, err := auth.NewAdminVerifier(ctx, slog.Default(), cfg.Auth.JWKSUrl, cfg.Auth.Issuer, 15*time.Minute)
		if err != nil {
			return fmt.Errorf("failed to create admin verifier: %w", err)
		}
		verifier = adminVerifier
		l.Sugar().Infow("Admin endpoints require bearer tokens", "issuer", cfg.Auth.Issuer)
	} else {
		l.Sugar().Warn("No JWKS URL configured, admin endpoints are open")
	}

	if cfg.RpcUrl != "" {
		if err := startChainMirroring(ctx, cfg, d, campaigns, l); err != nil {
			return err
		}
	}

	if cfg.Webhook != nil {
		if err := startNotifier(ctx, c, cfg, events, l); err != nil {
			return err
		}
	}

	srv := server.NewServer(d, verifier, cfg.Port, l)
	if err := srv.Start(); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	l.Sugar().Infow("Airdrop distributor running", "port", cfg.Port, "backend", cfg.Backend)
	l.Sugar().Infow("Available endpoints",
		"claim", "POST /claim",
		"batch_claim", "POST /claim/batch",
		"proof", "GET /proof",
		"campaigns", "GET /campaigns",
		"admin", "POST /admin/*")
	l.Sugar().Info("Press Ctrl+C to stop")

	select {}
}

// startChainMirroring wires the chain poller into the watcher so on-chain
// claims and root rotations reach the distributor.
func startChainMirroring(ctx context.Context, cfg *config.DistributorConfig, d *distributor.Distributor, campaigns *campaign.Registry, l *zap.Logger) error {
	ethClient := ethereum.NewEthereumClient(&ethereum.EthereumClientConfig{
		BaseUrl:   cfg.RpcUrl,
		BlockType: ethereum.BlockType_Latest,
	}, l)

	contractCaller, err := ethClient.GetEthereumContractCaller()
	if err != nil {
		return fmt.Errorf("failed to get Ethereum contract caller: %w", err)
	}

	registryClient, err := registry.NewClient(contractCaller, common.HexToAddress(cfg.DistributorAddress), l)
	if err != nil {
		return fmt.Errorf("failed to create registry client: %w", err)
	}

	watcher := chainwatch.NewWatcher(d, campaigns, registryClient, l)

	// Claimed events are pulled in ranges by the watcher, so the poller does
	// not need to parse logs
	cs := inMemoryContractStore.NewInMemoryContractStore(nil, l)
	logParser := transactionLogParser.NewTransactionLogParser(cs, l)
	pollerStore := pollerMemory.NewInMemoryChainPollerPersistence()

	poller, err := EVMChainPoller.NewEVMChainPoller(
		ethClient,
		logParser,
		&EVMChainPoller.EVMChainPollerConfig{
			ChainId:         chainIndexerConfig.ChainId(cfg.ChainID),
			PollingInterval: config.GetPollIntervalForChain(cfg.ChainID),
		},
		pollerStore, watcher, l)
	if err != nil {
		return fmt.Errorf("failed to create EVM chain poller: %w", err)
	}

	go watcher.Run(ctx)
	if err := poller.Start(ctx); err != nil {
		return fmt.Errorf("failed to start chain poller: %w", err)
	}

	l.Sugar().Infow("Chain mirroring enabled",
		"rpc", cfg.RpcUrl, "contract", cfg.DistributorAddress)
	return nil
}

// startNotifier wires webhook delivery to the event bus.
func startNotifier(ctx context.Context, c *cli.Context, cfg *config.DistributorConfig, events *distributor.EventBus, l *zap.Logger) error {
	webhookSigner, keyId, err := buildWebhookSigner(ctx, c, l)
	if err != nil {
		return fmt.Errorf("failed to create webhook signer: %w", err)
	}

	n, err := notifier.NewNotifier(cfg.Webhook, webhookSigner, keyId, l)
	if err != nil {
		return fmt.Errorf("failed to create notifier: %w", err)
	}
	n.Run(ctx, events)

	l.Sugar().Infow("Webhook delivery enabled", "endpoints", len(cfg.Webhook.URLs))
	return nil
}

// buildWebhookSigner returns the signer backend for webhook authentication
// and the key ID to sign with.
func buildWebhookSigner(ctx context.Context, c *cli.Context, l *zap.Logger) (signer.ISigner, string, error) {
	switch c.String("webhook-signer") {
	case "local":
		localSigner := local.NewLocalSigner(l)

		if keyHex := c.String("webhook-key-id"); keyHex != "" {
			if err := localSigner.LoadPrivateKeyFromHex("webhook-signer", keyHex, "webhook-signer", "webhook"); err != nil {
				return nil, "", err
			}
			return localSigner, "webhook-signer", nil
		}

		key, err := localSigner.GenerateKey(ctx, "webhook-signer", "webhook")
		if err != nil {
			return nil, "", err
		}
		l.Sugar().Infow("Generated ephemeral webhook signing key", "address", key.Address)
		return localSigner, key.KeyId, nil

	case "awskms":
		keyId := c.String("webhook-key-id")
		if keyId == "" {
			return nil, "", fmt.Errorf("webhook-key-id is required for the awskms backend")
		}

		awsCfg, err := internalAws.LoadAWSConfig(ctx, c.String("aws-region"))
		if err != nil {
			return nil, "", err
		}
		identity, err := internalAws.VerifyCredentials(ctx, awsCfg)
		if err != nil {
			return nil, "", err
		}
		l.Sugar().Infow("Using AWS KMS webhook signing", "caller", identity, "keyId", keyId)

		return awskms.NewKMSSigner(awsCfg, awsCfg.Region, "production", l), keyId, nil

	default:
		return nil, "", fmt.Errorf("unsupported webhook signer backend %q", c.String("webhook-signer"))
	}
}

func buildPersistence(cfg *config.DistributorConfig, l *zap.Logger) (persistence.IDistributorPersistence, error) {
	switch cfg.Backend {
	case config.StorageBackendBadger:
		return badger.NewBadgerPersistence(cfg.DataDir, l)
	case config.StorageBackendRedis:
		return redis.NewRedisPersistence(&redis.RedisConfig{Address: cfg.RedisAddress}, l)
	default:
		return memory.NewMemoryPersistence(), nil
	}
}

func parseDistributorConfig(c *cli.Context) *config.DistributorConfig {
	cfg := &config.DistributorConfig{
		Port:               c.Int("port"),
		DataDir:            c.String("data-dir"),
		Backend:            config.StorageBackend(c.String("backend")),
		ChainID:            config.ChainId(c.Uint64("chain-id")),
		RpcUrl:             c.String("rpc-url"),
		DistributorAddress: c.String("distributor-address"),
		UpdaterAddress:     c.String("updater-address"),
		RedisAddress:       c.String("redis-address"),
		Debug:              c.Bool("verbose"),
		Verbose:            c.Bool("verbose"),
	}

	if urls := c.StringSlice("webhook-url"); len(urls) > 0 {
		cfg.Webhook = &config.WebhookConfig{URLs: urls}
	}
	if jwksURL := c.String("jwks-url"); jwksURL != "" {
		cfg.Auth = &config.AuthConfig{
			JWKSUrl: jwksURL,
			Issuer:  c.String("jwt-issuer"),
		}
	}

	return cfg
}
