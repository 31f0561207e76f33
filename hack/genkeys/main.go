package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/urfave/cli/v2"

	"github.com/papilo-cloud/merkle-tree-airdrop/internal/aws"
	"github.com/papilo-cloud/merkle-tree-airdrop/internal/signer/awskms"
	"github.com/papilo-cloud/merkle-tree-airdrop/pkg/logger"
)

// genkeys creates a root updater key, either locally (prints the private key,
// dev use only) or in AWS KMS (key material never leaves KMS).
func main() {
	app := &cli.App{
		Name:  "genkeys",
		Usage: "Generate a root updater signing key",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "backend",
				Value: "local",
				Usage: "Key backend: local or awskms",
			},
			&cli.StringFlag{
				Name:  "name",
				Value: "root-updater",
				Usage: "Key name",
			},
			&cli.StringFlag{
				Name:  "aws-region",
				Usage: "AWS region override for the awskms backend",
			},
			&cli.StringFlag{
				Name:  "environment",
				Value: "development",
				Usage: "Environment tag for the awskms backend",
			},
		},
		Action: generateKey,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func generateKey(c *cli.Context) error {
	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: false})
	if err != nil {
		return err
	}
	ctx := context.Background()

	switch c.String("backend") {
	case "local":
		privateKey, err := crypto.GenerateKey()
		if err != nil {
			return fmt.Errorf("failed to generate key pair: %w", err)
		}
		address := crypto.PubkeyToAddress(privateKey.PublicKey)

		fmt.Printf("Address:     %s\n", address.Hex())
		fmt.Printf("Private key: %s\n", hexutil.Encode(crypto.FromECDSA(privateKey)))
		fmt.Println("\nKeep the private key offline. Pass the address as --updater-address to the server.")
		return nil

	case "awskms":
		awsCfg, err := aws.LoadAWSConfig(ctx, c.String("aws-region"))
		if err != nil {
			return fmt.Errorf("failed to load AWS config: %w", err)
		}
		identity, err := aws.VerifyCredentials(ctx, awsCfg)
		if err != nil {
			return fmt.Errorf("AWS credential check failed: %w", err)
		}
		l.Sugar().Infow("Using AWS credentials", "caller", identity)

		kmsSigner := awskms.NewKMSSigner(awsCfg, awsCfg.Region, c.String("environment"), l)
		key, err := kmsSigner.GenerateKey(ctx, c.String("name"), "alias/"+c.String("name"))
		if err != nil {
			return fmt.Errorf("failed to generate KMS key: %w", err)
		}

		fmt.Printf("Key ID:  %s\n", key.KeyId)
		fmt.Printf("Address: %s\n", key.Address)
		return nil

	default:
		return fmt.Errorf("unsupported backend %q", c.String("backend"))
	}
}
