package main

import (
	"fmt"
	"log"
	"os"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/urfave/cli/v2"

	"github.com/papilo-cloud/merkle-tree-airdrop/pkg/merkle"
	"github.com/papilo-cloud/merkle-tree-airdrop/pkg/util"
)

// signroot produces the updater signature a root rotation request needs:
// sign(keccak256(campaignID || version || root)) by the updater key. The
// output goes straight into the signature field of the rotation request.
func main() {
	app := &cli.App{
		Name:  "signroot",
		Usage: "Sign a root rotation with the updater key",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "campaign-id",
				Usage:    "Campaign ID",
				Required: true,
			},
			&cli.Int64Flag{
				Name:     "version",
				Usage:    "New root version",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "root",
				Usage:    "New merkle root (0x hex)",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "private-key",
				Usage:    "Updater private key (0x hex)",
				EnvVars:  []string{"AIRDROP_UPDATER_PRIVATE_KEY"},
				Required: true,
			},
		},
		Action: signRoot,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func signRoot(c *cli.Context) error {
	root, err := merkle.HexToDigest(c.String("root"))
	if err != nil {
		return fmt.Errorf("invalid root: %w", err)
	}

	privateKey, err := crypto.HexToECDSA(trimHexPrefix(c.String("private-key")))
	if err != nil {
		return fmt.Errorf("invalid private key: %w", err)
	}

	digest := crypto.Keccak256(util.PackRootUpdate(c.String("campaign-id"), c.Int64("version"), root))

	signature, err := crypto.Sign(digest, privateKey)
	if err != nil {
		return fmt.Errorf("failed to sign digest: %w", err)
	}
	// Ethereum 27/28 convention
	signature[64] += 27

	fmt.Printf("Signer:    %s\n", crypto.PubkeyToAddress(privateKey.PublicKey).Hex())
	fmt.Printf("Digest:    %s\n", hexutil.Encode(digest))
	fmt.Printf("Signature: %s\n", hexutil.Encode(signature))
	return nil
}

func trimHexPrefix(s string) string {
	if len(s) >= 2 && s[0:2] == "0x" {
		return s[2:]
	}
	return s
}
