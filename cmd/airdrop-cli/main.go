package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/papilo-cloud/merkle-tree-airdrop/pkg/client"
	"github.com/papilo-cloud/merkle-tree-airdrop/pkg/logger"
	"github.com/papilo-cloud/merkle-tree-airdrop/pkg/merkle"
	"github.com/papilo-cloud/merkle-tree-airdrop/pkg/types"
)

func main() {
	app := &cli.App{
		Name:  "airdrop-cli",
		Usage: "Operator CLI for the airdrop distributor",
		Description: `A client for operating and claiming from an airdrop distributor.

This client can:
- Create campaigns from a recipient list file
- Fetch membership proofs for allocations
- Submit claims against the active root
- Stage and activate signed root rotations`,
		Version: "1.0.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "server",
				Usage: "Distributor server URL",
				Value: "http://localhost:9000",
			},
			&cli.StringFlag{
				Name:    "admin-token",
				Usage:   "Bearer token for admin endpoints",
				EnvVars: []string{"AIRDROP_ADMIN_TOKEN"},
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Enable verbose logging",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "create-campaign",
				Usage: "Commit a recipient list file to a new campaign",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "name",
						Usage:    "Campaign name",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "recipients",
						Usage:    "Path to a JSON file with recipient entries",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "scheme",
						Usage: "Hash scheme (keccak256, sha3, blake3, mimc)",
					},
					&cli.StringFlag{
						Name:  "mode",
						Usage: "Tree mode (indexed or sorted)",
					},
				},
				Action: createCampaignCommand,
			},
			{
				Name:  "proof",
				Usage: "Fetch the membership proof for one allocation",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "campaign-id",
						Usage:    "Campaign ID",
						Required: true,
					},
					&cli.Uint64Flag{
						Name:     "index",
						Usage:    "Recipient index",
						Required: true,
					},
				},
				Action: proofCommand,
			},
			{
				Name:  "claim",
				Usage: "Fetch a proof and submit the claim",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "campaign-id",
						Usage:    "Campaign ID",
						Required: true,
					},
					&cli.Uint64Flag{
						Name:     "index",
						Usage:    "Recipient index",
						Required: true,
					},
				},
				Action: claimCommand,
			},
			{
				Name:   "list",
				Usage:  "List campaigns",
				Action: listCommand,
			},
			{
				Name:  "update-root",
				Usage: "Stage or activate a signed root rotation",
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
						Name:     "signature",
						Usage:    "Updater signature over the rotation (0x hex)",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "activate",
						Usage: "Activate immediately instead of staging",
					},
				},
				Action: updateRootCommand,
			},
			{
				Name:  "activate-root",
				Usage: "Promote a campaign's staged root",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "campaign-id",
						Usage:    "Campaign ID",
						Required: true,
					},
				},
				Action: activateRootCommand,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// createClient creates a distributor API client from CLI context
func createClient(c *cli.Context) (*client.Client, error) {
	zapLogger, err := logger.NewLogger(&logger.LoggerConfig{Debug: c.Bool("verbose")})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return client.NewClient(&client.ClientConfig{
		BaseURL:    c.String("server"),
		AdminToken: c.String("admin-token"),
		Logger:     zapLogger,
	})
}

func printJSON(v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func createCampaignCommand(c *cli.Context) error {
	apiClient, err := createClient(c)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(c.String("recipients"))
	if err != nil {
		return fmt.Errorf("failed to read recipients file: %w", err)
	}

	var recipients []types.RecipientEntry
	if err := json.Unmarshal(data, &recipients); err != nil {
		return fmt.Errorf("failed to parse recipients file: %w", err)
	}

	info, err := apiClient.CreateCampaign(c.Context, &types.CreateCampaignRequest{
		Name:       c.String("name"),
		HashScheme: c.String("scheme"),
		Mode:       types.TreeMode(c.String("mode")),
		Recipients: recipients,
	})
	if err != nil {
		return err
	}

	return printJSON(info)
}

func proofCommand(c *cli.Context) error {
	apiClient, err := createClient(c)
	if err != nil {
		return err
	}

	proof, err := apiClient.GetProof(c.Context, c.String("campaign-id"), c.Uint64("index"))
	if err != nil {
		return err
	}

	return printJSON(proof)
}

func claimCommand(c *cli.Context) error {
	apiClient, err := createClient(c)
	if err != nil {
		return err
	}

	proof, err := apiClient.GetProof(c.Context, c.String("campaign-id"), c.Uint64("index"))
	if err != nil {
		return err
	}

	resp, err := apiClient.Claim(c.Context, &types.ClaimRequest{
		CampaignID: proof.CampaignID,
		Index:      proof.Index,
		Account:    proof.Account,
		Amount:     proof.Amount,
		Proof:      proof.Proof,
	})
	if err != nil {
		return err
	}
	if !resp.Claimed {
		return fmt.Errorf("claim rejected: %s", resp.Error)
	}

	return printJSON(resp)
}

func listCommand(c *cli.Context) error {
	apiClient, err := createClient(c)
	if err != nil {
		return err
	}

	campaigns, err := apiClient.ListCampaigns(c.Context)
	if err != nil {
		return err
	}

	return printJSON(campaigns)
}

func updateRootCommand(c *cli.Context) error {
	apiClient, err := createClient(c)
	if err != nil {
		return err
	}

	root, err := merkle.HexToDigest(c.String("root"))
	if err != nil {
		return fmt.Errorf("invalid root: %w", err)
	}

	resp, err := apiClient.UpdateRoot(c.Context, &types.RootUpdateRequest{
		CampaignID: c.String("campaign-id"),
		Version:    c.Int64("version"),
		Root:       root,
		Signature:  c.String("signature"),
		Activate:   c.Bool("activate"),
	})
	if err != nil {
		return err
	}

	return printJSON(resp)
}

func activateRootCommand(c *cli.Context) error {
	apiClient, err := createClient(c)
	if err != nil {
		return err
	}

	resp, err := apiClient.ActivateRoot(c.Context, c.String("campaign-id"))
	if err != nil {
		return err
	}

	return printJSON(resp)
}
