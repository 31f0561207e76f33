package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"github.com/papilo-cloud/merkle-tree-airdrop/internal/signer"
	"github.com/papilo-cloud/merkle-tree-airdrop/pkg/config"
	"github.com/papilo-cloud/merkle-tree-airdrop/pkg/distributor"
	"github.com/papilo-cloud/merkle-tree-airdrop/pkg/merkle"
	"github.com/papilo-cloud/merkle-tree-airdrop/pkg/types"
)

// RetryConfig configures webhook delivery retry behavior
type RetryConfig struct {
	MaxAttempts     int
	InitialBackoff  time.Duration
	MaxBackoff      time.Duration
	BackoffMultiple float64
}

// DefaultRetryConfig provides default retry settings
var DefaultRetryConfig = RetryConfig{
	MaxAttempts:     5,
	InitialBackoff:  100 * time.Millisecond,
	MaxBackoff:      5 * time.Second,
	BackoffMultiple: 2.0,
}

// Notification kinds carried in the webhook payload
const (
	KindClaim        = "claim"
	KindRootRotation = "root_rotation"
)

// ClaimNotification is the wire form of a claim event delivery
type ClaimNotification struct {
	Kind       string        `json:"kind"`
	CampaignID string        `json:"campaign_id"`
	Index      uint64        `json:"index"`
	Account    string        `json:"account"`
	Amount     string        `json:"amount"`
	LeafHash   merkle.Digest `json:"leaf_hash"`
	ClaimedAt  int64         `json:"claimed_at"`
	OnChain    bool          `json:"on_chain"`
}

// RootNotification is the wire form of a root rotation delivery
type RootNotification struct {
	Kind        string        `json:"kind"`
	CampaignID  string        `json:"campaign_id"`
	Version     int64         `json:"version"`
	Root        merkle.Digest `json:"root"`
	ActivatedAt int64         `json:"activated_at"`
	OnChain     bool          `json:"on_chain"`
}

// Notifier delivers claim and root rotation events to configured webhook
// endpoints. Payloads travel wrapped in an AuthenticatedMessage so receivers
// can verify both integrity and origin; with no signer configured the
// signature is left empty and only the digest is filled.
type Notifier struct {
	urls        []string
	signer      signer.ISigner
	keyId       string
	httpClient  *http.Client
	retryConfig RetryConfig
	logger      *zap.Logger
}

func NewNotifier(cfg *config.WebhookConfig, s signer.ISigner, keyId string, logger *zap.Logger) (*Notifier, error) {
	if cfg == nil || len(cfg.URLs) == 0 {
		return nil, fmt.Errorf("webhook config with at least one URL is required")
	}

	retryConfig := DefaultRetryConfig
	if cfg.MaxAttempts > 0 {
		retryConfig.MaxAttempts = cfg.MaxAttempts
	}
	if cfg.InitialBackoff != "" {
		backoff, err := time.ParseDuration(cfg.InitialBackoff)
		if err != nil {
			return nil, fmt.Errorf("failed to parse initial backoff: %w", err)
		}
		retryConfig.InitialBackoff = backoff
	}

	return &Notifier{
		urls:        cfg.URLs,
		signer:      s,
		keyId:       keyId,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		retryConfig: retryConfig,
		logger:      logger,
	}, nil
}

// Run subscribes the notifier to the event bus until the context is cancelled.
func (n *Notifier) Run(ctx context.Context, events *distributor.EventBus) {
	go events.ListenToClaims(ctx, func(event *types.ClaimEvent) {
		if err := n.NotifyClaim(ctx, event); err != nil {
			n.logger.Sugar().Errorw("Failed to deliver claim notification",
				"campaignId", event.CampaignID, "index", event.Index, "error", err)
		}
	})
	go events.ListenToRoots(ctx, func(event *types.RootEvent) {
		if err := n.NotifyRootRotation(ctx, event); err != nil {
			n.logger.Sugar().Errorw("Failed to deliver root notification",
				"campaignId", event.CampaignID, "version", event.Version, "error", err)
		}
	})
}

// NotifyClaim delivers a claim event to every webhook endpoint.
func (n *Notifier) NotifyClaim(ctx context.Context, event *types.ClaimEvent) error {
	return n.send(ctx, ClaimNotification{
		Kind:       KindClaim,
		CampaignID: event.CampaignID,
		Index:      event.Index,
		Account:    event.Account.Hex(),
		Amount:     event.Amount.String(),
		LeafHash:   event.LeafHash,
		ClaimedAt:  event.ClaimedAt,
		OnChain:    event.OnChain,
	})
}

// NotifyRootRotation delivers a root rotation to every webhook endpoint.
func (n *Notifier) NotifyRootRotation(ctx context.Context, event *types.RootEvent) error {
	return n.send(ctx, RootNotification{
		Kind:        KindRootRotation,
		CampaignID:  event.CampaignID,
		Version:     event.Version,
		Root:        event.Root,
		ActivatedAt: event.ActivatedAt,
		OnChain:     event.OnChain,
	})
}

func (n *Notifier) send(ctx context.Context, payload interface{}) error {
	authMsg, err := n.createAuthenticatedMessage(ctx, payload)
	if err != nil {
		return fmt.Errorf("failed to create authenticated message: %w", err)
	}

	data, err := json.Marshal(authMsg)
	if err != nil {
		return fmt.Errorf("failed to marshal authenticated message: %w", err)
	}

	var lastErr error
	for _, url := range n.urls {
		if err := n.deliver(ctx, url, data); err != nil {
			n.logger.Sugar().Warnw("Webhook delivery failed", "url", url, "error", err)
			lastErr = err
		}
	}
	return lastErr
}

// createAuthenticatedMessage wraps the payload with its keccak256 digest and,
// when a signer is configured, an ECDSA signature over that digest.
func (n *Notifier) createAuthenticatedMessage(ctx context.Context, payload interface{}) (*types.AuthenticatedMessage, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	var hash merkle.Digest
	copy(hash[:], crypto.Keccak256(data))

	msg := &types.AuthenticatedMessage{
		Payload: data,
		Hash:    hash,
	}

	if n.signer != nil {
		signature, err := n.signer.SignDigest(ctx, n.keyId, hash[:])
		if err != nil {
			return nil, fmt.Errorf("failed to sign payload digest: %w", err)
		}
		msg.Signature = signature
	}

	return msg, nil
}

func (n *Notifier) deliver(ctx context.Context, url string, data []byte) error {
	backoff := n.retryConfig.InitialBackoff
	for attempt := 0; attempt < n.retryConfig.MaxAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := n.httpClient.Do(req)
		if err == nil {
			status := resp.StatusCode
			_ = resp.Body.Close()
			if status < http.StatusMultipleChoices {
				return nil
			}
			err = fmt.Errorf("webhook returned status %d", status)
		}

		if attempt < n.retryConfig.MaxAttempts-1 {
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
			backoff = time.Duration(float64(backoff) * n.retryConfig.BackoffMultiple)
			if backoff > n.retryConfig.MaxBackoff {
				backoff = n.retryConfig.MaxBackoff
			}
		}
	}

	return fmt.Errorf("delivery failed after %d attempts", n.retryConfig.MaxAttempts)
}
