package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/papilo-cloud/merkle-tree-airdrop/pkg/types"
)

// ClientConfig holds the configuration for the distributor API client
type ClientConfig struct {
	// BaseURL is the distributor server address, e.g. http://localhost:9000
	BaseURL string

	// AdminToken is the bearer token sent on admin endpoints. Optional when
	// the server runs without auth.
	AdminToken string

	Logger     *zap.Logger
	HTTPClient *http.Client
}

// Client provides a reusable library interface for the distributor API
type Client struct {
	baseURL    string
	adminToken string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a new distributor API client
func NewClient(config *ClientConfig) (*Client, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if config.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if config.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	return &Client{
		baseURL:    strings.TrimSuffix(config.BaseURL, "/"),
		adminToken: config.AdminToken,
		httpClient: httpClient,
		logger:     config.Logger,
	}, nil
}

// Health checks service liveness.
func (c *Client) Health(ctx context.Context) (*types.HealthResponse, error) {
	var out types.HealthResponse
	if err := c.get(ctx, "/health", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListCampaigns returns all campaigns the distributor serves.
func (c *Client) ListCampaigns(ctx context.Context) ([]types.CampaignInfo, error) {
	var out []types.CampaignInfo
	if err := c.get(ctx, "/campaigns", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetCampaign returns one campaign by ID.
func (c *Client) GetCampaign(ctx context.Context, campaignID string) (*types.CampaignInfo, error) {
	var out types.CampaignInfo
	if err := c.get(ctx, "/campaigns/"+campaignID, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetProof fetches the membership proof for one recipient index.
func (c *Client) GetProof(ctx context.Context, campaignID string, index uint64) (*types.ProofResponse, error) {
	var out types.ProofResponse
	path := fmt.Sprintf("/proof?campaign_id=%s&index=%d", campaignID, index)
	if err := c.get(ctx, path, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Claim submits a single membership proof. A proof that does not verify comes
// back with Claimed false and the reason in Error, not as a Go error.
func (c *Client) Claim(ctx context.Context, req *types.ClaimRequest) (*types.ClaimResponse, error) {
	c.logger.Sugar().Infow("Submitting claim",
		"campaignId", req.CampaignID, "index", req.Index)

	status, body, err := c.post(ctx, "/claim", req, false)
	if err != nil {
		return nil, err
	}

	// 409 carries the same response shape as success
	if status != http.StatusOK && status != http.StatusConflict {
		return nil, fmt.Errorf("claim failed with status %d: %s", status, strings.TrimSpace(string(body)))
	}

	var out types.ClaimResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to decode claim response: %w", err)
	}
	return &out, nil
}

// BatchClaim submits one multiproof covering several allocations.
func (c *Client) BatchClaim(ctx context.Context, req *types.BatchClaimRequest) (*types.BatchClaimResponse, error) {
	c.logger.Sugar().Infow("Submitting batch claim",
		"campaignId", req.CampaignID, "claims", len(req.Claims))

	status, body, err := c.post(ctx, "/claim/batch", req, false)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK && status != http.StatusConflict {
		return nil, fmt.Errorf("batch claim failed with status %d: %s", status, strings.TrimSpace(string(body)))
	}

	var out types.BatchClaimResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to decode batch claim response: %w", err)
	}
	return &out, nil
}

// CreateCampaign uploads a recipient set for commitment. Admin endpoint.
func (c *Client) CreateCampaign(ctx context.Context, req *types.CreateCampaignRequest) (*types.CampaignInfo, error) {
	c.logger.Sugar().Infow("Creating campaign",
		"name", req.Name, "recipients", len(req.Recipients))

	status, body, err := c.post(ctx, "/admin/campaigns", req, true)
	if err != nil {
		return nil, err
	}
	if status != http.StatusCreated {
		return nil, fmt.Errorf("campaign creation failed with status %d: %s", status, strings.TrimSpace(string(body)))
	}

	var out types.CampaignInfo
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to decode campaign response: %w", err)
	}
	return &out, nil
}

// UpdateRoot stages or activates a signed root rotation. Admin endpoint.
func (c *Client) UpdateRoot(ctx context.Context, req *types.RootUpdateRequest) (*types.RootUpdateResponse, error) {
	c.logger.Sugar().Infow("Updating root",
		"campaignId", req.CampaignID, "version", req.Version, "activate", req.Activate)

	status, body, err := c.post(ctx, "/admin/roots", req, true)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("root update failed with status %d: %s", status, strings.TrimSpace(string(body)))
	}

	var out types.RootUpdateResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to decode root update response: %w", err)
	}
	return &out, nil
}

// ActivateRoot promotes a campaign's staged root. Admin endpoint.
func (c *Client) ActivateRoot(ctx context.Context, campaignID string) (*types.RootUpdateResponse, error) {
	req := struct {
		CampaignID string `json:"campaign_id"`
	}{CampaignID: campaignID}

	status, body, err := c.post(ctx, "/admin/roots/activate", req, true)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("root activation failed with status %d: %s", status, strings.TrimSpace(string(body)))
	}

	var out types.RootUpdateResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to decode root activation response: %w", err)
	}
	return &out, nil
}

// Verify checks an ad-hoc proof without touching claim state. Admin endpoint.
func (c *Client) Verify(ctx context.Context, req *types.VerifyRequest) (*types.VerifyResponse, error) {
	status, body, err := c.post(ctx, "/admin/verify", req, true)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("verification failed with status %d: %s", status, strings.TrimSpace(string(body)))
	}

	var out types.VerifyResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to decode verify response: %w", err)
	}
	return &out, nil
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response from %s: %w", path, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return json.Unmarshal(body, out)
}

func (c *Client) post(ctx context.Context, path string, payload interface{}, admin bool) (int, []byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if admin && c.adminToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.adminToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read response from %s: %w", path, err)
	}

	return resp.StatusCode, body, nil
}
