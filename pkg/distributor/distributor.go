package distributor

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/papilo-cloud/merkle-tree-airdrop/pkg/campaign"
	"github.com/papilo-cloud/merkle-tree-airdrop/pkg/merkle"
	"github.com/papilo-cloud/merkle-tree-airdrop/pkg/persistence"
	"github.com/papilo-cloud/merkle-tree-airdrop/pkg/rootstore"
	"github.com/papilo-cloud/merkle-tree-airdrop/pkg/types"
)

var (
	// ErrUnknownCampaign is returned when the campaign ID resolves to nothing.
	ErrUnknownCampaign = errors.New("unknown campaign")

	// ErrInvalidProof is returned when a well-formed proof does not verify
	// against the active root. Malformed multiproofs surface the structural
	// error from the verifier instead.
	ErrInvalidProof = errors.New("membership proof does not verify against the active root")

	// ErrAlreadyClaimed is returned when the allocation's claim bit is
	// already set.
	ErrAlreadyClaimed = errors.New("allocation already claimed")
)

// Distributor orchestrates claim verification across campaigns. It resolves
// the campaign and its active root, rebuilds the leaf from the caller-supplied
// allocation tuple, verifies the proof, and flips the claim bit exactly once.
type Distributor struct {
	registry *campaign.Registry
	roots    *rootstore.Store
	store    persistence.IDistributorPersistence
	events   *EventBus
	logger   *zap.Logger

	mu        sync.Mutex
	claimSets map[string]*ClaimSet
}

func NewDistributor(
	registry *campaign.Registry,
	roots *rootstore.Store,
	store persistence.IDistributorPersistence,
	events *EventBus,
	logger *zap.Logger,
) *Distributor {
	return &Distributor{
		registry:  registry,
		roots:     roots,
		store:     store,
		events:    events,
		logger:    logger,
		claimSets: make(map[string]*ClaimSet),
	}
}

// LoadState restores campaigns, root versions and claim bitmaps from
// persistence. Called once at startup before the server begins serving.
func (d *Distributor) LoadState() error {
	records, err := d.store.ListCampaigns()
	if err != nil {
		return fmt.Errorf("failed to list persisted campaigns: %w", err)
	}

	for _, record := range records {
		c, err := campaign.FromRecord(record)
		if err != nil {
			return fmt.Errorf("failed to restore campaign %s: %w", record.ID, err)
		}
		if err := d.registry.Add(c); err != nil {
			return err
		}

		versions, err := d.store.ListRootVersions(c.ID)
		if err != nil {
			return fmt.Errorf("failed to list root versions for campaign %s: %w", c.ID, err)
		}
		activeVersion, err := d.store.GetActiveRootVersion(c.ID)
		if err != nil {
			return fmt.Errorf("failed to load active root version for campaign %s: %w", c.ID, err)
		}
		for _, v := range versions {
			if err := d.roots.AddVersion(&rootstore.RootVersion{
				CampaignID:  v.CampaignID,
				Version:     v.Version,
				Root:        v.Root,
				ActivatedAt: v.ActivatedAt,
				IsActive:    v.Version == activeVersion,
			}); err != nil {
				return fmt.Errorf("failed to restore root version %d for campaign %s: %w", v.Version, c.ID, err)
			}
		}

		bitmap, err := d.store.GetClaimBitmap(c.ID)
		if err != nil {
			return fmt.Errorf("failed to load claim bitmap for campaign %s: %w", c.ID, err)
		}
		cs, err := RestoreClaimSet(bitmap)
		if err != nil {
			return fmt.Errorf("campaign %s: %w", c.ID, err)
		}
		d.mu.Lock()
		d.claimSets[c.ID] = cs
		d.mu.Unlock()

		d.logger.Sugar().Infow("Restored campaign",
			"campaignId", c.ID,
			"name", c.Name,
			"recipients", len(c.Recipients),
			"claimed", cs.Count(),
		)
	}

	return nil
}

// CreateCampaign commits a recipient set, persists it and registers root
// version 1 as active.
func (d *Distributor) CreateCampaign(ctx context.Context, req *types.CreateCampaignRequest) (*campaign.Campaign, error) {
	c, err := campaign.New(req.Name, req.HashScheme, req.Mode, req.Recipients)
	if err != nil {
		return nil, err
	}

	if err := d.store.SaveCampaign(c.ToRecord()); err != nil {
		return nil, fmt.Errorf("failed to persist campaign: %w", err)
	}
	if err := d.registry.Add(c); err != nil {
		return nil, err
	}

	rv := &rootstore.RootVersion{
		CampaignID: c.ID,
		Version:    1,
		Root:       c.Root(),
		IsActive:   true,
	}
	if err := d.roots.AddVersion(rv); err != nil {
		return nil, err
	}
	if err := d.persistRootVersion(rv); err != nil {
		return nil, err
	}

	d.mu.Lock()
	d.claimSets[c.ID] = NewClaimSet()
	d.mu.Unlock()

	d.logger.Sugar().Infow("Created campaign",
		"campaignId", c.ID,
		"name", c.Name,
		"scheme", c.HashScheme,
		"mode", c.Mode,
		"recipients", len(c.Recipients),
		"root", c.Root().Hex(),
	)

	d.events.PublishRoot(ctx, &types.RootEvent{
		CampaignID:  c.ID,
		Version:     rv.Version,
		Root:        rv.Root,
		ActivatedAt: rv.ActivatedAt,
	})

	return c, nil
}

// Claim verifies a single membership proof and marks the allocation claimed.
// The leaf is rebuilt from the request tuple; the caller never supplies a
// leaf digest directly.
func (d *Distributor) Claim(ctx context.Context, req *types.ClaimRequest) (*persistence.ClaimRecord, error) {
	c := d.registry.Get(req.CampaignID)
	if c == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCampaign, req.CampaignID)
	}

	root, rootVersion, err := d.roots.GetActiveRoot(c.ID)
	if err != nil {
		return nil, err
	}

	account, amount, err := parseAllocation(req.Account, req.Amount)
	if err != nil {
		return nil, err
	}

	leaf, err := c.LeafFor(req.Index, account, amount)
	if err != nil {
		return nil, err
	}

	verifier := c.Verifier()
	var valid bool
	if c.Mode == types.TreeModeSorted {
		valid = verifier.Verify(req.Proof, root, leaf)
	} else {
		valid = verifier.VerifyWithIndex(req.Proof, root, leaf, req.Index)
	}
	if !valid {
		d.logger.Sugar().Infow("Rejected claim with invalid proof",
			"campaignId", c.ID, "index", req.Index, "account", account.Hex())
		return nil, fmt.Errorf("%w: campaign %s index %d", ErrInvalidProof, c.ID, req.Index)
	}

	cs := d.claimSetFor(c.ID)
	if !cs.TestAndClaim(req.Index) {
		return nil, fmt.Errorf("%w: campaign %s index %d", ErrAlreadyClaimed, c.ID, req.Index)
	}

	record := &persistence.ClaimRecord{
		CampaignID:  c.ID,
		Index:       req.Index,
		Account:     account.Hex(),
		Amount:      amount.String(),
		LeafHash:    leaf,
		RootVersion: rootVersion,
		ClaimedAt:   time.Now().Unix(),
	}
	if err := d.persistClaim(record, cs); err != nil {
		return nil, err
	}

	d.logger.Sugar().Infow("Honored claim",
		"campaignId", c.ID,
		"index", req.Index,
		"account", account.Hex(),
		"amount", amount.String(),
		"rootVersion", rootVersion,
	)

	d.events.PublishClaim(ctx, &types.ClaimEvent{
		CampaignID: c.ID,
		Index:      req.Index,
		Account:    account,
		Amount:     amount,
		LeafHash:   leaf,
		ClaimedAt:  record.ClaimedAt,
	})

	return record, nil
}

// BatchClaim verifies one multiproof covering several allocations and marks
// them all claimed, or none of them. Requires a sorted-mode campaign.
func (d *Distributor) BatchClaim(ctx context.Context, req *types.BatchClaimRequest) (int, error) {
	c := d.registry.Get(req.CampaignID)
	if c == nil {
		return 0, fmt.Errorf("%w: %s", ErrUnknownCampaign, req.CampaignID)
	}
	if c.Mode != types.TreeModeSorted {
		return 0, fmt.Errorf("campaign %s uses indexed pairing, batch claims require a sorted-mode campaign", c.ID)
	}
	if len(req.Claims) == 0 {
		return 0, fmt.Errorf("batch claim must cover at least one allocation")
	}

	root, rootVersion, err := d.roots.GetActiveRoot(c.ID)
	if err != nil {
		return 0, err
	}

	accounts := make([]common.Address, len(req.Claims))
	amounts := make([]*big.Int, len(req.Claims))
	leaves := make([]merkle.Digest, len(req.Claims))
	indices := make([]uint64, len(req.Claims))
	for i, entry := range req.Claims {
		account, amount, err := parseAllocation(entry.Account, entry.Amount)
		if err != nil {
			return 0, fmt.Errorf("claim %d: %w", i, err)
		}
		leaf, err := c.LeafFor(entry.Index, account, amount)
		if err != nil {
			return 0, fmt.Errorf("claim %d: %w", i, err)
		}
		accounts[i] = account
		amounts[i] = amount
		leaves[i] = leaf
		indices[i] = entry.Index
	}

	valid, err := c.Verifier().VerifyMultiProof(&req.MultiProof, root, leaves)
	if err != nil {
		return 0, err
	}
	if !valid {
		d.logger.Sugar().Infow("Rejected batch claim with invalid multiproof",
			"campaignId", c.ID, "claims", len(req.Claims))
		return 0, fmt.Errorf("%w: campaign %s batch of %d", ErrInvalidProof, c.ID, len(req.Claims))
	}

	cs := d.claimSetFor(c.ID)
	if dup, ok := cs.TestAndClaimAll(indices); !ok {
		return 0, fmt.Errorf("%w: campaign %s index %d", ErrAlreadyClaimed, c.ID, dup)
	}

	claimedAt := time.Now().Unix()
	for i := range req.Claims {
		record := &persistence.ClaimRecord{
			CampaignID:  c.ID,
			Index:       indices[i],
			Account:     accounts[i].Hex(),
			Amount:      amounts[i].String(),
			LeafHash:    leaves[i],
			RootVersion: rootVersion,
			ClaimedAt:   claimedAt,
		}
		if err := d.persistClaim(record, cs); err != nil {
			return 0, err
		}

		d.events.PublishClaim(ctx, &types.ClaimEvent{
			CampaignID: c.ID,
			Index:      indices[i],
			Account:    accounts[i],
			Amount:     amounts[i],
			LeafHash:   leaves[i],
			ClaimedAt:  claimedAt,
		})
	}

	d.logger.Sugar().Infow("Honored batch claim",
		"campaignId", c.ID,
		"claims", len(req.Claims),
		"rootVersion", rootVersion,
	)

	return len(req.Claims), nil
}

// Proof returns the membership proof for one allocation along with the
// active root it currently verifies against.
func (d *Distributor) Proof(campaignID string, index uint64) (*types.ProofResponse, error) {
	c := d.registry.Get(campaignID)
	if c == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCampaign, campaignID)
	}

	root, rootVersion, err := d.roots.GetActiveRoot(c.ID)
	if err != nil {
		return nil, err
	}

	recipient, err := c.Recipient(index)
	if err != nil {
		return nil, err
	}
	proof, err := c.Prove(index)
	if err != nil {
		return nil, err
	}
	leaf, err := c.Leaf(index)
	if err != nil {
		return nil, err
	}

	return &types.ProofResponse{
		CampaignID:  c.ID,
		Index:       index,
		Account:     recipient.Account.Hex(),
		Amount:      recipient.Amount.String(),
		LeafHash:    leaf,
		Root:        root,
		RootVersion: rootVersion,
		Proof:       proof,
	}, nil
}

// UpdateRoot applies a signed root rotation, either staging or activating
// the new version.
func (d *Distributor) UpdateRoot(ctx context.Context, req *types.RootUpdateRequest) (*rootstore.RootVersion, error) {
	if d.registry.Get(req.CampaignID) == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCampaign, req.CampaignID)
	}

	rv, err := d.roots.ApplySignedUpdate(req.CampaignID, req.Version, req.Root, common.FromHex(req.Signature), req.Activate)
	if err != nil {
		return nil, err
	}

	if err := d.persistRootVersion(rv); err != nil {
		return nil, err
	}

	if rv.IsActive {
		d.events.PublishRoot(ctx, &types.RootEvent{
			CampaignID:  rv.CampaignID,
			Version:     rv.Version,
			Root:        rv.Root,
			ActivatedAt: rv.ActivatedAt,
		})
	}

	return rv, nil
}

// ActivatePendingRoot promotes a previously staged root version.
func (d *Distributor) ActivatePendingRoot(ctx context.Context, campaignID string) (*rootstore.RootVersion, error) {
	rv, err := d.roots.ActivatePendingVersion(campaignID)
	if err != nil {
		return nil, err
	}

	if err := d.persistRootVersion(rv); err != nil {
		return nil, err
	}

	d.events.PublishRoot(ctx, &types.RootEvent{
		CampaignID:  rv.CampaignID,
		Version:     rv.Version,
		Root:        rv.Root,
		ActivatedAt: rv.ActivatedAt,
	})

	return rv, nil
}

// VerifyAdHoc checks a proof against an arbitrary root without touching any
// claim state. A nil index selects commutative verification.
func (d *Distributor) VerifyAdHoc(req *types.VerifyRequest) (bool, error) {
	scheme := req.Scheme
	if scheme == "" {
		scheme = merkle.SchemeKeccak256
	}
	hasher, err := merkle.GetHasher(scheme)
	if err != nil {
		return false, err
	}

	verifier := merkle.NewVerifier(hasher)
	if req.Index != nil {
		return verifier.VerifyWithIndex(req.Proof, req.Root, req.Leaf, *req.Index), nil
	}
	return verifier.Verify(req.Proof, req.Root, req.Leaf), nil
}

// CampaignInfo summarizes one campaign including its claim progress.
func (d *Distributor) CampaignInfo(campaignID string) (*types.CampaignInfo, error) {
	c := d.registry.Get(campaignID)
	if c == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCampaign, campaignID)
	}
	info := d.infoFor(c)
	return &info, nil
}

// ListCampaigns summarizes all registered campaigns.
func (d *Distributor) ListCampaigns() []types.CampaignInfo {
	campaigns := d.registry.List()
	out := make([]types.CampaignInfo, len(campaigns))
	for i, c := range campaigns {
		out[i] = d.infoFor(c)
	}
	return out
}

// IsClaimed reports whether the allocation's claim bit is set.
func (d *Distributor) IsClaimed(campaignID string, index uint64) bool {
	return d.claimSetFor(campaignID).IsClaimed(index)
}

// CampaignCount returns the number of registered campaigns.
func (d *Distributor) CampaignCount() int {
	return d.registry.Count()
}

// MirrorChainClaim marks an allocation claimed in response to an on-chain
// claim event. Already-set bits are ignored so local and mirrored claims
// converge.
func (d *Distributor) MirrorChainClaim(ctx context.Context, event *types.ClaimEvent) error {
	c := d.registry.Get(event.CampaignID)
	if c == nil {
		return fmt.Errorf("%w: %s", ErrUnknownCampaign, event.CampaignID)
	}

	cs := d.claimSetFor(c.ID)
	if !cs.TestAndClaim(event.Index) {
		d.logger.Sugar().Debugw("Chain claim already recorded",
			"campaignId", c.ID, "index", event.Index)
		return nil
	}

	_, rootVersion, err := d.roots.GetActiveRoot(c.ID)
	if err != nil {
		rootVersion = 0
	}

	record := &persistence.ClaimRecord{
		CampaignID:  c.ID,
		Index:       event.Index,
		Account:     event.Account.Hex(),
		Amount:      event.Amount.String(),
		LeafHash:    event.LeafHash,
		RootVersion: rootVersion,
		ClaimedAt:   event.ClaimedAt,
		OnChain:     true,
	}
	if err := d.persistClaim(record, cs); err != nil {
		return err
	}

	d.logger.Sugar().Infow("Mirrored chain claim",
		"campaignId", c.ID, "index", event.Index, "account", event.Account.Hex())

	d.events.PublishClaim(ctx, event)
	return nil
}

// MirrorChainRoot activates a root version announced on chain.
func (d *Distributor) MirrorChainRoot(ctx context.Context, event *types.RootEvent) error {
	if d.registry.Get(event.CampaignID) == nil {
		return fmt.Errorf("%w: %s", ErrUnknownCampaign, event.CampaignID)
	}

	rv := &rootstore.RootVersion{
		CampaignID:  event.CampaignID,
		Version:     event.Version,
		Root:        event.Root,
		ActivatedAt: event.ActivatedAt,
		IsActive:    true,
	}
	if err := d.roots.AddVersion(rv); err != nil {
		return err
	}
	if err := d.persistRootVersion(rv); err != nil {
		return err
	}

	d.logger.Sugar().Infow("Mirrored chain root rotation",
		"campaignId", event.CampaignID, "version", event.Version, "root", event.Root.Hex())

	d.events.PublishRoot(ctx, event)
	return nil
}

func (d *Distributor) infoFor(c *campaign.Campaign) types.CampaignInfo {
	info := types.CampaignInfo{
		ID:             c.ID,
		Name:           c.Name,
		HashScheme:     c.HashScheme,
		Mode:           c.Mode,
		RecipientCount: len(c.Recipients),
		TotalAmount:    c.TotalAmount.String(),
		Root:           c.Root(),
		ClaimedCount:   d.claimSetFor(c.ID).Count(),
		CreatedAt:      c.CreatedAt,
	}
	if active := d.roots.GetActiveVersion(c.ID); active != nil {
		info.Root = active.Root
		info.RootVersion = active.Version
	}
	return info
}

func (d *Distributor) claimSetFor(campaignID string) *ClaimSet {
	d.mu.Lock()
	defer d.mu.Unlock()

	cs := d.claimSets[campaignID]
	if cs == nil {
		cs = NewClaimSet()
		d.claimSets[campaignID] = cs
	}
	return cs
}

// persistClaim writes the claim record and a fresh bitmap snapshot.
func (d *Distributor) persistClaim(record *persistence.ClaimRecord, cs *ClaimSet) error {
	if err := d.store.SaveClaim(record); err != nil {
		return fmt.Errorf("failed to persist claim for campaign %s index %d: %w",
			record.CampaignID, record.Index, err)
	}

	snapshot, err := cs.Snapshot()
	if err != nil {
		return err
	}
	if err := d.store.SaveClaimBitmap(record.CampaignID, snapshot); err != nil {
		return fmt.Errorf("failed to persist claim bitmap for campaign %s: %w", record.CampaignID, err)
	}
	return nil
}

func (d *Distributor) persistRootVersion(rv *rootstore.RootVersion) error {
	if err := d.store.SaveRootVersion(&persistence.RootVersionRecord{
		CampaignID:  rv.CampaignID,
		Version:     rv.Version,
		Root:        rv.Root,
		ActivatedAt: rv.ActivatedAt,
		IsActive:    rv.IsActive,
	}); err != nil {
		return fmt.Errorf("failed to persist root version %d for campaign %s: %w", rv.Version, rv.CampaignID, err)
	}

	if rv.IsActive {
		if err := d.store.SetActiveRootVersion(rv.CampaignID, rv.Version); err != nil {
			return fmt.Errorf("failed to persist active root version for campaign %s: %w", rv.CampaignID, err)
		}
	}
	return nil
}

func parseAllocation(accountHex string, amountStr string) (common.Address, *big.Int, error) {
	if !common.IsHexAddress(accountHex) {
		return common.Address{}, nil, fmt.Errorf("invalid account address %q", accountHex)
	}
	amount, ok := new(big.Int).SetString(amountStr, 10)
	if !ok || amount.Sign() <= 0 {
		return common.Address{}, nil, fmt.Errorf("invalid amount %q", amountStr)
	}
	return common.HexToAddress(accountHex), amount, nil
}
