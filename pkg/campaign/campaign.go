package campaign

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/papilo-cloud/merkle-tree-airdrop/pkg/merkle"
	"github.com/papilo-cloud/merkle-tree-airdrop/pkg/persistence"
	"github.com/papilo-cloud/merkle-tree-airdrop/pkg/types"
	"github.com/papilo-cloud/merkle-tree-airdrop/pkg/util"
)

// Recipient is one validated allocation of a campaign.
type Recipient struct {
	Index   uint64
	Account common.Address
	Amount  *big.Int
}

// Campaign commits one recipient set to a merkle root and serves membership
// proofs for it. The tree is rebuilt from the recipient list on load, so a
// campaign restored from persistence can serve proofs immediately.
type Campaign struct {
	ID         string
	Name       string
	HashScheme string
	Mode       types.TreeMode
	Recipients []Recipient
	TotalAmount *big.Int
	CreatedAt  int64

	tree   *merkle.Tree
	hasher merkle.Hasher
}

// ParseRecipients validates and converts raw allocation entries. Entries must
// be indexed contiguously from 0, carry valid hex addresses and positive
// amounts, and contain no duplicate accounts.
func ParseRecipients(entries []types.RecipientEntry) ([]Recipient, *big.Int, error) {
	if len(entries) == 0 {
		return nil, nil, fmt.Errorf("recipient set cannot be empty")
	}

	recipients := make([]Recipient, len(entries))
	seenAccounts := make(map[common.Address]uint64, len(entries))
	total := new(big.Int)

	for i, entry := range entries {
		if entry.Index != uint64(i) {
			return nil, nil, fmt.Errorf("recipient %d has index %d, indices must be contiguous from 0", i, entry.Index)
		}

		if !common.IsHexAddress(entry.Account) {
			return nil, nil, fmt.Errorf("recipient %d has invalid address %q", i, entry.Account)
		}
		account := common.HexToAddress(entry.Account)

		if prev, dup := seenAccounts[account]; dup {
			return nil, nil, fmt.Errorf("recipient %d duplicates account %s of recipient %d", i, account.Hex(), prev)
		}
		seenAccounts[account] = entry.Index

		amount, ok := new(big.Int).SetString(entry.Amount, 10)
		if !ok {
			return nil, nil, fmt.Errorf("recipient %d has unparseable amount %q", i, entry.Amount)
		}
		if amount.Sign() <= 0 {
			return nil, nil, fmt.Errorf("recipient %d has non-positive amount %s", i, amount)
		}

		recipients[i] = Recipient{Index: entry.Index, Account: account, Amount: amount}
		total.Add(total, amount)
	}

	return recipients, total, nil
}

// New validates the recipient set, builds the commitment tree and returns a
// campaign ready to serve proofs. An empty scheme selects keccak256; an empty
// mode selects indexed pairing.
func New(name string, scheme string, mode types.TreeMode, entries []types.RecipientEntry) (*Campaign, error) {
	if err := util.ValidateCampaignName(name); err != nil {
		return nil, err
	}

	if scheme == "" {
		scheme = merkle.SchemeKeccak256
	}
	hasher, err := merkle.GetHasher(scheme)
	if err != nil {
		return nil, err
	}

	if mode == "" {
		mode = types.TreeModeIndexed
	}
	if !mode.Valid() {
		return nil, fmt.Errorf("unsupported tree mode %q", mode)
	}

	recipients, total, err := ParseRecipients(entries)
	if err != nil {
		return nil, err
	}

	c := &Campaign{
		ID:          uuid.New().String(),
		Name:        name,
		HashScheme:  scheme,
		Mode:        mode,
		Recipients:  recipients,
		TotalAmount: total,
		CreatedAt:   time.Now().Unix(),
		hasher:      hasher,
	}

	if err := c.buildTree(); err != nil {
		return nil, err
	}

	return c, nil
}

// buildTree hashes every allocation into a leaf and commits the set.
func (c *Campaign) buildTree() error {
	leaves := make([]merkle.Digest, len(c.Recipients))
	for i, r := range c.Recipients {
		data, err := util.PackClaimLeaf(r.Index, r.Account, r.Amount)
		if err != nil {
			return fmt.Errorf("failed to pack leaf for index %d: %w", r.Index, err)
		}
		leaves[i] = c.hasher.HashLeaf(data)
	}

	var (
		tree *merkle.Tree
		err  error
	)
	if c.Mode == types.TreeModeSorted {
		tree, err = merkle.NewSortedTree(c.hasher, leaves)
	} else {
		tree, err = merkle.NewTree(c.hasher, leaves)
	}
	if err != nil {
		return err
	}

	c.tree = tree
	return nil
}

// Root returns the committed merkle root.
func (c *Campaign) Root() merkle.Digest {
	return c.tree.Root
}

// Leaf returns the leaf digest at the given index.
func (c *Campaign) Leaf(index uint64) (merkle.Digest, error) {
	if index >= uint64(len(c.Recipients)) {
		return merkle.Digest{}, fmt.Errorf("index %d out of range, campaign has %d recipients", index, len(c.Recipients))
	}
	return c.tree.Leaves[index], nil
}

// LeafFor rebuilds the leaf digest for an arbitrary allocation tuple. Used by
// claim verification, which must not trust the caller-supplied leaf.
func (c *Campaign) LeafFor(index uint64, account common.Address, amount *big.Int) (merkle.Digest, error) {
	data, err := util.PackClaimLeaf(index, account, amount)
	if err != nil {
		return merkle.Digest{}, err
	}
	return c.hasher.HashLeaf(data), nil
}

// Recipient returns the committed allocation at the given index.
func (c *Campaign) Recipient(index uint64) (*Recipient, error) {
	if index >= uint64(len(c.Recipients)) {
		return nil, fmt.Errorf("index %d out of range, campaign has %d recipients", index, len(c.Recipients))
	}
	r := c.Recipients[index]
	return &r, nil
}

// Prove returns the membership proof for the allocation at the given index.
func (c *Campaign) Prove(index uint64) ([]merkle.Digest, error) {
	if index >= uint64(len(c.Recipients)) {
		return nil, fmt.Errorf("index %d out of range, campaign has %d recipients", index, len(c.Recipients))
	}
	return c.tree.Prove(int(index))
}

// ProveMulti returns one combined proof for the allocations at the given
// indices. Requires a sorted-mode campaign.
func (c *Campaign) ProveMulti(indices []uint64) (*merkle.MultiProof, []merkle.Digest, error) {
	intIndices := make([]int, len(indices))
	for i, idx := range indices {
		if idx >= uint64(len(c.Recipients)) {
			return nil, nil, fmt.Errorf("index %d out of range, campaign has %d recipients", idx, len(c.Recipients))
		}
		intIndices[i] = int(idx)
	}
	return c.tree.ProveMulti(intIndices)
}

// Verifier returns a verifier bound to the campaign's hash scheme.
func (c *Campaign) Verifier() *merkle.Verifier {
	return merkle.NewVerifier(c.hasher)
}

// ToRecord converts the campaign to its persisted form.
func (c *Campaign) ToRecord() *persistence.CampaignRecord {
	entries := make([]types.RecipientEntry, len(c.Recipients))
	for i, r := range c.Recipients {
		entries[i] = types.RecipientEntry{
			Index:   r.Index,
			Account: r.Account.Hex(),
			Amount:  r.Amount.String(),
		}
	}

	return &persistence.CampaignRecord{
		ID:             c.ID,
		Name:           c.Name,
		HashScheme:     c.HashScheme,
		Mode:           string(c.Mode),
		RecipientCount: len(c.Recipients),
		TotalAmount:    c.TotalAmount.String(),
		Root:           c.Root(),
		CreatedAt:      c.CreatedAt,
		Recipients:     entries,
	}
}

// FromRecord rebuilds a campaign, including its tree, from the persisted
// form. The rebuilt root must match the recorded one; a mismatch means the
// stored recipient set was corrupted.
func FromRecord(record *persistence.CampaignRecord) (*Campaign, error) {
	if record == nil {
		return nil, fmt.Errorf("cannot restore nil campaign record")
	}

	hasher, err := merkle.GetHasher(record.HashScheme)
	if err != nil {
		return nil, err
	}

	mode := types.TreeMode(record.Mode)
	if !mode.Valid() {
		return nil, fmt.Errorf("campaign %s has unsupported tree mode %q", record.ID, record.Mode)
	}

	recipients, total, err := ParseRecipients(record.Recipients)
	if err != nil {
		return nil, fmt.Errorf("campaign %s has invalid recipient set: %w", record.ID, err)
	}

	c := &Campaign{
		ID:          record.ID,
		Name:        record.Name,
		HashScheme:  record.HashScheme,
		Mode:        mode,
		Recipients:  recipients,
		TotalAmount: total,
		CreatedAt:   record.CreatedAt,
		hasher:      hasher,
	}

	if err := c.buildTree(); err != nil {
		return nil, err
	}

	if c.Root() != record.Root {
		return nil, fmt.Errorf("campaign %s rebuilt root %s does not match recorded root %s",
			record.ID, c.Root().Hex(), record.Root.Hex())
	}

	return c, nil
}
