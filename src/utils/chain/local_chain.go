package chain

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// LocalChain is the wallet's view of the best chain.
// It always contains the genesis block at height 0.
// Not safe for concurrent use, the wallet owns it.
type LocalChain struct {
	tip    *Checkpoint
	blocks map[uint32]chainhash.Hash
}

func NewFromGenesis(genesis chainhash.Hash) (self *LocalChain, changeset ChangeSet) {
	self = &LocalChain{
		tip:    NewCheckpoint(BlockId{Height: 0, Hash: genesis}),
		blocks: map[uint32]chainhash.Hash{0: genesis},
	}
	changeset = ChangeSet{0: &genesis}
	return
}

// Restores the chain from an aggregated changeset
func FromChangeSet(changeset ChangeSet) (self *LocalChain, err error) {
	self = &LocalChain{blocks: make(map[uint32]chainhash.Hash)}
	err = self.ApplyChangeSet(changeset)
	if err != nil {
		return nil, err
	}
	return
}

func fromBlocks(blocks map[uint32]chainhash.Hash) (self *LocalChain, err error) {
	if _, ok := blocks[0]; !ok {
		return nil, ErrMissingGenesis
	}

	heights := maps.Keys(blocks)
	slices.Sort(heights)

	ids := make([]BlockId, 0, len(heights))
	for _, height := range heights {
		ids = append(ids, BlockId{Height: height, Hash: blocks[height]})
	}

	tip, err := FromBlockIds(ids)
	if err != nil {
		return
	}

	return &LocalChain{tip: tip, blocks: blocks}, nil
}

func (self *LocalChain) Tip() *Checkpoint {
	return self.tip
}

func (self *LocalChain) Genesis() chainhash.Hash {
	return self.blocks[0]
}

// Hash of the block at height, if the chain has it
func (self *LocalChain) Get(height uint32) (hash chainhash.Hash, ok bool) {
	hash, ok = self.blocks[height]
	return
}

// Is the block part of this chain
func (self *LocalChain) Contains(block BlockId) bool {
	hash, ok := self.blocks[block.Height]
	return ok && hash == block.Hash
}

func (self *LocalChain) Len() int {
	return len(self.blocks)
}

// Changeset that recreates the whole chain
func (self *LocalChain) InitialChangeSet() ChangeSet {
	out := make(ChangeSet, len(self.blocks))
	for height, hash := range self.blocks {
		hash := hash
		out[height] = &hash
	}
	return out
}

func (self *LocalChain) ApplyChangeSet(changeset ChangeSet) (err error) {
	if changeset.IsEmpty() {
		return
	}

	blocks := maps.Clone(self.blocks)
	for height, hash := range changeset {
		if hash == nil {
			if height == 0 {
				return ErrGenesisRemoval
			}
			delete(blocks, height)
			continue
		}
		blocks[height] = *hash
	}

	applied, err := fromBlocks(blocks)
	if err != nil {
		return
	}

	*self = *applied
	return
}

// Merges the update into the chain
func (self *LocalChain) ApplyUpdate(update *Checkpoint) (changeset ChangeSet, err error) {
	changeset, merged, err := self.Preview(update)
	if err != nil {
		return
	}

	*self = *merged
	return
}

// Computes the result of merging the update without modifying the chain.
//
// The point of agreement is the highest height both chains have with the same hash.
// The divergence is the lowest height both chains have with different hashes.
// When there is a divergence, local blocks at or above it are dropped and
// blocks below it stay untouched. All blocks of the update are adopted.
func (self *LocalChain) Preview(update *Checkpoint) (changeset ChangeSet, merged *LocalChain, err error) {
	if update == nil {
		return nil, nil, ErrEmptyCheckpoint
	}

	updateBlocks := update.BlockIds()

	var (
		divergence                  uint32
		hasAgreement, hasDivergence bool
	)
	for _, block := range updateBlocks {
		original, ok := self.blocks[block.Height]
		if !ok {
			continue
		}
		if original != block.Hash {
			if !hasDivergence {
				divergence, hasDivergence = block.Height, true
			}
			continue
		}
		if !hasDivergence {
			hasAgreement = true
		}
	}

	if !hasAgreement {
		// Nothing in common below the divergence (or at all)
		limit := updateBlocks[0].Height
		if hasDivergence {
			limit = divergence
		}
		return nil, nil, &CannotConnectError{TryIncludeHeight: self.highestBelow(limit)}
	}

	changeset = make(ChangeSet)
	blocks := maps.Clone(self.blocks)

	if hasDivergence {
		for height := range self.blocks {
			if height >= divergence {
				delete(blocks, height)
				changeset[height] = nil
			}
		}
	}

	for _, block := range updateBlocks {
		hash := block.Hash
		blocks[block.Height] = hash
		if original, ok := self.blocks[block.Height]; ok && original == hash {
			// Present before and after, not a change
			delete(changeset, block.Height)
			continue
		}
		changeset[block.Height] = &hash
	}

	merged, err = fromBlocks(blocks)
	if err != nil {
		return nil, nil, err
	}

	return
}

// Highest local height strictly below the limit, genesis if there's none
func (self *LocalChain) highestBelow(limit uint32) (out uint32) {
	self.tip.Iterate(func(cp *Checkpoint) bool {
		if cp.Height() < limit {
			out = cp.Height()
			return false
		}
		return true
	})
	return
}
