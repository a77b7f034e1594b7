package chain

import (
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// Checkpoint is an immutable element of a singly linked chain of blocks.
// Heights strictly decrease when walking towards genesis.
// Checkpoints are shared between goroutines, they are never modified after creation.
type Checkpoint struct {
	block BlockId
	prev  *Checkpoint
}

func NewCheckpoint(block BlockId) *Checkpoint {
	return &Checkpoint{block: block}
}

// Builds a chain from blocks sorted by height, ascending
func FromBlockIds(blocks []BlockId) (tip *Checkpoint, err error) {
	if len(blocks) == 0 {
		return nil, ErrEmptyCheckpoint
	}
	tip = NewCheckpoint(blocks[0])
	return tip.Extend(blocks[1:])
}

func (self *Checkpoint) Height() uint32 {
	return self.block.Height
}

func (self *Checkpoint) Hash() chainhash.Hash {
	return self.block.Hash
}

func (self *Checkpoint) BlockId() BlockId {
	return self.block
}

// Parent checkpoint, nil for the last one
func (self *Checkpoint) Prev() *Checkpoint {
	return self.prev
}

// Returns a new checkpoint on top of this one
func (self *Checkpoint) Push(block BlockId) (*Checkpoint, error) {
	if block.Height <= self.block.Height {
		return nil, fmt.Errorf("%w: %d on top of %d", ErrNonIncreasingHeight, block.Height, self.block.Height)
	}
	return &Checkpoint{block: block, prev: self}, nil
}

// Pushes blocks sorted by height, ascending
func (self *Checkpoint) Extend(blocks []BlockId) (tip *Checkpoint, err error) {
	tip = self
	for _, block := range blocks {
		tip, err = tip.Push(block)
		if err != nil {
			return nil, err
		}
	}
	return
}

// Finds the checkpoint at the given height
func (self *Checkpoint) Get(height uint32) *Checkpoint {
	for cp := self; cp != nil; cp = cp.prev {
		if cp.block.Height == height {
			return cp
		}
		if cp.block.Height < height {
			break
		}
	}
	return nil
}

// Visits checkpoints from this one towards genesis, stops when f returns false
func (self *Checkpoint) Iterate(f func(cp *Checkpoint) bool) {
	for cp := self; cp != nil; cp = cp.prev {
		if !f(cp) {
			return
		}
	}
}

// Blocks of the chain sorted by height, ascending
func (self *Checkpoint) BlockIds() (out []BlockId) {
	self.Iterate(func(cp *Checkpoint) bool {
		out = append(out, cp.block)
		return true
	})
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return
}

func (self *Checkpoint) String() string {
	return self.block.String()
}
