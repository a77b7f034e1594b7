package chain

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Changes of the local chain. A nil hash means the block at this height got removed.
type ChangeSet map[uint32]*chainhash.Hash

func (self ChangeSet) IsEmpty() bool {
	return len(self) == 0
}

// Newer changes override older ones
func (self ChangeSet) Merge(other ChangeSet) {
	for height, hash := range other {
		self[height] = hash
	}
}

// Heights in ascending order
func (self ChangeSet) Heights() []uint32 {
	heights := maps.Keys(self)
	slices.Sort(heights)
	return heights
}
