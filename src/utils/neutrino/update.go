package neutrino

import (
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"golang.org/x/exp/slices"

	"github.com/warp-contracts/lightsync/src/utils/node"
)

// Block hashes of the node's best chain, ChainService satisfies it
type blockHashes interface {
	GetBlockHash(height int64) (*chainhash.Hash, error)
}

// Assembles updates out of scanned blocks.
// The first update carries the node's hashes at the wallet's locator heights,
// every later one connects through the tip of the previous update.
type updater struct {
	hashes   blockHashes
	anchor   node.HeaderCheckpoint
	locators []uint32
}

func newUpdater(hashes blockHashes, anchor node.HeaderCheckpoint, locators []uint32) *updater {
	return &updater{
		hashes:   hashes,
		anchor:   anchor,
		locators: slices.Clone(locators),
	}
}

func (self *updater) next(tip node.HeaderCheckpoint, blocks []node.Block) (update *node.Update, err error) {
	update = &node.Update{Tip: tip, Blocks: blocks}

	headers := make(map[uint32]node.HeaderCheckpoint)
	headers[tip.Height] = tip
	for _, block := range blocks {
		headers[block.Height] = node.HeaderCheckpoint{Height: block.Height, Hash: block.Hash}
	}

	heights := slices.Clone(self.locators)
	if self.anchor.Height <= tip.Height {
		heights = append(heights, self.anchor.Height)
	}

	for _, height := range heights {
		if height > tip.Height {
			continue
		}
		if _, ok := headers[height]; ok {
			continue
		}
		var hash *chainhash.Hash
		hash, err = self.hashes.GetBlockHash(int64(height))
		if err != nil {
			return nil, fmt.Errorf("failed to get block hash at %d: %w", height, err)
		}
		headers[height] = node.HeaderCheckpoint{Height: height, Hash: *hash}
	}

	update.Headers = sortedHeaders(headers)
	self.locators = []uint32{tip.Height}
	return
}

func sortedHeaders(headers map[uint32]node.HeaderCheckpoint) []node.HeaderCheckpoint {
	out := make([]node.HeaderCheckpoint, 0, len(headers))
	for _, header := range headers {
		out = append(out, header)
	}
	slices.SortFunc(out, func(a, b node.HeaderCheckpoint) int {
		return int(a.Height) - int(b.Height)
	})
	return out
}
