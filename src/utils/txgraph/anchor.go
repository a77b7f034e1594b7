package txgraph

import (
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/warp-contracts/lightsync/src/utils/chain"
)

// Transaction confirmed in a block
type Anchor struct {
	Block            chain.BlockId
	Txid             chainhash.Hash
	ConfirmationTime int64
}

func (self Anchor) String() string {
	return fmt.Sprintf("%s@%s", self.Txid, self.Block)
}

// Lower block first, then txid for determinism
func (self Anchor) Less(other Anchor) bool {
	if self.Block.Height != other.Block.Height {
		return self.Block.Height < other.Block.Height
	}
	return chainhashLess(self.Txid, other.Txid)
}

func chainhashLess(a, b chainhash.Hash) bool {
	for i := chainhash.HashSize - 1; i >= 0; i-- {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}
