package chain

import (
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// Block identifier: height and hash
type BlockId struct {
	Height uint32
	Hash   chainhash.Hash
}

func (self BlockId) String() string {
	return fmt.Sprintf("%d:%s", self.Height, self.Hash)
}
