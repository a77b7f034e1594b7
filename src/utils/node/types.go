package node

import (
	"fmt"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// Block the node starts scanning from, or any block it reports
type HeaderCheckpoint struct {
	Height uint32
	Hash   chainhash.Hash
}

func (self HeaderCheckpoint) String() string {
	return fmt.Sprintf("%d:%s", self.Height, self.Hash)
}

// Block with transactions matching the watch-list
type Block struct {
	Height uint32
	Hash   chainhash.Hash
	Time   time.Time
	Txs    []*wire.MsgTx
}

// Output the node should watch for spends
type WatchedOutPoint struct {
	OutPoint wire.OutPoint
	PkScript []byte
}

// Data discovered by the node in one scan cycle
type Update struct {
	// Best block known to the node
	Tip HeaderCheckpoint

	// Blocks the node vouches for, in ascending height order.
	// Includes the tip and every block in Blocks.
	Headers []HeaderCheckpoint

	// Blocks with matching transactions, ascending
	Blocks []Block
}
