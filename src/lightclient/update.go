package lightclient

import (
	"github.com/rs/xid"

	"github.com/warp-contracts/lightsync/src/utils/chain"
	"github.com/warp-contracts/lightsync/src/utils/keychain"
	"github.com/warp-contracts/lightsync/src/utils/txgraph"
)

// New chain tip and the transaction data found since the previous update
type Update struct {
	Session xid.ID

	// Blocks vouched for by the node, connecting to the wallet's chain
	Checkpoint *chain.Checkpoint

	// Transactions paying to or spending from the wallet, anchored in their blocks
	Graph txgraph.ChangeSet

	// Scripts used by the transactions above the last revealed index
	Indexer keychain.ChangeSet
}
