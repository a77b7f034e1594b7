package node

import (
	"github.com/btcsuite/btcd/chaincfg"
)

// Everything a node needs to scan for the wallet
type Config struct {
	Network *chaincfg.Params
	Peers   *TrustedPeerSet

	// Peers are only the starting point, others may be found through DNS seeds
	Discovery bool

	// Output scripts to look for
	Scripts [][]byte

	// Wallet outputs whose spends should be reported
	Outpoints []WatchedOutPoint

	// Scanning starts right after this block
	Anchor HeaderCheckpoint

	// Wallet blocks the node should report its own hashes for,
	// so that updates connect to the wallet's chain
	Locators []uint32

	// Minimum number of connected peers before scanning
	RequiredPeers uint8

	// Node database location, empty means a temporary directory
	DataDir string

	// Capacity of the update channel
	UpdateBuffer int
}
