package lightclient

import (
	"errors"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/warp-contracts/lightsync/src/utils/chain"
	"github.com/warp-contracts/lightsync/src/utils/txgraph"
	"github.com/warp-contracts/lightsync/src/utils/wallet"
)

// Merges the update into the wallet, all or nothing.
//
// The chain is merged first as a dry run. Anchors are then checked against the
// merged chain: anchors in blocks this update discarded are dropped together with
// transactions left without an anchor, anchors in blocks the chain doesn't know
// fail the whole update. Only then both parts are applied.
// Applying the same update again changes nothing.
func ApplyUpdate(w *wallet.Wallet, update *Update) (changeset wallet.ChangeSet, err error) {
	chainChangeSet, merged, err := w.LocalChain().Preview(update.Checkpoint)
	if err != nil {
		if errors.Is(err, chain.ErrNoPointOfAgreement) {
			return changeset, &ChainInconsistencyError{Err: err}
		}
		return
	}

	graph := txgraph.NewChangeSet()

	// Txid => has an anchor in the merged chain
	anchored := make(map[chainhash.Hash]bool)

	for anchor := range update.Graph.Anchors {
		if _, ok := anchored[anchor.Txid]; !ok {
			anchored[anchor.Txid] = false
		}

		hash, ok := merged.Get(anchor.Block.Height)
		if !ok {
			if removed, ok := chainChangeSet[anchor.Block.Height]; ok && removed == nil {
				// Block discarded by this update
				continue
			}
			return changeset, &ReferentialConsistencyError{Anchor: anchor}
		}
		if hash != anchor.Block.Hash {
			// Block of a different branch
			continue
		}
		graph.AddAnchor(anchor)
		anchored[anchor.Txid] = true
	}

	for txid, tx := range update.Graph.Txs {
		if ok, hasAnchors := anchored[txid]; hasAnchors && !ok {
			continue
		}
		graph.AddTx(tx)
	}

	for txid, seen := range update.Graph.LastSeen {
		if _, ok := graph.Txs[txid]; ok {
			graph.SetLastSeen(txid, seen)
		}
	}

	changeset = wallet.NewChangeSet()
	changeset.Chain = chainChangeSet
	changeset.Graph = graph
	changeset.Indexer.Merge(update.Indexer)

	err = w.ApplyChangeSet(changeset)
	if err != nil {
		return wallet.ChangeSet{}, err
	}

	return
}
