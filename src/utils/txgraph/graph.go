package txgraph

import (
	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/warp-contracts/lightsync/src/utils/chain"
	"github.com/warp-contracts/lightsync/src/utils/keychain"
)

// Tells whether a block is part of the best chain
type ChainOracle interface {
	Contains(block chain.BlockId) bool
	Tip() *chain.Checkpoint
}

// Tells whether an output script belongs to the wallet
type ScriptOwner interface {
	Lookup(script []byte) (keychain.ScriptIndex, bool)
}

// Where a transaction sits relative to the best chain
type Position struct {
	Confirmed bool
	Anchor    Anchor
	LastSeen  int64
}

// Wallet output of a canonical transaction
type LocalOutput struct {
	OutPoint    wire.OutPoint
	TxOut       *wire.TxOut
	ScriptIndex keychain.ScriptIndex
	Position    Position
	IsCoinbase  bool
	SpentBy     *chainhash.Hash
}

// Append only store of transactions and where they were seen.
// Nothing is ever removed, the view of the chain decides what counts.
type TxGraph struct {
	txs      map[chainhash.Hash]*wire.MsgTx
	anchors  map[chainhash.Hash]map[Anchor]struct{}
	lastSeen map[chainhash.Hash]int64

	// Transactions spending each outpoint
	spends map[wire.OutPoint]map[chainhash.Hash]struct{}
}

func New() *TxGraph {
	return &TxGraph{
		txs:      make(map[chainhash.Hash]*wire.MsgTx),
		anchors:  make(map[chainhash.Hash]map[Anchor]struct{}),
		lastSeen: make(map[chainhash.Hash]int64),
		spends:   make(map[wire.OutPoint]map[chainhash.Hash]struct{}),
	}
}

// Union of the changeset into the graph. Applying the same changeset again changes nothing.
func (self *TxGraph) ApplyChangeSet(changeset ChangeSet) {
	for txid, tx := range changeset.Txs {
		if _, ok := self.txs[txid]; ok {
			continue
		}
		self.txs[txid] = tx
		if blockchain.IsCoinBaseTx(tx) {
			continue
		}
		for _, in := range tx.TxIn {
			spenders, ok := self.spends[in.PreviousOutPoint]
			if !ok {
				spenders = make(map[chainhash.Hash]struct{})
				self.spends[in.PreviousOutPoint] = spenders
			}
			spenders[txid] = struct{}{}
		}
	}

	for anchor := range changeset.Anchors {
		anchors, ok := self.anchors[anchor.Txid]
		if !ok {
			anchors = make(map[Anchor]struct{})
			self.anchors[anchor.Txid] = anchors
		}
		anchors[anchor] = struct{}{}
	}

	for txid, seen := range changeset.LastSeen {
		if current, ok := self.lastSeen[txid]; !ok || seen > current {
			self.lastSeen[txid] = seen
		}
	}
}

// Changeset that recreates the whole graph
func (self *TxGraph) InitialChangeSet() ChangeSet {
	changeset := NewChangeSet()
	for _, tx := range self.txs {
		changeset.AddTx(tx)
	}
	for _, anchors := range self.anchors {
		for anchor := range anchors {
			changeset.AddAnchor(anchor)
		}
	}
	for txid, seen := range self.lastSeen {
		changeset.SetLastSeen(txid, seen)
	}
	return changeset
}

func (self *TxGraph) Tx(txid chainhash.Hash) (tx *wire.MsgTx, ok bool) {
	tx, ok = self.txs[txid]
	return
}

func (self *TxGraph) Len() int {
	return len(self.txs)
}

// Anchors of the transaction, lowest block first
func (self *TxGraph) Anchors(txid chainhash.Hash) []Anchor {
	out := maps.Keys(self.anchors[txid])
	slices.SortFunc(out, func(a, b Anchor) int {
		if a.Less(b) {
			return -1
		}
		if b.Less(a) {
			return 1
		}
		return 0
	})
	return out
}

// Picks transactions that are consistent with the best chain.
//
// Transactions anchored in a block of the chain are confirmed.
// The rest is pending, unless it conflicts with a confirmed transaction,
// loses a conflict with a more recently seen pending one, or spends an output
// of a transaction that isn't canonical.
func (self *TxGraph) Canonical(oracle ChainOracle) map[chainhash.Hash]Position {
	positions := make(map[chainhash.Hash]Position, len(self.txs))
	claimed := make(map[wire.OutPoint]chainhash.Hash)

	var pending []chainhash.Hash
	for txid := range self.txs {
		if anchor, ok := self.confirmedAnchor(oracle, txid); ok {
			positions[txid] = Position{Confirmed: true, Anchor: anchor, LastSeen: self.lastSeen[txid]}
			self.claim(claimed, txid)
			continue
		}
		pending = append(pending, txid)
	}

	// Most recently seen wins a conflict
	slices.SortFunc(pending, func(a, b chainhash.Hash) int {
		if self.lastSeen[a] != self.lastSeen[b] {
			if self.lastSeen[a] > self.lastSeen[b] {
				return -1
			}
			return 1
		}
		if chainhashLess(a, b) {
			return -1
		}
		if chainhashLess(b, a) {
			return 1
		}
		return 0
	})

	for _, txid := range pending {
		if self.conflicts(claimed, txid) {
			continue
		}
		positions[txid] = Position{LastSeen: self.lastSeen[txid]}
		self.claim(claimed, txid)
	}

	// Pending descendants of dropped transactions are dropped as well
	for changed := true; changed; {
		changed = false
		for txid, position := range positions {
			if position.Confirmed {
				continue
			}
			for _, in := range self.txs[txid].TxIn {
				parent := in.PreviousOutPoint.Hash
				if _, known := self.txs[parent]; !known {
					continue
				}
				if _, ok := positions[parent]; !ok {
					delete(positions, txid)
					changed = true
					break
				}
			}
		}
	}

	return positions
}

// Wallet outputs of canonical transactions, including spent ones
func (self *TxGraph) Outputs(oracle ChainOracle, owner ScriptOwner) (out []LocalOutput) {
	positions := self.Canonical(oracle)

	for txid, position := range positions {
		tx := self.txs[txid]
		coinbase := blockchain.IsCoinBaseTx(tx)
		for vout, txOut := range tx.TxOut {
			idx, ok := owner.Lookup(txOut.PkScript)
			if !ok {
				continue
			}

			output := LocalOutput{
				OutPoint:    wire.OutPoint{Hash: txid, Index: uint32(vout)},
				TxOut:       txOut,
				ScriptIndex: idx,
				Position:    position,
				IsCoinbase:  coinbase,
			}

			for spender := range self.spends[output.OutPoint] {
				if _, ok := positions[spender]; ok {
					output.SpentBy = &spender
					break
				}
			}

			out = append(out, output)
		}
	}

	slices.SortFunc(out, func(a, b LocalOutput) int {
		if a.OutPoint.Hash != b.OutPoint.Hash {
			if chainhashLess(a.OutPoint.Hash, b.OutPoint.Hash) {
				return -1
			}
			return 1
		}
		return int(a.OutPoint.Index) - int(b.OutPoint.Index)
	})

	return
}

// Wallet outputs not spent by any canonical transaction
func (self *TxGraph) Unspents(oracle ChainOracle, owner ScriptOwner) (out []LocalOutput) {
	for _, output := range self.Outputs(oracle, owner) {
		if output.SpentBy == nil {
			out = append(out, output)
		}
	}
	return
}

func (self *TxGraph) Balance(oracle ChainOracle, owner ScriptOwner) (balance Balance) {
	tipHeight := oracle.Tip().Height()
	for _, output := range self.Unspents(oracle, owner) {
		amount := btcutil.Amount(output.TxOut.Value)
		switch {
		case output.Position.Confirmed && output.IsCoinbase &&
			tipHeight+1-output.Position.Anchor.Block.Height < coinbaseMaturity:
			balance.Immature += amount
		case output.Position.Confirmed:
			balance.Confirmed += amount
		default:
			balance.Pending += amount
		}
	}
	return
}

func (self *TxGraph) confirmedAnchor(oracle ChainOracle, txid chainhash.Hash) (Anchor, bool) {
	for _, anchor := range self.Anchors(txid) {
		if oracle.Contains(anchor.Block) {
			return anchor, true
		}
	}
	return Anchor{}, false
}

func (self *TxGraph) claim(claimed map[wire.OutPoint]chainhash.Hash, txid chainhash.Hash) {
	tx := self.txs[txid]
	if blockchain.IsCoinBaseTx(tx) {
		return
	}
	for _, in := range tx.TxIn {
		if _, ok := claimed[in.PreviousOutPoint]; !ok {
			claimed[in.PreviousOutPoint] = txid
		}
	}
}

func (self *TxGraph) conflicts(claimed map[wire.OutPoint]chainhash.Hash, txid chainhash.Hash) bool {
	tx := self.txs[txid]
	if blockchain.IsCoinBaseTx(tx) {
		return false
	}
	for _, in := range tx.TxIn {
		if other, ok := claimed[in.PreviousOutPoint]; ok && other != txid {
			return true
		}
	}
	return false
}
