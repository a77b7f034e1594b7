package txgraph

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// Delta of the transaction graph. Applying it is a set union.
type ChangeSet struct {
	Txs      map[chainhash.Hash]*wire.MsgTx
	Anchors  map[Anchor]struct{}
	LastSeen map[chainhash.Hash]int64
}

func NewChangeSet() ChangeSet {
	return ChangeSet{
		Txs:      make(map[chainhash.Hash]*wire.MsgTx),
		Anchors:  make(map[Anchor]struct{}),
		LastSeen: make(map[chainhash.Hash]int64),
	}
}

func (self ChangeSet) IsEmpty() bool {
	return len(self.Txs) == 0 && len(self.Anchors) == 0 && len(self.LastSeen) == 0
}

func (self *ChangeSet) AddTx(tx *wire.MsgTx) {
	if self.Txs == nil {
		self.Txs = make(map[chainhash.Hash]*wire.MsgTx)
	}
	self.Txs[tx.TxHash()] = tx
}

func (self *ChangeSet) AddAnchor(anchor Anchor) {
	if self.Anchors == nil {
		self.Anchors = make(map[Anchor]struct{})
	}
	self.Anchors[anchor] = struct{}{}
}

func (self *ChangeSet) SetLastSeen(txid chainhash.Hash, seen int64) {
	if self.LastSeen == nil {
		self.LastSeen = make(map[chainhash.Hash]int64)
	}
	if current, ok := self.LastSeen[txid]; !ok || seen > current {
		self.LastSeen[txid] = seen
	}
}

func (self *ChangeSet) Merge(other ChangeSet) {
	for _, tx := range other.Txs {
		self.AddTx(tx)
	}
	for anchor := range other.Anchors {
		self.AddAnchor(anchor)
	}
	for txid, seen := range other.LastSeen {
		self.SetLastSeen(txid, seen)
	}
}
