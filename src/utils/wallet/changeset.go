package wallet

import (
	"github.com/warp-contracts/lightsync/src/utils/chain"
	"github.com/warp-contracts/lightsync/src/utils/keychain"
	"github.com/warp-contracts/lightsync/src/utils/txgraph"
)

// Unit of persistence. Changesets are appended and merged on load.
type ChangeSet struct {
	Network     string
	Descriptors map[keychain.Keychain]string
	Chain       chain.ChangeSet
	Graph       txgraph.ChangeSet
	Indexer     keychain.ChangeSet
}

func NewChangeSet() ChangeSet {
	return ChangeSet{
		Descriptors: make(map[keychain.Keychain]string),
		Chain:       make(chain.ChangeSet),
		Graph:       txgraph.NewChangeSet(),
		Indexer:     keychain.NewChangeSet(),
	}
}

func (self ChangeSet) IsEmpty() bool {
	return self.Network == "" &&
		len(self.Descriptors) == 0 &&
		self.Chain.IsEmpty() &&
		self.Graph.IsEmpty() &&
		self.Indexer.IsEmpty()
}

// Later changesets win for the chain, the rest is a union
func (self *ChangeSet) Merge(other ChangeSet) {
	if other.Network != "" {
		self.Network = other.Network
	}
	if self.Descriptors == nil {
		self.Descriptors = make(map[keychain.Keychain]string)
	}
	for k, d := range other.Descriptors {
		self.Descriptors[k] = d
	}
	if self.Chain == nil {
		self.Chain = make(chain.ChangeSet)
	}
	self.Chain.Merge(other.Chain)
	self.Graph.Merge(other.Graph)
	self.Indexer.Merge(other.Indexer)
}
