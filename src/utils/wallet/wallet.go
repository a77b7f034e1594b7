package wallet

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/warp-contracts/lightsync/src/utils/chain"
	"github.com/warp-contracts/lightsync/src/utils/keychain"
	"github.com/warp-contracts/lightsync/src/utils/txgraph"
)

// Watch only wallet: chain view, derived scripts and transactions.
//
// Every mutation is staged. Staged changes are taken by the caller and persisted.
// Not safe for concurrent use.
type Wallet struct {
	params *chaincfg.Params
	chain  *chain.LocalChain
	index  *keychain.Index
	graph  *txgraph.TxGraph
	staged ChangeSet
}

type AddressInfo struct {
	Keychain keychain.Keychain
	Index    uint32
	Address  btcutil.Address
}

// Creates a new wallet starting at the network's genesis block
func New(params *chaincfg.Params, external, internal string, lookahead uint32) (self *Wallet, err error) {
	self = &Wallet{
		params: params,
		index:  keychain.NewIndex(lookahead),
		graph:  txgraph.New(),
		staged: NewChangeSet(),
	}

	self.staged.Network = params.Name

	for k, raw := range map[keychain.Keychain]string{keychain.External: external, keychain.Internal: internal} {
		if k == keychain.Internal && raw == "" {
			// Change goes to the external keychain
			continue
		}
		err = self.insertDescriptor(k, raw)
		if err != nil {
			return nil, err
		}
		self.staged.Descriptors[k] = raw
	}

	var changeset chain.ChangeSet
	self.chain, changeset = chain.NewFromGenesis(*params.GenesisHash)
	self.staged.Chain.Merge(changeset)

	return
}

// Restores a wallet from the aggregated changeset.
// Params may be nil, otherwise the network is checked.
func Load(changeset ChangeSet, params *chaincfg.Params, lookahead uint32) (self *Wallet, err error) {
	if changeset.IsEmpty() {
		return nil, ErrEmptyChangeSet
	}
	if changeset.Network == "" {
		return nil, ErrMissingNetwork
	}

	stored, err := ParseNetwork(changeset.Network)
	if err != nil {
		return
	}
	if params != nil && params.Name != stored.Name {
		return nil, fmt.Errorf("%w: stored %s, expected %s", ErrNetworkMismatch, stored.Name, params.Name)
	}
	if len(changeset.Descriptors) == 0 {
		return nil, ErrMissingDescriptors
	}

	self = &Wallet{
		params: stored,
		index:  keychain.NewIndex(lookahead),
		graph:  txgraph.New(),
		staged: NewChangeSet(),
	}

	keychains := maps.Keys(changeset.Descriptors)
	slices.Sort(keychains)
	for _, k := range keychains {
		err = self.insertDescriptor(k, changeset.Descriptors[k])
		if err != nil {
			return nil, err
		}
	}

	self.chain, err = chain.FromChangeSet(changeset.Chain)
	if err != nil {
		return nil, err
	}
	if self.chain.Genesis() != *stored.GenesisHash {
		return nil, fmt.Errorf("%w: %s", ErrGenesisMismatch, stored.Name)
	}

	// Reveals found while re-indexing are already persisted
	_, err = self.applyGraph(changeset.Indexer, changeset.Graph)
	if err != nil {
		return nil, err
	}

	return
}

func (self *Wallet) insertDescriptor(k keychain.Keychain, raw string) error {
	descriptor, err := keychain.ParseDescriptor(raw, self.params)
	if err != nil {
		return fmt.Errorf("%s descriptor: %w", k, err)
	}
	return self.index.Insert(k, descriptor)
}

func (self *Wallet) Network() *chaincfg.Params {
	return self.params
}

func (self *Wallet) LocalChain() *chain.LocalChain {
	return self.chain
}

func (self *Wallet) LatestCheckpoint() *chain.Checkpoint {
	return self.chain.Tip()
}

func (self *Wallet) Index() *keychain.Index {
	return self.index
}

func (self *Wallet) Graph() *txgraph.TxGraph {
	return self.graph
}

// Address at the index, nothing gets revealed
func (self *Wallet) PeekAddress(k keychain.Keychain, index uint32) (info AddressInfo, err error) {
	descriptor, err := self.index.Descriptor(k)
	if err != nil {
		return
	}
	address, err := descriptor.AddressAt(index)
	if err != nil {
		return
	}
	return AddressInfo{Keychain: k, Index: index, Address: address}, nil
}

// Reveals and returns the next unused address
func (self *Wallet) RevealNextAddress(k keychain.Keychain) (info AddressInfo, err error) {
	index, _, changeset, err := self.index.RevealNext(k)
	if err != nil {
		return
	}
	self.staged.Indexer.Merge(changeset)
	return self.PeekAddress(k, index)
}

// Applies and stages the changeset.
// The chain part is applied first, transactions are indexed afterwards.
func (self *Wallet) ApplyChangeSet(changeset ChangeSet) (err error) {
	if changeset.Network != "" && changeset.Network != self.params.Name {
		return fmt.Errorf("%w: %s", ErrNetworkMismatch, changeset.Network)
	}

	err = self.index.Validate(changeset.Indexer)
	if err != nil {
		return
	}

	err = self.chain.ApplyChangeSet(changeset.Chain)
	if err != nil {
		return
	}

	revealed, err := self.applyGraph(changeset.Indexer, changeset.Graph)
	if err != nil {
		return
	}

	self.staged.Chain.Merge(changeset.Chain)
	self.staged.Graph.Merge(changeset.Graph)
	self.staged.Indexer.Merge(changeset.Indexer)
	self.staged.Indexer.Merge(revealed)
	return
}

func (self *Wallet) applyGraph(indexer keychain.ChangeSet, graph txgraph.ChangeSet) (revealed keychain.ChangeSet, err error) {
	revealed = keychain.NewChangeSet()

	err = self.index.ApplyChangeSet(indexer)
	if err != nil {
		return
	}

	self.graph.ApplyChangeSet(graph)

	// Revealing extends the lookahead window, repeat until nothing new shows up
	for {
		round := keychain.NewChangeSet()
		for _, tx := range graph.Txs {
			var changeset keychain.ChangeSet
			changeset, err = self.index.IndexTx(tx)
			if err != nil {
				return
			}
			round.Merge(changeset)
		}
		if round.IsEmpty() {
			return
		}
		revealed.Merge(round)
	}
}

func (self *Wallet) Balance() txgraph.Balance {
	return self.graph.Balance(self.chain, self.index)
}

func (self *Wallet) ListUnspent() []txgraph.LocalOutput {
	return self.graph.Unspents(self.chain, self.index)
}

func (self *Wallet) ListOutputs() []txgraph.LocalOutput {
	return self.graph.Outputs(self.chain, self.index)
}

// Changes made since the last call
func (self *Wallet) TakeStaged() (changeset ChangeSet) {
	changeset = self.staged
	self.staged = NewChangeSet()
	return
}

// Changeset that recreates the whole wallet
func (self *Wallet) InitialChangeSet() ChangeSet {
	changeset := NewChangeSet()
	changeset.Network = self.params.Name
	for _, k := range self.index.Keychains() {
		descriptor, _ := self.index.Descriptor(k)
		changeset.Descriptors[k] = descriptor.String()
	}
	changeset.Chain = self.chain.InitialChangeSet()
	changeset.Graph = self.graph.InitialChangeSet()
	changeset.Indexer = self.index.InitialChangeSet()
	return changeset
}
