package keychain

import (
	"fmt"

	"github.com/btcsuite/btcd/wire"
	"github.com/patrickmn/go-cache"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Default number of scripts indexed above the last revealed one
const DefaultLookahead = 25

// Index keeps track of scripts derived from the wallet's descriptors.
//
// Peeking derives a script without changing any counters.
// Revealing moves the last revealed index forward, it never goes back.
// Scripts up to the last revealed index plus lookahead are recognized
// when indexing transactions.
type Index struct {
	descriptors  map[Keychain]*Descriptor
	lastRevealed map[Keychain]uint32
	lookahead    uint32

	// Derived scripts, shared between clones. Safe for concurrent use.
	derived *cache.Cache

	// Reverse lookup of derived scripts
	scripts map[string]ScriptIndex

	// Next index not yet in the reverse lookup, per keychain
	indexedTo map[Keychain]uint32

	// Indices recognized regardless of the lookahead, per keychain
	watchedTo map[Keychain]uint32

	// Outputs paying to the wallet's scripts
	outpoints map[wire.OutPoint]ScriptIndex
}

func NewIndex(lookahead uint32) *Index {
	return &Index{
		descriptors:  make(map[Keychain]*Descriptor),
		lastRevealed: make(map[Keychain]uint32),
		lookahead:    lookahead,
		derived:      cache.New(cache.NoExpiration, 0),
		scripts:      make(map[string]ScriptIndex),
		indexedTo:    make(map[Keychain]uint32),
		watchedTo:    make(map[Keychain]uint32),
		outpoints:    make(map[wire.OutPoint]ScriptIndex),
	}
}

// Adds a descriptor for the keychain
func (self *Index) Insert(keychain Keychain, descriptor *Descriptor) (err error) {
	if descriptor == nil {
		return fmt.Errorf("%w: %s", ErrMissingDescriptor, keychain)
	}

	existing, ok := self.descriptors[keychain]
	if ok {
		if existing.String() != descriptor.String() {
			return fmt.Errorf("%w: %s", ErrDescriptorChanged, keychain)
		}
		return nil
	}

	for k, d := range self.descriptors {
		if d.String() == descriptor.String() {
			return fmt.Errorf("%w: already used by %s", ErrDescriptorChanged, k)
		}
	}

	self.descriptors[keychain] = descriptor
	return self.fillLookahead(keychain)
}

// Keychains in ascending order
func (self *Index) Keychains() []Keychain {
	out := maps.Keys(self.descriptors)
	slices.Sort(out)
	return out
}

func (self *Index) Descriptor(keychain Keychain) (*Descriptor, error) {
	descriptor, ok := self.descriptors[keychain]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingDescriptor, keychain)
	}
	return descriptor, nil
}

func (self *Index) Lookahead() uint32 {
	return self.lookahead
}

// Derives the script at index without revealing it
func (self *Index) Peek(keychain Keychain, index uint32) (script []byte, err error) {
	descriptor, err := self.Descriptor(keychain)
	if err != nil {
		return
	}

	key := fmt.Sprintf("%s/%d", descriptor, index)
	if cached, ok := self.derived.Get(key); ok {
		return cached.([]byte), nil
	}

	script, err = descriptor.ScriptAt(index)
	if err != nil {
		return
	}

	self.derived.Set(key, script, cache.NoExpiration)
	return
}

func (self *Index) LastRevealed(keychain Keychain) (index uint32, ok bool) {
	index, ok = self.lastRevealed[keychain]
	return
}

// Index that RevealNext would reveal
func (self *Index) NextIndex(keychain Keychain) uint32 {
	last, ok := self.lastRevealed[keychain]
	if !ok {
		return 0
	}
	return last + 1
}

// Reveals all scripts up to and including the target index.
// Target at or below the last revealed index changes nothing.
func (self *Index) RevealTo(keychain Keychain, target uint32) (changeset ChangeSet, err error) {
	changeset = NewChangeSet()

	if _, err = self.Descriptor(keychain); err != nil {
		return
	}
	if !self.fits(target) {
		return changeset, fmt.Errorf("%w: %d", ErrIndexOutOfRange, target)
	}

	last, ok := self.lastRevealed[keychain]
	if ok && target <= last {
		return
	}

	self.lastRevealed[keychain] = target
	changeset.LastRevealed[keychain] = target

	err = self.fillLookahead(keychain)
	return
}

// Reveals the next unused index
func (self *Index) RevealNext(keychain Keychain) (index uint32, script []byte, changeset ChangeSet, err error) {
	index = self.NextIndex(keychain)
	changeset, err = self.RevealTo(keychain, index)
	if err != nil {
		return
	}
	script, err = self.Peek(keychain, index)
	return
}

// Checks that the changeset can be applied without errors
func (self *Index) Validate(changeset ChangeSet) error {
	for keychain, index := range changeset.LastRevealed {
		if !self.fits(index) {
			return fmt.Errorf("%w: %s %d", ErrIndexOutOfRange, keychain, index)
		}
	}
	return nil
}

func (self *Index) ApplyChangeSet(changeset ChangeSet) (err error) {
	for keychain, index := range changeset.LastRevealed {
		if _, ok := self.descriptors[keychain]; !ok {
			// Descriptor will be inserted later, remember the counter anyway
			if current, ok := self.lastRevealed[keychain]; !ok || index > current {
				self.lastRevealed[keychain] = index
			}
			continue
		}
		_, err = self.RevealTo(keychain, index)
		if err != nil {
			return
		}
	}
	return
}

// Changeset that recreates the revealed indices
func (self *Index) InitialChangeSet() ChangeSet {
	changeset := NewChangeSet()
	for keychain, index := range self.lastRevealed {
		changeset.LastRevealed[keychain] = index
	}
	return changeset
}

// Finds the position of a script among revealed and lookahead scripts
func (self *Index) Lookup(script []byte) (ScriptIndex, bool) {
	idx, ok := self.scripts[string(script)]
	return idx, ok
}

// Is the outpoint an output paying to the wallet
func (self *Index) IsOwned(outpoint wire.OutPoint) bool {
	_, ok := self.outpoints[outpoint]
	return ok
}

// Does the transaction pay to or spend from the wallet
func (self *Index) IsRelevant(tx *wire.MsgTx) bool {
	for _, in := range tx.TxIn {
		if self.IsOwned(in.PreviousOutPoint) {
			return true
		}
	}
	for _, out := range tx.TxOut {
		if _, ok := self.Lookup(out.PkScript); ok {
			return true
		}
	}
	return false
}

// Records outputs paying to the wallet.
// Finding a script above the last revealed index reveals up to it.
func (self *Index) IndexTx(tx *wire.MsgTx) (changeset ChangeSet, err error) {
	changeset = NewChangeSet()
	txid := tx.TxHash()
	for vout, out := range tx.TxOut {
		idx, ok := self.Lookup(out.PkScript)
		if !ok {
			continue
		}
		self.outpoints[wire.OutPoint{Hash: txid, Index: uint32(vout)}] = idx

		var revealed ChangeSet
		revealed, err = self.RevealTo(idx.Keychain, idx.Index)
		if err != nil {
			return
		}
		changeset.Merge(revealed)
	}
	return
}

// Adds scripts up to and including index to the reverse lookup.
// Nothing gets revealed until a transaction pays to one of them.
func (self *Index) Watch(keychain Keychain, index uint32) (err error) {
	if _, err = self.Descriptor(keychain); err != nil {
		return
	}
	if index >= hardenedKeyStart {
		return fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}
	if current, ok := self.watchedTo[keychain]; ok && current >= index {
		return
	}
	self.watchedTo[keychain] = index
	return self.fillLookahead(keychain)
}

// Independent copy used by sync requests. Derived scripts cache is shared.
func (self *Index) Snapshot() *Index {
	return &Index{
		descriptors:  maps.Clone(self.descriptors),
		lastRevealed: maps.Clone(self.lastRevealed),
		lookahead:    self.lookahead,
		derived:      self.derived,
		scripts:      maps.Clone(self.scripts),
		indexedTo:    maps.Clone(self.indexedTo),
		watchedTo:    maps.Clone(self.watchedTo),
		outpoints:    maps.Clone(self.outpoints),
	}
}

// Revealing the index keeps the whole lookahead window non-hardened
func (self *Index) fits(index uint32) bool {
	return uint64(index)+uint64(self.lookahead) < hardenedKeyStart
}

// Makes sure scripts up to last revealed + lookahead are in the reverse lookup
func (self *Index) fillLookahead(keychain Keychain) (err error) {
	target := self.lookahead
	if last, ok := self.lastRevealed[keychain]; ok {
		target = last + self.lookahead + 1
	}
	if watched, ok := self.watchedTo[keychain]; ok && watched+1 > target {
		target = watched + 1
	}

	var script []byte
	for index := self.indexedTo[keychain]; index < target; index++ {
		script, err = self.Peek(keychain, index)
		if err != nil {
			return
		}
		self.scripts[string(script)] = ScriptIndex{Keychain: keychain, Index: index}
		self.indexedTo[keychain] = index + 1
	}
	return
}
