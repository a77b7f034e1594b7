package keychain

// Changes of the keychain index: last revealed derivation index per keychain
type ChangeSet struct {
	LastRevealed map[Keychain]uint32
}

func NewChangeSet() ChangeSet {
	return ChangeSet{LastRevealed: make(map[Keychain]uint32)}
}

func (self ChangeSet) IsEmpty() bool {
	return len(self.LastRevealed) == 0
}

// Revealed indices never decrease, the higher one wins
func (self *ChangeSet) Merge(other ChangeSet) {
	if self.LastRevealed == nil {
		self.LastRevealed = make(map[Keychain]uint32)
	}
	for k, index := range other.LastRevealed {
		if current, ok := self.LastRevealed[k]; !ok || index > current {
			self.LastRevealed[k] = index
		}
	}
}
