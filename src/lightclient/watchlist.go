package lightclient

import (
	"bytes"

	"golang.org/x/exp/slices"

	"github.com/warp-contracts/lightsync/src/utils/keychain"
)

// Lookahead used for the watch-list. Watching many scripts costs the node little,
// so addresses revealed during a session are already covered.
const TargetIndex = 100

// Set of output scripts
type ScriptSet map[string]struct{}

func (self ScriptSet) Add(script []byte) {
	self[string(script)] = struct{}{}
}

func (self ScriptSet) Contains(script []byte) bool {
	_, ok := self[string(script)]
	return ok
}

// Scripts in byte order
func (self ScriptSet) Slice() [][]byte {
	out := make([][]byte, 0, len(self))
	for script := range self {
		out = append(out, []byte(script))
	}
	slices.SortFunc(out, bytes.Compare)
	return out
}

// Scripts at indices [0, lookahead] of every keychain. Revealed indices don't change.
func BuildWatchlist(index *keychain.Index, lookahead uint32) (scripts ScriptSet, err error) {
	keychains := index.Keychains()
	if len(keychains) == 0 {
		return nil, &ConfigurationError{Field: "descriptor", Reason: "wallet has no keychains", Err: keychain.ErrMissingDescriptor}
	}

	scripts = make(ScriptSet)
	for _, k := range keychains {
		for i := uint32(0); i <= lookahead; i++ {
			var script []byte
			script, err = index.Peek(k, i)
			if err != nil {
				return nil, &ConfigurationError{Field: "descriptor", Reason: k.String(), Err: err}
			}
			scripts.Add(script)
		}
	}
	return
}
