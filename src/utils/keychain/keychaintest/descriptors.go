// Deterministic descriptors for tests
package keychaintest

import (
	"bytes"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
)

// Account key derived from a fixed seed. Different seeds give unrelated wallets.
func AccountKey(params *chaincfg.Params, seed byte) (*hdkeychain.ExtendedKey, error) {
	master, err := hdkeychain.NewMaster(bytes.Repeat([]byte{seed}, hdkeychain.RecommendedSeedLen), params)
	if err != nil {
		return nil, err
	}

	// m/84'/1'/0'
	key := master
	for _, child := range []uint32{84, 1, 0} {
		key, err = key.Derive(hdkeychain.HardenedKeyStart + child)
		if err != nil {
			return nil, err
		}
	}
	return key.Neuter()
}

// External and internal descriptors of the given script type, e.g. "wpkh"
func Descriptors(params *chaincfg.Params, scriptType string, seed byte) (external, internal string, err error) {
	key, err := AccountKey(params, seed)
	if err != nil {
		return
	}
	external = wrap(scriptType, fmt.Sprintf("[d34db33f/84'/1'/0']%s/0/*", key))
	internal = wrap(scriptType, fmt.Sprintf("[d34db33f/84'/1'/0']%s/1/*", key))
	return
}

func MustDescriptors(params *chaincfg.Params, scriptType string, seed byte) (external, internal string) {
	external, internal, err := Descriptors(params, scriptType, seed)
	if err != nil {
		panic(err)
	}
	return
}

func wrap(scriptType, key string) string {
	if scriptType == "sh(wpkh)" {
		return "sh(wpkh(" + key + "))"
	}
	return scriptType + "(" + key + ")"
}
