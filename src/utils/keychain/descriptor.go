package keychain

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
)

type ScriptType string

const (
	ScriptTypeP2PKH      ScriptType = "pkh"
	ScriptTypeP2WPKH     ScriptType = "wpkh"
	ScriptTypeP2SHP2WPKH ScriptType = "sh(wpkh)"
	ScriptTypeP2TR       ScriptType = "tr"
)

const hardenedKeyStart = hdkeychain.HardenedKeyStart

// Single key output descriptor over an extended public key, e.g.
//
//	wpkh([d34db33f/84'/1'/0']tpubD.../0/*)
//
// Only unhardened steps are allowed after the extended key and the last one must be a wildcard.
type Descriptor struct {
	raw        string
	scriptType ScriptType
	key        *hdkeychain.ExtendedKey
	path       []uint32
	params     *chaincfg.Params
}

func ParseDescriptor(s string, params *chaincfg.Params) (self *Descriptor, err error) {
	self = &Descriptor{params: params}

	// Checksum isn't verified
	if idx := strings.IndexByte(s, '#'); idx >= 0 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)
	self.raw = s

	var inner string
	switch {
	case strings.HasPrefix(s, "sh(wpkh(") && strings.HasSuffix(s, "))"):
		self.scriptType = ScriptTypeP2SHP2WPKH
		inner = s[len("sh(wpkh(") : len(s)-2]
	case strings.HasPrefix(s, "wpkh(") && strings.HasSuffix(s, ")"):
		self.scriptType = ScriptTypeP2WPKH
		inner = s[len("wpkh(") : len(s)-1]
	case strings.HasPrefix(s, "pkh(") && strings.HasSuffix(s, ")"):
		self.scriptType = ScriptTypeP2PKH
		inner = s[len("pkh(") : len(s)-1]
	case strings.HasPrefix(s, "tr(") && strings.HasSuffix(s, ")"):
		self.scriptType = ScriptTypeP2TR
		inner = s[len("tr(") : len(s)-1]
		if strings.Contains(inner, ",") {
			return nil, fmt.Errorf("%w: taproot script trees", ErrUnsupportedDescriptor)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDescriptor, s)
	}

	// Key origin is informational
	if strings.HasPrefix(inner, "[") {
		end := strings.IndexByte(inner, ']')
		if end < 0 {
			return nil, fmt.Errorf("%w: unterminated key origin", ErrInvalidDescriptor)
		}
		inner = inner[end+1:]
	}

	parts := strings.Split(inner, "/")
	self.key, err = hdkeychain.NewKeyFromString(parts[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidDescriptor, err)
	}
	if self.key.IsPrivate() {
		// Watching only needs the public part
		self.key, err = self.key.Neuter()
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrInvalidDescriptor, err)
		}
	}
	if !self.key.IsForNet(params) {
		return nil, fmt.Errorf("%w: expected %s", ErrWrongNetwork, params.Name)
	}

	steps := parts[1:]
	if len(steps) == 0 || steps[len(steps)-1] != "*" {
		return nil, fmt.Errorf("%w: derivation path must end with a wildcard", ErrUnsupportedDescriptor)
	}
	for _, step := range steps[:len(steps)-1] {
		var child uint64
		child, err = strconv.ParseUint(step, 10, 32)
		if err != nil || child >= hardenedKeyStart {
			return nil, fmt.Errorf("%w: step %q", ErrUnsupportedDescriptor, step)
		}
		self.path = append(self.path, uint32(child))
	}

	// Derive the fixed part of the path once
	for _, child := range self.path {
		self.key, err = self.key.Derive(child)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrInvalidDescriptor, err)
		}
	}

	return
}

func (self *Descriptor) String() string {
	return self.raw
}

func (self *Descriptor) ScriptType() ScriptType {
	return self.scriptType
}

// Address at the given wildcard index
func (self *Descriptor) AddressAt(index uint32) (address btcutil.Address, err error) {
	if index >= hardenedKeyStart {
		return nil, fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}

	child, err := self.key.Derive(index)
	if err != nil {
		return
	}

	pubKey, err := child.ECPubKey()
	if err != nil {
		return
	}

	keyHash := btcutil.Hash160(pubKey.SerializeCompressed())

	switch self.scriptType {
	case ScriptTypeP2PKH:
		return btcutil.NewAddressPubKeyHash(keyHash, self.params)
	case ScriptTypeP2WPKH:
		return btcutil.NewAddressWitnessPubKeyHash(keyHash, self.params)
	case ScriptTypeP2SHP2WPKH:
		var redeemScript []byte
		redeemScript, err = txscript.NewScriptBuilder().
			AddOp(txscript.OP_0).
			AddData(keyHash).
			Script()
		if err != nil {
			return
		}
		return btcutil.NewAddressScriptHash(redeemScript, self.params)
	case ScriptTypeP2TR:
		outputKey := txscript.ComputeTaprootKeyNoScript(pubKey)
		return btcutil.NewAddressTaproot(schnorr.SerializePubKey(outputKey), self.params)
	}

	return nil, ErrUnsupportedDescriptor
}

// Output script at the given wildcard index
func (self *Descriptor) ScriptAt(index uint32) (script []byte, err error) {
	address, err := self.AddressAt(index)
	if err != nil {
		return
	}
	return txscript.PayToAddrScript(address)
}
