package keychain

import (
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/warp-contracts/lightsync/src/utils/keychain/keychaintest"
)

func TestDescriptorTestSuite(t *testing.T) {
	suite.Run(t, new(DescriptorTestSuite))
}

type DescriptorTestSuite struct {
	suite.Suite
	params *chaincfg.Params
}

func (s *DescriptorTestSuite) SetupSuite() {
	s.params = &chaincfg.SigNetParams
}

func (s *DescriptorTestSuite) TestWpkhMatchesDirectDerivation() {
	external, _ := keychaintest.MustDescriptors(s.params, "wpkh", 1)
	descriptor, err := ParseDescriptor(external, s.params)
	require.Nil(s.T(), err)
	require.Equal(s.T(), ScriptTypeP2WPKH, descriptor.ScriptType())

	account, err := keychaintest.AccountKey(s.params, 1)
	require.Nil(s.T(), err)

	for _, index := range []uint32{0, 1, 7} {
		child, err := account.Derive(0)
		require.Nil(s.T(), err)
		child, err = child.Derive(index)
		require.Nil(s.T(), err)
		pubKey, err := child.ECPubKey()
		require.Nil(s.T(), err)

		expected, err := btcutil.NewAddressWitnessPubKeyHash(btcutil.Hash160(pubKey.SerializeCompressed()), s.params)
		require.Nil(s.T(), err)

		address, err := descriptor.AddressAt(index)
		require.Nil(s.T(), err)
		require.Equal(s.T(), expected.EncodeAddress(), address.EncodeAddress())
	}
}

func (s *DescriptorTestSuite) TestScriptTypes() {
	for _, tc := range []struct {
		descriptor string
		class      txscript.ScriptClass
	}{
		{"pkh", txscript.PubKeyHashTy},
		{"wpkh", txscript.WitnessV0PubKeyHashTy},
		{"sh(wpkh)", txscript.ScriptHashTy},
		{"tr", txscript.WitnessV1TaprootTy},
	} {
		external, internal := keychaintest.MustDescriptors(s.params, tc.descriptor, 2)

		ext, err := ParseDescriptor(external, s.params)
		require.Nil(s.T(), err, tc.descriptor)
		in, err := ParseDescriptor(internal, s.params)
		require.Nil(s.T(), err, tc.descriptor)

		a, err := ext.ScriptAt(0)
		require.Nil(s.T(), err)
		b, err := in.ScriptAt(0)
		require.Nil(s.T(), err)
		c, err := ext.ScriptAt(1)
		require.Nil(s.T(), err)

		require.Equal(s.T(), tc.class, txscript.GetScriptClass(a), tc.descriptor)
		require.NotEqual(s.T(), a, b)
		require.NotEqual(s.T(), a, c)
	}
}

func (s *DescriptorTestSuite) TestChecksumIsIgnored() {
	external, _ := keychaintest.MustDescriptors(s.params, "wpkh", 1)
	plain, err := ParseDescriptor(external, s.params)
	require.Nil(s.T(), err)
	withChecksum, err := ParseDescriptor(external+"#abcdefgh", s.params)
	require.Nil(s.T(), err)

	a, _ := plain.ScriptAt(3)
	b, _ := withChecksum.ScriptAt(3)
	require.Equal(s.T(), a, b)
}

func (s *DescriptorTestSuite) TestInvalidDescriptors() {
	external, _ := keychaintest.MustDescriptors(s.params, "wpkh", 1)

	_, err := ParseDescriptor(external, &chaincfg.MainNetParams)
	require.ErrorIs(s.T(), err, ErrWrongNetwork)

	_, err = ParseDescriptor("wsh(multi(1,a,b))", s.params)
	require.ErrorIs(s.T(), err, ErrUnsupportedDescriptor)

	_, err = ParseDescriptor("wpkh(tpubnotakey/0/*)", s.params)
	require.ErrorIs(s.T(), err, ErrInvalidDescriptor)

	account, _ := keychaintest.AccountKey(s.params, 1)
	_, err = ParseDescriptor("wpkh("+account.String()+"/0/1)", s.params)
	require.ErrorIs(s.T(), err, ErrUnsupportedDescriptor)

	_, err = ParseDescriptor("wpkh("+account.String()+"/0'/*)", s.params)
	require.ErrorIs(s.T(), err, ErrUnsupportedDescriptor)
}
