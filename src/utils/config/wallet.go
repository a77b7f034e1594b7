package config

import (
	"github.com/spf13/viper"
)

type Wallet struct {
	// Name used as the key of persisted wallet state
	Name string

	// Bitcoin network: mainnet, testnet3, signet, regtest
	Network string

	// Descriptor of the receiving keychain, e.g. wpkh(tpub.../0/*)
	ExternalDescriptor string

	// Descriptor of the change keychain. Optional.
	InternalDescriptor string

	// Number of scripts derived above the last revealed index when indexing transactions
	Lookahead uint32
}

func setWalletDefaults() {
	viper.SetDefault("Wallet.Name", "default")
	viper.SetDefault("Wallet.Network", "signet")
	viper.SetDefault("Wallet.ExternalDescriptor", "")
	viper.SetDefault("Wallet.InternalDescriptor", "")
	viper.SetDefault("Wallet.Lookahead", "25")
}
