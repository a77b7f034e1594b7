package config

import (
	"time"

	"github.com/spf13/viper"
)

type LightClient struct {
	// Trusted peers, host[:port], comma separated in ENV
	Peers []string

	// Find more peers through DNS seeds
	Discovery bool

	// Start scanning strictly after this block. Ignored when not below the wallet tip.
	BirthdayHeight uint32
	BirthdayHash   string

	// Directory for the node's headers and filters
	DataDir string

	// Number of peers that need to agree before the node considers itself synced
	RequiredPeers uint8

	// Scripts peeked per keychain for the node's watch-list
	WatchlistLookahead uint32

	// Capacity of the channel between the node and the client
	UpdateBuffer int

	// Max time the node has to acknowledge a shutdown request
	ShutdownTimeout time.Duration

	// Time between consecutive sync sessions
	SyncInterval time.Duration

	// Max time a single session waits for an update
	UpdateTimeout time.Duration
}

func setLightClientDefaults() {
	viper.SetDefault("LightClient.Peers", []string{})
	viper.SetDefault("LightClient.Discovery", "false")
	viper.SetDefault("LightClient.BirthdayHeight", "0")
	viper.SetDefault("LightClient.BirthdayHash", "")
	viper.SetDefault("LightClient.DataDir", "data/node")
	viper.SetDefault("LightClient.RequiredPeers", "2")
	viper.SetDefault("LightClient.WatchlistLookahead", "100")
	viper.SetDefault("LightClient.UpdateBuffer", "8")
	viper.SetDefault("LightClient.ShutdownTimeout", "15s")
	viper.SetDefault("LightClient.SyncInterval", "10m")
	viper.SetDefault("LightClient.UpdateTimeout", "2h")
}
