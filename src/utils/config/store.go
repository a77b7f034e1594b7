package config

import (
	"time"

	"github.com/spf13/viper"
)

type Store struct {
	// leveldb or postgres
	Backend string

	// LevelDB directory
	Path string

	// Backoff for failed writes, 0 is no limit
	MaxElapsedTime time.Duration
	MaxInterval    time.Duration
}

func setStoreDefaults() {
	viper.SetDefault("Store.Backend", "leveldb")
	viper.SetDefault("Store.Path", "data/wallet")
	viper.SetDefault("Store.MaxElapsedTime", "1m")
	viper.SetDefault("Store.MaxInterval", "5s")
}
