package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/warp-contracts/lightsync/src/utils/config"
	"github.com/warp-contracts/lightsync/src/utils/wallet"
)

var ErrNotFound = errors.New("wallet not found")

// Append only log of wallet changesets
type Store interface {
	// Persists the changeset, empty changesets are skipped
	Append(ctx context.Context, changeset wallet.ChangeSet) error

	// Merge of all stored changesets, ErrNotFound if there's none
	Aggregate(ctx context.Context) (wallet.ChangeSet, error)

	Close() error
}

// Opens the store selected in the config
func New(ctx context.Context, config *config.Config) (Store, error) {
	switch config.Store.Backend {
	case "", "leveldb":
		return NewLevelDB(config.Store.Path, config.Wallet.Name)
	case "postgres":
		return NewPostgres(ctx, config, config.Wallet.Name)
	}
	return nil, fmt.Errorf("unknown store backend: %s", config.Store.Backend)
}
