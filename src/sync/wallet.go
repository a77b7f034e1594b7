package sync

import (
	"context"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/warp-contracts/lightsync/src/lightclient"
	"github.com/warp-contracts/lightsync/src/utils/config"
	"github.com/warp-contracts/lightsync/src/utils/node"
	"github.com/warp-contracts/lightsync/src/utils/store"
	"github.com/warp-contracts/lightsync/src/utils/wallet"
)

// Restores the wallet from the store.
// The first run creates it from the configured descriptors and persists the initial state.
func LoadWallet(ctx context.Context, config *config.Config, s store.Store) (w *wallet.Wallet, err error) {
	params, err := wallet.ParseNetwork(config.Wallet.Network)
	if err != nil {
		return
	}

	changeset, err := s.Aggregate(ctx)
	if err == nil {
		return wallet.Load(changeset, params, config.Wallet.Lookahead)
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("failed to read wallet: %w", err)
	}

	w, err = wallet.New(params, config.Wallet.ExternalDescriptor, config.Wallet.InternalDescriptor, config.Wallet.Lookahead)
	if err != nil {
		return
	}

	err = s.Append(ctx, w.TakeStaged())
	if err != nil {
		return nil, fmt.Errorf("failed to save new wallet: %w", err)
	}
	return
}

// Light client options from the config file
func LightClientConfig(config *config.Config) (out lightclient.Config, err error) {
	out = lightclient.Config{
		Discovery:       config.LightClient.Discovery,
		DataDir:         config.LightClient.DataDir,
		RequiredPeers:   config.LightClient.RequiredPeers,
		Lookahead:       config.LightClient.WatchlistLookahead,
		UpdateBuffer:    config.LightClient.UpdateBuffer,
		ShutdownTimeout: config.LightClient.ShutdownTimeout,
	}

	for _, raw := range config.LightClient.Peers {
		var peer node.TrustedPeer
		peer, err = node.ParseTrustedPeer(raw)
		if err != nil {
			return
		}
		out.Peers = append(out.Peers, peer)
	}

	if config.LightClient.BirthdayHeight == 0 && config.LightClient.BirthdayHash == "" {
		return
	}

	birthday := &node.HeaderCheckpoint{Height: config.LightClient.BirthdayHeight}
	if config.LightClient.BirthdayHash != "" {
		var hash *chainhash.Hash
		hash, err = chainhash.NewHashFromStr(config.LightClient.BirthdayHash)
		if err != nil {
			return out, fmt.Errorf("invalid birthday hash: %w", err)
		}
		birthday.Hash = *hash
	}
	out.Birthday = birthday
	return
}
