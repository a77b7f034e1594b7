package neutrino

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/rpcclient"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcwallet/walletdb"
	_ "github.com/btcsuite/btcwallet/walletdb/bdb"
	neutrinolib "github.com/lightninglabs/neutrino"
	"github.com/lightninglabs/neutrino/headerfs"
	"github.com/sirupsen/logrus"
	"go.uber.org/atomic"

	"github.com/warp-contracts/lightsync/src/utils/logger"
	"github.com/warp-contracts/lightsync/src/utils/node"
)

const (
	dbTimeout    = 60 * time.Second
	pollInterval = 500 * time.Millisecond
	seenTxCount  = 10_000
)

// Compact block filter node backed by neutrino
type Node struct {
	log    *logrus.Entry
	config *node.Config
	handle *node.Handle

	started *atomic.Bool
}

// Satisfies node.Factory
func New(config *node.Config) (node.Node, *node.Handle, error) {
	if config.Network == nil {
		return nil, nil, errors.New("neutrino: network is required")
	}

	self := new(Node)
	self.log = logger.NewSublogger("neutrino")
	self.config = config
	self.handle = node.NewHandle(config.UpdateBuffer)
	self.started = atomic.NewBool(false)
	return self, self.handle, nil
}

func (self *Node) IsRunning() bool {
	return self.started.Load()
}

func (self *Node) Run(ctx context.Context) (err error) {
	defer self.handle.Close()

	if !self.handle.Begin() {
		return nil
	}
	self.started.Store(true)

	useLogger()

	// Stop on either signal
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-self.handle.Stopping():
			cancel()
		case <-ctx.Done():
		}
	}()

	dataDir, cleanup, err := self.dataDir()
	if err != nil {
		return
	}
	defer cleanup()

	db, err := walletdb.Create("bdb", filepath.Join(dataDir, "neutrino.db"), true, dbTimeout)
	if err != nil {
		return fmt.Errorf("failed to open node database: %w", err)
	}
	defer db.Close()

	serviceConfig := neutrinolib.Config{
		DataDir:     dataDir,
		Database:    db,
		ChainParams: *self.config.Network,
	}
	if self.config.Discovery {
		serviceConfig.AddPeers = self.config.Peers.Addresses(self.config.Network.DefaultPort)
	} else {
		serviceConfig.ConnectPeers = self.config.Peers.Addresses(self.config.Network.DefaultPort)
	}

	chainService, err := neutrinolib.NewChainService(serviceConfig)
	if err != nil {
		return fmt.Errorf("failed to create chain service: %w", err)
	}

	err = chainService.Start()
	if err != nil {
		return fmt.Errorf("failed to start chain service: %w", err)
	}
	defer func() {
		stopErr := chainService.Stop()
		if stopErr != nil {
			self.log.WithError(stopErr).Error("Failed to stop chain service")
		}
	}()

	err = self.waitForPeers(ctx, chainService)
	if err != nil {
		return self.ignoreStop(ctx, err)
	}

	err = self.waitForHeaders(ctx, chainService)
	if err != nil {
		return self.ignoreStop(ctx, err)
	}

	return self.ignoreStop(ctx, self.scan(ctx, chainService))
}

// Cancellation caused by the stop request isn't an error
func (self *Node) ignoreStop(ctx context.Context, err error) error {
	if err == nil || ctx.Err() != nil {
		return nil
	}
	return err
}

func (self *Node) dataDir() (dir string, cleanup func(), err error) {
	cleanup = func() {}

	if self.config.DataDir == "" {
		dir, err = os.MkdirTemp("", "lightsync-neutrino-")
		if err != nil {
			return
		}
		cleanup = func() { os.RemoveAll(dir) }
		return
	}

	dir = filepath.Join(self.config.DataDir, self.config.Network.Name)
	err = os.MkdirAll(dir, 0o700)
	return
}

func (self *Node) waitForPeers(ctx context.Context, chainService *neutrinolib.ChainService) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		connected := chainService.ConnectedCount()
		if connected >= int32(self.config.RequiredPeers) {
			self.log.WithField("peers", connected).Info("Connected to peers")
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (self *Node) waitForHeaders(ctx context.Context, chainService *neutrinolib.ChainService) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	start := time.Now()
	for !chainService.IsCurrent() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}

	best, err := chainService.BestBlock()
	if err != nil {
		return err
	}

	self.log.WithField("height", best.Height).WithField("duration", time.Since(start)).Info("Headers synced")
	return nil
}

// Rescans from the anchor and forwards every batch of blocks as an update.
// After catching up it keeps following new blocks until stopped.
func (self *Node) scan(ctx context.Context, chainService *neutrinolib.ChainService) (err error) {
	batch, err := newBatch(seenTxCount)
	if err != nil {
		return
	}

	addresses, err := self.addresses()
	if err != nil {
		return
	}

	inputs := make([]neutrinolib.InputWithScript, 0, len(self.config.Outpoints))
	for _, outpoint := range self.config.Outpoints {
		inputs = append(inputs, neutrinolib.InputWithScript{
			OutPoint: outpoint.OutPoint,
			PkScript: outpoint.PkScript,
		})
	}

	self.log.WithField("anchor", self.config.Anchor).
		WithField("addresses", len(addresses)).
		WithField("outpoints", len(inputs)).
		Info("Starting rescan")

	rescan := neutrinolib.NewRescan(
		&neutrinolib.RescanChainSource{ChainService: chainService},
		neutrinolib.StartBlock(&headerfs.BlockStamp{
			Height: int32(self.config.Anchor.Height),
			Hash:   self.config.Anchor.Hash,
		}),
		neutrinolib.WatchAddrs(addresses...),
		neutrinolib.WatchInputs(inputs...),
		neutrinolib.QuitChan(ctx.Done()),
		neutrinolib.NotificationHandlers(rpcclient.NotificationHandlers{
			OnFilteredBlockConnected:    batch.connected,
			OnFilteredBlockDisconnected: batch.disconnected,
		}),
	)
	errChan := rescan.Start()
	defer rescan.WaitForShutdown()

	updates := newUpdater(chainService, self.config.Anchor, self.config.Locators)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err = <-errChan:
			if err != nil {
				return fmt.Errorf("rescan failed: %w", err)
			}
			return nil
		case <-batch.notify:
		}

		best, err := chainService.BestBlock()
		if err != nil {
			return err
		}

		tip, ok := batch.currentTip()
		if !ok || int32(tip.Height) < best.Height {
			// Still catching up
			continue
		}
		tip, blocks := batch.take()

		update, err := updates.next(tip, blocks)
		if err != nil {
			return err
		}

		err = self.handle.Send(ctx, update)
		if err != nil {
			return err
		}

		self.log.WithField("tip", tip.Height).WithField("blocks", len(blocks)).Debug("Update sent")
	}
}

// Neutrino watches addresses, scripts without one are skipped
func (self *Node) addresses() (out []btcutil.Address, err error) {
	for _, script := range self.config.Scripts {
		_, addrs, _, err := txscript.ExtractPkScriptAddrs(script, self.config.Network)
		if err != nil {
			return nil, err
		}
		if len(addrs) == 0 {
			self.log.WithField("script", fmt.Sprintf("%x", script)).Warn("Script has no address, skipping")
			continue
		}
		out = append(out, addrs...)
	}
	return
}
