package lightclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/sirupsen/logrus"
	"github.com/teivah/onecontext"
	"go.uber.org/atomic"

	"github.com/warp-contracts/lightsync/src/utils/chain"
	"github.com/warp-contracts/lightsync/src/utils/keychain"
	"github.com/warp-contracts/lightsync/src/utils/node"
	"github.com/warp-contracts/lightsync/src/utils/txgraph"
)

// Consumer end of one sync session.
//
// Shutdown has to be called before the client is dropped,
// otherwise the node keeps running together with its connections.
type Client struct {
	log    *logrus.Entry
	id     xid.ID
	handle *node.Handle

	// Snapshot taken by the request, follows reveals made by the updates
	index *keychain.Index

	shutdownTimeout time.Duration

	// Set after the first update
	produced *atomic.Bool

	// Set once Shutdown was called
	stopping *atomic.Bool

	// Cancelled on shutdown, unblocks pending Update calls
	ctx    context.Context
	cancel context.CancelFunc
}

func (self *Client) ID() xid.ID {
	return self.id
}

// Blocks until the node sends an update. Returns nil when the node stopped.
// Only one call at a time.
func (self *Client) Update(ctx context.Context) (update *Update, err error) {
	ctx, cancel := onecontext.Merge(ctx, self.ctx)
	defer cancel()

	data, err := self.handle.Update(ctx)
	if err != nil {
		if self.ctx.Err() != nil {
			// Shutdown while waiting
			return nil, nil
		}
		return nil, err
	}

	if data == nil {
		if !self.produced.Load() && !self.stopping.Load() {
			return nil, ErrChannelClosedEarly
		}
		return nil, nil
	}

	update, err = self.convert(data)
	if err != nil {
		return
	}

	self.produced.Store(true)

	self.log.WithField("tip", update.Checkpoint.Height()).
		WithField("txs", len(update.Graph.Txs)).
		Debug("Received update")
	return
}

// Stops the node and waits for it to terminate.
// Safe to call many times and while Update is pending.
func (self *Client) Shutdown(ctx context.Context) (err error) {
	self.stopping.Store(true)
	self.cancel()

	if self.shutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, self.shutdownTimeout)
		defer cancel()
	}

	err = self.handle.Shutdown(ctx)
	if err != nil {
		self.log.WithError(err).Error("Node didn't stop in time")
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return ErrShutdownTimeout
		}
		return fmt.Errorf("%w: %s", ErrShutdownTimeout, err)
	}

	self.log.Debug("Node stopped")
	return nil
}

// Keeps relevant transactions and anchors them in their blocks
func (self *Client) convert(data *node.Update) (update *Update, err error) {
	update = &Update{
		Session: self.id,
		Graph:   txgraph.NewChangeSet(),
		Indexer: keychain.NewChangeSet(),
	}

	headers := data.Headers
	if len(headers) == 0 {
		headers = []node.HeaderCheckpoint{data.Tip}
	}

	blocks := make([]chain.BlockId, 0, len(headers))
	for _, header := range headers {
		blocks = append(blocks, chain.BlockId{Height: header.Height, Hash: header.Hash})
	}

	update.Checkpoint, err = chain.FromBlockIds(blocks)
	if err != nil {
		return nil, fmt.Errorf("node sent invalid headers: %w", err)
	}

	for _, block := range data.Blocks {
		for _, tx := range block.Txs {
			// Outputs of earlier transactions make spends relevant
			if !self.index.IsRelevant(tx) {
				continue
			}

			var revealed keychain.ChangeSet
			revealed, err = self.index.IndexTx(tx)
			if err != nil {
				return
			}
			update.Indexer.Merge(revealed)

			update.Graph.AddTx(tx)
			update.Graph.AddAnchor(txgraph.Anchor{
				Block:            chain.BlockId{Height: block.Height, Hash: block.Hash},
				Txid:             tx.TxHash(),
				ConfirmationTime: block.Time.Unix(),
			})
		}
	}

	return
}
