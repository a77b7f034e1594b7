package lightclient

import (
	"context"
	"time"

	"github.com/rs/xid"
	"go.uber.org/atomic"

	"github.com/warp-contracts/lightsync/src/utils/chain"
	"github.com/warp-contracts/lightsync/src/utils/keychain"
	"github.com/warp-contracts/lightsync/src/utils/logger"
	"github.com/warp-contracts/lightsync/src/utils/node"
)

// Wallet position handed over to the node for one sync session
type Request struct {
	id       xid.ID
	tip      *chain.Checkpoint
	index    *keychain.Index
	consumed *atomic.Bool
}

// Snapshots the index, later reveals in the wallet don't affect the request
func NewRequest(tip *chain.Checkpoint, index *keychain.Index) *Request {
	return &Request{
		id:       xid.New(),
		tip:      tip,
		index:    index.Snapshot(),
		consumed: atomic.NewBool(false),
	}
}

// Recognizes scripts at indices [0, index] of every keychain, as watched by the node.
// Payments to them reveal up to the paid index once merged.
func (self *Request) WatchTo(index uint32) (err error) {
	for _, k := range self.index.Keychains() {
		err = self.index.Watch(k, index)
		if err != nil {
			return
		}
	}
	return
}

func (self *Request) ID() xid.ID {
	return self.id
}

func (self *Request) Tip() *chain.Checkpoint {
	return self.tip
}

func (self *Request) Index() *keychain.Index {
	return self.index
}

// Creates the client reading updates from the handle. Works only once.
func (self *Request) IntoClient(handle *node.Handle, shutdownTimeout time.Duration) (client *Client, err error) {
	if !self.consumed.CompareAndSwap(false, true) {
		return nil, ErrRequestConsumed
	}

	client = &Client{
		id:              self.id,
		handle:          handle,
		index:           self.index,
		shutdownTimeout: shutdownTimeout,
		produced:        atomic.NewBool(false),
		stopping:        atomic.NewBool(false),
	}
	client.log = logger.NewSublogger("light-client").WithField("session", self.id.String())
	client.ctx, client.cancel = context.WithCancel(context.Background())
	return
}
