// In-memory node replaying prepared updates
package nodetest

import (
	"context"
	"sync"

	"go.uber.org/atomic"

	"github.com/warp-contracts/lightsync/src/utils/node"
)

type Fake struct {
	// Sent in order after the node starts
	Updates []*node.Update

	// Terminate after all updates are sent instead of waiting for the stop
	ExitWhenDone bool

	// Returned from Run
	Err error

	mtx     sync.Mutex
	config  *node.Config
	handle  *node.Handle
	started *atomic.Bool
	runs    *atomic.Int32
}

func NewFake(updates ...*node.Update) *Fake {
	return &Fake{
		Updates: updates,
		started: atomic.NewBool(false),
		runs:    atomic.NewInt32(0),
	}
}

func (self *Fake) WithExitWhenDone() *Fake {
	self.ExitWhenDone = true
	return self
}

// Satisfies node.Factory
func (self *Fake) Factory(config *node.Config) (node.Node, *node.Handle, error) {
	self.mtx.Lock()
	defer self.mtx.Unlock()
	self.config = config
	self.handle = node.NewHandle(config.UpdateBuffer)
	return self, self.handle, nil
}

// Config the last node was created with
func (self *Fake) Config() *node.Config {
	self.mtx.Lock()
	defer self.mtx.Unlock()
	return self.config
}

// Number of Run calls
func (self *Fake) Runs() int32 {
	return self.runs.Load()
}

func (self *Fake) IsRunning() bool {
	return self.started.Load()
}

func (self *Fake) Run(ctx context.Context) error {
	self.runs.Inc()

	self.mtx.Lock()
	handle := self.handle
	self.mtx.Unlock()

	defer handle.Close()

	if !handle.Begin() {
		return nil
	}
	self.started.Store(true)
	defer self.started.Store(false)

	for _, update := range self.Updates {
		err := handle.Send(ctx, update)
		if err != nil {
			return nil
		}
	}

	if self.ExitWhenDone {
		return self.Err
	}

	select {
	case <-handle.Stopping():
	case <-ctx.Done():
	}
	return self.Err
}
