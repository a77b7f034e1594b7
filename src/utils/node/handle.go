package node

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/atomic"
)

var ErrStopped = errors.New("node is stopping")

// Channel pair between a node and its consumer.
//
// The node is the only sender of updates. The consumer only receives
// updates and requests the stop.
type Handle struct {
	updates chan *Update

	// Guards stop together with started, Begin and Shutdown can't interleave
	mtx     sync.Mutex
	stop    chan struct{}
	stopped bool

	done      chan struct{}
	closeOnce sync.Once

	started *atomic.Bool
}

func NewHandle(buffer int) *Handle {
	if buffer < 0 {
		buffer = 0
	}
	return &Handle{
		updates: make(chan *Update, buffer),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
		started: atomic.NewBool(false),
	}
}

// Node side. Marks the node as started, false if the stop was already requested.
func (self *Handle) Begin() bool {
	self.mtx.Lock()
	defer self.mtx.Unlock()

	if self.stopped {
		return false
	}
	self.started.Store(true)
	return true
}

// Node side. Closed when the consumer requests the stop.
func (self *Handle) Stopping() <-chan struct{} {
	return self.stop
}

// Node side. Blocks until the update is buffered, stop is requested or ctx is done.
func (self *Handle) Send(ctx context.Context, update *Update) error {
	select {
	case <-self.stop:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	select {
	case self.updates <- update:
		return nil
	case <-self.stop:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Node side. Called once the node terminated, closes the update channel.
func (self *Handle) Close() {
	self.closeOnce.Do(func() {
		close(self.updates)
		close(self.done)
	})
}

// Closed after the node terminated
func (self *Handle) Done() <-chan struct{} {
	return self.done
}

// Consumer side. Next update, nil once the node stopped.
func (self *Handle) Update(ctx context.Context) (*Update, error) {
	select {
	case update, ok := <-self.updates:
		if !ok {
			return nil, nil
		}
		return update, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Consumer side. Requests the stop and waits for the node to terminate.
// Returns at once for a node that never started.
func (self *Handle) Shutdown(ctx context.Context) error {
	self.mtx.Lock()
	if !self.stopped {
		self.stopped = true
		close(self.stop)
	}
	started := self.started.Load()
	self.mtx.Unlock()

	if !started {
		return nil
	}

	select {
	case <-self.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
