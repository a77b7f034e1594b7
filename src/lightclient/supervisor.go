package lightclient

import (
	"go.uber.org/atomic"

	"github.com/warp-contracts/lightsync/src/utils/node"
	"github.com/warp-contracts/lightsync/src/utils/task"
)

// Runs the node on its own goroutine for as long as the node lives
type Supervisor struct {
	*task.Task

	node node.Node
	err  *atomic.Error
}

func NewSupervisor(n node.Node) (self *Supervisor) {
	self = new(Supervisor)
	self.node = n
	self.err = atomic.NewError(nil)

	self.Task = task.NewTask(nil, "supervisor").
		WithSubtaskFunc(self.run)

	return
}

// Spawns the node, unless it's already running
func (self *Supervisor) Start() error {
	if self.node.IsRunning() {
		self.Log.Debug("Node already running")
		return nil
	}
	return self.Task.Start()
}

func (self *Supervisor) IsRunning() bool {
	return self.node.IsRunning()
}

// Error the node terminated with
func (self *Supervisor) Err() error {
	return self.err.Load()
}

// Closed when the node goroutine exits
func (self *Supervisor) Done() <-chan struct{} {
	return self.CtxRunning.Done()
}

func (self *Supervisor) run() error {
	self.Log.Info("Node starting")
	err := self.node.Run(self.Ctx)
	if err != nil {
		self.err.Store(err)
		return err
	}
	self.Log.Info("Node finished")
	return nil
}
