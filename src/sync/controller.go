package sync

import (
	"github.com/warp-contracts/lightsync/src/utils/config"
	"github.com/warp-contracts/lightsync/src/utils/monitor"
	"github.com/warp-contracts/lightsync/src/utils/node"
	"github.com/warp-contracts/lightsync/src/utils/publisher"
	"github.com/warp-contracts/lightsync/src/utils/store"
	"github.com/warp-contracts/lightsync/src/utils/task"
)

type Controller struct {
	*task.Task

	Monitor *monitor.Monitor
	syncer  *Syncer
}

// Main class that orchestrates the sync service
//
// +---------+   updates   +--------+   changesets   +-------+
// |  node   | ----------> | syncer | -------------> | store |
// +---------+             +--------+                +-------+
//                              |  events
//                              v
//                        +-----------+
//                        | publisher | (optional)
//                        +-----------+
func NewController(config *config.Config) (self *Controller, err error) {
	self = new(Controller)

	self.Task = task.NewTask(config, "controller")

	walletStore, err := store.New(self.Ctx, config)
	if err != nil {
		return
	}

	self.Monitor = monitor.NewMonitor().
		WithMaxHistorySize(30)

	server := NewServer(config).
		WithMonitor(self.Monitor)

	self.syncer = NewSyncer(config).
		WithStore(walletStore).
		WithMonitor(self.Monitor)

	self.Task = self.Task.
		WithSubtask(self.Monitor.Task).
		WithSubtask(server.Task).
		WithSubtask(self.syncer.Task).
		WithOnAfterStop(func() {
			err := walletStore.Close()
			if err != nil {
				self.Log.WithError(err).Error("Failed to close store")
			}
		})

	if config.Redis.Enabled {
		events := make(chan *Event, 10)
		self.syncer.WithOutputChannel(events)

		redisPublisher := publisher.NewRedisPublisher[*Event](config, "redis-publisher").
			WithInputChannel(events).
			WithMonitor(self.Monitor)

		self.Task = self.Task.WithSubtask(redisPublisher.Task)
	}

	return
}

// Replaces the neutrino node
func (self *Controller) WithNodeFactory(v node.Factory) *Controller {
	self.syncer.WithNodeFactory(v)
	return self
}
