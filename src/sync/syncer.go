package sync

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/exp/slices"

	"github.com/warp-contracts/lightsync/src/lightclient"
	"github.com/warp-contracts/lightsync/src/utils/config"
	"github.com/warp-contracts/lightsync/src/utils/monitor"
	"github.com/warp-contracts/lightsync/src/utils/node"
	"github.com/warp-contracts/lightsync/src/utils/store"
	"github.com/warp-contracts/lightsync/src/utils/task"
	"github.com/warp-contracts/lightsync/src/utils/wallet"
)

// Runs sync sessions one after another.
// Each session loads the wallet, starts a light client and merges its updates until the node stops.
type Syncer struct {
	*task.Task

	monitor *monitor.Monitor
	store   store.Store
	options []lightclient.Option

	// Events are dropped when nil
	output chan *Event
}

func NewSyncer(config *config.Config) (self *Syncer) {
	self = new(Syncer)
	self.monitor = monitor.NewMonitor()

	self.Task = task.NewTask(config, "syncer").
		WithPeriodicSubtaskFunc(config.LightClient.SyncInterval, self.session).
		WithOnAfterStop(func() {
			if self.output != nil {
				close(self.output)
			}
		})

	return
}

func (self *Syncer) WithStore(v store.Store) *Syncer {
	self.store = v
	return self
}

func (self *Syncer) WithMonitor(v *monitor.Monitor) *Syncer {
	self.monitor = v
	return self
}

func (self *Syncer) WithNodeFactory(v node.Factory) *Syncer {
	self.options = append(self.options, lightclient.WithNodeFactory(v))
	return self
}

func (self *Syncer) WithOutputChannel(v chan *Event) *Syncer {
	self.output = v
	return self
}

// One light client run. Errors are reported and the next session starts after the interval.
func (self *Syncer) session() error {
	report := &self.monitor.GetReport().Sync
	report.State.SessionsStarted.Inc()
	defer report.State.SessionsFinished.Inc()

	w, err := LoadWallet(self.Ctx, self.Config, self.store)
	if err != nil {
		self.Log.WithError(err).Error("Failed to load wallet")
		report.Errors.StoreLoad.Inc()
		return nil
	}
	self.reportWallet(w)

	lightClientConfig, err := LightClientConfig(self.Config)
	if err != nil {
		self.Log.WithError(err).Error("Invalid light client config")
		report.Errors.Build.Inc()
		return nil
	}

	supervisor, client, err := lightclient.Build(w, lightClientConfig, self.options...)
	if err != nil {
		self.Log.WithError(err).Error("Failed to build light client")
		report.Errors.Build.Inc()
		return nil
	}

	log := self.Log.WithField("session", client.ID().String())
	log.WithField("tip", w.LatestCheckpoint().Height()).Info("Session started")

	err = supervisor.Start()
	if err != nil {
		log.WithError(err).Error("Failed to start node")
		report.Errors.Build.Inc()
		return nil
	}

	defer func() {
		// Never wait longer than the configured stop timeout
		ctx, cancel := context.WithTimeout(context.Background(), self.Config.StopTimeout)
		defer cancel()

		err := client.Shutdown(ctx)
		if err != nil {
			log.WithError(err).Warn("Node failed to shut down")
			report.Errors.Shutdown.Inc()
		}

		err = supervisor.StopWaitContext(ctx)
		if err != nil {
			report.Errors.Shutdown.Inc()
		}

		err = supervisor.Err()
		if err != nil {
			log.WithError(err).Error("Node failed")
		}
		log.WithField("tip", w.LatestCheckpoint().Height()).Info("Session finished")
	}()

	self.merge(log, w, client)
	return nil
}

// Merges updates as long as the node produces them
func (self *Syncer) merge(log *logrus.Entry, w *wallet.Wallet, client *lightclient.Client) {
	report := &self.monitor.GetReport().Sync

	ctx := self.Ctx
	if self.Config.LightClient.UpdateTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, self.Config.LightClient.UpdateTimeout)
		defer cancel()
	}

	for {
		update, err := client.Update(ctx)
		if err != nil {
			if ctx.Err() == nil {
				log.WithError(err).Error("Failed to receive update")
				report.Errors.Update.Inc()
			}
			return
		}
		if update == nil {
			log.Debug("Node stopped sending updates")
			return
		}

		changeset, err := lightclient.ApplyUpdate(w, update)
		if err != nil {
			var (
				inconsistency *lightclient.ChainInconsistencyError
				referential   *lightclient.ReferentialConsistencyError
			)
			switch {
			case errors.As(err, &inconsistency):
				// Next session starts from the wallet tip again
				log.WithError(err).Error("Update doesn't connect to the wallet chain, ending session")
				report.Errors.ChainInconsistency.Inc()
				return
			case errors.As(err, &referential):
				log.WithError(err).Warn("Update references unknown block, skipping")
				report.Errors.ReferentialConsistency.Inc()
			default:
				log.WithError(err).Error("Failed to merge update, skipping")
				report.Errors.Merge.Inc()
			}
			continue
		}

		err = self.persist(w.TakeStaged())
		if err != nil {
			log.WithError(err).Error("Failed to save wallet changes, ending session")
			return
		}

		report.State.UpdatesApplied.Inc()
		report.State.TxsApplied.Add(uint64(len(changeset.Graph.Txs)))
		report.State.LastUpdateTimestamp.Store(time.Now().Unix())
		self.reportWallet(w)

		log.WithField("tip", w.LatestCheckpoint().Height()).
			WithField("txs", len(changeset.Graph.Txs)).
			Info("Update applied")

		self.publish(update, w, changeset)
	}
}

func (self *Syncer) persist(changeset wallet.ChangeSet) error {
	if changeset.IsEmpty() {
		return nil
	}

	report := &self.monitor.GetReport().Sync
	err := task.NewRetry().
		WithContext(self.Ctx).
		WithMaxElapsedTime(self.Config.Store.MaxElapsedTime).
		WithMaxInterval(self.Config.Store.MaxInterval).
		WithOnError(func(err error, isDurationAcceptable bool) error {
			self.Log.WithError(err).Warn("Failed to save changeset, retrying")
			report.Errors.StoreAppend.Inc()
			return err
		}).
		Run(func() error {
			return self.store.Append(self.Ctx, changeset)
		})
	if err != nil {
		return err
	}

	report.State.ChangesetsSaved.Inc()
	return nil
}

func (self *Syncer) reportWallet(w *wallet.Wallet) {
	state := &self.monitor.GetReport().Sync.State
	balance := w.Balance()
	state.TipHeight.Store(int64(w.LatestCheckpoint().Height()))
	state.ConfirmedBalance.Store(int64(balance.Confirmed))
	state.PendingBalance.Store(int64(balance.Pending))
	state.ImmatureBalance.Store(int64(balance.Immature))
}

func (self *Syncer) publish(update *lightclient.Update, w *wallet.Wallet, changeset wallet.ChangeSet) {
	if self.output == nil {
		return
	}

	tip := w.LatestCheckpoint()
	balance := w.Balance()
	event := &Event{
		Wallet:    self.Config.Wallet.Name,
		Session:   update.Session,
		Height:    tip.Height(),
		Hash:      tip.Hash().String(),
		Txids:     make([]string, 0, len(changeset.Graph.Txs)),
		Confirmed: int64(balance.Confirmed),
		Pending:   int64(balance.Pending),
		Immature:  int64(balance.Immature),
	}
	for txid := range changeset.Graph.Txs {
		event.Txids = append(event.Txids, txid.String())
	}
	slices.Sort(event.Txids)

	select {
	case self.output <- event:
	case <-self.StopChannel:
	}
}
