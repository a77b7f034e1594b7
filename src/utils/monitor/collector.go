package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Exposes the report as prometheus metrics
type Collector struct {
	monitor *Monitor

	StartTimestamp                  *prometheus.Desc
	UpForSeconds                    *prometheus.Desc
	LastUpdateTimestamp             *prometheus.Desc
	SessionsStarted                 *prometheus.Desc
	SessionsFinished                *prometheus.Desc
	UpdatesApplied                  *prometheus.Desc
	TxsApplied                      *prometheus.Desc
	ChangesetsSaved                 *prometheus.Desc
	TipHeight                       *prometheus.Desc
	AverageBlocksProcessedPerMinute *prometheus.Desc
	Balance                         *prometheus.Desc
	MessagesPublished               *prometheus.Desc

	// Errors
	Errors *prometheus.Desc
}

func NewCollector() *Collector {
	labels := prometheus.Labels{
		"app": "lightsync",
	}

	return &Collector{
		StartTimestamp:                  prometheus.NewDesc("start_timestamp", "", nil, labels),
		UpForSeconds:                    prometheus.NewDesc("up_for_seconds", "", nil, labels),
		LastUpdateTimestamp:             prometheus.NewDesc("last_update_timestamp", "", nil, labels),
		SessionsStarted:                 prometheus.NewDesc("sessions_started", "", nil, labels),
		SessionsFinished:                prometheus.NewDesc("sessions_finished", "", nil, labels),
		UpdatesApplied:                  prometheus.NewDesc("updates_applied", "", nil, labels),
		TxsApplied:                      prometheus.NewDesc("txs_applied", "", nil, labels),
		ChangesetsSaved:                 prometheus.NewDesc("changesets_saved", "", nil, labels),
		TipHeight:                       prometheus.NewDesc("wallet_tip_height", "", nil, labels),
		AverageBlocksProcessedPerMinute: prometheus.NewDesc("average_blocks_processed_per_minute", "", nil, labels),
		Balance:                         prometheus.NewDesc("wallet_balance_sats", "", []string{"kind"}, labels),
		MessagesPublished:               prometheus.NewDesc("messages_published", "", nil, labels),
		Errors:                          prometheus.NewDesc("errors", "", []string{"kind"}, labels),
	}
}

func (self *Collector) WithMonitor(m *Monitor) *Collector {
	self.monitor = m
	return self
}

func (self *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- self.StartTimestamp
	ch <- self.UpForSeconds
	ch <- self.LastUpdateTimestamp
	ch <- self.SessionsStarted
	ch <- self.SessionsFinished
	ch <- self.UpdatesApplied
	ch <- self.TxsApplied
	ch <- self.ChangesetsSaved
	ch <- self.TipHeight
	ch <- self.AverageBlocksProcessedPerMinute
	ch <- self.Balance
	ch <- self.MessagesPublished
	ch <- self.Errors
}

// Collect implements required collect function for all promehteus collectors
func (self *Collector) Collect(ch chan<- prometheus.Metric) {
	state := &self.monitor.Report.Sync.State
	ch <- prometheus.MustNewConstMetric(self.StartTimestamp, prometheus.GaugeValue, float64(state.StartTimestamp.Load()))
	ch <- prometheus.MustNewConstMetric(self.UpForSeconds, prometheus.GaugeValue, float64(state.UpForSeconds.Load()))
	ch <- prometheus.MustNewConstMetric(self.LastUpdateTimestamp, prometheus.GaugeValue, float64(state.LastUpdateTimestamp.Load()))
	ch <- prometheus.MustNewConstMetric(self.SessionsStarted, prometheus.CounterValue, float64(state.SessionsStarted.Load()))
	ch <- prometheus.MustNewConstMetric(self.SessionsFinished, prometheus.CounterValue, float64(state.SessionsFinished.Load()))
	ch <- prometheus.MustNewConstMetric(self.UpdatesApplied, prometheus.CounterValue, float64(state.UpdatesApplied.Load()))
	ch <- prometheus.MustNewConstMetric(self.TxsApplied, prometheus.CounterValue, float64(state.TxsApplied.Load()))
	ch <- prometheus.MustNewConstMetric(self.ChangesetsSaved, prometheus.CounterValue, float64(state.ChangesetsSaved.Load()))
	ch <- prometheus.MustNewConstMetric(self.TipHeight, prometheus.GaugeValue, float64(state.TipHeight.Load()))
	ch <- prometheus.MustNewConstMetric(self.AverageBlocksProcessedPerMinute, prometheus.GaugeValue, state.AverageBlocksProcessedPerMinute.Load())
	ch <- prometheus.MustNewConstMetric(self.Balance, prometheus.GaugeValue, float64(state.ConfirmedBalance.Load()), "confirmed")
	ch <- prometheus.MustNewConstMetric(self.Balance, prometheus.GaugeValue, float64(state.PendingBalance.Load()), "pending")
	ch <- prometheus.MustNewConstMetric(self.Balance, prometheus.GaugeValue, float64(state.ImmatureBalance.Load()), "immature")
	ch <- prometheus.MustNewConstMetric(self.MessagesPublished, prometheus.CounterValue, float64(self.monitor.Report.Publisher.State.MessagesPublished.Load()))

	// Errors
	errs := &self.monitor.Report.Sync.Errors
	for kind, value := range map[string]uint64{
		"build":                   errs.Build.Load(),
		"update":                  errs.Update.Load(),
		"merge":                   errs.Merge.Load(),
		"chain_inconsistency":     errs.ChainInconsistency.Load(),
		"referential_consistency": errs.ReferentialConsistency.Load(),
		"store_load":              errs.StoreLoad.Load(),
		"store_append":            errs.StoreAppend.Load(),
		"shutdown":                errs.Shutdown.Load(),
		"publish":                 self.monitor.Report.Publisher.Errors.Publish.Load(),
		"publish_failure":         self.monitor.Report.Publisher.Errors.PersistentFailure.Load(),
	} {
		ch <- prometheus.MustNewConstMetric(self.Errors, prometheus.CounterValue, float64(value), kind)
	}
}
