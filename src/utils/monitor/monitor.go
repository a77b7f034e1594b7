package monitor

import (
	"math"
	"net/http"
	"time"

	"github.com/gammazero/deque"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/warp-contracts/lightsync/src/utils/task"
)

// Stores and computes monitor counters
type Monitor struct {
	*task.Task

	Report Report

	historySize int

	// Service is unhealthy when no update arrives for this long
	staleAfter time.Duration

	collector *Collector

	// Tip height sampled once a minute
	TipHeights *deque.Deque[int64]
}

func NewMonitor() (self *Monitor) {
	self = new(Monitor)

	self.Report.Sync.State.StartTimestamp.Store(time.Now().Unix())
	self.staleAfter = time.Hour

	self.collector = NewCollector().WithMonitor(self)

	self.Task = task.NewTask(nil, "monitor").
		WithPeriodicSubtaskFunc(time.Minute, self.monitorBlocks)

	return self.WithMaxHistorySize(30)
}

func (self *Monitor) WithMaxHistorySize(maxHistorySize int) *Monitor {
	self.historySize = maxHistorySize
	self.TipHeights = deque.New[int64](self.historySize)
	return self
}

func (self *Monitor) WithStaleAfter(v time.Duration) *Monitor {
	self.staleAfter = v
	return self
}

func (self *Monitor) GetReport() *Report {
	return &self.Report
}

func (self *Monitor) GetPrometheusCollector() prometheus.Collector {
	return self.collector
}

func round(f float64) float64 {
	return math.Round(f*100) / 100
}

// Measure how fast the wallet tip advances
func (self *Monitor) monitorBlocks() (err error) {
	loaded := self.Report.Sync.State.TipHeight.Load()
	if loaded == 0 {
		// Neglect the first 0
		return
	}

	self.TipHeights.PushBack(loaded)
	if self.TipHeights.Len() > self.historySize {
		self.TipHeights.PopFront()
	}
	value := float64(self.TipHeights.Back()-self.TipHeights.Front()) / float64(self.TipHeights.Len())

	self.Report.Sync.State.AverageBlocksProcessedPerMinute.Store(round(value))
	return
}

func (self *Monitor) IsOK() bool {
	now := time.Now()
	if now.Unix()-self.Report.Sync.State.StartTimestamp.Load() < int64(self.staleAfter.Seconds()) {
		return true
	}

	// Running long enough, some update should have been applied recently
	last := self.Report.Sync.State.LastUpdateTimestamp.Load()
	return now.Sub(time.Unix(last, 0)) < self.staleAfter
}

func (self *Monitor) OnGetState(c *gin.Context) {
	self.Report.Sync.State.UpForSeconds.Store(uint64(time.Now().Unix() - self.Report.Sync.State.StartTimestamp.Load()))
	c.JSON(http.StatusOK, &self.Report)
}

func (self *Monitor) OnGetHealth(c *gin.Context) {
	if self.IsOK() {
		c.Status(http.StatusOK)
	} else {
		c.Status(http.StatusServiceUnavailable)
	}
}
