package status

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	lastTSDesc = prometheus.NewDesc(
		"hume_task_last_ts_seconds",
		"Timestamp of the last hume seen for a hostname and task, in seconds since the epoch.",
		[]string{"hostname", "task"}, nil,
	)
	countDesc = prometheus.NewDesc(
		"hume_task_messages_total",
		"Humes accepted for a hostname and task since the daemon started.",
		[]string{"hostname", "task"}, nil,
	)
	levelDesc = prometheus.NewDesc(
		"hume_task_last_level",
		"Level of the last hume seen for a hostname and task (always 1).",
		[]string{"hostname", "task", "level"}, nil,
	)
)

// Collector exposes a Board to Prometheus. Values are read at scrape time.
type Collector struct {
	board *Board
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector creates a collector over b.
func NewCollector(b *Board) *Collector {
	return &Collector{board: b}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- lastTSDesc
	ch <- countDesc
	ch <- levelDesc
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for _, e := range c.board.Snapshot() {
		ts := float64(e.LastTimestamp.UnixNano()) / 1e9
		ch <- prometheus.MustNewConstMetric(lastTSDesc, prometheus.GaugeValue, ts, e.Hostname, e.Task)
		ch <- prometheus.MustNewConstMetric(countDesc, prometheus.CounterValue, float64(e.Count), e.Hostname, e.Task)
		ch <- prometheus.MustNewConstMetric(levelDesc, prometheus.GaugeValue, 1, e.Hostname, e.Task, string(e.LastLevel))
	}
}
