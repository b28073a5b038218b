package lib

import (
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector exports the slot pools and message counters of a set of Trans to Prometheus.
// Every series is labeled with the trans id, its role and the direction.
type Collector struct {
	mu    sync.Mutex
	trans map[uint64]*Trans

	inUse    *prometheus.Desc
	acquires *prometheus.Desc
	waits    *prometheus.Desc
	messages *prometheus.Desc
	bytes    *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

func NewCollector(ts ...*Trans) *Collector {
	labels := []string{"trans", "role", "dir"}
	c := &Collector{
		trans: make(map[uint64]*Trans),
		inUse: prometheus.NewDesc("shmtrans_slots_in_use",
			"Number of slots currently holding a posted request.", labels, nil),
		acquires: prometheus.NewDesc("shmtrans_slot_acquires_total",
			"Number of slots handed out to posted requests.", labels, nil),
		waits: prometheus.NewDesc("shmtrans_slot_waits_total",
			"Number of posts that had to wait for a free slot.", labels, nil),
		messages: prometheus.NewDesc("shmtrans_messages_total",
			"Number of messages moved through the mailbox.", labels, nil),
		bytes: prometheus.NewDesc("shmtrans_bytes_total",
			"Number of payload bytes moved through the mailbox.", labels, nil),
	}
	for _, t := range ts {
		c.Add(t)
	}
	return c
}

func (c *Collector) Add(t *Trans) {
	if t == nil {
		return
	}
	c.mu.Lock()
	c.trans[t.id] = t
	c.mu.Unlock()
}

func (c *Collector) Remove(t *Trans) {
	if t == nil {
		return
	}
	c.mu.Lock()
	delete(c.trans, t.id)
	c.mu.Unlock()
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.inUse
	ch <- c.acquires
	ch <- c.waits
	ch <- c.messages
	ch <- c.bytes
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.mu.Lock()
	ts := make([]*Trans, 0, len(c.trans))
	for _, t := range c.trans {
		ts = append(ts, t)
	}
	c.mu.Unlock()

	for _, t := range ts {
		id := strconv.FormatUint(t.id, 10)
		for _, dir := range []*channel{t.send, t.recv} {
			st := t.stats(dir)
			lv := []string{id, t.Role(), dir.name}

			ch <- prometheus.MustNewConstMetric(c.inUse, prometheus.GaugeValue, float64(st.InUse), lv...)
			ch <- prometheus.MustNewConstMetric(c.acquires, prometheus.CounterValue, float64(st.Acquires), lv...)
			ch <- prometheus.MustNewConstMetric(c.waits, prometheus.CounterValue, float64(st.Waits), lv...)
			ch <- prometheus.MustNewConstMetric(c.messages, prometheus.CounterValue,
				float64(atomic.LoadUint64(&dir.messages)), lv...)
			ch <- prometheus.MustNewConstMetric(c.bytes, prometheus.CounterValue,
				float64(atomic.LoadUint64(&dir.bytes)), lv...)
		}
	}
}
