// Package metrics exports cache and server counters to Prometheus.
//
// Shard counters are read on scrape from the same lock-free snapshots that
// back the STATS command, so scraping never blocks the data path.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/raniellyferreira/arenacache/protocol"
	"github.com/raniellyferreira/arenacache/server"
	"github.com/raniellyferreira/arenacache/storage"
)

const namespace = "arenacache"

// StoreSource supplies shard snapshots
type StoreSource interface {
	Stats() storage.Stats
}

// ServerSource supplies connection and buffer pool snapshots
type ServerSource interface {
	Stats() server.Stats
}

type shardCounter struct {
	desc *prometheus.Desc
	get  func(c *storage.Counters) float64
}

// Collector is a prometheus.Collector over store and server snapshots
type Collector struct {
	store  StoreSource
	server ServerSource

	keys      *prometheus.Desc
	bytes     *prometheus.Desc
	capacity  *prometheus.Desc
	fragments *prometheus.Desc
	counters  []shardCounter

	connected   *prometheus.Desc
	connections *prometheus.Desc
	errors      *prometheus.Desc
	uptime      *prometheus.Desc
	poolHits    *prometheus.Desc
	poolMisses  *prometheus.Desc
	poolIdle    *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector creates a collector. srv may be nil when only the store is
// exported.
func NewCollector(store StoreSource, srv ServerSource) *Collector {
	shard := []string{"shard"}
	counter := func(name, help string, get func(c *storage.Counters) uint64) shardCounter {
		return shardCounter{
			desc: prometheus.NewDesc(prometheus.BuildFQName(namespace, "shard", name), help, shard, nil),
			get:  func(c *storage.Counters) float64 { return float64(get(c)) },
		}
	}

	return &Collector{
		store:  store,
		server: srv,

		keys:     prometheus.NewDesc(prometheus.BuildFQName(namespace, "shard", "keys"), "Live entries per shard.", shard, nil),
		bytes:    prometheus.NewDesc(prometheus.BuildFQName(namespace, "shard", "bytes"), "Arena bytes held by live entries.", shard, nil),
		capacity: prometheus.NewDesc(prometheus.BuildFQName(namespace, "shard", "capacity_bytes"), "Arena size per shard.", shard, nil),

		fragments: prometheus.NewDesc(prometheus.BuildFQName(namespace, "shard", "arena_fragments"),
			"Disjoint free regions in the shard arena.", shard, nil),

		counters: []shardCounter{
			counter("hits_total", "Lookups that found a live entry.", func(c *storage.Counters) uint64 { return c.Hits }),
			counter("misses_total", "Lookups that found nothing or an expired entry.", func(c *storage.Counters) uint64 { return c.Misses }),
			counter("puts_total", "Successful writes.", func(c *storage.Counters) uint64 { return c.Puts }),
			counter("deletes_total", "Deletes that removed an entry.", func(c *storage.Counters) uint64 { return c.Deletes }),
			counter("evictions_total", "Live entries evicted to make room.", func(c *storage.Counters) uint64 { return c.Evictions }),
			counter("expired_total", "Expired entries reclaimed.", func(c *storage.Counters) uint64 { return c.Expired }),
			counter("rejected_total", "Writes rejected because the shard was full.", func(c *storage.Counters) uint64 { return c.Rejected }),
			counter("compactions_total", "Arena compactions.", func(c *storage.Counters) uint64 { return c.Compactions }),
			counter("stale_refs_total", "Arena references that failed generation checks.", func(c *storage.Counters) uint64 { return c.StaleRefs }),
		},

		connected:   prometheus.NewDesc(prometheus.BuildFQName(namespace, "server", "connected_clients"), "Open client connections.", nil, nil),
		connections: prometheus.NewDesc(prometheus.BuildFQName(namespace, "server", "connections_total"), "Accepted client connections.", nil, nil),
		errors:      prometheus.NewDesc(prometheus.BuildFQName(namespace, "server", "errors_total"), "Commands answered with an error.", nil, nil),
		uptime:      prometheus.NewDesc(prometheus.BuildFQName(namespace, "server", "uptime_seconds"), "Seconds since the listener started.", nil, nil),
		poolHits:    prometheus.NewDesc(prometheus.BuildFQName(namespace, "bufpool", "hits_total"), "Buffers served from the pool.", nil, nil),
		poolMisses:  prometheus.NewDesc(prometheus.BuildFQName(namespace, "bufpool", "misses_total"), "Buffers allocated because the pool was empty.", nil, nil),
		poolIdle:    prometheus.NewDesc(prometheus.BuildFQName(namespace, "bufpool", "idle_buffers"), "Buffers waiting in the pool.", nil, nil),
	}
}

// Describe implements prometheus.Collector
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.keys
	ch <- c.bytes
	ch <- c.capacity
	ch <- c.fragments
	for _, sc := range c.counters {
		ch <- sc.desc
	}
	if c.server != nil {
		ch <- c.connected
		ch <- c.connections
		ch <- c.errors
		ch <- c.uptime
		ch <- c.poolHits
		ch <- c.poolMisses
		ch <- c.poolIdle
	}
}

// Collect implements prometheus.Collector
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	st := c.store.Stats()
	for i := range st.Shards {
		sh := &st.Shards[i]
		id := strconv.Itoa(sh.ID)
		ch <- prometheus.MustNewConstMetric(c.keys, prometheus.GaugeValue, float64(sh.Keys), id)
		ch <- prometheus.MustNewConstMetric(c.bytes, prometheus.GaugeValue, float64(sh.Bytes), id)
		ch <- prometheus.MustNewConstMetric(c.capacity, prometheus.GaugeValue, float64(sh.Capacity), id)
		ch <- prometheus.MustNewConstMetric(c.fragments, prometheus.GaugeValue, float64(sh.Fragments), id)
		for _, sc := range c.counters {
			ch <- prometheus.MustNewConstMetric(sc.desc, prometheus.CounterValue, sc.get(&sh.Counters), id)
		}
	}

	if c.server == nil {
		return
	}
	ss := c.server.Stats()
	ch <- prometheus.MustNewConstMetric(c.connected, prometheus.GaugeValue, float64(ss.ConnectedClients))
	ch <- prometheus.MustNewConstMetric(c.connections, prometheus.CounterValue, float64(ss.TotalConnections))
	ch <- prometheus.MustNewConstMetric(c.errors, prometheus.CounterValue, float64(ss.TotalErrors))
	ch <- prometheus.MustNewConstMetric(c.uptime, prometheus.GaugeValue, ss.Uptime.Seconds())
	ch <- prometheus.MustNewConstMetric(c.poolHits, prometheus.CounterValue, float64(ss.Pool.Hits))
	ch <- prometheus.MustNewConstMetric(c.poolMisses, prometheus.CounterValue, float64(ss.Pool.Misses))
	ch <- prometheus.MustNewConstMetric(c.poolIdle, prometheus.GaugeValue, float64(ss.Pool.Idle))
}

// CommandObserver counts dispatched commands and their latency. It
// implements server.Observer.
type CommandObserver struct {
	count    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

var _ server.Observer = (*CommandObserver)(nil)

// NewCommandObserver creates the command metrics and registers them with reg
func NewCommandObserver(reg prometheus.Registerer) (*CommandObserver, error) {
	o := &CommandObserver{
		count: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Commands dispatched, by command and outcome.",
		}, []string{"command", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "command_duration_seconds",
			Help:      "Time spent executing a command against the store.",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 10),
		}, []string{"command"}),
	}
	if err := reg.Register(o.count); err != nil {
		return nil, err
	}
	if err := reg.Register(o.duration); err != nil {
		return nil, err
	}
	return o, nil
}

// ObserveCommand implements server.Observer
func (o *CommandObserver) ObserveCommand(op protocol.Op, outcome server.Outcome, elapsed time.Duration) {
	name := op.String()
	o.count.WithLabelValues(name, string(outcome)).Inc()
	if op != protocol.OpInvalid {
		o.duration.WithLabelValues(name).Observe(elapsed.Seconds())
	}
}

// Handler serves the metrics gathered by g
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
