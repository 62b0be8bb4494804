package telemetry

import (
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Counter struct {
	val atomic.Int64
}

func (c *Counter) Inc()         { c.val.Add(1) }
func (c *Counter) Add(n int64)  { c.val.Add(n) }
func (c *Counter) Value() int64 { return c.val.Load() }

type Gauge struct {
	val atomic.Int64
}

func (g *Gauge) Set(v int64)  { g.val.Store(v) }
func (g *Gauge) Inc()         { g.val.Add(1) }
func (g *Gauge) Dec()         { g.val.Add(-1) }
func (g *Gauge) Value() int64 { return g.val.Load() }

// LatencyTracker keeps the most recent maxKeep samples for percentile reads.
type LatencyTracker struct {
	mu      sync.Mutex
	samples []time.Duration
	maxKeep int
}

func NewLatencyTracker(maxKeep int) *LatencyTracker {
	return &LatencyTracker{maxKeep: maxKeep}
}

func (lt *LatencyTracker) Record(d time.Duration) {
	lt.mu.Lock()
	defer lt.mu.Unlock()
	lt.samples = append(lt.samples, d)
	if len(lt.samples) > lt.maxKeep {
		lt.samples = lt.samples[len(lt.samples)-lt.maxKeep:]
	}
}

func (lt *LatencyTracker) P50() time.Duration { return lt.percentile(0.50) }
func (lt *LatencyTracker) P99() time.Duration { return lt.percentile(0.99) }

func (lt *LatencyTracker) percentile(p float64) time.Duration {
	lt.mu.Lock()
	sorted := slices.Clone(lt.samples)
	lt.mu.Unlock()
	if len(sorted) == 0 {
		return 0
	}
	slices.Sort(sorted)
	return sorted[int(float64(len(sorted)-1)*p)]
}

// Metrics is the global metrics registry shared by the hub and relay processes.
var Metrics = struct {
	// relay link
	RelayMessagesIn   Counter
	RelayMessagesOut  Counter
	RelayParseErrors  Counter
	RelayReconnects   Counter
	RelayAuthFailures Counter
	RelayConnected    Gauge

	// collector pushes
	SchedulePushes Counter
	SummaryPushes  Counter
	PBPPushes      Counter
	PBPRequests    Counter
	PBPQueueDrops  Counter

	// metered upstream
	UpstreamRequests Counter
	UpstreamErrors   Counter
	QuotaExhausted   Counter
	UpstreamLatency  *LatencyTracker

	// viewers
	ViewerConnections Gauge
	Broadcasts        Counter
	ViewerSends       Counter
	ViewerSendErrors  Counter
}{
	UpstreamLatency: NewLatencyTracker(1000),
}

// RegisterPrometheus exposes the Metrics registry through reg.
func RegisterPrometheus(reg prometheus.Registerer) error {
	counters := []struct {
		name, help string
		c          *Counter
	}{
		{"relay_messages_in_total", "Relay frames received by the hub", &Metrics.RelayMessagesIn},
		{"relay_messages_out_total", "Relay frames written", &Metrics.RelayMessagesOut},
		{"relay_parse_errors_total", "Relay frames dropped as malformed or unknown", &Metrics.RelayParseErrors},
		{"relay_reconnects_total", "Relay reconnect attempts", &Metrics.RelayReconnects},
		{"relay_auth_failures_total", "Relay connections rejected for a bad secret", &Metrics.RelayAuthFailures},
		{"collector_schedule_pushes_total", "Schedule deltas pushed", &Metrics.SchedulePushes},
		{"collector_summary_pushes_total", "Summary deltas pushed", &Metrics.SummaryPushes},
		{"collector_pbp_pushes_total", "Play-by-play payloads pushed", &Metrics.PBPPushes},
		{"pbp_requests_total", "Play-by-play demand signals", &Metrics.PBPRequests},
		{"pbp_queue_drops_total", "Play-by-play requests dropped on a full queue", &Metrics.PBPQueueDrops},
		{"upstream_requests_total", "Metered upstream requests", &Metrics.UpstreamRequests},
		{"upstream_errors_total", "Metered upstream failures", &Metrics.UpstreamErrors},
		{"upstream_quota_exhausted_total", "Fetches skipped on an exhausted daily quota", &Metrics.QuotaExhausted},
		{"hub_broadcasts_total", "Topic payloads published", &Metrics.Broadcasts},
		{"hub_viewer_sends_total", "Payloads delivered to viewers", &Metrics.ViewerSends},
		{"hub_viewer_send_errors_total", "Viewer deliveries that failed", &Metrics.ViewerSendErrors},
	}
	for _, c := range counters {
		c := c
		err := reg.Register(prometheus.NewCounterFunc(
			prometheus.CounterOpts{Name: c.name, Help: c.help},
			func() float64 { return float64(c.c.Value()) },
		))
		if err != nil {
			return err
		}
	}

	gauges := []struct {
		name, help string
		g          *Gauge
	}{
		{"relay_connected", "1 while a relay link is attached", &Metrics.RelayConnected},
		{"hub_viewer_connections", "Open viewer connections", &Metrics.ViewerConnections},
	}
	for _, g := range gauges {
		g := g
		err := reg.Register(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{Name: g.name, Help: g.help},
			func() float64 { return float64(g.g.Value()) },
		))
		if err != nil {
			return err
		}
	}

	return reg.Register(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{Name: "upstream_latency_p99_seconds", Help: "p99 metered upstream latency"},
		func() float64 { return Metrics.UpstreamLatency.P99().Seconds() },
	))
}
