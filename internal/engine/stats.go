package engine

import (
	"sync"
	"sync/atomic"
	"time"

	"matchsim/internal/book"

	"github.com/prometheus/client_golang/prometheus"
)

// DefaultLatencySampleCapacity is K_lat from §6.4: the bound on the rolling
// window of per-order processing latencies used to compute avg_latency_ms.
const DefaultLatencySampleCapacity = 1000

// Stats accumulates the engine-wide performance counters of §6.3/§6.4:
// total orders processed, total trades, total volume, and a rolling
// latency sample window, plus the derived per-second throughput sampled by
// the stats ticker. Every counter is either atomic or guarded by
// latencyMu, so Snapshot never blocks the match loop for more than a slice
// copy.
type Stats struct {
	ordersProcessed uint64
	tradesExecuted  uint64
	volumeTraded    uint64

	latencyMu sync.Mutex
	latencies *book.TradeRing[time.Duration]

	lastTickProcessed uint64
	ordersPerSecond   uint64 // whole orders counted in the last tick, stored atomically

	registry       *prometheus.Registry
	metricTrades   prometheus.Counter
	metricOrders   prometheus.Counter
	metricVolume   prometheus.Counter
	metricOPS      prometheus.Gauge
	metricAvgLatMs prometheus.Gauge
}

// PerformanceStats is the read-only snapshot returned to CSV export and the
// observability surface. ActiveOrders, SymbolsActive, RuntimeSeconds and
// TradesPerSecond are not tracked by Stats itself — they depend on engine
// state (activeOrders, books, start time) that Stats has no access to — and
// are filled in by Engine.PerformanceStats after Snapshot returns.
type PerformanceStats struct {
	OrdersProcessed  uint64
	TradesExecuted   uint64
	VolumeTraded     uint64
	OrdersPerSecond  float64
	AverageLatencyMs float64
	ActiveOrders     int
	SymbolsActive    int
	RuntimeSeconds   float64
	TradesPerSecond  float64
}

func newStats() *Stats {
	registry := prometheus.NewRegistry()
	s := &Stats{
		latencies: book.NewTradeRing[time.Duration](DefaultLatencySampleCapacity),
		registry:  registry,
		metricTrades: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "matchsim_trades_total",
			Help: "Total trades executed by the engine.",
		}),
		metricOrders: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "matchsim_orders_processed_total",
			Help: "Total orders processed by the engine.",
		}),
		metricVolume: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "matchsim_volume_traded_total",
			Help: "Total quantity traded across all symbols.",
		}),
		metricOPS: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "matchsim_orders_per_second",
			Help: "Orders processed in the most recent one-second tick.",
		}),
		metricAvgLatMs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "matchsim_avg_latency_ms",
			Help: "Average order processing latency over the rolling sample window.",
		}),
	}
	registry.MustRegister(s.metricTrades, s.metricOrders, s.metricVolume, s.metricOPS, s.metricAvgLatMs)
	return s
}

// Registry exposes the engine's metrics for a caller that wants to wire it
// into an HTTP /metrics handler; matchsim itself has no such surface, per
// the "no network protocol surface" non-goal, but the registry is still
// populated for a host process to expose as it sees fit.
func (s *Stats) Registry() *prometheus.Registry {
	return s.registry
}

func (s *Stats) recordProcessed(latency time.Duration) {
	atomic.AddUint64(&s.ordersProcessed, 1)
	s.metricOrders.Inc()

	s.latencyMu.Lock()
	s.latencies.Append(latency)
	s.latencyMu.Unlock()
}

func (s *Stats) recordTrade(quantity uint64, _ float64) {
	atomic.AddUint64(&s.tradesExecuted, 1)
	atomic.AddUint64(&s.volumeTraded, quantity)
	s.metricTrades.Inc()
	s.metricVolume.Add(float64(quantity))
}

// tick is invoked once per second by the engine's stats ticker goroutine; it
// derives orders_per_second from the delta in ordersProcessed since the
// last tick.
func (s *Stats) tick() {
	processed := atomic.LoadUint64(&s.ordersProcessed)
	last := atomic.SwapUint64(&s.lastTickProcessed, processed)
	ops := processed - last
	atomic.StoreUint64(&s.ordersPerSecond, ops)
	s.metricOPS.Set(float64(ops))
	s.metricAvgLatMs.Set(s.averageLatencyMs())
}

func (s *Stats) averageLatencyMs() float64 {
	s.latencyMu.Lock()
	samples := s.latencies.All()
	s.latencyMu.Unlock()

	if len(samples) == 0 {
		return 0
	}
	var total time.Duration
	for _, d := range samples {
		total += d
	}
	return float64(total.Microseconds()) / float64(len(samples)) / 1000.0
}

// Snapshot returns a consistent-enough point-in-time view of the counters
// for reporting; individual fields may be a tick stale relative to each
// other but each is itself read atomically.
func (s *Stats) Snapshot() PerformanceStats {
	return PerformanceStats{
		OrdersProcessed:  atomic.LoadUint64(&s.ordersProcessed),
		TradesExecuted:   atomic.LoadUint64(&s.tradesExecuted),
		VolumeTraded:     atomic.LoadUint64(&s.volumeTraded),
		OrdersPerSecond:  float64(atomic.LoadUint64(&s.ordersPerSecond)),
		AverageLatencyMs: s.averageLatencyMs(),
	}
}
