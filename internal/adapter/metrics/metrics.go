package metrics

import (
	"net/http"
	"strconv"
	"time"

	"cryptosim/internal/core/domain"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "cryptosim"

// Collector implements ports.LedgerMetrics and the HTTP request metrics.
type Collector struct {
	gatherer prometheus.Gatherer

	entries  *prometheus.CounterVec
	mining   *prometheus.CounterVec
	trades   *prometheus.CounterVec
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

// NewCollector registers every metric on a fresh registry.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Collector{
		gatherer: reg,
		entries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "entries_total",
			Help:      "Ledger entry state transitions by resulting status and currency.",
		}, []string{"status", "currency"}),
		mining: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mining",
			Name:      "simulations_total",
			Help:      "Mining simulations by outcome.",
		}, []string{"outcome"}),
		trades: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trade",
			Name:      "decisions_total",
			Help:      "Trade request decisions by resulting status.",
		}, []string{"status"}),
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route, method and status code.",
		}, []string{"route", "method", "code"}),
		latency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}
}

func (c *Collector) EntryRecorded(status domain.EntryStatus, currency domain.Currency) {
	c.entries.WithLabelValues(string(status), string(currency)).Inc()
}

func (c *Collector) MiningOutcome(success bool) {
	outcome := "failed"
	if success {
		outcome = "reward"
	}
	c.mining.WithLabelValues(outcome).Inc()
}

func (c *Collector) TradeDecided(status domain.TradeStatus) {
	c.trades.WithLabelValues(string(status)).Inc()
}

// Middleware records request count and latency per matched route.
func (c *Collector) Middleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()
		ctx.Next()

		route := ctx.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := ctx.Request.Method
		c.requests.WithLabelValues(route, method, strconv.Itoa(ctx.Writer.Status())).Inc()
		c.latency.WithLabelValues(route, method).Observe(time.Since(start).Seconds())
	}
}

// Handler exposes the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}
