package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce             sync.Once
	httpDurationHistogram    *prometheus.HistogramVec
	httpInFlightGauge        prometheus.Gauge
	movementCounter          *prometheus.CounterVec
	settlementCounter        *prometheus.CounterVec
	idempotencyCounter       *prometheus.CounterVec
	invalidBalanceCounter    prometheus.Counter
	stalePendingGauge        prometheus.Gauge
	workerRunCounter         *prometheus.CounterVec
	gatewayDurationHistogram *prometheus.HistogramVec
)

// Init registers all Prometheus collectors.
func Init() {
	registerOnce.Do(func() {
		httpDurationHistogram = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"})

		httpInFlightGauge = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "HTTP requests currently being served",
		})

		movementCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "funds_movements_total",
			Help: "Funds movement outcomes by type",
		}, []string{"type", "outcome"})

		settlementCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "settlement_events_total",
			Help: "Webhook settlement outcomes",
		}, []string{"provider", "outcome"})

		idempotencyCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "idempotency_events_total",
			Help: "Idempotency middleware outcomes",
		}, []string{"outcome"})

		invalidBalanceCounter = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ledger_invalid_balance_total",
			Help: "Number of reconciliation runs that found negative balances",
		})

		stalePendingGauge = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ledger_stale_pending_transactions",
			Help: "Pending deposits and withdrawals older than the staleness window",
		})

		workerRunCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_runs_total",
			Help: "Background worker run outcomes",
		}, []string{"worker", "result"})

		gatewayDurationHistogram = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gateway_request_duration_seconds",
			Help:    "Payment provider call latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"provider", "operation", "result"})

		prometheus.MustRegister(
			httpDurationHistogram,
			httpInFlightGauge,
			movementCounter,
			settlementCounter,
			idempotencyCounter,
			invalidBalanceCounter,
			stalePendingGauge,
			workerRunCounter,
			gatewayDurationHistogram,
		)
	})
}

func ObserveHTTP(method, path string, status int, duration time.Duration) {
	if httpDurationHistogram == nil {
		return
	}
	httpDurationHistogram.WithLabelValues(method, path, strconv.Itoa(status)).Observe(duration.Seconds())
}

// TrackInFlight marks a request as started and returns the func that ends it.
func TrackInFlight() func() {
	if httpInFlightGauge == nil {
		return func() {}
	}
	httpInFlightGauge.Inc()
	return httpInFlightGauge.Dec
}

func IncrementMovement(txType, outcome string) {
	if movementCounter == nil {
		return
	}
	movementCounter.WithLabelValues(txType, outcome).Inc()
}

func IncrementSettlement(provider, outcome string) {
	if settlementCounter == nil {
		return
	}
	settlementCounter.WithLabelValues(provider, outcome).Inc()
}

func IncrementIdempotencyEvent(outcome string) {
	if idempotencyCounter == nil {
		return
	}
	idempotencyCounter.WithLabelValues(outcome).Inc()
}

func IncrementInvalidBalance() {
	if invalidBalanceCounter == nil {
		return
	}
	invalidBalanceCounter.Inc()
}

func SetStalePendingTransactions(n int64) {
	if stalePendingGauge == nil {
		return
	}
	stalePendingGauge.Set(float64(n))
}

func IncrementWorkerRun(worker, result string) {
	if workerRunCounter == nil {
		return
	}
	workerRunCounter.WithLabelValues(worker, result).Inc()
}

func ObserveGateway(provider, operation string, err error, duration time.Duration) {
	if gatewayDurationHistogram == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	gatewayDurationHistogram.WithLabelValues(provider, operation, result).Observe(duration.Seconds())
}
