package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce              sync.Once
	httpDurationHistogram     *prometheus.HistogramVec
	poolDepositsGauge         *prometheus.GaugeVec
	poolOutstandingGauge      *prometheus.GaugeVec
	depositCounter            *prometheus.CounterVec
	fundingCounter            *prometheus.CounterVec
	repaymentCounter          *prometheus.CounterVec
	conservationBreachCounter *prometheus.CounterVec
	intentTransitionCounter   *prometheus.CounterVec
	idempotencyEventCounter   *prometheus.CounterVec
	workerRunCounter          *prometheus.CounterVec
)

// Init registers all Prometheus collectors.
func Init() {
	registerOnce.Do(func() {
		httpDurationHistogram = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"})

		poolDepositsGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pool_total_deposits",
			Help: "Total deposits per liquidity pool, in minor units",
		}, []string{"pool"})

		poolOutstandingGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pool_total_outstanding",
			Help: "Capital at risk per liquidity pool, in minor units",
		}, []string{"pool"})

		depositCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "liquidity_deposits_total",
			Help: "Accepted liquidity deposits",
		}, []string{"pool"})

		fundingCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "invoice_fundings_total",
			Help: "Invoices funded per pool",
		}, []string{"pool"})

		repaymentCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "invoice_repayments_total",
			Help: "Accepted repayments per pool and completion",
		}, []string{"pool", "final"})

		conservationBreachCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pool_conservation_breaches_total",
			Help: "Times a pool's outstanding exceeded its deposits",
		}, []string{"pool"})

		intentTransitionCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "intent_transitions_total",
			Help: "Intent lifecycle transitions",
		}, []string{"to"})

		idempotencyEventCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "idempotency_events_total",
			Help: "Idempotency key replay and reservation outcomes",
		}, []string{"event"})

		workerRunCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_runs_total",
			Help: "Background worker run outcomes",
		}, []string{"worker", "result"})

		prometheus.MustRegister(
			httpDurationHistogram,
			poolDepositsGauge,
			poolOutstandingGauge,
			depositCounter,
			fundingCounter,
			repaymentCounter,
			conservationBreachCounter,
			intentTransitionCounter,
			idempotencyEventCounter,
			workerRunCounter,
		)
	})
}

func ObserveHTTP(method, path string, status int, duration time.Duration) {
	if httpDurationHistogram == nil {
		return
	}
	httpDurationHistogram.WithLabelValues(method, path, strconv.Itoa(status)).Observe(duration.Seconds())
}

func SetPoolGauges(pool string, deposits, outstanding uint64) {
	if poolDepositsGauge == nil {
		return
	}
	poolDepositsGauge.WithLabelValues(pool).Set(float64(deposits))
	poolOutstandingGauge.WithLabelValues(pool).Set(float64(outstanding))
}

func ObserveDeposit(pool string, amount uint64) {
	if depositCounter == nil {
		return
	}
	depositCounter.WithLabelValues(pool).Inc()
}

func ObserveFunding(pool string, advance uint64) {
	if fundingCounter == nil {
		return
	}
	fundingCounter.WithLabelValues(pool).Inc()
}

func ObserveRepayment(pool string, applied uint64, final bool) {
	if repaymentCounter == nil {
		return
	}
	repaymentCounter.WithLabelValues(pool, strconv.FormatBool(final)).Inc()
}

func IncrementConservationBreach(pool string) {
	if conservationBreachCounter == nil {
		return
	}
	conservationBreachCounter.WithLabelValues(pool).Inc()
}

func IncrementIntentTransition(to string) {
	if intentTransitionCounter == nil {
		return
	}
	intentTransitionCounter.WithLabelValues(to).Inc()
}

func IncrementIdempotencyEvent(event string) {
	if idempotencyEventCounter == nil {
		return
	}
	idempotencyEventCounter.WithLabelValues(event).Inc()
}

func IncrementWorkerRun(worker, result string) {
	if workerRunCounter == nil {
		return
	}
	workerRunCounter.WithLabelValues(worker, result).Inc()
}
