package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rentledger_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rentledger_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	leaseTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rentledger_lease_transitions_total",
		Help: "Lease lifecycle transitions by kind",
	}, []string{"transition"})

	paymentsRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rentledger_payments_recorded_total",
		Help: "Payment ledger writes by operation and resulting status",
	}, []string{"operation", "status"})

	stkPushDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rentledger_stk_push_duration_seconds",
		Help:    "Duration of outbound STK push requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"result"})

	gatewayCallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rentledger_gateway_callbacks_total",
		Help: "Inbound payment gateway callbacks by outcome",
	}, []string{"outcome"})

	reminderNotifications = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rentledger_reminder_notifications_total",
		Help: "Rent reminder notifications written",
	})

	reminderRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rentledger_reminder_runs_total",
		Help: "Reminder job runs by result",
	}, []string{"result"})

	gatewayTokenFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rentledger_gateway_token_fetches_total",
		Help: "OAuth token lookups against the payment gateway by source",
	}, []string{"source"})

	gatewayCircuitState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rentledger_gateway_circuit_state",
		Help: "Payment gateway circuit breaker state (0 closed, 1 open, 2 half-open)",
	})
)

// ObserveHTTPRequest records an HTTP request metric
func ObserveHTTPRequest(method, path, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	httpRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// ObserveLeaseTransition counts created, ended, reactivated, deactivated and deleted leases.
func ObserveLeaseTransition(transition string) {
	leaseTransitions.WithLabelValues(transition).Inc()
}

// ObservePayment counts a payment write.
func ObservePayment(operation, status string) {
	paymentsRecorded.WithLabelValues(operation, status).Inc()
}

// ObserveSTKPush records the duration of an STK push attempt with a result label.
func ObserveSTKPush(result string, duration time.Duration) {
	stkPushDuration.WithLabelValues(result).Observe(duration.Seconds())
}

// ObserveCallback counts an inbound gateway callback.
func ObserveCallback(outcome string) {
	gatewayCallbacks.WithLabelValues(outcome).Inc()
}

// ObserveReminders records a reminder run and the notifications it wrote.
func ObserveReminders(result string, sent int) {
	reminderRuns.WithLabelValues(result).Inc()
	if sent > 0 {
		reminderNotifications.Add(float64(sent))
	}
}

// ObserveTokenFetch counts where a gateway access token came from: cache or oauth.
func ObserveTokenFetch(source string) {
	gatewayTokenFetches.WithLabelValues(source).Inc()
}

// SetGatewayCircuitState exports the breaker state guarding the STK push.
func SetGatewayCircuitState(state int) {
	gatewayCircuitState.Set(float64(state))
}
