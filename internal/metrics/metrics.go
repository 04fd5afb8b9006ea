package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const ns = "studio"

var once sync.Once

var (
	DraftsCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: ns,
		Subsystem: "publish",
		Name:      "drafts_created_total",
	})
	DraftFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: ns,
		Subsystem: "publish",
		Name:      "draft_failures_total",
	})
	UploadSizeRejections = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns,
		Subsystem: "publish",
		Name:      "size_rejections_total",
	}, []string{"media"})
	Saves = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns,
		Subsystem: "publish",
		Name:      "saves_total",
		Help:      "Metadata saves by outcome",
	}, []string{"outcome"})
	MintRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns,
		Subsystem: "publish",
		Name:      "mint_requests_total",
		Help:      "Mint requests by account type and outcome",
	}, []string{"account_type", "outcome"})
	MintReconciliations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns,
		Subsystem: "publish",
		Name:      "mint_reconciliations_total",
		Help:      "Reconciliation checks of outstanding mints by result",
	}, []string{"result"})

	ChainActions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns,
		Subsystem: "account",
		Name:      "chain_actions_total",
	}, []string{"account_type", "action", "outcome"})
	WalletWriteAttempts = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: ns,
		Subsystem: "account",
		Name:      "wallet_write_attempts",
		Help:      "Number of polls before the wallet write function became available",
		Buckets:   []float64{1, 2, 3, 5, 8, 11},
	})

	GraphQLDurations = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: ns,
		Subsystem: "gql",
		Name:      "call_seconds",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 20},
	}, []string{"service", "operation", "outcome"})

	APICallDurations = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: ns,
		Subsystem: "api",
		Name:      "call_seconds",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	}, []string{"method", "route"})

	QueueTasks = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: ns,
		Subsystem: "bus",
		Name:      "queue_tasks",
	}, []string{"status"})

	NotifierSubscriptions = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: ns,
		Subsystem: "notify",
		Name:      "subscriptions",
	})
	SignInThrottled = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: ns,
		Subsystem: "identity",
		Name:      "sign_in_throttled_total",
	})
	AuthStale = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: ns,
		Subsystem: "identity",
		Name:      "auth_stale_total",
	})
)

// Register registers all collectors with registry, or the default registerer when nil.
// Repeated calls are no-ops.
func Register(registry prometheus.Registerer) {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	once.Do(func() {
		registry.MustRegister(
			DraftsCreated, DraftFailures, UploadSizeRejections, Saves,
			MintRequests, MintReconciliations, ChainActions, WalletWriteAttempts,
			GraphQLDurations, APICallDurations, QueueTasks, NotifierSubscriptions, SignInThrottled, AuthStale,
		)
	})
}

// Outcome maps err to a metric label value.
func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
