package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// CartMutationsTotal counts cart mutations by operation and outcome.
	CartMutationsTotal *prometheus.CounterVec
	// CartPersistFailuresTotal counts persistence failures that were downgraded to warnings.
	CartPersistFailuresTotal *prometheus.CounterVec
	// CartRestoreTotal counts hydration attempts by outcome (restored, empty, rejected, error).
	CartRestoreTotal *prometheus.CounterVec
	// CartEventsTotal counts emitted domain events per topic.
	CartEventsTotal *prometheus.CounterVec
	// OrdersConfirmedTotal counts confirmed orders.
	OrdersConfirmedTotal prometheus.Counter
	// CartSessionsActive tracks the number of live cart sessions held in memory.
	CartSessionsActive prometheus.Gauge
)

// MustRegisterDomainMetrics initialises and registers cart Prometheus collectors.
// Until it is called every Observe helper is a no-op.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		CartMutationsTotal = registerOrReuse(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_mutations_total",
			Help:      "Count of cart mutations by operation and result.",
		}, []string{"op", "result"}))
		CartPersistFailuresTotal = registerOrReuse(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_persist_failures_total",
			Help:      "Count of cart persistence failures surfaced as warnings.",
		}, []string{"op"}))
		CartRestoreTotal = registerOrReuse(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_restore_total",
			Help:      "Count of cart hydration attempts by outcome.",
		}, []string{"result"}))
		CartEventsTotal = registerOrReuse(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_events_total",
			Help:      "Count of emitted cart domain events by topic.",
		}, []string{"topic"}))
		OrdersConfirmedTotal = registerOrReuse(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_confirmed_total",
			Help:      "Total number of confirmed orders.",
		}))
		CartSessionsActive = registerOrReuse(reg, prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cart_sessions_active",
			Help:      "Number of cart sessions currently held in memory.",
		}))
	})
}

// ObserveMutation records a cart mutation outcome.
func ObserveMutation(op, result string) {
	if CartMutationsTotal != nil {
		CartMutationsTotal.WithLabelValues(op, result).Inc()
	}
}

// ObservePersistFailure records a downgraded persistence failure.
func ObservePersistFailure(op string) {
	if CartPersistFailuresTotal != nil {
		CartPersistFailuresTotal.WithLabelValues(op).Inc()
	}
}

// ObserveRestore records the outcome of hydrating a cart from storage.
func ObserveRestore(result string) {
	if CartRestoreTotal != nil {
		CartRestoreTotal.WithLabelValues(result).Inc()
	}
}
