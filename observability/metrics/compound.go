package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type CompoundMetrics struct {
	actionsTotal   *prometheus.CounterVec
	actionFailures *prometheus.CounterVec
	transferErrors prometheus.Counter
}

var (
	compoundOnce     sync.Once
	compoundRegistry *CompoundMetrics
)

// Compound returns the process-wide metrics for the compound ledger module,
// registering the collectors on first use.
func Compound() *CompoundMetrics {
	compoundOnce.Do(func() {
		compoundRegistry = &CompoundMetrics{
			actionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "compound_actions_total",
				Help: "Count of successfully applied ledger actions by kind.",
			}, []string{"action"}),
			actionFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "compound_action_failures_total",
				Help: "Count of rejected ledger actions by kind.",
			}, []string{"action"}),
			transferErrors: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "compound_transfer_errors_total",
				Help: "Number of token transfer failures observed by the engine.",
			}),
		}
		prometheus.MustRegister(
			compoundRegistry.actionsTotal,
			compoundRegistry.actionFailures,
			compoundRegistry.transferErrors,
		)
	})
	return compoundRegistry
}

// ObserveAction records the outcome of one ledger action.
func (m *CompoundMetrics) ObserveAction(action string, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.actionFailures.WithLabelValues(action).Inc()
		return
	}
	m.actionsTotal.WithLabelValues(action).Inc()
}

// ObserveTransferError records a failed token transfer.
func (m *CompoundMetrics) ObserveTransferError() {
	if m == nil {
		return
	}
	m.transferErrors.Inc()
}
