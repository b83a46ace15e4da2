package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type LendingMetrics struct {
	operations       *prometheus.CounterVec
	transferFailures *prometheus.CounterVec
	bankDeposits     *prometheus.GaugeVec
	bankBorrowed     *prometheus.GaugeVec
	bankUtilization  *prometheus.GaugeVec
	collectedDust    *prometheus.GaugeVec
}

var (
	lendingOnce     sync.Once
	lendingRegistry *LendingMetrics
)

func newLendingMetrics() *LendingMetrics {
	return &LendingMetrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lending_operations_total",
			Help: "Count of ledger operations by kind and result.",
		}, []string{"op", "result"}),
		transferFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lending_transfer_failures_total",
			Help: "Number of failed external transfers by asset.",
		}, []string{"asset"}),
		bankDeposits: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "lending_bank_total_deposits",
			Help: "Deposits held by each bank in integer units.",
		}, []string{"asset"}),
		bankBorrowed: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "lending_bank_total_borrowed",
			Help: "Outstanding debt of each bank in integer units.",
		}, []string{"asset"}),
		bankUtilization: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "lending_bank_utilization",
			Help: "Borrowed over deposits for each bank.",
		}, []string{"asset"}),
		collectedDust: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "lending_bank_collected_dust",
			Help: "Rounding remainder swept out of each bank.",
		}, []string{"asset"}),
	}
}

func (m *LendingMetrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.operations,
		m.transferFailures,
		m.bankDeposits,
		m.bankBorrowed,
		m.bankUtilization,
		m.collectedDust,
	}
}

// Lending returns the process wide collectors registered with the default
// prometheus registry.
func Lending() *LendingMetrics {
	lendingOnce.Do(func() {
		lendingRegistry = newLendingMetrics()
		prometheus.MustRegister(lendingRegistry.collectors()...)
	})
	return lendingRegistry
}

// NewLending registers a fresh set of collectors with reg.
func NewLending(reg prometheus.Registerer) (*LendingMetrics, error) {
	m := newLendingMetrics()
	for _, c := range m.collectors() {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *LendingMetrics) ObserveOperation(op string, err error) {
	if m == nil {
		return
	}
	if op == "" {
		op = "unknown"
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.operations.WithLabelValues(op, result).Inc()
}

func (m *LendingMetrics) IncTransferFailure(asset string) {
	if m == nil {
		return
	}
	if asset == "" {
		asset = "unknown"
	}
	m.transferFailures.WithLabelValues(asset).Inc()
}

// ObserveBank publishes the totals of one bank. Values are float approximations
// of the integer ledger amounts.
func (m *LendingMetrics) ObserveBank(asset string, deposits, borrowed, utilization, dust float64) {
	if m == nil {
		return
	}
	m.bankDeposits.WithLabelValues(asset).Set(deposits)
	m.bankBorrowed.WithLabelValues(asset).Set(borrowed)
	m.bankUtilization.WithLabelValues(asset).Set(utilization)
	m.collectedDust.WithLabelValues(asset).Set(dust)
}
