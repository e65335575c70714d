package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// ShortfallRunsTotal counts coverage-shortfall batch runs by outcome.
	ShortfallRunsTotal *prometheus.CounterVec
	// ShortfallsCreatedTotal counts shortfall rows written by the batch.
	ShortfallsCreatedTotal prometheus.Counter
	// PayoutRunsTotal counts fleet-settlement batch runs by outcome.
	PayoutRunsTotal *prometheus.CounterVec
	// PayoutsCreatedTotal counts fleet settlement rows written by the batch.
	PayoutsCreatedTotal prometheus.Counter
	// InvoicesIssuedTotal counts settlement invoices by resulting status.
	InvoicesIssuedTotal *prometheus.CounterVec
	// BatchDuration records batch run duration in milliseconds.
	BatchDuration *prometheus.HistogramVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		ShortfallRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "shortfall_runs_total",
			Help:      "Count of coverage shortfall batch runs by outcome.",
		}, []string{"result"})
		ShortfallsCreatedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "shortfalls_created_total",
			Help:      "Number of coverage shortfall rows created.",
		})
		PayoutRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payout_runs_total",
			Help:      "Count of fleet settlement batch runs by outcome.",
		}, []string{"result"})
		PayoutsCreatedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payouts_created_total",
			Help:      "Number of fleet settlement rows created.",
		})
		InvoicesIssuedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "settlement_invoices_total",
			Help:      "Count of settlement invoices by resulting status.",
		}, []string{"status"})
		BatchDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_duration_ms",
			Help:      "Batch run duration in milliseconds.",
			Buckets:   []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
		}, []string{"job"})

		mustRegisterCollector(reg, ShortfallRunsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				ShortfallRunsTotal = v
			}
		})
		mustRegisterCollector(reg, ShortfallsCreatedTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				ShortfallsCreatedTotal = v
			}
		})
		mustRegisterCollector(reg, PayoutRunsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				PayoutRunsTotal = v
			}
		})
		mustRegisterCollector(reg, PayoutsCreatedTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				PayoutsCreatedTotal = v
			}
		})
		mustRegisterCollector(reg, InvoicesIssuedTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				InvoicesIssuedTotal = v
			}
		})
		mustRegisterCollector(reg, BatchDuration, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.HistogramVec); ok {
				BatchDuration = v
			}
		})
	})
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register domain metric: %w", err))
	}
}
