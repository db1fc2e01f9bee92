// Package metrics exposes application metrics collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "blockledger"

var (
	ledgerTransfersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ledger",
		Name:      "transfers_total",
		Help:      "Count of transfer attempts.",
	}, []string{"status"})

	ledgerTransferDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "ledger",
		Name:      "transfer_duration_seconds",
		Help:      "Duration of validating, signing and applying a transfer.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"status"})

	ledgerSealTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ledger",
		Name:      "seal_total",
		Help:      "Count of block sealing attempts.",
	}, []string{"status"})

	ledgerSealDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "ledger",
		Name:      "seal_duration_seconds",
		Help:      "Duration of sealing pending transactions into a block.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"status"})

	ledgerBlockSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "ledger",
		Name:      "block_transactions",
		Help:      "Number of transactions per sealed block.",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 12), // 1..2048
	})

	ledgerValidateTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ledger",
		Name:      "validate_total",
		Help:      "Count of chain validation runs.",
	}, []string{"status"})

	ledgerValidateDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "ledger",
		Name:      "validate_duration_seconds",
		Help:      "Duration of a full chain validation.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"status"})

	ledgerPendingTransactions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "ledger",
		Name:      "pending_transactions",
		Help:      "Executed transactions waiting to be sealed.",
	})

	ledgerChainHeight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "ledger",
		Name:      "chain_height",
		Help:      "Height of the latest block.",
	})
)

// Ledger tracks metrics for the ledger service.
type Ledger struct{}

// NewLedger constructs a Ledger metrics collector.
func NewLedger() *Ledger {
	return &Ledger{}
}

// ObserveTransfer records a transfer outcome and duration.
func (m Ledger) ObserveTransfer(err error, started time.Time) {
	status := statusOf(err)
	ledgerTransfersTotal.WithLabelValues(status).Inc()
	ledgerTransferDuration.WithLabelValues(status).Observe(time.Since(started).Seconds())
}

// ObserveSeal records a sealing attempt. txs is only recorded on success.
func (m Ledger) ObserveSeal(err error, txs int, started time.Time) {
	status := statusOf(err)
	ledgerSealTotal.WithLabelValues(status).Inc()
	ledgerSealDuration.WithLabelValues(status).Observe(time.Since(started).Seconds())
	if err == nil {
		ledgerBlockSize.Observe(float64(txs))
	}
}

// ObserveValidate records a chain validation run.
func (m Ledger) ObserveValidate(err error, started time.Time) {
	status := statusOf(err)
	ledgerValidateTotal.WithLabelValues(status).Inc()
	ledgerValidateDuration.WithLabelValues(status).Observe(time.Since(started).Seconds())
}

// SetPending reports the mempool size.
func (m Ledger) SetPending(n int) {
	ledgerPendingTransactions.Set(float64(n))
}

// SetHeight reports the chain height.
func (m Ledger) SetHeight(height uint64) {
	ledgerChainHeight.Set(float64(height))
}

func statusOf(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
