package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	DonationsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "donation_created_total",
		Help: "Pending donations recorded",
	}, []string{"currency"})

	Finalizations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "donation_finalizations_total",
		Help: "Finalization notifications by outcome and result",
	}, []string{"outcome", "result"})

	UnknownTransactions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "donation_unknown_transactions_total",
		Help: "Finalizations for transaction hashes with no donation record",
	})

	AggregateConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "campaign_aggregate_conflicts_total",
		Help: "Version conflicts while applying confirmed donations",
	})

	SweepApplied = promauto.NewCounter(prometheus.CounterOpts{
		Name: "donation_sweep_applied_total",
		Help: "Confirmed donations applied by the reconciliation sweep",
	})

	ReceiptsGenerated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "donation_tax_receipts_total",
		Help: "Tax receipts issued",
	})

	EventPublishErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "donation_event_publish_errors_total",
		Help: "DonationConfirmed events that failed to publish",
	})
)
