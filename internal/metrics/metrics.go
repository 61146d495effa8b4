package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for donation ingestion.
type Metrics struct {
	// Accepted donations by platform and match method
	DonationsAccepted *prometheus.CounterVec

	// Donation amounts by platform, in the platform's currency unit
	DonationAmount *prometheus.CounterVec

	// Deliveries refused before persistence, by reason
	WebhooksRejected *prometheus.CounterVec

	// Redelivered events acknowledged without a second write
	DuplicateDeliveries *prometheus.CounterVec

	// Failures after the ledger write, by stage
	DegradedStages *prometheus.CounterVec

	// Notifications dropped because the queue was full or delivery failed
	NotificationsDropped *prometheus.CounterVec

	IngestLatency *prometheus.HistogramVec
}

// New registers every ingestion metric with reg. Passing nil uses the
// default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		DonationsAccepted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "donationhub_donations_accepted_total",
			Help: "Donations written to the ledger by platform and match method",
		}, []string{"platform", "method"}),

		DonationAmount: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "donationhub_donation_amount_total",
			Help: "Sum of accepted donation amounts by platform",
		}, []string{"platform"}),

		WebhooksRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "donationhub_webhooks_rejected_total",
			Help: "Webhook deliveries refused before persistence by reason",
		}, []string{"platform", "reason"}), // reason: "unauthorized", "unreadable", "persistence"

		DuplicateDeliveries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "donationhub_duplicate_deliveries_total",
			Help: "Redelivered webhook events acknowledged without a second write",
		}, []string{"platform"}),

		DegradedStages: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "donationhub_degraded_stages_total",
			Help: "Failures after the ledger write by stage",
		}, []string{"stage"}), // stage: "aggregate", "notify"

		NotificationsDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "donationhub_notifications_dropped_total",
			Help: "Outbound notifications that were not delivered",
		}, []string{"reason"}),

		IngestLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "donationhub_ingest_duration_seconds",
			Help:    "Duration of webhook ingestion from parse to acknowledgement",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"platform"}),
	}
}

func (m *Metrics) IncrementAccepted(platform, method string, amount float64) {
	if m != nil {
		m.DonationsAccepted.WithLabelValues(platform, method).Inc()
		if amount > 0 {
			m.DonationAmount.WithLabelValues(platform).Add(amount)
		}
	}
}

func (m *Metrics) IncrementRejected(platform, reason string) {
	if m != nil {
		m.WebhooksRejected.WithLabelValues(platform, reason).Inc()
	}
}

func (m *Metrics) IncrementDuplicate(platform string) {
	if m != nil {
		m.DuplicateDeliveries.WithLabelValues(platform).Inc()
	}
}

func (m *Metrics) IncrementDegraded(stage string) {
	if m != nil {
		m.DegradedStages.WithLabelValues(stage).Inc()
	}
}

func (m *Metrics) IncrementDropped(reason string) {
	if m != nil {
		m.NotificationsDropped.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) ObserveIngestLatency(platform string, d time.Duration) {
	if m != nil {
		m.IngestLatency.WithLabelValues(platform).Observe(d.Seconds())
	}
}
