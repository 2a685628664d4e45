// Package metrics exposes Prometheus instruments for the wallet core. A nil
// *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "propad_wallet"

// Metrics groups the instruments updated by the services.
type Metrics struct {
	payoutRequests   *prometheus.CounterVec
	payoutExecutions *prometheus.CounterVec
	providerLatency  *prometheus.HistogramVec
	webhooks         *prometheus.CounterVec
	credits          *prometheus.CounterVec
	settledCents     prometheus.Counter
}

// New creates the instruments and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		payoutRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payout_requests_total",
			Help:      "Payout requests by outcome code.",
		}, []string{"outcome"}),
		payoutExecutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payout_executions_total",
			Help:      "Provider executions by provider and resulting status.",
		}, []string{"provider", "status"}),
		providerLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_call_seconds",
			Help:      "Latency of settlement provider calls.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider"}),
		webhooks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payout_webhooks_total",
			Help:      "Provider webhooks by outcome.",
		}, []string{"outcome"}),
		credits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "wallet_credits_total",
			Help:      "Wallet credits by source and whether they matured immediately.",
		}, []string{"source", "immediate"}),
		settledCents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payout_settled_cents_total",
			Help:      "Sum of payout debits applied to wallets, in minor units.",
		}),
	}
	reg.MustRegister(m.payoutRequests, m.payoutExecutions, m.providerLatency, m.webhooks, m.credits, m.settledCents)
	return m
}

// PayoutRequested counts a request attempt; outcome is "accepted" or an error code.
func (m *Metrics) PayoutRequested(outcome string) {
	if m == nil {
		return
	}
	m.payoutRequests.WithLabelValues(outcome).Inc()
}

// PayoutExecuted records one provider call.
func (m *Metrics) PayoutExecuted(provider, status string, took time.Duration) {
	if m == nil {
		return
	}
	m.payoutExecutions.WithLabelValues(provider, status).Inc()
	m.providerLatency.WithLabelValues(provider).Observe(took.Seconds())
}

// Webhook counts a reconciliation callback.
func (m *Metrics) Webhook(outcome string) {
	if m == nil {
		return
	}
	m.webhooks.WithLabelValues(outcome).Inc()
}

// Credited counts a wallet credit.
func (m *Metrics) Credited(source string, immediate bool) {
	if m == nil {
		return
	}
	label := "false"
	if immediate {
		label = "true"
	}
	m.credits.WithLabelValues(source, label).Inc()
}

// Settled adds a settlement debit.
func (m *Metrics) Settled(cents int64) {
	if m == nil {
		return
	}
	m.settledCents.Add(float64(cents))
}
