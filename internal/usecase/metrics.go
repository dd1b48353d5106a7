package usecase

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/2Raz/mnam-backend-sub001/internal/domain/entity"
	"github.com/2Raz/mnam-backend-sub001/internal/domain/model"
)

const metricsNamespace = "channel_sync"

// Metrics holds the service counters. A nil *Metrics records nothing.
type Metrics struct {
	webhooks       *prometheus.CounterVec
	outboxResults  *prometheus.CounterVec
	pushDuration   *prometheus.HistogramVec
	rateDenied     *prometheus.CounterVec
	rateLimited    prometheus.Counter
	quarantined    *prometheus.CounterVec
	webhookReplays *prometheus.CounterVec
}

// NewMetrics creates and registers the collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		webhooks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "webhook_events_total",
			Help:      "Inbound webhook events by endpoint and result action.",
		}, []string{"endpoint", "action"}),
		outboxResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "outbox_items_total",
			Help:      "Outbox dispatch outcomes by event type.",
		}, []string{"event_type", "result"}),
		pushDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "push_duration_seconds",
			Help:      "Duration of outbound pushes to the channel manager.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"event_type"}),
		rateDenied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "rate_limit_denied_total",
			Help:      "Token acquisitions denied by the local limiter.",
		}, []string{"bucket"}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "remote_rate_limited_total",
			Help:      "HTTP 429 answers received from the channel manager.",
		}),
		quarantined: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "unmatched_events_total",
			Help:      "Inbound events quarantined by reason.",
		}, []string{"reason"}),
		webhookReplays: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "webhook_replays_total",
			Help:      "Stored webhook events re-processed by the replayer.",
		}, []string{"result"}),
	}

	if reg != nil {
		reg.MustRegister(m.webhooks, m.outboxResults, m.pushDuration, m.rateDenied,
			m.rateLimited, m.quarantined, m.webhookReplays)
	}
	return m
}

func (m *Metrics) WebhookHandled(endpoint string, action entity.ReconcileAction) {
	if m == nil {
		return
	}
	m.webhooks.WithLabelValues(endpoint, string(action)).Inc()
}

func (m *Metrics) OutboxResult(eventType model.OutboxEventType, result string) {
	if m == nil {
		return
	}
	m.outboxResults.WithLabelValues(string(eventType), result).Inc()
}

func (m *Metrics) PushObserved(eventType model.OutboxEventType, d time.Duration) {
	if m == nil {
		return
	}
	m.pushDuration.WithLabelValues(string(eventType)).Observe(d.Seconds())
}

func (m *Metrics) RateLimitDenied(bucket model.Bucket) {
	if m == nil {
		return
	}
	m.rateDenied.WithLabelValues(string(bucket)).Inc()
}

func (m *Metrics) RemoteRateLimited() {
	if m == nil {
		return
	}
	m.rateLimited.Inc()
}

func (m *Metrics) Quarantined(reason string) {
	if m == nil {
		return
	}
	m.quarantined.WithLabelValues(reason).Inc()
}

func (m *Metrics) WebhookReplayed(result string) {
	if m == nil {
		return
	}
	m.webhookReplays.WithLabelValues(result).Inc()
}
