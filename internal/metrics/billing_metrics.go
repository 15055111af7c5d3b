package metrics

import (
	"time"

	"github.com/Dhoini/comics-billing/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// BillingMetrics интерфейс для метрик биллинга
type BillingMetrics interface {
	// ObserveWebhook фиксирует обработанный вебхук: тип события, итог и длительность.
	ObserveWebhook(kind, result string, duration time.Duration)
	// IncReconcile считает исходы сверки (created, updated, stale, unmapped).
	IncReconcile(outcome string)
	// IncSession считает созданные сессии (checkout, portal) по результату.
	IncSession(kind, result string)
	// IncAccessCheck считает проверки доступа по ответу.
	IncAccessCheck(subscribed bool)
}

type billingMetrics struct {
	log             *logger.Logger
	webhooksTotal   *prometheus.CounterVec
	webhookDuration *prometheus.HistogramVec
	reconcileTotal  *prometheus.CounterVec
	sessionsTotal   *prometheus.CounterVec
	accessChecks    *prometheus.CounterVec
}

// NewBillingMetrics регистрирует метрики биллинга в registry
func NewBillingMetrics(registry *prometheus.Registry, log *logger.Logger) BillingMetrics {
	factory := promauto.With(registry)

	return &billingMetrics{
		log: log,
		webhooksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "billing_webhooks_total",
				Help: "The total number of received gateway webhooks by event kind and result",
			},
			[]string{"kind", "result"},
		),
		webhookDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "billing_webhook_duration_seconds",
				Help:    "Webhook handling latency",
				Buckets: prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms .. ~2.5s
			},
			[]string{"kind"},
		),
		reconcileTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "billing_reconcile_total",
				Help: "Subscription reconciliation outcomes",
			},
			[]string{"outcome"},
		),
		sessionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "billing_sessions_total",
				Help: "Checkout and portal sessions by result",
			},
			[]string{"kind", "result"},
		),
		accessChecks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "billing_access_checks_total",
				Help: "Subscription access checks by answer",
			},
			[]string{"subscribed"},
		),
	}
}

// ObserveWebhook увеличивает счетчик вебхуков и записывает длительность
func (m *billingMetrics) ObserveWebhook(kind, result string, duration time.Duration) {
	m.webhooksTotal.WithLabelValues(kind, result).Inc()
	m.webhookDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// IncReconcile увеличивает счетчик исходов сверки
func (m *billingMetrics) IncReconcile(outcome string) {
	m.reconcileTotal.WithLabelValues(outcome).Inc()
}

// IncSession увеличивает счетчик сессий
func (m *billingMetrics) IncSession(kind, result string) {
	m.sessionsTotal.WithLabelValues(kind, result).Inc()
}

// IncAccessCheck увеличивает счетчик проверок доступа
func (m *billingMetrics) IncAccessCheck(subscribed bool) {
	label := "false"
	if subscribed {
		label = "true"
	}
	m.accessChecks.WithLabelValues(label).Inc()
}
