package service

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/kyungseok/payment-risk-go/services/payment/internal/domain"
)

// Outcome 요청 처리 경로
type Outcome string

const (
	OutcomeDecided          Outcome = "decided"
	OutcomeReplayed         Outcome = "replayed"
	OutcomeConflictReplayed Outcome = "conflict_replayed"
)

// Metrics 결제 처리 지표
type Metrics interface {
	PaymentProcessed(status domain.PaymentStatus, outcome Outcome, elapsed time.Duration)
	PaymentDeclined(policy string)
}

// NoopMetrics 아무것도 기록하지 않음
type NoopMetrics struct{}

func (NoopMetrics) PaymentProcessed(domain.PaymentStatus, Outcome, time.Duration) {}

func (NoopMetrics) PaymentDeclined(string) {}

// PrometheusMetrics Prometheus 지표
type PrometheusMetrics struct {
	processed *prometheus.CounterVec
	declines  *prometheus.CounterVec
	latency   prometheus.Histogram
}

// NewPrometheusMetrics reg 에 지표 등록
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	factory := promauto.With(reg)
	return &PrometheusMetrics{
		processed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "payments_processed_total",
			Help: "Processed payment requests by final status and processing path.",
		}, []string{"status", "outcome"}),
		declines: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "payment_declines_total",
			Help: "Fresh declines by the policy that declined.",
		}, []string{"policy"}),
		latency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "payment_processing_seconds",
			Help:    "Time spent in ProcessPayment.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *PrometheusMetrics) PaymentProcessed(status domain.PaymentStatus, outcome Outcome, elapsed time.Duration) {
	m.processed.WithLabelValues(string(status), string(outcome)).Inc()
	m.latency.Observe(elapsed.Seconds())
}

func (m *PrometheusMetrics) PaymentDeclined(policy string) {
	m.declines.WithLabelValues(policy).Inc()
}
