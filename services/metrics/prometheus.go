package metricsvc

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/newstandard/academy/core/certificate"
	"github.com/newstandard/academy/core/quiz"
)

const namespace = "academy"

// Metrics observes the grading and certification flows and the HTTP layer.
type Metrics struct {
	attempts       *prometheus.CounterVec
	scores         prometheus.Histogram
	resets         prometheus.Counter
	certificates   prometheus.Counter
	requests       *prometheus.CounterVec
	requestLatency *prometheus.HistogramVec
}

var (
	_ quiz.Observer        = (*Metrics)(nil)
	_ certificate.Observer = (*Metrics)(nil)
)

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quiz_attempts_total",
			Help:      "Graded quiz attempts.",
		}, []string{"result", "final_exam"}),
		scores: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "quiz_score",
			Help:      "Scores of graded quiz attempts.",
			Buckets:   prometheus.LinearBuckets(10, 10, 10),
		}),
		resets: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "progress_resets_total",
			Help:      "Progress resets after too many failed attempts.",
		}),
		certificates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "certificates_issued_total",
			Help:      "Issued certificates.",
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"method", "route", "code"}),
		requestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latencies.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	reg.MustRegister(m.attempts, m.scores, m.resets, m.certificates, m.requests, m.requestLatency)
	return m
}

func (m *Metrics) AttemptGraded(qz quiz.Quiz, res quiz.Result) {
	result := "failed"
	if res.Passed {
		result = "passed"
	}
	m.attempts.WithLabelValues(result, strconv.FormatBool(qz.IsFinalExam)).Inc()
	m.scores.Observe(float64(res.Score))
	if res.ProgressReset {
		m.resets.Inc()
	}
}

func (m *Metrics) CertificateIssued(certificate.Certificate) {
	m.certificates.Inc()
}

func (m *Metrics) ObserveRequest(method, route string, code int, elapsed time.Duration) {
	m.requests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	m.requestLatency.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
