package metricsvc

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/newstandard/academy/core/certificate"
	"github.com/newstandard/academy/core/quiz"
)

func TestMetrics(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.AttemptGraded(quiz.Quiz{}, quiz.Result{Score: 50})
	m.AttemptGraded(quiz.Quiz{}, quiz.Result{Score: 40, ProgressReset: true})
	m.AttemptGraded(quiz.Quiz{IsFinalExam: true}, quiz.Result{Score: 90, Passed: true})
	m.CertificateIssued(certificate.Certificate{})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.attempts.WithLabelValues("failed", "false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.attempts.WithLabelValues("passed", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.resets))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.certificates))
}
