// AngelaMos | 2026
// metrics.go

package core

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the counters the auth and enrollment services report to.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry     *prometheus.Registry
	logins       *prometheus.CounterVec
	secondFactor *prometheus.CounterVec
	enrollments  *prometheus.CounterVec
	grades       prometheus.Counter
}

func NewMetrics(namespace string) *Metrics {
	registry := prometheus.NewRegistry()

	logins := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "login_attempts_total",
		Help:      "Primary credential checks by outcome.",
	}, []string{"outcome"})

	secondFactor := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "second_factor_attempts_total",
		Help:      "Second factor verifications by method and outcome.",
	}, []string{"method", "outcome"})

	enrollments := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "enrollment_requests_total",
		Help:      "Enrollment creations by outcome.",
	}, []string{"outcome"})

	grades := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "grades_recorded_total",
		Help:      "Successful grading operations.",
	})

	registry.MustRegister(
		logins,
		secondFactor,
		enrollments,
		grades,
		prometheus.NewGoCollector(),
	)

	return &Metrics{
		registry:     registry,
		logins:       logins,
		secondFactor: secondFactor,
		enrollments:  enrollments,
		grades:       grades,
	}
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) LoginAttempt(outcome string) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(outcome).Inc()
}

func (m *Metrics) SecondFactorAttempt(method, outcome string) {
	if m == nil {
		return
	}
	m.secondFactor.WithLabelValues(method, outcome).Inc()
}

func (m *Metrics) EnrollmentRequest(outcome string) {
	if m == nil {
		return
	}
	m.enrollments.WithLabelValues(outcome).Inc()
}

func (m *Metrics) GradeRecorded() {
	if m == nil {
		return
	}
	m.grades.Inc()
}
