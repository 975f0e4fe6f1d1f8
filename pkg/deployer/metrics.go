package deployer

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts deployment attempts and outcomes. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	attempts    *prometheus.CounterVec
	deployments *prometheus.CounterVec
	duration    *prometheus.HistogramVec
}

// NewMetrics registers the deployer collectors against reg. Collectors that
// are already registered are reused.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	attempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "formkit",
		Subsystem: "deployer",
		Name:      "attempts_total",
		Help:      "Deployment attempts by platform and outcome.",
	}, []string{"platform", "outcome"})
	deployments := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "formkit",
		Subsystem: "deployer",
		Name:      "deployments_total",
		Help:      "Form deployments by platform and final state.",
	}, []string{"platform", "state"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "formkit",
		Subsystem: "deployer",
		Name:      "deployment_duration_seconds",
		Help:      "Wall time of one form deployment including retries.",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"platform"})

	m := &Metrics{}
	var err error
	if m.attempts, err = register(reg, attempts); err != nil {
		return nil, err
	}
	if m.deployments, err = register(reg, deployments); err != nil {
		return nil, err
	}
	if m.duration, err = register(reg, duration); err != nil {
		return nil, err
	}
	return m, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		var zero C
		return zero, err
	}
	return c, nil
}

func (m *Metrics) observeAttempt(platform string, o outcome) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(platform, string(o)).Inc()
}

func (m *Metrics) observeDeployment(platform string, state State, d time.Duration) {
	if m == nil {
		return
	}
	m.deployments.WithLabelValues(platform, string(state)).Inc()
	m.duration.WithLabelValues(platform).Observe(d.Seconds())
}
