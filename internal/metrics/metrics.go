package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	SubmissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contactrelay_submissions_total",
			Help: "Form submissions by pipeline stage and outcome",
		},
		[]string{"stage", "outcome"}, // validate|send , ok|invalid|failed
	)

	TransportAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contactrelay_transport_attempts_total",
			Help: "Delivery attempts per transport strategy",
		},
		[]string{"provider", "outcome"}, // ok|unavailable|rejected|failed|skipped
	)

	RelayRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contactrelay_relay_requests_total",
			Help: "Relay endpoint responses by status code",
		},
		[]string{"code"},
	)
)

var once sync.Once

// MustRegister registers the collectors once per process; later calls are no-ops.
func MustRegister(r prometheus.Registerer) {
	once.Do(func() {
		r.MustRegister(
			SubmissionsTotal,
			TransportAttemptsTotal,
			RelayRequestsTotal,
		)
	})
}
