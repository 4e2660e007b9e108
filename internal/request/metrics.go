package request

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels recorded for every request.
const (
	OutcomeSuccess          = "success"
	OutcomeHTTPError        = "http_error"
	OutcomeApplicationError = "application_error"
	OutcomeTransportError   = "transport_error"
	OutcomeDecodeError      = "decode_error"
)

// Metrics holds the Prometheus collectors for outbound requests.
type Metrics struct {
	Requests *prometheus.CounterVec
	Duration *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg when reg is
// not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bilancio",
			Name:      "request_total",
			Help:      "Backend requests by method and outcome.",
		}, []string{"method", "outcome"}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "bilancio",
			Name:      "request_duration_seconds",
			Help:      "Backend request latency by method.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
	}
	if reg != nil {
		reg.MustRegister(m.Requests, m.Duration)
	}
	return m
}

func (m *Metrics) observe(method, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(method, outcome).Inc()
	m.Duration.WithLabelValues(method).Observe(elapsed.Seconds())
}

func outcomeOf(err error) string {
	reqErr, ok := AsError(err)
	if !ok {
		if err != nil {
			return OutcomeTransportError
		}
		return OutcomeSuccess
	}
	switch reqErr.Kind {
	case KindHTTP:
		return OutcomeHTTPError
	case KindApplication:
		return OutcomeApplicationError
	case KindDecode:
		return OutcomeDecodeError
	default:
		return OutcomeTransportError
	}
}
