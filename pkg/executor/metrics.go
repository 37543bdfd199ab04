package executor

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/pmkol/gqlx/pkg/gqlerror"
)

const outcomeHit = "hit"

type metrics struct {
	requests    *prometheus.CounterVec
	attempts    prometheus.Counter
	cacheHits   prometheus.Counter
	cacheMisses prometheus.Counter
	duration    prometheus.Histogram
}

// newMetrics creates the executor collectors and registers them to reg if it
// is not nil.
func newMetrics(reg prometheus.Registerer) (*metrics, error) {
	m := &metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "requests_total",
			Help: "The total number of executed requests by outcome",
		}, []string{"outcome"}),
		attempts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "attempts_total",
			Help: "The total number of transport attempts, retries included",
		}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "The total number of cache hits",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "The total number of cache misses",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "request_duration_seconds",
			Help:    "The duration of executed requests",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
	}
	if reg != nil {
		for _, c := range []prometheus.Collector{m.requests, m.attempts, m.cacheHits, m.cacheMisses, m.duration} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

func (m *metrics) observe(outcome string, start time.Time) {
	m.requests.WithLabelValues(outcome).Inc()
	m.duration.Observe(time.Since(start).Seconds())
}

func outcomeOf(err error) string {
	if err == nil {
		return "ok"
	}
	var e *gqlerror.Error
	if errors.As(err, &e) {
		return e.Kind.String()
	}
	return gqlerror.KindUnknown.String()
}
