package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	fixturemetrics "github.com/jwtpizza/api_fixture/pkg/fixture/metrics"
)

// routeMetrics counts fixture traffic per matched rule so test runs can be
// audited for routes the UI never exercised.
type routeMetrics struct {
	requests  *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	unmatched prometheus.Counter
}

func newRouteMetrics(reg *fixturemetrics.Registry) *routeMetrics {
	if reg == nil {
		return nil
	}

	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fixture_requests_total",
		Help: "Count of fixture requests labelled by route, method, and status.",
	}, []string{"route", "method", "status"})

	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fixture_request_duration_seconds",
		Help:    "Handler duration for fixture requests segmented by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})

	unmatched := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fixture_unmatched_requests_total",
		Help: "Count of API requests no fixture rule covered.",
	})

	reg.Register(requests)
	reg.Register(duration)
	reg.Register(unmatched)

	return &routeMetrics{
		requests:  requests,
		duration:  duration,
		unmatched: unmatched,
	}
}

// track returns a completion callback for a request attributed to the
// named route.
func (m *routeMetrics) track(routeName string, r *http.Request) func(status int, elapsed time.Duration) {
	if m == nil || r == nil {
		return func(int, time.Duration) {}
	}

	method := r.Method
	return func(status int, elapsed time.Duration) {
		if status <= 0 {
			status = http.StatusOK
		}
		m.requests.WithLabelValues(routeName, method, strconv.Itoa(status)).Inc()
		m.duration.WithLabelValues(routeName).Observe(elapsed.Seconds())
	}
}

func (m *routeMetrics) recordUnmatched() {
	if m == nil {
		return
	}
	m.unmatched.Inc()
}
