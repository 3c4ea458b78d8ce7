// Package monitoring exposes Prometheus metrics and a background health
// checker for the program index and the service-area cache.
package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotisserie/eris"
)

// Remote service labels.
const (
	ServicePoint   = "service_area_point"
	ServiceBulk    = "service_area_bulk"
	ServiceOffices = "offices"
	ServiceGeocode = "geocode"
)

// Metrics bundles the collectors recorded by the resolver. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	gatherer prometheus.Gatherer

	RemoteRequests       *prometheus.CounterVec
	RemoteDurations      *prometheus.HistogramVec
	IndexEntries         *prometheus.GaugeVec
	ServiceAreaFallbacks prometheus.Counter
}

// NewMetrics registers the collectors against reg, defaulting to the global
// registry when nil. Registering twice returns the existing collectors.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	requests, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lscrefer_remote_requests_total",
		Help: "Remote calls by service and HTTP status (\"error\" for transport failures).",
	}, []string{"service", "status"}), "lscrefer_remote_requests_total")
	if err != nil {
		return nil, err
	}

	durations, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lscrefer_remote_request_seconds",
		Help:    "Remote call latency in seconds.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	}, []string{"service"}), "lscrefer_remote_request_seconds")
	if err != nil {
		return nil, err
	}

	entries, err := registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "lscrefer_program_index_entries",
		Help: "Entries in each program index mapping.",
	}, []string{"mapping"}), "lscrefer_program_index_entries")
	if err != nil {
		return nil, err
	}

	fallbacks, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "lscrefer_service_area_fallbacks_total",
		Help: "Bulk service-area fetches that were cached as an empty payload.",
	}), "lscrefer_service_area_fallbacks_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		gatherer:             gatherer,
		RemoteRequests:       requests,
		RemoteDurations:      durations,
		IndexEntries:         entries,
		ServiceAreaFallbacks: fallbacks,
	}, nil
}

// ObserveRemote records one remote call. A zero status means the request
// never produced a response.
func (m *Metrics) ObserveRemote(service string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	m.RemoteRequests.WithLabelValues(service, label).Inc()
	m.RemoteDurations.WithLabelValues(service).Observe(elapsed.Seconds())
}

// SetIndexEntries publishes the size of each index mapping.
func (m *Metrics) SetIndexEntries(byArea, byRIN, byServA int) {
	if m == nil {
		return
	}
	m.IndexEntries.WithLabelValues("area").Set(float64(byArea))
	m.IndexEntries.WithLabelValues("rin").Set(float64(byRIN))
	m.IndexEntries.WithLabelValues("serv_a").Set(float64(byServA))
}

// IncFallback counts a bulk fetch absorbed into the empty-payload marker.
func (m *Metrics) IncFallback() {
	if m == nil {
		return
	}
	m.ServiceAreaFallbacks.Inc()
}

// Handler exposes a ready-to-use /metrics handler.
func (m *Metrics) Handler() http.Handler {
	gatherer := prometheus.DefaultGatherer
	if m != nil && m.gatherer != nil {
		gatherer = m.gatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, eris.Errorf("monitoring: collector %s already registered with incompatible type", name)
		}
		return nil, eris.Wrapf(err, "monitoring: register %s", name)
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, eris.Errorf("monitoring: collector %s already registered with incompatible type", name)
		}
		return nil, eris.Wrapf(err, "monitoring: register %s", name)
	}
	return vec, nil
}

func registerGaugeVec(reg prometheus.Registerer, vec *prometheus.GaugeVec, name string) (*prometheus.GaugeVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.GaugeVec); ok {
				return existing, nil
			}
			return nil, eris.Errorf("monitoring: collector %s already registered with incompatible type", name)
		}
		return nil, eris.Wrapf(err, "monitoring: register %s", name)
	}
	return vec, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, eris.Errorf("monitoring: collector %s already registered with incompatible type", name)
		}
		return nil, eris.Wrapf(err, "monitoring: register %s", name)
	}
	return counter, nil
}
