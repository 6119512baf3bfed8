package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Registry struct {
	reg           *prometheus.Registry
	OrdersParsed  prometheus.Counter
	OrdersInvalid prometheus.Counter
	MissingFields *prometheus.CounterVec
	Confidence    prometheus.Histogram
	GuideLoads    prometheus.Counter
	ParseLatency  prometheus.Histogram
	QueueDepth    prometheus.Gauge

	// verifier
	CrossChecks     prometheus.Counter
	CrossMismatch   prometheus.Counter
	LabelsPublished prometheus.Counter
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()
	parsed := prometheus.NewCounter(prometheus.CounterOpts{Name: "groupbuy_orders_parsed_total"})
	invalid := prometheus.NewCounter(prometheus.CounterOpts{Name: "groupbuy_orders_invalid_total"})
	missing := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "groupbuy_order_missing_fields_total"}, []string{"field"})
	confidence := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "groupbuy_order_confidence",
		Buckets: []float64{0, 0.25, 0.5, 0.75, 1},
	})
	guideLoads := prometheus.NewCounter(prometheus.CounterOpts{Name: "groupbuy_guide_loads_total"})
	latency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "groupbuy_parse_latency_seconds",
		Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
	})
	depth := prometheus.NewGauge(prometheus.GaugeOpts{Name: "groupbuy_queue_depth"})

	crossChecks := prometheus.NewCounter(prometheus.CounterOpts{Name: "groupbuy_price_crosschecks_total"})
	crossMismatch := prometheus.NewCounter(prometheus.CounterOpts{Name: "groupbuy_price_mismatch_total"})
	published := prometheus.NewCounter(prometheus.CounterOpts{Name: "groupbuy_labels_published_total"})

	r.MustRegister(parsed, invalid, missing, confidence, guideLoads, latency, depth, crossChecks, crossMismatch, published)
	return &Registry{
		reg:             r,
		OrdersParsed:    parsed,
		OrdersInvalid:   invalid,
		MissingFields:   missing,
		Confidence:      confidence,
		GuideLoads:      guideLoads,
		ParseLatency:    latency,
		QueueDepth:      depth,
		CrossChecks:     crossChecks,
		CrossMismatch:   crossMismatch,
		LabelsPublished: published,
	}
}

// ObserveOrder records one parse outcome. Safe on a nil registry.
func (r *Registry) ObserveOrder(valid bool, missing []string, confidence float64, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.OrdersParsed.Inc()
	if !valid {
		r.OrdersInvalid.Inc()
	}
	for _, f := range missing {
		r.MissingFields.WithLabelValues(f).Inc()
	}
	r.Confidence.Observe(confidence)
	r.ParseLatency.Observe(elapsed.Seconds())
}

// ObserveCrossCheck records a verifier comparison. Safe on a nil registry.
func (r *Registry) ObserveCrossCheck(match bool) {
	if r == nil {
		return
	}
	r.CrossChecks.Inc()
	if !match {
		r.CrossMismatch.Inc()
	}
}

func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }

// ObservePublished counts a label handed to the publisher. Safe on a nil registry.
func (r *Registry) ObservePublished() {
	if r == nil {
		return
	}
	r.LabelsPublished.Inc()
}
