// Package metrics exports resolver metrics to Prometheus.
package metrics

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/oarkflow/permit"
)

// PrometheusSink implements permit.MetricsSink with registered collectors.
// Unknown metric names are ignored.
type PrometheusSink struct {
	decisions  *prometheus.CounterVec
	hits       prometheus.Counter
	misses     prometheus.Counter
	exceptions prometheus.Counter
	latency    *prometheus.HistogramVec
}

// NewPrometheusSink registers the resolver collectors on reg, reusing
// collectors that are already registered. A nil reg uses the default registerer.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: permit.MetricDecisions,
			Help: "Number of permission decisions by source and outcome.",
		}, []string{"source", "allowed"}),
		hits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: permit.MetricCacheHits,
			Help: "Number of decisions served from the cache.",
		}),
		misses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: permit.MetricCacheMiss,
			Help: "Number of cache lookups that required evaluation.",
		}),
		exceptions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: permit.MetricExceptions,
			Help: "Number of resolutions that failed closed.",
		}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    permit.MetricLatency,
			Help:    "Duration of permission resolution calls.",
			Buckets: []float64{.0001, .00025, .0005, .001, .0025, .005, .01, .025, .05, .1, .25},
		}, []string{"source"}),
	}

	if err := register(reg, s.decisions, func(c prometheus.Collector) { s.decisions = c.(*prometheus.CounterVec) }); err != nil {
		return nil, err
	}
	if err := register(reg, s.hits, func(c prometheus.Collector) { s.hits = c.(prometheus.Counter) }); err != nil {
		return nil, err
	}
	if err := register(reg, s.misses, func(c prometheus.Collector) { s.misses = c.(prometheus.Counter) }); err != nil {
		return nil, err
	}
	if err := register(reg, s.exceptions, func(c prometheus.Collector) { s.exceptions = c.(prometheus.Counter) }); err != nil {
		return nil, err
	}
	if err := register(reg, s.latency, func(c prometheus.Collector) { s.latency = c.(*prometheus.HistogramVec) }); err != nil {
		return nil, err
	}
	return s, nil
}

func register(reg prometheus.Registerer, c prometheus.Collector, reuse func(prometheus.Collector)) (err error) {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if !errors.As(err, &already) {
			return err
		}
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("permit metrics: unexpected collector type %T", already.ExistingCollector)
			}
		}()
		reuse(already.ExistingCollector)
	}
	return nil
}

func (s *PrometheusSink) Incr(name string, labels map[string]string) {
	switch name {
	case permit.MetricDecisions:
		s.decisions.WithLabelValues(labels["source"], labels["allowed"]).Inc()
	case permit.MetricCacheHits:
		s.hits.Inc()
	case permit.MetricCacheMiss:
		s.misses.Inc()
	case permit.MetricExceptions:
		s.exceptions.Inc()
	}
}

func (s *PrometheusSink) Observe(name string, value float64, labels map[string]string) {
	if name == permit.MetricLatency {
		s.latency.WithLabelValues(labels["source"]).Observe(value)
	}
}
