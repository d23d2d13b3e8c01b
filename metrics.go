package permit

import (
	"strconv"
	"sync"
	"time"
)

// Metric names emitted by the resolver.
const (
	MetricDecisions  = "permit_decisions_total"
	MetricCacheHits  = "permit_cache_hits_total"
	MetricCacheMiss  = "permit_cache_misses_total"
	MetricExceptions = "permit_exceptions_total"
	MetricLatency    = "permit_resolve_duration_seconds"
)

// MetricsSink receives counters and observations.
type MetricsSink interface {
	Incr(name string, labels map[string]string)
	Observe(name string, value float64, labels map[string]string)
}

// NopSink discards everything.
type NopSink struct{}

func (NopSink) Incr(string, map[string]string)             {}
func (NopSink) Observe(string, float64, map[string]string) {}

// recorder shields the resolver from a nil or panicking sink.
type recorder struct {
	sink MetricsSink
}

func (r recorder) incr(name string, labels map[string]string) {
	if r.sink == nil {
		return
	}
	defer func() { _ = recover() }()
	r.sink.Incr(name, labels)
}

func (r recorder) observe(name string, value float64, labels map[string]string) {
	if r.sink == nil {
		return
	}
	defer func() { _ = recover() }()
	r.sink.Observe(name, value, labels)
}

func (r recorder) decision(d *Decision, elapsed time.Duration) {
	src := string(d.Source)
	r.incr(MetricDecisions, map[string]string{"source": src, "allowed": strconv.FormatBool(d.Allowed)})
	if d.Source == SourceException {
		r.incr(MetricExceptions, nil)
	}
	r.observe(MetricLatency, elapsed.Seconds(), map[string]string{"source": src})
}

// MemorySink keeps counters in memory.
type MemorySink struct {
	mu       sync.Mutex
	counters map[string]int
	observed map[string][]float64
}

func NewMemorySink() *MemorySink {
	return &MemorySink{counters: make(map[string]int), observed: make(map[string][]float64)}
}

func (s *MemorySink) Incr(name string, labels map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters[name]++
	if src, ok := labels["source"]; ok {
		s.counters[name+"{source="+src+"}"]++
	}
}

func (s *MemorySink) Observe(name string, value float64, _ map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observed[name] = append(s.observed[name], value)
}

// Count returns the counter of name. Use "name{source=x}" for the per-source count.
func (s *MemorySink) Count(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counters[name]
}

// Observations returns how many values were observed for name.
func (s *MemorySink) Observations(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.observed[name])
}
