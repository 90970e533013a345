package service

import (
	"sync"

	"github.com/google/uuid"
)

// metricsRegistry accumulates per-kind generation counters across the
// short-lived GenService instances the worker builds per task.
type metricsRegistry struct {
	mu     sync.Mutex
	byKind map[string]GenMetrics
}

func newMetricsRegistry() *metricsRegistry {
	return &metricsRegistry{byKind: make(map[string]GenMetrics)}
}

func (r *metricsRegistry) record(kind string, m GenMetrics) {
	r.mu.Lock()
	defer r.mu.Unlock()
	agg := r.byKind[kind]
	agg.Service = kind
	agg.TotalCalls += m.TotalCalls
	agg.TotalCost += m.TotalCost
	agg.TotalErrors += m.TotalErrors
	agg.TotalLatencyMS += m.TotalLatencyMS
	r.byKind[kind] = agg
}

func (r *metricsRegistry) snapshot() map[string]GenMetrics {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]GenMetrics, len(r.byKind))
	for k, v := range r.byKind {
		out[k] = v
	}
	return out
}

func newID() string { return uuid.NewString() }
