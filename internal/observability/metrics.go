package observability

import (
	"sync"
	"time"
)

// routeKey identifies one route/method pair in the counters.
type routeKey struct {
	Path   string
	Method string
}

type routeStats struct {
	requests   int64
	errors     int64
	latencySum time.Duration
	statuses   map[int]int64
}

// Metrics keeps per-route request counters in memory. They are served to
// operators through the admin surface rather than a metrics exporter.
type Metrics struct {
	mu     sync.Mutex
	routes map[routeKey]*routeStats
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{routes: make(map[routeKey]*routeStats)}
}

// RecordRequest counts one completed request.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := m.route(path, method)
	stats.requests++
	stats.latencySum += duration
	stats.statuses[status]++
}

// RecordError counts one request that ended in a domain error.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.route(path, method).errors++
}

// RouteSnapshot is one row of the metrics report.
type RouteSnapshot struct {
	Path        string        `json:"path"`
	Method      string        `json:"method"`
	Requests    int64         `json:"requests"`
	Errors      int64         `json:"errors"`
	AvgLatency  time.Duration `json:"avg_latency_ns"`
	StatusCodes map[int]int64 `json:"status_codes"`
}

// Snapshot returns a copy of the collected counters.
func (m *Metrics) Snapshot() []RouteSnapshot {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]RouteSnapshot, 0, len(m.routes))
	for key, stats := range m.routes {
		row := RouteSnapshot{
			Path:        key.Path,
			Method:      key.Method,
			Requests:    stats.requests,
			Errors:      stats.errors,
			StatusCodes: make(map[int]int64, len(stats.statuses)),
		}
		if stats.requests > 0 {
			row.AvgLatency = stats.latencySum / time.Duration(stats.requests)
		}
		for status, count := range stats.statuses {
			row.StatusCodes[status] = count
		}
		result = append(result, row)
	}
	return result
}

func (m *Metrics) route(path, method string) *routeStats {
	key := routeKey{Path: path, Method: method}
	stats, ok := m.routes[key]
	if !ok {
		stats = &routeStats{statuses: make(map[int]int64)}
		m.routes[key] = stats
	}
	return stats
}
