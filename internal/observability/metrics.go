package observability

import (
	"sort"
	"strconv"
	"sync"
	"time"
)

// Metrics provides basic in-memory counters.
type Metrics struct {
	mu           sync.Mutex
	requestCount map[string]int64
	errorCount   map[string]int64
	queries      map[string]*queryStats
}

type queryStats struct {
	count    int64
	failures int64
	total    time.Duration
	max      time.Duration
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount: make(map[string]int64),
		errorCount:   make(map[string]int64),
		queries:      make(map[string]*queryStats),
	}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	key := pathKey(path, method, status)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[key]++
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + code
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[key]++
}

// RecordQuery tracks latency and failures per analytics query.
func (m *Metrics) RecordQuery(name string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	qs, ok := m.queries[name]
	if !ok {
		qs = &queryStats{}
		m.queries[name] = qs
	}
	qs.count++
	qs.total += duration
	qs.max = max(qs.max, duration)
	if err != nil {
		qs.failures++
	}
}

// QuerySnapshot is the exported view of one query's stats.
type QuerySnapshot struct {
	Name      string  `json:"name"`
	Count     int64   `json:"count"`
	Failures  int64   `json:"failures"`
	AvgMillis float64 `json:"avg_ms"`
	MaxMillis float64 `json:"max_ms"`
}

// Snapshot is a point-in-time copy of all counters.
type Snapshot struct {
	Requests map[string]int64 `json:"requests"`
	Errors   map[string]int64 `json:"errors"`
	Queries  []QuerySnapshot  `json:"queries"`
}

// Snapshot copies the counters.
func (m *Metrics) Snapshot() Snapshot {
	s := Snapshot{Requests: map[string]int64{}, Errors: map[string]int64{}, Queries: []QuerySnapshot{}}
	if m == nil {
		return s
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range m.requestCount {
		s.Requests[k] = v
	}
	for k, v := range m.errorCount {
		s.Errors[k] = v
	}
	for name, qs := range m.queries {
		s.Queries = append(s.Queries, QuerySnapshot{
			Name:      name,
			Count:     qs.count,
			Failures:  qs.failures,
			AvgMillis: millis(qs.total) / float64(qs.count),
			MaxMillis: millis(qs.max),
		})
	}
	sort.Slice(s.Queries, func(i, j int) bool { return s.Queries[i].Name < s.Queries[j].Name })
	return s
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func pathKey(path, method string, status int) string {
	return path + "|" + method + "|" + strconv.Itoa(status)
}
