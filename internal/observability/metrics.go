package observability

import (
	"strconv"
	"sync"
	"time"
)

// Bridge counter names.
const (
	CounterDroppedFrames   = "bridge_dropped_frames"
	CounterRelayedFrames   = "bridge_relayed_frames"
	CounterMalformedFrames = "bridge_malformed_frames"
	CounterSessionsStarted = "bridge_sessions_started"
	CounterSessionsClosed  = "bridge_sessions_closed"
	CounterTicketsCreated  = "pipeline_tickets_created"
	CounterDuplicateClaims = "pipeline_duplicate_claims"
)

// Metrics provides basic in-memory counters.
type Metrics struct {
	mu           sync.Mutex
	requestCount map[string]int64
	errorCount   map[string]int64
	counters     map[string]int64
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount: make(map[string]int64),
		errorCount:   make(map[string]int64),
		counters:     make(map[string]int64),
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

// Inc increments a named counter. Used by the bridge and the pipeline for
// observable properties such as dropped media frames.
func (m *Metrics) Inc(name string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[name]++
}

// Count returns the current value of a named counter.
func (m *Metrics) Count(name string) int64 {
	if m == nil {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters[name]
}

func pathKey(path, method string, status int) string {
	return path + "|" + method + "|" + strconv.Itoa(status)
}
