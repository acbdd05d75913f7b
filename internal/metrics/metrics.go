package metrics

import (
	"sort"
	"sync"
	"time"
)

type Metrics struct {
	mutex       sync.RWMutex
	dispatches  int64
	delivered   int64
	failed      int64
	rateLimited int64
	deliveries  map[string]int64
	failures    map[string]int64
	skips       map[string]int64
	latencies   map[string][]time.Duration
	states      map[string]string
	transitions map[string]int64
	startTime   time.Time
}

type Snapshot struct {
	Dispatches  int64                     `json:"dispatches"`
	Delivered   int64                     `json:"delivered"`
	Failed      int64                     `json:"failed"`
	RateLimited int64                     `json:"rate_limited"`
	Uptime      time.Duration             `json:"uptime"`
	Channels    map[string]ChannelMetrics `json:"channels"`
}

type ChannelMetrics struct {
	Deliveries  int64         `json:"deliveries"`
	Failures    int64         `json:"failures"`
	Skipped     int64         `json:"skipped"`
	Breaker     string        `json:"breaker,omitempty"`
	Transitions int64         `json:"transitions"`
	AvgSend     time.Duration `json:"avg_send"`
	P50Send     time.Duration `json:"p50_send"`
	P95Send     time.Duration `json:"p95_send"`
	P99Send     time.Duration `json:"p99_send"`
}

func NewMetrics() *Metrics {
	return &Metrics{
		deliveries:  make(map[string]int64),
		failures:    make(map[string]int64),
		skips:       make(map[string]int64),
		latencies:   make(map[string][]time.Duration),
		states:      make(map[string]string),
		transitions: make(map[string]int64),
		startTime:   time.Now(),
	}
}

func (m *Metrics) RecordDispatch(delivered bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.dispatches++
	if delivered {
		m.delivered++
	} else {
		m.failed++
	}
}

func (m *Metrics) RecordRateLimited() {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.dispatches++
	m.failed++
	m.rateLimited++
}

// RecordAttempt stores the outcome and latency of one adapter send.
func (m *Metrics) RecordAttempt(channel string, ok bool, duration time.Duration) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if ok {
		m.deliveries[channel]++
	} else {
		m.failures[channel]++
	}

	m.latencies[channel] = append(m.latencies[channel], duration)
	if len(m.latencies[channel]) > 1000 {
		m.latencies[channel] = m.latencies[channel][1:]
	}
}

func (m *Metrics) RecordSkip(channel string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.skips[channel]++
}

func (m *Metrics) RecordTransition(channel, state string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.states[channel] = state
	m.transitions[channel]++
}

func (m *Metrics) Snapshot() Snapshot {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	snap := Snapshot{
		Dispatches:  m.dispatches,
		Delivered:   m.delivered,
		Failed:      m.failed,
		RateLimited: m.rateLimited,
		Uptime:      time.Since(m.startTime),
		Channels:    make(map[string]ChannelMetrics),
	}

	all := make(map[string]bool)
	for _, table := range []map[string]int64{m.deliveries, m.failures, m.skips, m.transitions} {
		for channel := range table {
			all[channel] = true
		}
	}

	for channel := range all {
		cm := ChannelMetrics{
			Deliveries:  m.deliveries[channel],
			Failures:    m.failures[channel],
			Skipped:     m.skips[channel],
			Breaker:     m.states[channel],
			Transitions: m.transitions[channel],
		}

		durations := m.latencies[channel]
		if len(durations) > 0 {
			sorted := make([]time.Duration, len(durations))
			copy(sorted, durations)
			sort.Slice(sorted, func(i, j int) bool {
				return sorted[i] < sorted[j]
			})

			cm.AvgSend = average(sorted)
			cm.P50Send = percentile(sorted, 0.50)
			cm.P95Send = percentile(sorted, 0.95)
			cm.P99Send = percentile(sorted, 0.99)
		}

		snap.Channels[channel] = cm
	}

	return snap
}

func average(durations []time.Duration) time.Duration {
	if len(durations) == 0 {
		return 0
	}

	var sum time.Duration
	for _, d := range durations {
		sum += d
	}

	return sum / time.Duration(len(durations))
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}

	index := int(float64(len(sorted)) * p)
	if index >= len(sorted) {
		index = len(sorted) - 1
	}

	return sorted[index]
}
