package reviews

import (
	"sync"
	"time"
)

// Request outcomes recorded by the performance recorder.
const (
	OutcomeLive     = "live"
	OutcomeCache    = "cache"
	OutcomeStale    = "stale"
	OutcomeFallback = "fallback"
)

// Sample is one recorded request.
type Sample struct {
	PlaceID  string        `json:"place_id"`
	Outcome  string        `json:"outcome"`
	Duration time.Duration `json:"duration"`
	At       time.Time     `json:"at"`
}

// Stats aggregates recorded requests.
type Stats struct {
	TotalRequests  int            `json:"total_requests"`
	ByOutcome      map[string]int `json:"by_outcome"`
	AverageLatency time.Duration  `json:"average_latency"`
	LastRequestAt  time.Time      `json:"last_request_at,omitempty"`
}

// Recorder keeps a sliding window of request timings alongside outcome
// counters. Counters cover the process lifetime; the window bounds memory.
type Recorder struct {
	mu        sync.RWMutex
	samples   []Sample
	maxWindow int
	counts    map[string]int
	total     int
	lastAt    time.Time
}

// NewRecorder creates a recorder with a bounded sample window.
func NewRecorder() *Recorder {
	return &Recorder{
		samples:   make([]Sample, 0, 100),
		maxWindow: 100,
		counts:    make(map[string]int),
	}
}

// Record stores one request outcome and mirrors it into the Prometheus
// metrics.
func (r *Recorder) Record(placeID, outcome string, duration time.Duration) {
	r.mu.Lock()
	r.samples = append(r.samples, Sample{
		PlaceID:  placeID,
		Outcome:  outcome,
		Duration: duration,
		At:       time.Now(),
	})
	if len(r.samples) > r.maxWindow {
		r.samples = r.samples[1:]
	}
	r.counts[outcome]++
	r.total++
	r.lastAt = time.Now()
	r.mu.Unlock()

	FetchesTotal.WithLabelValues(outcome).Inc()
	FetchDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// Stats returns aggregate statistics over the process lifetime, with the
// average latency computed over the sample window.
func (r *Recorder) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := Stats{
		TotalRequests: r.total,
		ByOutcome:     make(map[string]int, len(r.counts)),
		LastRequestAt: r.lastAt,
	}
	for outcome, n := range r.counts {
		stats.ByOutcome[outcome] = n
	}

	if len(r.samples) > 0 {
		var total time.Duration
		for _, s := range r.samples {
			total += s.Duration
		}
		stats.AverageLatency = total / time.Duration(len(r.samples))
	}
	return stats
}
