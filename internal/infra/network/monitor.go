// Package network tracks upstream reachability with a lightweight,
// rate-limited connectivity probe.
package network

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

const (
	// DefaultProbeURL is a known-reachable resource close to the
	// upstream API.
	DefaultProbeURL = "https://maps.googleapis.com/generate_204"

	// DefaultProbeTimeout bounds a single probe request.
	DefaultProbeTimeout = 3 * time.Second

	// DefaultCheckInterval rate-limits probes so repeated Online calls
	// reuse the last verdict instead of spamming the network.
	DefaultCheckInterval = 10 * time.Second

	// pollInterval is how often WaitOnline re-probes.
	pollInterval = time.Second
)

// ProbeFunc performs one connectivity check.
type ProbeFunc func(ctx context.Context) error

// Monitor caches the result of a connectivity probe and lets callers wait
// for an offline-to-online transition.
type Monitor struct {
	probe    ProbeFunc
	interval time.Duration
	log      *slog.Logger

	mu         sync.Mutex
	lastCheck  time.Time
	lastOnline bool
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithProbe injects a custom probe, for tests.
func WithProbe(probe ProbeFunc) Option {
	return func(m *Monitor) { m.probe = probe }
}

// WithCheckInterval overrides the probe rate limit.
func WithCheckInterval(d time.Duration) Option {
	return func(m *Monitor) { m.interval = d }
}

// NewMonitor creates a monitor probing the given URL with a HEAD request.
// An empty URL falls back to the default probe target.
func NewMonitor(probeURL string, probeTimeout time.Duration, opts ...Option) *Monitor {
	if probeURL == "" {
		probeURL = DefaultProbeURL
	}
	if probeTimeout <= 0 {
		probeTimeout = DefaultProbeTimeout
	}

	m := &Monitor{
		probe:      httpProbe(probeURL, probeTimeout),
		interval:   DefaultCheckInterval,
		log:        slog.Default().With("component", "network"),
		lastOnline: true,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func httpProbe(url string, timeout time.Duration) ProbeFunc {
	client := &http.Client{Timeout: timeout}
	return func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
		if err != nil {
			return fmt.Errorf("create probe request: %w", err)
		}
		resp, err := client.Do(req)
		if err != nil {
			return fmt.Errorf("probe: %w", err)
		}
		resp.Body.Close()
		return nil
	}
}

// Online reports the cached connectivity verdict, probing at most once per
// check interval.
func (m *Monitor) Online(ctx context.Context) bool {
	m.mu.Lock()
	if time.Since(m.lastCheck) < m.interval && !m.lastCheck.IsZero() {
		online := m.lastOnline
		m.mu.Unlock()
		return online
	}
	m.mu.Unlock()

	return m.Probe(ctx) == nil
}

// Probe forces a connectivity check and records the verdict.
func (m *Monitor) Probe(ctx context.Context) error {
	err := m.probe(ctx)

	m.mu.Lock()
	wasOnline := m.lastOnline
	m.lastCheck = time.Now()
	m.lastOnline = err == nil
	m.mu.Unlock()

	if err != nil && wasOnline {
		m.log.Warn("connectivity lost", "error", err)
	} else if err == nil && !wasOnline {
		m.log.Info("connectivity restored")
	}
	return err
}

// WaitOnline polls until the probe succeeds, the timeout elapses or the
// context is cancelled. Returns true once online.
func (m *Monitor) WaitOnline(ctx context.Context, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)

	if m.Probe(ctx) == nil {
		return true
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
			if time.Now().After(deadline) {
				return false
			}
			if m.Probe(ctx) == nil {
				return true
			}
		}
	}
}
