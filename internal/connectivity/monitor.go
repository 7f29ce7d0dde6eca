// Package connectivity provides the reachability monitor for the remote
// backend.
//
// The monitor probes the backend's health endpoint at a bounded interval
// and exposes the current state plus a stream of deduplicated transitions.
// Detection lag is bounded by the poll interval; callers must tolerate a
// stale Online classification, because the remote call itself is the
// ultimate truth.
package connectivity

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"sync"
	"time"
)

// State is the reachability classification of the remote backend.
type State int

const (
	StateOffline State = iota
	StateOnline
)

// String implements fmt.Stringer.
func (s State) String() string {
	if s == StateOnline {
		return "online"
	}
	return "offline"
}

// Probe checks reachability once. A nil error classifies as Online.
type Probe interface {
	Check(ctx context.Context) error
}

// ProbeFunc adapts a function to the Probe interface.
type ProbeFunc func(ctx context.Context) error

// Check implements Probe.
func (f ProbeFunc) Check(ctx context.Context) error { return f(ctx) }

// HTTPProbe probes GET {baseURL}/api/health with a short per-request
// timeout. Any transport error or non-2xx status classifies as Offline.
func HTTPProbe(baseURL string, timeout time.Duration) Probe {
	client := &http.Client{Timeout: timeout}
	return ProbeFunc(func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/api/health", nil)
		if err != nil {
			return fmt.Errorf("failed to build health request: %w", err)
		}
		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("health endpoint returned %s", resp.Status)
		}
		return nil
	})
}

// Monitor polls a Probe and publishes deduplicated state transitions.
//
// The initial state is Offline until the first successful probe; startup
// code that wants an immediate answer should call CheckNow.
type Monitor struct {
	probe    Probe
	interval time.Duration
	logger   *log.Logger

	mu      sync.Mutex
	state   State
	subs    map[int]chan State
	nextSub int
}

// NewMonitor creates a monitor polling the probe at the given interval.
//
// If logger is nil, a default logger writing to stderr is used.
func NewMonitor(probe Probe, interval time.Duration, logger *log.Logger) *Monitor {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	if logger == nil {
		logger = log.New(os.Stderr, "[connectivity] ", log.LstdFlags)
	}
	return &Monitor{
		probe:    probe,
		interval: interval,
		logger:   logger,
		state:    StateOffline,
		subs:     make(map[int]chan State),
	}
}

// State returns the current reachability classification.
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Online reports whether the backend is currently believed reachable.
func (m *Monitor) Online() bool {
	return m.State() == StateOnline
}

// Subscribe returns a channel of state transitions and a cancel function.
// Identical consecutive states are deduplicated before delivery. The
// channel is buffered; a subscriber that falls behind loses intermediate
// transitions, never blocks the monitor.
func (m *Monitor) Subscribe() (<-chan State, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextSub
	m.nextSub++
	ch := make(chan State, 4)
	m.subs[id] = ch

	cancel := func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if sub, ok := m.subs[id]; ok {
			delete(m.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// CheckNow probes immediately, updates the state, and returns the result.
// Used for user-initiated refresh.
func (m *Monitor) CheckNow(ctx context.Context) State {
	state := StateOffline
	if err := m.probe.Check(ctx); err == nil {
		state = StateOnline
	}
	m.setState(state)
	return state
}

// Run probes at the configured interval until ctx is cancelled.
// An initial probe fires immediately so startup does not wait a full tick.
func (m *Monitor) Run(ctx context.Context) error {
	m.CheckNow(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.CheckNow(ctx)
		}
	}
}

// setState records a probe result and broadcasts the transition if the
// classification changed.
func (m *Monitor) setState(state State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if state == m.state {
		return
	}
	m.state = state

	m.logger.Printf("Backend is %s", state)
	for _, ch := range m.subs {
		select {
		case ch <- state:
		default:
			// Subscriber is behind; it will observe the current
			// state on its next read of Monitor.State.
		}
	}
}
