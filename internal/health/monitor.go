// Package health polls the control API and classifies connectivity.
package health

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/fentz26/mcpctl/internal/apiclient"
	"github.com/fentz26/mcpctl/internal/models"
)

const (
	// DefaultInterval is the time between probes.
	DefaultInterval = 10 * time.Second
	// DefaultProbeTimeout bounds a single probe.
	DefaultProbeTimeout = 5 * time.Second
)

// Prober performs one status probe and returns the API version.
type Prober interface {
	Probe(ctx context.Context) (version string, err error)
}

// ProberFunc adapts a function to Prober.
type ProberFunc func(ctx context.Context) (string, error)

// Probe calls f.
func (f ProberFunc) Probe(ctx context.Context) (string, error) { return f(ctx) }

// StatusAPI is the subset of the control API a status probe needs.
type StatusAPI interface {
	Status(ctx context.Context) (*apiclient.StatusResponse, error)
}

// StatusProber probes api's status endpoint.
func StatusProber(api StatusAPI) Prober {
	return ProberFunc(func(ctx context.Context) (string, error) {
		st, err := api.Status(ctx)
		if err != nil {
			return "", err
		}
		return st.Version, nil
	})
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithInterval sets the polling interval.
func WithInterval(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.interval = d
		}
	}
}

// WithProbeTimeout bounds each probe.
func WithProbeTimeout(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.probeTimeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(m *Monitor) { m.logger = l }
}

// WithOnChange registers fn to be called from the polling goroutine whenever
// the classification changes. fn must not call Stop.
func WithOnChange(fn func(models.ConnectivityState)) Option {
	return func(m *Monitor) { m.onChange = fn }
}

// Monitor polls on a fixed interval between Start and Stop.
type Monitor struct {
	prober       Prober
	interval     time.Duration
	probeTimeout time.Duration
	logger       *log.Logger
	onChange     func(models.ConnectivityState)

	mu      sync.Mutex
	state   models.ConnectivityState
	running bool
	epoch   uint64
	cancel  context.CancelFunc
	done    chan struct{}
}

// New creates a stopped monitor in the checking state.
func New(p Prober, opts ...Option) *Monitor {
	m := &Monitor{
		prober:       p,
		interval:     DefaultInterval,
		probeTimeout: DefaultProbeTimeout,
		logger:       log.Default(),
		state:        models.Checking(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start begins polling. The first probe runs immediately. Calling Start on a
// running monitor does nothing.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	m.running = true
	m.epoch++
	m.cancel = cancel
	m.done = make(chan struct{})
	m.state = models.Checking()

	go m.loop(ctx, m.epoch, m.done)
	m.logger.Debug("health monitor started", "interval", m.interval)
}

// Stop ends polling and waits for the loop to exit. A probe still in flight
// is cancelled and its result discarded. No change callback runs after Stop
// returns.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	m.epoch++
	m.cancel()
	done := m.done
	m.mu.Unlock()

	<-done
	m.logger.Debug("health monitor stopped")
}

// Running reports whether the monitor is polling.
func (m *Monitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// State returns the last classification.
func (m *Monitor) State() models.ConnectivityState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Check runs one probe and classifies it without touching monitor state.
func (m *Monitor) Check(ctx context.Context) models.ConnectivityState {
	ctx, cancel := context.WithTimeout(ctx, m.probeTimeout)
	defer cancel()
	version, err := m.prober.Probe(ctx)
	return classify(version, err)
}

func (m *Monitor) loop(ctx context.Context, epoch uint64, done chan struct{}) {
	defer close(done)

	m.poll(ctx, epoch)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.poll(ctx, epoch)
		}
	}
}

type probeResult struct {
	version string
	err     error
}

// poll runs one probe. The probe runs in its own goroutine so that Stop
// never waits on a slow probe.
func (m *Monitor) poll(ctx context.Context, epoch uint64) {
	pctx, cancel := context.WithTimeout(ctx, m.probeTimeout)
	defer cancel()

	results := make(chan probeResult, 1)
	go func() {
		v, err := m.prober.Probe(pctx)
		results <- probeResult{version: v, err: err}
	}()

	select {
	case <-ctx.Done():
		return
	case r := <-results:
		m.apply(epoch, classify(r.version, r.err))
	}
}

// apply stores next unless the monitor was stopped or restarted since the
// probe began.
func (m *Monitor) apply(epoch uint64, next models.ConnectivityState) {
	m.mu.Lock()
	if epoch != m.epoch {
		m.mu.Unlock()
		return
	}
	prev := m.state
	m.state = next
	fn := m.onChange
	m.mu.Unlock()

	if prev.Status == next.Status && prev.Version == next.Version {
		return
	}
	if next.Connected() {
		m.logger.Info("control API connected", "version", next.Version)
	} else {
		m.logger.Warn("control API unreachable", "err", next.Error)
	}
	if fn != nil {
		fn(next)
	}
}

func classify(version string, err error) models.ConnectivityState {
	now := time.Now()
	if err != nil {
		return models.ConnectivityState{
			Status:    models.ConnectivityDisconnected,
			Error:     apiclient.Message(err),
			CheckedAt: now,
		}
	}
	return models.ConnectivityState{
		Status:    models.ConnectivityConnected,
		Version:   version,
		CheckedAt: now,
	}
}
