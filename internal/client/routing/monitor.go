package routing

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/whattodo/internal/logging"
)

type Mode string

const (
	ModeUnknown Mode = ""
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

// Pinger checks whether the remote authority answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Monitor tracks connectivity from periodic pings and from the outcome of
// proxied requests. Every offline to online transition calls onOnline once.
type Monitor struct {
	pinger      Pinger
	logger      logging.Logger
	onOnline    func()
	pingTimeout time.Duration

	mu   sync.Mutex
	mode Mode
}

func NewMonitor(pinger Pinger, logger logging.Logger, onOnline func()) *Monitor {
	return &Monitor{
		pinger:      pinger,
		logger:      logger.With("module", "monitor"),
		onOnline:    onOnline,
		pingTimeout: 3 * time.Second,
	}
}

func (m *Monitor) Mode() Mode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mode
}

func (m *Monitor) Online() bool {
	return m.Mode() == ModeOnline
}

// Report records the outcome of a network attempt.
func (m *Monitor) Report(ok bool) {
	mode := ModeOffline
	if ok {
		mode = ModeOnline
	}
	m.setMode(mode)
}

func (m *Monitor) setMode(mode Mode) {
	m.mu.Lock()
	prev := m.mode
	m.mode = mode
	m.mu.Unlock()

	if prev == mode {
		return
	}
	m.logger.Info(context.Background(), "connectivity changed", "from", string(prev), "to", string(mode))
	if prev == ModeOffline && mode == ModeOnline && m.onOnline != nil {
		m.onOnline()
	}
}

// Check pings once and records the result.
func (m *Monitor) Check(ctx context.Context) {
	if m.pinger == nil {
		return
	}
	pctx, cancel := context.WithTimeout(ctx, m.pingTimeout)
	err := m.pinger.Ping(pctx)
	cancel()
	if ctx.Err() != nil {
		return
	}
	m.Report(err == nil)
}

// Watch checks connectivity now and then every interval until ctx is done.
func (m *Monitor) Watch(ctx context.Context, interval time.Duration) {
	m.Check(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Check(ctx)
		case <-ctx.Done():
			return
		}
	}
}
