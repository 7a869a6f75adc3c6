package ffb

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/wheelworks/ffbctl/internal/wheel"
)

// Poller samples device telemetry at a fixed cadence and publishes the
// latest sample for display. It is independent of effect playback: a
// failed sample only marks the published value stale and the loop
// keeps going, leaning on the session's reacquire discipline.
type Poller struct {
	session  *Session
	interval time.Duration
	log      *slog.Logger

	mu     sync.RWMutex
	latest wheel.Telemetry
	fresh  bool
}

func NewPoller(session *Session, interval time.Duration, log *slog.Logger) *Poller {
	return &Poller{session: session, interval: interval, log: log}
}

// Run loops until the context is canceled. It always returns nil so a
// cooperative shutdown does not read as a failure to the errgroup
// supervising it.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			tel, err := p.session.SampleTelemetry()
			p.mu.Lock()
			if err != nil {
				p.fresh = false
				p.mu.Unlock()
				p.log.Debug("telemetry sample failed", slog.Any("error", err))
				continue
			}
			p.latest = tel
			p.fresh = true
			p.mu.Unlock()
		}
	}
}

// Latest returns the most recent sample and whether it is fresh. A
// false second return means stale or disconnected.
func (p *Poller) Latest() (wheel.Telemetry, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.latest, p.fresh
}
