// Package ffb implements the effect lifecycle and device-session core:
// the exclusive device session with its reacquire discipline, the
// registry of hardware-resident effects, the play/stop/navigate state
// machine, and the background telemetry poller.
package ffb

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/wheelworks/ffbctl/internal/wheel"
)

var (
	// ErrSessionUnavailable means the device session could not be
	// (re)acquired right now. Callers treat it as "try again next
	// tick", never as fatal.
	ErrSessionUnavailable = errors.New("ffb: device session unavailable")

	// ErrNoEffects means not a single catalog entry could be
	// materialized on the device.
	ErrNoEffects = errors.New("ffb: no effects available")
)

// SessionState tracks the exclusive claim on the device.
type SessionState int

const (
	StateUnacquired SessionState = iota
	StateAcquired
	StateLost
)

func (s SessionState) String() string {
	switch s {
	case StateUnacquired:
		return "unacquired"
	case StateAcquired:
		return "acquired"
	case StateLost:
		return "lost"
	}
	return "unknown"
}

// Session owns the exclusive claim on the physical device. Both the
// control path and the telemetry path may trigger reacquisition, so
// every state transition happens under one lock and the lock is held
// across the driver call it decides about; driver calls are bounded,
// non-blocking operations, so holding the lock across them is cheap
// and gives the session exclusive access one call at a time.
type Session struct {
	mu       sync.Mutex
	dev      wheel.Device
	state    SessionState
	released bool
	log      *slog.Logger
}

func NewSession(dev wheel.Device, log *slog.Logger) *Session {
	return &Session{dev: dev, state: StateUnacquired, log: log}
}

// Acquire requests exclusive control. Idempotent if already acquired.
func (s *Session) Acquire() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.acquireLocked()
}

func (s *Session) acquireLocked() error {
	if s.released {
		return fmt.Errorf("%w: session released", ErrSessionUnavailable)
	}
	if s.state == StateAcquired {
		return nil
	}
	if err := s.dev.Acquire(); err != nil {
		return fmt.Errorf("%w: %v", ErrSessionUnavailable, err)
	}
	if s.state == StateLost {
		s.log.Info("device session reacquired")
	}
	s.state = StateAcquired
	return nil
}

// EnsureAcquired is called before any effect start or telemetry read.
// If the claim is lost or was never taken it makes exactly one acquire
// attempt and otherwise returns ErrSessionUnavailable without blocking.
func (s *Session) EnsureAcquired() error {
	return s.Acquire()
}

// MarkLost records that a driver call failed in a way that invalidates
// the claim. The next EnsureAcquired will attempt a reacquire.
func (s *Session) MarkLost() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateAcquired {
		s.state = StateLost
		s.log.Warn("device session lost")
	}
}

// State returns the current claim state for display.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SampleTelemetry takes one non-blocking sample. On a poll failure it
// attempts exactly one reacquire-and-retry before giving up for this
// call.
func (s *Session) SampleTelemetry() (wheel.Telemetry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.acquireLocked(); err != nil {
		return wheel.Telemetry{}, err
	}
	tel, err := s.dev.Poll()
	if err == nil {
		return tel, nil
	}

	s.state = StateLost
	if rerr := s.acquireLocked(); rerr != nil {
		return wheel.Telemetry{}, rerr
	}
	tel, err = s.dev.Poll()
	if err != nil {
		s.state = StateLost
		return wheel.Telemetry{}, fmt.Errorf("telemetry poll: %w", err)
	}
	return tel, nil
}

// CreateEffect materializes one descriptor on the device.
func (s *Session) CreateEffect(d wheel.Descriptor) (wheel.Effect, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.acquireLocked(); err != nil {
		return nil, err
	}
	eff, err := s.dev.CreateEffect(d)
	if err != nil {
		if errors.Is(err, wheel.ErrLost) {
			s.state = StateLost
		}
		return nil, err
	}
	return eff, nil
}

// Release unconditionally drops the exclusive claim. Safe to call more
// than once; only the first call reaches the device.
func (s *Session) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return
	}
	s.released = true
	s.state = StateUnacquired
	if err := s.dev.Release(); err != nil {
		s.log.Warn("device release failed", slog.Any("error", err))
	}
}
