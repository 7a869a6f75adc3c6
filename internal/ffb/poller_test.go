package ffb

import (
	"context"
	"testing"
	"time"

	"github.com/wheelworks/ffbctl/internal/wheel"
)

func waitFor(t *testing.T, deadline time.Duration, cond func() bool) {
	t.Helper()
	end := time.Now().Add(deadline)
	for time.Now().Before(end) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not reached before deadline")
}

func TestPollerPublishesLatestSample(t *testing.T) {
	dev := newFakeDevice()
	dev.tel = wheel.Telemetry{Steering: 42, Buttons: 0b101}
	sess := NewSession(dev, testLogger())
	p := NewPoller(sess, time.Millisecond, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	waitFor(t, 2*time.Second, func() bool {
		tel, fresh := p.Latest()
		return fresh && tel.Steering == 42 && tel.Buttons == 0b101
	})

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run returned %v on cancel, want nil", err)
	}
}

func TestPollerMarksStaleOnFailure(t *testing.T) {
	dev := newFakeDevice()
	dev.tel = wheel.Telemetry{Steering: 7}
	sess := NewSession(dev, testLogger())
	p := NewPoller(sess, time.Millisecond, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = p.Run(ctx) }()

	waitFor(t, 2*time.Second, func() bool {
		_, fresh := p.Latest()
		return fresh
	})

	// Every subsequent poll and reacquire fails: the published sample
	// must turn stale but the loop must keep running.
	dev.failPolls.Store(true)
	waitFor(t, 2*time.Second, func() bool {
		_, fresh := p.Latest()
		return !fresh
	})

	dev.failPolls.Store(false)
	waitFor(t, 2*time.Second, func() bool {
		_, fresh := p.Latest()
		return fresh
	})
}
