package ffb

import (
	"errors"
	"sync"
	"testing"

	"github.com/wheelworks/ffbctl/internal/wheel"
)

func TestAcquireIsIdempotent(t *testing.T) {
	dev := newFakeDevice()
	sess := NewSession(dev, testLogger())

	if err := sess.Acquire(); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if err := sess.Acquire(); err != nil {
		t.Fatalf("second Acquire: %v", err)
	}
	if dev.acquireCalls != 1 {
		t.Fatalf("driver acquire called %d times, want 1", dev.acquireCalls)
	}
	if got := sess.State(); got != StateAcquired {
		t.Fatalf("state = %v, want acquired", got)
	}
}

func TestEnsureAcquiredMakesOneAttempt(t *testing.T) {
	dev := newFakeDevice()
	dev.acquireErrs = []error{wheel.ErrBusy}
	sess := NewSession(dev, testLogger())

	err := sess.EnsureAcquired()
	if !errors.Is(err, ErrSessionUnavailable) {
		t.Fatalf("error = %v, want ErrSessionUnavailable", err)
	}
	if dev.acquireCalls != 1 {
		t.Fatalf("driver acquire called %d times, want exactly 1", dev.acquireCalls)
	}

	// The next tick tries again and succeeds.
	if err := sess.EnsureAcquired(); err != nil {
		t.Fatalf("EnsureAcquired after recovery: %v", err)
	}
	if got := sess.State(); got != StateAcquired {
		t.Fatalf("state = %v, want acquired", got)
	}
}

func TestMarkLostTriggersReacquire(t *testing.T) {
	dev := newFakeDevice()
	sess := NewSession(dev, testLogger())

	if err := sess.Acquire(); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	sess.MarkLost()
	if got := sess.State(); got != StateLost {
		t.Fatalf("state = %v, want lost", got)
	}
	if err := sess.EnsureAcquired(); err != nil {
		t.Fatalf("EnsureAcquired: %v", err)
	}
	if dev.acquireCalls != 2 {
		t.Fatalf("driver acquire called %d times, want 2", dev.acquireCalls)
	}
}

func TestSampleTelemetryRetriesOnceOnPollFailure(t *testing.T) {
	dev := newFakeDevice()
	dev.tel = wheel.Telemetry{Steering: 1234}
	sess := NewSession(dev, testLogger())
	if err := sess.Acquire(); err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	dev.pollErrs = []error{wheel.ErrLost}
	tel, err := sess.SampleTelemetry()
	if err != nil {
		t.Fatalf("SampleTelemetry: %v", err)
	}
	if tel.Steering != 1234 {
		t.Fatalf("steering = %d, want 1234", tel.Steering)
	}
	if dev.pollCalls != 2 {
		t.Fatalf("poll called %d times, want 2", dev.pollCalls)
	}
	if dev.acquireCalls != 2 {
		t.Fatalf("acquire called %d times, want 2 (initial + one reacquire)", dev.acquireCalls)
	}
}

func TestSampleTelemetryGivesUpAfterOneRetry(t *testing.T) {
	dev := newFakeDevice()
	sess := NewSession(dev, testLogger())
	if err := sess.Acquire(); err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	dev.pollErrs = []error{wheel.ErrLost, wheel.ErrLost}
	if _, err := sess.SampleTelemetry(); err == nil {
		t.Fatal("expected SampleTelemetry to fail")
	}
	if dev.pollCalls != 2 {
		t.Fatalf("poll called %d times, want exactly 2", dev.pollCalls)
	}
	if got := sess.State(); got != StateLost {
		t.Fatalf("state = %v, want lost", got)
	}
}

func TestSampleTelemetryWithoutSession(t *testing.T) {
	dev := newFakeDevice()
	dev.acquireErrs = []error{wheel.ErrBusy}
	sess := NewSession(dev, testLogger())

	if _, err := sess.SampleTelemetry(); !errors.Is(err, ErrSessionUnavailable) {
		t.Fatalf("error = %v, want ErrSessionUnavailable", err)
	}
	if dev.pollCalls != 0 {
		t.Fatalf("poll called %d times without a session, want 0", dev.pollCalls)
	}
}

func TestReleaseReachesDeviceOnce(t *testing.T) {
	dev := newFakeDevice()
	sess := NewSession(dev, testLogger())
	if err := sess.Acquire(); err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	sess.Release()
	sess.Release()
	if dev.released != 1 {
		t.Fatalf("driver release called %d times, want 1", dev.released)
	}
	if err := sess.EnsureAcquired(); !errors.Is(err, ErrSessionUnavailable) {
		t.Fatalf("EnsureAcquired after release = %v, want ErrSessionUnavailable", err)
	}
}

func TestConcurrentEnsureAcquiredIsRaceFree(t *testing.T) {
	dev := newFakeDevice()
	sess := NewSession(dev, testLogger())

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = sess.EnsureAcquired()
		}()
	}
	wg.Wait()

	if dev.acquireCalls != 1 {
		t.Fatalf("driver acquire called %d times under concurrency, want 1", dev.acquireCalls)
	}
	if got := sess.State(); got != StateAcquired {
		t.Fatalf("state = %v, want acquired", got)
	}
}
