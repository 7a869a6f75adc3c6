package ffb

import (
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"

	"github.com/wheelworks/ffbctl/internal/wheel"
)

// fakeDevice records every driver call and plays back scripted errors,
// so tests can assert call ordering and retry counts.
type fakeDevice struct {
	ops []string

	acquireErrs  []error
	acquireCalls int

	pollErrs  []error
	failPolls atomic.Bool
	pollCalls int
	tel       wheel.Telemetry

	createErrs map[string]error
	effects    map[string]*fakeEffect

	released int
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{
		createErrs: make(map[string]error),
		effects:    make(map[string]*fakeEffect),
	}
}

func pop(q *[]error) error {
	if len(*q) == 0 {
		return nil
	}
	err := (*q)[0]
	*q = (*q)[1:]
	return err
}

func (f *fakeDevice) Acquire() error {
	f.acquireCalls++
	f.ops = append(f.ops, "acquire")
	return pop(&f.acquireErrs)
}

func (f *fakeDevice) CreateEffect(d wheel.Descriptor) (wheel.Effect, error) {
	if err := f.createErrs[d.Name]; err != nil {
		return nil, err
	}
	e := &fakeEffect{dev: f, name: d.Name, kind: d.Kind}
	f.effects[d.Name] = e
	return e, nil
}

func (f *fakeDevice) Poll() (wheel.Telemetry, error) {
	f.pollCalls++
	f.ops = append(f.ops, "poll")
	if f.failPolls.Load() {
		return wheel.Telemetry{}, fmt.Errorf("poll failed")
	}
	if err := pop(&f.pollErrs); err != nil {
		return wheel.Telemetry{}, err
	}
	return f.tel, nil
}

func (f *fakeDevice) Release() error {
	f.released++
	return nil
}

// startedCount reports how many effects currently believe they are
// playing on the device.
func (f *fakeDevice) startedCount() int {
	n := 0
	for _, e := range f.effects {
		if e.started {
			n++
		}
	}
	return n
}

type fakeEffect struct {
	dev  *fakeDevice
	name string
	kind wheel.Kind

	startErrs  []error
	stopErr    error
	destroyErr error

	started   bool
	downloads int
	level     int16
}

func (e *fakeEffect) Start() error {
	e.dev.ops = append(e.dev.ops, "start:"+e.name)
	if err := pop(&e.startErrs); err != nil {
		return err
	}
	e.started = true
	return nil
}

func (e *fakeEffect) Stop() error {
	e.dev.ops = append(e.dev.ops, "stop:"+e.name)
	e.started = false
	return e.stopErr
}

func (e *fakeEffect) Download() error {
	e.downloads++
	e.dev.ops = append(e.dev.ops, "download:"+e.name)
	return nil
}

func (e *fakeEffect) SetLevel(level int16) error {
	e.level = level
	e.dev.ops = append(e.dev.ops, fmt.Sprintf("setlevel:%s:%d", e.name, level))
	return nil
}

func (e *fakeEffect) Destroy() error {
	e.dev.ops = append(e.dev.ops, "destroy:"+e.name)
	return e.destroyErr
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func constantDesc(name string, level int16) wheel.Descriptor {
	return wheel.Descriptor{
		Name:     name,
		Kind:     wheel.KindConstant,
		Constant: wheel.ConstantParams{Level: level},
	}
}

func buildTest(t *testing.T, dev *fakeDevice, catalog []wheel.Descriptor) (*Session, *Registry) {
	t.Helper()
	sess := NewSession(dev, testLogger())
	reg, err := BuildAll(sess, catalog, testLogger())
	if err != nil {
		t.Fatalf("BuildAll: %v", err)
	}
	return sess, reg
}
