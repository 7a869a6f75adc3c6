package ffb

import (
	"errors"
	"testing"

	"github.com/wheelworks/ffbctl/internal/wheel"
)

func TestBuildAllToleratesPartialFailure(t *testing.T) {
	catalog := []wheel.Descriptor{
		constantDesc("one", 1),
		constantDesc("two", 2),
		constantDesc("three", 3),
		constantDesc("four", 4),
		constantDesc("five", 5),
	}
	dev := newFakeDevice()
	dev.createErrs["two"] = errors.New("no slot")
	dev.createErrs["four"] = errors.New("no slot")

	sess := NewSession(dev, testLogger())
	reg, err := BuildAll(sess, catalog, testLogger())
	if err != nil {
		t.Fatalf("BuildAll: %v", err)
	}
	if reg.Count() != 3 {
		t.Fatalf("Count = %d, want 3", reg.Count())
	}
	want := []string{"one", "three", "five"}
	for i, name := range want {
		if got := reg.NameAt(i); got != name {
			t.Fatalf("NameAt(%d) = %q, want %q", i, got, name)
		}
	}

	// Navigation only ever visits the three survivors.
	c := NewController(sess, reg, Params{}, testLogger())
	seen := map[string]bool{}
	for i := 0; i < 7; i++ {
		seen[c.Snapshot().Name] = true
		c.Next()
	}
	if len(seen) != 3 {
		t.Fatalf("navigation visited %d names, want 3: %v", len(seen), seen)
	}
	for _, name := range want {
		if !seen[name] {
			t.Fatalf("navigation never visited %q", name)
		}
	}
}

func TestBuildAllFailsWhenNothingCreates(t *testing.T) {
	catalog := []wheel.Descriptor{
		constantDesc("one", 1),
		constantDesc("two", 2),
	}
	dev := newFakeDevice()
	dev.createErrs["one"] = errors.New("no slot")
	dev.createErrs["two"] = errors.New("no slot")

	sess := NewSession(dev, testLogger())
	if _, err := BuildAll(sess, catalog, testLogger()); !errors.Is(err, ErrNoEffects) {
		t.Fatalf("BuildAll error = %v, want ErrNoEffects", err)
	}
}

func TestRegistryMapListConsistency(t *testing.T) {
	dev := newFakeDevice()
	_, reg := buildTest(t, dev, []wheel.Descriptor{
		constantDesc("a", 1),
		constantDesc("b", 2),
	})
	for i := 0; i < reg.Count(); i++ {
		name := reg.NameAt(i)
		if _, ok := reg.Lookup(name); !ok {
			t.Fatalf("listed name %q has no handle", name)
		}
	}
	if _, ok := reg.Lookup("missing"); ok {
		t.Fatal("Lookup of unknown name succeeded")
	}
}

func TestDestroyAllToleratesErrorsAndIsRepeatable(t *testing.T) {
	dev := newFakeDevice()
	_, reg := buildTest(t, dev, []wheel.Descriptor{
		constantDesc("a", 1),
		constantDesc("b", 2),
	})
	dev.effects["a"].destroyErr = errors.New("driver glitch")

	reg.DestroyAll()
	if reg.Count() != 0 {
		t.Fatalf("Count = %d after DestroyAll, want 0", reg.Count())
	}

	destroyed := 0
	for _, op := range dev.ops {
		if len(op) > 8 && op[:8] == "destroy:" {
			destroyed++
		}
	}
	if destroyed != 2 {
		t.Fatalf("destroy issued %d times, want 2 despite the error", destroyed)
	}

	// Second call on an empty registry is a no-op.
	reg.DestroyAll()
}
