// Package wheel defines the contract between the force-feedback core
// and the platform driver bindings. The core only ever sees Device and
// Effect; the binding behind them differs per OS (evdev on Linux, HID
// PID reports elsewhere) but must preserve the same error semantics.
package wheel

import (
	"errors"
	"log/slog"
	"time"
)

// Sentinel errors returned across the binding boundary. Everything the
// core needs to react to is one of these; raw OS error codes never
// cross this package.
var (
	// ErrNotFound means no attached device matched the vendor/product
	// identity with force-feedback capability.
	ErrNotFound = errors.New("wheel: device not found")

	// ErrBusy means another process holds the exclusive claim.
	ErrBusy = errors.New("wheel: device busy")

	// ErrLost means the exclusive claim was lost; the caller must
	// reacquire before issuing further commands.
	ErrLost = errors.New("wheel: device access lost")

	// ErrNotDownloaded means the effect is no longer resident on the
	// device and must be downloaded again before it can start.
	ErrNotDownloaded = errors.New("wheel: effect not downloaded")

	// ErrUnsupported means the binding cannot update the requested
	// parameter on a live effect.
	ErrUnsupported = errors.New("wheel: live update unsupported")
)

// MaxLevel is the largest force magnitude the contract carries. Both
// bindings scale to this range.
const MaxLevel int16 = 32767

// Kind identifies one of the four effect families.
type Kind uint8

const (
	KindConstant Kind = iota
	KindPeriodic
	KindRamp
	KindCondition
)

func (k Kind) String() string {
	switch k {
	case KindConstant:
		return "constant"
	case KindPeriodic:
		return "periodic"
	case KindRamp:
		return "ramp"
	case KindCondition:
		return "condition"
	}
	return "unknown"
}

// Waveform selects the periodic effect shape.
type Waveform uint8

const (
	WaveSine Waveform = iota
	WaveSquare
	WaveTriangle
	WaveSawtoothUp
)

// ConditionType selects the condition effect flavor.
type ConditionType uint8

const (
	CondSpring ConditionType = iota
	CondDamper
	CondInertia
	CondFriction
)

// ConstantParams describe a directional constant-force effect.
type ConstantParams struct {
	Level int16
}

// PeriodicParams describe a repeating waveform effect.
type PeriodicParams struct {
	Waveform  Waveform
	Magnitude int16
	Period    time.Duration
	Phase     uint16
}

// RampParams describe a force that slews from start to end level over
// the effect duration.
type RampParams struct {
	StartLevel int16
	EndLevel   int16
}

// ConditionParams describe a position/velocity dependent resistance.
type ConditionParams struct {
	Type        ConditionType
	Coefficient int16
	Saturation  uint16
	Deadband    uint16
}

// Descriptor is the hardware-independent description of one effect.
// Only the parameter block matching Kind is meaningful. Descriptors
// come from a compiled-in catalog and are never mutated.
type Descriptor struct {
	Name      string
	Kind      Kind
	Direction uint16        // device direction units, 0x4000 = straight right
	Duration  time.Duration // 0 plays until stopped

	Constant  ConstantParams
	Periodic  PeriodicParams
	Ramp      RampParams
	Condition ConditionParams
}

// Telemetry is one read-only sample of axis and button state.
type Telemetry struct {
	Steering int16
	Throttle int16
	Brake    int16
	Buttons  uint32
}

// Effect is a hardware-resident force program. An Effect is only valid
// while the Device that created it holds its exclusive claim; bindings
// surface use-after-loss as ErrLost, never as undefined behavior.
type Effect interface {
	// Start begins playback. May return ErrNotDownloaded or ErrLost.
	Start() error

	// Stop halts playback. Best effort; callers log failures and move on.
	Stop() error

	// Download re-uploads the effect to the device. Used only to
	// recover from ErrNotDownloaded.
	Download() error

	// SetLevel updates the magnitude of a playing effect in place.
	// Returns ErrUnsupported for kinds the device cannot retune live.
	SetLevel(level int16) error

	// Destroy releases the device-side effect slot.
	Destroy() error
}

// Device is one opened force-feedback device.
type Device interface {
	// Acquire requests exclusive control. May return ErrBusy or ErrLost.
	Acquire() error

	// CreateEffect uploads a descriptor and returns its live handle.
	CreateEffect(d Descriptor) (Effect, error)

	// Poll takes one non-blocking telemetry sample.
	Poll() (Telemetry, error)

	// Release drops the exclusive claim and closes the device.
	Release() error
}

// Open locates the wheel by vendor/product identity and returns the
// OS-specific binding for it.
func Open(vendorID, productID uint16, log *slog.Logger) (Device, error) {
	return openDevice(vendorID, productID, log)
}
