package ffb

import (
	"time"

	"github.com/wheelworks/ffbctl/internal/wheel"
)

// DefaultDirection points the force straight right in device units.
const DefaultDirection uint16 = 0x4000

// DefaultCatalog is the compiled-in effect table: four constant forces,
// four periodic waveforms, two ramps and four condition effects. Ramps
// run for a fixed three seconds; everything else plays until stopped.
func DefaultCatalog() []wheel.Descriptor {
	constant := func(name string, level int16) wheel.Descriptor {
		return wheel.Descriptor{
			Name:      name,
			Kind:      wheel.KindConstant,
			Direction: DefaultDirection,
			Constant:  wheel.ConstantParams{Level: level},
		}
	}
	periodic := func(name string, wave wheel.Waveform, magnitude int16, period time.Duration) wheel.Descriptor {
		return wheel.Descriptor{
			Name:      name,
			Kind:      wheel.KindPeriodic,
			Direction: DefaultDirection,
			Periodic:  wheel.PeriodicParams{Waveform: wave, Magnitude: magnitude, Period: period},
		}
	}
	ramp := func(name string, start, end int16) wheel.Descriptor {
		return wheel.Descriptor{
			Name:      name,
			Kind:      wheel.KindRamp,
			Direction: DefaultDirection,
			Duration:  3 * time.Second,
			Ramp:      wheel.RampParams{StartLevel: start, EndLevel: end},
		}
	}
	condition := func(name string, typ wheel.ConditionType, coefficient int16) wheel.Descriptor {
		return wheel.Descriptor{
			Name:      name,
			Kind:      wheel.KindCondition,
			Direction: DefaultDirection,
			Condition: wheel.ConditionParams{
				Type:        typ,
				Coefficient: coefficient,
				Saturation:  uint16(wheel.MaxLevel),
				Deadband:    500,
			},
		}
	}

	return []wheel.Descriptor{
		constant("Constant_Right", 24000),
		constant("Constant_Left", -24000),
		constant("Constant_Strong", 32000),
		constant("Constant_Weak", 12000),

		periodic("Sine", wheel.WaveSine, 20000, 200*time.Millisecond),
		periodic("Square", wheel.WaveSquare, 22000, 150*time.Millisecond),
		periodic("Triangle", wheel.WaveTriangle, 18000, 300*time.Millisecond),
		periodic("Sawtooth", wheel.WaveSawtoothUp, 20000, 180*time.Millisecond),

		ramp("Ramp_Up", 5000, 30000),
		ramp("Ramp_Down", 30000, 5000),

		condition("Spring", wheel.CondSpring, 24000),
		condition("Damper", wheel.CondDamper, 20000),
		condition("Inertia", wheel.CondInertia, 18000),
		condition("Friction", wheel.CondFriction, 15000),
	}
}
