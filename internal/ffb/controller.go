package ffb

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/wheelworks/ffbctl/internal/wheel"
)

// Params carries the user-tunable bounds and starting values for a
// Controller. The numeric bounds are operator conveniences, not
// hardware truths, so they come from configuration.
type Params struct {
	MaxForce        int16
	Intensity       int16
	Direction       int16
	Duration        time.Duration // 0 plays until stopped
	DurationMin     time.Duration
	DurationMax     time.Duration
	DurationDefault time.Duration // value a toggle away from infinite lands on
}

// Controller is the state machine for which effect is selected and
// whether it is playing. All methods must be called from one goroutine
// (the foreground control task); the telemetry poller never touches
// controller state, which is what lets it go unlocked.
type Controller struct {
	session *Session
	reg     *Registry
	log     *slog.Logger
	p       Params

	idx       int
	playing   bool
	intensity int16
	direction int16
	duration  time.Duration
}

func NewController(session *Session, reg *Registry, p Params, log *slog.Logger) *Controller {
	if p.MaxForce <= 0 {
		p.MaxForce = wheel.MaxLevel
	}
	return &Controller{
		session:   session,
		reg:       reg,
		log:       log,
		p:         p,
		intensity: p.Intensity,
		direction: p.Direction,
		duration:  p.Duration,
	}
}

// Snapshot is the read-only view handed to the display layer.
type Snapshot struct {
	Name      string
	Index     int
	Count     int
	Playing   bool
	Intensity int16
	Direction int16
	Duration  time.Duration // 0 means infinite
	MaxForce  int16
	Session   SessionState
}

func (c *Controller) Snapshot() Snapshot {
	return Snapshot{
		Name:      c.reg.NameAt(c.idx),
		Index:     c.idx,
		Count:     c.reg.Count(),
		Playing:   c.playing,
		Intensity: c.intensity,
		Direction: c.direction,
		Duration:  c.duration,
		MaxForce:  c.p.MaxForce,
		Session:   c.session.State(),
	}
}

// EffectNames returns the ordered navigation list.
func (c *Controller) EffectNames() []string { return c.reg.Names() }

// Playing reports whether the selected effect is active.
func (c *Controller) Playing() bool { return c.playing }

// Play starts the selected effect. Every handle is stopped first so
// the at-most-one-playing invariant holds even if an earlier stop
// silently failed. A not-downloaded start gets exactly one download
// and retry; a lost session gets exactly one reacquire and retry; any
// other failure leaves the controller idle and is reported.
func (c *Controller) Play() error {
	c.reg.StopAll()
	c.playing = false

	if err := c.session.EnsureAcquired(); err != nil {
		return err
	}

	name := c.reg.NameAt(c.idx)
	eff := c.reg.EffectAt(c.idx)

	err := eff.Start()
	switch {
	case errors.Is(err, wheel.ErrNotDownloaded):
		c.log.Warn("effect not resident on device, downloading", slog.String("effect", name))
		if derr := eff.Download(); derr != nil {
			return fmt.Errorf("download %q: %w", name, derr)
		}
		err = eff.Start()
	case errors.Is(err, wheel.ErrLost):
		c.session.MarkLost()
		if rerr := c.session.EnsureAcquired(); rerr != nil {
			return rerr
		}
		err = eff.Start()
	}
	if err != nil {
		if errors.Is(err, wheel.ErrLost) {
			c.session.MarkLost()
		}
		return fmt.Errorf("play %q: %w", name, err)
	}

	c.playing = true
	c.log.Info("effect playing", slog.String("effect", name))
	return nil
}

// Stop halts the selected effect. Best effort: a failed stop is logged
// and the controller still leaves the playing state, so it can never
// get stuck playing against a dead handle. Safe when nothing plays.
func (c *Controller) Stop() {
	name := c.reg.NameAt(c.idx)
	if err := c.reg.EffectAt(c.idx).Stop(); err != nil {
		c.log.Warn("effect stop failed", slog.String("effect", name), slog.Any("error", err))
		if errors.Is(err, wheel.ErrLost) {
			c.session.MarkLost()
		}
	}
	if c.playing {
		c.log.Info("effect stopped", slog.String("effect", name))
	}
	c.playing = false
}

// StopAll stops every registered effect regardless of controller
// state. Used as a shutdown path and as a safety net.
func (c *Controller) StopAll() {
	c.reg.StopAll()
	c.playing = false
}

// Next selects the following effect, stopping the current one first.
func (c *Controller) Next() { c.step(1) }

// Previous selects the preceding effect, stopping the current one first.
func (c *Controller) Previous() { c.step(-1) }

func (c *Controller) step(d int) {
	n := c.reg.Count()
	if n == 0 {
		return
	}
	if c.playing {
		c.Stop()
	}
	c.idx = ((c.idx+d)%n + n) % n
}

// AdjustIntensity shifts the stored intensity, clamped to the force
// range. While a constant or periodic effect plays, the new magnitude
// is applied to the live handle without stopping it; ramp and
// condition effects cannot be retuned live, so for those only the
// stored value changes.
func (c *Controller) AdjustIntensity(delta int) {
	c.intensity = clamp16(int(c.intensity)+delta, c.p.MaxForce)
	if !c.playing {
		return
	}

	d := c.reg.DescriptorAt(c.idx)
	var err error
	switch d.Kind {
	case wheel.KindConstant:
		err = c.reg.EffectAt(c.idx).SetLevel(c.intensity)
	case wheel.KindPeriodic:
		// Periodic magnitude is unsigned on the wire.
		mag := c.intensity
		if mag < 0 {
			mag = -mag
		}
		err = c.reg.EffectAt(c.idx).SetLevel(mag)
	default:
		return
	}
	if err != nil {
		c.log.Warn("live intensity update failed",
			slog.String("effect", d.Name),
			slog.Any("error", err))
		if errors.Is(err, wheel.ErrLost) {
			c.session.MarkLost()
		}
	}
}

// AdjustDirection shifts the stored direction, clamped to the force
// range. Direction changes require recreating the effect, so the new
// value only takes hold at the next rebuild.
func (c *Controller) AdjustDirection(delta int) {
	c.direction = clamp16(int(c.direction)+delta, c.p.MaxForce)
}

// AdjustDuration shifts the stored duration within the configured
// bounds. Adjusting away from infinite first lands on the default
// finite duration.
func (c *Controller) AdjustDuration(delta time.Duration) {
	if c.duration == 0 {
		c.duration = c.p.DurationDefault
		return
	}
	c.duration += delta
	if c.duration < c.p.DurationMin {
		c.duration = c.p.DurationMin
	}
	if c.duration > c.p.DurationMax {
		c.duration = c.p.DurationMax
	}
}

func clamp16(v int, max int16) int16 {
	if v > int(max) {
		return max
	}
	if v < -int(max) {
		return -max
	}
	return int16(v)
}
