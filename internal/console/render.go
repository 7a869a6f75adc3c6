// Package console renders the status and help screens and decodes
// keyboard input into controller commands. The terminal runs in raw
// mode, hence the explicit carriage returns.
package console

import (
	"fmt"
	"io"
	"time"

	"github.com/wheelworks/ffbctl/internal/ffb"
	"github.com/wheelworks/ffbctl/internal/wheel"
)

const clearScreen = "\033[2J\033[1;1H"

type Renderer struct {
	w io.Writer
}

func NewRenderer(w io.Writer) *Renderer {
	return &Renderer{w: w}
}

// Status draws the full status screen: session state, telemetry,
// selected effect and the tunable scalars.
func (r *Renderer) Status(snap ffb.Snapshot, names []string, tel wheel.Telemetry, fresh bool) {
	p := func(format string, args ...any) {
		fmt.Fprintf(r.w, format+"\r\n", args...)
	}
	fmt.Fprint(r.w, clearScreen)

	p("=== FORCE FEEDBACK WHEEL CONTROL ===")
	p("====================================")
	if snap.Session == ffb.StateAcquired {
		p("Device: CONNECTED")
	} else {
		p("Device: DISCONNECTED (%s)", snap.Session)
	}
	if fresh {
		p("Steering: %d", tel.Steering)
		p("Pedals: throttle=%d brake=%d", tel.Throttle, tel.Brake)
		p("Buttons: %s", formatButtons(tel.Buttons))
	} else {
		p("Telemetry: stale")
	}
	p("====================================")

	state := "[STOPPED]"
	if snap.Playing {
		state = "[PLAYING]"
	}
	p("Effect: [%d/%d] %s %s", snap.Index+1, snap.Count, snap.Name, state)
	p("Intensity: %s", FormatForce(snap.Intensity, snap.MaxForce))
	p("Direction: %s", FormatDirection(snap.Direction))
	p("Duration: %s", FormatDuration(snap.Duration))
	p("====================================")
	p("Effects:")
	for i, name := range names {
		marker := " "
		if i == snap.Index {
			marker = ">"
		}
		p("  %s %s", marker, name)
	}
	p("====================================")
	p("SPACE play/stop  N/P next/prev  S stop all  H help  Q quit")
}

// Help draws the key binding reference.
func (r *Renderer) Help() {
	p := func(s string) { fmt.Fprintf(r.w, "%s\r\n", s) }
	fmt.Fprint(r.w, clearScreen)

	p("================================")
	p("   FORCE FEEDBACK WHEEL HELP")
	p("================================")
	p("")
	p("CONTROLS:")
	p("  SPACE   play/stop selected effect")
	p("  N       next effect")
	p("  P       previous effect")
	p("  S       stop all effects")
	p("")
	p("TUNING:")
	p("  + / =   increase intensity")
	p("  - / _   decrease intensity")
	p("  [ / ]   steer direction left/right")
	p("  , / .   shorten/lengthen duration")
	p("")
	p("  H       toggle this help")
	p("  Q/ESC   quit")
	p("")
	p("Constant and periodic effects retune while playing;")
	p("ramp and condition effects pick changes up on the next play.")
	p("================================")
}

// FormatForce renders a force value with its share of the maximum.
func FormatForce(v, max int16) string {
	pct := float64(v) * 100 / float64(max)
	return fmt.Sprintf("%d (%.1f%%)", v, pct)
}

// FormatDirection renders the stored direction scalar.
func FormatDirection(v int16) string {
	switch {
	case v == 0:
		return "Center"
	case v > 0:
		return fmt.Sprintf("Right (%d)", v)
	default:
		return fmt.Sprintf("Left (%d)", v)
	}
}

// FormatDuration renders a duration, with zero meaning infinite.
func FormatDuration(d time.Duration) string {
	if d == 0 {
		return "infinite"
	}
	return fmt.Sprintf("%dms", d.Milliseconds())
}

func formatButtons(bits uint32) string {
	if bits == 0 {
		return "none"
	}
	out := ""
	for i := 0; i < 32; i++ {
		if bits&(1<<uint(i)) != 0 {
			if out != "" {
				out += " "
			}
			out += fmt.Sprint(i)
		}
	}
	return out
}
