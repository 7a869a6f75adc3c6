package console

import (
	"context"
	"io"
)

// Command is one operator action decoded from the keyboard.
type Command int

const (
	CmdToggle Command = iota // play/stop the selected effect
	CmdStopAll
	CmdNext
	CmdPrevious
	CmdIntensityUp
	CmdIntensityDown
	CmdDirectionLeft
	CmdDirectionRight
	CmdDurationUp
	CmdDurationDown
	CmdHelp
	CmdQuit
)

// ReadCommands turns raw key presses into a command channel. The
// reader blocks on the terminal; when the process shuts down the
// goroutine goes with it, so cancellation only guards the send side.
func ReadCommands(ctx context.Context, r io.Reader) <-chan Command {
	ch := make(chan Command)
	go func() {
		defer close(ch)
		buf := make([]byte, 1)
		for {
			n, err := r.Read(buf)
			if err != nil {
				return
			}
			if n == 0 {
				continue
			}
			cmd, ok := mapKey(buf[0])
			if !ok {
				continue
			}
			select {
			case ch <- cmd:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch
}

func mapKey(b byte) (Command, bool) {
	switch b {
	case ' ':
		return CmdToggle, true
	case 's', 'S':
		return CmdStopAll, true
	case 'n', 'N':
		return CmdNext, true
	case 'p', 'P':
		return CmdPrevious, true
	case '+', '=':
		return CmdIntensityUp, true
	case '-', '_':
		return CmdIntensityDown, true
	case '[':
		return CmdDirectionLeft, true
	case ']':
		return CmdDirectionRight, true
	case ',':
		return CmdDurationDown, true
	case '.':
		return CmdDurationUp, true
	case 'h', 'H':
		return CmdHelp, true
	case 'q', 'Q', 0x1b: // ESC
		return CmdQuit, true
	}
	return 0, false
}
