package console

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestKeyMapping(t *testing.T) {
	cases := []struct {
		key  byte
		want Command
	}{
		{' ', CmdToggle},
		{'n', CmdNext},
		{'P', CmdPrevious},
		{'s', CmdStopAll},
		{'+', CmdIntensityUp},
		{'=', CmdIntensityUp},
		{'_', CmdIntensityDown},
		{'[', CmdDirectionLeft},
		{'.', CmdDurationUp},
		{'h', CmdHelp},
		{0x1b, CmdQuit},
		{'q', CmdQuit},
	}
	for _, tc := range cases {
		got, ok := mapKey(tc.key)
		if !ok || got != tc.want {
			t.Fatalf("mapKey(%q) = %v,%v, want %v", tc.key, got, ok, tc.want)
		}
	}
	if _, ok := mapKey('x'); ok {
		t.Fatal("unbound key produced a command")
	}
}

func TestReadCommandsIgnoresUnboundKeys(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := ReadCommands(ctx, strings.NewReader("xn q"))

	want := []Command{CmdNext, CmdToggle, CmdQuit}
	for _, w := range want {
		select {
		case got, ok := <-ch:
			if !ok {
				t.Fatal("channel closed early")
			}
			if got != w {
				t.Fatalf("command = %v, want %v", got, w)
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for command")
		}
	}
}

func TestFormatters(t *testing.T) {
	if got := FormatForce(16000, 32767); got != "16000 (48.8%)" {
		t.Fatalf("FormatForce = %q", got)
	}
	if got := FormatDirection(0); got != "Center" {
		t.Fatalf("FormatDirection(0) = %q", got)
	}
	if got := FormatDirection(-200); got != "Left (-200)" {
		t.Fatalf("FormatDirection(-200) = %q", got)
	}
	if got := FormatDuration(0); got != "infinite" {
		t.Fatalf("FormatDuration(0) = %q", got)
	}
	if got := FormatDuration(2 * time.Second); got != "2000ms" {
		t.Fatalf("FormatDuration(2s) = %q", got)
	}
	if got := formatButtons(0); got != "none" {
		t.Fatalf("formatButtons(0) = %q", got)
	}
	if got := formatButtons(0b1001); got != "0 3" {
		t.Fatalf("formatButtons(0b1001) = %q", got)
	}
}
