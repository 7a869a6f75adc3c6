package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/wheelworks/ffbctl/internal/config"
	"github.com/wheelworks/ffbctl/internal/console"
	"github.com/wheelworks/ffbctl/internal/ffb"
	"github.com/wheelworks/ffbctl/internal/logging"
	"github.com/wheelworks/ffbctl/internal/wheel"
)

var errQuit = errors.New("quit requested")

func main() {
	cfgPath := flag.String("config", "ffbctl.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger, logCloser, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM, syscall.SIGINT,
	)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("exiting on fatal error", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	dev, err := wheel.Open(cfg.Device.VendorID, cfg.Device.ProductID, logger)
	if err != nil {
		return err
	}

	sess := ffb.NewSession(dev, logger)
	defer sess.Release()

	if err := sess.Acquire(); err != nil {
		// Not fatal: the play and telemetry paths reacquire on demand.
		logger.Warn("initial acquire failed, will retry", slog.Any("error", err))
	}

	reg, err := ffb.BuildAll(sess, ffb.DefaultCatalog(), logger)
	if err != nil {
		return err
	}
	defer reg.DestroyAll()

	ctrl := ffb.NewController(sess, reg, ffb.Params{
		MaxForce:        cfg.Force.Max,
		Intensity:       cfg.Force.Intensity,
		Duration:        time.Duration(cfg.Force.DurationMS) * time.Millisecond,
		DurationMin:     time.Duration(cfg.Force.DurationMinMS) * time.Millisecond,
		DurationMax:     time.Duration(cfg.Force.DurationMaxMS) * time.Millisecond,
		DurationDefault: 2 * time.Second,
	}, logger)
	defer ctrl.StopAll()

	poller := ffb.NewPoller(sess, cfg.TelemetryInterval(), logger)

	stdin := int(os.Stdin.Fd())
	if oldState, err := term.MakeRaw(stdin); err != nil {
		logger.Warn("raw terminal mode unavailable", slog.Any("error", err))
	} else {
		defer term.Restore(stdin, oldState)
	}

	cmds := console.ReadCommands(ctx, os.Stdin)
	render := console.NewRenderer(os.Stdout)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return poller.Run(gctx) })
	g.Go(func() error {
		return controlLoop(gctx, cfg, ctrl, poller, render, cmds, logger)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errQuit) {
		return err
	}
	return nil
}

// controlLoop is the foreground control task: the only goroutine that
// mutates controller state. It consumes keyboard commands and
// refreshes the display on a fixed tick.
func controlLoop(
	ctx context.Context,
	cfg config.Config,
	ctrl *ffb.Controller,
	poller *ffb.Poller,
	render *console.Renderer,
	cmds <-chan console.Command,
	logger *slog.Logger,
) error {
	tick := time.NewTicker(cfg.ControlTick())
	defer tick.Stop()

	showingHelp := false
	durationStep := time.Duration(cfg.Force.DurationStepMS) * time.Millisecond

	redraw := func() {
		if showingHelp {
			render.Help()
			return
		}
		tel, fresh := poller.Latest()
		render.Status(ctrl.Snapshot(), ctrl.EffectNames(), tel, fresh)
	}
	redraw()

	for {
		select {
		case <-ctx.Done():
			return nil

		case cmd, ok := <-cmds:
			if !ok {
				return nil
			}
			switch cmd {
			case console.CmdQuit:
				if showingHelp {
					showingHelp = false
					break
				}
				return errQuit
			case console.CmdHelp:
				showingHelp = !showingHelp
			case console.CmdToggle:
				if ctrl.Playing() {
					ctrl.Stop()
				} else if err := ctrl.Play(); err != nil {
					// Recoverable: surfaced and retried on the next
					// user action.
					logger.Warn("play failed", slog.Any("error", err))
				}
			case console.CmdStopAll:
				ctrl.StopAll()
			case console.CmdNext:
				ctrl.Next()
			case console.CmdPrevious:
				ctrl.Previous()
			case console.CmdIntensityUp:
				ctrl.AdjustIntensity(cfg.Force.IntensityStep)
			case console.CmdIntensityDown:
				ctrl.AdjustIntensity(-cfg.Force.IntensityStep)
			case console.CmdDirectionRight:
				ctrl.AdjustDirection(cfg.Force.DirectionStep)
			case console.CmdDirectionLeft:
				ctrl.AdjustDirection(-cfg.Force.DirectionStep)
			case console.CmdDurationUp:
				ctrl.AdjustDuration(durationStep)
			case console.CmdDurationDown:
				ctrl.AdjustDuration(-durationStep)
			}
			redraw()

		case <-tick.C:
			redraw()
		}
	}
}
