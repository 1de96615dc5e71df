package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/chaz8081/speakgo/internal/audio"
	"github.com/chaz8081/speakgo/internal/config"
	"github.com/chaz8081/speakgo/internal/dictation"
	"github.com/chaz8081/speakgo/internal/hotkey"
	"github.com/chaz8081/speakgo/internal/inject"
	"github.com/chaz8081/speakgo/internal/instance"
	"github.com/chaz8081/speakgo/internal/notify"
)

func (a *app) newRunCmd() *cobra.Command {
	ov := &overrides{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the hotkey dictation daemon (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runDaemon(cmd, ov)
		},
	}
	ov.register(cmd)
	return cmd
}

func (a *app) runDaemon(cmd *cobra.Command, ov *overrides) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	ov.apply(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}

	lock, err := instance.Acquire(cfg.Instance.Name)
	if errors.Is(err, instance.ErrAlreadyRunning) {
		return fmt.Errorf("speakgo is already running (lock %q)", cfg.Instance.Name)
	}
	if err != nil {
		return err
	}
	defer lock.Release()

	printBanner(cmd, cfg)

	comps, err := buildComponents(cfg, daemonOptions)
	if err != nil {
		return err
	}
	defer comps.Close()

	recorder, err := audio.NewRecorder(cfg.Audio.SampleRate, cfg.Audio.Channels, cfg.Audio.Device)
	if err != nil {
		return fmt.Errorf("initializing audio recorder: %w\n\nEnsure microphone access is granted to this terminal", err)
	}
	defer recorder.Close()

	injector, err := inject.NewInjector(cfg.Inject.Method)
	if err != nil {
		return err
	}
	notifier := notify.New(cfg.Notify.Enabled)
	handler := &dictation.OutputHandler{
		Injector: injector,
		Method:   cfg.Inject.Method,
		Notifier: notifier,
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	session, err := dictation.NewSession(ctx, recorder, comps.pipeline, handler, comps.sessionConfig(cfg))
	if err != nil {
		return err
	}
	defer session.Close()

	listener := hotkey.NewListener(cfg.Hotkey.Keys, cfg.Hotkey.Mode, cfg.Hotkey.CancelKeys)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		listener.Start()
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		listener.Stop()
		return nil
	})
	g.Go(func() error {
		// The listener closing its channel ends the daemon too.
		defer cancel()
		return session.Run(gctx, listener.Events())
	})
	if comps.provider != nil {
		g.Go(func() error {
			return comps.provider.Serve(gctx, cfg.Metrics.Listen)
		})
	}

	slog.Info("Ready! Press " + strings.Join(cfg.Hotkey.Keys, "+") + " to dictate. Ctrl+C to quit.")
	notifier.Notify("Ready to dictate")

	err = g.Wait()
	slog.Info("shutting down...")
	if cerr := session.Close(); cerr != nil && err == nil {
		err = cerr
	}
	slog.Info("Goodbye!")
	return err
}

// printBanner displays the startup configuration summary.
func printBanner(cmd *cobra.Command, cfg *config.Config) {
	out := cmd.OutOrStdout()
	vadState := "off"
	if cfg.VAD.Enabled {
		vadState = fmt.Sprintf("%s (threshold %.2f)", cfg.VAD.Engine, cfg.VAD.Threshold)
	}
	backend := cfg.Transcribe.Backend
	if backend == "remote" {
		backend = fmt.Sprintf("%s (%s)", cfg.API.URL, cfg.API.Model)
	}

	fmt.Fprintln(out, "=== speakgo ===")
	fmt.Fprintf(out, "  Backend: %s\n", backend)
	fmt.Fprintf(out, "  Hotkey:  %s (%s mode)\n", strings.Join(cfg.Hotkey.Keys, "+"), cfg.Hotkey.Mode)
	fmt.Fprintf(out, "  Audio:   %dHz, %dch\n", cfg.Audio.SampleRate, cfg.Audio.Channels)
	fmt.Fprintf(out, "  VAD:     %s\n", vadState)
	fmt.Fprintf(out, "  Output:  %s\n", cfg.Inject.Method)
	fmt.Fprintf(out, "  Log:     %s\n", cfg.LogLevel)
	fmt.Fprintln(out, "===============")
}
