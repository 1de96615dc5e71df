// Command speakgo is a push-to-talk dictation daemon. It records from the
// microphone while a global hotkey is active, drops silence with a voice
// activity detector, compresses the result with ffmpeg and sends it to an
// OpenAI-compatible transcription server.
//
// Usage:
//
//	speakgo [run]            start the hotkey daemon
//	speakgo record -d 5      record once and print the transcript
//	speakgo devices          list capture devices
//	speakgo config init      write the default config file
//	speakgo models download  fetch the Silero VAD model
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/chaz8081/speakgo/internal/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	os.Exit(exitCode(err))
}

// exitCode maps a command error to the process exit status: 130 for an
// interrupt, 1 for any other failure.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, context.Canceled):
		fmt.Fprintln(os.Stderr, "\nInterrupted by user")
		return 130
	default:
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
}

// app holds state shared by all subcommands.
type app struct {
	configPath string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	a := &app{}
	ov := &overrides{}

	root := &cobra.Command{
		Use:           "speakgo",
		Short:         "Hotkey dictation with voice activity filtering and remote transcription",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			a.setupLogging("info")
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runDaemon(cmd, ov)
		},
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "path to config file (default: "+config.DefaultConfigPath()+")")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")
	ov.register(root)

	root.AddCommand(
		a.newRunCmd(),
		a.newRecordCmd(),
		a.newDevicesCmd(),
		a.newConfigCmd(),
		a.newModelsCmd(),
		a.newDebugCmd(),
	)
	return root
}

// setupLogging installs a text slog handler on stderr. --verbose always
// wins over the configured level.
func (a *app) setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	if a.verbose {
		lvl = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
}

// loadConfig loads the config from --config, or falls back to the default
// config path, or uses built-in defaults. Logging is reconfigured to the
// loaded level.
func (a *app) loadConfig() (*config.Config, error) {
	cfg, err := a.readConfig()
	if err != nil {
		return nil, err
	}
	a.setupLogging(cfg.LogLevel)
	return cfg, nil
}

func (a *app) readConfig() (*config.Config, error) {
	if a.configPath != "" {
		cfg, err := config.Load(a.configPath)
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		slog.Debug("config loaded", "path", a.configPath)
		return cfg, nil
	}

	defaultPath := config.DefaultConfigPath()
	if _, err := os.Stat(defaultPath); err == nil {
		cfg, err := config.Load(defaultPath)
		if err != nil {
			return nil, fmt.Errorf("config: loading %s: %w", defaultPath, err)
		}
		slog.Debug("config loaded", "path", defaultPath)
		return cfg, nil
	}

	slog.Debug("no config file found, using defaults")
	return config.Default(), nil
}
