package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/chaz8081/speakgo/internal/audio"
	"github.com/chaz8081/speakgo/internal/dictation"
)

const ruleWidth = 70

func (a *app) newRecordCmd() *cobra.Command {
	ov := &overrides{}
	var seconds float64

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record once for a fixed duration and print the transcript",
		Example: `  speakgo record --duration 5
  speakgo record -d 10 --device 1 --language en
  speakgo record --vad --keep-files`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.record(cmd, ov, time.Duration(seconds*float64(time.Second)))
		},
	}
	cmd.Flags().Float64VarP(&seconds, "duration", "d", 5, "recording duration in seconds")
	ov.register(cmd)
	return cmd
}

func (a *app) record(cmd *cobra.Command, ov *overrides, d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("duration must be > 0")
	}

	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	ov.apply(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}

	comps, err := buildComponents(cfg, recordOptions)
	if err != nil {
		return err
	}
	defer comps.Close()

	recorder, err := audio.NewRecorder(cfg.Audio.SampleRate, cfg.Audio.Channels, cfg.Audio.Device)
	if err != nil {
		return fmt.Errorf("initializing audio recorder: %w", err)
	}
	defer recorder.Close()

	ctx := cmd.Context()
	session, err := dictation.NewSession(ctx, recorder, comps.pipeline, &dictation.OutputHandler{}, comps.sessionConfig(cfg))
	if err != nil {
		return err
	}
	defer session.Close()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\nRecording for %.1f seconds...\n", d.Seconds())
	fmt.Fprintln(out, "Speak now!")
	fmt.Fprintln(out)

	res, err := session.Record(ctx, d)
	switch {
	case errors.Is(err, dictation.ErrNoAudio), errors.Is(err, dictation.ErrTooShort):
		fmt.Fprintf(out, "No speech detected (%v)\n", err)
		return nil
	case err != nil:
		return err
	}

	printTranscript(cmd, res.Text)
	return nil
}

// printTranscript writes text between horizontal rules.
func printTranscript(cmd *cobra.Command, text string) {
	out := cmd.OutOrStdout()
	rule := strings.Repeat("=", ruleWidth)
	fmt.Fprintln(out, rule)
	fmt.Fprintln(out, "TRANSCRIPTION RESULT")
	fmt.Fprintln(out, rule)
	fmt.Fprintf(out, "\n%s\n\n", text)
	fmt.Fprintln(out, rule)
}
