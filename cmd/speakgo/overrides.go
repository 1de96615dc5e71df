package main

import (
	"github.com/spf13/cobra"

	"github.com/chaz8081/speakgo/internal/config"
)

// overrides are command-line values that replace loaded config settings.
// Only flags the user actually set are applied.
type overrides struct {
	vad          bool
	vadThreshold float64
	keepFiles    bool
	apiURL       string
	model        string
	device       int
	sampleRate   uint32
	language     string
}

func (o *overrides) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.BoolVar(&o.vad, "vad", false, "filter silence with voice activity detection")
	f.Float64Var(&o.vadThreshold, "vad-threshold", 0.5, "speech probability threshold (0-1)")
	f.BoolVar(&o.keepFiles, "keep-files", false, "keep temporary audio files for debugging")
	f.StringVar(&o.apiURL, "api-url", "", "transcription API base URL")
	f.StringVar(&o.model, "model", "", "transcription model name")
	f.IntVar(&o.device, "device", -1, "capture device index (see 'speakgo devices')")
	f.Uint32Var(&o.sampleRate, "sample-rate", 44100, "recording sample rate in Hz")
	f.StringVar(&o.language, "language", "", "language code, e.g. en (default: auto-detect)")
}

func (o *overrides) apply(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	if f.Changed("vad") {
		cfg.VAD.Enabled = o.vad
	}
	if f.Changed("vad-threshold") {
		cfg.VAD.Threshold = o.vadThreshold
	}
	if f.Changed("keep-files") {
		cfg.Files.Keep = o.keepFiles
	}
	if f.Changed("api-url") {
		cfg.API.URL = o.apiURL
	}
	if f.Changed("model") {
		cfg.API.Model = o.model
	}
	if f.Changed("device") {
		cfg.Audio.Device = o.device
	}
	if f.Changed("sample-rate") {
		cfg.Audio.SampleRate = o.sampleRate
	}
	if f.Changed("language") {
		cfg.API.Language = o.language
	}
}
