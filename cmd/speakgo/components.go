package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/chaz8081/speakgo/internal/compress"
	"github.com/chaz8081/speakgo/internal/config"
	"github.com/chaz8081/speakgo/internal/dictation"
	"github.com/chaz8081/speakgo/internal/observe"
	"github.com/chaz8081/speakgo/internal/transcribe"
	"github.com/chaz8081/speakgo/internal/vad"
	"github.com/chaz8081/speakgo/internal/workdir"
)

// components is the transcription stack shared by run and record.
type components struct {
	transcriber transcribe.Transcriber
	detector    vad.Detector // nil when VAD is off
	pipeline    *dictation.Pipeline
	metrics     *observe.Metrics
	provider    *observe.Provider // nil when metrics are off
}

// buildOptions selects the daemon-only parts of buildComponents.
type buildOptions struct {
	// metrics starts the Prometheus bridge when metrics.listen is set.
	metrics bool
	// sweep removes stale speakgo_* files. Only a caller holding the
	// single-instance lock may set it; other processes share the directory.
	sweep bool
}

var (
	daemonOptions = buildOptions{metrics: true, sweep: true}
	recordOptions = buildOptions{}
)

// buildComponents wires transcription for cfg.
func buildComponents(cfg *config.Config, opts buildOptions) (*components, error) {
	c := &components{metrics: observe.Discard()}

	dir, err := workdir.New(cfg.Files.Dir)
	if err != nil {
		return nil, err
	}
	if opts.sweep && !cfg.Files.Keep {
		if _, err := dir.Sweep(); err != nil {
			slog.Warn("[files] sweeping stale temp files failed", "error", err)
		}
	}

	needCompress := transcribe.NeedsCompression(cfg.Transcribe.Backend)
	var comp *compress.Compressor
	if needCompress {
		comp = compress.New(compress.Options{
			FFmpegPath:  cfg.Compress.FFmpegPath,
			Bitrate:     cfg.Compress.Bitrate,
			SampleRate:  cfg.Compress.SampleRate,
			TrimSilence: cfg.Compress.TrimSilence,
		})
		if !comp.Available() {
			fmt.Fprintln(os.Stderr, compress.InstallHint())
			return nil, compress.ErrNotFound
		}
	}

	if opts.metrics && cfg.Metrics.Listen != "" {
		prov, err := observe.InitProvider()
		if err != nil {
			return nil, err
		}
		m, err := observe.NewMetrics(prov.MeterProvider())
		if err != nil {
			_ = prov.Shutdown(context.Background())
			return nil, err
		}
		c.provider, c.metrics = prov, m
	}

	if cfg.VAD.Enabled {
		if cfg.VAD.Engine == "silero" {
			if _, err := os.Stat(cfg.VAD.ModelPath); err != nil {
				c.Close()
				return nil, fmt.Errorf("vad model: %w\n\nRun 'speakgo models download' to fetch it", err)
			}
		}
		det, err := vad.New(vad.Config{
			Engine:          cfg.VAD.Engine,
			SampleRate:      cfg.VAD.SampleRate,
			ModelPath:       cfg.VAD.ModelPath,
			OnnxRuntimePath: cfg.VAD.OnnxRuntimePath,
			EnergyLevel:     cfg.VAD.EnergyLevel,
		})
		if err != nil {
			c.Close()
			return nil, err
		}
		c.detector = det
		slog.Info("[VAD] detector ready", "engine", cfg.VAD.Engine, "threshold", cfg.VAD.Threshold)
	}

	start := time.Now()
	tr, err := transcribe.New(cfg)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.transcriber = tr
	slog.Debug("transcriber ready", "backend", cfg.Transcribe.Backend, "elapsed", time.Since(start).Round(time.Millisecond))

	var pc dictation.Compressor
	if comp != nil {
		pc = comp
	}
	c.pipeline, err = dictation.NewPipeline(tr, pc, dir, c.metrics, dictation.PipelineConfig{
		MinDuration: cfg.Audio.MinDuration,
		Compress:    needCompress,
		Keep:        cfg.Files.Keep,
	})
	if err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

// sessionConfig derives the capture settings for a Session.
func (c *components) sessionConfig(cfg *config.Config) dictation.SessionConfig {
	return dictation.SessionConfig{
		SampleRate: int(cfg.Audio.SampleRate),
		Channels:   int(cfg.Audio.Channels),
		Detector:   c.detector,
		VAD: vad.StreamOptions{
			Threshold:  float32(cfg.VAD.Threshold),
			MinSilence: cfg.VAD.MinSilence,
		},
		Metrics: c.metrics,
	}
}

// Close releases everything buildComponents created.
func (c *components) Close() {
	if c.transcriber != nil {
		if err := c.transcriber.Close(); err != nil {
			slog.Warn("closing transcriber", "error", err)
		}
	}
	if c.detector != nil {
		if err := c.detector.Close(); err != nil {
			slog.Warn("[VAD] closing detector", "error", err)
		}
	}
	if c.provider != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := c.provider.Shutdown(ctx); err != nil {
			slog.Warn("[metrics] shutdown", "error", err)
		}
	}
}
