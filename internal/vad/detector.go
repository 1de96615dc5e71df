// Package vad provides voice activity detection: frame-level detectors
// (Silero via ONNX Runtime, or a pure-Go energy detector) and a Stream
// that re-chunks captured audio into detector frames and keeps only the
// parts of a recording that contain speech.
package vad

import (
	"fmt"
)

// Detector scores fixed-size frames of mono audio.
type Detector interface {
	// SampleRate is the rate, in Hz, frames must be sampled at.
	SampleRate() int
	// FrameSize is the exact number of samples Probability accepts.
	FrameSize() int
	// Probability returns the speech probability of one frame in [0, 1].
	Probability(frame []float32) (float32, error)
	// Reset clears any state carried between frames.
	Reset()
	// Close releases detector resources.
	Close() error
}

// FrameSizeFor returns the frame length the Silero model expects at the
// given sample rate.
func FrameSizeFor(sampleRate int) (int, error) {
	switch sampleRate {
	case 8000:
		return 256, nil
	case 16000:
		return 512, nil
	default:
		return 0, fmt.Errorf("vad: unsupported sample rate %d (must be 8000 or 16000)", sampleRate)
	}
}

// Config selects and tunes a detector engine.
type Config struct {
	Engine          string // "silero" or "energy"
	SampleRate      int
	ModelPath       string
	OnnxRuntimePath string
	EnergyLevel     float64
}

// New builds the detector named by cfg.Engine.
func New(cfg Config) (Detector, error) {
	switch cfg.Engine {
	case "silero", "":
		return NewSilero(SileroConfig{
			ModelPath:       cfg.ModelPath,
			OnnxRuntimePath: cfg.OnnxRuntimePath,
			SampleRate:      cfg.SampleRate,
		})
	case "energy":
		return NewEnergy(cfg.SampleRate, cfg.EnergyLevel)
	default:
		return nil, fmt.Errorf("vad: unknown engine %q (supported: silero, energy)", cfg.Engine)
	}
}
