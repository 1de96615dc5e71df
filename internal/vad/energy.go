package vad

import (
	"fmt"
	"math"
)

// Energy is a pure-Go detector that maps frame RMS to a probability:
// min(1, rms/level). It needs no model and is stateless.
type Energy struct {
	sampleRate int
	frameSize  int
	level      float64
}

// NewEnergy creates an energy detector. level is the RMS that maps to a
// probability of 1.
func NewEnergy(sampleRate int, level float64) (*Energy, error) {
	frameSize, err := FrameSizeFor(sampleRate)
	if err != nil {
		return nil, err
	}
	if level <= 0 {
		return nil, fmt.Errorf("vad: energy level must be > 0, got %g", level)
	}
	return &Energy{sampleRate: sampleRate, frameSize: frameSize, level: level}, nil
}

func (e *Energy) SampleRate() int { return e.sampleRate }

func (e *Energy) FrameSize() int { return e.frameSize }

// Probability returns the normalized RMS energy of the frame.
func (e *Energy) Probability(frame []float32) (float32, error) {
	if len(frame) != e.frameSize {
		return 0, fmt.Errorf("vad: expected %d samples, got %d", e.frameSize, len(frame))
	}
	p := rms(frame) / e.level
	if p > 1 {
		p = 1
	}
	return float32(p), nil
}

func (e *Energy) Reset() {}

func (e *Energy) Close() error { return nil }

func rms(frame []float32) float64 {
	if len(frame) == 0 {
		return 0
	}
	var sum float64
	for _, s := range frame {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(frame)))
}
