package vad

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/chaz8081/speakgo/internal/audio"
)

// Decision is the outcome of the most recent scored block.
type Decision struct {
	Speech      bool
	Probability float32 // mean frame probability; 0 when nothing was scored
}

// Stats summarizes the frames scored since the last Reset.
type Stats struct {
	TotalFrames  int
	SpeechFrames int
}

// SpeechRatio returns SpeechFrames/TotalFrames, or 0 with no frames.
func (s Stats) SpeechRatio() float64 {
	if s.TotalFrames == 0 {
		return 0
	}
	return float64(s.SpeechFrames) / float64(s.TotalFrames)
}

// StreamOptions tunes how block decisions are merged.
type StreamOptions struct {
	// Threshold is the mean probability at or above which a block is speech.
	Threshold float32
	// MinSilence is how much trailing silence ends a speech segment.
	// Silence shorter than this is kept with the surrounding speech.
	MinSilence time.Duration
}

// Stream filters captured audio down to its speech. Chunks of any size are
// accumulated into blocks just large enough to yield at least one detector
// frame once resampled. Each block is scored as a whole and then either
// kept at the capture rate or dropped. Stream is safe for concurrent use.
type Stream struct {
	det        Detector
	inputRate  int
	threshold  float32
	minSilence time.Duration
	target     int // capture samples per block

	mu       sync.Mutex
	pending  []float32
	kept     [][]float32
	inSpeech bool
	silence  time.Duration
	stats    Stats
}

// NewStream wraps det for audio captured at inputRate Hz.
func NewStream(det Detector, inputRate int, opts StreamOptions) (*Stream, error) {
	if det == nil {
		return nil, fmt.Errorf("vad: nil detector")
	}
	if inputRate <= 0 {
		return nil, fmt.Errorf("vad: input rate must be > 0, got %d", inputRate)
	}
	if opts.Threshold < 0 || opts.Threshold > 1 {
		return nil, fmt.Errorf("vad: threshold must be between 0 and 1, got %g", opts.Threshold)
	}

	frame := det.FrameSize()
	rate := det.SampleRate()
	// Round up so a full block always resamples to >= frame samples.
	target := (frame*inputRate + rate - 1) / rate

	return &Stream{
		det:        det,
		inputRate:  inputRate,
		threshold:  opts.Threshold,
		minSilence: opts.MinSilence,
		target:     target,
	}, nil
}

// BlockSize returns the number of capture-rate samples scored together.
func (s *Stream) BlockSize() int {
	return s.target
}

// Write adds a chunk of capture-rate samples. Until a full block has
// accumulated it reports the current speech state with zero probability.
func (s *Stream) Write(chunk []float32) Decision {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending = append(s.pending, chunk...)
	if len(s.pending) < s.target {
		return Decision{Speech: s.inSpeech}
	}

	block := s.pending
	frames := audio.Resample(block, s.inputRate, s.det.SampleRate())
	size := s.det.FrameSize()
	n := len(frames) / size
	if n == 0 {
		// Cannot happen with the rounded-up target; keep waiting for input.
		return Decision{Speech: s.inSpeech}
	}
	s.pending = nil

	var sum float32
	for i := 0; i < n; i++ {
		p, err := s.det.Probability(frames[i*size : (i+1)*size])
		if err != nil {
			slog.Warn("[VAD] frame scoring failed, treating as silence", "error", err)
			p = 0
		}
		sum += p
	}
	avg := sum / float32(n)
	speech := avg >= s.threshold

	s.stats.TotalFrames += n
	switch {
	case speech:
		s.stats.SpeechFrames += n
		if !s.inSpeech {
			s.inSpeech = true
			slog.Debug("[VAD] speech started")
		}
		s.kept = append(s.kept, block)
		s.silence = 0
	case s.inSpeech:
		s.kept = append(s.kept, block)
		s.silence += s.duration(len(block))
		if s.silence >= s.minSilence {
			s.inSpeech = false
			s.silence = 0
			slog.Debug("[VAD] speech ended")
		}
	}

	return Decision{Speech: speech, Probability: avg}
}

// Flush settles the partial block left at the end of a capture: it is kept
// if the stream is inside a speech segment and dropped otherwise.
func (s *Stream) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.pending) > 0 && s.inSpeech {
		s.kept = append(s.kept, s.pending)
	}
	s.pending = nil
}

// Audio returns all kept audio concatenated in arrival order, or nil if
// no speech was kept.
func (s *Stream) Audio() []float32 {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := 0
	for _, b := range s.kept {
		total += len(b)
	}
	if total == 0 {
		return nil
	}
	out := make([]float32, 0, total)
	for _, b := range s.kept {
		out = append(out, b...)
	}
	return out
}

// InSpeech reports whether the stream is inside a speech segment.
func (s *Stream) InSpeech() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inSpeech
}

// Stats returns frame counters since the last Reset.
func (s *Stream) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Reset clears all buffered audio and counters and resets the detector.
func (s *Stream) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending = nil
	s.kept = nil
	s.inSpeech = false
	s.silence = 0
	s.stats = Stats{}
	s.det.Reset()
}

func (s *Stream) duration(samples int) time.Duration {
	return time.Duration(samples) * time.Second / time.Duration(s.inputRate)
}
