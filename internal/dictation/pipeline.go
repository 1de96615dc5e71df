// Package dictation ties capture, voice activity filtering, compression,
// transcription and output together.
//
// A Session owns the recording lifecycle and its worker goroutines; a
// Pipeline turns one finished Recording into a transcript.
package dictation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/chaz8081/speakgo/internal/audio"
	"github.com/chaz8081/speakgo/internal/compress"
	"github.com/chaz8081/speakgo/internal/observe"
	"github.com/chaz8081/speakgo/internal/transcribe"
	"github.com/chaz8081/speakgo/internal/vad"
	"github.com/chaz8081/speakgo/internal/workdir"
)

var (
	// ErrNoAudio means nothing was captured, or the VAD kept no speech.
	ErrNoAudio = errors.New("dictation: no audio captured")
	// ErrTooShort means the kept audio is below the minimum duration.
	ErrTooShort = errors.New("dictation: recording too short")
)

// Recording is one finished capture, ready for transcription.
type Recording struct {
	Samples    []float32
	SampleRate int
	Channels   int
	// VAD holds the detector counters; nil when VAD was off.
	VAD *vad.Stats
}

// Duration returns the length of the captured audio.
func (r Recording) Duration() time.Duration {
	if r.SampleRate <= 0 || r.Channels <= 0 {
		return 0
	}
	frames := len(r.Samples) / r.Channels
	return time.Duration(frames) * time.Second / time.Duration(r.SampleRate)
}

// Compressor encodes a WAV file for upload.
type Compressor interface {
	Compress(ctx context.Context, in, out string) (compress.Stats, error)
}

// healthChecker is implemented by backends that can be warmed up.
type healthChecker interface {
	CheckHealth(ctx context.Context) bool
}

// PipelineConfig tunes a Pipeline.
type PipelineConfig struct {
	MinDuration time.Duration
	Compress    bool // encode to Opus before transcription
	Keep        bool // leave temp files on disk
}

// Pipeline writes a recording to disk, optionally compresses it, and
// transcribes it.
type Pipeline struct {
	tr      transcribe.Transcriber
	comp    Compressor
	dir     *workdir.Dir
	metrics *observe.Metrics
	cfg     PipelineConfig
}

// NewPipeline creates a Pipeline. comp may be nil when cfg.Compress is
// false; metrics may be nil.
func NewPipeline(tr transcribe.Transcriber, comp Compressor, dir *workdir.Dir, metrics *observe.Metrics, cfg PipelineConfig) (*Pipeline, error) {
	if tr == nil {
		return nil, fmt.Errorf("dictation: nil transcriber")
	}
	if dir == nil {
		return nil, fmt.Errorf("dictation: nil work dir")
	}
	if cfg.Compress && comp == nil {
		return nil, fmt.Errorf("dictation: compression enabled without a compressor")
	}
	if metrics == nil {
		metrics = observe.Discard()
	}
	return &Pipeline{tr: tr, comp: comp, dir: dir, metrics: metrics, cfg: cfg}, nil
}

// Process transcribes rec. ErrNoAudio and ErrTooShort are returned before
// anything touches the disk.
func (p *Pipeline) Process(ctx context.Context, rec Recording) (*transcribe.Result, error) {
	if rec.VAD != nil {
		logVADStats(*rec.VAD)
		p.metrics.RecordVADFrames(ctx, rec.VAD.SpeechFrames, rec.VAD.TotalFrames)
	}

	if len(rec.Samples) == 0 {
		p.metrics.RecordRecording(ctx, observe.StatusEmpty)
		return nil, ErrNoAudio
	}
	dur := rec.Duration()
	if dur < p.cfg.MinDuration {
		p.metrics.RecordRecording(ctx, observe.StatusTooShort)
		return nil, fmt.Errorf("%w (%.1fs < %.1fs)", ErrTooShort, dur.Seconds(), p.cfg.MinDuration.Seconds())
	}

	slog.Info("[dictation] captured audio, transcribing", "duration", dur.Round(100*time.Millisecond))
	p.metrics.RecordCaptured(ctx, dur)

	res, err := p.transcribe(ctx, rec)
	if err != nil {
		p.metrics.RecordRecording(ctx, observe.StatusError)
		return nil, err
	}
	p.metrics.RecordRecording(ctx, observe.StatusOK)
	return res, nil
}

func (p *Pipeline) transcribe(ctx context.Context, rec Recording) (*transcribe.Result, error) {
	names := p.dir.Names("wav", "opus")
	wavPath, opusPath := names[0], names[1]

	defer func() {
		if p.cfg.Keep {
			if p.cfg.Compress {
				slog.Info("[files] keeping temp files", "wav", wavPath, "compressed", opusPath)
			} else {
				slog.Info("[files] keeping temp file", "wav", wavPath)
			}
			return
		}
		workdir.Remove(wavPath, opusPath)
	}()

	if err := audio.WriteWAV(wavPath, rec.Samples, rec.SampleRate, rec.Channels); err != nil {
		return nil, fmt.Errorf("dictation: %w", err)
	}

	upload := wavPath
	if p.cfg.Compress {
		stats, err := p.comp.Compress(ctx, wavPath, opusPath)
		if err != nil {
			return nil, fmt.Errorf("dictation: %w", err)
		}
		p.metrics.RecordCompression(ctx, stats.Ratio())
		upload = opusPath
	}

	if hc, ok := p.tr.(healthChecker); ok && !hc.CheckHealth(ctx) {
		slog.Warn("[API] health check failed, sending anyway")
	}

	start := time.Now()
	res, err := p.tr.Transcribe(ctx, upload)
	elapsed := time.Since(start)
	p.metrics.RecordTranscription(ctx, elapsed, errorKind(err))
	if err != nil {
		return nil, err
	}

	slog.Info("[dictation] transcribed", "elapsed", elapsed.Round(time.Millisecond), "chars", len(res.Text))
	return res, nil
}

func logVADStats(s vad.Stats) {
	slog.Info("[VAD] statistics",
		"speech_frames", s.SpeechFrames,
		"total_frames", s.TotalFrames,
		"ratio", fmt.Sprintf("%.1f%%", s.SpeechRatio()*100))
}

// errorKind labels a transcription error for metrics.
func errorKind(err error) string {
	var se *transcribe.StatusError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, transcribe.ErrUnavailable):
		return "unavailable"
	case errors.Is(err, transcribe.ErrTimeout):
		return "timeout"
	case errors.As(err, &se):
		return "status"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	default:
		return "other"
	}
}
