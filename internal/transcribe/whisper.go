package transcribe

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	whisper "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/chaz8081/speakgo/internal/audio"
)

// whisper.cpp models expect 16 kHz mono input.
const whisperRate = 16000

// WhisperTranscriber wraps a whisper.cpp model for offline speech-to-text.
type WhisperTranscriber struct {
	mu       sync.Mutex
	model    whisper.Model
	language string
}

// NewWhisperTranscriber loads a whisper model from the given path.
// The caller must call Close() when done.
func NewWhisperTranscriber(modelPath, language string) (*WhisperTranscriber, error) {
	model, err := whisper.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("transcribe: load whisper model %q: %w", modelPath, err)
	}
	return &WhisperTranscriber{model: model, language: language}, nil
}

// Close releases the whisper model resources.
func (t *WhisperTranscriber) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.model != nil {
		err := t.model.Close()
		t.model = nil
		return err
	}
	return nil
}

// Transcribe reads a WAV file, resamples it to 16 kHz and transcribes it.
func (t *WhisperTranscriber) Transcribe(ctx context.Context, path string) (*Result, error) {
	samples, rate, err := audio.ReadWAV(path)
	if err != nil {
		return nil, fmt.Errorf("transcribe: %w", err)
	}
	samples = audio.Resample(samples, rate, whisperRate)

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("transcribe: %w", err)
	}

	text, lang, err := t.Process(samples)
	if err != nil {
		return nil, err
	}
	return &Result{
		Text:     text,
		Language: lang,
		Duration: time.Duration(len(samples)) * time.Second / whisperRate,
	}, nil
}

// Process transcribes mono 16kHz float32 audio samples to text and returns
// the detected language.
func (t *WhisperTranscriber) Process(samples []float32) (string, string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.model == nil {
		return "", "", fmt.Errorf("transcribe: whisper model closed")
	}

	ctx, err := t.model.NewContext()
	if err != nil {
		return "", "", fmt.Errorf("transcribe: create context: %w", err)
	}
	if t.language != "" {
		if err := ctx.SetLanguage(t.language); err != nil {
			return "", "", fmt.Errorf("transcribe: set language %q: %w", t.language, err)
		}
	}

	if err := ctx.Process(samples, nil, nil, nil); err != nil {
		return "", "", fmt.Errorf("transcribe: process: %w", err)
	}

	var segments []string
	for {
		seg, err := ctx.NextSegment()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", "", fmt.Errorf("transcribe: next segment: %w", err)
		}
		segments = append(segments, seg.Text)
	}

	return strings.TrimSpace(strings.Join(segments, " ")), ctx.DetectedLanguage(), nil
}
