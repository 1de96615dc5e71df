// Package transcribe provides speech-to-text backends.
//
// Supported backends:
//   - remote: an OpenAI-compatible HTTP endpoint such as speaches.ai (default)
//   - whisper: whisper.cpp via Go bindings, fully offline
package transcribe

import (
	"context"
	"fmt"
	"time"

	"github.com/chaz8081/speakgo/internal/config"
)

// Result is a finished transcription.
type Result struct {
	Text     string
	Language string        // as reported by the backend; may be empty
	Duration time.Duration // audio duration as reported by the backend; may be zero
}

// Transcriber converts an audio file to text.
type Transcriber interface {
	// Transcribe transcribes the audio file at path.
	Transcribe(ctx context.Context, path string) (*Result, error)
	// Close releases backend resources.
	Close() error
}

// New creates a Transcriber based on the configured backend.
func New(cfg *config.Config) (Transcriber, error) {
	switch cfg.Transcribe.Backend {
	case "remote", "":
		return NewRemote(RemoteConfig{
			BaseURL:    cfg.API.URL,
			Model:      cfg.API.Model,
			Language:   cfg.API.Language,
			APIKey:     cfg.API.Key,
			Timeout:    cfg.API.Timeout,
			MaxRetries: cfg.API.MaxRetries,
			RetryDelay: cfg.API.RetryDelay,
		})
	case "whisper":
		return NewWhisperTranscriber(cfg.Transcribe.WhisperModelPath, cfg.API.Language)
	default:
		return nil, fmt.Errorf("transcribe: unknown backend %q (supported: remote, whisper)", cfg.Transcribe.Backend)
	}
}

// NeedsCompression reports whether backend expects Opus-compressed input.
// The local whisper backend reads the WAV directly.
func NeedsCompression(backend string) bool {
	return backend != "whisper"
}
