package dictation

import (
	"errors"
	"log/slog"

	"github.com/chaz8081/speakgo/internal/inject"
	"github.com/chaz8081/speakgo/internal/notify"
	"github.com/chaz8081/speakgo/internal/transcribe"
)

// Handler receives the outcome of each queued recording. Calls come from a
// single worker goroutine.
type Handler interface {
	HandleResult(res *transcribe.Result)
	HandleError(err error)
}

// OutputHandler logs transcripts, delivers them through an injector and
// announces them with a desktop notification.
type OutputHandler struct {
	Injector inject.TextInjector // nil = log only
	Method   string              // used in notification text
	Notifier *notify.Notifier
}

// HandleResult implements Handler.
func (h *OutputHandler) HandleResult(res *transcribe.Result) {
	if res == nil || res.Text == "" {
		slog.Info("[dictation] no speech detected")
		h.Notifier.Notify("No speech detected")
		return
	}

	slog.Info("[dictation] transcription", "text", res.Text, "language", res.Language)

	if h.Injector == nil {
		return
	}
	if err := h.Injector.Inject(res.Text); err != nil {
		slog.Error("[dictation] text output failed", "method", h.Method, "error", err)
		h.Notifier.Notify("Could not output transcription: " + err.Error())
		return
	}

	switch h.Method {
	case "copy":
		h.Notifier.Notify("Transcription copied to clipboard")
	case "paste", "type":
		h.Notifier.Notify("Transcription inserted")
	default:
		h.Notifier.Notify("Transcription ready")
	}
}

// HandleError implements Handler. Empty and too-short recordings are
// routine and only logged.
func (h *OutputHandler) HandleError(err error) {
	switch {
	case errors.Is(err, ErrNoAudio):
		slog.Info("[dictation] no speech captured, skipping")
	case errors.Is(err, ErrTooShort):
		slog.Info("[dictation] recording too short, skipping", "error", err)
	default:
		slog.Error("[dictation] transcription failed", "error", err)
		h.Notifier.Notify("Transcription failed: " + err.Error())
	}
}
