// Package notify shows desktop notifications through beeep.
package notify

import (
	"log/slog"

	"github.com/gen2brain/beeep"
)

const title = "speakgo"

// send is replaced in tests.
var send = func(title, message string) error {
	return beeep.Notify(title, message, "")
}

func init() {
	beeep.AppName = title
}

// Notifier posts desktop notifications. A disabled Notifier does nothing.
type Notifier struct {
	enabled bool
}

// New creates a Notifier.
func New(enabled bool) *Notifier {
	return &Notifier{enabled: enabled}
}

// Enabled reports whether notifications are shown.
func (n *Notifier) Enabled() bool {
	return n != nil && n.enabled
}

// Notify shows message. Failures are logged, never returned.
func (n *Notifier) Notify(message string) {
	if !n.Enabled() {
		return
	}
	if err := send(title, message); err != nil {
		slog.Debug("[notify] notification failed", "error", err)
	}
}
