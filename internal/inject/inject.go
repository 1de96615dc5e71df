// Package inject delivers transcribed text to the user: onto the
// clipboard, pasted into the active application, or typed as keystrokes,
// all through robotgo.
package inject

import (
	"fmt"
	"runtime"
	"time"

	"github.com/go-vgo/robotgo"
)

// TextInjector delivers text somewhere the user can use it.
type TextInjector interface {
	Inject(text string) error
}

// Compile-time interface satisfaction check.
var _ TextInjector = (*Injector)(nil)

// robotgo entry points, replaced in tests.
var (
	readClipboard  = robotgo.ReadAll
	writeClipboard = robotgo.WriteAll
	keyTap         = func(key, modifier string) error { return robotgo.KeyTap(key, modifier) }
	typeText       = func(text string) { robotgo.Type(text) }
	sleep          = time.Sleep
)

// pasteDelay is how long paste waits for the clipboard to settle before the
// shortcut, and for the target application to read it before restoring.
const pasteDelay = 200 * time.Millisecond

// Injector handles copying, pasting or typing text.
type Injector struct {
	method string // "none", "copy", "paste" or "type"
}

// NewInjector creates an Injector with the given method.
func NewInjector(method string) (*Injector, error) {
	switch method {
	case "none", "copy", "paste", "type":
	default:
		return nil, fmt.Errorf("inject: unknown method %q (supported: none, copy, paste, type)", method)
	}
	return &Injector{method: method}, nil
}

// Method returns the configured output method.
func (inj *Injector) Method() string {
	return inj.method
}

// Inject sends text using the configured method. Empty text is a no-op.
func (inj *Injector) Inject(text string) error {
	if text == "" {
		return nil
	}

	switch inj.method {
	case "none":
		return nil
	case "copy":
		if err := writeClipboard(text); err != nil {
			return fmt.Errorf("inject: write to clipboard: %w", err)
		}
		return nil
	case "paste":
		return inj.paste(text)
	default: // "type"
		// Simulates individual keystrokes. Preserves clipboard contents
		// but is slower for long text.
		typeText(text)
		return nil
	}
}

// paste copies text to the clipboard, presses the platform paste shortcut
// and restores the previous clipboard contents.
func (inj *Injector) paste(text string) error {
	prev, _ := readClipboard()

	if err := writeClipboard(text); err != nil {
		return fmt.Errorf("inject: write to clipboard: %w", err)
	}

	sleep(pasteDelay)

	mod := pasteModifier()
	if err := keyTap("v", mod); err != nil {
		return fmt.Errorf("inject: key tap %s+v: %w", mod, err)
	}

	// The focused application handles the shortcut asynchronously.
	sleep(pasteDelay)

	// Restore previous clipboard (best effort)
	_ = writeClipboard(prev)

	return nil
}

func pasteModifier() string {
	if runtime.GOOS == "darwin" {
		return "cmd"
	}
	return "ctrl"
}
