// Package hotkey provides a global hotkey listener using gohook.
// It supports "hold" mode (press to start, release to stop) and
// "toggle" mode (each press flips recording on or off), plus an optional
// cancel combo that discards the active recording.
package hotkey

import (
	"sync"

	hook "github.com/robotn/gohook"
)

// EventType identifies what the user asked for.
type EventType int

const (
	// EventStart signals that the hotkey was pressed in hold mode.
	EventStart EventType = iota
	// EventStop signals that the hotkey was released in hold mode.
	EventStop
	// EventToggle signals a press in toggle mode. The receiver decides
	// whether that starts or stops a recording.
	EventToggle
	// EventCancel signals the cancel combo.
	EventCancel
)

func (t EventType) String() string {
	switch t {
	case EventStart:
		return "start"
	case EventStop:
		return "stop"
	case EventToggle:
		return "toggle"
	case EventCancel:
		return "cancel"
	default:
		return "unknown"
	}
}

// Event is emitted on the channel returned by Events.
type Event struct {
	Type EventType
}

// Listener manages a global hotkey and emits events.
type Listener struct {
	keys       []string
	cancelKeys []string
	mode       string // "hold" or "toggle"
	ch         chan Event
	done       chan struct{}
	once       sync.Once
}

// NewListener creates a Listener for the given key combo and mode.
// keys should be lowercase key names (e.g., ["ctrl", "shift", ";"]).
// mode must be "hold" or "toggle". cancelKeys may be empty.
func NewListener(keys []string, mode string, cancelKeys []string) *Listener {
	return &Listener{
		keys:       keys,
		cancelKeys: cancelKeys,
		mode:       mode,
		ch:         make(chan Event, 16),
		done:       make(chan struct{}),
	}
}

// Events returns the channel that receives hotkey events.
// The channel is closed when the listener stops.
func (l *Listener) Events() <-chan Event {
	return l.ch
}

// Start begins listening for the global hotkey.
// This function blocks until Stop is called. Run it in a goroutine.
func (l *Listener) Start() {
	switch l.mode {
	case "toggle":
		hook.Register(hook.KeyDown, l.keys, func(hook.Event) { l.emit(EventToggle) })
	default: // "hold"
		hook.Register(hook.KeyDown, l.keys, func(hook.Event) { l.emit(EventStart) })
		hook.Register(hook.KeyUp, l.keys, func(hook.Event) { l.emit(EventStop) })
	}
	if len(l.cancelKeys) > 0 {
		hook.Register(hook.KeyDown, l.cancelKeys, func(hook.Event) { l.emit(EventCancel) })
	}

	evChan := hook.Start()
	go func() {
		<-l.done
		hook.End()
	}()
	<-hook.Process(evChan)
	close(l.ch)
}

// emit delivers an event without blocking the hook goroutine; events are
// dropped when the channel is full.
func (l *Listener) emit(t EventType) {
	select {
	case l.ch <- Event{Type: t}:
	default:
	}
}

// Stop terminates the hotkey listener.
// It is safe to call multiple times.
func (l *Listener) Stop() {
	l.once.Do(func() {
		close(l.done)
	})
}
