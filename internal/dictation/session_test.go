package dictation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/chaz8081/speakgo/internal/hotkey"
	"github.com/chaz8081/speakgo/internal/vad"
)

type sessionFixture struct {
	sess    *Session
	capt    *fakeCapturer
	tr      *fakeTranscriber
	handler *chanHandler
}

func newFixture(t *testing.T, cfg SessionConfig, pcfg PipelineConfig) *sessionFixture {
	t.Helper()
	f := &sessionFixture{
		capt:    &fakeCapturer{},
		tr:      &fakeTranscriber{text: "dictated"},
		handler: newChanHandler(),
	}
	p := newTestPipeline(t, f.tr, nil, pcfg)

	if cfg.SampleRate == 0 {
		cfg.SampleRate = 16000
	}
	if cfg.Channels == 0 {
		cfg.Channels = 1
	}
	sess, err := NewSession(context.Background(), f.capt, p, f.handler, cfg)
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}
	t.Cleanup(func() { _ = sess.Close() })
	f.sess = sess
	return f
}

func TestNewSessionValidation(t *testing.T) {
	p := newTestPipeline(t, &fakeTranscriber{}, nil, PipelineConfig{})
	ctx := context.Background()

	if _, err := NewSession(ctx, nil, p, newChanHandler(), SessionConfig{SampleRate: 16000, Channels: 1}); err == nil {
		t.Error("NewSession(nil capturer) should fail")
	}
	if _, err := NewSession(ctx, &fakeCapturer{}, p, newChanHandler(), SessionConfig{}); err == nil {
		t.Error("NewSession(zero rate) should fail")
	}

	det, _ := vad.NewEnergy(16000, 0.1)
	_, err := NewSession(ctx, &fakeCapturer{}, p, newChanHandler(), SessionConfig{
		SampleRate: 16000, Channels: 2, Detector: det, VAD: vad.StreamOptions{Threshold: 0.5},
	})
	if err == nil {
		t.Error("NewSession(stereo VAD) should fail")
	}
}

func TestToggleRecordsAndTranscribes(t *testing.T) {
	f := newFixture(t, SessionConfig{}, PipelineConfig{})

	if err := f.sess.Toggle(); err != nil {
		t.Fatalf("Toggle() error = %v", err)
	}
	if !f.sess.IsRecording() || !f.capt.IsRecording() {
		t.Fatal("first toggle should start recording")
	}

	f.capt.push(block(8000, 0.1))
	f.capt.push(block(8000, 0.2))

	if err := f.sess.Toggle(); err != nil {
		t.Fatalf("Toggle() error = %v", err)
	}
	if f.sess.IsRecording() {
		t.Fatal("second toggle should stop recording")
	}

	res := f.handler.waitResult(t)
	if res.Text != "dictated" {
		t.Errorf("Text = %q, want dictated", res.Text)
	}
	if f.tr.samples[0] != 16000 {
		t.Errorf("transcribed %d samples, want 16000", f.tr.samples[0])
	}
}

func TestStartStopHoldMode(t *testing.T) {
	f := newFixture(t, SessionConfig{}, PipelineConfig{})

	f.sess.HandleEvent(hotkey.Event{Type: hotkey.EventStart})
	f.sess.HandleEvent(hotkey.Event{Type: hotkey.EventStart}) // already recording
	f.capt.push(block(16000, 0.1))
	f.sess.HandleEvent(hotkey.Event{Type: hotkey.EventStop})

	f.handler.waitResult(t)
	if f.tr.calls() != 1 {
		t.Errorf("transcriptions = %d, want 1", f.tr.calls())
	}
}

func TestStopWithoutStart(t *testing.T) {
	f := newFixture(t, SessionConfig{}, PipelineConfig{})
	if f.sess.Stop() {
		t.Error("Stop() without Start should report false")
	}
	if f.sess.Cancel() {
		t.Error("Cancel() without Start should report false")
	}
}

func TestVADFiltersSilence(t *testing.T) {
	det, err := vad.NewEnergy(16000, 0.1)
	if err != nil {
		t.Fatal(err)
	}
	f := newFixture(t, SessionConfig{
		Detector: det,
		VAD:      vad.StreamOptions{Threshold: 0.5},
	}, PipelineConfig{MinDuration: 100 * time.Millisecond})

	if err := f.sess.Start(); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		f.capt.push(block(512, 0.001)) // leading silence, dropped
	}
	f.capt.push(block(2048, 0.3)) // speech
	f.capt.push(block(512, 0.001)) // trailing silence, kept, ends speech
	f.capt.push(block(512, 0.001)) // dropped
	f.capt.push(block(100, 0.3))   // partial block outside speech, dropped on flush
	f.sess.Stop()

	f.handler.waitResult(t)
	if f.tr.samples[0] != 2560 {
		t.Errorf("transcribed %d samples, want 2560", f.tr.samples[0])
	}
}

func TestVADNoSpeech(t *testing.T) {
	det, _ := vad.NewEnergy(16000, 0.1)
	f := newFixture(t, SessionConfig{
		Detector: det,
		VAD:      vad.StreamOptions{Threshold: 0.5},
	}, PipelineConfig{})

	_ = f.sess.Start()
	f.capt.push(block(4096, 0.001))
	f.sess.Stop()

	if err := f.handler.waitError(t); !errors.Is(err, ErrNoAudio) {
		t.Errorf("error = %v, want ErrNoAudio", err)
	}
}

func TestTooShortRecording(t *testing.T) {
	f := newFixture(t, SessionConfig{}, PipelineConfig{MinDuration: 300 * time.Millisecond})

	_ = f.sess.Toggle()
	f.capt.push(block(100, 0.2))
	_ = f.sess.Toggle()

	if err := f.handler.waitError(t); !errors.Is(err, ErrTooShort) {
		t.Errorf("error = %v, want ErrTooShort", err)
	}
}

func TestCancelDiscardsRecording(t *testing.T) {
	f := newFixture(t, SessionConfig{}, PipelineConfig{})

	_ = f.sess.Start()
	f.capt.push(block(16000, 0.5))
	f.sess.HandleEvent(hotkey.Event{Type: hotkey.EventCancel})
	if f.sess.IsRecording() || f.capt.IsRecording() {
		t.Fatal("cancel should stop the capture")
	}

	// The next recording starts clean.
	_ = f.sess.Start()
	f.capt.push(block(8000, 0.1))
	f.sess.Stop()

	f.handler.waitResult(t)
	if f.tr.calls() != 1 {
		t.Errorf("transcriptions = %d, want 1", f.tr.calls())
	}
	if f.tr.samples[0] != 8000 {
		t.Errorf("transcribed %d samples, want only the second recording's 8000", f.tr.samples[0])
	}
}

func TestStartFailure(t *testing.T) {
	f := newFixture(t, SessionConfig{}, PipelineConfig{})
	f.capt.startErr = errors.New("no microphone")

	f.sess.HandleEvent(hotkey.Event{Type: hotkey.EventToggle})

	if f.sess.IsRecording() {
		t.Error("session should not be recording after a failed start")
	}
	if err := f.handler.waitError(t); err == nil {
		t.Error("start failure should reach the handler")
	}
}

func TestCloseDrainsQueuedRecordings(t *testing.T) {
	f := newFixture(t, SessionConfig{}, PipelineConfig{})

	_ = f.sess.Start()
	f.capt.push(block(16000, 0.1))
	f.sess.Stop()

	if err := f.sess.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	select {
	case <-f.handler.results:
	default:
		t.Fatal("queued recording should be processed before Close returns")
	}

	if err := f.sess.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if err := f.sess.Start(); !errors.Is(err, ErrClosed) {
		t.Errorf("Start() after Close error = %v, want ErrClosed", err)
	}
}

func TestCloseWhileRecordingDiscards(t *testing.T) {
	f := newFixture(t, SessionConfig{}, PipelineConfig{})

	_ = f.sess.Start()
	f.capt.push(block(16000, 0.1))
	_ = f.sess.Close()

	if f.capt.IsRecording() {
		t.Error("Close should stop the capturer")
	}
	if f.tr.calls() != 0 {
		t.Error("an unfinished recording should not be transcribed on Close")
	}
}

func TestRecordOneShot(t *testing.T) {
	f := newFixture(t, SessionConfig{}, PipelineConfig{})
	f.capt.onStart = block(16000, 0.3)

	res, err := f.sess.Record(context.Background(), 10*time.Millisecond)
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if res.Text != "dictated" {
		t.Errorf("Text = %q", res.Text)
	}
	if f.sess.IsRecording() {
		t.Error("Record should stop the capture")
	}

	// Record bypasses the handler.
	select {
	case <-f.handler.results:
		t.Error("Record result should not be sent to the handler")
	default:
	}
}

func TestRecordInterrupted(t *testing.T) {
	f := newFixture(t, SessionConfig{}, PipelineConfig{})
	f.capt.onStart = block(16000, 0.3)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(10*time.Millisecond, cancel)

	_, err := f.sess.Record(ctx, time.Minute)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Record() error = %v, want context.Canceled", err)
	}
	if f.tr.calls() != 0 {
		t.Error("interrupted recording should not be transcribed")
	}
}

func TestRecordBusy(t *testing.T) {
	f := newFixture(t, SessionConfig{}, PipelineConfig{})
	_ = f.sess.Start()

	if _, err := f.sess.Record(context.Background(), time.Millisecond); !errors.Is(err, ErrBusy) {
		t.Errorf("Record() error = %v, want ErrBusy", err)
	}
	f.sess.Cancel()
}

func TestRunAppliesEvents(t *testing.T) {
	f := newFixture(t, SessionConfig{}, PipelineConfig{})

	events := make(chan hotkey.Event)
	done := make(chan error, 1)
	go func() { done <- f.sess.Run(context.Background(), events) }()

	events <- hotkey.Event{Type: hotkey.EventToggle}
	waitFor(t, f.capt.IsRecording)
	f.capt.push(block(16000, 0.1))
	events <- hotkey.Event{Type: hotkey.EventToggle}
	close(events)

	if err := <-done; err != nil {
		t.Errorf("Run() error = %v", err)
	}
	f.handler.waitResult(t)
}

func TestRunStopsOnContext(t *testing.T) {
	f := newFixture(t, SessionConfig{}, PipelineConfig{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := f.sess.Run(ctx, make(chan hotkey.Event)); err != nil {
		t.Errorf("Run() error = %v", err)
	}
}

func TestWriteDropsWhenQueueFull(t *testing.T) {
	s := &Session{capture: make(chan captureMsg, 1)}

	s.Write(block(10, 0))
	s.Write(block(10, 0))
	s.Write(block(10, 0))

	if got := s.dropped.Load(); got != 2 {
		t.Errorf("dropped = %d, want 2", got)
	}
}
