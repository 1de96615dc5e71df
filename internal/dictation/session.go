package dictation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chaz8081/speakgo/internal/audio"
	"github.com/chaz8081/speakgo/internal/hotkey"
	"github.com/chaz8081/speakgo/internal/observe"
	"github.com/chaz8081/speakgo/internal/transcribe"
	"github.com/chaz8081/speakgo/internal/vad"
)

var (
	// ErrClosed is returned when using a closed Session.
	ErrClosed = errors.New("dictation: session closed")
	// ErrBusy is returned by Record while another recording is active.
	ErrBusy = errors.New("dictation: already recording")
)

// Capturer is an audio source. *audio.Recorder satisfies it.
type Capturer interface {
	Start(sink audio.Sink) error
	Stop() bool
	IsRecording() bool
}

// SessionConfig tunes a Session.
type SessionConfig struct {
	SampleRate int
	Channels   int
	// Detector enables VAD filtering when non-nil. The Session does not
	// close it.
	Detector vad.Detector
	VAD      vad.StreamOptions
	// QueueSize bounds the capture queue in chunks; 0 uses 256.
	QueueSize int
	// JobQueueSize bounds finished recordings waiting for transcription;
	// 0 uses 4.
	JobQueueSize int
	Metrics      *observe.Metrics
}

type msgKind int

const (
	msgBegin msgKind = iota
	msgChunk
	msgEnd
	msgDiscard
)

// captureMsg is one item on the capture queue. Control messages share the
// queue with audio so they stay ordered after the chunks before them.
type captureMsg struct {
	kind    msgKind
	samples []float32
	done    func(Recording) // msgEnd only
}

// Session runs recordings. The audio callback only enqueues chunks; a
// capture worker feeds them through the VAD stream and a processing worker
// transcribes finished recordings one at a time.
type Session struct {
	ctx      context.Context
	cancel   context.CancelFunc
	capturer Capturer
	pipeline *Pipeline
	handler  Handler
	metrics  *observe.Metrics
	cfg      SessionConfig

	capture chan captureMsg
	jobs    chan Recording
	dropped atomic.Int64
	wg      sync.WaitGroup

	// owned by the capture worker
	stream *vad.Stream
	buffer *audio.Buffer

	mu        sync.Mutex
	recording bool
	closed    bool
}

// NewSession creates a Session and starts its workers. Recordings are
// transcribed with ctx; cancelling it aborts in-flight transcriptions.
func NewSession(ctx context.Context, c Capturer, p *Pipeline, h Handler, cfg SessionConfig) (*Session, error) {
	if c == nil || p == nil || h == nil {
		return nil, fmt.Errorf("dictation: capturer, pipeline and handler are required")
	}
	if cfg.SampleRate <= 0 || cfg.Channels <= 0 {
		return nil, fmt.Errorf("dictation: invalid audio format %d Hz x %d", cfg.SampleRate, cfg.Channels)
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.JobQueueSize <= 0 {
		cfg.JobQueueSize = 4
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.Discard()
	}

	s := &Session{
		capturer: c,
		pipeline: p,
		handler:  h,
		metrics:  cfg.Metrics,
		cfg:      cfg,
		capture:  make(chan captureMsg, cfg.QueueSize),
		jobs:     make(chan Recording, cfg.JobQueueSize),
		buffer:   &audio.Buffer{},
	}

	if cfg.Detector != nil {
		if cfg.Channels != 1 {
			return nil, fmt.Errorf("dictation: VAD needs mono audio, got %d channels", cfg.Channels)
		}
		stream, err := vad.NewStream(cfg.Detector, cfg.SampleRate, cfg.VAD)
		if err != nil {
			return nil, fmt.Errorf("dictation: %w", err)
		}
		s.stream = stream
		slog.Debug("[VAD] stream ready", "block_size", stream.BlockSize(), "threshold", cfg.VAD.Threshold)
	}

	s.ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(2)
	go s.captureLoop()
	go s.processLoop()
	return s, nil
}

// Write implements audio.Sink. It never blocks: when the capture queue is
// full the chunk is dropped and counted.
func (s *Session) Write(samples []float32) {
	select {
	case s.capture <- captureMsg{kind: msgChunk, samples: samples}:
	default:
		s.dropped.Add(1)
	}
}

// IsRecording reports whether a recording is active.
func (s *Session) IsRecording() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recording
}

// Start begins a recording. Starting while already recording is a no-op.
func (s *Session) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startLocked()
}

func (s *Session) startLocked() error {
	if s.closed {
		return ErrClosed
	}
	if s.recording {
		return nil
	}

	s.capture <- captureMsg{kind: msgBegin}
	if err := s.capturer.Start(s); err != nil {
		s.capture <- captureMsg{kind: msgDiscard}
		return fmt.Errorf("dictation: start recording: %w", err)
	}
	s.recording = true
	slog.Info("[dictation] recording...")
	return nil
}

// Stop ends the active recording and queues it for transcription. It
// reports whether a recording was active.
func (s *Session) Stop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopLocked(s.enqueue)
}

func (s *Session) stopLocked(done func(Recording)) bool {
	if !s.recording {
		return false
	}
	s.capturer.Stop()
	s.recording = false
	s.capture <- captureMsg{kind: msgEnd, done: done}
	slog.Info("[dictation] recording stopped")
	return true
}

// Toggle starts a recording if none is active, otherwise stops it.
func (s *Session) Toggle() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.recording {
		s.stopLocked(s.enqueue)
		return nil
	}
	return s.startLocked()
}

// Cancel discards the active recording without transcribing it.
func (s *Session) Cancel() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.recording {
		return false
	}
	s.capturer.Stop()
	s.recording = false
	s.capture <- captureMsg{kind: msgDiscard}
	s.metrics.RecordRecording(s.ctx, observe.StatusCancelled)
	slog.Info("[dictation] recording cancelled")
	return true
}

// HandleEvent applies a hotkey event.
func (s *Session) HandleEvent(ev hotkey.Event) {
	var err error
	switch ev.Type {
	case hotkey.EventStart:
		err = s.Start()
	case hotkey.EventStop:
		s.Stop()
	case hotkey.EventToggle:
		err = s.Toggle()
	case hotkey.EventCancel:
		s.Cancel()
	}
	if err != nil {
		slog.Error("[dictation] hotkey action failed", "event", ev.Type, "error", err)
		s.handler.HandleError(err)
	}
}

// Run applies hotkey events until ctx is done or events is closed.
func (s *Session) Run(ctx context.Context, events <-chan hotkey.Event) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				slog.Info("[dictation] hotkey listener stopped")
				return nil
			}
			s.HandleEvent(ev)
		}
	}
}

// Record captures for d (or until ctx is cancelled) and transcribes the
// result synchronously, bypassing the job queue.
func (s *Session) Record(ctx context.Context, d time.Duration) (*transcribe.Result, error) {
	s.mu.Lock()
	if s.recording {
		s.mu.Unlock()
		return nil, ErrBusy
	}
	if err := s.startLocked(); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.mu.Unlock()

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		s.Cancel()
		return nil, ctx.Err()
	case <-timer.C:
	}

	reply := make(chan Recording, 1)
	s.mu.Lock()
	s.stopLocked(func(r Recording) { reply <- r })
	s.mu.Unlock()

	var rec Recording
	select {
	case rec = <-reply:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return s.pipeline.Process(ctx, rec)
}

// enqueue hands a finished recording to the processing worker. It runs on
// the capture worker.
func (s *Session) enqueue(rec Recording) {
	select {
	case s.jobs <- rec:
	case <-s.ctx.Done():
	}
}

// Close stops any active recording without transcribing it, lets queued
// recordings finish and waits for the workers to exit. It is safe to call
// multiple times.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	if s.recording {
		s.capturer.Stop()
		s.recording = false
	}
	s.closed = true
	close(s.capture)
	s.mu.Unlock()

	s.wg.Wait()
	s.cancel()
	return nil
}

// captureLoop owns the VAD stream and the plain buffer.
func (s *Session) captureLoop() {
	defer s.wg.Done()
	defer close(s.jobs)

	for msg := range s.capture {
		switch msg.kind {
		case msgBegin, msgDiscard:
			s.resetCapture()
		case msgChunk:
			s.feed(msg.samples)
		case msgEnd:
			rec := s.finishCapture()
			if msg.done != nil {
				msg.done(rec)
			}
		}
	}
}

func (s *Session) resetCapture() {
	if s.stream != nil {
		s.stream.Reset()
	}
	s.buffer.Reset()
	s.dropped.Store(0)
}

func (s *Session) feed(samples []float32) {
	if s.stream == nil {
		s.buffer.Write(samples)
		return
	}
	before := s.stream.InSpeech()
	d := s.stream.Write(samples)
	if d.Probability > 0 && d.Speech != before {
		slog.Debug("[VAD] block", "speech", d.Speech, "probability", d.Probability)
	}
}

func (s *Session) finishCapture() Recording {
	if n := s.dropped.Swap(0); n > 0 {
		slog.Warn("[dictation] capture queue full, dropped audio chunks", "count", n)
	}

	rec := Recording{SampleRate: s.cfg.SampleRate, Channels: s.cfg.Channels}
	if s.stream != nil {
		s.stream.Flush()
		rec.Samples = s.stream.Audio()
		stats := s.stream.Stats()
		rec.VAD = &stats
		s.stream.Reset()
	} else {
		rec.Samples = s.buffer.Samples()
		s.buffer.Reset()
	}
	return rec
}

// processLoop transcribes finished recordings one at a time.
func (s *Session) processLoop() {
	defer s.wg.Done()

	for rec := range s.jobs {
		res, err := s.pipeline.Process(s.ctx, rec)
		if err != nil {
			s.handler.HandleError(err)
			continue
		}
		s.handler.HandleResult(res)
	}
}
