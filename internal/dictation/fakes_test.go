package dictation

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/chaz8081/speakgo/internal/audio"
	"github.com/chaz8081/speakgo/internal/compress"
	"github.com/chaz8081/speakgo/internal/transcribe"
	"github.com/chaz8081/speakgo/internal/workdir"
)

// fakeTranscriber records what it was asked to transcribe.
type fakeTranscriber struct {
	mu      sync.Mutex
	text    string
	err     error
	paths   []string
	samples []int // WAV sample counts, -1 for non-WAV uploads
}

func (f *fakeTranscriber) Transcribe(_ context.Context, path string) (*transcribe.Result, error) {
	n := -1
	if filepath.Ext(path) == ".wav" {
		if s, _, err := audio.ReadWAV(path); err == nil {
			n = len(s)
		}
	} else if _, err := os.Stat(path); err != nil {
		n = -2
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.paths = append(f.paths, path)
	f.samples = append(f.samples, n)
	if f.err != nil {
		return nil, f.err
	}
	return &transcribe.Result{Text: f.text, Language: "en"}, nil
}

func (f *fakeTranscriber) Close() error { return nil }

func (f *fakeTranscriber) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.paths)
}

// healthyTranscriber adds a health check to fakeTranscriber.
type healthyTranscriber struct {
	*fakeTranscriber
	healthy bool
	checks  int
}

func (h *healthyTranscriber) CheckHealth(context.Context) bool {
	h.checks++
	return h.healthy
}

// fakeCompressor writes a fixed payload as the "compressed" file.
type fakeCompressor struct {
	err   error
	calls int
}

func (f *fakeCompressor) Compress(_ context.Context, in, out string) (compress.Stats, error) {
	f.calls++
	if f.err != nil {
		return compress.Stats{}, f.err
	}
	info, err := os.Stat(in)
	if err != nil {
		return compress.Stats{}, err
	}
	if err := os.WriteFile(out, []byte("opus"), 0644); err != nil {
		return compress.Stats{}, err
	}
	return compress.Stats{InputBytes: info.Size(), OutputBytes: 4}, nil
}

// fakeCapturer hands its sink to the test so chunks can be pushed in.
type fakeCapturer struct {
	mu        sync.Mutex
	sink      audio.Sink
	recording bool
	startErr  error
	onStart   []float32 // written to the sink on Start
}

func (f *fakeCapturer) Start(sink audio.Sink) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	f.sink = sink
	f.recording = true
	if f.onStart != nil {
		sink.Write(f.onStart)
	}
	return nil
}

func (f *fakeCapturer) Stop() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	was := f.recording
	f.recording = false
	return was
}

func (f *fakeCapturer) IsRecording() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.recording
}

func (f *fakeCapturer) push(samples []float32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.recording {
		f.sink.Write(samples)
	}
}

// chanHandler forwards outcomes to channels.
type chanHandler struct {
	results chan *transcribe.Result
	errs    chan error
}

func newChanHandler() *chanHandler {
	return &chanHandler{
		results: make(chan *transcribe.Result, 8),
		errs:    make(chan error, 8),
	}
}

func (h *chanHandler) HandleResult(res *transcribe.Result) { h.results <- res }
func (h *chanHandler) HandleError(err error)               { h.errs <- err }

func (h *chanHandler) waitResult(t *testing.T) *transcribe.Result {
	t.Helper()
	select {
	case res := <-h.results:
		return res
	case err := <-h.errs:
		t.Fatalf("got error %v, want a result", err)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a result")
	}
	return nil
}

func (h *chanHandler) waitError(t *testing.T) error {
	t.Helper()
	select {
	case err := <-h.errs:
		return err
	case res := <-h.results:
		t.Fatalf("got result %+v, want an error", res)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for an error")
	}
	return nil
}

func newTestDir(t *testing.T) *workdir.Dir {
	t.Helper()
	d, err := workdir.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func dirEntries(t *testing.T, d *workdir.Dir) []string {
	t.Helper()
	entries, err := os.ReadDir(d.Path())
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func block(n int, v float32) []float32 {
	b := make([]float32, n)
	for i := range b {
		b[i] = v
	}
	return b
}

// waitFor polls cond until it holds or the test times out.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(time.Millisecond)
	}
}
