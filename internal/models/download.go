// Package models fetches the model files speakgo loads at runtime.
package models

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/chaz8081/speakgo/internal/config"
)

// Model is a single downloadable model file.
type Model struct {
	Name string // file name inside the models directory
	URL  string
	Desc string
}

var (
	// Silero is the Silero VAD ONNX model used by the silero VAD engine.
	Silero = Model{
		Name: "silero_vad.onnx",
		URL:  "https://github.com/snakers4/silero-vad/raw/master/src/silero_vad/data/silero_vad.onnx",
		Desc: "Silero VAD (~2 MB) - voice activity detection",
	}
	// Whisper is the ggml model for the local whisper backend.
	Whisper = Model{
		Name: "ggml-base.en.bin",
		URL:  "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-base.en.bin",
		Desc: "Whisper base.en (~142 MB) - local transcription",
	}
)

// Downloader writes models into Dir, reporting progress to Out.
type Downloader struct {
	Dir    string       // empty = config.DefaultModelsDir()
	Client *http.Client // nil = http.DefaultClient
	Out    io.Writer    // nil = io.Discard
}

func (d *Downloader) dir() string {
	if d.Dir == "" {
		return config.DefaultModelsDir()
	}
	return d.Dir
}

func (d *Downloader) out() io.Writer {
	if d.Out == nil {
		return io.Discard
	}
	return d.Out
}

// Path returns where m is stored.
func (d *Downloader) Path(m Model) string {
	return filepath.Join(d.dir(), m.Name)
}

// Download fetches m unless a non-empty copy already exists, and returns its
// path. The file is written to a .tmp sibling and renamed into place.
func (d *Downloader) Download(ctx context.Context, m Model) (string, error) {
	out := d.out()
	if err := os.MkdirAll(d.dir(), 0755); err != nil {
		return "", fmt.Errorf("models: creating models dir: %w", err)
	}

	destPath := d.Path(m)

	if info, err := os.Stat(destPath); err == nil && info.Size() > 0 {
		fmt.Fprintf(out, "  %s already exists: %s (%.1f MB)\n", m.Name, destPath, float64(info.Size())/(1024*1024))
		return destPath, nil
	}

	fmt.Fprintf(out, "  Downloading %s...\n", m.Name)
	fmt.Fprintf(out, "  URL: %s\n", m.URL)
	fmt.Fprintf(out, "  Destination: %s\n", destPath)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.URL, nil)
	if err != nil {
		return "", fmt.Errorf("models: building request: %w", err)
	}
	client := d.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("models: downloading %s: %w", m.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("models: download %s failed: HTTP %d", m.Name, resp.StatusCode)
	}

	// Write to temp file first, then rename (atomic)
	tmpPath := destPath + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return "", fmt.Errorf("models: creating temp file: %w", err)
	}

	pr := &progressWriter{
		writer: f,
		out:    out,
		total:  resp.ContentLength,
		label:  m.Name,
	}

	written, err := io.Copy(pr, resp.Body)
	f.Close()
	if err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("models: writing %s: %w", m.Name, err)
	}

	fmt.Fprintf(out, "\n  Downloaded %.1f MB\n", float64(written)/(1024*1024))

	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("models: moving %s into place: %w", m.Name, err)
	}

	return destPath, nil
}

// progressWriter wraps an io.Writer and prints download progress.
type progressWriter struct {
	writer  io.Writer
	out     io.Writer
	total   int64
	written int64
	label   string
}

func (pw *progressWriter) Write(p []byte) (int, error) {
	n, err := pw.writer.Write(p)
	pw.written += int64(n)
	if pw.total > 0 {
		pct := float64(pw.written) / float64(pw.total) * 100
		fmt.Fprintf(pw.out, "\r  %s: %.1f MB / %.1f MB (%.0f%%)",
			pw.label,
			float64(pw.written)/(1024*1024),
			float64(pw.total)/(1024*1024),
			pct)
	} else {
		fmt.Fprintf(pw.out, "\r  %s: %.1f MB downloaded",
			pw.label,
			float64(pw.written)/(1024*1024))
	}
	return n, err
}
