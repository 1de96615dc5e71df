// Package compress shrinks recorded WAV files to Opus with an external
// ffmpeg binary before they are uploaded.
package compress

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
)

// ErrNotFound is returned when no ffmpeg binary could be located.
var ErrNotFound = errors.New("compress: ffmpeg not found")

// silenceFilter trims leading silence below -50 dB.
const silenceFilter = "silenceremove=start_periods=1:start_duration=0.1:start_threshold=-50dB:detection=peak"

// Options configures the encoder.
type Options struct {
	FFmpegPath  string // explicit binary; empty searches PATH and ./ffmpeg/bin
	Bitrate     string // e.g. "32k"
	SampleRate  int    // output rate in Hz
	TrimSilence bool
}

// Stats describes one compression run.
type Stats struct {
	InputBytes  int64
	OutputBytes int64
}

// Reduction returns the size reduction as a percentage of the input.
func (s Stats) Reduction() float64 {
	if s.InputBytes == 0 {
		return 0
	}
	return (1 - float64(s.OutputBytes)/float64(s.InputBytes)) * 100
}

// Ratio returns output size divided by input size.
func (s Stats) Ratio() float64 {
	if s.InputBytes == 0 {
		return 0
	}
	return float64(s.OutputBytes) / float64(s.InputBytes)
}

// Compressor runs ffmpeg to encode audio as mono Opus.
type Compressor struct {
	path string
	opts Options
}

// New locates ffmpeg. A Compressor is returned even when ffmpeg is
// missing; check Available before use.
func New(opts Options) *Compressor {
	if opts.Bitrate == "" {
		opts.Bitrate = "32k"
	}
	if opts.SampleRate <= 0 {
		opts.SampleRate = 16000
	}
	c := &Compressor{opts: opts, path: find(opts.FFmpegPath)}
	if c.path == "" {
		slog.Warn("[compress] ffmpeg not found in PATH or local directory")
	} else {
		slog.Debug("[compress] using ffmpeg", "path", c.path)
	}
	return c
}

// find returns the first usable ffmpeg: the explicit path, then PATH,
// then ./ffmpeg/bin.
func find(explicit string) string {
	if explicit != "" {
		if isFile(explicit) {
			return explicit
		}
		slog.Warn("[compress] configured ffmpeg path does not exist", "path", explicit)
	}
	if p, err := exec.LookPath("ffmpeg"); err == nil {
		return p
	}
	name := "ffmpeg"
	if runtime.GOOS == "windows" {
		name = "ffmpeg.exe"
	}
	local := filepath.Join("ffmpeg", "bin", name)
	if isFile(local) {
		return local
	}
	return ""
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// Available reports whether ffmpeg was found.
func (c *Compressor) Available() bool {
	return c.path != ""
}

// Path returns the ffmpeg binary in use, or "".
func (c *Compressor) Path() string {
	return c.path
}

// Args returns the ffmpeg arguments that encode in to out.
func (c *Compressor) Args(in, out string) []string {
	format := "aformat=sample_fmts=s16:sample_rates=" + strconv.Itoa(c.opts.SampleRate) + ":channel_layouts=mono"
	filters := format
	if c.opts.TrimSilence {
		filters = silenceFilter + "," + format
	}
	return []string{
		"-i", in,
		"-af", filters,
		"-c:a", "libopus",
		"-b:a", c.opts.Bitrate,
		"-ar", strconv.Itoa(c.opts.SampleRate),
		"-ac", "1",
		"-compression_level", "10",
		"-y",
		out,
	}
}

// Compress encodes in to out. On failure the error carries ffmpeg's stderr.
func (c *Compressor) Compress(ctx context.Context, in, out string) (Stats, error) {
	if !c.Available() {
		return Stats{}, ErrNotFound
	}

	inInfo, err := os.Stat(in)
	if err != nil {
		return Stats{}, fmt.Errorf("compress: stat input: %w", err)
	}

	args := c.Args(in, out)
	slog.Debug("[compress] running ffmpeg", "cmd", c.path+" "+strings.Join(args, " "))

	cmd := exec.CommandContext(ctx, c.path, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return Stats{}, fmt.Errorf("compress: ffmpeg: %w", ctx.Err())
		}
		return Stats{}, fmt.Errorf("compress: ffmpeg failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	outInfo, err := os.Stat(out)
	if err != nil {
		return Stats{}, fmt.Errorf("compress: stat output: %w", err)
	}

	stats := Stats{InputBytes: inInfo.Size(), OutputBytes: outInfo.Size()}
	slog.Info("[compress] compressed audio",
		"input_bytes", stats.InputBytes,
		"output_bytes", stats.OutputBytes,
		"reduction", fmt.Sprintf("%.1f%%", stats.Reduction()))
	return stats, nil
}

// InstallHint explains how to make ffmpeg available.
func InstallHint() string {
	return `ffmpeg is required to compress recordings before upload.

Option 1: install it system-wide
  Windows: winget install Gyan.FFmpeg  (or https://www.gyan.dev/ffmpeg/builds/)
  macOS:   brew install ffmpeg
  Linux:   use your package manager, e.g. apt install ffmpeg

Option 2: portable copy
  Extract an ffmpeg build so the binary is at ./ffmpeg/bin/ffmpeg(.exe)
  relative to the working directory, or set compress.ffmpeg_path.`
}
