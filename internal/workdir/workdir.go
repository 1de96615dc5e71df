// Package workdir names, removes and sweeps the temporary audio files a
// recording produces.
package workdir

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Prefix starts every temporary file name.
const Prefix = "speakgo_"

// Dir is a directory holding temporary recordings.
type Dir struct {
	path string
}

// New returns a Dir rooted at path, creating it if needed. An empty path
// uses the OS temp directory.
func New(path string) (*Dir, error) {
	if path == "" {
		path = os.TempDir()
	}
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("workdir: create %s: %w", path, err)
	}
	return &Dir{path: path}, nil
}

// Path returns the directory.
func (d *Dir) Path() string {
	return d.path
}

// Names returns one path per extension, all sharing a fresh random id:
// speakgo_<16 hex>.<ext>.
func (d *Dir) Names(exts ...string) []string {
	id := strings.ReplaceAll(uuid.New().String(), "-", "")[:16]
	out := make([]string, len(exts))
	for i, ext := range exts {
		out[i] = filepath.Join(d.path, Prefix+id+"."+strings.TrimPrefix(ext, "."))
	}
	return out
}

// Remove deletes the given files, ignoring ones that do not exist.
// Failures are logged.
func Remove(paths ...string) {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			slog.Warn("[files] failed to clean up file", "path", p, "error", err)
			continue
		}
		slog.Debug("[files] cleaned up file", "path", p)
	}
}

// Sweep removes leftover speakgo_* files from earlier runs and returns how
// many were removed.
func (d *Dir) Sweep() (int, error) {
	entries, err := os.ReadDir(d.path)
	if err != nil {
		return 0, fmt.Errorf("workdir: read %s: %w", d.path, err)
	}
	removed := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), Prefix) {
			continue
		}
		path := filepath.Join(d.path, e.Name())
		if err := os.Remove(path); err != nil {
			slog.Warn("[files] failed to remove stale file", "path", path, "error", err)
			continue
		}
		removed++
	}
	if removed > 0 {
		slog.Info("[files] removed stale temp files", "count", removed, "dir", d.path)
	}
	return removed, nil
}
