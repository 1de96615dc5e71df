package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/chaz8081/speakgo/internal/config"
)

// testConfig returns a remote-backend config whose temp dir holds one
// leftover speakgo_ file. ffmpeg points at a placeholder file, which is
// enough for the compressor to report itself available.
func testConfig(t *testing.T) (*config.Config, string) {
	t.Helper()
	work := t.TempDir()
	stale := filepath.Join(work, "speakgo_0123456789abcdef.wav")
	if err := os.WriteFile(stale, []byte("RIFF"), 0644); err != nil {
		t.Fatal(err)
	}
	ffmpeg := filepath.Join(t.TempDir(), "ffmpeg")
	if err := os.WriteFile(ffmpeg, nil, 0755); err != nil {
		t.Fatal(err)
	}

	cfg := config.Default()
	cfg.Files.Dir = work
	cfg.Compress.FFmpegPath = ffmpeg
	return cfg, stale
}

func TestRecordOptionsLeaveOtherFilesAlone(t *testing.T) {
	if recordOptions.sweep {
		t.Fatal("record must not sweep the shared temp dir")
	}

	cfg, stale := testConfig(t)
	comps, err := buildComponents(cfg, recordOptions)
	if err != nil {
		t.Fatalf("buildComponents() error = %v", err)
	}
	defer comps.Close()

	if _, err := os.Stat(stale); err != nil {
		t.Errorf("file of another process was removed: %v", err)
	}
}

func TestSweepRemovesStaleFiles(t *testing.T) {
	cfg, stale := testConfig(t)
	comps, err := buildComponents(cfg, buildOptions{sweep: true})
	if err != nil {
		t.Fatalf("buildComponents() error = %v", err)
	}
	defer comps.Close()

	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Errorf("stale file still present: %v", err)
	}
}

func TestSweepSkippedWhenKeepingFiles(t *testing.T) {
	cfg, stale := testConfig(t)
	cfg.Files.Keep = true
	comps, err := buildComponents(cfg, buildOptions{sweep: true})
	if err != nil {
		t.Fatalf("buildComponents() error = %v", err)
	}
	defer comps.Close()

	if _, err := os.Stat(stale); err != nil {
		t.Errorf("kept file was removed: %v", err)
	}
}
