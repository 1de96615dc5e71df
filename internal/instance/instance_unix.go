//go:build unix

package instance

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// Acquire takes an exclusive, non-blocking flock on <tmp>/<name>.lock.
// The kernel drops the lock if the process dies, so stale files are harmless.
func Acquire(name string) (*Lock, error) {
	path := filepath.Join(os.TempDir(), name+".lock")

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("instance: open lock file: %w", err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		_ = f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, ErrAlreadyRunning
		}
		return nil, fmt.Errorf("instance: lock %s: %w", path, err)
	}

	slog.Info("[instance] single instance lock acquired", "path", path)
	return &Lock{
		name: path,
		release: func() error {
			_ = unix.Flock(int(f.Fd()), unix.LOCK_UN)
			if err := f.Close(); err != nil {
				return fmt.Errorf("instance: close lock file: %w", err)
			}
			slog.Debug("[instance] single instance lock released", "path", path)
			return nil
		},
	}, nil
}
