//go:build windows

package instance

import (
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sys/windows"
)

// Acquire creates the named mutex Global\<name>. ErrAlreadyRunning is
// returned if it already exists.
func Acquire(name string) (*Lock, error) {
	full := `Global\` + name
	ptr, err := windows.UTF16PtrFromString(full)
	if err != nil {
		return nil, fmt.Errorf("instance: encode mutex name: %w", err)
	}

	h, err := windows.CreateMutex(nil, false, ptr)
	if errors.Is(err, windows.ERROR_ALREADY_EXISTS) {
		if h != 0 {
			_ = windows.CloseHandle(h)
		}
		return nil, ErrAlreadyRunning
	}
	if err != nil {
		return nil, fmt.Errorf("instance: create mutex %s: %w", full, err)
	}

	slog.Info("[instance] single instance lock acquired", "name", full)
	return &Lock{
		name: full,
		release: func() error {
			if err := windows.CloseHandle(h); err != nil {
				return fmt.Errorf("instance: close mutex: %w", err)
			}
			slog.Debug("[instance] single instance lock released", "name", full)
			return nil
		},
	}, nil
}
