// Package instance guards against running two dictation daemons at once.
// Windows uses a named kernel mutex; other systems take an exclusive flock
// on a file in the temp directory.
package instance

import (
	"errors"
	"sync"
)

// ErrAlreadyRunning is returned by Acquire when another process holds the lock.
var ErrAlreadyRunning = errors.New("instance: another instance is already running")

// Lock is a held single-instance lock.
type Lock struct {
	name string
	once sync.Once
	err  error

	release func() error
}

// Name returns the lock name.
func (l *Lock) Name() string {
	return l.name
}

// Release gives up the lock. It is safe to call multiple times.
func (l *Lock) Release() error {
	l.once.Do(func() {
		if l.release != nil {
			l.err = l.release()
		}
	})
	return l.err
}
