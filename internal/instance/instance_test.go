//go:build unix

package instance

import (
	"errors"
	"fmt"
	"os"
	"testing"
)

func lockName(t *testing.T) string {
	t.Helper()
	return fmt.Sprintf("speakgo_test_%d_%s", os.Getpid(), t.Name())
}

func TestAcquireExclusive(t *testing.T) {
	name := lockName(t)

	first, err := Acquire(name)
	if err != nil {
		t.Fatalf("first Acquire() error = %v", err)
	}
	defer func() { _ = first.Release() }()

	// flock locks are per open file description, so a second open in the
	// same process conflicts just like another process would.
	if _, err := Acquire(name); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("second Acquire() error = %v, want ErrAlreadyRunning", err)
	}
}

func TestReleaseAllowsReacquire(t *testing.T) {
	name := lockName(t)

	first, err := Acquire(name)
	if err != nil {
		t.Fatal(err)
	}
	if err := first.Release(); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if err := first.Release(); err != nil {
		t.Fatalf("second Release() error = %v", err)
	}

	second, err := Acquire(name)
	if err != nil {
		t.Fatalf("Acquire() after release error = %v", err)
	}
	_ = second.Release()
}
