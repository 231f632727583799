package system

import (
	"errors"
	"fmt"
	"os"

	"github.com/gofrs/flock"
)

// ErrOutputBusy is returned when another run holds the lock on an output.
var ErrOutputBusy = fmt.Errorf("%w: output is being written by another run", ErrResource)

// OutputLock is an advisory lock on "<output>.lock".
type OutputLock struct {
	path string
	lock *flock.Flock
}

// LockOutput takes the lock for output without blocking.
func LockOutput(output string) (*OutputLock, error) {
	path := output + ".lock"
	l := flock.New(path)
	ok, err := l.TryLock()
	if err != nil {
		return nil, fmt.Errorf("%w: acquire lock %s: %w", ErrResource, path, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrOutputBusy, path)
	}
	return &OutputLock{path: path, lock: l}, nil
}

// Unlock releases the lock and removes the lock file.
func (l *OutputLock) Unlock() error {
	if err := l.lock.Unlock(); err != nil {
		return fmt.Errorf("release lock %s: %w", l.path, err)
	}
	if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove lock %s: %w", l.path, err)
	}
	return nil
}
