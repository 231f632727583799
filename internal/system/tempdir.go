package system

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

// TempScope is a run-private scratch directory. Release removes it and is
// safe to call more than once.
type TempScope struct {
	Dir   string
	RunID string

	once sync.Once
	err  error
}

// AcquireTempScope creates "audioslides-<uuid>" under parent, or under the
// system temp directory when parent is empty. Only that sub-directory is ever
// removed.
func AcquireTempScope(parent string) (*TempScope, error) {
	if parent == "" {
		parent = os.TempDir()
	}
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create temp parent %s: %w", ErrResource, parent, err)
	}

	id := uuid.NewString()
	dir := filepath.Join(parent, "audioslides-"+id)
	if err := os.Mkdir(dir, 0o700); err != nil {
		return nil, fmt.Errorf("%w: create temp dir: %w", ErrResource, err)
	}
	return &TempScope{Dir: dir, RunID: id}, nil
}

// Path joins name onto the scope directory.
func (s *TempScope) Path(name string) string {
	return filepath.Join(s.Dir, name)
}

// Release deletes the scope directory and everything in it.
func (s *TempScope) Release() error {
	s.once.Do(func() {
		if err := os.RemoveAll(s.Dir); err != nil {
			s.err = fmt.Errorf("%w: remove temp dir: %w", ErrResource, err)
		}
	})
	return s.err
}
