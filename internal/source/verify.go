package source

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/h2non/filetype"
)

// ContentMismatchError reports a file whose header does not match its role.
type ContentMismatchError struct {
	Path     string
	Expected string
	Detected string
}

func (e *ContentMismatchError) Error() string {
	return fmt.Sprintf("%s: expected %s content, detected %q", e.Path, e.Expected, e.Detected)
}

func (e *ContentMismatchError) Is(target error) bool {
	return target == ErrDiscovery
}

// headerSize is the number of bytes filetype needs to classify a file.
const headerSize = 261

func verifyKind(path string, r role) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDiscovery, err)
	}
	defer f.Close()

	head := make([]byte, headerSize)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: read %s: %w", ErrDiscovery, path, err)
	}
	head = head[:n]

	var ok bool
	switch r.prefix {
	case imageRole.prefix:
		ok = filetype.IsImage(head)
	case audioRole.prefix:
		ok = filetype.IsAudio(head)
	}
	if ok {
		return nil
	}

	detected := "unknown"
	if kind, err := filetype.Match(head); err == nil && kind != filetype.Unknown {
		detected = kind.MIME.Value
	}
	return &ContentMismatchError{Path: path, Expected: r.prefix, Detected: detected}
}
