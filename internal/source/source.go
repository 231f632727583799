// Package source discovers image/audio pairs on disk.
package source

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrDiscovery is the parent of every error returned by Match.
	ErrDiscovery = errors.New("discovery")
	// ErrNoPairs is returned when neither directory holds a matching file.
	ErrNoPairs = fmt.Errorf("%w: no image/audio pairs found", ErrDiscovery)
	// ErrDuplicateIndex is returned when two files in one directory share an index.
	ErrDuplicateIndex = fmt.Errorf("%w: duplicate index", ErrDiscovery)
)

// SourcePair is one image and the narration played over it.
type SourcePair struct {
	Index     int
	ImagePath string
	AudioPath string
}

// IncompletePairsError lists every counterpart that is missing, e.g. "audio_002".
type IncompletePairsError struct {
	Missing []string
}

func (e *IncompletePairsError) Error() string {
	return fmt.Sprintf("incomplete pairs, missing: %s", strings.Join(e.Missing, ", "))
}

func (e *IncompletePairsError) Is(target error) bool {
	return target == ErrDiscovery
}

type options struct {
	verifyContent bool
}

// Option configures Match.
type Option func(*options)

// WithContentCheck sniffs file headers and rejects files whose content does
// not match their role.
func WithContentCheck() Option {
	return func(o *options) { o.verifyContent = true }
}

// Match scans imagesDir and audioDir (non-recursively) and returns the pairs
// sorted by index. Every index present in either directory must exist in both.
func Match(imagesDir, audioDir string, opts ...Option) ([]SourcePair, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	images, err := scanDir(imagesDir, imageRole)
	if err != nil {
		return nil, err
	}
	audios, err := scanDir(audioDir, audioRole)
	if err != nil {
		return nil, err
	}

	indices := unionIndices(images, audios)
	if len(indices) == 0 {
		return nil, ErrNoPairs
	}

	var missing []string
	pairs := make([]SourcePair, 0, len(indices))
	for _, idx := range indices {
		img, hasImage := images[idx]
		aud, hasAudio := audios[idx]
		if !hasImage {
			missing = append(missing, imageRole.label(idx))
		}
		if !hasAudio {
			missing = append(missing, audioRole.label(idx))
		}
		if hasImage && hasAudio {
			pairs = append(pairs, SourcePair{Index: idx, ImagePath: img, AudioPath: aud})
		}
	}
	if len(missing) > 0 {
		return nil, &IncompletePairsError{Missing: missing}
	}

	if o.verifyContent {
		for _, p := range pairs {
			if err := verifyKind(p.ImagePath, imageRole); err != nil {
				return nil, err
			}
			if err := verifyKind(p.AudioPath, audioRole); err != nil {
				return nil, err
			}
		}
	}

	return pairs, nil
}

func unionIndices(a, b map[int]string) []int {
	seen := make(map[int]struct{}, len(a)+len(b))
	for idx := range a {
		seen[idx] = struct{}{}
	}
	for idx := range b {
		seen[idx] = struct{}{}
	}
	out := make([]int, 0, len(seen))
	for idx := range seen {
		out = append(out, idx)
	}
	sort.Ints(out)
	return out
}
