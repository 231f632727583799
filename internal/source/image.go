package source

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
)

type role struct {
	prefix  string
	pattern *regexp.Regexp
}

var (
	imageRole = role{
		prefix:  "image",
		pattern: regexp.MustCompile(`(?i)^image_(\d{3,})\.(jpg|jpeg|png|heic)$`),
	}
	audioRole = role{
		prefix:  "audio",
		pattern: regexp.MustCompile(`(?i)^audio_(\d{3,})\.(mp3|wav|m4a|ogg|aac)$`),
	}
)

func (r role) label(idx int) string {
	return fmt.Sprintf("%s_%03d", r.prefix, idx)
}

// scanDir maps index to path for every file in dir whose
// name follows the role's naming convention. Subdirectories are ignored.
func scanDir(dir string, r role) (map[int]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s directory: %w", ErrDiscovery, r.prefix, err)
	}

	found := make(map[int]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		m := r.pattern.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		idx, err := strconv.Atoi(m[1])
		if err != nil {
			// only reachable for indices that overflow int
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if prev, ok := found[idx]; ok {
			return nil, fmt.Errorf("%w: %s and %s", ErrDuplicateIndex, filepath.Base(prev), entry.Name())
		}
		found[idx] = path
	}
	return found, nil
}
