package engine

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ArtifactSet tracks every transient file one pipeline run creates.
// Paths are append-only; Release deletes each of them exactly once.
type ArtifactSet struct {
	mu       sync.Mutex
	dir      string
	paths    []string
	released bool
	remove   func(name string) error
}

// NewArtifactSet returns a set whose generated paths live in dir.
func NewArtifactSet(dir string) *ArtifactSet {
	return &ArtifactSet{dir: dir, remove: os.Remove}
}

// UniqueName builds a collision-resistant file name: prefix-<unix millis>-<random><ext>.
func UniqueName(prefix, ext string) string {
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	rnd := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return fmt.Sprintf("%s-%d-%s%s", prefix, time.Now().UnixMilli(), rnd, ext)
}

// NewPath generates a unique path in the set's directory and tracks it
// before anything is written to it.
func (s *ArtifactSet) NewPath(prefix, ext string) string {
	p := filepath.Join(s.dir, UniqueName(prefix, ext))
	s.Track(p)
	return p
}

// Track adds an existing or future file to the set.
func (s *ArtifactSet) Track(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paths = append(s.paths, path)
}

// Paths returns the tracked paths in creation order.
func (s *ArtifactSet) Paths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.paths...)
}

// Release deletes every tracked path. Missing files are skipped; other
// deletion errors are logged, never returned. Later calls are no-ops.
func (s *ArtifactSet) Release() (removed int) {
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return 0
	}
	s.released = true
	paths := s.paths
	s.mu.Unlock()

	for _, p := range paths {
		err := s.remove(p)
		switch {
		case err == nil:
			removed++
		case errors.Is(err, fs.ErrNotExist):
		default:
			metrics.CleanupErrors.Add(1)
			slog.Warn("cleanup: failed to remove temp file", slog.String("path", p), slog.Any("error", err))
		}
	}
	metrics.ArtifactsRemoved.Add(int64(removed))
	return removed
}
