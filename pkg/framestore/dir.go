package framestore

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DirStore reads frames from a directory populated by the external
// transcoder. Files are named <prefix>_<timestamp>.jpg; anything else in the
// directory is ignored.
type DirStore struct {
	dir    string
	prefix string
}

// NewDirStore returns a store over dir. The directory is created if needed so
// the transcoder has somewhere to write before the first frame arrives.
func NewDirStore(dir, prefix string) (*DirStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create frame directory: %w", err)
	}
	return &DirStore{dir: dir, prefix: prefix}, nil
}

// Dir returns the directory the store watches.
func (s *DirStore) Dir() string { return s.dir }

func (s *DirStore) isFrameName(name string) bool {
	return strings.HasPrefix(name, s.prefix+"_") && strings.HasSuffix(name, ".jpg")
}

// list returns all frame artifacts sorted newest first.
// Entries that vanish mid-listing are skipped, not errors.
func (s *DirStore) list() ([]Frame, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read frame directory: %w", err)
	}
	frames := make([]Frame, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !s.isFrameName(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		frames = append(frames, Frame{
			ID:      entry.Name(),
			ModTime: info.ModTime(),
			Size:    info.Size(),
		})
	}
	sort.Slice(frames, func(i, j int) bool {
		return frames[i].NewerThan(frames[j])
	})
	return frames, nil
}

// Latest returns the newest frame by modification time, ties broken by the
// timestamp embedded in the filename.
func (s *DirStore) Latest() (Frame, error) {
	frames, err := s.list()
	if err != nil {
		return Frame{}, err
	}
	if len(frames) == 0 {
		return Frame{}, ErrNoFrame
	}
	return frames[0], nil
}

// Read returns the frame payload. A frame deleted or replaced between Latest
// and Read resolves to ErrNotFound.
func (s *DirStore) Read(id string) ([]byte, error) {
	if id != filepath.Base(id) || !s.isFrameName(id) {
		return nil, ErrNotFound
	}
	data, err := os.ReadFile(filepath.Join(s.dir, id))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read frame %s: %w", id, err)
	}
	return data, nil
}

// Prune deletes all but the newest keep frames. Individual delete failures
// are ignored; the count of successful deletions is returned.
func (s *DirStore) Prune(keep int) (int, error) {
	if keep < 0 {
		keep = 0
	}
	frames, err := s.list()
	if err != nil {
		return 0, err
	}
	if len(frames) <= keep {
		return 0, nil
	}
	removed := 0
	for _, f := range frames[keep:] {
		if err := os.Remove(filepath.Join(s.dir, f.ID)); err == nil {
			removed++
		}
	}
	return removed, nil
}

// Clear removes every frame artifact, used by shutdown cleanup.
func (s *DirStore) Clear() {
	frames, err := s.list()
	if err != nil {
		return
	}
	for _, f := range frames {
		_ = os.Remove(filepath.Join(s.dir, f.ID))
	}
}
