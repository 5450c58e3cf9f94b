// Package framestore abstracts "the most recent captured frame" over either a
// directory of timestamped JPEG files written by an external transcoder or an
// in-memory ring buffer.
package framestore

import (
	"errors"
	"time"
)

var (
	// ErrNoFrame is returned by Latest when no frame artifact exists yet.
	ErrNoFrame = errors.New("no frame available")
	// ErrNotFound is returned by Read when the frame was deleted or replaced
	// between Latest and Read. Callers treat it as "no frame this tick".
	ErrNotFound = errors.New("frame not found")
)

// Frame identifies one JPEG artifact. ID is the filename (or sequence name
// for in-memory frames) and is comparable: a later frame never compares
// before an earlier one under (ModTime, ID) ordering.
type Frame struct {
	ID      string
	ModTime time.Time
	Size    int64
}

// NewerThan reports whether f was produced after other.
// Ties on modification time are broken by the lexical order of the IDs,
// which embed a sortable timestamp.
func (f Frame) NewerThan(other Frame) bool {
	if f.ModTime.Equal(other.ModTime) {
		return f.ID > other.ID
	}
	return f.ModTime.After(other.ModTime)
}

// Store is the contract shared by the directory-backed store and the
// in-memory ring. A single producer appends frames; many stream writers read
// them concurrently.
type Store interface {
	// Latest returns the newest frame, or ErrNoFrame.
	Latest() (Frame, error)
	// Read returns the full payload of the identified frame, or ErrNotFound
	// if it was pruned or replaced in the meantime.
	Read(id string) ([]byte, error)
	// Prune deletes all but the newest keep frames, best-effort, and returns
	// how many were removed.
	Prune(keep int) (int, error)
}
