package framestore

import (
	"fmt"
	"sync"
	"time"
)

// MemStore keeps frames in an in-memory ring buffer. It satisfies the same
// contract as DirStore so the streaming logic never needs to know whether
// frames come from disk or from an in-process producer.
type MemStore struct {
	mu     sync.RWMutex
	frames []memFrame
	seq    uint64
	cap    int
}

type memFrame struct {
	frame Frame
	data  []byte
}

// NewMemStore returns a store holding at most capacity frames. Put evicts the
// oldest frame once the ring is full.
func NewMemStore(capacity int) *MemStore {
	if capacity < 1 {
		capacity = 1
	}
	return &MemStore{cap: capacity}
}

// Put publishes a new frame and returns its identity. The payload is copied
// so the caller may reuse its buffer.
func (s *MemStore) Put(data []byte) Frame {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	f := Frame{
		ID:      fmt.Sprintf("frame_%010d", s.seq),
		ModTime: time.Now(),
		Size:    int64(len(data)),
	}
	payload := make([]byte, len(data))
	copy(payload, data)
	s.frames = append(s.frames, memFrame{frame: f, data: payload})
	if len(s.frames) > s.cap {
		s.frames = s.frames[len(s.frames)-s.cap:]
	}
	return f
}

// Latest returns the newest published frame, or ErrNoFrame.
func (s *MemStore) Latest() (Frame, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.frames) == 0 {
		return Frame{}, ErrNoFrame
	}
	return s.frames[len(s.frames)-1].frame, nil
}

// Read returns a copy of the identified frame's payload, or ErrNotFound once
// it has been evicted or pruned.
func (s *MemStore) Read(id string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.frames) - 1; i >= 0; i-- {
		if s.frames[i].frame.ID == id {
			data := make([]byte, len(s.frames[i].data))
			copy(data, s.frames[i].data)
			return data, nil
		}
	}
	return nil, ErrNotFound
}

// Prune drops all but the newest keep frames.
func (s *MemStore) Prune(keep int) (int, error) {
	if keep < 0 {
		keep = 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.frames) <= keep {
		return 0, nil
	}
	removed := len(s.frames) - keep
	s.frames = s.frames[removed:]
	return removed, nil
}

// Len reports how many frames are currently held.
func (s *MemStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.frames)
}
