package vision

import (
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// BoardFrame is a rectified board image: the canonical grayscale
// square plus its capture timestamp. Frames are ephemeral — produced
// per detection attempt and released immediately unless promoted to
// the reference store.
type BoardFrame struct {
	Gray       gocv.Mat
	CapturedAt time.Time
}

// Clone returns an independent copy of the frame.
func (f BoardFrame) Clone() BoardFrame {
	return BoardFrame{Gray: f.Gray.Clone(), CapturedAt: f.CapturedAt}
}

// Empty reports whether the frame holds no image data.
func (f BoardFrame) Empty() bool {
	return f.Gray.Empty()
}

// Close releases the underlying image buffer.
func (f *BoardFrame) Close() {
	if !f.Gray.Empty() {
		f.Gray.Close()
	}
}

// ReferenceStore holds the single last-confirmed board frame for an
// active session. The frame is replaced by value, never mutated in
// place, so a reader can never observe a frame mid-update.
type ReferenceStore struct {
	mu    sync.RWMutex
	frame *BoardFrame
}

// NewReferenceStore returns an empty store.
func NewReferenceStore() *ReferenceStore {
	return &ReferenceStore{}
}

// Replace installs a copy of the given frame as the new reference and
// releases the previous one. The caller keeps ownership of frame.
func (s *ReferenceStore) Replace(frame BoardFrame) {
	clone := frame.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.frame != nil {
		s.frame.Close()
	}
	s.frame = &clone
}

// Snapshot returns an independent copy of the current reference, or
// false when no reference has been captured yet. The caller owns the
// returned frame and must close it.
func (s *ReferenceStore) Snapshot() (BoardFrame, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.frame == nil {
		return BoardFrame{}, false
	}
	return s.frame.Clone(), true
}

// HasReference reports whether a reference frame is installed.
func (s *ReferenceStore) HasReference() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.frame != nil
}

// Clear releases the reference, returning the store to its initial
// state. Called when the session ends.
func (s *ReferenceStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.frame != nil {
		s.frame.Close()
		s.frame = nil
	}
}
