// Package store keeps the table of discovered node_modules folders. It is the
// single place where discovery, sizing and removal results are merged, so
// every reader sees a consistent record.
package store

import (
	"errors"
	"sync"
)

var (
	ErrStaleUpdate     = errors.New("no record for this folder")
	ErrAlreadyRemoved  = errors.New("folder was already removed")
	ErrRemovalInFlight = errors.New("folder is already being removed")
	ErrSizePending     = errors.New("folder size has not been calculated yet")
)

type State int

const (
	Discovered State = iota
	Sized
	Removing
	Removed
)

func (s State) String() string {
	switch s {
	case Discovered:
		return "discovered"
	case Sized:
		return "sized"
	case Removing:
		return "removing"
	case Removed:
		return "removed"
	}

	return "unknown"
}

// Folder is a snapshot of one record. Values handed out by the store are
// copies and never change underneath the caller.
type Folder struct {
	Path       string
	ID         string
	Index      int
	SizeBytes  int64
	Sized      bool
	SizeFailed bool
	State      State
	RemoveErr  error

	// state to return to when a removal fails
	previous State
}

func (f Folder) Removed() bool {
	return f.State == Removed
}

// Stats summarizes the table for display headers.
type Stats struct {
	Found        int
	Sized        int
	Removed      int
	Removing     int
	TotalBytes   int64
	RemovedBytes int64
}

type Store struct {
	mu      sync.Mutex
	folders map[string]*Folder
	// folder ID to path
	paths map[string]string
	order []string
}

func New() *Store {
	return &Store{folders: map[string]*Folder{}, paths: map[string]string{}}
}

// RecordDiscovery adds a record for path. It reports false and returns the
// existing record when path was already known.
func (s *Store) RecordDiscovery(path string) (Folder, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.folders[path]; ok {
		return *existing, false
	}

	folder := &Folder{
		Path:  path,
		ID:    FolderID(path),
		Index: len(s.order),
		State: Discovered,
	}

	s.folders[path] = folder
	s.paths[folder.ID] = path
	s.order = append(s.order, path)

	return *folder, true
}

// RecordSize stores the size of path. The first size wins; later calls
// return the record unchanged.
func (s *Store) RecordSize(path string, sizeBytes int64) (Folder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	folder, ok := s.folders[path]

	if !ok {
		return Folder{}, ErrStaleUpdate
	}

	if folder.Sized {
		return *folder, nil
	}

	folder.SizeBytes = sizeBytes
	folder.Sized = true
	folder.SizeFailed = false

	switch folder.State {
	case Discovered:
		folder.State = Sized
	case Removing:
		folder.previous = Sized
	}

	return *folder, nil
}

// RecordSizeFailed marks path as impossible to size for this run.
func (s *Store) RecordSizeFailed(path string) (Folder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	folder, ok := s.folders[path]

	if !ok {
		return Folder{}, ErrStaleUpdate
	}

	if !folder.Sized {
		folder.SizeFailed = true
	}

	return *folder, nil
}

// BeginRemoval moves path to Removing. With requireSize a folder must be
// sized first.
func (s *Store) BeginRemoval(path string, requireSize bool) (Folder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	folder, ok := s.folders[path]

	if !ok {
		return Folder{}, ErrStaleUpdate
	}

	switch {
	case folder.State == Removed:
		return *folder, ErrAlreadyRemoved
	case folder.State == Removing:
		return *folder, ErrRemovalInFlight
	case requireSize && !folder.Sized:
		return *folder, ErrSizePending
	}

	folder.previous = folder.State
	folder.State = Removing
	folder.RemoveErr = nil

	return *folder, nil
}

func (s *Store) RecordRemoved(path string) (Folder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	folder, ok := s.folders[path]

	if !ok {
		return Folder{}, ErrStaleUpdate
	}

	if folder.State == Removed {
		return *folder, ErrAlreadyRemoved
	}

	folder.State = Removed
	folder.RemoveErr = nil

	return *folder, nil
}

// AbortRemoval puts path back into the state it had before BeginRemoval and
// remembers why the removal failed.
func (s *Store) AbortRemoval(path string, removeErr error) (Folder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	folder, ok := s.folders[path]

	if !ok {
		return Folder{}, ErrStaleUpdate
	}

	if folder.State != Removing {
		return *folder, nil
	}

	folder.State = folder.previous
	folder.RemoveErr = removeErr

	return *folder, nil
}

func (s *Store) Get(path string) (Folder, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	folder, ok := s.folders[path]

	if !ok {
		return Folder{}, false
	}

	return *folder, true
}

// ByID returns the record whose FolderID is id.
func (s *Store) ByID(id string) (Folder, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path, ok := s.paths[id]

	if !ok {
		return Folder{}, false
	}

	return *s.folders[path], true
}

// Snapshot returns copies of every record in discovery order.
func (s *Store) Snapshot() []Folder {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := make([]Folder, len(s.order))

	for i, path := range s.order {
		snapshot[i] = *s.folders[path]
	}

	return snapshot
}

// At returns the record at discovery index i.
func (s *Store) At(i int) (Folder, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i < 0 || i >= len(s.order) {
		return Folder{}, false
	}

	return *s.folders[s.order[i]], true
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.order)
}

func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := Stats{Found: len(s.order)}

	for _, folder := range s.folders {
		if folder.Sized {
			stats.Sized++
			stats.TotalBytes += folder.SizeBytes
		}

		switch folder.State {
		case Removing:
			stats.Removing++
		case Removed:
			stats.Removed++
			stats.RemovedBytes += folder.SizeBytes
		}
	}

	return stats
}
