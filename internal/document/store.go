// Package document holds the current text snapshot and version counter for
// every tracked project file.
package document

import (
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog/log"
)

// Snapshot is an immutable capture of a file's text at one point in time.
// Version starts at 0 on first acquisition and increases strictly on every
// successful update of the same path.
type Snapshot struct {
	Path    string
	Text    string
	Version int
}

// Store owns the snapshots. Snapshots are registered once via Acquire and
// replaced wholesale via Update; readers only ever see complete snapshots.
type Store struct {
	mu    sync.Mutex
	docs  map[string]Snapshot
	locks map[string]*sync.Mutex
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		docs:  make(map[string]Snapshot),
		locks: make(map[string]*sync.Mutex),
	}
}

// Acquire reads the file fresh and registers it at version 0. source, when
// non-empty, is an alternate backing path to read from while path remains the
// logical identity (lets an editor push unsaved buffer contents without
// writing the real file). If path is already tracked, Acquire behaves as
// Update.
func (s *Store) Acquire(path, source string) (Snapshot, error) {
	return s.load(path, source)
}

// Update re-reads the file and bumps the version strictly if the path was
// previously acquired; otherwise it behaves as Acquire. A missing or
// unreadable backing file surfaces the read error; it never silently
// produces an empty snapshot.
func (s *Store) Update(path, source string) (Snapshot, error) {
	return s.load(path, source)
}

func (s *Store) load(path, source string) (Snapshot, error) {
	backing := path
	if source != "" {
		backing = source
	}
	data, err := os.ReadFile(backing)
	if err != nil {
		return Snapshot{}, fmt.Errorf("document: read %s: %w", backing, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{Path: path, Text: string(data)}
	if prev, ok := s.docs[path]; ok {
		snap.Version = prev.Version + 1
	}
	s.docs[path] = snap

	log.Debug().Str("file", path).Str("source", backing).Int("version", snap.Version).Msg("document: snapshot loaded")
	return snap, nil
}

// Get returns the current snapshot for path, if tracked.
func (s *Store) Get(path string) (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.docs[path]
	return snap, ok
}

// Paths returns every tracked path.
func (s *Store) Paths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	paths := make([]string, 0, len(s.docs))
	for p := range s.docs {
		paths = append(paths, p)
	}
	return paths
}

// LockPath serializes mutating operations on one logical file. Operations on
// distinct paths proceed concurrently; two overlapping reload or
// organize-imports requests for the same path run strictly in turn. The
// returned function releases the lock.
func (s *Store) LockPath(path string) func() {
	s.mu.Lock()
	l, ok := s.locks[path]
	if !ok {
		l = &sync.Mutex{}
		s.locks[path] = l
	}
	s.mu.Unlock()

	l.Lock()
	return l.Unlock
}
