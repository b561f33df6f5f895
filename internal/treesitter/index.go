package treesitter

import (
	"sort"
	"sync"
)

// Index holds one FileIndex per tracked file. It lives for the whole process;
// a file's index is replaced atomically and in full on every reload, never
// patched incrementally.
type Index struct {
	mu    sync.RWMutex
	files map[string]FileIndex
}

// NewIndex creates an empty index.
func NewIndex() *Index {
	return &Index{files: make(map[string]FileIndex)}
}

// ReplaceFile discards the prior index for path and installs one built from
// exports. A file with no exports stays tracked with an empty index.
func (idx *Index) ReplaceFile(path string, exports []Export) {
	fi := make(FileIndex, len(exports))
	for _, e := range exports {
		fi[e.Name] = e
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.files[path] = fi
}

// File returns the index for one path, if tracked.
func (idx *Index) File(path string) (FileIndex, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	fi, ok := idx.files[path]
	return fi, ok
}

// Len returns the number of tracked files.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.files)
}

// Definitions flattens every tracked file's exports into one sequence,
// ordered by file then position so responses are deterministic.
func (idx *Index) Definitions() []Definition {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var defs []Definition
	for path, fi := range idx.files {
		for _, e := range fi {
			defs = append(defs, Definition{
				Name:    e.Name,
				File:    path,
				Pos:     e.Pos,
				Default: e.Default,
			})
		}
	}

	sort.Slice(defs, func(i, j int) bool {
		if defs[i].File != defs[j].File {
			return defs[i].File < defs[j].File
		}
		return defs[i].Pos < defs[j].Pos
	})
	return defs
}
