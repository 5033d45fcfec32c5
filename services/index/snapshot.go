package index

import (
	"sync/atomic"
	"time"

	"github.com/archcatalog/catalog/db/searchdb"
)

// Snapshot is one immutable generation of the index.
type Snapshot struct {
	generation uint64
	builtAt    time.Time
	entries    []Entry
	byID       map[string]*Entry
	titles     searchdb.Dictionary
}

func newSnapshot(generation uint64, builtAt time.Time, entries []Entry, titles searchdb.Dictionary) *Snapshot {
	snapshot := &Snapshot{
		generation: generation,
		builtAt:    builtAt,
		entries:    entries,
		byID:       make(map[string]*Entry, len(entries)),
		titles:     titles,
	}
	for i := range snapshot.entries {
		snapshot.byID[snapshot.entries[i].ID] = &snapshot.entries[i]
	}
	return snapshot
}

func (s *Snapshot) Generation() uint64 {
	return s.generation
}

// BuiltAt is the zero time for the initial empty snapshot.
func (s *Snapshot) BuiltAt() time.Time {
	return s.builtAt
}

// Entries returns the entries in build order. The slice is shared and must not be modified.
func (s *Snapshot) Entries() []Entry {
	return s.entries
}

func (s *Snapshot) Len() int {
	return len(s.entries)
}

func (s *Snapshot) Get(id string) (*Entry, bool) {
	entry, ok := s.byID[id]
	return entry, ok
}

// Titles may be nil when the title dictionary could not be built.
func (s *Snapshot) Titles() searchdb.Dictionary {
	return s.titles
}

// Index publishes snapshots. Readers load the current snapshot without locking and keep using
// it for the rest of their request, so they never see two generations at once.
type Index struct {
	current atomic.Pointer[Snapshot]
}

func New() *Index {
	idx := &Index{}
	idx.current.Store(newSnapshot(0, time.Time{}, nil, nil))
	return idx
}

func (i *Index) Snapshot() *Snapshot {
	return i.current.Load()
}

func (i *Index) Generation() uint64 {
	return i.Snapshot().Generation()
}

func (i *Index) Size() int {
	return i.Snapshot().Len()
}

func (i *Index) publish(snapshot *Snapshot) *Snapshot {
	return i.current.Swap(snapshot)
}
