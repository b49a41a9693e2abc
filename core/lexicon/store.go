package lexicon

import (
	"fmt"
	"sync"
)

// Store is the unified entry store: the canonical entry sequence plus
// the reverse indices and auxiliary metadata maps.
//
// A Store is populated once during ingestion and then frozen. Merge is
// the single serialization point of the parallel import pipeline; every
// other method is read-only. Reading a frozen store from multiple
// goroutines needs no locking.
type Store struct {
	mu     sync.Mutex
	frozen bool

	entries []Entry

	// writtenIndex and readingIndex map a form to the positions of the
	// entries carrying it, in insertion order. Positions are assigned by
	// append order and never reused or renumbered within a load session.
	writtenIndex map[string][]int
	readingIndex map[string][]int

	rules       []Rule
	priorities  map[Key]float64
	frequencies map[Key]FrequencyValue
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		writtenIndex: make(map[string][]int),
		readingIndex: make(map[string][]int),
		priorities:   make(map[Key]float64),
		frequencies:  make(map[Key]FrequencyValue),
	}
}

// Merge appends entries to the store, registers their positions under
// every written form and reading, and folds the frequency map in with
// last-writer-wins semantics. Merges never interleave: the store's lock
// is the single-writer boundary of the ingestion pipeline.
func (s *Store) Merge(entries []Entry, frequency map[Key]FrequencyValue) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.frozen {
		return fmt.Errorf("lexicon: merge into frozen store")
	}

	for _, e := range entries {
		pos := len(s.entries)
		s.entries = append(s.entries, e)
		for _, form := range e.WrittenForms {
			s.writtenIndex[form] = append(s.writtenIndex[form], pos)
		}
		for _, reading := range e.Readings {
			s.readingIndex[reading] = append(s.readingIndex[reading], pos)
		}
	}
	for k, v := range frequency {
		s.frequencies[k] = v
	}
	return nil
}

// SetRules replaces the store's morphological rule set. The last
// successful import wins; rule sets are never merged.
func (s *Store) SetRules(rules []Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frozen {
		return fmt.Errorf("lexicon: set rules on frozen store")
	}
	s.rules = rules
	return nil
}

// SetPriorities applies priority values with last-writer-wins semantics
// on key collisions across sources.
func (s *Store) SetPriorities(priorities map[Key]float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frozen {
		return fmt.Errorf("lexicon: set priorities on frozen store")
	}
	for k, v := range priorities {
		s.priorities[k] = v
	}
	return nil
}

// Freeze marks the end of ingestion. The store is read-only afterwards;
// a reload requires discarding and rebuilding it, not mutating in place.
func (s *Store) Freeze() {
	s.mu.Lock()
	s.frozen = true
	s.mu.Unlock()
}

// Frozen reports whether ingestion has completed.
func (s *Store) Frozen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frozen
}

// EntryCount returns the number of entries in the store.
func (s *Store) EntryCount() int {
	return len(s.entries)
}

// EntryAt returns the entry at the given position.
func (s *Store) EntryAt(pos int) (Entry, error) {
	if pos < 0 || pos >= len(s.entries) {
		return Entry{}, fmt.Errorf("lexicon: position %d out of range [0,%d)", pos, len(s.entries))
	}
	return s.entries[pos], nil
}

// Iterate calls fn for every entry in position order. Iteration stops at
// the first error, which is returned.
func (s *Store) Iterate(fn func(pos int, e Entry) error) error {
	for i, e := range s.entries {
		if err := fn(i, e); err != nil {
			return err
		}
	}
	return nil
}

// LookupWritten returns the entries carrying the written form, in index
// order. An unknown form yields an empty slice, never an error.
func (s *Store) LookupWritten(form string) []Entry {
	return s.resolve(s.writtenIndex[form])
}

// LookupReading returns the entries carrying the reading, in index
// order. An unknown reading yields an empty slice, never an error.
func (s *Store) LookupReading(reading string) []Entry {
	return s.resolve(s.readingIndex[reading])
}

func (s *Store) resolve(positions []int) []Entry {
	if len(positions) == 0 {
		return nil
	}
	entries := make([]Entry, 0, len(positions))
	for _, pos := range positions {
		entries = append(entries, s.entries[pos])
	}
	return entries
}

// WrittenPositions returns the positions indexed under the written form.
func (s *Store) WrittenPositions(form string) []int {
	return s.writtenIndex[form]
}

// ReadingPositions returns the positions indexed under the reading.
func (s *Store) ReadingPositions(reading string) []int {
	return s.readingIndex[reading]
}

// PriorityOf returns the priority for a (written form, reading) pair and
// whether one is recorded. There is no default guess.
func (s *Store) PriorityOf(form, reading string) (float64, bool) {
	v, ok := s.priorities[Key{Form: form, Reading: reading}]
	return v, ok
}

// FrequencyOf returns the frequency value for a (written form, reading)
// pair and whether one is recorded.
func (s *Store) FrequencyOf(form, reading string) (FrequencyValue, bool) {
	v, ok := s.frequencies[Key{Form: form, Reading: reading}]
	return v, ok
}

// Rules returns the opaque rule set for the external deconjugation
// component.
func (s *Store) Rules() []Rule {
	return s.rules
}

// Snapshot exposes the full store state for persistence. The returned
// maps and slices are the store's own; callers must treat them as
// read-only.
func (s *Store) Snapshot() StoreState {
	return StoreState{
		Entries:      s.entries,
		WrittenIndex: s.writtenIndex,
		ReadingIndex: s.readingIndex,
		Rules:        s.rules,
		Priorities:   s.priorities,
		Frequencies:  s.frequencies,
	}
}

// Restore replaces the store's state wholesale and freezes it. It is the
// snapshot-load counterpart of Snapshot.
func (s *Store) Restore(state StoreState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = state.Entries
	s.writtenIndex = state.WrittenIndex
	s.readingIndex = state.ReadingIndex
	s.rules = state.Rules
	s.priorities = state.Priorities
	s.frequencies = state.Frequencies
	if s.writtenIndex == nil {
		s.writtenIndex = make(map[string][]int)
	}
	if s.readingIndex == nil {
		s.readingIndex = make(map[string][]int)
	}
	if s.priorities == nil {
		s.priorities = make(map[Key]float64)
	}
	if s.frequencies == nil {
		s.frequencies = make(map[Key]FrequencyValue)
	}
	s.frozen = true
}

// StoreState is the complete mutable state of a Store, exposed for the
// persistence layer.
type StoreState struct {
	Entries      []Entry
	WrittenIndex map[string][]int
	ReadingIndex map[string][]int
	Rules        []Rule
	Priorities   map[Key]float64
	Frequencies  map[Key]FrequencyValue
}

// Validate checks the index invariants: every indexed position must
// reference a valid entry that actually carries the index key.
func (s *Store) Validate() error {
	for form, positions := range s.writtenIndex {
		for _, pos := range positions {
			if pos < 0 || pos >= len(s.entries) {
				return fmt.Errorf("lexicon: written index %q references invalid position %d", form, pos)
			}
			if !contains(s.entries[pos].WrittenForms, form) {
				return fmt.Errorf("lexicon: entry at %d does not carry written form %q", pos, form)
			}
		}
	}
	for reading, positions := range s.readingIndex {
		for _, pos := range positions {
			if pos < 0 || pos >= len(s.entries) {
				return fmt.Errorf("lexicon: reading index %q references invalid position %d", reading, pos)
			}
			if !contains(s.entries[pos].Readings, reading) {
				return fmt.Errorf("lexicon: entry at %d does not carry reading %q", pos, reading)
			}
		}
	}
	return nil
}

func contains(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}
