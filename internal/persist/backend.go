package persist

import "github.com/meikido/kotoba/core/lexicon"

// Backend is the ordered-entry access contract both storage shapes
// satisfy: the eager in-memory store and the lazy paged store. Consumers
// never branch on which backend is active.
type Backend interface {
	// EntryCount returns the number of entries.
	EntryCount() int

	// EntryAt returns the entry at a position, bounds-checked.
	EntryAt(pos int) (lexicon.Entry, error)

	// Iterate produces entries in position order. Implementations fetch
	// in batches rather than one round trip per entry.
	Iterate(fn func(pos int, e lexicon.Entry) error) error
}

// Dictionary is the full read contract of a loaded dictionary: ordered
// entry access, exact-form lookup, and the opaque rule set for the
// external deconjugation component.
type Dictionary interface {
	Backend
	lexicon.Lookuper

	// Rules returns the morphological rule records.
	Rules() []lexicon.Rule
}

var (
	_ Dictionary = (*lexicon.Store)(nil)
	_ Dictionary = (*PagedStore)(nil)
)
