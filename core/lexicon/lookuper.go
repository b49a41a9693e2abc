package lexicon

// Lookuper is the lookup contract shared by the in-memory store, the
// paged-store backend and the optional network lookup client. Consumers
// of lookup results never branch on which implementation is active.
type Lookuper interface {
	// LookupWritten returns the entries carrying the exact written form,
	// in index order. Unknown forms yield an empty slice, never an error.
	LookupWritten(form string) []Entry

	// LookupReading returns the entries carrying the exact reading.
	LookupReading(reading string) []Entry

	// PriorityOf returns the priority for a (written form, reading) pair
	// with an explicit not-found result.
	PriorityOf(form, reading string) (float64, bool)

	// FrequencyOf returns the frequency value for a (written form,
	// reading) pair with an explicit not-found result.
	FrequencyOf(form, reading string) (FrequencyValue, bool)
}

var _ Lookuper = (*Store)(nil)
