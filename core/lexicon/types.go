// Package lexicon defines the canonical entry model and the in-memory
// entry store shared by all lexicon sources. Source adapters normalize
// their native record shapes into these types at the load boundary;
// nothing downstream ever sees a source-specific representation.
package lexicon

import "encoding/json"

// Entry is one lexical unit. Entries are immutable once constructed.
//
// ID is display and debugging identity only. It is populated from the
// source's native sequence number where one exists and from a content
// hash otherwise, and is never validated for uniqueness: all lookup and
// indexing uses an entry's position in the store.
type Entry struct {
	// ID is the display identity of the entry.
	ID int64 `json:"id"`

	// WrittenForms are the literal spellings, in source order. May be
	// empty, but never simultaneously empty with Readings.
	WrittenForms []string `json:"written_forms"`

	// Readings are the phonetic readings, in source order.
	Readings []string `json:"readings"`

	// Senses are the meaning groupings, in source order.
	Senses []Sense `json:"senses"`

	// Source is the title of the lexicon this entry came from.
	Source string `json:"source,omitempty"`

	// RawForms, RawReadings and RawSenses retain the source fragments
	// verbatim for rendering fidelity in downstream consumers.
	RawForms    json.RawMessage `json:"raw_forms,omitempty"`
	RawReadings json.RawMessage `json:"raw_readings,omitempty"`
	RawSenses   json.RawMessage `json:"raw_senses,omitempty"`
}

// Sense is one meaning grouping of an entry.
type Sense struct {
	// Glosses are the explanatory texts, already rendered to display
	// markup where the source format required it.
	Glosses []string `json:"glosses"`

	// PartOfSpeech holds the grammatical tags for this sense. When a
	// source omits them, the adapter carries forward the last explicit
	// value within the same record.
	PartOfSpeech []string `json:"pos"`
}

// Key identifies a (written form, reading) pair in the priority and
// frequency maps.
type Key struct {
	Form    string `json:"form"`
	Reading string `json:"reading"`
}

// FrequencyValue is the frequency metadata attached to a Key. Value is
// the numeric rank or count when the source supplied one; Display is the
// source's preferred presentation string (may equal the number).
type FrequencyValue struct {
	Value   float64 `json:"value"`
	Display string  `json:"display,omitempty"`
}

// Rule is one opaque morphological rule record. The store only carries
// these for the external deconjugation component; it never interprets
// them.
type Rule = json.RawMessage

// SourceResult is the output of one adapter invocation: the normalized
// entries plus the source's frequency metadata.
type SourceResult struct {
	// Title is the declared title of the source.
	Title string `json:"title"`

	// Entries are the normalized entries in source order.
	Entries []Entry `json:"entries"`

	// Frequency maps (term, reading) pairs to frequency values.
	Frequency map[Key]FrequencyValue `json:"-"`
}
