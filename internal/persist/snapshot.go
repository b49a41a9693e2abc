package persist

import (
	"fmt"

	"github.com/meikido/kotoba/core/lexicon"
)

// snapshotEnvelope is the on-disk shape of the eager whole-store
// snapshot: one versioned unit holding the entries, both indices and
// every metadata table.
type snapshotEnvelope struct {
	Version      int              `json:"version"`
	Entries      []lexicon.Entry  `json:"entries"`
	WrittenIndex map[string][]int `json:"written_index"`
	ReadingIndex map[string][]int `json:"reading_index"`
	Rules        []lexicon.Rule   `json:"rules"`
	Priorities   []priorityPair   `json:"priorities"`
	Frequencies  []frequencyPair  `json:"frequencies"`
}

// WriteSnapshot serializes the complete store state to path as one
// compressed unit.
func WriteSnapshot(path string, store *lexicon.Store) error {
	state := store.Snapshot()
	env := snapshotEnvelope{
		Version:      FormatVersion,
		Entries:      state.Entries,
		WrittenIndex: state.WrittenIndex,
		ReadingIndex: state.ReadingIndex,
		Rules:        state.Rules,
		Priorities:   encodePriorities(state.Priorities),
		Frequencies:  encodeFrequencies(state.Frequencies),
	}
	if err := writeCompressedJSON(path, env); err != nil {
		return fmt.Errorf("write snapshot %s: %w", path, err)
	}
	return nil
}

// ReadSnapshot deserializes a snapshot wholesale into a frozen store.
func ReadSnapshot(path string) (*lexicon.Store, error) {
	var env snapshotEnvelope
	if err := readCompressedJSON(path, &env); err != nil {
		return nil, fmt.Errorf("read snapshot %s: %w", path, err)
	}
	if env.Version != FormatVersion {
		return nil, fmt.Errorf("read snapshot %s: unsupported format version %d", path, env.Version)
	}

	store := lexicon.NewStore()
	store.Restore(lexicon.StoreState{
		Entries:      env.Entries,
		WrittenIndex: env.WrittenIndex,
		ReadingIndex: env.ReadingIndex,
		Rules:        env.Rules,
		Priorities:   decodePriorities(env.Priorities),
		Frequencies:  decodeFrequencies(env.Frequencies),
	})
	return store, nil
}
