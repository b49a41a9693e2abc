package persist

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/meikido/kotoba/core/lexicon"
)

// populatedStore builds a store with entries, metadata and rules for
// persistence tests.
func populatedStore(t *testing.T) *lexicon.Store {
	t.Helper()
	s := lexicon.NewStore()
	entries := []lexicon.Entry{
		{
			ID:           1,
			WrittenForms: []string{"猫"},
			Readings:     []string{"ねこ"},
			Senses:       []lexicon.Sense{{Glosses: []string{"cat"}, PartOfSpeech: []string{"n"}}},
		},
		{
			ID:           2,
			WrittenForms: []string{"犬", "狗"},
			Readings:     []string{"いぬ"},
			Senses:       []lexicon.Sense{{Glosses: []string{"dog"}}},
		},
	}
	freq := map[lexicon.Key]lexicon.FrequencyValue{
		{Form: "猫", Reading: "ねこ"}: {Value: 120, Display: "120"},
	}
	if err := s.Merge(entries, freq); err != nil {
		t.Fatal(err)
	}
	if err := s.SetPriorities(map[lexicon.Key]float64{{Form: "猫", Reading: "ねこ"}: 2.5}); err != nil {
		t.Fatal(err)
	}
	if err := s.SetRules([]lexicon.Rule{json.RawMessage(`{"dec_end":"ない"}`)}); err != nil {
		t.Fatal(err)
	}
	return s
}

// TestSnapshot_RoundTrip verifies the whole store state survives a
// write/read cycle and the restored store is frozen.
func TestSnapshot_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dictionary.snap")
	store := populatedStore(t)

	if err := WriteSnapshot(path, store); err != nil {
		t.Fatal(err)
	}
	loaded, err := ReadSnapshot(path)
	if err != nil {
		t.Fatal(err)
	}

	if !loaded.Frozen() {
		t.Error("restored store should be frozen")
	}
	if loaded.EntryCount() != store.EntryCount() {
		t.Fatalf("entry count %d != %d", loaded.EntryCount(), store.EntryCount())
	}
	if err := loaded.Validate(); err != nil {
		t.Errorf("restored store fails invariants: %v", err)
	}

	hits := loaded.LookupWritten("犬")
	if len(hits) != 1 || hits[0].ID != 2 {
		t.Errorf("LookupWritten(犬) = %+v", hits)
	}
	if hits := loaded.LookupReading("ねこ"); len(hits) != 1 || hits[0].ID != 1 {
		t.Errorf("LookupReading(ねこ) = %+v", hits)
	}

	if v, ok := loaded.PriorityOf("猫", "ねこ"); !ok || v != 2.5 {
		t.Errorf("PriorityOf = %v, %v", v, ok)
	}
	if v, ok := loaded.FrequencyOf("猫", "ねこ"); !ok || v.Value != 120 || v.Display != "120" {
		t.Errorf("FrequencyOf = %+v, %v", v, ok)
	}
	if rules := loaded.Rules(); len(rules) != 1 {
		t.Errorf("Rules() = %d records, want 1", len(rules))
	}
}

// TestReadSnapshot_VersionMismatch verifies a snapshot from a different
// format version is rejected instead of silently misread.
func TestReadSnapshot_VersionMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dictionary.snap")
	env := snapshotEnvelope{Version: FormatVersion + 1}
	if err := writeCompressedJSON(path, env); err != nil {
		t.Fatal(err)
	}

	if _, err := ReadSnapshot(path); err == nil {
		t.Error("snapshot with unsupported version should fail to load")
	}
}

// TestReadSnapshot_Missing verifies a missing snapshot file errors.
func TestReadSnapshot_Missing(t *testing.T) {
	if _, err := ReadSnapshot(filepath.Join(t.TempDir(), "absent.snap")); err == nil {
		t.Error("ReadSnapshot on missing file should fail")
	}
}
