// Package persist owns everything that touches disk for the dictionary:
// per-source parse caches, the eager whole-store snapshot, the SQLite
// paged store, and the one-time migration between the two. Every stored
// entity carries an explicit format version so evolution is detected
// instead of silently misread.
package persist

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ulikunitz/xz"

	"github.com/meikido/kotoba/core/lexicon"
)

// FormatVersion is the current on-disk format version shared by the
// cache, snapshot and paged-store encodings.
const FormatVersion = 1

// priorityPair is the serialized form of one priority-map binding.
// (form, reading)-keyed maps cannot be JSON object keys directly, so the
// maps are stored as explicit pair lists.
type priorityPair struct {
	Form     string  `json:"form"`
	Reading  string  `json:"reading"`
	Priority float64 `json:"priority"`
}

// frequencyPair is the serialized form of one frequency-map binding.
type frequencyPair struct {
	Form      string                 `json:"form"`
	Reading   string                 `json:"reading"`
	Frequency lexicon.FrequencyValue `json:"frequency"`
}

func encodePriorities(m map[lexicon.Key]float64) []priorityPair {
	pairs := make([]priorityPair, 0, len(m))
	for k, v := range m {
		pairs = append(pairs, priorityPair{Form: k.Form, Reading: k.Reading, Priority: v})
	}
	return pairs
}

func decodePriorities(pairs []priorityPair) map[lexicon.Key]float64 {
	m := make(map[lexicon.Key]float64, len(pairs))
	for _, p := range pairs {
		m[lexicon.Key{Form: p.Form, Reading: p.Reading}] = p.Priority
	}
	return m
}

func encodeFrequencies(m map[lexicon.Key]lexicon.FrequencyValue) []frequencyPair {
	pairs := make([]frequencyPair, 0, len(m))
	for k, v := range m {
		pairs = append(pairs, frequencyPair{Form: k.Form, Reading: k.Reading, Frequency: v})
	}
	return pairs
}

func decodeFrequencies(pairs []frequencyPair) map[lexicon.Key]lexicon.FrequencyValue {
	m := make(map[lexicon.Key]lexicon.FrequencyValue, len(pairs))
	for _, p := range pairs {
		m[lexicon.Key{Form: p.Form, Reading: p.Reading}] = p.Frequency
	}
	return m
}

// writeCompressedJSON writes v as xz-compressed JSON through a temp file
// and rename, so readers never observe a partial file.
func writeCompressedJSON(path string, v any) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".persist-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	xzw, err := xz.NewWriter(tmp)
	if err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	enc := json.NewEncoder(xzw)
	if err := enc.Encode(v); err != nil {
		xzw.Close()
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := xzw.Close(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}

// readCompressedJSON reads an xz-compressed JSON file into v.
func readCompressedJSON(path string, v any) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	xzr, err := xz.NewReader(f)
	if err != nil {
		return fmt.Errorf("xz reader: %w", err)
	}
	data, err := io.ReadAll(xzr)
	if err != nil {
		return fmt.Errorf("decompress: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}
