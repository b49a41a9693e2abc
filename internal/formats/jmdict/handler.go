// Package jmdict parses the bundled structured lexicon: JSON files of
// entry records plus the deconjugation-rule and priority-list files that
// ship next to them. It is schema-aware for this one source, not a
// generic JSON loader.
package jmdict

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/meikido/kotoba/core/lexicon"
)

// SourceTitle identifies the bundled lexicon in entry provenance.
const SourceTitle = "JMdict"

// record is the native shape of one bundled-lexicon entry.
type record struct {
	Seq    int64           `json:"seq"`
	KEle   []formElement   `json:"k_ele"`
	REle   []readElement   `json:"r_ele"`
	Sense  []senseElement  `json:"sense"`
	RawK   json.RawMessage `json:"-"`
	RawR   json.RawMessage `json:"-"`
	RawSns json.RawMessage `json:"-"`
}

type formElement struct {
	Keb string `json:"keb"`
}

type readElement struct {
	Reb string `json:"reb"`
}

type senseElement struct {
	Gloss []string `json:"gloss"`
	POS   []string `json:"pos"`
}

// rawRecord captures the source fragments verbatim alongside the typed
// decode, so entries retain them for rendering fidelity.
type rawRecord struct {
	KEle  json.RawMessage `json:"k_ele"`
	REle  json.RawMessage `json:"r_ele"`
	Sense json.RawMessage `json:"sense"`
}

// Parse loads one or more bundled-lexicon JSON files into canonical
// entries. Paths are processed in sorted order so entry positions are
// reproducible for an unmodified file set. Records with no written form,
// no reading, or no non-empty sense are dropped.
func Parse(paths []string) (*lexicon.SourceResult, error) {
	sorted := append([]string(nil), paths...)
	sort.Strings(sorted)

	var entries []lexicon.Entry
	for _, path := range sorted {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, lexicon.NewSourceError(path, err)
		}

		var records []json.RawMessage
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, lexicon.NewSourceError(path, fmt.Errorf("parse entry array: %w", err))
		}

		for _, raw := range records {
			if entry, ok := convertRecord(raw); ok {
				entries = append(entries, entry)
			}
		}
	}

	return &lexicon.SourceResult{Title: SourceTitle, Entries: entries}, nil
}

// convertRecord normalizes one native record. Part-of-speech tags are
// inherited from the previous sense when a sense omits them; the
// carry-forward resets per record.
func convertRecord(raw json.RawMessage) (lexicon.Entry, bool) {
	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return lexicon.Entry{}, false
	}

	forms := make([]string, 0, len(rec.KEle))
	for _, k := range rec.KEle {
		forms = append(forms, k.Keb)
	}
	readings := make([]string, 0, len(rec.REle))
	for _, r := range rec.REle {
		readings = append(readings, r.Reb)
	}

	var senses []lexicon.Sense
	var lastPOS []string
	for _, sense := range rec.Sense {
		pos := sense.POS
		if pos == nil {
			pos = lastPOS
		}
		lastPOS = pos
		if len(sense.Gloss) == 0 {
			continue
		}
		senses = append(senses, lexicon.Sense{
			Glosses:      sense.Gloss,
			PartOfSpeech: trimPOSTags(pos),
		})
	}

	if (len(forms) == 0 && len(readings) == 0) || len(senses) == 0 {
		return lexicon.Entry{}, false
	}

	var fragments rawRecord
	_ = json.Unmarshal(raw, &fragments)

	return lexicon.Entry{
		ID:           rec.Seq,
		WrittenForms: forms,
		Readings:     readings,
		Senses:       senses,
		Source:       SourceTitle,
		RawForms:     fragments.KEle,
		RawReadings:  fragments.REle,
		RawSenses:    fragments.Sense,
	}, true
}

// trimPOSTags strips the entity-reference punctuation some exports leave
// on part-of-speech tags.
func trimPOSTags(tags []string) []string {
	if tags == nil {
		return nil
	}
	trimmed := make([]string, len(tags))
	for i, tag := range tags {
		trimmed[i] = strings.Trim(tag, "&;")
	}
	return trimmed
}

// ParseRules loads the deconjugation-rule file. The records stay opaque:
// this engine stores them for the external deconjugation component and
// never interprets them. Non-object records are discarded.
func ParseRules(path string) ([]lexicon.Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse rule array: %w", err)
	}

	rules := make([]lexicon.Rule, 0, len(raw))
	for _, r := range raw {
		if len(bytes.TrimSpace(r)) > 0 && bytes.TrimSpace(r)[0] == '{' {
			rules = append(rules, lexicon.Rule(r))
		}
	}
	return rules, nil
}

// ParsePriorities loads the priority list: a JSON array of
// [written_form, reading, priority] triples.
func ParsePriorities(path string) (map[lexicon.Key]float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var rows [][]json.RawMessage
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("parse priority array: %w", err)
	}

	priorities := make(map[lexicon.Key]float64, len(rows))
	for _, row := range rows {
		if len(row) < 3 {
			continue
		}
		var form, reading string
		var prio float64
		if err := json.Unmarshal(row[0], &form); err != nil {
			continue
		}
		if err := json.Unmarshal(row[1], &reading); err != nil {
			continue
		}
		if err := json.Unmarshal(row[2], &prio); err != nil {
			continue
		}
		priorities[lexicon.Key{Form: form, Reading: reading}] = prio
	}
	return priorities, nil
}
