// Package yomichan parses packaged lexicons in the Yomichan/Yomitan
// layout: a ZIP archive or directory holding an index.json manifest,
// numbered term-bank segment files and optional term-meta segments with
// frequency records. Records are normalized into the canonical entry
// model; glossary markup is rendered through core/render.
package yomichan

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/zeebo/blake3"

	"github.com/meikido/kotoba/core/lexicon"
	"github.com/meikido/kotoba/core/render"
	"github.com/meikido/kotoba/internal/logging"
)

// recordFields is the expected length of a term-bank record:
// [expression, reading, definition_tags, rules, score, glossary,
// sequence, term_tags].
const recordFields = 8

// manifest is the index.json shape. Only the title matters here.
type manifest struct {
	Title string `json:"title"`
}

var (
	termBankPattern = regexp.MustCompile(`^term_bank_(\d+)\.json$`)
	termMetaPattern = regexp.MustCompile(`^term_meta_bank_(\d+)\.json$`)
)

// Parse loads a packaged lexicon from a ZIP archive or a directory.
// A missing or unreadable manifest fails the whole source; a malformed
// record never does. resourceCacheDir is where referenced images are
// extracted; pass "" to disable resource extraction.
func Parse(path, resourceCacheDir string) (*lexicon.SourceResult, error) {
	fsys, closer, err := openSource(path)
	if err != nil {
		return nil, lexicon.NewSourceError(path, err)
	}
	if closer != nil {
		defer closer.Close()
	}

	data, err := fs.ReadFile(fsys, "index.json")
	if err != nil {
		return nil, lexicon.NewSourceError(path, fmt.Errorf("manifest index.json: %w", err))
	}
	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, lexicon.NewSourceError(path, fmt.Errorf("manifest index.json: %w", err))
	}
	title := m.Title
	if title == "" {
		title = "Unknown Dictionary"
	}

	var resolver render.Resolver
	if resourceCacheDir != "" {
		resolver = &ResourceResolver{fsys: fsys, title: title, cacheDir: resourceCacheDir}
	}

	result := &lexicon.SourceResult{
		Title:     title,
		Frequency: make(map[lexicon.Key]lexicon.FrequencyValue),
	}

	for _, name := range segmentFiles(fsys, termBankPattern) {
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, lexicon.NewSourceError(path, fmt.Errorf("read %s: %w", name, err))
		}
		var records []json.RawMessage
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, lexicon.NewSourceError(path, fmt.Errorf("parse %s: %w", name, err))
		}
		for _, raw := range records {
			entry, ok := convertRecord(raw, title, resolver)
			if !ok {
				logging.Debug("record dropped", "source", title, "segment", name)
				continue
			}
			result.Entries = append(result.Entries, entry)
		}
	}

	for _, name := range segmentFiles(fsys, termMetaPattern) {
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, lexicon.NewSourceError(path, fmt.Errorf("read %s: %w", name, err))
		}
		if err := parseTermMeta(data, result.Frequency); err != nil {
			return nil, lexicon.NewSourceError(path, fmt.Errorf("parse %s: %w", name, err))
		}
	}

	return result, nil
}

// openSource opens the lexicon as a file system: ZIP archives through
// archive/zip, directories directly.
func openSource(path string) (fs.FS, *zip.ReadCloser, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, nil, err
	}
	if info.IsDir() {
		return os.DirFS(path), nil, nil
	}
	rc, err := zip.OpenReader(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open archive: %w", err)
	}
	return rc, rc, nil
}

// segmentFiles lists the segment files matching pattern in numeric
// segment order.
func segmentFiles(fsys fs.FS, pattern *regexp.Regexp) []string {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil
	}
	type segment struct {
		name  string
		index int
	}
	var segments []segment
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := pattern.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		idx, _ := strconv.Atoi(m[1])
		segments = append(segments, segment{name: e.Name(), index: idx})
	}
	sort.Slice(segments, func(i, j int) bool { return segments[i].index < segments[j].index })
	names := make([]string, len(segments))
	for i, s := range segments {
		names[i] = s.name
	}
	return names
}

// convertRecord converts one fixed-position term-bank record into a
// canonical entry. A record shorter than expected goes through a
// reduced-field recovery before being given up on.
func convertRecord(raw json.RawMessage, title string, resolver render.Resolver) (lexicon.Entry, bool) {
	var fields []json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return lexicon.Entry{}, false
	}
	if len(fields) < recordFields {
		return recoverShortRecord(fields, title)
	}

	expression := decodeString(fields[0])
	reading := decodeString(fields[1])
	if expression == "" && reading == "" {
		return lexicon.Entry{}, false
	}

	glosses := stringifyGlossary(fields[5], resolver)
	pos := splitTags(decodeString(fields[2]))

	id, ok := sequenceID(fields[6])
	if !ok {
		id = DeriveID(title, expression, reading)
	}

	return buildEntry(id, title, expression, reading, glosses, pos, fields[5]), true
}

// recoverShortRecord attempts an expression/reading/best-effort-gloss
// extraction from a truncated record. A single malformed record never
// aborts the batch.
func recoverShortRecord(fields []json.RawMessage, title string) (lexicon.Entry, bool) {
	if len(fields) < 2 {
		return lexicon.Entry{}, false
	}
	expression := decodeString(fields[0])
	reading := decodeString(fields[1])
	if expression == "" && reading == "" {
		return lexicon.Entry{}, false
	}

	// Best effort: the first array-valued field past the headword pair
	// is taken as the glossary.
	var glosses []string
	var rawGlossary json.RawMessage
	for _, f := range fields[2:] {
		trimmed := strings.TrimSpace(string(f))
		if strings.HasPrefix(trimmed, "[") {
			glosses = stringifyGlossary(f, nil)
			rawGlossary = f
			break
		}
	}

	id := DeriveID(title, expression, reading)
	return buildEntry(id, title, expression, reading, glosses, nil, rawGlossary), true
}

// buildEntry assembles the canonical entry, retaining the source
// fragments for rendering fidelity.
func buildEntry(id int64, title, expression, reading string, glosses, pos []string, rawGlossary json.RawMessage) lexicon.Entry {
	var forms, readings []string
	if expression != "" {
		forms = []string{expression}
	}
	if reading != "" {
		readings = []string{reading}
	}

	var senses []lexicon.Sense
	if len(glosses) > 0 {
		senses = []lexicon.Sense{{Glosses: glosses, PartOfSpeech: pos}}
	}

	rawForms, _ := json.Marshal(forms)
	rawReadings, _ := json.Marshal(readings)

	return lexicon.Entry{
		ID:           id,
		WrittenForms: forms,
		Readings:     readings,
		Senses:       senses,
		Source:       title,
		RawForms:     rawForms,
		RawReadings:  rawReadings,
		RawSenses:    rawGlossary,
	}
}

// DeriveID computes the deterministic fallback id for a record without a
// parseable numeric sequence. The same (title, expression, reading)
// triple yields the same id across process runs; global uniqueness
// across sources is not guaranteed and not relied upon.
func DeriveID(title, expression, reading string) int64 {
	sum := blake3.Sum256([]byte(title + ":" + expression + ":" + reading))
	var id int64
	for _, b := range sum[:4] {
		id = id<<8 | int64(b)
	}
	return id
}

// sequenceID extracts the native sequence number when the field holds
// one, accepting both numeric and numeric-string encodings.
func sequenceID(field json.RawMessage) (int64, bool) {
	var n json.Number
	if err := json.Unmarshal(field, &n); err == nil {
		if id, err := n.Int64(); err == nil {
			return id, true
		}
		return 0, false
	}
	var s string
	if err := json.Unmarshal(field, &s); err == nil {
		if id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
			return id, true
		}
	}
	return 0, false
}

// stringifyGlossary normalizes the glossary field into display strings.
// Plain strings pass through; structured content is rendered; anything
// else falls back to text extraction and finally to the raw JSON, so a
// gloss is never dropped because it could not be pretty-printed.
func stringifyGlossary(field json.RawMessage, resolver render.Resolver) []string {
	var items []json.RawMessage
	if err := json.Unmarshal(field, &items); err != nil {
		// Non-array glossary: stringify wholesale.
		if s := decodeString(field); s != "" {
			return []string{s}
		}
		if len(strings.TrimSpace(string(field))) > 0 && string(field) != "null" {
			return []string{string(field)}
		}
		return nil
	}

	var glosses []string
	for _, item := range items {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			glosses = append(glosses, s)
			continue
		}

		var node map[string]any
		if err := json.Unmarshal(item, &node); err == nil {
			if t, _ := node["type"].(string); t == "structured-content" {
				if markup := render.Node(node["content"], resolver); markup != "" {
					glosses = append(glosses, markup)
					continue
				}
			}
			if text := render.ExtractText(node); text != "" {
				glosses = append(glosses, text)
				continue
			}
		}

		glosses = append(glosses, string(item))
	}
	return glosses
}

// parseTermMeta folds frequency rows from a term-meta segment into freq.
// Rows are [term, mode, data]; only mode "freq" is relevant. The data
// field appears as a bare number, a display string, or an object with
// optional reading and nested frequency value.
func parseTermMeta(data []byte, freq map[lexicon.Key]lexicon.FrequencyValue) error {
	var rawRows []json.RawMessage
	if err := json.Unmarshal(data, &rawRows); err != nil {
		return err
	}

	for _, rawRow := range rawRows {
		// Rows decode individually so one malformed row drops alone
		// instead of discarding the segment.
		var row []json.RawMessage
		if err := json.Unmarshal(rawRow, &row); err != nil {
			continue
		}
		if len(row) < 3 {
			continue
		}
		if decodeString(row[1]) != "freq" {
			continue
		}
		term := decodeString(row[0])
		if term == "" {
			continue
		}
		reading, value, ok := decodeFrequency(row[2])
		if !ok {
			continue
		}
		freq[lexicon.Key{Form: term, Reading: reading}] = value
	}
	return nil
}

// decodeFrequency handles the frequency data shapes: number, string,
// {value, displayValue}, and {reading, frequency: <any of these>}.
func decodeFrequency(raw json.RawMessage) (reading string, value lexicon.FrequencyValue, ok bool) {
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return "", lexicon.FrequencyValue{Value: n, Display: strconv.FormatFloat(n, 'f', -1, 64)}, true
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		v, _ := strconv.ParseFloat(s, 64)
		return "", lexicon.FrequencyValue{Value: v, Display: s}, true
	}

	var obj struct {
		Reading      string          `json:"reading"`
		Frequency    json.RawMessage `json:"frequency"`
		Value        *float64        `json:"value"`
		DisplayValue string          `json:"displayValue"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return "", lexicon.FrequencyValue{}, false
	}

	if obj.Value != nil {
		display := obj.DisplayValue
		if display == "" {
			display = strconv.FormatFloat(*obj.Value, 'f', -1, 64)
		}
		return obj.Reading, lexicon.FrequencyValue{Value: *obj.Value, Display: display}, true
	}
	if len(obj.Frequency) > 0 {
		_, inner, ok := decodeFrequency(obj.Frequency)
		if ok {
			return obj.Reading, inner, true
		}
	}
	return "", lexicon.FrequencyValue{}, false
}

// decodeString decodes a JSON string field, returning "" for null or
// non-string values.
func decodeString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

// splitTags splits a space-separated tag string into a tag list.
func splitTags(tags string) []string {
	if tags == "" {
		return nil
	}
	return strings.Fields(tags)
}
