package persist

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	lru "github.com/hashicorp/golang-lru/v2"
	_ "modernc.org/sqlite"

	"github.com/meikido/kotoba/core/lexicon"
	"github.com/meikido/kotoba/internal/logging"
)

const (
	// entryBatchSize is how many entries one paged fetch pulls in.
	entryBatchSize = 256

	// batchCacheSize bounds the number of entry batches kept in memory.
	batchCacheSize = 64
)

// metadata table row names.
const (
	metaVersion     = "version"
	metaEntryCount  = "entry_count"
	metaRuleSet     = "rule_set"
	metaPriorityMap = "priority_map"
	metaFrequency   = "frequency_map"
)

const pagedSchema = `
CREATE TABLE entries (
	pos  INTEGER PRIMARY KEY,
	data BLOB NOT NULL
);
CREATE TABLE written_index (
	form      TEXT PRIMARY KEY,
	positions BLOB NOT NULL
);
CREATE TABLE reading_index (
	reading   TEXT PRIMARY KEY,
	positions BLOB NOT NULL
);
CREATE TABLE meta (
	name TEXT PRIMARY KEY,
	data BLOB NOT NULL
);
`

// PagedStore is the lazy storage backend: entries live in an embedded
// SQLite file keyed by position and are fetched on demand in batches.
// The small metadata tables (rules, priorities, frequencies) are held in
// memory. A PagedStore performs no writes after creation, so concurrent
// readers need no locking beyond the driver's own.
type PagedStore struct {
	db    *sql.DB
	count int

	rules       []lexicon.Rule
	priorities  map[lexicon.Key]float64
	frequencies map[lexicon.Key]lexicon.FrequencyValue

	batches *lru.Cache[int, []lexicon.Entry]
}

// BuildPagedStore converts complete store state into a paged store file.
// The file is written next to the target and renamed into place, so a
// failed build never leaves a half-written store behind.
func BuildPagedStore(path string, state lexicon.StoreState) error {
	tmpPath := path + ".tmp"
	os.Remove(tmpPath)

	db, err := sql.Open("sqlite", tmpPath)
	if err != nil {
		return fmt.Errorf("create paged store: %w", err)
	}

	if err := buildTables(db, state); err != nil {
		db.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := db.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close paged store: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("finalize paged store: %w", err)
	}
	return nil
}

func buildTables(db *sql.DB, state lexicon.StoreState) error {
	if _, err := db.Exec(pagedSchema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	insertEntry, err := tx.Prepare(`INSERT INTO entries (pos, data) VALUES (?, ?)`)
	if err != nil {
		return err
	}
	defer insertEntry.Close()
	for pos, e := range state.Entries {
		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("encode entry %d: %w", pos, err)
		}
		if _, err := insertEntry.Exec(pos, data); err != nil {
			return fmt.Errorf("insert entry %d: %w", pos, err)
		}
	}

	if err := insertIndex(tx, `INSERT INTO written_index (form, positions) VALUES (?, ?)`, state.WrittenIndex); err != nil {
		return err
	}
	if err := insertIndex(tx, `INSERT INTO reading_index (reading, positions) VALUES (?, ?)`, state.ReadingIndex); err != nil {
		return err
	}

	metaRows := map[string]any{
		metaVersion:    FormatVersion,
		metaEntryCount: len(state.Entries),
	}
	if state.Rules != nil {
		metaRows[metaRuleSet] = state.Rules
	}
	metaRows[metaPriorityMap] = encodePriorities(state.Priorities)
	metaRows[metaFrequency] = encodeFrequencies(state.Frequencies)
	for name, v := range metaRows {
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode meta %s: %w", name, err)
		}
		if _, err := tx.Exec(`INSERT INTO meta (name, data) VALUES (?, ?)`, name, data); err != nil {
			return fmt.Errorf("insert meta %s: %w", name, err)
		}
	}

	return tx.Commit()
}

func insertIndex(tx *sql.Tx, query string, index map[string][]int) error {
	stmt, err := tx.Prepare(query)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for key, positions := range index {
		data, err := json.Marshal(positions)
		if err != nil {
			return fmt.Errorf("encode index %q: %w", key, err)
		}
		if _, err := stmt.Exec(key, data); err != nil {
			return fmt.Errorf("insert index %q: %w", key, err)
		}
	}
	return nil
}

// OpenPagedStore opens an existing paged store file for reading.
func OpenPagedStore(path string) (*PagedStore, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("open paged store %s: %w", path, err)
	}

	s := &PagedStore{db: db}
	if err := s.loadMeta(); err != nil {
		db.Close()
		return nil, fmt.Errorf("paged store %s: %w", path, err)
	}

	s.batches, err = lru.New[int, []lexicon.Entry](batchCacheSize)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// loadMeta reads the small metadata table into memory and checks the
// format version.
func (s *PagedStore) loadMeta() error {
	var version int
	if err := s.readMeta(metaVersion, &version); err != nil {
		return fmt.Errorf("read version: %w", err)
	}
	if version != FormatVersion {
		return fmt.Errorf("unsupported format version %d", version)
	}
	if err := s.readMeta(metaEntryCount, &s.count); err != nil {
		return fmt.Errorf("read entry count: %w", err)
	}

	var rules []lexicon.Rule
	if err := s.readMeta(metaRuleSet, &rules); err == nil {
		s.rules = rules
	}

	var priorities []priorityPair
	if err := s.readMeta(metaPriorityMap, &priorities); err != nil {
		return fmt.Errorf("read priority map: %w", err)
	}
	s.priorities = decodePriorities(priorities)

	var frequencies []frequencyPair
	if err := s.readMeta(metaFrequency, &frequencies); err != nil {
		return fmt.Errorf("read frequency map: %w", err)
	}
	s.frequencies = decodeFrequencies(frequencies)
	return nil
}

func (s *PagedStore) readMeta(name string, v any) error {
	var data []byte
	err := s.db.QueryRow(`SELECT data FROM meta WHERE name = ?`, name).Scan(&data)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// Close releases the underlying database handle.
func (s *PagedStore) Close() error {
	return s.db.Close()
}

// EntryCount returns the number of entries.
func (s *PagedStore) EntryCount() int {
	return s.count
}

// EntryAt returns the entry at a position via one batched point lookup.
func (s *PagedStore) EntryAt(pos int) (lexicon.Entry, error) {
	if pos < 0 || pos >= s.count {
		return lexicon.Entry{}, fmt.Errorf("persist: position %d out of range [0,%d)", pos, s.count)
	}

	batchIdx := pos / entryBatchSize
	batch, ok := s.batches.Get(batchIdx)
	if !ok {
		var err error
		batch, err = s.fetchBatch(batchIdx)
		if err != nil {
			return lexicon.Entry{}, err
		}
		s.batches.Add(batchIdx, batch)
	}

	offset := pos % entryBatchSize
	if offset >= len(batch) {
		return lexicon.Entry{}, fmt.Errorf("persist: entry %d missing from store", pos)
	}
	return batch[offset], nil
}

// fetchBatch pulls one contiguous batch of entries.
func (s *PagedStore) fetchBatch(batchIdx int) ([]lexicon.Entry, error) {
	start := batchIdx * entryBatchSize
	end := start + entryBatchSize

	rows, err := s.db.Query(`SELECT pos, data FROM entries WHERE pos >= ? AND pos < ? ORDER BY pos`, start, end)
	if err != nil {
		return nil, fmt.Errorf("fetch batch %d: %w", batchIdx, err)
	}
	defer rows.Close()

	batch := make([]lexicon.Entry, 0, entryBatchSize)
	for rows.Next() {
		var pos int
		var data []byte
		if err := rows.Scan(&pos, &data); err != nil {
			return nil, err
		}
		var e lexicon.Entry
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, fmt.Errorf("decode entry %d: %w", pos, err)
		}
		batch = append(batch, e)
	}
	return batch, rows.Err()
}

// Iterate produces entries in position order, fetching in batches to
// bound round-trip overhead.
func (s *PagedStore) Iterate(fn func(pos int, e lexicon.Entry) error) error {
	for start := 0; start < s.count; start += entryBatchSize {
		batch, err := s.fetchBatch(start / entryBatchSize)
		if err != nil {
			return err
		}
		for i, e := range batch {
			if err := fn(start+i, e); err != nil {
				return err
			}
		}
	}
	return nil
}

// LookupWritten returns the entries carrying the written form, in index
// order. Unknown forms and read errors both yield an empty slice.
func (s *PagedStore) LookupWritten(form string) []lexicon.Entry {
	return s.lookup(`SELECT positions FROM written_index WHERE form = ?`, form)
}

// LookupReading returns the entries carrying the reading.
func (s *PagedStore) LookupReading(reading string) []lexicon.Entry {
	return s.lookup(`SELECT positions FROM reading_index WHERE reading = ?`, reading)
}

func (s *PagedStore) lookup(query, key string) []lexicon.Entry {
	var data []byte
	err := s.db.QueryRow(query, key).Scan(&data)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		logging.Error("paged lookup failed", "key", key, "error", err.Error())
		return nil
	}

	var positions []int
	if err := json.Unmarshal(data, &positions); err != nil {
		logging.Error("paged index corrupt", "key", key, "error", err.Error())
		return nil
	}

	entries := make([]lexicon.Entry, 0, len(positions))
	for _, pos := range positions {
		e, err := s.EntryAt(pos)
		if err != nil {
			logging.Error("paged entry fetch failed", "position", strconv.Itoa(pos), "error", err.Error())
			continue
		}
		entries = append(entries, e)
	}
	return entries
}

// PriorityOf returns the priority for a (written form, reading) pair
// with an explicit not-found result.
func (s *PagedStore) PriorityOf(form, reading string) (float64, bool) {
	v, ok := s.priorities[lexicon.Key{Form: form, Reading: reading}]
	return v, ok
}

// FrequencyOf returns the frequency value for a (written form, reading)
// pair with an explicit not-found result.
func (s *PagedStore) FrequencyOf(form, reading string) (lexicon.FrequencyValue, bool) {
	v, ok := s.frequencies[lexicon.Key{Form: form, Reading: reading}]
	return v, ok
}

// Rules returns the opaque rule set.
func (s *PagedStore) Rules() []lexicon.Rule {
	return s.rules
}
