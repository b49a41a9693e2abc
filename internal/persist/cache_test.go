package persist

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/meikido/kotoba/core/lexicon"
)

func sampleResult() *lexicon.SourceResult {
	return &lexicon.SourceResult{
		Title: "TestDict",
		Entries: []lexicon.Entry{
			{
				ID:           1,
				WrittenForms: []string{"猫"},
				Readings:     []string{"ねこ"},
				Senses:       []lexicon.Sense{{Glosses: []string{"cat"}, PartOfSpeech: []string{"n"}}},
				Source:       "TestDict",
			},
		},
		Frequency: map[lexicon.Key]lexicon.FrequencyValue{
			{Form: "猫", Reading: "ねこ"}: {Value: 120, Display: "120"},
		},
	}
}

// backdate moves a file's mtime into the past so a subsequently written
// cache file is newer.
func backdate(t *testing.T, path string) {
	t.Helper()
	old := time.Now().Add(-time.Hour)
	if err := os.Chtimes(path, old, old); err != nil {
		t.Fatal(err)
	}
}

// TestLoadOrParse_MissThenHit verifies the first load parses and writes
// a cache, and the second load returns the cached result without
// invoking the parser.
func TestLoadOrParse_MissThenHit(t *testing.T) {
	source := filepath.Join(t.TempDir(), "dict.zip")
	if err := os.WriteFile(source, []byte("source bytes"), 0644); err != nil {
		t.Fatal(err)
	}
	backdate(t, source)

	parses := 0
	parse := func() (*lexicon.SourceResult, error) {
		parses++
		return sampleResult(), nil
	}

	first, err := LoadOrParse(source, parse)
	if err != nil {
		t.Fatal(err)
	}
	if parses != 1 {
		t.Fatalf("first load: parser invoked %d times, want 1", parses)
	}

	second, err := LoadOrParse(source, parse)
	if err != nil {
		t.Fatal(err)
	}
	if parses != 1 {
		t.Fatalf("second load should hit the cache, parser invoked %d times", parses)
	}

	// Hit path and miss path produce the same logical content.
	if second.Title != first.Title {
		t.Errorf("Title = %q, want %q", second.Title, first.Title)
	}
	if len(second.Entries) != len(first.Entries) {
		t.Fatalf("entry count %d != %d", len(second.Entries), len(first.Entries))
	}
	e1, e2 := first.Entries[0], second.Entries[0]
	if e2.ID != e1.ID || e2.WrittenForms[0] != e1.WrittenForms[0] || e2.Senses[0].Glosses[0] != e1.Senses[0].Glosses[0] {
		t.Errorf("cached entry differs: %+v vs %+v", e2, e1)
	}
	if got := second.Frequency[lexicon.Key{Form: "猫", Reading: "ねこ"}]; got.Value != 120 {
		t.Errorf("cached frequency = %+v", got)
	}
}

// TestLoadOrParse_StaleCacheReparses verifies a cache older than its
// source is ignored.
func TestLoadOrParse_StaleCacheReparses(t *testing.T) {
	source := filepath.Join(t.TempDir(), "dict.zip")
	if err := os.WriteFile(source, []byte("v1"), 0644); err != nil {
		t.Fatal(err)
	}
	backdate(t, source)

	parses := 0
	parse := func() (*lexicon.SourceResult, error) {
		parses++
		return sampleResult(), nil
	}
	if _, err := LoadOrParse(source, parse); err != nil {
		t.Fatal(err)
	}

	// Touch the source so it is newer than the cache.
	future := time.Now().Add(time.Hour)
	if err := os.Chtimes(source, future, future); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadOrParse(source, parse); err != nil {
		t.Fatal(err)
	}
	if parses != 2 {
		t.Errorf("stale cache should re-parse, parser invoked %d times", parses)
	}
}

// TestLoadOrParse_CorruptCacheReparses verifies an unreadable cache is
// treated as a miss, never an error.
func TestLoadOrParse_CorruptCacheReparses(t *testing.T) {
	source := filepath.Join(t.TempDir(), "dict.zip")
	if err := os.WriteFile(source, []byte("bytes"), 0644); err != nil {
		t.Fatal(err)
	}
	backdate(t, source)

	if err := os.WriteFile(CachePathFor(source), []byte("garbage, not xz"), 0644); err != nil {
		t.Fatal(err)
	}

	parses := 0
	result, err := LoadOrParse(source, func() (*lexicon.SourceResult, error) {
		parses++
		return sampleResult(), nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if parses != 1 {
		t.Errorf("corrupt cache should re-parse, parser invoked %d times", parses)
	}
	if len(result.Entries) != 1 {
		t.Errorf("got %d entries", len(result.Entries))
	}
}

// TestLoadOrParse_ParseErrorPropagates verifies a parse failure reaches
// the caller when no cache can serve.
func TestLoadOrParse_ParseErrorPropagates(t *testing.T) {
	source := filepath.Join(t.TempDir(), "dict.zip")
	if err := os.WriteFile(source, []byte("bytes"), 0644); err != nil {
		t.Fatal(err)
	}

	sentinel := errors.New("bad source")
	_, err := LoadOrParse(source, func() (*lexicon.SourceResult, error) {
		return nil, sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Errorf("err = %v, want sentinel", err)
	}
}

// TestCachePathFor verifies the suffix convention for file sources and
// the in-directory location for directory sources.
func TestCachePathFor(t *testing.T) {
	dir := t.TempDir()

	file := filepath.Join(dir, "dict.zip")
	if got := CachePathFor(file); got != file+".kcache" {
		t.Errorf("file cache path = %q", got)
	}

	src := filepath.Join(dir, "dictdir")
	if err := os.MkdirAll(src, 0755); err != nil {
		t.Fatal(err)
	}
	if got := CachePathFor(src); got != filepath.Join(src, "cache.kcache") {
		t.Errorf("dir cache path = %q", got)
	}
}

// TestLoadOrParse_DirectorySource verifies a directory source caches
// inside the directory and stays fresh against the manifest's mtime.
func TestLoadOrParse_DirectorySource(t *testing.T) {
	src := filepath.Join(t.TempDir(), "dictdir")
	if err := os.MkdirAll(src, 0755); err != nil {
		t.Fatal(err)
	}
	manifest := filepath.Join(src, "index.json")
	if err := os.WriteFile(manifest, []byte(`{"title":"DirDict"}`), 0644); err != nil {
		t.Fatal(err)
	}
	backdate(t, manifest)

	parses := 0
	parse := func() (*lexicon.SourceResult, error) {
		parses++
		return sampleResult(), nil
	}
	if _, err := LoadOrParse(src, parse); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(src, "cache.kcache")); err != nil {
		t.Errorf("cache file should live inside the directory: %v", err)
	}
	if _, err := LoadOrParse(src, parse); err != nil {
		t.Fatal(err)
	}
	if parses != 1 {
		t.Errorf("directory cache should hit on second load, parser invoked %d times", parses)
	}
}
