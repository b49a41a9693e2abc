package persist

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/meikido/kotoba/core/lexicon"
	"github.com/meikido/kotoba/internal/logging"
)

// cacheSuffix ties a cache file to its source path.
const cacheSuffix = ".kcache"

// cacheEnvelope is the on-disk shape of a per-source parse cache.
type cacheEnvelope struct {
	Version   int             `json:"version"`
	Title     string          `json:"title"`
	Entries   []lexicon.Entry `json:"entries"`
	Frequency []frequencyPair `json:"frequency"`
}

// CachePathFor returns the cache file location for a source. A
// directory source keeps its cache inside the directory; a file source
// keeps it alongside, suffix-tied to the source name.
func CachePathFor(sourcePath string) string {
	if info, err := os.Stat(sourcePath); err == nil && info.IsDir() {
		return filepath.Join(sourcePath, "cache"+cacheSuffix)
	}
	return sourcePath + cacheSuffix
}

// LoadOrParse wraps one adapter invocation with the per-source cache: a
// cache file newer than the source is returned without re-parsing;
// anything else (missing, stale, corrupt, wrong version) falls back to
// parse and then refreshes the cache best-effort. A cache write failure
// never fails the import.
func LoadOrParse(sourcePath string, parse func() (*lexicon.SourceResult, error)) (*lexicon.SourceResult, error) {
	cachePath := CachePathFor(sourcePath)

	if result, ok := readCache(sourcePath, cachePath); ok {
		logging.CacheEvent("hit", sourcePath)
		return result, nil
	}
	logging.CacheEvent("miss", sourcePath)

	result, err := parse()
	if err != nil {
		return nil, err
	}

	if err := writeCache(cachePath, result); err != nil {
		logging.CacheEvent("write_failed", sourcePath, "error", err.Error())
	}
	return result, nil
}

// readCache returns the cached result when the cache is fresh and
// readable. Every failure mode is a plain miss.
func readCache(sourcePath, cachePath string) (*lexicon.SourceResult, bool) {
	sourceTime, ok := sourceModTime(sourcePath)
	if !ok {
		return nil, false
	}
	cacheInfo, err := os.Stat(cachePath)
	if err != nil {
		return nil, false
	}
	if !cacheInfo.ModTime().After(sourceTime) {
		return nil, false
	}

	var env cacheEnvelope
	if err := readCompressedJSON(cachePath, &env); err != nil {
		logging.CacheEvent("corrupt", sourcePath, "error", err.Error())
		return nil, false
	}
	if env.Version != FormatVersion {
		logging.CacheEvent("version_mismatch", sourcePath, "version", env.Version)
		return nil, false
	}

	return &lexicon.SourceResult{
		Title:     env.Title,
		Entries:   env.Entries,
		Frequency: decodeFrequencies(env.Frequency),
	}, true
}

// sourceModTime returns the staleness reference time for a source. For
// a directory source the manifest's mtime is used: writing the cache
// file into the directory bumps the directory's own mtime, which would
// otherwise mark the cache permanently stale.
func sourceModTime(sourcePath string) (time.Time, bool) {
	info, err := os.Stat(sourcePath)
	if err != nil {
		return time.Time{}, false
	}
	if !info.IsDir() {
		return info.ModTime(), true
	}
	manifest, err := os.Stat(filepath.Join(sourcePath, "index.json"))
	if err != nil {
		return info.ModTime(), true
	}
	return manifest.ModTime(), true
}

// writeCache persists a parse result for the next run.
func writeCache(cachePath string, result *lexicon.SourceResult) error {
	env := cacheEnvelope{
		Version:   FormatVersion,
		Title:     result.Title,
		Entries:   result.Entries,
		Frequency: encodeFrequencies(result.Frequency),
	}
	if err := writeCompressedJSON(cachePath, env); err != nil {
		return fmt.Errorf("write cache %s: %w", cachePath, err)
	}
	return nil
}
