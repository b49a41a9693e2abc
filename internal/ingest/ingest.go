// Package ingest coordinates dictionary ingestion: it discovers
// packaged lexicons, parses sources in parallel on a bounded worker
// pool, and merges the results into a single lexicon.Store through one
// coordinating goroutine. Per-source failures are contained and logged;
// the surviving sources still import.
package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"github.com/meikido/kotoba/core/lexicon"
	"github.com/meikido/kotoba/internal/config"
	"github.com/meikido/kotoba/internal/formats/jmdict"
	"github.com/meikido/kotoba/internal/formats/yomichan"
	"github.com/meikido/kotoba/internal/logging"
	"github.com/meikido/kotoba/internal/persist"
)

// Orchestrator runs one full ingestion pass for a configuration.
type Orchestrator struct {
	cfg   *config.Config
	runID string
}

// New creates an orchestrator for cfg. Each orchestrator carries a
// fresh run id that tags every log line of the pass.
func New(cfg *config.Config) *Orchestrator {
	return &Orchestrator{cfg: cfg, runID: uuid.NewString()}
}

// Run performs the ingestion pass and returns the frozen store. The
// bundled lexicon, rules and priorities import first and serially;
// packaged lexicons then parse in parallel and merge in completion
// order. The data directory is locked for the duration so two imports
// cannot interleave their writes.
func (o *Orchestrator) Run(ctx context.Context) (*lexicon.Store, error) {
	if err := os.MkdirAll(o.cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("ingest: create data dir: %w", err)
	}

	lock := flock.New(filepath.Join(o.cfg.DataDir, "ingest.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("ingest: lock data dir: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("ingest: data dir %s is locked by another import", o.cfg.DataDir)
	}
	defer lock.Unlock()

	logging.Info("ingest_started", "run_id", o.runID, "lexicon_dir", o.cfg.LexiconDir)

	store := lexicon.NewStore()
	if err := o.importBundled(store); err != nil {
		return nil, err
	}

	sources, err := Discover(o.cfg.LexiconDir)
	if err != nil {
		return nil, err
	}
	sources = filterSources(sources, o.cfg.EnabledSources)

	if err := o.importPackaged(ctx, store, sources); err != nil {
		return nil, err
	}

	store.Freeze()
	logging.Info("ingest_finished", "run_id", o.runID, "entries", store.EntryCount())
	return store, nil
}

// importBundled merges the bundled lexicon and its companion rule and
// priority files. Failures are contained per file so a broken optional
// companion does not abort the pass.
func (o *Orchestrator) importBundled(store *lexicon.Store) error {
	if !o.cfg.DisableBundled && len(o.cfg.BundledPaths) > 0 {
		start := time.Now()
		result, err := jmdict.Parse(o.cfg.BundledPaths)
		if err != nil {
			logging.SourceSkipped(jmdict.SourceTitle, err, "run_id", o.runID)
		} else {
			if err := store.Merge(result.Entries, result.Frequency); err != nil {
				return fmt.Errorf("ingest: merge %s: %w", result.Title, err)
			}
			logging.SourceImported(result.Title, len(result.Entries), time.Since(start), "run_id", o.runID)
		}
	}

	if o.cfg.RulesPath != "" {
		rules, err := jmdict.ParseRules(o.cfg.RulesPath)
		if err != nil {
			logging.SourceSkipped(o.cfg.RulesPath, err, "run_id", o.runID)
		} else if err := store.SetRules(rules); err != nil {
			return fmt.Errorf("ingest: set rules: %w", err)
		}
	}

	if o.cfg.PrioritiesPath != "" {
		priorities, err := jmdict.ParsePriorities(o.cfg.PrioritiesPath)
		if err != nil {
			logging.SourceSkipped(o.cfg.PrioritiesPath, err, "run_id", o.runID)
		} else if err := store.SetPriorities(priorities); err != nil {
			return fmt.Errorf("ingest: set priorities: %w", err)
		}
	}

	return nil
}

// importPackaged parses the packaged sources on the worker pool and
// merges results as they complete. This loop is the only writer of the
// store while the pool is running.
func (o *Orchestrator) importPackaged(ctx context.Context, store *lexicon.Store, sources []string) error {
	if len(sources) == 0 {
		return nil
	}

	type parsed struct {
		result  *lexicon.SourceResult
		elapsed time.Duration
	}
	results := make(chan parsed, len(sources))

	pool := NewPool(o.cfg.Workers)
	for _, src := range sources {
		src := src
		err := pool.Go(ctx, func() {
			start := time.Now()
			result, err := persist.LoadOrParse(src, func() (*lexicon.SourceResult, error) {
				return yomichan.Parse(src, o.cfg.ResourceCacheDir())
			})
			if err != nil {
				logging.SourceSkipped(src, err, "run_id", o.runID)
				return
			}
			results <- parsed{result: result, elapsed: time.Since(start)}
		})
		if err != nil {
			break
		}
	}
	go func() {
		pool.Wait()
		close(results)
	}()

	for p := range results {
		if err := store.Merge(p.result.Entries, p.result.Frequency); err != nil {
			return fmt.Errorf("ingest: merge %s: %w", p.result.Title, err)
		}
		logging.SourceImported(p.result.Title, len(p.result.Entries), p.elapsed, "run_id", o.runID)
	}

	return ctx.Err()
}

// Discover lists the packaged lexicons under dir: ZIP archives and
// directories that carry an index.json manifest. A missing directory
// yields no sources rather than an error. Results are sorted by name
// so discovery order is stable.
func Discover(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("ingest: read lexicon dir %s: %w", dir, err)
	}

	var sources []string
	for _, e := range entries {
		name := e.Name()
		switch {
		case !e.IsDir() && strings.EqualFold(filepath.Ext(name), ".zip"):
			sources = append(sources, filepath.Join(dir, name))
		case e.IsDir():
			manifest := filepath.Join(dir, name, "index.json")
			if _, err := os.Stat(manifest); err == nil {
				sources = append(sources, filepath.Join(dir, name))
			}
		}
	}
	sort.Strings(sources)
	return sources, nil
}

// filterSources applies the enabled-source filter to discovered paths.
// A nil filter selects everything; an empty non-nil filter selects
// nothing. Names are matched against the path's base name.
func filterSources(sources, enabled []string) []string {
	if enabled == nil {
		return sources
	}
	allow := make(map[string]bool, len(enabled))
	for _, name := range enabled {
		allow[name] = true
	}
	var kept []string
	for _, src := range sources {
		if allow[filepath.Base(src)] {
			kept = append(kept, src)
		}
	}
	return kept
}
