package persist

import (
	"fmt"
	"os"
	"time"

	"github.com/meikido/kotoba/core/lexicon"
	"github.com/meikido/kotoba/internal/logging"
)

// BackendKind names which storage shape satisfied a load.
type BackendKind string

const (
	// BackendSnapshot is the eager in-memory store loaded from a
	// snapshot file.
	BackendSnapshot BackendKind = "snapshot"
	// BackendPaged is the lazy SQLite-backed store.
	BackendPaged BackendKind = "paged"
)

// Load opens the dictionary from disk. A paged store, when present, is
// used exclusively and the snapshot is never read. Otherwise the
// snapshot is loaded eagerly and, as a one-time side effect, converted
// into a paged store for subsequent runs; a conversion failure is
// non-fatal and leaves the in-memory store in use for the session.
//
// When neither exists the load fails with lexicon.ErrStoreNotFound.
func Load(snapshotPath, pagedPath string) (Dictionary, BackendKind, error) {
	start := time.Now()

	if _, err := os.Stat(pagedPath); err == nil {
		paged, err := OpenPagedStore(pagedPath)
		if err != nil {
			return nil, "", fmt.Errorf("open paged store: %w", err)
		}
		logging.StoreLoaded(string(BackendPaged), paged.EntryCount(), time.Since(start))
		return paged, BackendPaged, nil
	}

	if _, err := os.Stat(snapshotPath); err != nil {
		return nil, "", fmt.Errorf("%w: no paged store at %s and no snapshot at %s; run `kotoba import` to build the dictionary",
			lexicon.ErrStoreNotFound, pagedPath, snapshotPath)
	}

	store, err := ReadSnapshot(snapshotPath)
	if err != nil {
		return nil, "", err
	}
	logging.StoreLoaded(string(BackendSnapshot), store.EntryCount(), time.Since(start))

	if err := BuildPagedStore(pagedPath, store.Snapshot()); err != nil {
		logging.MigrationFailed(pagedPath, err)
	}

	return store, BackendSnapshot, nil
}
