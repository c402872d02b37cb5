package watcher

import (
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/crace/crace/internal/indexcache"
	"github.com/crace/crace/internal/log"
	"github.com/crace/crace/pkg/symbol"
)

// incrementalBatchSize mirrors IncrementalIndexer's batch size in the
// original Python service: files are re-indexed in batches of this size,
// each file's error swallowed and logged rather than aborting the sweep.
const incrementalBatchSize = 50

// incrementalParallelism bounds how many files of a batch are parsed
// concurrently. Parsing is CPU-bound; the index itself serializes writes.
const incrementalParallelism = 4

// IncrementalIndexer is the pull-mode counterpart to Watcher: instead of
// reacting to filesystem notifications, it compares on-disk mtimes against
// a cached map and re-indexes only the files that advanced since the last
// sweep. Useful when no push channel is available, or as a periodic
// reconciliation pass alongside the push-mode Watcher.
type IncrementalIndexer struct {
	index    *symbol.Index
	logger   log.Logger
	skipDirs map[string]bool

	// Cache, when set, short-circuits parsing: a file whose on-disk mtime
	// matches its cached snapshot is restored into the index directly, and
	// freshly parsed files are written back for the next process run.
	Cache *indexcache.Cache

	// OnIndexed is called after each file in a sweep is successfully
	// re-indexed, mirroring Watcher.OnIndexed. Sweeps parse files
	// concurrently, so OnIndexed must be safe for concurrent calls.
	OnIndexed func(fs *symbol.FileSymbols)

	mu     sync.Mutex
	mtimes map[string]time.Time
}

// NewIncrementalIndexer returns an IncrementalIndexer with an empty mtime
// cache — the first sweep over any root indexes every supported file.
func NewIncrementalIndexer(idx *symbol.Index, logger log.Logger) *IncrementalIndexer {
	return &IncrementalIndexer{
		index:    idx,
		logger:   logger,
		skipDirs: symbol.DefaultSkipDirs(),
		mtimes:   make(map[string]time.Time),
	}
}

// CheckForChanges walks root and returns the paths whose on-disk mtime is
// newer than the cached value (or that are not yet cached at all), without
// indexing them or updating the cache.
func (ii *IncrementalIndexer) CheckForChanges(root string) ([]string, error) {
	var changed []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			if ii.skipDirs[info.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if !ii.index.IsSupported(path) {
			return nil
		}

		ii.mu.Lock()
		cached, ok := ii.mtimes[path]
		ii.mu.Unlock()

		if !ok || info.ModTime().After(cached) {
			changed = append(changed, path)
		}
		return nil
	})
	return changed, err
}

// IndexChangedFiles sweeps root, re-indexing every file CheckForChanges
// reports as advanced, in batches of incrementalBatchSize with up to
// incrementalParallelism files of a batch parsed concurrently. A parse
// error on one file is logged and skipped; the sweep continues. Returns
// the count of files successfully re-indexed.
func (ii *IncrementalIndexer) IndexChangedFiles(root string) (int, error) {
	changed, err := ii.CheckForChanges(root)
	if err != nil {
		return 0, err
	}

	var count int64
	for start := 0; start < len(changed); start += incrementalBatchSize {
		end := start + incrementalBatchSize
		if end > len(changed) {
			end = len(changed)
		}

		var g errgroup.Group
		g.SetLimit(incrementalParallelism)
		for _, path := range changed[start:end] {
			path := path
			g.Go(func() error {
				if ii.indexOne(path) {
					atomic.AddInt64(&count, 1)
				}
				return nil
			})
		}
		_ = g.Wait()
	}
	return int(atomic.LoadInt64(&count)), nil
}

// indexOne brings a single file current, restoring a cached snapshot when
// its mtime still matches and parsing otherwise. Reports success.
func (ii *IncrementalIndexer) indexOne(path string) bool {
	if ii.Cache != nil {
		if info, err := os.Stat(path); err == nil {
			if fs, ok := ii.Cache.Get(path, info.ModTime()); ok {
				ii.index.RestoreFile(fs)
				ii.markIndexedLocked(path, info.ModTime())
				if ii.OnIndexed != nil {
					ii.OnIndexed(&fs)
				}
				return true
			}
		}
	}

	fs, err := ii.index.IndexFile(path, nil)
	if err != nil {
		ii.logWarn("index file failed", "path", path, "error", err)
		return false
	}
	if fs == nil {
		return false
	}
	if ii.Cache != nil {
		ii.Cache.Put(path, fs.LastModified, *fs)
	}
	ii.markIndexedLocked(path, fs.LastModified)
	if ii.OnIndexed != nil {
		ii.OnIndexed(fs)
	}
	return true
}

// MarkFileIndexed records path's current on-disk mtime in the cache without
// re-indexing it, for callers that index a file through another path (e.g.
// the push-mode Watcher) and want IncrementalIndexer's next sweep to see it
// as already current.
func (ii *IncrementalIndexer) MarkFileIndexed(path string) {
	info, err := os.Stat(path)
	if err != nil {
		return
	}
	ii.markIndexedLocked(path, info.ModTime())
}

func (ii *IncrementalIndexer) markIndexedLocked(path string, mtime time.Time) {
	ii.mu.Lock()
	ii.mtimes[path] = mtime
	ii.mu.Unlock()
}

// ClearCache drops every cached mtime, forcing the next sweep to treat
// every file as changed.
func (ii *IncrementalIndexer) ClearCache() {
	ii.mu.Lock()
	ii.mtimes = make(map[string]time.Time)
	ii.mu.Unlock()
}

func (ii *IncrementalIndexer) logWarn(msg string, args ...interface{}) {
	if ii.logger != nil {
		ii.logger.Warn(msg, args...)
	}
}
