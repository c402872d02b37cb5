// Package watcher implements the File Watcher: a recursive, debounced
// filesystem subscription that keeps the Symbol Index (and, through a
// caller-supplied hook, the Embedding Index) in sync with files on disk, and
// the Incremental Indexer: a pull-mode mtime sweep usable when no push
// notification channel is available.
package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/semaphore"

	"github.com/crace/crace/internal/log"
	"github.com/crace/crace/pkg/symbol"
)

// DefaultDebounce is the coalescing window: successive events for the
// same path overwrite each other until it expires.
const DefaultDebounce = 500 * time.Millisecond

// Pool defaults: expired debounce windows post work onto a bounded queue
// drained by at most DefaultPoolSize concurrent index units. Overflow drops
// the event — safe, because debounce guarantees at most one pending entry
// per path and the next write to that path re-fires it.
const (
	DefaultPoolSize   = 4
	DefaultQueueDepth = 256
)

// op is the coalesced kind of change dispatched to the handler once a
// path's debounce window expires.
type op int

const (
	opUpsert op = iota // created or modified: (re)index the file
	opRemove           // deleted or renamed away: drop the file's symbols
)

// Watcher recursively watches a project root and, per path, debounces
// rapid-fire filesystem events before driving the Symbol Index.
type Watcher struct {
	root     string
	index    *symbol.Index
	debounce time.Duration
	logger   log.Logger
	skipDirs map[string]bool

	// OnIndexed is called after a created/modified file has been
	// successfully (re)indexed, so the caller can batch-upsert its symbols
	// into the Embedding Index.
	OnIndexed func(fs *symbol.FileSymbols)
	// OnRemoved is called after a deleted/renamed-away file's symbols have
	// been dropped from the Symbol Index.
	OnRemoved func(path string)

	fsw *fsnotify.Watcher

	poolSize   int
	queueDepth int
	jobs       chan job
	sem        *semaphore.Weighted

	mu      sync.Mutex
	timers  map[string]*time.Timer
	pending map[string]op

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	wg     sync.WaitGroup
}

// job is one coalesced change dispatched from a debounce window to the
// worker pool.
type job struct {
	path string
	kind op
}

// Option configures a Watcher at construction time.
type Option func(*Watcher)

// WithDebounce overrides the default 500ms debounce window.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) { w.debounce = d }
}

// WithLogger attaches a logger; failures during indexing of a single file
// are logged through it and swallowed, never stopping the watcher.
func WithLogger(l log.Logger) Option {
	return func(w *Watcher) { w.logger = l }
}

// WithPool sizes the indexer worker pool: at most size index units run
// concurrently, with up to depth expired events queued ahead of them.
// Non-positive values keep the defaults.
func WithPool(size, depth int) Option {
	return func(w *Watcher) {
		if size > 0 {
			w.poolSize = size
		}
		if depth > 0 {
			w.queueDepth = depth
		}
	}
}

// New creates a Watcher over root, backed by idx. Call Start to begin
// watching and Stop to tear it down.
func New(root string, idx *symbol.Index, opts ...Option) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watcher: create fsnotify watcher: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &Watcher{
		root:       root,
		index:      idx,
		debounce:   DefaultDebounce,
		skipDirs:   symbol.DefaultSkipDirs(),
		fsw:        fsw,
		poolSize:   DefaultPoolSize,
		queueDepth: DefaultQueueDepth,
		timers:     make(map[string]*time.Timer),
		pending:    make(map[string]op),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
	for _, o := range opts {
		o(w)
	}
	w.jobs = make(chan job, w.queueDepth)
	w.sem = semaphore.NewWeighted(int64(w.poolSize))
	return w, nil
}

// Start subscribes recursively under root and begins the event loop and the
// worker-pool dispatcher.
func (w *Watcher) Start() error {
	if err := w.addRecursive(w.root); err != nil {
		return fmt.Errorf("watcher: subscribe %s: %w", w.root, err)
	}
	w.wg.Add(2)
	go w.loop()
	go w.dispatch()
	return nil
}

// Stop closes the underlying fsnotify watcher, waits for the event loop and
// the worker pool to finish, then stops any pending debounce timers; their
// events are discarded.
func (w *Watcher) Stop() {
	close(w.done)
	w.cancel()
	_ = w.fsw.Close()
	w.wg.Wait()

	w.mu.Lock()
	for _, t := range w.timers {
		t.Stop()
	}
	w.mu.Unlock()
}

// dispatch drains the job queue through the weighted semaphore so at most
// poolSize index units run at once.
func (w *Watcher) dispatch() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case j := <-w.jobs:
			if err := w.sem.Acquire(w.ctx, 1); err != nil {
				return
			}
			w.wg.Add(1)
			go func(j job) {
				defer w.wg.Done()
				defer w.sem.Release(1)
				w.run(j)
			}(j)
		}
	}
}

func (w *Watcher) run(j job) {
	switch j.kind {
	case opUpsert:
		w.handleUpsert(j.path)
	case opRemove:
		w.handleRemove(j.path)
	}
}

func (w *Watcher) addRecursive(dir string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			return nil
		}
		if w.skipDirs[info.Name()] {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}

func (w *Watcher) loop() {
	defer w.wg.Done()
	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case _, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
		case <-w.done:
			return
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if w.isBlocked(event.Name) {
		return
	}

	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			_ = w.addRecursive(event.Name)
			return
		}
	}

	if !w.index.IsSupported(event.Name) {
		return
	}

	var kind op
	switch {
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		kind = opRemove
	case event.Op&(fsnotify.Create|fsnotify.Write) != 0:
		kind = opUpsert
	default:
		return
	}

	w.schedule(event.Name, kind)
}

func (w *Watcher) isBlocked(path string) bool {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if w.skipDirs[part] {
			return true
		}
	}
	return false
}

// schedule debounces path: a later call before the window fires
// overwrites the pending op and resets the timer.
func (w *Watcher) schedule(path string, kind op) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pending[path] = kind
	if t, ok := w.timers[path]; ok {
		t.Stop()
	}
	w.timers[path] = time.AfterFunc(w.debounce, func() { w.fire(path) })
}

// fire posts the path's coalesced op onto the bounded pool queue. A full
// queue drops the event: debounce already guarantees at most one pending
// entry per path, so the drop only delays that path until its next write.
func (w *Watcher) fire(path string) {
	w.mu.Lock()
	kind, ok := w.pending[path]
	delete(w.pending, path)
	delete(w.timers, path)
	w.mu.Unlock()
	if !ok {
		return
	}

	select {
	case w.jobs <- job{path: path, kind: kind}:
	default:
		w.logWarn("indexer queue full, dropping event", "path", path)
	}
}

func (w *Watcher) handleUpsert(path string) {
	fs, err := w.index.IndexFile(path, nil)
	if err != nil {
		w.logWarn("index file failed", "path", path, "error", err)
		return
	}
	if fs == nil {
		return
	}
	if w.OnIndexed != nil {
		w.OnIndexed(fs)
	}
}

func (w *Watcher) handleRemove(path string) {
	if !w.index.RemoveFile(path) {
		return
	}
	if w.OnRemoved != nil {
		w.OnRemoved(path)
	}
}

func (w *Watcher) logWarn(msg string, args ...interface{}) {
	if w.logger != nil {
		w.logger.Warn(msg, args...)
	}
}
