// Package daemon wires every CRACE component into one running process:
// the symbol index, embedding index, file watcher, memory store,
// orchestrator, HTTP control plane, and WebSocket voice channel. The
// lifecycle is build components, load persisted state, start background
// workers, serve until signaled — scoped per project root rather than a
// single global index.
package daemon

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"github.com/crace/crace/internal/config"
	"github.com/crace/crace/internal/errs"
	"github.com/crace/crace/internal/httpapi"
	"github.com/crace/crace/internal/indexcache"
	"github.com/crace/crace/internal/log"
	"github.com/crace/crace/internal/projectid"
	"github.com/crace/crace/internal/ws"
	cracecontext "github.com/crace/crace/pkg/context"
	"github.com/crace/crace/pkg/embed"
	"github.com/crace/crace/pkg/hybrid"
	"github.com/crace/crace/pkg/llm"
	"github.com/crace/crace/pkg/memory"
	"github.com/crace/crace/pkg/orchestrator"
	"github.com/crace/crace/pkg/ranker"
	"github.com/crace/crace/pkg/registry"
	"github.com/crace/crace/pkg/symbol"
	"github.com/crace/crace/pkg/vectorindex"
	"github.com/crace/crace/pkg/watcher"
)

// Daemon holds every long-lived component CRACE needs and the single
// http.Server that serves both the control plane and the voice channel.
type Daemon struct {
	cfg    *config.Config
	logger log.Logger

	mu          sync.RWMutex
	projectRoot string

	registry    *registry.Registry
	symbols     *symbol.Index
	symbolVecs  *vectorindex.Index
	chunkVecs   *vectorindex.Index
	embedder    *embed.EmbeddingService
	rnk         *ranker.Ranker
	gatherer    *cracecontext.Gatherer
	memoryStore *memory.Store
	orch        *orchestrator.Orchestrator

	watcher   *watcher.Watcher
	indexer   *watcher.IncrementalIndexer
	fileCache *indexcache.Cache

	httpSrv *http.Server

	ctx    context.Context
	cancel context.CancelFunc
}

// New constructs every component from cfg but does not start the watcher
// or HTTP server; call Start for that.
func New(cfg *config.Config, logger log.Logger) (*Daemon, error) {
	if logger == nil {
		logger = log.Default()
	}

	embedder, err := embed.NewEmbeddingService(cfg)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "daemon.New", "init embedding service", err)
	}

	memStore, err := memory.New(cfg.StorageDir)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	d := &Daemon{
		cfg:         cfg,
		logger:      logger,
		projectRoot: cfg.ProjectRoot,
		registry:    registry.New(),
		symbols:     symbol.NewIndex(),
		symbolVecs:  vectorindex.New(cfg.EmbeddingDimension),
		chunkVecs:   vectorindex.New(cfg.EmbeddingDimension),
		embedder:    embedder,
		rnk:         ranker.New(),
		memoryStore: memStore,
		ctx:         ctx,
		cancel:      cancel,
	}
	d.gatherer = cracecontext.NewGatherer(d.symbols, d.rnk)
	d.orch = orchestrator.New(d.gatherer, d.memoryStore, d.llmClient(), logger)

	d.loadPersistedIndex()

	return d, nil
}

// llmRate bounds the external-call stage: at most llmBurst requests may
// fire back to back, refilling at llmRate per second, so a chatty voice
// session cannot saturate the provider.
const (
	llmRate  = 4
	llmBurst = 8
)

// llmClient resolves the orchestrator's LLM collaborator. The LLM vendor
// itself stays outside CRACE behind the fixed llm.Client interface, never
// bound to a concrete SDK; llm.StubClient is the stand-in every
// caller of Handle exercises until a real binding is configured out of
// process (e.g. over the same llm.Client interface from a sidecar). The
// limiter and deadline wrap whichever binding sits underneath.
func (d *Daemon) llmClient() llm.Client {
	return llm.Limited(&llm.StubClient{Response: ""}, rate.NewLimiter(rate.Limit(llmRate), llmBurst), d.cfg.LLMTimeout)
}

func (d *Daemon) symbolsSnapshotPath() string {
	return filepath.Join(d.cfg.StorageDir, projectid.For(d.projectRoot)+"_symbols.json")
}

func (d *Daemon) chunksSnapshotPath() string {
	return filepath.Join(d.cfg.StorageDir, projectid.For(d.projectRoot)+"_chunks.json")
}

func (d *Daemon) fileCachePath() string {
	return filepath.Join(d.cfg.StorageDir, projectid.For(d.projectRoot)+"_filesymbols.bin")
}

// loadPersistedIndex restores the embedding index snapshots for the
// current project root, if any exist. A missing or corrupt snapshot is not
// fatal: that index starts empty. The watcher and the incremental indexer
// do not embed files, so the chunk index is refilled only by an index
// project request and the symbol snapshot only by `cracectl index`.
func (d *Daemon) loadPersistedIndex() {
	if d.projectRoot == "" {
		return
	}
	if err := d.symbolVecs.Load(d.symbolsSnapshotPath()); err != nil {
		d.logger.Debug("daemon: no symbol embedding snapshot loaded: %v", err)
	}
	if err := d.chunkVecs.Load(d.chunksSnapshotPath()); err != nil {
		d.logger.Debug("daemon: no chunk embedding snapshot loaded: %v", err)
	}
}

// savePersistedIndex flushes both embedding snapshots and the file-symbol
// cache to disk.
func (d *Daemon) savePersistedIndex() {
	if d.projectRoot == "" {
		return
	}
	if err := os.MkdirAll(d.cfg.StorageDir, 0o755); err != nil {
		d.logger.Warn("daemon: create storage dir: %v", err)
		return
	}
	if err := d.symbolVecs.Save(d.symbolsSnapshotPath()); err != nil {
		d.logger.Warn("daemon: save symbol embedding snapshot: %v", err)
	}
	if err := d.chunkVecs.Save(d.chunksSnapshotPath()); err != nil {
		d.logger.Warn("daemon: save chunk embedding snapshot: %v", err)
	}
	if d.fileCache != nil {
		if err := d.fileCache.Flush(); err != nil {
			d.logger.Warn("daemon: flush file-symbol cache: %v", err)
		}
	}
}

// SetProjectRoot is httpapi.Deps.SetProjectRoot: it swaps the active root,
// persists the outgoing root's embedding snapshots, restarts the watcher
// against the new root, and runs an initial full index.
func (d *Daemon) SetProjectRoot(root string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.savePersistedIndex()

	if d.watcher != nil {
		d.watcher.Stop()
		d.watcher = nil
	}

	d.projectRoot = root
	d.cfg.ProjectRoot = root
	d.symbolVecs = vectorindex.New(d.cfg.EmbeddingDimension)
	d.chunkVecs = vectorindex.New(d.cfg.EmbeddingDimension)
	d.loadPersistedIndex()

	return d.startWatcherLocked()
}

// ProjectRoot is httpapi.Deps.ProjectRoot.
func (d *Daemon) ProjectRoot() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.projectRoot
}

// startWatcherLocked starts the file watcher and incremental indexer
// against d.projectRoot. Callers must hold d.mu.
func (d *Daemon) startWatcherLocked() error {
	if d.projectRoot == "" {
		return nil
	}

	if err := os.MkdirAll(d.cfg.StorageDir, 0o755); err == nil {
		fc, cerr := indexcache.Open(d.fileCachePath())
		if cerr != nil {
			d.logger.Warn("daemon: open file-symbol cache: %v", cerr)
		}
		d.fileCache = fc
	}

	d.indexer = watcher.NewIncrementalIndexer(d.symbols, d.logger)
	d.indexer.Cache = d.fileCache
	if _, err := d.indexer.IndexChangedFiles(d.projectRoot); err != nil {
		d.logger.Warn("daemon: initial index of %s failed: %v", d.projectRoot, err)
	}
	if d.fileCache != nil {
		if err := d.fileCache.Flush(); err != nil {
			d.logger.Warn("daemon: flush file-symbol cache: %v", err)
		}
	}

	w, err := watcher.New(d.projectRoot, d.symbols,
		watcher.WithDebounce(d.cfg.WatcherDebounce),
		watcher.WithPool(d.cfg.IndexerPoolSize, d.cfg.IndexerQueueDepth),
		watcher.WithLogger(d.logger),
	)
	if err != nil {
		return errs.Wrap(errs.Internal, "daemon.startWatcher", "start watcher", err)
	}
	w.OnIndexed = func(fs *symbol.FileSymbols) {
		d.indexer.MarkFileIndexed(fs.FilePath)
		if d.fileCache != nil {
			d.fileCache.Put(fs.FilePath, fs.LastModified, *fs)
		}
	}
	w.OnRemoved = func(path string) {
		d.logger.Debug("daemon: removed from index: %s", path)
	}
	if err := w.Start(); err != nil {
		return errs.Wrap(errs.Internal, "daemon.startWatcher", "start watcher", err)
	}
	d.watcher = w
	return nil
}

// httpapiDeps builds the control-plane dependency bundle.
func (d *Daemon) httpapiDeps() httpapi.Deps {
	return httpapi.Deps{
		Config:        d.cfg,
		Registry:      d.registry,
		SymbolIndex:   d.symbols,
		Vectors:       d.chunkVecs,
		Embedder:      d.embedder,
		HybridWeights: hybrid.Weights{Keyword: d.cfg.HybridKeywordWeight, Semantic: d.cfg.HybridSemanticWeight},
		Memory:        d.memoryStore,
		Orchestrator:  d.orch,
		Logger:        d.logger,
		SetProjectRoot: d.SetProjectRoot,
		ProjectRoot:    d.ProjectRoot,
	}
}

// Start runs the watcher (if a project root is configured) and serves the
// control plane and voice channel on cfg.HTTPAddr until ctx is canceled or
// a SIGINT/SIGTERM arrives.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	if err := d.startWatcherLocked(); err != nil {
		d.mu.Unlock()
		return err
	}
	d.mu.Unlock()

	mux := http.NewServeMux()
	mux.Handle("/", httpapi.NewServer(d.httpapiDeps()).Handler())

	wsPath := d.cfg.WSPath
	if wsPath == "" {
		wsPath = "/ws/voice"
	}
	voice := ws.NewServer(d.orch, nil, nil, d.logger)
	voice.STTTimeout = d.cfg.STTTimeout
	voice.TTSTimeout = d.cfg.TTSTimeout
	mux.Handle(wsPath, voice)

	d.httpSrv = &http.Server{
		Addr:    d.cfg.HTTPAddr,
		Handler: mux,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	serveErr := make(chan error, 1)
	go func() {
		d.logger.Info("daemon: listening on %s", d.cfg.HTTPAddr)
		serveErr <- d.httpSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case <-d.ctx.Done():
	case <-sigCh:
		d.logger.Info("daemon: shutting down")
	case err := <-serveErr:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	}

	return d.Stop()
}

// Stop gracefully shuts down the HTTP server, stops the watcher, and
// flushes embedding snapshots and the file-symbol cache to disk.
func (d *Daemon) Stop() error {
	d.cancel()

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.watcher != nil {
		d.watcher.Stop()
		d.watcher = nil
	}
	d.savePersistedIndex()

	if d.httpSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := d.httpSrv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down http server: %w", err)
		}
	}
	return nil
}
