package watcher

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crace/crace/internal/indexcache"
	"github.com/crace/crace/pkg/symbol"
)

func TestIncrementalIndexer_FirstSweepIndexesEverything(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.py"), []byte("def a(): pass\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.py"), []byte("def b(): pass\n"), 0o644))

	idx := symbol.NewIndex()
	ii := NewIncrementalIndexer(idx, nil)

	count, err := ii.IndexChangedFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.NotNil(t, idx.GetFileSymbols(filepath.Join(dir, "a.py")))
}

func TestIncrementalIndexer_SecondSweepSkipsUnchanged(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.py")
	require.NoError(t, os.WriteFile(path, []byte("def a(): pass\n"), 0o644))

	idx := symbol.NewIndex()
	ii := NewIncrementalIndexer(idx, nil)

	_, err := ii.IndexChangedFiles(dir)
	require.NoError(t, err)

	changed, err := ii.CheckForChanges(dir)
	require.NoError(t, err)
	assert.Empty(t, changed)

	// Touch the file forward in time and confirm it is picked up again.
	future := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(path, future, future))

	changed, err = ii.CheckForChanges(dir)
	require.NoError(t, err)
	assert.Contains(t, changed, path)
}

func TestIncrementalIndexer_ClearCacheForcesFullResweep(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.py")
	require.NoError(t, os.WriteFile(path, []byte("def a(): pass\n"), 0o644))

	idx := symbol.NewIndex()
	ii := NewIncrementalIndexer(idx, nil)
	_, err := ii.IndexChangedFiles(dir)
	require.NoError(t, err)

	ii.ClearCache()
	changed, err := ii.CheckForChanges(dir)
	require.NoError(t, err)
	assert.Contains(t, changed, path)
}

func TestIncrementalIndexer_SnapshotCacheRestoresWithoutReparsing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.py")
	require.NoError(t, os.WriteFile(path, []byte("def a():\n    b()\n\ndef b(): pass\n"), 0o644))

	cachePath := filepath.Join(t.TempDir(), "filesymbols.bin")
	fc, err := indexcache.Open(cachePath)
	require.NoError(t, err)

	warm := NewIncrementalIndexer(symbol.NewIndex(), nil)
	warm.Cache = fc
	count, err := warm.IndexChangedFiles(dir)
	require.NoError(t, err)
	require.Equal(t, 1, count)
	require.NoError(t, fc.Flush())

	// A second process run with the same cache file restores the parsed
	// symbols, call graph included, straight from the snapshot.
	reopened, err := indexcache.Open(cachePath)
	require.NoError(t, err)
	assert.Equal(t, 1, reopened.Len())

	idx := symbol.NewIndex()
	cold := NewIncrementalIndexer(idx, nil)
	cold.Cache = reopened
	count, err = cold.IndexChangedFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	require.NotNil(t, idx.GetFileSymbols(path))
	assert.Contains(t, idx.GetCallees("a"), "b")
}
