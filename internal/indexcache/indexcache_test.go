package indexcache

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crace/crace/pkg/symbol"
)

func TestOpen_MissingFileStartsEmpty(t *testing.T) {
	c, err := Open(filepath.Join(t.TempDir(), "nope.msgpack"))
	require.NoError(t, err)
	assert.Equal(t, 0, c.Len())
}

func TestPutGet_RoundTrip(t *testing.T) {
	c, err := Open(filepath.Join(t.TempDir(), "cache.msgpack"))
	require.NoError(t, err)

	mt := time.Now().Truncate(time.Second)
	fs := symbol.FileSymbols{FilePath: "m.py", Language: "python", Symbols: []symbol.Symbol{{Name: "greet", Kind: symbol.KindFunction}}}
	c.Put("m.py", mt, fs)

	got, ok := c.Get("m.py", mt)
	require.True(t, ok)
	assert.Equal(t, "greet", got.Symbols[0].Name)

	_, ok = c.Get("m.py", mt.Add(time.Second))
	assert.False(t, ok, "a changed mtime should miss the cache")
}

func TestFlushAndReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.msgpack")
	c, err := Open(path)
	require.NoError(t, err)

	mt := time.Now().Truncate(time.Second)
	c.Put("m.py", mt, symbol.FileSymbols{FilePath: "m.py"})
	require.NoError(t, c.Flush())

	c2, err := Open(path)
	require.NoError(t, err)
	_, ok := c2.Get("m.py", mt)
	assert.True(t, ok)
}

func TestDelete(t *testing.T) {
	c, err := Open(filepath.Join(t.TempDir(), "cache.msgpack"))
	require.NoError(t, err)

	mt := time.Now()
	c.Put("a.py", mt, symbol.FileSymbols{FilePath: "a.py"})
	c.Delete("a.py")

	_, ok := c.Get("a.py", mt)
	assert.False(t, ok)
}
