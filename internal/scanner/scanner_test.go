package scanner

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func write(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
}

func paths(files []FileInfo) []string {
	out := make([]string, 0, len(files))
	for _, f := range files {
		out = append(out, f.Path)
	}
	return out
}

func TestScan_SkipsBlocklistedAndHidden(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "main.py", "x = 1")
	write(t, dir, "node_modules/dep/index.js", "module.exports = {}")
	write(t, dir, "__pycache__/main.cpython-312.pyc", "")
	write(t, dir, ".hidden/secret.py", "")
	write(t, dir, "src/app.ts", "export const a = 1")

	files, err := Scan(dir)
	require.NoError(t, err)

	got := paths(files)
	assert.ElementsMatch(t, []string{"main.py", "src/app.ts"}, got)
}

func TestScan_HonorsIgnoreFile(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, ".craceignore", "*.gen.ts\nfixtures/\n!fixtures/keep.py\n")
	write(t, dir, "api.gen.ts", "")
	write(t, dir, "api.ts", "")
	write(t, dir, "fixtures/skip.py", "")
	write(t, dir, "fixtures/keep.py", "")

	files, err := Scan(dir)
	require.NoError(t, err)

	got := paths(files)
	assert.Contains(t, got, "api.ts")
	assert.Contains(t, got, "fixtures/keep.py")
	assert.NotContains(t, got, "api.gen.ts")
	assert.NotContains(t, got, "fixtures/skip.py")
}

func TestScan_NestedIgnoreFileAppliesBelowItsDirectory(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "sub/.craceignore", "local.py\n")
	write(t, dir, "sub/local.py", "")
	write(t, dir, "local.py", "")

	files, err := Scan(dir)
	require.NoError(t, err)

	got := paths(files)
	assert.Contains(t, got, "local.py")
	assert.NotContains(t, got, "sub/local.py")
}

func TestScan_ExtensionFilterAndCap(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "a.py", "")
	write(t, dir, "b.py", "")
	write(t, dir, "c.js", "")
	write(t, dir, "notes.txt", "")

	files, err := ScanWithOptions(dir, Options{
		SkipHidden: true,
		Extensions: []string{".py", ".js"},
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a.py", "b.py", "c.js"}, paths(files))

	capped, err := ScanWithOptions(dir, Options{SkipHidden: true, MaxFiles: 2})
	require.NoError(t, err)
	assert.Len(t, capped, 2)
}

func TestScan_LabelsLanguages(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "m.py", "")
	write(t, dir, "m.dat", "")

	files, err := Scan(dir)
	require.NoError(t, err)

	byPath := map[string]string{}
	for _, f := range files {
		byPath[f.Path] = f.Language
	}
	assert.Equal(t, "python", byPath["m.py"])
	assert.Equal(t, "unknown", byPath["m.dat"])
}

func TestParseIgnorePattern(t *testing.T) {
	_, ok := ParseIgnorePattern("# comment")
	assert.False(t, ok)
	_, ok = ParseIgnorePattern("   ")
	assert.False(t, ok)

	p, ok := ParseIgnorePattern("!keep.py")
	require.True(t, ok)
	assert.True(t, p.IsNegation())
}

func TestIgnorePattern_Match(t *testing.T) {
	cases := []struct {
		pattern string
		path    string
		want    bool
	}{
		{"*.log", "debug.log", true},
		{"*.log", "logs/debug.log", true}, // bare name matches at any depth
		{"*.log", "debug.txt", false},
		{"build/", "build/out.js", true},
		{"build/", "build", false}, // file named build is not the directory
		{"/top.py", "top.py", true},
		{"/top.py", "sub/top.py", false},
		{"src/**/gen.py", "src/a/b/gen.py", true},
		{"src/**/gen.py", "other/gen.py", false},
		{"docs/*.md", "docs/readme.md", true},
		{"docs/*.md", "docs/deep/readme.md", false},
	}
	for _, tc := range cases {
		p, ok := ParseIgnorePattern(tc.pattern)
		require.True(t, ok, tc.pattern)
		assert.Equal(t, tc.want, p.Match(tc.path), "%s vs %s", tc.pattern, tc.path)
	}
}

func TestDetectLanguage(t *testing.T) {
	assert.Equal(t, "python", DetectLanguage(".py"))
	assert.Equal(t, "typescript", DetectLanguage("TSX"))
	assert.Equal(t, "unknown", DetectLanguage(".xyz"))
	assert.Equal(t, "unknown", DetectLanguage(""))
}
