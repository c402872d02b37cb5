package context

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crace/crace/pkg/ranker"
	"github.com/crace/crace/pkg/symbol"
)

func TestSurroundingWindow_MarksCursorLine(t *testing.T) {
	var lines []string
	for i := 1; i <= 60; i++ {
		lines = append(lines, "line")
	}
	content := strings.Join(lines, "\n")

	out := surroundingWindow(content, 30)
	require.NotEmpty(t, out)

	assert.Contains(t, out, ">>>   30 | line")
	assert.Contains(t, out, "      29 | line")
	// Exactly one cursor marker, and the window spans ±20 lines.
	assert.Equal(t, 1, strings.Count(out, ">>>"))
	assert.Equal(t, 41, strings.Count(out, "\n"))
	assert.NotContains(t, out, "   9 |")
	assert.NotContains(t, out, "  51 |")
}

func TestSurroundingWindow_ClampsAtFileStart(t *testing.T) {
	content := "one\ntwo\nthree"
	out := surroundingWindow(content, 1)
	assert.True(t, strings.HasPrefix(out, ">>>    1 | one"))
	assert.Equal(t, 3, strings.Count(out, "\n"))
}

func TestExtractImports_Python(t *testing.T) {
	src := `import os
from pathlib import Path

def work():
    import_free = 1
    return import_free
`
	got := extractImports("python", src)
	assert.Equal(t, []string{"import os", "from pathlib import Path"}, got)
}

func TestExtractImports_CapsAtFifty(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 80; i++ {
		sb.WriteString("import m\n")
	}
	got := extractImports("python", sb.String())
	assert.Len(t, got, 50)
}

func TestExtractImports_UnknownLanguage(t *testing.T) {
	assert.Nil(t, extractImports("cobol", "PROCEDURE DIVISION."))
}

func TestDetectLanguage(t *testing.T) {
	assert.Equal(t, "python", detectLanguage("a/b/m.py"))
	assert.Equal(t, "typescript", detectLanguage("app.TSX"))
	assert.Equal(t, "unknown", detectLanguage("binary.dat"))
}

func TestExtractKeywords_SplitsAndCompounds(t *testing.T) {
	got := extractKeywords("tell me about the SmartRanker and file_watcher")

	set := map[string]bool{}
	for _, k := range got {
		set[strings.ToLower(k)] = true
	}

	assert.True(t, set["smartranker"])
	assert.True(t, set["smart"], "camelCase parts are kept")
	assert.True(t, set["ranker"])
	assert.True(t, set["file_watcher"])
	assert.True(t, set["watcher"], "snake_case parts are kept")
	assert.True(t, set["smartranker_and"] || set["about_smartranker"], "adjacent-pair compounds are added")
	assert.False(t, set["the"], "stopwords are dropped")
	assert.False(t, set["me"])
}

func TestSymbolAtCursor_InnermostWins(t *testing.T) {
	syms := []symbol.Symbol{
		{Name: "Outer", Kind: symbol.KindClass, Line: 1, EndLine: 20},
		{Name: "inner", Kind: symbol.KindMethod, Line: 5, EndLine: 8, Parent: "Outer"},
		{Name: "later", Kind: symbol.KindFunction, Line: 25, EndLine: 30},
	}

	got := symbolAtCursor(syms, 6)
	require.NotNil(t, got)
	assert.Equal(t, "inner", got.Name)

	// Between symbols: nearest definition at or before the cursor.
	got = symbolAtCursor(syms, 22)
	require.NotNil(t, got)
	assert.Equal(t, "inner", got.Name)

	assert.Nil(t, symbolAtCursor(syms, 0))
}

func TestGather_WithoutIndexStillReturnsBasics(t *testing.T) {
	g := NewGatherer(nil, nil)
	fc, err := g.Gather(Input{
		FilePath:    "m.py",
		FileContent: "import os\n\ndef run():\n    pass\n",
		CursorLine:  3,
		Selection:   "def run():",
	})
	require.NoError(t, err)

	assert.Equal(t, "python", fc.Language)
	assert.Equal(t, "def run():", fc.SelectedCode)
	assert.Contains(t, fc.SurroundingLines, ">>>    3 | def run():")
	assert.Equal(t, []string{"import os"}, fc.Imports)
	assert.Nil(t, fc.SymbolAtCursor)
}

func TestGather_IndexesCurrentFileAndFindsCursorSymbol(t *testing.T) {
	idx := symbol.NewIndex()
	g := NewGatherer(idx, ranker.New())

	fc, err := g.Gather(Input{
		FilePath:    "fresh.py",
		FileContent: "def first():\n    pass\n\ndef second():\n    pass\n",
		CursorLine:  4,
	})
	require.NoError(t, err)

	require.NotEmpty(t, fc.SymbolsInFile)
	require.NotNil(t, fc.SymbolAtCursor)
	assert.Equal(t, "second", fc.SymbolAtCursor.Name)
}
