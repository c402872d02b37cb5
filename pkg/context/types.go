// Package context implements the Context Gatherer, which builds a
// FileContext bundle for one request, and the Context Assembler, which
// packs prioritized ContextItems into a fixed token budget.
package context

import (
	"strings"

	"github.com/crace/crace/pkg/ranker"
	"github.com/crace/crace/pkg/symbol"
)

// Category is the fixed set of context partitions the Assembler budgets
// independently.
type Category string

const (
	CategorySelection Category = "selection"
	CategoryCursor    Category = "cursor"
	CategoryFile      Category = "file"
	CategorySymbol    Category = "symbol"
	CategoryHistory   Category = "history"
	CategoryMemory    Category = "memory"
	CategoryProject   Category = "project"
)

// ContextItem is one candidate piece of context with a priority used to
// decide inclusion order and a category used to enforce a sub-budget.
type ContextItem struct {
	Content  string
	Priority int // 0-100, higher wins
	Category Category
	Source   string
	Tokens   int
}

// NewContextItem builds a ContextItem, estimating Tokens from Content.
func NewContextItem(content string, priority int, category Category, source string) ContextItem {
	return ContextItem{
		Content:  content,
		Priority: priority,
		Category: category,
		Source:   source,
		Tokens:   EstimateTokens(content),
	}
}

// EstimateTokens is the char-to-token heuristic: 4 chars/token for
// prose, 3 chars/token when any of {}()[]; occur in text.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	charsPerToken := 4
	if strings.ContainsAny(text, "{}()[];") {
		charsPerToken = 3
	}
	return len(text) / charsPerToken
}

// truncationMarker deliberately avoids the {}()[]; delimiter set so that
// appending it never flips a prose item's chars-per-token ratio.
const truncationMarker = "\n... truncated ..."

// TruncateToTokens truncates text to at most maxTokens, preferring a line
// boundary at or beyond 80% of the allowed character span, and appending a
// truncation marker. The marker counts against the allowance, so the result
// never estimates above maxTokens.
func TruncateToTokens(text string, maxTokens int) string {
	if EstimateTokens(text) <= maxTokens {
		return text
	}

	charsPerToken := 4
	if strings.ContainsAny(text, "{}()[];") {
		charsPerToken = 3
	}
	maxChars := maxTokens * charsPerToken
	if len(text) <= maxChars {
		return text
	}

	cut := maxChars - len(truncationMarker)
	if cut < 0 {
		cut = 0
	}
	truncated := text[:cut]
	if last := strings.LastIndexByte(truncated, '\n'); last > int(float64(cut)*0.8) {
		truncated = truncated[:last]
	}
	return truncated + truncationMarker
}

// Budget is the per-category token allocation an Assemble call enforces.
type Budget struct {
	Total       int
	Selection   int
	Cursor      int
	CurrentFile int
	Symbol      int
	History     int
	Memory      int
	Project     int
}

func (b Budget) forCategory(c Category) int {
	switch c {
	case CategorySelection:
		return b.Selection
	case CategoryCursor:
		return b.Cursor
	case CategoryFile:
		return b.CurrentFile
	case CategorySymbol:
		return b.Symbol
	case CategoryHistory:
		return b.History
	case CategoryMemory:
		return b.Memory
	case CategoryProject:
		return b.Project
	default:
		return 500
	}
}

// Intent selects which of the four per-intent budget tables Assemble
// enforces.
type Intent string

const (
	IntentCoding  Intent = "coding"
	IntentDebug   Intent = "debug"
	IntentExplain Intent = "explain"
	IntentChat    Intent = "chat"
)

// BudgetFor returns the default per-category budget for intent. Unknown
// intents fall back to coding's budget.
func BudgetFor(intent Intent) Budget {
	switch intent {
	case IntentDebug:
		return Budget{Total: 8000, Selection: 1500, Cursor: 2000, CurrentFile: 2500, Symbol: 1500, History: 300, Memory: 100, Project: 100}
	case IntentExplain:
		return Budget{Total: 8000, Selection: 2500, Cursor: 1000, CurrentFile: 1500, Symbol: 2000, History: 500, Memory: 300, Project: 200}
	case IntentChat:
		return Budget{Total: 8000, Selection: 1000, Cursor: 500, CurrentFile: 1000, Symbol: 1000, History: 2000, Memory: 1500, Project: 1000}
	default:
		return Budget{Total: 8000, Selection: 2000, Cursor: 1500, CurrentFile: 2000, Symbol: 1500, History: 500, Memory: 300, Project: 200}
	}
}

// AssembledContext is the Assembler's final output.
type AssembledContext struct {
	SystemContext  string
	UserContext    string
	TotalTokens    int
	ItemsIncluded  []string
	ItemsTruncated []string
	ItemsExcluded  []string
}

// Snippet is a transcript-relevant code excerpt harvested from the Symbol
// Index, ready to fold into a ContextItem.
type Snippet struct {
	SymbolName string
	Kind       symbol.Kind
	FilePath   string
	Line       int
	Code       string
	Source     string
}

// FileContext is the Context Gatherer's output bundle: the static
// per-file fields plus the transcript-enrichment fields.
type FileContext struct {
	CurrentFile      string
	FileContent      string
	FilePath         string
	Language         string
	SelectedCode     string
	CursorLine       int
	SurroundingLines string
	ProjectStructure string
	Imports          []string
	RelatedFiles     []string
	ErrorMessage     string

	SymbolsInFile    []symbol.Symbol
	SymbolAtCursor   *symbol.Symbol
	RelatedSymbols   []symbol.Symbol
	RelevantSnippets []Snippet
	ReferencedFiles  []ranker.Result
}
