package context

import (
	"sort"
	"strings"
)

// systemCategories partitions SystemContext from UserContext in Assemble's
// output: memory and project-summary items are framing the conversation, not
// part of what the user is actively looking at.
var systemCategories = map[Category]bool{
	CategoryMemory:  true,
	CategoryProject: true,
}

// Assemble packs items into budget, highest Priority first, enforcing both
// budget.Total and each item's per-category sub-budget. An item that doesn't
// fit whole is truncated to the category's remaining budget; if fewer than
// 100 tokens of real content would survive truncation, it is dropped instead
// of included as a sliver. Items are partitioned into SystemContext (memory,
// project) and UserContext (everything else) in the order they were
// included.
func Assemble(items []ContextItem, budget Budget) AssembledContext {
	ordered := make([]ContextItem, len(items))
	copy(ordered, items)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Priority > ordered[j].Priority })

	categorySpent := make(map[Category]int)
	totalSpent := 0

	var systemParts, userParts []string
	result := AssembledContext{}

	for _, item := range ordered {
		catBudget := budget.forCategory(item.Category)
		catRemaining := catBudget - categorySpent[item.Category]
		totalRemaining := budget.Total - totalSpent

		allowed := catRemaining
		if totalRemaining < allowed {
			allowed = totalRemaining
		}
		if allowed <= 0 {
			result.ItemsExcluded = append(result.ItemsExcluded, item.Source)
			continue
		}

		content := item.Content
		tokens := item.Tokens
		truncated := false
		if tokens > allowed {
			content = TruncateToTokens(content, allowed)
			tokens = EstimateTokens(content)
			truncated = true
		}

		if truncated && tokens < 100 {
			result.ItemsExcluded = append(result.ItemsExcluded, item.Source)
			continue
		}

		categorySpent[item.Category] += tokens
		totalSpent += tokens

		if systemCategories[item.Category] {
			systemParts = append(systemParts, content)
		} else {
			userParts = append(userParts, content)
		}

		if truncated {
			result.ItemsTruncated = append(result.ItemsTruncated, item.Source)
		} else {
			result.ItemsIncluded = append(result.ItemsIncluded, item.Source)
		}
	}

	result.SystemContext = strings.Join(systemParts, "\n\n")
	result.UserContext = strings.Join(userParts, "\n\n")
	result.TotalTokens = totalSpent
	return result
}

// HistoryEntry is one turn of prior conversation, oldest first, as fed to
// BuildHistoryItems.
type HistoryEntry struct {
	Role    string
	Content string
}

const maxHistoryItems = 10

// BuildHistoryItems converts the last maxHistoryItems turns of history into
// ContextItems, most recent first, with descending priority (70, 65, 60...)
// so Assemble keeps the most recent turns when the history budget is tight.
func BuildHistoryItems(history []HistoryEntry) []ContextItem {
	if len(history) > maxHistoryItems {
		history = history[len(history)-maxHistoryItems:]
	}
	items := make([]ContextItem, 0, len(history))
	for i := len(history) - 1; i >= 0; i-- {
		rank := len(history) - 1 - i
		priority := 70 - 5*rank
		entry := history[i]
		content := entry.Role + ": " + entry.Content
		items = append(items, NewContextItem(content, priority, CategoryHistory, "history"))
	}
	return items
}

// MemoryEntry is one stored memory fact, already ranked by relevance
// (highest first) by the caller (the Memory Store's retrieval call).
type MemoryEntry struct {
	Content string
}

const maxMemoryItems = 5

// BuildMemoryItems converts up to maxMemoryItems ranked memories into
// ContextItems with descending priority (40, 35, 30...).
func BuildMemoryItems(memories []MemoryEntry) []ContextItem {
	if len(memories) > maxMemoryItems {
		memories = memories[:maxMemoryItems]
	}
	items := make([]ContextItem, 0, len(memories))
	for i, m := range memories {
		priority := 40 - 5*i
		items = append(items, NewContextItem(m.Content, priority, CategoryMemory, "memory"))
	}
	return items
}

// BuildFileItems converts a FileContext into the fixed ContextItem set:
// selection (if any), cursor window, symbol-at-cursor,
// relevant snippets (top 5, 80-5i), referenced files (top 3, 75-5i), the
// current file itself (60, only when there is no selection to prioritize
// instead), symbols-in-file (50), project structure (30), and a project
// summary placeholder (25) a caller can override via projectSummary.
func BuildFileItems(fc *FileContext, projectSummary string) []ContextItem {
	var items []ContextItem

	if fc.SelectedCode != "" {
		items = append(items, NewContextItem(fc.SelectedCode, 100, CategorySelection, "selection"))
	}
	if fc.SurroundingLines != "" {
		items = append(items, NewContextItem(fc.SurroundingLines, 90, CategoryCursor, "cursor"))
	}
	if fc.SymbolAtCursor != nil {
		items = append(items, NewContextItem(fc.SymbolAtCursor.Signature+"\n"+fc.SymbolAtCursor.Docstring, 85, CategorySymbol, "symbol_at_cursor"))
	}

	snippets := fc.RelevantSnippets
	if len(snippets) > 5 {
		snippets = snippets[:5]
	}
	for i, s := range snippets {
		priority := 80 - 5*i
		items = append(items, NewContextItem(s.Code, priority, CategorySymbol, "relevant_snippets:"+s.SymbolName))
	}

	refs := fc.ReferencedFiles
	if len(refs) > 3 {
		refs = refs[:3]
	}
	for i, r := range refs {
		priority := 75 - 5*i
		items = append(items, NewContextItem(r.Content, priority, CategoryFile, "referenced_files:"+r.Path))
	}

	if fc.SelectedCode == "" && fc.FileContent != "" {
		content := fc.FilePath + "\n" + fc.FileContent
		items = append(items, NewContextItem(content, 60, CategoryFile, "current_file"))
	}

	if len(fc.SymbolsInFile) > 0 {
		var sb strings.Builder
		for _, s := range fc.SymbolsInFile {
			sb.WriteString(string(s.Kind))
			sb.WriteString(" ")
			sb.WriteString(s.QualifiedName())
			sb.WriteString("\n")
		}
		items = append(items, NewContextItem(sb.String(), 50, CategorySymbol, "symbols_in_file"))
	}

	if fc.ProjectStructure != "" {
		items = append(items, NewContextItem(fc.ProjectStructure, 30, CategoryProject, "project_structure"))
	}
	if projectSummary != "" {
		items = append(items, NewContextItem(projectSummary, 25, CategoryProject, "project_summary"))
	}

	return items
}
