package context

// Builder ties a Gatherer's FileContext to Assemble's budget-aware packing,
// picking the right per-intent Budget and adding intent-specific items (the
// debug builder ranks the error message above everything but a selection). It is
// constructed explicitly by the caller (the Orchestrator) rather than held
// as a package-level singleton, so tests and concurrent callers each get
// their own instance.
type Builder struct {
	Gatherer *Gatherer
}

// NewBuilder returns a Builder using gatherer to produce FileContexts.
func NewBuilder(gatherer *Gatherer) *Builder {
	return &Builder{Gatherer: gatherer}
}

// Request bundles everything one Build call needs beyond the FileContext
// Gather already produced.
type Request struct {
	Intent         Intent
	FileContext    *FileContext
	History        []HistoryEntry
	Memories       []MemoryEntry
	ProjectSummary string
}

// Build assembles req into an AssembledContext using the budget for
// req.Intent. Debug requests get an extra priority-95 item carrying
// FileContext.ErrorMessage when present, ranking above the cursor window but
// below an explicit selection.
func (b *Builder) Build(req Request) AssembledContext {
	budget := BudgetFor(req.Intent)

	var items []ContextItem
	if req.FileContext != nil {
		items = append(items, BuildFileItems(req.FileContext, req.ProjectSummary)...)
		if req.Intent == IntentDebug && req.FileContext.ErrorMessage != "" {
			items = append(items, NewContextItem(req.FileContext.ErrorMessage, 95, CategoryCursor, "error_message"))
		}
	}
	items = append(items, BuildHistoryItems(req.History)...)
	items = append(items, BuildMemoryItems(req.Memories)...)

	return Assemble(items, budget)
}

// BuildForCoding is Build with Intent fixed to IntentCoding.
func (b *Builder) BuildForCoding(fc *FileContext, history []HistoryEntry, memories []MemoryEntry, projectSummary string) AssembledContext {
	return b.Build(Request{Intent: IntentCoding, FileContext: fc, History: history, Memories: memories, ProjectSummary: projectSummary})
}

// BuildForDebug is Build with Intent fixed to IntentDebug.
func (b *Builder) BuildForDebug(fc *FileContext, history []HistoryEntry, memories []MemoryEntry, projectSummary string) AssembledContext {
	return b.Build(Request{Intent: IntentDebug, FileContext: fc, History: history, Memories: memories, ProjectSummary: projectSummary})
}

// BuildForExplain is Build with Intent fixed to IntentExplain.
func (b *Builder) BuildForExplain(fc *FileContext, history []HistoryEntry, memories []MemoryEntry, projectSummary string) AssembledContext {
	return b.Build(Request{Intent: IntentExplain, FileContext: fc, History: history, Memories: memories, ProjectSummary: projectSummary})
}

// BuildForChat is Build with Intent fixed to IntentChat.
func (b *Builder) BuildForChat(fc *FileContext, history []HistoryEntry, memories []MemoryEntry, projectSummary string) AssembledContext {
	return b.Build(Request{Intent: IntentChat, FileContext: fc, History: history, Memories: memories, ProjectSummary: projectSummary})
}
