// Package orchestrator implements the request orchestrator: a small directed
// graph of stages — gather context, detect intent, shape a per-intent
// prompt, assemble it under a token budget, call the LLM, and emit a
// terminal response — with exactly one entry point and one routing
// decision per request.
//
// Each stage is a plain method `State -> State` composed by
// explicit sequencing rather than an implicit dataflow graph, so routing
// is a pure decision over the state prior stages produced.
package orchestrator

import (
	"context"
	"sort"
	"strings"

	"github.com/crace/crace/internal/errs"
	"github.com/crace/crace/internal/log"
	cracecontext "github.com/crace/crace/pkg/context"
	"github.com/crace/crace/pkg/llm"
	"github.com/crace/crace/pkg/memory"
	"github.com/crace/crace/pkg/ranker"
)

// Intent is one of the six routing destinations.
type Intent string

const (
	IntentCoding   Intent = "coding"
	IntentDebug    Intent = "debug"
	IntentWorkflow Intent = "workflow"
	IntentExplain  Intent = "explain"
	IntentChat     Intent = "chat"
	IntentPlan     Intent = "plan"
)

// keywordTable maps intent keywords to the Intent they select. Multi-word
// phrases are listed ahead of single words so e.g. "fix this bug" is
// checked as a phrase before "fix" alone.
var keywordTable = []struct {
	phrase string
	intent Intent
}{
	{"fix this bug", IntentDebug},
	{"what's wrong with", IntentDebug},
	{"why is this failing", IntentDebug},
	{"step by step", IntentWorkflow},
	{"create a plan", IntentPlan},
	{"walk me through", IntentExplain},
	{"tell me about", IntentExplain},
	{"fix", IntentDebug},
	{"bug", IntentDebug},
	{"error", IntentDebug},
	{"crash", IntentDebug},
	{"debug", IntentDebug},
	{"workflow", IntentWorkflow},
	{"automate", IntentWorkflow},
	{"plan", IntentPlan},
	{"design", IntentPlan},
	{"explain", IntentExplain},
	{"what does", IntentExplain},
	{"how does", IntentExplain},
	{"understand", IntentExplain},
	{"implement", IntentCoding},
	{"add", IntentCoding},
	{"write", IntentCoding},
	{"refactor", IntentCoding},
	{"change", IntentCoding},
}

// DetectIntent resolves the intent for a transcript. An explicit mode (from
// an agentic_command's "mode" field) wins outright; otherwise the first
// keyword-table entry whose phrase occurs in the lowercased transcript
// wins, in table order (phrases before single words); failing that, chat.
func DetectIntent(explicitMode, transcript string) Intent {
	if explicitMode != "" {
		return Intent(explicitMode)
	}
	lower := strings.ToLower(transcript)
	for _, kw := range keywordTable {
		if strings.Contains(lower, kw.phrase) {
			return kw.intent
		}
	}
	return IntentChat
}

func toContextIntent(i Intent) cracecontext.Intent {
	switch i {
	case IntentDebug:
		return cracecontext.IntentDebug
	case IntentExplain, IntentWorkflow, IntentPlan:
		return cracecontext.IntentExplain
	case IntentChat:
		return cracecontext.IntentChat
	default:
		return cracecontext.IntentCoding
	}
}

// Request is one inbound request to the orchestrator.
type Request struct {
	FilePath     string
	FileContent  string
	CursorLine   int
	Selection    string
	ProjectRoot  string
	Transcript   string
	Mode         string // explicit intent override, or "" to auto-detect
	ErrorMessage string
	ConvID       string
}

// ActivityEvent is one entry of the terminal stage's activity trail:
// filenames read while gathering and assembling context.
type ActivityEvent struct {
	Status  string // "reading" | "generating" | "done"
	Message string
	Files   []string
}

// Response is the orchestrator's terminal output: always produced, even
// on a stage failure — the graph never partially succeeds silently.
type Response struct {
	Intent    Intent
	Text      string
	Assembled cracecontext.AssembledContext
	Activity  []ActivityEvent
	Error     string
}

// State threads observable fields between stages. Each stage reads the
// fields prior stages set and adds its own; a plain struct rather than an
// interface hierarchy.
type State struct {
	Request        Request
	FileCtx        *cracecontext.FileContext
	Intent         Intent
	HistoryEntries []cracecontext.HistoryEntry
	MemoryEntries  []cracecontext.MemoryEntry
	Assembled      cracecontext.AssembledContext
	History        []llm.Message
	Activity       []ActivityEvent
	Response       Response
}

// Orchestrator wires the components every stage calls into.
type Orchestrator struct {
	Gatherer    *cracecontext.Gatherer
	Memory      *memory.Store
	LLM         llm.Client
	Logger      log.Logger
	MaxHistory  int
	MaxMemories int
}

// New builds an Orchestrator. logger defaults to log.Default() if nil.
func New(gatherer *cracecontext.Gatherer, store *memory.Store, client llm.Client, logger log.Logger) *Orchestrator {
	if logger == nil {
		logger = log.Default()
	}
	return &Orchestrator{
		Gatherer:    gatherer,
		Memory:      store,
		LLM:         client,
		Logger:      logger,
		MaxHistory:  5,
		MaxMemories: 5,
	}
}

// Handle runs the full stage graph for req: gather_context -> detect_intent
// -> route -> shape+assemble -> call LLM -> terminal. Every stage error is
// caught at its boundary and converted into Response.Error so the graph
// always produces a response.
func (o *Orchestrator) Handle(ctx context.Context, req Request) Response {
	st := State{Request: req}

	st = o.gatherContext(st)
	st = o.detectIntent(st)
	st = o.shapeContext(st)
	st = o.assemble(st)
	st = o.callLLM(ctx, st)
	return o.terminal(st)
}

// gatherContext is the single entry stage: it always runs, and a failure
// here degrades to the raw selection/cursor/file inputs rather than
// aborting.
func (o *Orchestrator) gatherContext(st State) State {
	st.Activity = append(st.Activity, ActivityEvent{Status: "reading", Message: "gathering context", Files: filesRead(st.Request)})

	if o.Gatherer == nil {
		st.FileCtx = &cracecontext.FileContext{
			FilePath:     st.Request.FilePath,
			FileContent:  st.Request.FileContent,
			SelectedCode: st.Request.Selection,
			CursorLine:   st.Request.CursorLine,
		}
		return st
	}

	fc, err := o.Gatherer.Gather(cracecontext.Input{
		FilePath:    st.Request.FilePath,
		FileContent: st.Request.FileContent,
		CursorLine:  st.Request.CursorLine,
		Selection:   st.Request.Selection,
		ProjectRoot: st.Request.ProjectRoot,
		Transcript:  st.Request.Transcript,
	})
	if err != nil {
		o.Logger.Warn("gather_context failed, degrading to raw inputs: %v", err)
		fc = &cracecontext.FileContext{
			FilePath:     st.Request.FilePath,
			FileContent:  st.Request.FileContent,
			SelectedCode: st.Request.Selection,
			CursorLine:   st.Request.CursorLine,
		}
	}
	st.FileCtx = fc
	return st
}

// detectIntent routes on an explicit mode or the keyword table.
func (o *Orchestrator) detectIntent(st State) State {
	st.Intent = DetectIntent(st.Request.Mode, st.Request.Transcript)
	return st
}

// shapeContext readies the detected intent's inputs: the error message (for
// debug requests) lands on the FileContext, and the Memory Store's relevant
// history and memories become assembler entries plus the LLM chat history.
func (o *Orchestrator) shapeContext(st State) State {
	if st.FileCtx != nil && st.Request.ErrorMessage != "" {
		st.FileCtx.ErrorMessage = st.Request.ErrorMessage
	}

	if o.Memory != nil {
		rel := o.Memory.GetRelevantContext(st.Request.ConvID, st.Request.Transcript, o.MaxHistory, o.MaxMemories)

		for _, m := range rel.History {
			st.HistoryEntries = append(st.HistoryEntries, cracecontext.HistoryEntry{Role: string(m.Role), Content: m.Content})
			st.History = append(st.History, llm.Message{Role: string(m.Role), Content: m.Content})
		}
		for _, m := range rel.Memories {
			st.MemoryEntries = append(st.MemoryEntries, cracecontext.MemoryEntry{Content: m.Content})
		}
	}

	return st
}

// assemble packs the shaped inputs under the detected intent's budget.
func (o *Orchestrator) assemble(st State) State {
	builder := cracecontext.NewBuilder(o.Gatherer)
	st.Assembled = builder.Build(cracecontext.Request{
		Intent:      toContextIntent(st.Intent),
		FileContext: st.FileCtx,
		History:     st.HistoryEntries,
		Memories:    st.MemoryEntries,
	})
	return st
}

// callLLM invokes the external LLM through the Request/Response envelope.
// A BackendUnavailable/Timeout failure here is converted to the canned
// fallback text rather than aborting the graph.
func (o *Orchestrator) callLLM(ctx context.Context, st State) State {
	st.Activity = append(st.Activity, ActivityEvent{Status: "generating", Message: "calling language model"})

	if o.LLM == nil {
		st.Response = Response{Intent: st.Intent, Text: llm.CannedFallbackResponse, Error: errs.New(errs.BackendUnavailable, "orchestrator.callLLM", "no LLM client configured").Error()}
		return st
	}

	text, err := o.LLM.Complete(ctx, llm.Request{
		SystemContext: st.Assembled.SystemContext,
		UserContext:   st.Assembled.UserContext,
		History:       st.History,
	})
	if err != nil {
		o.Logger.Error("LLM call failed: %v", err)
		st.Response = Response{Intent: st.Intent, Text: llm.CannedFallbackResponse, Error: err.Error()}
		return st
	}
	st.Response = Response{Intent: st.Intent, Text: text}
	return st
}

// terminal finalizes the response: attaches assembled/activity state and
// appends the (user, assistant) turn to the active conversation.
func (o *Orchestrator) terminal(st State) Response {
	st.Activity = append(st.Activity, ActivityEvent{Status: "done", Message: "response ready"})

	resp := st.Response
	resp.Assembled = st.Assembled
	resp.Activity = st.Activity

	if o.Memory != nil && st.Request.Transcript != "" {
		o.Memory.AddTurn(st.Request.ConvID, st.Request.Transcript, resp.Text)
	}
	return resp
}

// filesRead reports which files a request's activity trail should name.
func filesRead(req Request) []string {
	if req.FilePath == "" {
		return nil
	}
	return []string{req.FilePath}
}

// RankedToMemoryEntries returns the file paths of ranker Results, sorted
// alphabetically, for a caller that wants to list referenced files
// alongside memories.
func RankedToMemoryEntries(results []ranker.Result) []string {
	out := make([]string, 0, len(results))
	for _, r := range results {
		out = append(out, r.Path)
	}
	sort.Strings(out)
	return out
}
