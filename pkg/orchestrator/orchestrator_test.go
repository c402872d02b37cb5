package orchestrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cracecontext "github.com/crace/crace/pkg/context"
	"github.com/crace/crace/pkg/llm"
	"github.com/crace/crace/pkg/memory"
	"github.com/crace/crace/pkg/ranker"
	"github.com/crace/crace/pkg/symbol"
)

func TestDetectIntent_ExplicitModeWins(t *testing.T) {
	assert.Equal(t, IntentDebug, DetectIntent("debug", "explain this to me"))
}

func TestDetectIntent_PhraseBeforeSingleWord(t *testing.T) {
	// "fix this bug" is a debug phrase listed ahead of the bare "fix"
	// keyword, so both should resolve to the same intent either way.
	assert.Equal(t, IntentDebug, DetectIntent("", "can you fix this bug in the parser"))
}

func TestDetectIntent_FallsBackToChat(t *testing.T) {
	assert.Equal(t, IntentChat, DetectIntent("", "hey there, how's it going"))
}

func TestDetectIntent_ExplainKeyword(t *testing.T) {
	assert.Equal(t, IntentExplain, DetectIntent("", "explain the orchestrator"))
}

func newTestOrchestrator(t *testing.T, client llm.Client) (*Orchestrator, *memory.Store) {
	t.Helper()
	idx := symbol.NewIndex()
	rnk := ranker.New()
	gatherer := cracecontext.NewGatherer(idx, rnk)

	store, err := memory.New(t.TempDir())
	require.NoError(t, err)

	return New(gatherer, store, client, nil), store
}

func TestHandle_ProducesResponseWithStubLLM(t *testing.T) {
	orch, _ := newTestOrchestrator(t, &llm.StubClient{Response: "here is the answer"})

	resp := orch.Handle(context.Background(), Request{
		FileContent: "def greet():\n    return 1\n",
		FilePath:    "m.py",
		CursorLine:  1,
		Transcript:  "explain this function",
	})

	assert.Equal(t, IntentExplain, resp.Intent)
	assert.Equal(t, "here is the answer", resp.Text)
	assert.Empty(t, resp.Error)
	require.NotEmpty(t, resp.Activity)
	assert.Equal(t, "done", resp.Activity[len(resp.Activity)-1].Status)
}

func TestHandle_LLMFailureYieldsCannedFallback(t *testing.T) {
	orch, _ := newTestOrchestrator(t, &llm.StubClient{Err: assertError{}})

	resp := orch.Handle(context.Background(), Request{Transcript: "what does this do"})

	assert.Equal(t, llm.CannedFallbackResponse, resp.Text)
	assert.NotEmpty(t, resp.Error)
}

func TestHandle_NeverPartiallySucceeds(t *testing.T) {
	// No gatherer, no memory, no LLM client at all: every stage degrades,
	// but Handle must still return a complete Response.
	orch := New(nil, nil, nil, nil)
	resp := orch.Handle(context.Background(), Request{Transcript: "fix this bug"})

	assert.Equal(t, IntentDebug, resp.Intent)
	assert.NotEmpty(t, resp.Text)
	require.NotEmpty(t, resp.Activity)
}

func TestHandle_AppendsTurnToActiveConversation(t *testing.T) {
	orch, store := newTestOrchestrator(t, &llm.StubClient{Response: "ok"})

	orch.Handle(context.Background(), Request{Transcript: "explain this"})

	hist := store.GetHistory("", 0)
	require.Len(t, hist, 2)
	assert.Equal(t, memory.RoleUser, hist[0].Role)
	assert.Equal(t, "explain this", hist[0].Content)
	assert.Equal(t, memory.RoleAssistant, hist[1].Role)
	assert.Equal(t, "ok", hist[1].Content)
}

type assertError struct{}

func (assertError) Error() string { return "boom" }
