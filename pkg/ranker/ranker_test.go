package ranker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnderstandQuery_CategoriesAndEntities(t *testing.T) {
	q := UnderstandQuery("tell me about all the agents")
	assert.Contains(t, q.Categories, "agent")
	assert.NotContains(t, q.Entities, "the")
	assert.NotEmpty(t, q.ExpandedQuery)
}

func TestFileCategory_FolderMatch(t *testing.T) {
	cat, conf := FileCategory("src/agents/orchestrator.py", "class Orchestrator:\n    def run(self): pass")
	assert.Equal(t, "agent", cat)
	assert.GreaterOrEqual(t, conf, 0.5)
}

func TestRank_AgentsQueryScenario(t *testing.T) {
	// "tell me about all the agents" over a project containing two
	// agents/*.py files, a services/*.py file, and a top-level README.
	candidates := []Candidate{
		{Path: "src/agents/orchestrator.py", Content: "class Orchestrator:\n    def run(self):\n        pass"},
		{Path: "src/agents/coding_agent.py", Content: "class CodingAgent:\n    def generate(self):\n        pass"},
		{Path: "src/services/groq.py", Content: "class GroqClient:\n    def call(self):\n        pass"},
		{Path: "README.md", Content: "# Project\nThis project has agents and services."},
	}

	r := New()
	results := r.Rank("tell me about all the agents", candidates, DefaultOptions())

	byPath := make(map[string]Result, len(results))
	for _, res := range results {
		byPath[res.Path] = res
	}

	orch, ok := byPath["src/agents/orchestrator.py"]
	require.True(t, ok)
	assert.GreaterOrEqual(t, orch.Score, 0.4)

	coding, ok := byPath["src/agents/coding_agent.py"]
	require.True(t, ok)
	assert.GreaterOrEqual(t, coding.Score, 0.4)

	_, groqPresent := byPath["src/services/groq.py"]
	assert.False(t, groqPresent)

	_, readmePresent := byPath["README.md"]
	assert.False(t, readmePresent)

	require.Len(t, results, 2)
	assert.Equal(t, "src/agents/orchestrator.py", results[0].Path)
}

func TestRank_ExclusionListPenalized(t *testing.T) {
	candidates := []Candidate{
		{Path: "package.json", Content: `{"name": "agents-app"}`},
	}
	r := New()
	results := r.Rank("agents", candidates, Options{MinScore: 0.01, MaxFiles: 8})
	if len(results) == 1 {
		assert.Less(t, results[0].Score, 0.1)
	}
}

func TestRank_MaxFilesTruncates(t *testing.T) {
	var candidates []Candidate
	for i := 0; i < 20; i++ {
		candidates = append(candidates, Candidate{
			Path:    "src/agents/agent_" + string(rune('a'+i)) + ".py",
			Content: "class Agent:\n    def run(self): pass",
		})
	}
	r := New()
	results := r.Rank("agents", candidates, Options{MinScore: 0.01, MaxFiles: 8})
	assert.Len(t, results, 8)
}
