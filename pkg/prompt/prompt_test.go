package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOptimize_VagueFixBecomesDebug(t *testing.T) {
	r := Optimize("can you fix it please", Context{}, "")
	assert.Equal(t, "debug", r.Intent)
	assert.True(t, r.WasModified)
}

func TestOptimize_EmptyInputIsUntouched(t *testing.T) {
	r := Optimize("   ", Context{}, "")
	assert.Equal(t, "", r.Optimized)
	assert.False(t, r.WasModified)
}

func TestOptimize_IntentHintWins(t *testing.T) {
	r := Optimize("whatever you think is best", Context{}, "plan")
	assert.Equal(t, "plan", r.Intent)
	assert.Equal(t, 1.0, r.Confidence)
}

func TestOptimize_InjectsFileAndLanguageHints(t *testing.T) {
	r := Optimize("add a login function", Context{Language: "python", FilePath: "src/auth/login.py", CursorLine: 12}, "")
	assert.Contains(t, r.Clarifications, "Language: python")
	assert.Contains(t, r.Clarifications, "File: login.py")
	assert.Contains(t, r.Clarifications, "At line: 12")
}

func TestOptimize_ExtractsPerformanceConstraint(t *testing.T) {
	r := Optimize("make this faster and more efficient", Context{}, "")
	assert.Contains(t, r.Constraints, "Optimize for performance")
}

func TestExpandQuery_IncludesOriginalAndSynonyms(t *testing.T) {
	expanded := ExpandQuery("auth handler")
	assert.Contains(t, expanded, "auth handler")
	assert.Greater(t, len(expanded), 1)
	assert.LessOrEqual(t, len(expanded), 5)
}

func TestExpandQuery_NoSynonymHitReturnsOriginalOnly(t *testing.T) {
	expanded := ExpandQuery("xyzzy plugh")
	assert.Equal(t, []string{"xyzzy plugh"}, expanded)
}
