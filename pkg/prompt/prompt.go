// Package prompt implements the pre-query normalization helpers the HTTP
// control plane exposes under prompt/optimize and prompt/expand: turning a
// vague natural-language voice transcript into a clearer, intent-tagged
// instruction, and expanding a search query with domain synonyms before it
// reaches the ranker or hybrid searcher.
package prompt

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// vagueToSpecific rewrites filler phrases and ambiguous references to
// clearer wording. Replacements with an empty value are filler words that
// are simply dropped. Order matters: longer phrases are listed first so a
// phrase match is not shadowed by a shorter substring appearing earlier.
var vagueToSpecific = []struct{ vague, specific string }{
	{"make it better", "improve the code by optimizing performance and readability"},
	{"fix it", "identify and fix the bug in"},
	{"make it work", "debug and fix the errors in"},
	{"do something", "implement functionality for"},
	{"help me", "assist with"},
	{"i need", "implement"},
	{"can you", ""},
	{"could you", ""},
	{"would you", ""},
	{"please", ""},
	{"just", ""},
	{"maybe", ""},
	{"i think", ""},
	{"i guess", ""},
	{"sort of", ""},
	{"kind of", ""},
	{"you know", ""},
	{"basically", ""},
	{"the thing", "the function"},
	{"that part", "the selected code"},
	{"this stuff", "this code block"},
	{"gonna", "going to"},
	{"wanna", "want to"},
	{"gotta", "need to"},
	{"dunno", "don't know"},
	{"kinda", "somewhat"},
	{"sorta", "somewhat"},
}

// actionVerbs normalizes informal action words to a canonical verb phrase.
// Checked in order, so multi-word entries are listed ahead of the single
// words they contain.
var actionVerbs = []struct{ informal, formal string }{
	{"speed up", "optimize for performance"},
	{"make faster", "optimize for performance"},
	{"get rid of", "remove"},
	{"take out", "remove"},
	{"throw in", "add"},
	{"find bug", "identify the bug in"},
	{"what's wrong", "analyze the error in"},
	{"not working", "debug why it's not working"},
	{"clean up", "refactor"},
	{"what is", "explain what is"},
	{"what does", "explain what"},
	{"how does", "explain how"},
	{"tell me", "explain"},
	{"show me", "demonstrate"},
	{"make", "create"},
	{"do", "implement"},
	{"write", "implement"},
	{"code", "implement"},
	{"build", "implement"},
	{"put", "add"},
	{"stick", "add"},
	{"kill", "remove"},
	{"nuke", "delete"},
	{"zap", "remove"},
	{"tweak", "modify"},
	{"change", "modify"},
	{"update", "modify"},
	{"redo", "refactor"},
	{"rewrite", "refactor"},
	{"tidy", "refactor"},
	{"optimize", "optimize"},
	{"fix", "debug and fix"},
	{"debug", "debug"},
	{"broken", "fix the broken"},
	{"crashes", "fix the crash in"},
	{"error", "fix the error in"},
	{"explain", "explain"},
	{"why", "explain why"},
}

// targets are the code nouns extractTarget recognizes, checked in order.
var targets = []string{
	"function", "method", "class", "component", "module", "file",
	"api", "endpoint", "route", "service", "handler", "controller",
	"model", "schema", "interface", "type", "variable", "constant",
	"test", "spec", "hook", "middleware", "decorator", "wrapper",
}

var targetNameRe = regexp.MustCompile(`(\w+)\s+(\w+)`)

// intentPattern is one (regexp, intent, confidence) rule, checked in order;
// the first match wins.
type intentPattern struct {
	re         *regexp.Regexp
	intent     string
	confidence float64
}

var intentPatterns = []intentPattern{
	{regexp.MustCompile(`\b(create|implement|build|make|add|write)\b.*\b(function|class|method|component|api|endpoint|service)\b`), "coding", 0.95},
	{regexp.MustCompile(`\b(fix|debug|error|bug|crash|broken|not working|fails)\b`), "debug", 0.9},
	{regexp.MustCompile(`\b(explain|what is|what does|how does|why|tell me about|describe)\b`), "explain", 0.9},
	{regexp.MustCompile(`\b(refactor|clean|optimize|improve|restructure)\b`), "coding", 0.85},
	{regexp.MustCompile(`\b(test|unit test|integration test|spec)\b`), "coding", 0.85},
	{regexp.MustCompile(`\b(delete|remove|get rid of)\b`), "coding", 0.8},
	{regexp.MustCompile(`\b(add|insert|put)\b.*\b(to|in|into)\b`), "coding", 0.75},
	{regexp.MustCompile(`\b(change|modify|update|edit)\b`), "coding", 0.7},
	{regexp.MustCompile(`\b(help|assist|support)\b`), "chat", 0.6},
}

var whitespaceRe = regexp.MustCompile(`\s+`)

// Context carries the optional request-time signals the optimizer injects
// into its output: current file language/path, cursor line, and selection.
type Context struct {
	Language    string
	FilePath    string
	CursorLine  int
	Selection   string
	SymbolName  string
	SymbolKind  string
}

// Result is the optimized form of a raw transcript, mirroring the fields a
// voice-driven caller needs to show its reasoning.
type Result struct {
	Original       string
	Optimized      string
	Intent         string
	ActionVerb     string
	Target         string
	Constraints    []string
	Clarifications []string
	Confidence     float64
	WasModified    bool
}

// Optimize rewrites a raw transcript into a clearer, intent-tagged
// instruction. intentHint, if one of coding/debug/explain/chat/plan,
// overrides intent detection outright.
func Optimize(raw string, ctx Context, intentHint string) Result {
	original := strings.TrimSpace(raw)
	if original == "" {
		return Result{Original: original, Optimized: original, Intent: "chat"}
	}

	cleaned := clean(original)
	intent, confidence := detectIntent(cleaned, intentHint)
	verb := extractActionVerb(cleaned)
	target := extractTarget(cleaned, ctx)
	constraints := extractConstraints(cleaned)
	optimized := transform(cleaned, intent, verb, target)
	clarifications := clarifications(ctx)
	optimized = injectContext(optimized, ctx)

	return Result{
		Original:       original,
		Optimized:      optimized,
		Intent:         intent,
		ActionVerb:     verb,
		Target:         target,
		Constraints:    constraints,
		Clarifications: clarifications,
		Confidence:     confidence,
		WasModified:    !strings.EqualFold(strings.TrimSpace(optimized), strings.TrimSpace(original)),
	}
}

func clean(s string) string {
	result := strings.ToLower(s)
	for _, vs := range vagueToSpecific {
		result = strings.ReplaceAll(result, vs.vague, vs.specific)
	}
	result = strings.TrimSpace(whitespaceRe.ReplaceAllString(result, " "))
	if result == "" {
		return result
	}
	return strings.ToUpper(result[:1]) + result[1:]
}

func detectIntent(prompt, hint string) (string, float64) {
	switch hint {
	case "coding", "debug", "explain", "chat", "plan":
		return hint, 1.0
	}
	lower := strings.ToLower(prompt)
	for _, p := range intentPatterns {
		if p.re.MatchString(lower) {
			return p.intent, p.confidence
		}
	}
	return "chat", 0.3
}

func extractActionVerb(prompt string) string {
	lower := strings.ToLower(prompt)
	for _, av := range actionVerbs {
		if strings.Contains(lower, av.informal) {
			return av.formal
		}
	}
	return ""
}

func extractTarget(prompt string, ctx Context) string {
	lower := strings.ToLower(prompt)
	for _, target := range targets {
		if !strings.Contains(lower, target) {
			continue
		}
		if m := targetNameRe.FindStringSubmatch(lower[strings.Index(lower, target):]); m != nil && m[1] == target {
			return target + " " + m[2]
		}
		return target
	}
	if ctx.Selection != "" {
		return "the selected code"
	}
	if ctx.SymbolName != "" {
		kind := ctx.SymbolKind
		if kind == "" {
			kind = "symbol"
		}
		return kind + " " + ctx.SymbolName
	}
	if ctx.FilePath != "" {
		return "code in " + baseName(ctx.FilePath)
	}
	return "the code"
}

func extractConstraints(prompt string) []string {
	lower := strings.ToLower(prompt)
	var out []string
	add := func(words []string, note string) {
		for _, w := range words {
			if strings.Contains(lower, w) {
				out = append(out, note)
				return
			}
		}
	}
	add([]string{"fast", "efficient", "performance", "optimize", "speed"}, "Optimize for performance")
	add([]string{"safe", "secure", "validate", "sanitize"}, "Ensure security and input validation")
	add([]string{"clean", "readable", "maintainable"}, "Maintain clean, readable code")
	add([]string{"test", "testable", "unit test"}, "Include unit tests")
	add([]string{"typed", "typescript", "type safe"}, "Use proper type annotations")
	add([]string{"error", "handle", "catch", "try"}, "Include proper error handling")
	add([]string{"document", "comment", "docstring"}, "Add documentation/comments")
	return out
}

func transform(prompt, intent, verb, target string) string {
	if len(strings.Fields(prompt)) > 10 && verb != "" {
		return prompt
	}
	switch intent {
	case "coding":
		if verb != "" && target != "" {
			return strings.ToUpper(verb[:1]) + verb[1:] + " " + target
		}
		return prompt
	case "debug":
		lower := strings.ToLower(prompt)
		if strings.Contains(lower, "error") || strings.Contains(lower, "bug") {
			return "Debug and fix: " + prompt
		}
		return "Identify and fix the issue: " + prompt
	case "explain":
		lower := strings.ToLower(prompt)
		if !strings.HasPrefix(lower, "explain") && !strings.HasPrefix(lower, "what") &&
			!strings.HasPrefix(lower, "how") && !strings.HasPrefix(lower, "why") {
			return "Explain: " + prompt
		}
		return prompt
	default:
		return prompt
	}
}

func clarifications(ctx Context) []string {
	var out []string
	if ctx.Language != "" {
		out = append(out, "Language: "+ctx.Language)
	}
	if ctx.FilePath != "" {
		out = append(out, "File: "+baseName(ctx.FilePath))
	}
	if ctx.CursorLine > 0 {
		out = append(out, "At line: "+strconv.Itoa(ctx.CursorLine))
	}
	return out
}

func injectContext(prompt string, ctx Context) string {
	var additions []string
	lower := strings.ToLower(prompt)
	if ctx.Language != "" && !strings.Contains(lower, strings.ToLower(ctx.Language)) {
		additions = append(additions, "in "+ctx.Language)
	}
	if ctx.FilePath != "" {
		fname := baseName(ctx.FilePath)
		if !strings.Contains(lower, strings.ToLower(fname)) {
			additions = append(additions, "in "+fname)
		}
	}
	if len(additions) == 0 {
		return prompt
	}
	return prompt + " (" + strings.Join(additions, ", ") + ")"
}

func baseName(path string) string {
	path = strings.ReplaceAll(path, "\\", "/")
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[i+1:]
	}
	return path
}

// synonyms backs ExpandQuery: a hit on the key adds each of its synonyms as
// an additional expanded query variant, until ExpandQuery's cap of five
// results is reached.
var synonyms = map[string][]string{
	"auth":   {"authentication", "login", "signin"},
	"user":   {"account", "profile"},
	"api":    {"endpoint", "route"},
	"db":     {"database", "storage"},
	"ui":     {"interface", "component"},
	"error":  {"exception", "bug"},
	"config": {"configuration", "settings"},
	"test":   {"spec", "unit test"},
}

// ExpandQuery returns query plus up to 4 synonym-substituted variants,
// deduplicated, for a caller that wants to issue several keyword searches
// and union the results.
func ExpandQuery(query string) []string {
	seen := map[string]bool{query: true}
	out := []string{query}
	lower := strings.ToLower(query)

	var keys []string
	for k := range synonyms {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if !strings.Contains(lower, key) {
			continue
		}
		for _, syn := range synonyms[key] {
			variant := strings.ReplaceAll(lower, key, syn)
			if !seen[variant] {
				seen[variant] = true
				out = append(out, variant)
			}
			if len(out) >= 5 {
				return out
			}
		}
	}
	return out
}
