package symbol

import (
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// TypeScriptAdapter implements Adapter for .ts via the typescript grammar
// and .tsx via the tsx grammar variant — both emit the same node-type
// vocabulary as JavaScript plus interface_declaration/type_alias_declaration,
// so parsing is shared with parseJSFamily.
type TypeScriptAdapter struct {
	tsParser  *sitter.Parser
	tsxParser *sitter.Parser
}

func NewTypeScriptAdapter() *TypeScriptAdapter {
	ts := sitter.NewParser()
	ts.SetLanguage(typescript.GetLanguage())
	x := sitter.NewParser()
	x.SetLanguage(tsx.GetLanguage())
	return &TypeScriptAdapter{tsParser: ts, tsxParser: x}
}

func (a *TypeScriptAdapter) Language() string { return "typescript" }
func (a *TypeScriptAdapter) Extensions() []string {
	return []string{".ts", ".tsx"}
}

func (a *TypeScriptAdapter) Parse(filePath string, source []byte) (*Result, error) {
	parser := a.tsParser
	lang := "typescript"
	if hasSuffix(filePath, ".tsx") {
		parser = a.tsxParser
		lang = "tsx"
	}
	return parseJSFamily(parser, filePath, source, lang)
}

func hasSuffix(s, suffix string) bool {
	return len(s) >= len(suffix) && s[len(s)-len(suffix):] == suffix
}
