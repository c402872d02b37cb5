package symbol

import (
	"context"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// PythonAdapter implements Adapter for Python via tree-sitter.
type PythonAdapter struct {
	parser *sitter.Parser
}

// NewPythonAdapter constructs a PythonAdapter.
func NewPythonAdapter() *PythonAdapter {
	p := sitter.NewParser()
	p.SetLanguage(python.GetLanguage())
	return &PythonAdapter{parser: p}
}

func (a *PythonAdapter) Language() string     { return "python" }
func (a *PythonAdapter) Extensions() []string { return []string{".py"} }

func (a *PythonAdapter) Parse(filePath string, source []byte) (*Result, error) {
	tree, err := a.parser.ParseCtx(context.Background(), nil, source)
	if err != nil {
		return nil, err
	}
	root := tree.RootNode()

	var syms []Symbol
	var imports []string

	walkPythonTop(root, source, filePath, "", &syms, &imports)

	calls := map[string][]string{}
	walkPythonCalls(root, source, "", calls)

	return &Result{
		File: FileSymbols{
			FilePath: filePath,
			Language: a.Language(),
			Symbols:  syms,
			Imports:  imports,
			Source:   string(source),
		},
		Calls: calls,
	}, nil
}

// walkPythonTop emits Symbols for function/class/import/module-variable
// nodes in source order. parentClass is set while walking a class body so
// methods get kind=method and Parent set.
func walkPythonTop(node *sitter.Node, src []byte, filePath, parentClass string, syms *[]Symbol, imports *[]string) {
	if node == nil {
		return
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		switch child.Type() {
		case "function_definition":
			sym := parsePythonFunction(child, src, filePath, parentClass)
			if sym != nil {
				*syms = append(*syms, *sym)
			}
			// nested functions inside this body are not emitted as top-level
			// symbols; their calls are still attributed via walkPythonCalls.
		case "class_definition":
			name := childText(child, src, "identifier")
			cls := Symbol{
				Name:      name,
				Kind:      KindClass,
				FilePath:  filePath,
				Line:      int(child.StartPoint().Row) + 1,
				EndLine:   int(child.EndPoint().Row) + 1,
				Column:    int(child.StartPoint().Column),
				Signature: "class " + name,
				Docstring: classDocstring(child, src),
			}
			*syms = append(*syms, cls)
			if block := namedChild(child, "block"); block != nil {
				walkPythonTop(block, src, filePath, name, syms, imports)
			}
		case "import_statement", "import_from_statement":
			*imports = append(*imports, nodeText(child, src))
		case "expression_statement":
			if parentClass == "" {
				if v := parseModuleVariable(child, src, filePath); v != nil {
					*syms = append(*syms, *v)
				}
			}
		}
	}
}

func parsePythonFunction(node *sitter.Node, src []byte, filePath, parentClass string) *Symbol {
	var name string
	var params *sitter.Node
	var block *sitter.Node
	isAsync := false
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		switch child.Type() {
		case "async":
			isAsync = true
		case "identifier":
			name = nodeText(child, src)
		case "parameters":
			params = child
		case "block":
			block = child
		}
	}
	if name == "" {
		return nil
	}
	sig := "def " + name + paramsText(params, src)
	if isAsync {
		sig = "async " + sig
	}
	kind := KindFunction
	parent := ""
	if parentClass != "" {
		kind = KindMethod
		parent = parentClass
	}
	return &Symbol{
		Name:      name,
		Kind:      kind,
		FilePath:  filePath,
		Line:      int(node.StartPoint().Row) + 1,
		EndLine:   int(node.EndPoint().Row) + 1,
		Column:    int(node.StartPoint().Column),
		Signature: sig,
		Docstring: extractDocstring(block, src),
		Parent:    parent,
	}
}

func parseModuleVariable(exprStmt *sitter.Node, src []byte, filePath string) *Symbol {
	// expression_statement -> assignment -> identifier '=' ...
	assign := namedChild(exprStmt, "assignment")
	if assign == nil {
		return nil
	}
	lhs := assign.Child(0)
	if lhs == nil || lhs.Type() != "identifier" {
		return nil
	}
	name := nodeText(lhs, src)
	if strings.HasPrefix(name, "_") {
		return nil
	}
	return &Symbol{
		Name:      name,
		Kind:      KindVariable,
		FilePath:  filePath,
		Line:      int(exprStmt.StartPoint().Row) + 1,
		EndLine:   int(exprStmt.EndPoint().Row) + 1,
		Column:    int(exprStmt.StartPoint().Column),
		Signature: truncate(nodeText(exprStmt, src), 256),
	}
}

func classDocstring(classNode *sitter.Node, src []byte) string {
	if block := namedChild(classNode, "block"); block != nil {
		return extractDocstring(block, src)
	}
	return ""
}

// extractDocstring returns the first-statement string literal of a block,
// stripped of quote delimiters and truncated to 200 chars.
func extractDocstring(block *sitter.Node, src []byte) string {
	if block == nil {
		return ""
	}
	for i := 0; i < int(block.ChildCount()); i++ {
		child := block.Child(i)
		if child == nil {
			continue
		}
		if child.Type() != "expression_statement" {
			continue
		}
		for j := 0; j < int(child.ChildCount()); j++ {
			g := child.Child(j)
			if g == nil {
				continue
			}
			if g.Type() == "string" || g.Type() == "concatenated_string" {
				return truncate(stripQuotes(nodeText(g, src)), 200)
			}
		}
		return "" // first statement wasn't a string: no docstring
	}
	return ""
}

func stripQuotes(s string) string {
	s = strings.TrimSpace(s)
	for _, q := range []string{`"""`, `'''`, `"`, `'`} {
		if strings.HasPrefix(s, q) && strings.HasSuffix(s, q) && len(s) >= 2*len(q) {
			return strings.TrimSpace(s[len(q) : len(s)-len(q)])
		}
	}
	return s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func paramsText(node *sitter.Node, src []byte) string {
	if node == nil {
		return "()"
	}
	return nodeText(node, src)
}

func nodeText(node *sitter.Node, src []byte) string {
	if node == nil {
		return ""
	}
	return string(src[node.StartByte():node.EndByte()])
}

func namedChild(node *sitter.Node, typ string) *sitter.Node {
	if node == nil {
		return nil
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		c := node.Child(i)
		if c != nil && c.Type() == typ {
			return c
		}
	}
	return nil
}

func childText(node *sitter.Node, src []byte, typ string) string {
	return nodeText(namedChild(node, typ), src)
}

// walkPythonCalls finds, per function/method body, the callee names
// referenced directly, recording them under the caller's qualified name.
// Filtering callees down to intra-project targets is the SymbolIndex's job
// (it knows by_name across the whole project, not just this file).
func walkPythonCalls(node *sitter.Node, src []byte, parentClass string, calls map[string][]string) {
	if node == nil {
		return
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		switch child.Type() {
		case "function_definition":
			name := childText(child, src, "identifier")
			if name == "" {
				continue
			}
			qname := name
			if parentClass != "" {
				qname = parentClass + "." + name
			}
			block := namedChild(child, "block")
			var callees []string
			seen := map[string]bool{}
			collectCalls(block, src, &callees, seen)
			calls[qname] = callees
		case "class_definition":
			name := childText(child, src, "identifier")
			if block := namedChild(child, "block"); block != nil {
				walkPythonCalls(block, src, name, calls)
			}
		}
	}
}

func collectCalls(node *sitter.Node, src []byte, out *[]string, seen map[string]bool) {
	if node == nil {
		return
	}
	if node.Type() == "function_definition" || node.Type() == "class_definition" {
		return // nested scopes handled by their own walk
	}
	if node.Type() == "call" {
		if callee := pythonCallName(node, src); callee != "" && !seen[callee] {
			seen[callee] = true
			*out = append(*out, callee)
		}
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		collectCalls(node.Child(i), src, out, seen)
	}
}

func pythonCallName(call *sitter.Node, src []byte) string {
	if call == nil || call.ChildCount() == 0 {
		return ""
	}
	target := call.Child(0)
	if target == nil {
		return ""
	}
	switch target.Type() {
	case "identifier":
		return nodeText(target, src)
	case "attribute":
		// attribute: object '.' identifier — last identifier child is the
		// trailing property/method name.
		var last string
		for i := 0; i < int(target.ChildCount()); i++ {
			c := target.Child(i)
			if c != nil && c.Type() == "identifier" {
				last = nodeText(c, src)
			}
		}
		return last
	}
	return ""
}
