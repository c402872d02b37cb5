package symbol

import (
	"context"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
)

// JavaScriptAdapter implements Adapter for JS/JSX via tree-sitter.
type JavaScriptAdapter struct {
	parser *sitter.Parser
}

func NewJavaScriptAdapter() *JavaScriptAdapter {
	p := sitter.NewParser()
	p.SetLanguage(javascript.GetLanguage())
	return &JavaScriptAdapter{parser: p}
}

func (a *JavaScriptAdapter) Language() string     { return "javascript" }
func (a *JavaScriptAdapter) Extensions() []string { return []string{".js", ".jsx", ".mjs", ".cjs"} }

func (a *JavaScriptAdapter) Parse(filePath string, source []byte) (*Result, error) {
	return parseJSFamily(a.parser, filePath, source, a.Language())
}

// parseJSFamily is shared by the JS and TS adapters: the grammars share
// node-type names for everything but interfaces/type aliases.
func parseJSFamily(parser *sitter.Parser, filePath string, source []byte, lang string) (*Result, error) {
	tree, err := parser.ParseCtx(context.Background(), nil, source)
	if err != nil {
		return nil, err
	}
	root := tree.RootNode()

	var syms []Symbol
	var imports []string
	walkJSTop(root, source, filePath, &syms, &imports)

	calls := map[string][]string{}
	walkJSCalls(root, source, "", calls)

	return &Result{
		File: FileSymbols{
			FilePath: filePath,
			Language: lang,
			Symbols:  syms,
			Imports:  imports,
			Source:   string(source),
		},
		Calls: calls,
	}, nil
}

// walkJSTop recurses transparently through export_statement
// while emitting Symbols for function/class/interface/type/import nodes.
func walkJSTop(node *sitter.Node, src []byte, filePath string, syms *[]Symbol, imports *[]string) {
	if node == nil {
		return
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		switch child.Type() {
		case "export_statement":
			walkJSTop(child, src, filePath, syms, imports)
		case "function_declaration", "generator_function_declaration":
			if s := parseJSFunction(child, src, filePath); s != nil {
				*syms = append(*syms, *s)
			}
		case "lexical_declaration", "variable_declaration":
			syms2 := parseJSArrowBindings(child, src, filePath)
			*syms = append(*syms, syms2...)
		case "class_declaration":
			name := childText(child, src, "identifier")
			cls := Symbol{
				Name:      name,
				Kind:      KindClass,
				FilePath:  filePath,
				Line:      int(child.StartPoint().Row) + 1,
				EndLine:   int(child.EndPoint().Row) + 1,
				Column:    int(child.StartPoint().Column),
				Signature: "class " + name,
			}
			*syms = append(*syms, cls)
			if body := namedChild(child, "class_body"); body != nil {
				for j := 0; j < int(body.ChildCount()); j++ {
					m := body.Child(j)
					if m != nil && m.Type() == "method_definition" {
						if s := parseJSMethod(m, src, filePath, name); s != nil {
							*syms = append(*syms, *s)
						}
					}
				}
			}
		case "interface_declaration":
			name := childText(child, src, "type_identifier")
			*syms = append(*syms, Symbol{
				Name: name, Kind: KindInterface, FilePath: filePath,
				Line: int(child.StartPoint().Row) + 1, EndLine: int(child.EndPoint().Row) + 1,
				Column: int(child.StartPoint().Column), Signature: "interface " + name,
			})
		case "type_alias_declaration":
			name := childText(child, src, "type_identifier")
			*syms = append(*syms, Symbol{
				Name: name, Kind: KindType, FilePath: filePath,
				Line: int(child.StartPoint().Row) + 1, EndLine: int(child.EndPoint().Row) + 1,
				Column: int(child.StartPoint().Column), Signature: "type " + name,
			})
		case "import_statement":
			*imports = append(*imports, nodeText(child, src))
		}
	}
}

func parseJSFunction(node *sitter.Node, src []byte, filePath string) *Symbol {
	name := childText(node, src, "identifier")
	if name == "" {
		return nil
	}
	params := namedChild(node, "formal_parameters")
	return &Symbol{
		Name:      name,
		Kind:      KindFunction,
		FilePath:  filePath,
		Line:      int(node.StartPoint().Row) + 1,
		EndLine:   int(node.EndPoint().Row) + 1,
		Column:    int(node.StartPoint().Column),
		Signature: "function " + name + paramsText(params, src),
	}
}

func parseJSMethod(node *sitter.Node, src []byte, filePath, className string) *Symbol {
	name := childText(node, src, "property_identifier")
	if name == "" {
		return nil
	}
	params := namedChild(node, "formal_parameters")
	return &Symbol{
		Name:      name,
		Kind:      KindMethod,
		FilePath:  filePath,
		Line:      int(node.StartPoint().Row) + 1,
		EndLine:   int(node.EndPoint().Row) + 1,
		Column:    int(node.StartPoint().Column),
		Signature: name + paramsText(params, src),
		Parent:    className,
	}
}

// parseJSArrowBindings handles `const NAME = (...) => ...`:
// a variable/lexical declaration whose initializer is an arrow or function
// expression is emitted as kind function.
func parseJSArrowBindings(decl *sitter.Node, src []byte, filePath string) []Symbol {
	var out []Symbol
	for i := 0; i < int(decl.ChildCount()); i++ {
		d := decl.Child(i)
		if d == nil || d.Type() != "variable_declarator" {
			continue
		}
		name := childText(d, src, "identifier")
		if name == "" {
			continue
		}
		var init *sitter.Node
		for j := 0; j < int(d.ChildCount()); j++ {
			c := d.Child(j)
			if c != nil && (c.Type() == "arrow_function" || c.Type() == "function") {
				init = c
			}
		}
		if init == nil {
			continue
		}
		params := namedChild(init, "formal_parameters")
		out = append(out, Symbol{
			Name:      name,
			Kind:      KindFunction,
			FilePath:  filePath,
			Line:      int(d.StartPoint().Row) + 1,
			EndLine:   int(init.EndPoint().Row) + 1,
			Column:    int(d.StartPoint().Column),
			Signature: "const " + name + " = " + paramsText(params, src) + " =>",
		})
	}
	return out
}

// walkJSCalls records, per function/method body, the callee names called
// directly (bare identifier) or the trailing property of a member
// expression, under the enclosing function's (qualified) name.
func walkJSCalls(node *sitter.Node, src []byte, parentClass string, calls map[string][]string) {
	if node == nil {
		return
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		switch child.Type() {
		case "export_statement":
			walkJSCalls(child, src, parentClass, calls)
		case "function_declaration", "generator_function_declaration":
			name := childText(child, src, "identifier")
			if name == "" {
				continue
			}
			recordJSBodyCalls(namedChild(child, "statement_block"), src, name, calls)
		case "lexical_declaration", "variable_declaration":
			for j := 0; j < int(child.ChildCount()); j++ {
				d := child.Child(j)
				if d == nil || d.Type() != "variable_declarator" {
					continue
				}
				name := childText(d, src, "identifier")
				for k := 0; k < int(d.ChildCount()); k++ {
					init := d.Child(k)
					if name != "" && init != nil && (init.Type() == "arrow_function" || init.Type() == "function") {
						recordJSBodyCalls(init.ChildByFieldName("body"), src, name, calls)
					}
				}
			}
		case "class_declaration":
			className := childText(child, src, "identifier")
			if body := namedChild(child, "class_body"); body != nil {
				for j := 0; j < int(body.ChildCount()); j++ {
					m := body.Child(j)
					if m == nil || m.Type() != "method_definition" {
						continue
					}
					name := childText(m, src, "property_identifier")
					if name == "" {
						continue
					}
					recordJSBodyCalls(namedChild(m, "statement_block"), src, className+"."+name, calls)
				}
			}
		}
	}
}

func recordJSBodyCalls(body *sitter.Node, src []byte, qname string, calls map[string][]string) {
	if body == nil {
		return
	}
	seen := map[string]bool{}
	var callees []string
	collectJSCalls(body, src, &callees, seen)
	calls[qname] = callees
}

func collectJSCalls(node *sitter.Node, src []byte, out *[]string, seen map[string]bool) {
	if node == nil {
		return
	}
	switch node.Type() {
	case "function_declaration", "generator_function_declaration", "function", "arrow_function", "class_declaration":
		return
	}
	if node.Type() == "call_expression" {
		if callee := jsCallName(node, src); callee != "" && !seen[callee] {
			seen[callee] = true
			*out = append(*out, callee)
		}
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		collectJSCalls(node.Child(i), src, out, seen)
	}
}

func jsCallName(call *sitter.Node, src []byte) string {
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
	case "member_expression":
		if prop := namedChild(target, "property_identifier"); prop != nil {
			return nodeText(prop, src)
		}
	}
	return ""
}
