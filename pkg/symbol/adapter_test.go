package symbol

import "testing"

func TestRegistry_Dispatch(t *testing.T) {
	r := NewRegistry()

	cases := []struct {
		path string
		want bool
	}{
		{"a.py", true},
		{"a.js", true},
		{"a.jsx", true},
		{"a.ts", true},
		{"a.tsx", true},
		{"a.rs", false},
		{"Makefile", false},
	}
	for _, c := range cases {
		if got := r.IsSupported(c.path); got != c.want {
			t.Errorf("IsSupported(%q) = %v, want %v", c.path, got, c.want)
		}
	}
}

func TestRegistry_ParseUnsupportedIsNotError(t *testing.T) {
	r := NewRegistry()
	res, err := r.Parse("notes.txt", []byte("hello"))
	if err != nil {
		t.Fatalf("unsupported file should not error: %v", err)
	}
	if res != nil {
		t.Fatalf("unsupported file should return nil result, got %+v", res)
	}
}

func TestJavaScriptAdapter_FunctionAndArrow(t *testing.T) {
	a := NewJavaScriptAdapter()
	src := `function greet(name) {
  return "hi " + name;
}

const add = (a, b) => a + b;

class Widget {
  render() {
    greet("x");
  }
}
`
	res, err := a.Parse("w.js", []byte(src))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	names := map[string]Symbol{}
	for _, s := range res.File.Symbols {
		names[s.QualifiedName()] = s
	}

	if s, ok := names["greet"]; !ok || s.Kind != KindFunction {
		t.Errorf("greet symbol missing or wrong kind: %+v", names["greet"])
	}
	if s, ok := names["add"]; !ok || s.Kind != KindFunction {
		t.Errorf("add symbol missing or wrong kind: %+v", names["add"])
	}
	if s, ok := names["Widget.render"]; !ok || s.Parent != "Widget" {
		t.Errorf("Widget.render symbol missing or wrong parent: %+v", names["Widget.render"])
	}

	callees := res.Calls["Widget.render"]
	if len(callees) != 1 || callees[0] != "greet" {
		t.Errorf("Widget.render calls = %v, want [greet]", callees)
	}
}

func TestTypeScriptAdapter_InterfaceAndType(t *testing.T) {
	a := NewTypeScriptAdapter()
	src := `interface User {
  name: string;
}

type ID = string;

function getUser(id: ID): User {
  return { name: "x" };
}
`
	res, err := a.Parse("u.ts", []byte(src))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	var sawInterface, sawType, sawFunc bool
	for _, s := range res.File.Symbols {
		switch {
		case s.Name == "User" && s.Kind == KindInterface:
			sawInterface = true
		case s.Name == "ID" && s.Kind == KindType:
			sawType = true
		case s.Name == "getUser" && s.Kind == KindFunction:
			sawFunc = true
		}
	}
	if !sawInterface || !sawType || !sawFunc {
		t.Fatalf("expected interface/type/function symbols, got %+v", res.File.Symbols)
	}
	if res.File.Language != "typescript" {
		t.Errorf("language = %q, want typescript", res.File.Language)
	}
}

func TestTypeScriptAdapter_TSXExtension(t *testing.T) {
	a := NewTypeScriptAdapter()
	res, err := a.Parse("c.tsx", []byte("function Component() { return null; }"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if res.File.Language != "tsx" {
		t.Errorf("language = %q, want tsx", res.File.Language)
	}
}
