package symbol

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// Result is what a Language Adapter returns for one source file.
type Result struct {
	File FileSymbols
	// Calls maps a caller's qualified name to the callee names detected in
	// its body, before the intra-project filter SymbolIndex applies.
	Calls map[string][]string
}

// Adapter is the small capability interface every language plugs into the
// fixed extension -> adapter dispatch table. Parsing a file that turns out
// to be unsupported is not an error: callers skip it.
type Adapter interface {
	Language() string
	Extensions() []string
	Parse(filePath string, source []byte) (*Result, error)
}

// Registry dispatches a file path to the Adapter registered for its
// extension.
type Registry struct {
	byExt map[string]Adapter
}

// NewRegistry builds a Registry with the supported adapters: Python,
// JavaScript, TypeScript, and the TSX variant.
func NewRegistry() *Registry {
	r := &Registry{byExt: make(map[string]Adapter)}
	r.Register(NewPythonAdapter())
	r.Register(NewJavaScriptAdapter())
	r.Register(NewTypeScriptAdapter())
	return r
}

// Register adds (or replaces) the adapter for all of its extensions.
func (r *Registry) Register(a Adapter) {
	for _, ext := range a.Extensions() {
		r.byExt[ext] = a
	}
}

// For returns the adapter registered for filePath's extension, or nil if
// the language is unsupported.
func (r *Registry) For(filePath string) Adapter {
	return r.byExt[strings.ToLower(filepath.Ext(filePath))]
}

// IsSupported reports whether filePath's extension has a registered adapter.
func (r *Registry) IsSupported(filePath string) bool {
	return r.For(filePath) != nil
}

// SupportedExtensions returns every extension with a registered adapter,
// sorted, for callers that filter file walks up front.
func (r *Registry) SupportedExtensions() []string {
	out := make([]string, 0, len(r.byExt))
	for ext := range r.byExt {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// Parse dispatches filePath to its adapter. Returns (nil, nil) — not an
// error — when the language is unsupported; the caller skips the file.
func (r *Registry) Parse(filePath string, source []byte) (*Result, error) {
	a := r.For(filePath)
	if a == nil {
		return nil, nil
	}
	res, err := a.Parse(filePath, source)
	if err != nil {
		return nil, fmt.Errorf("symbol: parse %s: %w", filePath, err)
	}
	return res, nil
}
