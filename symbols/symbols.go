// Package symbols extracts per-file symbol hierarchies via tree-sitter
// and locates name references across a repository.
package symbols

import "errors"

// ErrUnavailable reports that symbol extraction is not compiled in or
// cannot run. Distinct from a file simply containing no symbols.
var ErrUnavailable = errors.New("symbol extraction unavailable")

// Symbol is one node in a file's symbol hierarchy.
type Symbol struct {
	Name      string   `json:"name"`
	Kind      string   `json:"kind"` // "function", "method", "class", "type", "interface"
	StartLine int      `json:"startLine"`
	EndLine   int      `json:"endLine"`
	Children  []Symbol `json:"children,omitempty"`
}

// Reference is one location where a name appears.
type Reference struct {
	File   string `json:"file"`
	Line   int    `json:"line"`
	Column int    `json:"column"` // 1-based byte column
}

// Flatten returns the hierarchy as a single list, parents before
// children.
func Flatten(symbols []Symbol) []Symbol {
	var out []Symbol
	for _, s := range symbols {
		out = append(out, s)
		out = append(out, Flatten(s.Children)...)
	}
	return out
}
