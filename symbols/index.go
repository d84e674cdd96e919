package symbols

import (
	"strings"

	"foray/internal/dsa"
)

// Index provides case-insensitive exact name lookup over one file's
// symbol hierarchy.
type Index struct {
	names *dsa.Trie[[]Symbol]
}

// NewIndex builds an index over a hierarchy, keyed by lowercased name.
// Symbols sharing a name (overloads, shadowed declarations) all appear
// under one key.
func NewIndex(symbols []Symbol) *Index {
	ix := &Index{names: dsa.NewTrie[[]Symbol]()}
	for _, s := range Flatten(symbols) {
		if s.Name == "" {
			continue
		}
		key := strings.ToLower(s.Name)
		existing, _ := ix.names.Search(key)
		ix.names.Insert(key, append(existing, s))
	}
	return ix
}

// Lookup returns all symbols matching the name, ignoring case.
func (ix *Index) Lookup(name string) []Symbol {
	matches, _ := ix.names.Search(strings.ToLower(strings.TrimSpace(name)))
	return matches
}

// Names returns every distinct indexed name, lowercased, in sorted
// order.
func (ix *Index) Names() []string {
	return ix.names.Keys()
}

// Size returns the number of distinct names.
func (ix *Index) Size() int {
	return ix.names.Size()
}
