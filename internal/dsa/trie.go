// Package dsa provides the radix-tree container backing symbol name
// indexes and model pricing prefix tables.
package dsa

import (
	"github.com/armon/go-radix"
)

// Trie wraps go-radix for a compressed prefix tree (radix tree).
// Shared key prefixes collapse into single nodes, so lookup stays
// O(k) in the key length while storage stays proportional to the
// distinct suffixes.
type Trie[V any] struct {
	tree *radix.Tree
	size int
}

// NewTrie creates a new empty radix tree.
func NewTrie[V any]() *Trie[V] {
	return &Trie[V]{
		tree: radix.New(),
	}
}

// Insert adds a key-value pair, replacing any existing value.
func (t *Trie[V]) Insert(key string, value V) {
	_, updated := t.tree.Insert(key, value)
	if !updated {
		t.size++
	}
}

// Search looks up an exact key.
func (t *Trie[V]) Search(key string) (V, bool) {
	val, found := t.tree.Get(key)
	if !found {
		var zero V
		return zero, false
	}
	v, ok := val.(V)
	if !ok {
		var zero V
		return zero, false
	}
	return v, true
}

// LongestPrefix returns the longest stored key that is a prefix of the
// query, with its value.
func (t *Trie[V]) LongestPrefix(query string) (string, V, bool) {
	key, val, found := t.tree.LongestPrefix(query)
	if !found {
		var zero V
		return "", zero, false
	}
	v, ok := val.(V)
	if !ok {
		var zero V
		return "", zero, false
	}
	return key, v, true
}

// Keys returns all keys in lexicographic order.
func (t *Trie[V]) Keys() []string {
	var keys []string
	t.tree.Walk(func(k string, v interface{}) bool {
		keys = append(keys, k)
		return false
	})
	return keys
}

// Size returns the number of keys in the tree.
func (t *Trie[V]) Size() int {
	return t.size
}
