package scanner

import (
	"strings"

	"github.com/blevesearch/go-porterstemmer"
)

const minTokenLen = 3

// stopwords are query words that carry no retrieval signal.
var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true, "was": true,
	"were": true, "with": true, "that": true, "this": true, "these": true,
	"those": true, "from": true, "into": true, "onto": true, "about": true,
	"after": true, "before": true, "between": true, "during": true,
	"under": true, "over": true, "how": true, "what": true, "when": true,
	"where": true, "which": true, "who": true, "why": true, "does": true,
	"did": true, "done": true, "has": true, "have": true, "had": true,
	"can": true, "could": true, "should": true, "would": true, "will": true,
	"shall": true, "may": true, "might": true, "must": true, "not": true,
	"but": true, "all": true, "any": true, "each": true, "also": true,
	"there": true, "here": true, "then": true, "than": true, "them": true,
	"they": true, "their": true, "its": true, "our": true, "your": true,
	"you": true, "via": true, "per": true, "etc": true, "using": true,
	"used": true, "use": true, "uses": true, "being": true, "because": true,
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
}

// BuildPatterns derives content-search patterns from a query and
// optional hint keywords: lowercased alphanumeric tokens minus
// stopwords and short tokens, plus Porter-stemmed variants distinct
// from their source token. Order is first-seen, duplicates dropped.
func BuildPatterns(query string, hints []string) []string {
	seen := make(map[string]bool)
	var patterns []string
	add := func(p string) {
		if seen[p] {
			return
		}
		seen[p] = true
		patterns = append(patterns, p)
	}

	words := tokenize(query)
	for _, h := range hints {
		words = append(words, tokenize(h)...)
	}
	for _, w := range words {
		if len(w) < minTokenLen || stopwords[w] {
			continue
		}
		add(w)
		if stem := porterstemmer.StemString(w); len(stem) >= minTokenLen && stem != w {
			add(stem)
		}
	}
	return patterns
}
