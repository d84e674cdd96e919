//go:build !cgo

package symbols

import "context"

// Available reports whether tree-sitter extraction was compiled in.
func Available() bool {
	return false
}

// Extractor parses source files into symbol hierarchies.
// This stub is built when CGO is disabled; every extraction reports
// ErrUnavailable so callers can degrade instead of treating the
// repository as symbol-free.
type Extractor struct{}

// NewExtractor creates a symbol extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// ExtractFile extracts the symbol hierarchy of a single file.
func (e *Extractor) ExtractFile(ctx context.Context, path string) ([]Symbol, error) {
	return nil, ErrUnavailable
}

// ExtractSource extracts the symbol hierarchy from source bytes.
func (e *Extractor) ExtractSource(ctx context.Context, source []byte, lang Language) ([]Symbol, error) {
	return nil, ErrUnavailable
}
