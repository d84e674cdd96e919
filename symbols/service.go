// Capability service wrapping symbol extraction and reference search.
//
// Information Hiding:
// - Per-file memoization and single-flight loading
// - Reference search construction (word boundaries, column recovery)
// - Identifier-at-position heuristics

package symbols

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"foray/repo"
	"foray/search"
)

// Service resolves symbols and references for one repository. Results
// are memoized per file; concurrent requests for the same file share a
// single extraction via singleflight. The memo is append-only and
// never invalidated, so a Service assumes the repository does not
// change underneath it.
type Service struct {
	reader    *repo.Reader
	runner    *search.Runner
	extractor *Extractor

	group singleflight.Group
	mu    sync.RWMutex
	files map[string]*fileEntry
}

type fileEntry struct {
	symbols []Symbol
	index   *Index
}

// NewService creates a service for the repository the reader is rooted
// at.
func NewService(reader *repo.Reader, runner *search.Runner) *Service {
	return &Service{
		reader:    reader,
		runner:    runner,
		extractor: NewExtractor(),
		files:     make(map[string]*fileEntry),
	}
}

// SymbolsAvailable reports whether symbol extraction can run.
func (s *Service) SymbolsAvailable() bool {
	return Available()
}

// ReferencesAvailable reports whether reference search can run.
func (s *Service) ReferencesAvailable() error {
	return s.runner.Available()
}

// FileSymbols returns the symbol hierarchy of a file, extracting it on
// first request.
func (s *Service) FileSymbols(ctx context.Context, path string) ([]Symbol, error) {
	entry, err := s.load(ctx, path)
	if err != nil {
		return nil, err
	}
	return entry.symbols, nil
}

// Lookup returns symbols in the file matching name, ignoring case.
func (s *Service) Lookup(ctx context.Context, path, name string) ([]Symbol, error) {
	entry, err := s.load(ctx, path)
	if err != nil {
		return nil, err
	}
	return entry.index.Lookup(name), nil
}

func (s *Service) load(ctx context.Context, path string) (*fileEntry, error) {
	if !Available() {
		return nil, ErrUnavailable
	}

	s.mu.RLock()
	entry, ok := s.files[path]
	s.mu.RUnlock()
	if ok {
		return entry, nil
	}

	v, err, _ := s.group.Do(path, func() (interface{}, error) {
		abs, err := s.reader.Resolve(path)
		if err != nil {
			return nil, err
		}
		syms, err := s.extractor.ExtractFile(ctx, abs)
		if err != nil {
			return nil, err
		}
		entry := &fileEntry{symbols: syms, index: NewIndex(syms)}
		s.mu.Lock()
		s.files[path] = entry
		s.mu.Unlock()
		return entry, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*fileEntry), nil
}

// References finds every repository location where a name appears as a
// whole word. When symbol is empty, the identifier is recovered from
// {file, line, column} first. Returns the name actually searched.
func (s *Service) References(ctx context.Context, file, symbol string, line, column int) (string, []Reference, error) {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		ident, err := s.identifierAt(file, line, column)
		if err != nil {
			return "", nil, err
		}
		symbol = ident
	}

	if err := s.runner.Available(); err != nil {
		return symbol, nil, fmt.Errorf("%w: reference search needs ripgrep: %v", ErrUnavailable, err)
	}

	pattern := `\b` + regexp.QuoteMeta(symbol) + `\b`
	out, err := s.runner.Search(ctx, pattern, search.Options{
		CaseSensitive: true,
		MaxPerFile:    50,
	})
	if err != nil {
		return symbol, nil, fmt.Errorf("reference search failed: %w", err)
	}

	refs := collectReferences(out, symbol)
	return symbol, refs, nil
}

// identifierAt recovers the identifier covering a 1-based line/column
// position in a file.
func (s *Service) identifierAt(file string, line, column int) (string, error) {
	slice, err := s.reader.ReadSlice(file, line, 1)
	if err != nil {
		return "", err
	}
	if len(slice.Lines) == 0 {
		return "", fmt.Errorf("line %d not found in %s", line, file)
	}

	text := slice.Lines[0]
	pos := column - 1
	if pos < 0 {
		pos = 0
	}
	if pos >= len(text) {
		pos = len(text) - 1
	}
	if pos < 0 {
		return "", fmt.Errorf("no identifier at %s:%d:%d", file, line, column)
	}

	// A position just past an identifier still counts as pointing at it
	if !isWordByte(text[pos]) && pos > 0 && isWordByte(text[pos-1]) {
		pos--
	}
	if !isWordByte(text[pos]) {
		return "", fmt.Errorf("no identifier at %s:%d:%d", file, line, column)
	}

	start := pos
	for start > 0 && isWordByte(text[start-1]) {
		start--
	}
	end := pos + 1
	for end < len(text) && isWordByte(text[end]) {
		end++
	}

	ident := text[start:end]
	if ident == "" || (ident[0] >= '0' && ident[0] <= '9') {
		return "", fmt.Errorf("no identifier at %s:%d:%d", file, line, column)
	}
	return ident, nil
}

// collectReferences parses "path:line:text" search output and
// enumerates whole-word occurrence columns, deduplicated and sorted.
func collectReferences(output, symbol string) []Reference {
	var refs []Reference
	seen := make(map[string]bool)

	for _, raw := range strings.Split(output, "\n") {
		if raw == "" {
			continue
		}
		path, lineNo, text, ok := splitGrepLine(raw)
		if !ok {
			continue
		}
		path = search.NormalizePath(path)
		for _, col := range occurrenceColumns(text, symbol) {
			key := path + ":" + strconv.Itoa(lineNo) + ":" + strconv.Itoa(col)
			if seen[key] {
				continue
			}
			seen[key] = true
			refs = append(refs, Reference{File: path, Line: lineNo, Column: col})
		}
	}

	sort.Slice(refs, func(i, j int) bool {
		if refs[i].File != refs[j].File {
			return refs[i].File < refs[j].File
		}
		if refs[i].Line != refs[j].Line {
			return refs[i].Line < refs[j].Line
		}
		return refs[i].Column < refs[j].Column
	})
	return refs
}

// occurrenceColumns returns 1-based columns of whole-word occurrences
// of symbol in text.
func occurrenceColumns(text, symbol string) []int {
	if symbol == "" {
		return nil
	}
	var cols []int
	offset := 0
	for {
		i := strings.Index(text[offset:], symbol)
		if i < 0 {
			return cols
		}
		at := offset + i
		before := at == 0 || !isWordByte(text[at-1])
		afterIdx := at + len(symbol)
		after := afterIdx >= len(text) || !isWordByte(text[afterIdx])
		if before && after {
			cols = append(cols, at+1)
		}
		offset = at + len(symbol)
	}
}

// splitGrepLine splits a "path:line:text" match line on the first
// ":<digits>:" separator.
func splitGrepLine(line string) (string, int, string, bool) {
	for i := 0; i < len(line); i++ {
		if line[i] != ':' {
			continue
		}
		j := i + 1
		for j < len(line) && line[j] >= '0' && line[j] <= '9' {
			j++
		}
		if j > i+1 && j < len(line) && line[j] == ':' {
			n, err := strconv.Atoi(line[i+1 : j])
			if err != nil {
				continue
			}
			return line[:i], n, line[j+1:], true
		}
	}
	return "", 0, "", false
}

func isWordByte(b byte) bool {
	return b == '_' ||
		(b >= 'a' && b <= 'z') ||
		(b >= 'A' && b <= 'Z') ||
		(b >= '0' && b <= '9')
}

// Cache hands out one Service per repository root, staying warm for
// the process lifetime. Append-only; entries are never invalidated.
type Cache struct {
	mu       sync.Mutex
	services map[string]*Service
}

// NewCache creates an empty service cache.
func NewCache() *Cache {
	return &Cache{services: make(map[string]*Service)}
}

// For returns the service for the reader's repository root, creating
// it on first request.
func (c *Cache) For(reader *repo.Reader, runner *search.Runner) *Service {
	c.mu.Lock()
	defer c.mu.Unlock()
	if svc, ok := c.services[reader.Root()]; ok {
		return svc
	}
	svc := NewService(reader, runner)
	c.services[reader.Root()] = svc
	return svc
}
