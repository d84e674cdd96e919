package symbols

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"foray/repo"
	"foray/search"
)

func TestFlattenParentsBeforeChildren(t *testing.T) {
	symbols := []Symbol{
		{Name: "Handler", Kind: "type", Children: []Symbol{
			{Name: "Get", Kind: "method"},
			{Name: "Put", Kind: "method"},
		}},
		{Name: "helper", Kind: "function"},
	}

	var names []string
	for _, s := range Flatten(symbols) {
		names = append(names, s.Name)
	}

	want := []string{"Handler", "Get", "Put", "helper"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("expected %v, got %v", want, names)
	}
}

func TestIndexLookupIgnoresCase(t *testing.T) {
	ix := NewIndex([]Symbol{
		{Name: "Handler", Kind: "type", StartLine: 3, Children: []Symbol{
			{Name: "Get", Kind: "method", StartLine: 7},
		}},
		{Name: "helper", Kind: "function", StartLine: 20},
	})

	if ix.Size() != 3 {
		t.Errorf("expected 3 distinct names, got %d", ix.Size())
	}

	matches := ix.Lookup("handler")
	if len(matches) != 1 || matches[0].Name != "Handler" {
		t.Fatalf("expected Handler, got %+v", matches)
	}
	matches = ix.Lookup("  GET ")
	if len(matches) != 1 || matches[0].Kind != "method" {
		t.Errorf("expected Get method, got %+v", matches)
	}
	if got := ix.Lookup("missing"); len(got) != 0 {
		t.Errorf("expected no matches, got %+v", got)
	}
}

func TestIndexAggregatesSameName(t *testing.T) {
	ix := NewIndex([]Symbol{
		{Name: "Reader", Kind: "class", Children: []Symbol{
			{Name: "parse", Kind: "method", StartLine: 5},
		}},
		{Name: "Writer", Kind: "class", Children: []Symbol{
			{Name: "parse", Kind: "method", StartLine: 30},
		}},
	})

	matches := ix.Lookup("parse")
	if len(matches) != 2 {
		t.Fatalf("expected 2 parse symbols, got %+v", matches)
	}
	if matches[0].StartLine == matches[1].StartLine {
		t.Error("expected both distinct declarations to survive")
	}
}

func TestIndexSkipsEmptyNames(t *testing.T) {
	ix := NewIndex([]Symbol{
		{Name: "", Kind: "function"},
		{Name: "kept", Kind: "function"},
	})
	if ix.Size() != 1 {
		t.Errorf("expected only named symbols indexed, got size %d", ix.Size())
	}
}

func TestIndexNamesSorted(t *testing.T) {
	ix := NewIndex([]Symbol{
		{Name: "zeta"},
		{Name: "Alpha"},
		{Name: "mid"},
	})
	want := []string{"alpha", "mid", "zeta"}
	if got := ix.Names(); !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestOccurrenceColumns(t *testing.T) {
	cases := []struct {
		text   string
		symbol string
		want   []int
	}{
		{"NeedleFunc()", "NeedleFunc", []int{1}},
		{"x := NeedleFunc(NeedleFunc())", "NeedleFunc", []int{6, 17}},
		{"MyNeedleFunc()", "NeedleFunc", nil},
		{"NeedleFuncX()", "NeedleFunc", nil},
		{"a.find(x)", "find", []int{3}},
		{"", "find", nil},
		{"find", "", nil},
	}
	for _, c := range cases {
		got := occurrenceColumns(c.text, c.symbol)
		if !reflect.DeepEqual(got, c.want) {
			t.Errorf("occurrenceColumns(%q, %q): expected %v, got %v", c.text, c.symbol, c.want, got)
		}
	}
}

func TestSplitGrepLine(t *testing.T) {
	path, line, text, ok := splitGrepLine("src/app.go:42:func main() {")
	if !ok || path != "src/app.go" || line != 42 || text != "func main() {" {
		t.Errorf("unexpected parse: %q %d %q %v", path, line, text, ok)
	}

	// Windows-style drive prefix must not be mistaken for the separator
	path, line, text, ok = splitGrepLine("C:\\src\\app.go:42:text")
	if !ok || path != "C:\\src\\app.go" || line != 42 || text != "text" {
		t.Errorf("unexpected parse: %q %d %q %v", path, line, text, ok)
	}

	if _, _, _, ok := splitGrepLine("no separator here"); ok {
		t.Error("expected parse failure for line without separator")
	}
	if _, _, _, ok := splitGrepLine(""); ok {
		t.Error("expected parse failure for empty line")
	}
}

func TestCollectReferencesDedupAndSort(t *testing.T) {
	output := "./b.go:10:use(NeedleFunc)\n" +
		"a.go:3:NeedleFunc(); NeedleFunc()\n" +
		"b.go:10:use(NeedleFunc)\n" +
		"a.go:1:func NeedleFunc() {\n"

	refs := collectReferences(output, "NeedleFunc")
	want := []Reference{
		{File: "a.go", Line: 1, Column: 6},
		{File: "a.go", Line: 3, Column: 1},
		{File: "a.go", Line: 3, Column: 15},
		{File: "b.go", Line: 10, Column: 5},
	}
	if !reflect.DeepEqual(refs, want) {
		t.Errorf("expected %+v, got %+v", want, refs)
	}
}

func writeSymbolFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func newTestService(t *testing.T, dir string) *Service {
	t.Helper()
	return NewService(repo.NewReader(dir), search.NewRunner(dir, 10))
}

func TestIdentifierAt(t *testing.T) {
	dir := t.TempDir()
	writeSymbolFile(t, dir, "code.go", "func NeedleFunc(x int) {\n\treturn used\n}\n")
	svc := newTestService(t, dir)

	ident, err := svc.identifierAt("code.go", 1, 6)
	if err != nil {
		t.Fatalf("identifierAt failed: %v", err)
	}
	if ident != "NeedleFunc" {
		t.Errorf("expected NeedleFunc, got %q", ident)
	}

	// Just past the identifier, on the open paren
	ident, err = svc.identifierAt("code.go", 1, 16)
	if err != nil {
		t.Fatalf("identifierAt failed: %v", err)
	}
	if ident != "NeedleFunc" {
		t.Errorf("expected NeedleFunc, got %q", ident)
	}

	// Column past end of line clamps to the last byte
	ident, err = svc.identifierAt("code.go", 2, 999)
	if err != nil {
		t.Fatalf("identifierAt failed: %v", err)
	}
	if ident != "used" {
		t.Errorf("expected used, got %q", ident)
	}

	if _, err := svc.identifierAt("code.go", 3, 1); err == nil {
		t.Error("expected error for position on a brace")
	}
	if _, err := svc.identifierAt("code.go", 99, 1); err == nil {
		t.Error("expected error for line past end of file")
	}
}

func TestReferencesAcrossFiles(t *testing.T) {
	dir := t.TempDir()
	writeSymbolFile(t, dir, "alpha.go", "package p\n\nfunc NeedleFunc() {}\n")
	writeSymbolFile(t, dir, "beta.go", "package p\n\nfunc use() { NeedleFunc() }\n")
	svc := newTestService(t, dir)

	if err := svc.ReferencesAvailable(); err != nil {
		t.Skipf("ripgrep not available: %v", err)
	}

	name, refs, err := svc.References(context.Background(), "", "NeedleFunc", 0, 0)
	if err != nil {
		t.Fatalf("References failed: %v", err)
	}
	if name != "NeedleFunc" {
		t.Errorf("expected searched name NeedleFunc, got %q", name)
	}

	files := make(map[string]int)
	for _, r := range refs {
		files[r.File]++
	}
	if files["alpha.go"] != 1 || files["beta.go"] != 1 {
		t.Errorf("expected one reference per file, got %+v", refs)
	}
}

func TestReferencesDerivesSymbolFromPosition(t *testing.T) {
	dir := t.TempDir()
	writeSymbolFile(t, dir, "alpha.go", "package p\n\nfunc NeedleFunc() {}\n")
	svc := newTestService(t, dir)

	if err := svc.ReferencesAvailable(); err != nil {
		t.Skipf("ripgrep not available: %v", err)
	}

	name, refs, err := svc.References(context.Background(), "alpha.go", "", 3, 8)
	if err != nil {
		t.Fatalf("References failed: %v", err)
	}
	if name != "NeedleFunc" {
		t.Errorf("expected derived name NeedleFunc, got %q", name)
	}
	if len(refs) != 1 || refs[0].Line != 3 {
		t.Errorf("expected single declaration reference, got %+v", refs)
	}
}

func TestCacheReturnsSameServicePerRoot(t *testing.T) {
	dirA := t.TempDir()
	dirB := t.TempDir()
	cache := NewCache()

	a1 := cache.For(repo.NewReader(dirA), search.NewRunner(dirA, 10))
	a2 := cache.For(repo.NewReader(dirA), search.NewRunner(dirA, 10))
	b := cache.For(repo.NewReader(dirB), search.NewRunner(dirB, 10))

	if a1 != a2 {
		t.Error("expected the same service for the same root")
	}
	if a1 == b {
		t.Error("expected distinct services for distinct roots")
	}
}

func TestFileSymbolsMemoized(t *testing.T) {
	if !Available() {
		t.Skip("tree-sitter not available")
	}
	dir := t.TempDir()
	writeSymbolFile(t, dir, "code.go", "package p\n\nfunc First() {}\n")
	svc := newTestService(t, dir)

	first, err := svc.FileSymbols(context.Background(), "code.go")
	if err != nil {
		t.Fatalf("FileSymbols failed: %v", err)
	}
	if len(first) != 1 || first[0].Name != "First" {
		t.Fatalf("expected First function, got %+v", first)
	}

	// Rewrite the file; the memoized extraction must win
	writeSymbolFile(t, dir, "code.go", "package p\n\nfunc Second() {}\n")
	again, err := svc.FileSymbols(context.Background(), "code.go")
	if err != nil {
		t.Fatalf("FileSymbols failed: %v", err)
	}
	if len(again) != 1 || again[0].Name != "First" {
		t.Errorf("expected memoized symbols, got %+v", again)
	}
}

func TestLookupUnavailableWithoutTreeSitter(t *testing.T) {
	if Available() {
		t.Skip("tree-sitter is available")
	}
	dir := t.TempDir()
	writeSymbolFile(t, dir, "code.go", "package p\n")
	svc := newTestService(t, dir)

	_, err := svc.Lookup(context.Background(), "code.go", "anything")
	if err == nil {
		t.Fatal("expected unavailable error")
	}
}
