//go:build cgo

package symbols

import (
	"context"
	"fmt"
	"os"
	"sort"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/java"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/kotlin"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/rust"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// Available reports whether tree-sitter extraction was compiled in.
func Available() bool {
	return true
}

// Extractor parses source files into symbol hierarchies.
// Safe for concurrent use; each extraction gets its own parser.
type Extractor struct{}

// NewExtractor creates a symbol extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// ExtractFile extracts the symbol hierarchy of a single file.
// Unsupported languages yield an empty hierarchy, not an error.
func (e *Extractor) ExtractFile(ctx context.Context, path string) ([]Symbol, error) {
	lang, ok := LanguageForFile(path)
	if !ok {
		return nil, nil
	}
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return e.ExtractSource(ctx, source, lang)
}

// ExtractSource extracts the symbol hierarchy from source bytes.
func (e *Extractor) ExtractSource(ctx context.Context, source []byte, lang Language) ([]Symbol, error) {
	grammar, err := grammarFor(lang)
	if err != nil {
		return nil, err
	}

	parser := sitter.NewParser()
	parser.SetLanguage(grammar)
	tree, err := parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	root := tree.RootNode()

	classNodes := findNodes(root, classNodeTypes(lang))

	var symbols []Symbol
	for _, cls := range classNodes {
		sym := classSymbol(cls, source, lang)
		if sym == nil {
			continue
		}
		for _, m := range findNodes(cls, methodNodeTypes(lang)) {
			if child := functionSymbol(m, source, lang, "method"); child != nil {
				sym.Children = append(sym.Children, *child)
			}
		}
		sortByLine(sym.Children)
		symbols = append(symbols, *sym)
	}

	for _, fn := range findNodes(root, functionNodeTypes(lang)) {
		if insideAny(fn, classNodes) {
			continue
		}
		kind := "function"
		if fn.Type() == "method_declaration" || fn.Type() == "method_definition" {
			kind = "method"
		}
		if sym := functionSymbol(fn, source, lang, kind); sym != nil {
			symbols = append(symbols, *sym)
		}
	}

	if lang == LangGo {
		symbols = nestGoMethods(symbols, root, source)
	}

	sortByLine(symbols)
	return symbols, nil
}

// nestGoMethods moves top-level Go methods under the type symbol their
// receiver names, when that type is declared in the same file.
func nestGoMethods(symbols []Symbol, root *sitter.Node, source []byte) []Symbol {
	receivers := make(map[int]string) // method StartLine -> receiver type name
	for _, m := range findNodes(root, []string{"method_declaration"}) {
		if recv := goReceiverType(m, source); recv != "" {
			receivers[int(m.StartPoint().Row)+1] = recv
		}
	}

	byName := make(map[string]int) // type name -> index in kept
	var kept []Symbol
	var methods []Symbol
	for _, s := range symbols {
		if s.Kind == "method" {
			methods = append(methods, s)
			continue
		}
		if s.Kind == "type" {
			byName[s.Name] = len(kept)
		}
		kept = append(kept, s)
	}

	for _, m := range methods {
		recv := receivers[m.StartLine]
		if idx, ok := byName[recv]; recv != "" && ok {
			kept[idx].Children = append(kept[idx].Children, m)
			continue
		}
		kept = append(kept, m)
	}
	for _, idx := range byName {
		sortByLine(kept[idx].Children)
	}
	return kept
}

// goReceiverType returns the receiver's type name for a Go method.
func goReceiverType(node *sitter.Node, source []byte) string {
	recv := node.ChildByFieldName("receiver")
	if recv == nil {
		return ""
	}
	var name string
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n == nil || name != "" {
			return
		}
		if n.Type() == "type_identifier" {
			name = nodeText(n, source)
			return
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i))
		}
	}
	walk(recv)
	return name
}

func classSymbol(node *sitter.Node, source []byte, lang Language) *Symbol {
	name := className(node, source, lang)
	if name == "" {
		return nil
	}
	return &Symbol{
		Name:      name,
		Kind:      classKind(node, lang),
		StartLine: int(node.StartPoint().Row) + 1,
		EndLine:   int(node.EndPoint().Row) + 1,
	}
}

func functionSymbol(node *sitter.Node, source []byte, lang Language, kind string) *Symbol {
	name := functionName(node, source, lang)
	if name == "" {
		return nil
	}
	return &Symbol{
		Name:      name,
		Kind:      kind,
		StartLine: int(node.StartPoint().Row) + 1,
		EndLine:   int(node.EndPoint().Row) + 1,
	}
}

// functionNodeTypes returns node types for standalone functions.
func functionNodeTypes(lang Language) []string {
	switch lang {
	case LangGo:
		return []string{"function_declaration", "method_declaration"}
	case LangJavaScript, LangTypeScript, LangTSX:
		return []string{"function_declaration", "arrow_function", "generator_function_declaration"}
	case LangPython:
		return []string{"function_definition"}
	case LangRust:
		return []string{"function_item"}
	case LangJava:
		// Java methods only exist inside class bodies
		return nil
	case LangKotlin:
		return []string{"function_declaration"}
	default:
		return nil
	}
}

// classNodeTypes returns node types for classes, types, and interfaces.
func classNodeTypes(lang Language) []string {
	switch lang {
	case LangGo:
		return []string{"type_declaration"}
	case LangJavaScript, LangTypeScript, LangTSX:
		return []string{"class_declaration", "interface_declaration"}
	case LangPython:
		return []string{"class_definition"}
	case LangRust:
		return []string{"struct_item", "enum_item", "trait_item", "impl_item"}
	case LangJava:
		return []string{"class_declaration", "interface_declaration", "enum_declaration"}
	case LangKotlin:
		return []string{"class_declaration", "interface_declaration", "object_declaration"}
	default:
		return nil
	}
}

// methodNodeTypes returns node types for methods inside class bodies.
func methodNodeTypes(lang Language) []string {
	switch lang {
	case LangGo:
		return nil // Go methods sit at top level with receivers
	case LangJavaScript, LangTypeScript, LangTSX:
		return []string{"method_definition"}
	case LangPython:
		return []string{"function_definition"}
	case LangRust:
		return []string{"function_item"}
	case LangJava:
		return []string{"method_declaration", "constructor_declaration"}
	case LangKotlin:
		return []string{"function_declaration"}
	default:
		return nil
	}
}

// functionName extracts a function's name, resolving arrow functions
// through their enclosing variable declarator.
func functionName(node *sitter.Node, source []byte, lang Language) string {
	if node.Type() == "arrow_function" {
		parent := node.Parent()
		if parent != nil && parent.Type() == "variable_declarator" {
			if n := parent.ChildByFieldName("name"); n != nil {
				return nodeText(n, source)
			}
		}
		return ""
	}

	if n := node.ChildByFieldName("name"); n != nil {
		return nodeText(n, source)
	}

	// Grammars without a name field expose a bare identifier child
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		if child.Type() == "identifier" || child.Type() == "simple_identifier" {
			return nodeText(child, source)
		}
	}
	return ""
}

// className extracts a class/type name.
func className(node *sitter.Node, source []byte, lang Language) string {
	switch lang {
	case LangGo:
		// type_declaration wraps type_spec which carries the name
		for i := 0; i < int(node.ChildCount()); i++ {
			child := node.Child(i)
			if child != nil && child.Type() == "type_spec" {
				if n := child.ChildByFieldName("name"); n != nil {
					return nodeText(n, source)
				}
			}
		}
		return ""
	case LangRust:
		if n := node.ChildByFieldName("name"); n != nil {
			return nodeText(n, source)
		}
		if node.Type() == "impl_item" {
			for i := 0; i < int(node.ChildCount()); i++ {
				child := node.Child(i)
				if child != nil && child.Type() == "type_identifier" {
					return nodeText(child, source)
				}
			}
		}
		return ""
	default:
		if n := node.ChildByFieldName("name"); n != nil {
			return nodeText(n, source)
		}
		for i := 0; i < int(node.ChildCount()); i++ {
			child := node.Child(i)
			if child == nil {
				continue
			}
			if child.Type() == "identifier" || child.Type() == "simple_identifier" {
				return nodeText(child, source)
			}
		}
		return ""
	}
}

// classKind maps a class node to its symbol kind.
func classKind(node *sitter.Node, lang Language) string {
	switch lang {
	case LangGo:
		return "type"
	case LangRust:
		if node.Type() == "trait_item" {
			return "interface"
		}
		return "type"
	default:
		switch node.Type() {
		case "interface_declaration":
			return "interface"
		case "enum_declaration":
			return "type"
		}
		return "class"
	}
}

// findNodes collects all descendants of root matching the given types.
func findNodes(root *sitter.Node, types []string) []*sitter.Node {
	if len(types) == 0 {
		return nil
	}
	wanted := make(map[string]bool, len(types))
	for _, t := range types {
		wanted[t] = true
	}

	var result []*sitter.Node
	var walk func(node *sitter.Node)
	walk = func(node *sitter.Node) {
		if node == nil {
			return
		}
		if wanted[node.Type()] {
			result = append(result, node)
		}
		for i := 0; i < int(node.ChildCount()); i++ {
			walk(node.Child(i))
		}
	}
	walk(root)
	return result
}

// insideAny reports whether node lies within any of the containers.
func insideAny(node *sitter.Node, containers []*sitter.Node) bool {
	for _, c := range containers {
		if node.StartByte() > c.StartByte() && node.EndByte() <= c.EndByte() {
			return true
		}
	}
	return false
}

func nodeText(node *sitter.Node, source []byte) string {
	return string(source[node.StartByte():node.EndByte()])
}

func sortByLine(symbols []Symbol) {
	sort.SliceStable(symbols, func(i, j int) bool {
		return symbols[i].StartLine < symbols[j].StartLine
	})
}

// grammarFor returns the tree-sitter grammar for a language.
func grammarFor(lang Language) (*sitter.Language, error) {
	switch lang {
	case LangGo:
		return golang.GetLanguage(), nil
	case LangJavaScript:
		return javascript.GetLanguage(), nil
	case LangTypeScript:
		return typescript.GetLanguage(), nil
	case LangTSX:
		return tsx.GetLanguage(), nil
	case LangPython:
		return python.GetLanguage(), nil
	case LangRust:
		return rust.GetLanguage(), nil
	case LangJava:
		return java.GetLanguage(), nil
	case LangKotlin:
		return kotlin.GetLanguage(), nil
	default:
		return nil, fmt.Errorf("unsupported language: %s", lang)
	}
}
