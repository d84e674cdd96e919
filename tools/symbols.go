// Symbol and reference lookup tools backed by the symbols service.
// Both degrade explicitly: a missing capability comes back as an
// unavailable error, never as an empty answer.

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"foray/symbols"
)

const referenceMaxLines = 100

// Tool names, exported so agents can gate these capabilities after an
// unavailable failure.
const (
	SymbolLookupToolName    = "symbol_lookup"
	ReferenceLookupToolName = "reference_lookup"
)

// SymbolLookupTool lists a file's symbol hierarchy or resolves one
// name inside it.
type SymbolLookupTool struct {
	BaseTool
	service *symbols.Service
}

// NewSymbolLookupTool creates a symbol lookup tool over the service.
func NewSymbolLookupTool(service *symbols.Service) *SymbolLookupTool {
	return &SymbolLookupTool{service: service}
}

type symbolArgs struct {
	Path string `json:"path"`
	Name string `json:"name"`
}

// Metadata returns the symbol lookup tool metadata.
func (t *SymbolLookupTool) Metadata() ToolMetadata {
	return ToolMetadata{
		Name: SymbolLookupToolName,
		Description: "List the symbols declared in a file (functions, types, classes, methods) " +
			"with their line ranges, or look one symbol up by name.",
		Parameters: []ToolParameter{
			{
				Name:        "path",
				ParamType:   "string",
				Description: "repository-relative file path",
				Required:    true,
			},
			{
				Name:        "name",
				ParamType:   "string",
				Description: "symbol name to look up (omit to list the whole file)",
				Required:    false,
			},
		},
	}
}

// Validate checks the symbol lookup arguments.
func (t *SymbolLookupTool) Validate(args json.RawMessage) error {
	var a symbolArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return fmt.Errorf("invalid symbol_lookup arguments: %w", err)
	}
	if strings.TrimSpace(a.Path) == "" {
		return fmt.Errorf("path is required")
	}
	return nil
}

// Execute lists or resolves symbols.
func (t *SymbolLookupTool) Execute(ctx context.Context, args json.RawMessage) (ToolResult, error) {
	var a symbolArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return FailureResultf("invalid symbol_lookup arguments: %v", err), nil
	}

	if strings.TrimSpace(a.Name) == "" {
		syms, err := t.service.FileSymbols(ctx, a.Path)
		if err != nil {
			return FailureResult(err), nil
		}
		if len(syms) == 0 {
			return SuccessResult(fmt.Sprintf("no symbols found in %s", a.Path)), nil
		}
		var b strings.Builder
		fmt.Fprintf(&b, "symbols in %s:\n", a.Path)
		renderSymbols(&b, syms, "")
		return SuccessResult(b.String()), nil
	}

	matches, err := t.service.Lookup(ctx, a.Path, a.Name)
	if err != nil {
		return FailureResult(err), nil
	}
	if len(matches) == 0 {
		return SuccessResult(fmt.Sprintf("no symbol named %q in %s", a.Name, a.Path)), nil
	}
	var b strings.Builder
	renderSymbols(&b, matches, "")
	return SuccessResult(b.String()), nil
}

func renderSymbols(b *strings.Builder, syms []symbols.Symbol, indent string) {
	for _, s := range syms {
		fmt.Fprintf(b, "%s%s %s [%d-%d]\n", indent, s.Kind, s.Name, s.StartLine, s.EndLine)
		renderSymbols(b, s.Children, indent+"  ")
	}
}

// ReferenceLookupTool finds where a name is referenced across the
// repository.
type ReferenceLookupTool struct {
	BaseTool
	service *symbols.Service
}

// NewReferenceLookupTool creates a reference lookup tool over the service.
func NewReferenceLookupTool(service *symbols.Service) *ReferenceLookupTool {
	return &ReferenceLookupTool{service: service}
}

type referenceArgs struct {
	Name   string `json:"name"`
	Path   string `json:"path"`
	Line   int    `json:"line"`
	Column int    `json:"column"`
}

// Metadata returns the reference lookup tool metadata.
func (t *ReferenceLookupTool) Metadata() ToolMetadata {
	return ToolMetadata{
		Name: ReferenceLookupToolName,
		Description: "Find every repository location referencing a name. " +
			"Give the name directly, or a path + line (+ column) to name the identifier there.",
		Parameters: []ToolParameter{
			{
				Name:        "name",
				ParamType:   "string",
				Description: "identifier to find references to",
				Required:    false,
			},
			{
				Name:        "path",
				ParamType:   "string",
				Description: "file containing the identifier (when name is omitted)",
				Required:    false,
			},
			{
				Name:        "line",
				ParamType:   "integer",
				Description: "1-based line of the identifier (when name is omitted)",
				Required:    false,
			},
			{
				Name:        "column",
				ParamType:   "integer",
				Description: "1-based column of the identifier",
				Required:    false,
			},
		},
	}
}

// Validate checks that either a name or a position was given.
func (t *ReferenceLookupTool) Validate(args json.RawMessage) error {
	var a referenceArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return fmt.Errorf("invalid reference_lookup arguments: %w", err)
	}
	if strings.TrimSpace(a.Name) == "" && (strings.TrimSpace(a.Path) == "" || a.Line < 1) {
		return fmt.Errorf("either name, or path and line, is required")
	}
	return nil
}

// Execute finds references.
func (t *ReferenceLookupTool) Execute(ctx context.Context, args json.RawMessage) (ToolResult, error) {
	var a referenceArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return FailureResultf("invalid reference_lookup arguments: %v", err), nil
	}

	name, refs, err := t.service.References(ctx, a.Path, a.Name, a.Line, a.Column)
	if err != nil {
		return FailureResult(err), nil
	}
	if len(refs) == 0 {
		return SuccessResult(fmt.Sprintf("no references to %q found", name)), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d references to %q:\n", len(refs), name)
	for _, r := range refs {
		fmt.Fprintf(&b, "%s:%d:%d\n", r.File, r.Line, r.Column)
	}
	return SuccessResult(capLines(strings.TrimRight(b.String(), "\n"), referenceMaxLines)), nil
}
