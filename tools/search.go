// Content search tool backed by the repository's ripgrep runner.

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"foray/search"
)

const (
	searchMaxPerFile = 20
	searchMaxLines   = 200
)

// SearchTool searches file contents across the repository.
type SearchTool struct {
	BaseTool
	runner *search.Runner
}

// NewSearchTool creates a search tool over the given runner.
func NewSearchTool(runner *search.Runner) *SearchTool {
	return &SearchTool{runner: runner}
}

type searchArgs struct {
	Pattern string `json:"pattern"`
	Glob    string `json:"glob"`
	Fixed   bool   `json:"fixed"`
}

// Metadata returns the search tool metadata.
func (t *SearchTool) Metadata() ToolMetadata {
	return ToolMetadata{
		Name: "search",
		Description: "Search file contents across the repository with a regular expression. " +
			"Returns matching lines as path:line:text. Case-insensitive.",
		Parameters: []ToolParameter{
			{
				Name:        "pattern",
				ParamType:   "string",
				Description: "regular expression to search for",
				Required:    true,
			},
			{
				Name:        "glob",
				ParamType:   "string",
				Description: "limit results to paths matching this glob, e.g. *.go or src/**",
				Required:    false,
			},
			{
				Name:        "fixed",
				ParamType:   "boolean",
				Description: "treat pattern as a literal string instead of a regex",
				Required:    false,
			},
		},
	}
}

// Validate checks the search arguments.
func (t *SearchTool) Validate(args json.RawMessage) error {
	var a searchArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return fmt.Errorf("invalid search arguments: %w", err)
	}
	if strings.TrimSpace(a.Pattern) == "" {
		return fmt.Errorf("pattern is required")
	}
	return nil
}

// Execute runs the content search.
func (t *SearchTool) Execute(ctx context.Context, args json.RawMessage) (ToolResult, error) {
	var a searchArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return FailureResultf("invalid search arguments: %v", err), nil
	}

	output, err := t.runner.Search(ctx, a.Pattern, search.Options{
		Glob:         a.Glob,
		FixedStrings: a.Fixed,
		MaxPerFile:   searchMaxPerFile,
	})
	if err != nil {
		return FailureResult(err), nil
	}

	output = strings.TrimRight(output, "\n")
	if output == "" {
		return SuccessResult("no matches found"), nil
	}
	return SuccessResult(capLines(output, searchMaxLines)), nil
}
