// File reading tool with a line-window cap.

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"foray/repo"
)

// readMaxLines caps the lines one read call can return. Longer files
// are paged with start_line.
const readMaxLines = 2000

// ReadTool reads repository files as numbered line windows.
type ReadTool struct {
	BaseTool
	reader *repo.Reader
}

// NewReadTool creates a read tool over the given reader.
func NewReadTool(reader *repo.Reader) *ReadTool {
	return &ReadTool{reader: reader}
}

type readArgs struct {
	Path      string `json:"path"`
	StartLine int    `json:"start_line"`
	MaxLines  int    `json:"max_lines"`
}

// Metadata returns the read tool metadata.
func (t *ReadTool) Metadata() ToolMetadata {
	return ToolMetadata{
		Name: "read",
		Description: "Read a repository file, returning numbered lines. " +
			"Long files are windowed; page with start_line.",
		Parameters: []ToolParameter{
			{
				Name:        "path",
				ParamType:   "string",
				Description: "repository-relative file path",
				Required:    true,
			},
			{
				Name:        "start_line",
				ParamType:   "integer",
				Description: "first line to read, 1-based (default 1)",
				Required:    false,
			},
			{
				Name:        "max_lines",
				ParamType:   "integer",
				Description: fmt.Sprintf("lines to return (default and cap %d)", readMaxLines),
				Required:    false,
			},
		},
	}
}

// Validate checks the read arguments.
func (t *ReadTool) Validate(args json.RawMessage) error {
	var a readArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return fmt.Errorf("invalid read arguments: %w", err)
	}
	if strings.TrimSpace(a.Path) == "" {
		return fmt.Errorf("path is required")
	}
	return nil
}

// Execute reads the requested window.
func (t *ReadTool) Execute(ctx context.Context, args json.RawMessage) (ToolResult, error) {
	var a readArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return FailureResultf("invalid read arguments: %v", err), nil
	}

	maxLines := a.MaxLines
	if maxLines <= 0 || maxLines > readMaxLines {
		maxLines = readMaxLines
	}

	slice, err := t.reader.ReadSlice(a.Path, a.StartLine, maxLines)
	if err != nil {
		return FailureResult(err), nil
	}
	if len(slice.Lines) == 0 {
		return FailureResultf("start_line %d is past the end of %s (%d lines)",
			a.StartLine, a.Path, slice.TotalLines), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s (lines %d-%d of %d)\n", a.Path, slice.Start, slice.End(), slice.TotalLines)
	b.WriteString(slice.Numbered())
	if slice.Truncated {
		fmt.Fprintf(&b, "(truncated; continue with start_line=%d)\n", slice.End()+1)
	}
	return SuccessResult(b.String()), nil
}
