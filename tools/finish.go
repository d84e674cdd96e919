// Finish tool: the terminal call each agent makes to hand back its
// selection.

package tools

import (
	"context"
	"encoding/json"
)

// FinishToolName is matched by agents to intercept the terminal call.
const FinishToolName = "finish"

// FinishTool carries the selection schema. Agents intercept finish
// calls and parse the arguments themselves; Execute only answers a
// direct invocation.
type FinishTool struct {
	BaseTool
}

// NewFinishTool creates the finish tool.
func NewFinishTool() *FinishTool {
	return &FinishTool{}
}

// Metadata returns the finish tool metadata.
func (t *FinishTool) Metadata() ToolMetadata {
	return ToolMetadata{
		Name: FinishToolName,
		Description: "Complete the retrieval with a summary and the final list of relevant files. " +
			"Call exactly once, when the question is answered.",
		Parameters: []ToolParameter{
			{
				Name:        "summary",
				ParamType:   "string",
				Description: "what was found and where, in a few sentences",
				Required:    true,
			},
			{
				Name:        "files",
				ParamType:   "array",
				Description: "files relevant to the query, most relevant first",
				Required:    true,
				Items: map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"file": map[string]interface{}{
							"type":        "string",
							"description": "repository-relative path",
						},
						"ranges": map[string]interface{}{
							"type":        "array",
							"description": "relevant line ranges",
							"items": map[string]interface{}{
								"type": "object",
								"properties": map[string]interface{}{
									"start": map[string]interface{}{"type": "integer"},
									"end":   map[string]interface{}{"type": "integer"},
								},
							},
						},
						"symbols": map[string]interface{}{
							"type":        "array",
							"description": "relevant symbol names declared in the file",
							"items":       map[string]interface{}{"type": "string"},
						},
						"reason": map[string]interface{}{
							"type":        "string",
							"description": "why this file matters to the query",
						},
						"confidence": map[string]interface{}{
							"type":        "string",
							"description": "low, medium or high",
						},
					},
					"required": []string{"file"},
				},
			},
			{
				Name:        "not_found",
				ParamType:   "array",
				Description: "things searched for but not present in the repository",
				Required:    false,
				Items:       map[string]interface{}{"type": "string"},
			},
		},
	}
}

// Execute acknowledges a direct call.
func (t *FinishTool) Execute(ctx context.Context, args json.RawMessage) (ToolResult, error) {
	return SuccessResult("selection recorded"), nil
}
