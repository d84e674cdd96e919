// Package llm provides shared data models for LLM providers.
package llm

import "encoding/json"

// ChatMessage represents a chat message with role and content.
type ChatMessage struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`   // For assistant messages with tool calls
	ToolCallID string     `json:"tool_call_id,omitempty"` // For tool result messages
}

// ToolCall represents a tool call from the LLM.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ToolDefinition defines a tool that the LLM can call.
type ToolDefinition struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"` // JSON Schema
}

// SystemMessage creates a system message.
func SystemMessage(content string) ChatMessage {
	return ChatMessage{
		Role:    "system",
		Content: content,
	}
}

// UserMessage creates a user message.
func UserMessage(content string) ChatMessage {
	return ChatMessage{
		Role:    "user",
		Content: content,
	}
}

// AssistantMessage creates an assistant message.
func AssistantMessage(content string) ChatMessage {
	return ChatMessage{
		Role:    "assistant",
		Content: content,
	}
}

// ToolResultMessage creates a tool result message answering a tool call.
func ToolResultMessage(toolCallID, content string) ChatMessage {
	return ChatMessage{
		Role:       "tool",
		Content:    content,
		ToolCallID: toolCallID,
	}
}

// StopReason describes why the model stopped generating.
// Provider-specific reasons are normalized to these values; reasons
// with no mapping pass through as their raw string.
type StopReason string

const (
	StopEndTurn   StopReason = "end_turn"
	StopToolUse   StopReason = "tool_use"
	StopMaxTokens StopReason = "max_tokens"
	// StopError and StopAborted are in-band failure signals. Callers
	// must treat them like a thrown transient error.
	StopError   StopReason = "error"
	StopAborted StopReason = "aborted"
)

// Failed reports whether the stop reason signals an in-band failure.
func (s StopReason) Failed() bool {
	return s == StopError || s == StopAborted
}

// LLMResponse represents a response from an LLM provider.
type LLMResponse struct {
	Content    string
	ToolCalls  []ToolCall // Tool calls requested by the LLM
	Usage      *TokenUsage
	StopReason StopReason
}

// TokenUsage contains token usage statistics for one completion call.
// PromptTokens counts all input tokens including the cached portion;
// the cache fields break out what hit the prompt cache. Cache fields
// stay zero on providers without prompt caching.
type TokenUsage struct {
	PromptTokens     uint32
	CompletionTokens uint32
	TotalTokens      uint32
	CacheReadTokens  uint32
	CacheWriteTokens uint32
	// Cost is the estimated USD cost of the call, derived from the
	// model's pricing table entry. Zero when the model is unknown.
	Cost float64
}
