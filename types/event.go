package types

// SkillEventType identifies a frame on the live output stream.
type SkillEventType string

const (
	EventStream         SkillEventType = "stream"
	EventLog            SkillEventType = "log"
	EventStructuredData SkillEventType = "structured_data"
	EventError          SkillEventType = "error"
	EventUsage          SkillEventType = "usage"
)

// SkillEvent is one frame forwarded to a live client connection. Content
// is a string for every event except usage, which carries UsageContent.
type SkillEvent struct {
	Event             SkillEventType `json:"event"`
	ResultID          string         `json:"resultId,omitempty"`
	StructuredDataKey string         `json:"structuredDataKey,omitempty"`
	Content           any            `json:"content,omitempty"`
}

// UsageContent is the content of the terminal usage frame.
type UsageContent struct {
	Token TokenUsage `json:"token"`
}

// ExecutionEventType classifies the low-level events a skill capability
// produces.
type ExecutionEventType string

const (
	// ExecChunk is an incremental model-stream chunk.
	ExecChunk ExecutionEventType = "chunk"
	// ExecEnd is a model-end event carrying the final content, tool calls
	// and, when the provider reports it, usage metadata.
	ExecEnd ExecutionEventType = "end"
)

// CallUsage is the provider-reported token usage on a model-end event.
type CallUsage struct {
	InputTokens  int `json:"inputTokens"`
	OutputTokens int `json:"outputTokens"`
}

// ExecutionEvent is one element of the lazy, finite, non-restartable
// sequence a skill capability produces. The engine classifies each event:
// empty or tool-call-only chunks are discarded, content chunks become
// stream frames, and end events drive usage accounting and aggregation.
type ExecutionEvent struct {
	Type      ExecutionEventType `json:"type"`
	Model     string             `json:"model,omitempty"`
	Content   string             `json:"content,omitempty"`
	ToolCalls []ToolCall         `json:"toolCalls,omitempty"`
	// ToolCallChunk marks a chunk that carries only a tool invocation
	// delta. Such chunks are neither forwarded nor aggregated.
	ToolCallChunk bool `json:"toolCallChunk,omitempty"`
	// Usage is nil when the provider did not report token counts; the
	// executor then falls back to tokenizer estimation.
	Usage *CallUsage `json:"usage,omitempty"`
}
