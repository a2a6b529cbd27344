package types

import (
	"encoding/json"
	"time"
)

// ResultStatus is the lifecycle state of an ActionResult.
type ResultStatus string

const (
	StatusExecuting ResultStatus = "executing"
	StatusFinish    ResultStatus = "finish"
	StatusFailed    ResultStatus = "failed"
)

// Terminal reports whether the status permits no further mutation.
func (s ResultStatus) Terminal() bool {
	return s == StatusFinish || s == StatusFailed
}

// ResultType tags what produced an ActionResult.
type ResultType string

const (
	ResultTypeSkill ResultType = "skill"
	ResultTypeTool  ResultType = "tool"
)

// ToolCall records one tool invocation made by the capability.
type ToolCall struct {
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// ActionResult is the durable record of one skill invocation.
//
// Created by admission with status executing; mutated only by the result
// aggregator owning the invocation; immutable once status is terminal.
type ActionResult struct {
	// Immutable at creation.
	ResultID  string     `json:"resultId"`
	UID       string     `json:"uid"`
	CanvasID  string     `json:"canvasId,omitempty"`
	TriggerID string     `json:"triggerId,omitempty"`
	Type      ResultType `json:"type"`
	SkillName string     `json:"skillName"`
	ModelName string     `json:"modelName"`
	Input     string     `json:"input"` // serialized invocation parameters
	CreatedAt time.Time  `json:"createdAt"`

	// Mutable until terminal.
	Status         ResultStatus   `json:"status"`
	Content        string         `json:"content,omitempty"`
	Logs           []string       `json:"logs,omitempty"`
	StructuredData map[string]any `json:"structuredData,omitempty"`
	Errors         []string       `json:"errors,omitempty"`
	ToolCalls      []ToolCall     `json:"toolCalls,omitempty"`
	TokenUsage     TokenUsage     `json:"tokenUsage"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}
