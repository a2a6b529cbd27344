// Package api defines the HTTP request and response shapes.
package api

import (
	"github.com/BaSui01/skillstream/types"
)

// InvokeRequest is the body of both invoke endpoints. It is the wire
// form of an invocation request.
type InvokeRequest = types.InvocationRequest

// InvokeResponse acknowledges an asynchronous invocation.
type InvokeResponse struct {
	ResultID string             `json:"resultId"`
	Status   types.ResultStatus `json:"status"`
}

// TriggerSpec is the wire form of one trigger definition.
type TriggerSpec struct {
	SkillName       string             `json:"skillName"`
	Type            types.TriggerType  `json:"triggerType"`
	SimpleEventName string             `json:"simpleEventName,omitempty"`
	Timer           *types.TimerConfig `json:"timerConfig,omitempty"`
	Input           *types.SkillInput  `json:"input,omitempty"`
	Context         types.SkillContext `json:"context,omitempty"`
	Config          map[string]any     `json:"config,omitempty"`
	Enabled         bool               `json:"enabled,omitempty"`
}

// ToTrigger converts the spec to the domain type.
func (t *TriggerSpec) ToTrigger() *types.SkillTrigger {
	return &types.SkillTrigger{
		SkillName:       t.SkillName,
		Type:            t.Type,
		SimpleEventName: t.SimpleEventName,
		Timer:           t.Timer,
		Input:           t.Input,
		Context:         t.Context,
		Config:          t.Config,
		Enabled:         t.Enabled,
	}
}

// CreateTriggersRequest creates a batch of triggers.
type CreateTriggersRequest struct {
	Triggers []TriggerSpec `json:"triggers"`
}

// UpdateTriggerRequest rewrites one trigger.
type UpdateTriggerRequest struct {
	TriggerID string `json:"triggerId"`
	TriggerSpec
}
