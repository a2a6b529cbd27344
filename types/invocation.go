package types

// ReferenceKind classifies entries in a SkillContext.
type ReferenceKind string

const (
	KindResource ReferenceKind = "resource"
	KindDocument ReferenceKind = "document"
	KindText     ReferenceKind = "text"
	KindURL      ReferenceKind = "url"
)

// resolvableKinds are the kinds whose references point at stored records
// and may arrive unpopulated. Text snippets and URLs carry their own
// content inline and are never resolved.
var resolvableKinds = []ReferenceKind{KindResource, KindDocument}

// ResolvableKinds returns the kinds the context resolver looks up.
func ResolvableKinds() []ReferenceKind {
	out := make([]ReferenceKind, len(resolvableKinds))
	copy(out, resolvableKinds)
	return out
}

// ContextReference is a lightweight reference to a resource, document,
// text snippet, or URL. A reference may arrive with only an ID; resolution
// fills in Title and Content without touching already-populated entries.
type ContextReference struct {
	ID      string `json:"id"`
	Title   string `json:"title,omitempty"`
	Content string `json:"content,omitempty"`
	URL     string `json:"url,omitempty"`
}

// Populated reports whether the reference already carries its content.
func (r ContextReference) Populated() bool {
	return r.Content != ""
}

// SkillContext maps a reference kind to an ordered list of references.
type SkillContext map[ReferenceKind][]ContextReference

// Clone returns a deep copy of the context. Resolution mutates the copy,
// never the caller's original.
func (c SkillContext) Clone() SkillContext {
	if c == nil {
		return nil
	}
	out := make(SkillContext, len(c))
	for kind, refs := range c {
		cp := make([]ContextReference, len(refs))
		copy(cp, refs)
		out[kind] = cp
	}
	return out
}

// SkillInput is the free-form input to a skill invocation.
type SkillInput struct {
	Query string         `json:"query"`
	Extra map[string]any `json:"extra,omitempty"`
}

// InvocationRequest is the user-supplied request to invoke a skill.
type InvocationRequest struct {
	// SkillName selects the skill; empty means the default routing skill.
	SkillName string `json:"skillName,omitempty"`

	// Input is the free-form skill input. Nil defaults to {query: ""}.
	Input *SkillInput `json:"input,omitempty"`

	// Context references the resources, documents, snippets and URLs the
	// skill should work against.
	Context SkillContext `json:"context,omitempty"`

	// ModelName selects the model; empty means the registry default.
	ModelName string `json:"modelName,omitempty"`

	// Config carries per-skill configuration, opaque to the engine.
	Config map[string]any `json:"config,omitempty"`

	// ResultID is an optional idempotency key. If a record with this id
	// already exists for the user, admission fails.
	ResultID string `json:"resultId,omitempty"`

	// ResultHistory references prior results for chat continuity.
	// Missing ids are dropped silently; history is best-effort.
	ResultHistory []string `json:"resultHistory,omitempty"`

	// CanvasID groups the result on a canvas.
	CanvasID string `json:"canvasId,omitempty"`

	// TriggerID is set when the invocation originates from a trigger,
	// linking the result back to it.
	TriggerID string `json:"triggerId,omitempty"`
}

// SkillMeta is the lightweight description of an installed skill passed
// to the capability through the invoke config.
type SkillMeta struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName,omitempty"`
	Description string `json:"description,omitempty"`
}
