package skill

import (
	"context"
	"fmt"
	"strings"

	"github.com/BaSui01/skillstream/types"
)

// CommonQnA is the default routing skill: it answers the query against
// whatever resolved context it is handed. It stands in for a real
// model-backed capability and doubles as the pilot for new deployments.
type CommonQnA struct{}

// NewCommonQnA creates the skill.
func NewCommonQnA() *CommonQnA { return &CommonQnA{} }

func (c *CommonQnA) Name() string { return "commonQnA" }

func (c *CommonQnA) Description() string {
	return "Answers a question against the provided context"
}

// Invoke streams the answer word by word, then ends with the full
// content. No provider usage is reported, so the engine estimates.
func (c *CommonQnA) Invoke(ctx context.Context, input *types.SkillInput, cfg *InvokeConfig) (<-chan types.ExecutionEvent, error) {
	ch := make(chan types.ExecutionEvent)
	go func() {
		defer close(ch)

		contextItems := 0
		for _, refs := range cfg.Context {
			contextItems += len(refs)
		}
		if cfg.Emitter != nil {
			cfg.Emitter.EmitLog(fmt.Sprintf("answering with %d context items", contextItems))
		}

		answer := c.compose(input, cfg)
		for _, word := range strings.SplitAfter(answer, " ") {
			if !send(ctx, ch, types.ExecutionEvent{Type: types.ExecChunk, Model: cfg.ModelName, Content: word}) {
				return
			}
		}
		send(ctx, ch, types.ExecutionEvent{Type: types.ExecEnd, Model: cfg.ModelName, Content: answer})
	}()
	return ch, nil
}

func (c *CommonQnA) compose(input *types.SkillInput, cfg *InvokeConfig) string {
	var b strings.Builder
	if input.Query == "" {
		b.WriteString("No question was asked.")
	} else {
		fmt.Fprintf(&b, "Answer to %q", input.Query)
	}
	var titles []string
	for _, kind := range []types.ReferenceKind{types.KindResource, types.KindDocument, types.KindText, types.KindURL} {
		for _, ref := range cfg.Context[kind] {
			if ref.Title != "" {
				titles = append(titles, ref.Title)
			}
		}
	}
	if len(titles) > 0 {
		fmt.Fprintf(&b, " based on: %s", strings.Join(titles, ", "))
	}
	return b.String()
}

// send delivers one event unless the invocation context is gone.
func send(ctx context.Context, ch chan<- types.ExecutionEvent, ev types.ExecutionEvent) bool {
	select {
	case ch <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
