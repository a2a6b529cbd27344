package skill

import (
	"context"
	"sync"

	"github.com/BaSui01/skillstream/types"
)

// ResultCommitter persists the terminal state of a record.
type ResultCommitter interface {
	CommitResult(ctx context.Context, res *types.ActionResult) error
}

// Aggregator owns the mutable state of one executing record. All
// mutation goes through it; after Commit the record is terminal and
// further mutation is ignored.
type Aggregator struct {
	mu        sync.Mutex
	res       *types.ActionResult
	committed bool
}

// NewAggregator wraps a freshly admitted record.
func NewAggregator(res *types.ActionResult) *Aggregator {
	return &Aggregator{res: res}
}

// AppendContent adds final model output. Stream chunks are never
// retained; content arrives only from model-end events.
func (a *Aggregator) AppendContent(content string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.committed {
		return
	}
	a.res.Content += content
}

// AddLog records one capability log line.
func (a *Aggregator) AddLog(message string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.committed {
		return
	}
	a.res.Logs = append(a.res.Logs, message)
}

// AddStructuredData merges a structured payload under its key.
func (a *Aggregator) AddStructuredData(key string, content any) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.committed {
		return
	}
	if a.res.StructuredData == nil {
		a.res.StructuredData = make(map[string]any)
	}
	a.res.StructuredData[key] = content
}

// AddError records an execution error. A record with any errors
// commits as failed.
func (a *Aggregator) AddError(message string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.committed {
		return
	}
	a.res.Errors = append(a.res.Errors, message)
}

// AddToolCalls records tool invocations from a model-end event.
func (a *Aggregator) AddToolCalls(calls []types.ToolCall) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.committed || len(calls) == 0 {
		return
	}
	a.res.ToolCalls = append(a.res.ToolCalls, calls...)
}

// AddUsage folds one usage item into the record's aggregate.
func (a *Aggregator) AddUsage(item types.TokenUsageItem) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.committed {
		return
	}
	a.res.TokenUsage.Add(item)
}

// Usage returns the current aggregate.
func (a *Aggregator) Usage() types.TokenUsage {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.res.TokenUsage
}

// Failed reports whether any error has been recorded.
func (a *Aggregator) Failed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.res.Errors) > 0
}

// Commit writes the terminal state exactly once: failed if any error
// was recorded, finish otherwise. Later calls are no-ops.
func (a *Aggregator) Commit(ctx context.Context, committer ResultCommitter) (types.ResultStatus, error) {
	a.mu.Lock()
	if a.committed {
		status := a.res.Status
		a.mu.Unlock()
		return status, nil
	}
	a.committed = true
	if len(a.res.Errors) > 0 {
		a.res.Status = types.StatusFailed
	} else {
		a.res.Status = types.StatusFinish
	}
	snapshot := *a.res
	a.mu.Unlock()

	return snapshot.Status, committer.CommitResult(ctx, &snapshot)
}
