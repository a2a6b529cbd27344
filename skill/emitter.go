package skill

import (
	"sync"

	"github.com/BaSui01/skillstream/types"
)

const emitterBuffer = 64

// Emitter is the per-invocation side channel a capability uses to
// publish log, structured-data and error frames while executing. The
// executor drains it concurrently with the execution event sequence.
//
// Emits never block: if the executor has stopped draining (for example
// after an abort) frames beyond the buffer are dropped. The side
// channel is fire-and-forget.
type Emitter struct {
	resultID string

	mu     sync.RWMutex
	closed bool
	ch     chan types.SkillEvent
}

// NewEmitter creates an emitter bound to a result id.
func NewEmitter(resultID string) *Emitter {
	return &Emitter{
		resultID: resultID,
		ch:       make(chan types.SkillEvent, emitterBuffer),
	}
}

// Events returns the frame channel the executor drains.
func (e *Emitter) Events() <-chan types.SkillEvent { return e.ch }

// EmitLog publishes a log line.
func (e *Emitter) EmitLog(message string) {
	e.emit(types.SkillEvent{Event: types.EventLog, ResultID: e.resultID, Content: message})
}

// EmitStructuredData publishes a structured payload under a key.
func (e *Emitter) EmitStructuredData(key string, content any) {
	e.emit(types.SkillEvent{
		Event:             types.EventStructuredData,
		ResultID:          e.resultID,
		StructuredDataKey: key,
		Content:           content,
	})
}

// EmitError publishes a non-fatal capability error.
func (e *Emitter) EmitError(message string) {
	e.emit(types.SkillEvent{Event: types.EventError, ResultID: e.resultID, Content: message})
}

func (e *Emitter) emit(ev types.SkillEvent) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return
	}
	select {
	case e.ch <- ev:
	default:
	}
}

// Close ends the side channel. Called by the executor once the
// execution event sequence has finished; emits afterwards are no-ops.
func (e *Emitter) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	close(e.ch)
}
