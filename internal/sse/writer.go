// Package sse writes skill events to a live HTTP connection as
// server-sent events.
package sse

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/BaSui01/skillstream/types"
)

// Writer frames skill events as SSE data lines and flushes after each
// one. It satisfies the executor's sink contract.
//
// Headers are written lazily on the first frame, so a request rejected
// before streaming starts can still get a plain JSON error response.
type Writer struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
	started bool
}

// NewWriter wraps a response writer. It fails when the underlying
// writer cannot flush incrementally.
func NewWriter(w http.ResponseWriter) (*Writer, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, types.NewError(types.ErrInternalError, "streaming not supported").
			WithHTTPStatus(http.StatusInternalServerError)
	}
	return &Writer{w: w, flusher: flusher}, nil
}

// Started reports whether any frame has been written.
func (s *Writer) Started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

// Send writes one event as a data frame and flushes it.
func (s *Writer) Send(ev *types.SkillEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		s.w.Header().Set("Content-Type", "text/event-stream")
		s.w.Header().Set("Cache-Control", "no-cache")
		s.w.Header().Set("Connection", "keep-alive")
		s.w.Header().Set("X-Accel-Buffering", "no") // 禁用 nginx 缓冲
		s.w.WriteHeader(http.StatusOK)
		s.started = true
	}

	if _, err := s.w.Write([]byte("data: ")); err != nil {
		return err
	}
	if _, err := s.w.Write(payload); err != nil {
		return err
	}
	if _, err := s.w.Write([]byte("\n\n")); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}
