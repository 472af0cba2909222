package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/karasuemlak/backend/internal/domain/entities"
	"github.com/karasuemlak/backend/internal/domain/providers"
)

// progressGuard enforces the ordering rules shared by all emitters:
// progress never goes back and nothing follows a terminal event.
type progressGuard struct {
	last   int
	closed bool
}

func (g *progressGuard) clamp(progress int) int {
	if progress < g.last {
		progress = g.last
	}
	if progress > 100 {
		progress = 100
	}
	g.last = progress
	return progress
}

func progressEvent(step string, progress int, message string, data interface{}, now time.Time) *entities.ProgressEvent {
	return &entities.ProgressEvent{
		Type:     entities.ProgressEventProgress,
		Step:     step,
		Progress: &progress,
		Message:  message,
		Data:     data,
		SentAt:   now,
	}
}

func completeEvent(data interface{}, now time.Time) *entities.ProgressEvent {
	p := 100
	return &entities.ProgressEvent{
		Type:     entities.ProgressEventComplete,
		Progress: &p,
		Data:     data,
		SentAt:   now,
	}
}

func errorEvent(message string, now time.Time) *entities.ProgressEvent {
	return &entities.ProgressEvent{
		Type:   entities.ProgressEventError,
		Error:  message,
		SentAt: now,
	}
}

// writeSSEFrame writes one "data: <json>\n\n" frame
func writeSSEFrame(w io.Writer, event *entities.ProgressEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal progress event: %w", err)
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", payload)
	return err
}

func setSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
}

// SSEEmitter streams progress of one job to the client of one request.
// Headers are written with the first event, so a request rejected before
// the job starts can still get a regular JSON error response.
type SSEEmitter struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
	reqCtx  context.Context
	guard   progressGuard
	started bool
	now     func() time.Time
}

// NewSSEEmitter creates an emitter bound to the request. It fails when the
// response writer cannot flush.
func NewSSEEmitter(w http.ResponseWriter, r *http.Request) (*SSEEmitter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming not supported")
	}
	return &SSEEmitter{
		w:       w,
		flusher: flusher,
		reqCtx:  r.Context(),
		now:     time.Now,
	}, nil
}

// Started reports whether any event was written
func (e *SSEEmitter) Started() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.started
}

// Progress emits a progress event. Values lower than the previous one are
// raised to it.
func (e *SSEEmitter) Progress(ctx context.Context, step string, progress int, message string, data interface{}) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.guard.closed {
		return providers.ErrStreamClosed
	}
	return e.send(progressEvent(step, e.guard.clamp(progress), message, data, e.now().UTC()))
}

// Complete emits the terminal complete event
func (e *SSEEmitter) Complete(ctx context.Context, data interface{}) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.guard.closed {
		return providers.ErrStreamClosed
	}
	e.guard.closed = true
	return e.send(completeEvent(data, e.now().UTC()))
}

// Fail emits the terminal error event
func (e *SSEEmitter) Fail(ctx context.Context, message string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.guard.closed {
		return providers.ErrStreamClosed
	}
	e.guard.closed = true
	return e.send(errorEvent(message, e.now().UTC()))
}

func (e *SSEEmitter) send(event *entities.ProgressEvent) error {
	if e.reqCtx.Err() != nil {
		return providers.ErrClientGone
	}
	if !e.started {
		setSSEHeaders(e.w)
		e.w.WriteHeader(http.StatusOK)
		e.started = true
	}
	if err := writeSSEFrame(e.w, event); err != nil {
		return fmt.Errorf("%w: %v", providers.ErrClientGone, err)
	}
	e.flusher.Flush()
	return nil
}

// RecordingEmitter buffers events in memory. It backs the non-streaming
// JSON variant of the improve endpoint and the CLI.
type RecordingEmitter struct {
	mu     sync.Mutex
	events []entities.ProgressEvent
	guard  progressGuard
	now    func() time.Time
	// OnEvent, when set, is called with every accepted event
	OnEvent func(entities.ProgressEvent)
}

// NewRecordingEmitter creates an empty recording emitter
func NewRecordingEmitter() *RecordingEmitter {
	return &RecordingEmitter{now: time.Now}
}

// Progress records a progress event
func (e *RecordingEmitter) Progress(ctx context.Context, step string, progress int, message string, data interface{}) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.guard.closed {
		return providers.ErrStreamClosed
	}
	e.record(progressEvent(step, e.guard.clamp(progress), message, data, e.now().UTC()))
	return nil
}

// Complete records the terminal complete event
func (e *RecordingEmitter) Complete(ctx context.Context, data interface{}) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.guard.closed {
		return providers.ErrStreamClosed
	}
	e.guard.closed = true
	e.record(completeEvent(data, e.now().UTC()))
	return nil
}

// Fail records the terminal error event
func (e *RecordingEmitter) Fail(ctx context.Context, message string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.guard.closed {
		return providers.ErrStreamClosed
	}
	e.guard.closed = true
	e.record(errorEvent(message, e.now().UTC()))
	return nil
}

func (e *RecordingEmitter) record(event *entities.ProgressEvent) {
	e.events = append(e.events, *event)
	if e.OnEvent != nil {
		e.OnEvent(*event)
	}
}

// Events returns a copy of the recorded events
func (e *RecordingEmitter) Events() []entities.ProgressEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]entities.ProgressEvent(nil), e.events...)
}

// Terminal returns the complete or error event, if one was recorded
func (e *RecordingEmitter) Terminal() *entities.ProgressEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	if n := len(e.events); n > 0 && e.events[n-1].IsTerminal() {
		ev := e.events[n-1]
		return &ev
	}
	return nil
}
