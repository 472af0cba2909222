package events

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/karasuemlak/backend/internal/domain/entities"
	"github.com/karasuemlak/backend/internal/domain/providers"
)

const publishTimeout = 2 * time.Second

// BroadcastEmitter forwards every event to the wrapped emitter and then
// publishes a copy on the job's channel so other tabs can follow along.
// Publish failures are logged and never reach the caller.
type BroadcastEmitter struct {
	inner providers.ProgressEmitter
	bus   providers.EventBus
	jobID string
	now   func() time.Time
}

// NewBroadcastEmitter wraps inner. A nil bus disables broadcasting.
func NewBroadcastEmitter(inner providers.ProgressEmitter, bus providers.EventBus, jobID string) *BroadcastEmitter {
	return &BroadcastEmitter{
		inner: inner,
		bus:   bus,
		jobID: jobID,
		now:   time.Now,
	}
}

// Progress emits a progress event
func (e *BroadcastEmitter) Progress(ctx context.Context, step string, progress int, message string, data interface{}) error {
	if err := e.inner.Progress(ctx, step, progress, message, data); err != nil {
		return err
	}
	p := progress
	e.publish(ctx, &entities.ProgressEvent{
		Type:     entities.ProgressEventProgress,
		Step:     step,
		Progress: &p,
		Message:  message,
		Data:     data,
	})
	return nil
}

// Complete emits the terminal complete event
func (e *BroadcastEmitter) Complete(ctx context.Context, data interface{}) error {
	err := e.inner.Complete(ctx, data)
	if err == providers.ErrStreamClosed {
		return err
	}
	p := 100
	e.publish(ctx, &entities.ProgressEvent{
		Type:     entities.ProgressEventComplete,
		Step:     string(entities.JobStepCompleted),
		Progress: &p,
		Data:     data,
	})
	return err
}

// Fail emits the terminal error event
func (e *BroadcastEmitter) Fail(ctx context.Context, message string) error {
	err := e.inner.Fail(ctx, message)
	if err == providers.ErrStreamClosed {
		return err
	}
	e.publish(ctx, &entities.ProgressEvent{
		Type:  entities.ProgressEventError,
		Step:  string(entities.JobStepFailed),
		Error: message,
	})
	return err
}

func (e *BroadcastEmitter) publish(ctx context.Context, event *entities.ProgressEvent) {
	if e.bus == nil {
		return
	}
	event.JobID = e.jobID
	event.SentAt = e.now().UTC()

	// Followers must still see the terminal event when the requester left
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := e.bus.Publish(pubCtx, providers.GetJobChannel(e.jobID), event); err != nil {
		log.Warn().Err(err).Str("job_id", e.jobID).Str("type", string(event.Type)).Msg("failed to broadcast progress event")
	}
}
