package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/karasuemlak/backend/internal/domain/entities"
	"github.com/karasuemlak/backend/internal/domain/providers"
	"github.com/karasuemlak/backend/internal/domain/repositories"
	"github.com/karasuemlak/backend/internal/infrastructure/observability"
)

const heartbeatInterval = 30 * time.Second

// JobReader loads the current state of a job
type JobReader interface {
	GetJob(ctx context.Context, id string) (*entities.ImprovementJob, error)
}

type repositoryJobReader struct {
	repo repositories.ImprovementJobRepository
}

// NewRepositoryJobReader reads jobs straight from the job store, for
// processes that do not run the improvement service
func NewRepositoryJobReader(repo repositories.ImprovementJobRepository) JobReader {
	return repositoryJobReader{repo: repo}
}

func (r repositoryJobReader) GetJob(ctx context.Context, id string) (*entities.ImprovementJob, error) {
	return r.repo.GetByID(ctx, id)
}

// SSEHandler lets additional admin tabs follow an improvement job that is
// being run by another request
type SSEHandler struct {
	eventBus  providers.EventBus
	jobs      JobReader
	heartbeat time.Duration
}

// NewSSEHandler creates a new SSE handler
func NewSSEHandler(eventBus providers.EventBus, jobs JobReader) *SSEHandler {
	return &SSEHandler{
		eventBus:  eventBus,
		jobs:      jobs,
		heartbeat: heartbeatInterval,
	}
}

// StreamJobUpdates handles GET /api/stream/jobs/{id}. The stream starts with
// the persisted job state and ends after the job's terminal event.
func (h *SSEHandler) StreamJobUpdates(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	if jobID == "" {
		respondWithError(w, http.StatusBadRequest, "job id is required")
		return
	}
	if h.eventBus == nil {
		respondWithError(w, http.StatusServiceUnavailable, "Canlı takip şu anda kullanılamıyor")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondWithError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Subscribe before reading the job so no event falls in between
	channel := providers.GetJobChannel(jobID)
	eventChan, err := h.eventBus.Subscribe(ctx, channel)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Str("channel", channel).Msg("failed to subscribe to job channel")
		respondWithError(w, http.StatusServiceUnavailable, "Canlı takip şu anda kullanılamıyor")
		return
	}

	job, err := h.jobs.GetJob(ctx, jobID)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	observability.ProgressStreamsActive.Inc()
	defer observability.ProgressStreamsActive.Dec()

	setSSEHeaders(w)
	w.WriteHeader(http.StatusOK)

	snapshot := snapshotEvent(job)
	if err := writeSSEFrame(w, snapshot); err != nil {
		return
	}
	flusher.Flush()
	if snapshot.IsTerminal() {
		return
	}

	// Events buffered before the snapshot may lag behind it
	guard := progressGuard{last: job.Progress}

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": heartbeat\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case event, ok := <-eventChan:
			if !ok {
				return
			}
			if event.Type == entities.ProgressEventProgress && event.Progress != nil {
				if *event.Progress < guard.last {
					continue
				}
				guard.clamp(*event.Progress)
			}
			if err := writeSSEFrame(w, event); err != nil {
				return
			}
			flusher.Flush()
			if event.IsTerminal() {
				return
			}
		}
	}
}

// snapshotEvent renders the persisted job state as a stream event
func snapshotEvent(job *entities.ImprovementJob) *entities.ProgressEvent {
	event := &entities.ProgressEvent{
		JobID:  job.ID,
		Step:   string(job.Step),
		SentAt: job.UpdatedAt,
	}
	progress := job.Progress

	switch job.Status {
	case entities.JobStatusCompleted:
		event.Type = entities.ProgressEventComplete
		progress = 100
		event.Data = job
	case entities.JobStatusFailed:
		event.Type = entities.ProgressEventError
		if job.ErrorMessage != nil {
			event.Error = *job.ErrorMessage
		}
	default:
		event.Type = entities.ProgressEventProgress
		event.Message = job.ProgressMessage
	}

	if job.Status != entities.JobStatusFailed {
		event.Progress = &progress
	}
	return event
}
