package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/karasuemlak/backend/internal/adapters/events"
	"github.com/karasuemlak/backend/internal/api/middleware"
	"github.com/karasuemlak/backend/internal/application/services"
	"github.com/karasuemlak/backend/internal/domain/entities"
	"github.com/karasuemlak/backend/internal/domain/providers"
	"github.com/karasuemlak/backend/internal/infrastructure/observability"
	apperrors "github.com/karasuemlak/backend/pkg/errors"
)

// ImprovementService defines the improvement operations used by the handler
type ImprovementService interface {
	Run(ctx context.Context, req services.ImproveJobRequest, emitter providers.ProgressEmitter) (*entities.ImprovementJob, error)
	ApplyImprovement(ctx context.Context, jobID string) (*entities.ImprovementJob, error)
	GetJob(ctx context.Context, id string) (*entities.ImprovementJob, error)
	ListJobs(ctx context.Context, contentType entities.ContentType, contentID string, limit int) ([]*entities.ImprovementJob, error)
}

// ImprovementHandler handles AI content improvement endpoints
type ImprovementHandler struct {
	service ImprovementService
	bus     providers.EventBus
}

// NewImprovementHandler creates a new improvement handler. bus may be nil.
func NewImprovementHandler(service ImprovementService, bus providers.EventBus) *ImprovementHandler {
	return &ImprovementHandler{
		service: service,
		bus:     bus,
	}
}

type improveRequest struct {
	ContentType string `json:"content_type"`
	ContentID   string `json:"content_id"`
	Field       string `json:"field"`
	Apply       bool   `json:"apply"`
}

type improveResponse struct {
	Job    *entities.ImprovementJob `json:"job"`
	Events []entities.ProgressEvent `json:"events"`
	Result interface{}              `json:"result,omitempty"`
	Error  string                   `json:"error,omitempty"`
}

// Improve handles POST /api/admin/ai/improve. With Accept: text/event-stream
// progress is streamed as it happens; otherwise the run completes first and
// the whole event log is returned as JSON.
func (h *ImprovementHandler) Improve(w http.ResponseWriter, r *http.Request) {
	var payload improveRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondWithError(w, http.StatusBadRequest, "Geçersiz istek gövdesi")
		return
	}

	contentType, err := entities.ParseContentType(payload.ContentType)
	if err != nil {
		respondWithAppError(w, r, apperrors.NewValidationError(err.Error()))
		return
	}

	req := services.ImproveJobRequest{
		JobID: uuid.New().String(),
		Ref: entities.ContentRef{
			Type:  contentType,
			ID:    strings.TrimSpace(payload.ContentID),
			Field: payload.Field,
		},
		RequestedBy: middleware.UserID(r.Context()),
		Apply:       payload.Apply,
	}

	if strings.Contains(r.Header.Get("Accept"), "text/event-stream") {
		h.improveStream(w, r, req)
		return
	}
	h.improveJSON(w, r, req)
}

func (h *ImprovementHandler) improveStream(w http.ResponseWriter, r *http.Request, req services.ImproveJobRequest) {
	sse, err := NewSSEEmitter(w, r)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	observability.ProgressStreamsActive.Inc()
	defer observability.ProgressStreamsActive.Dec()

	emitter := events.NewBroadcastEmitter(sse, h.bus, req.JobID)
	job, err := h.service.Run(r.Context(), req, emitter)
	if err != nil && job == nil && !sse.Started() {
		// Rejected before the job existed; nothing was streamed yet
		respondWithAppError(w, r, err)
		return
	}
	if err != nil {
		log.Ctx(r.Context()).Debug().Err(err).Str("job_id", req.JobID).Msg("improvement stream ended with error")
	}
}

func (h *ImprovementHandler) improveJSON(w http.ResponseWriter, r *http.Request, req services.ImproveJobRequest) {
	recorder := NewRecordingEmitter()
	emitter := events.NewBroadcastEmitter(recorder, h.bus, req.JobID)

	job, err := h.service.Run(r.Context(), req, emitter)
	if job == nil {
		respondWithAppError(w, r, err)
		return
	}

	resp := improveResponse{Job: job, Events: recorder.Events()}
	if terminal := recorder.Terminal(); terminal != nil {
		resp.Result = terminal.Data
		resp.Error = terminal.Error
	}

	status := http.StatusOK
	if err != nil {
		status = apperrors.HTTPStatus(err)
		if status == http.StatusServiceUnavailable {
			w.Header().Set("Retry-After", strconv.Itoa(unavailableRetryAfter))
		}
	}
	respondWithJSON(w, status, resp)
}

// Apply handles POST /api/admin/ai/jobs/{id}/apply
func (h *ImprovementHandler) Apply(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	if jobID == "" {
		respondWithError(w, http.StatusBadRequest, "job id is required")
		return
	}

	job, err := h.service.ApplyImprovement(r.Context(), jobID)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, job)
}

// GetJob handles GET /api/admin/ai/jobs/{id}
func (h *ImprovementHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.service.GetJob(r.Context(), r.PathValue("id"))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, job)
}

// ListJobs handles GET /api/admin/ai/jobs?content_type=&content_id=&limit=
func (h *ImprovementHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	limit := 20
	if raw := query.Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			respondWithError(w, http.StatusBadRequest, "invalid limit parameter")
			return
		}
		limit = parsed
	}

	jobs, err := h.service.ListJobs(r.Context(), entities.ContentType(query.Get("content_type")), query.Get("content_id"), limit)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	if jobs == nil {
		jobs = []*entities.ImprovementJob{}
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobs,
		"count": len(jobs),
	})
}
