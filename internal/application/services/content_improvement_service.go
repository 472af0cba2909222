package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"

	"github.com/karasuemlak/backend/internal/domain/entities"
	"github.com/karasuemlak/backend/internal/domain/providers"
	"github.com/karasuemlak/backend/internal/domain/repositories"
	"github.com/karasuemlak/backend/internal/infrastructure/observability"
	apperrors "github.com/karasuemlak/backend/pkg/errors"
	"github.com/karasuemlak/backend/pkg/utils"
)

// User-visible step messages
const (
	msgInitializing = "İyileştirme başlatılıyor"
	msgFetching     = "İçerik alınıyor"
	msgAnalyzing    = "İçerik kalitesi analiz ediliyor"
	msgImproving    = "Yapay zeka ile içerik iyileştiriliyor"
	msgSaving       = "Sonuçlar kaydediliyor"
	msgCompleted    = "İyileştirme tamamlandı"

	msgEmptyContent     = "İyileştirilecek içerik boş"
	msgDisconnected     = "Bağlantı kesildi, iyileştirme yarıda bırakıldı"
	msgProviderTimeout  = "Yapay zeka servisi zamanında yanıt vermedi, lütfen tekrar deneyin"
	msgProviderAuth     = "Yapay zeka servisi kimlik bilgilerini reddetti"
	msgProviderFailed   = "Yapay zeka servisi içeriği iyileştiremedi"
	msgJobStoreFailed   = "İyileştirme kaydı güncellenemedi"
	msgUnexpectedFailed = "Beklenmeyen bir hata oluştu"
)

const (
	defaultProviderTimeout = 45 * time.Second
	failPersistTimeout     = 10 * time.Second
)

// ImproveJobRequest starts one improvement run
type ImproveJobRequest struct {
	// JobID is generated when empty
	JobID       string
	Ref         entities.ContentRef
	RequestedBy string
	// Apply writes the improved text back to the content entity during the
	// saving step instead of waiting for an explicit ApplyImprovement call
	Apply bool
}

// ContentImprovementService runs the improvement pipeline for one content
// field and reports each step to a ProgressEmitter.
type ContentImprovementService struct {
	jobs            repositories.ImprovementJobRepository
	content         repositories.ContentRepository
	improver        providers.ContentImprover
	analyzer        providers.QualityAnalyzer
	limiter         *RateLimiter
	providerTimeout time.Duration
	now             func() time.Time
	newID           func() string
}

// NewContentImprovementService creates a new content improvement service.
// content should already retry transient store failures.
func NewContentImprovementService(
	jobs repositories.ImprovementJobRepository,
	content repositories.ContentRepository,
	improver providers.ContentImprover,
	analyzer providers.QualityAnalyzer,
	limiter *RateLimiter,
	providerTimeout time.Duration,
) *ContentImprovementService {
	if providerTimeout <= 0 {
		providerTimeout = defaultProviderTimeout
	}
	return &ContentImprovementService{
		jobs:            jobs,
		content:         content,
		improver:        improver,
		analyzer:        analyzer,
		limiter:         limiter,
		providerTimeout: providerTimeout,
		now:             func() time.Time { return time.Now().UTC() },
		newID:           func() string { return uuid.New().String() },
	}
}

// jobRun carries the state of one pipeline execution
type jobRun struct {
	job     *entities.ImprovementJob
	emitter providers.ProgressEmitter
	start   time.Time
}

// Run executes the pipeline. Errors raised before the job exists are
// returned without emitting anything; once the job exists every failure is
// persisted and reported through exactly one error event, and the failed
// job is returned together with the error.
func (s *ContentImprovementService) Run(ctx context.Context, req ImproveJobRequest, emitter providers.ProgressEmitter) (*entities.ImprovementJob, error) {
	if err := req.Ref.Validate(); err != nil {
		return nil, apperrors.NewValidationError(err.Error())
	}
	if err := s.limiter.Allow(ctx, rateLimitKey(req.RequestedBy)); err != nil {
		return nil, err
	}

	ctx, span := observability.StartSpan(ctx, "ContentImprovementService.Run",
		attribute.String("content.type", string(req.Ref.Type)),
		attribute.String("content.id", req.Ref.ID),
		attribute.String("content.field", req.Ref.Field),
	)
	defer span.End()

	jobID := req.JobID
	if jobID == "" {
		jobID = s.newID()
	}
	run := &jobRun{
		job:     entities.NewImprovementJob(jobID, req.Ref, req.RequestedBy, s.now()),
		emitter: emitter,
		start:   time.Now(),
	}
	span.SetAttributes(attribute.String("job.id", run.job.ID))

	logger := observability.LoggerFromContext(ctx).With().
		Str("job_id", run.job.ID).
		Str("content_type", string(req.Ref.Type)).
		Str("content_id", req.Ref.ID).
		Str("field", req.Ref.Field).
		Logger()
	ctx = logger.WithContext(ctx)

	if err := s.jobs.Create(ctx, run.job); err != nil {
		logger.Error().Err(err).Msg("failed to create improvement job")
		_ = emitter.Fail(ctx, msgJobStoreFailed)
		observability.RecordError(span, err)
		return nil, err
	}
	if err := emitter.Progress(ctx, string(entities.JobStepInitializing), 0, msgInitializing, map[string]string{"job_id": run.job.ID}); err != nil {
		return s.fail(ctx, run, err)
	}

	if err := s.execute(ctx, run, req); err != nil {
		observability.RecordError(span, err)
		return s.fail(ctx, run, err)
	}

	s.observe(run, "")
	logger.Info().
		Int("score_before", run.job.ImprovementResult.Score.Before).
		Int("score_after", run.job.ImprovementResult.Score.After).
		Dur("duration", time.Since(run.start)).
		Msg("content improvement completed")
	return run.job, nil
}

func (s *ContentImprovementService) execute(ctx context.Context, run *jobRun, req ImproveJobRequest) error {
	job := run.job

	// fetching
	if err := s.advance(ctx, run, entities.JobStepFetching, 10, msgFetching, nil); err != nil {
		return err
	}
	entity, err := s.content.Get(ctx, req.Ref)
	if err != nil {
		return err
	}
	if strings.TrimSpace(entity.Value) == "" {
		return apperrors.NewValidationError(msgEmptyContent)
	}
	job.OriginalContent = entity.Value

	// analyzing
	if err := s.checkpoint(ctx); err != nil {
		return err
	}
	improveReq := entities.ImproveRequest{
		ContentType: req.Ref.Type,
		Field:       req.Ref.Field,
		Title:       entity.Title,
		Text:        entity.Value,
	}
	analysis := s.analyzer.Analyze(improveReq)
	job.QualityAnalysis = analysis
	improveReq.Analysis = analysis
	if err := s.advance(ctx, run, entities.JobStepAnalyzing, 30, msgAnalyzing, analysis); err != nil {
		return err
	}

	// improving
	if err := s.advance(ctx, run, entities.JobStepImproving, 50, msgImproving, nil); err != nil {
		return err
	}
	result, err := s.improve(ctx, improveReq)
	if err != nil {
		return err
	}

	// saving
	if err := s.advance(ctx, run, entities.JobStepSaving, 85, msgSaving, nil); err != nil {
		return err
	}
	if req.Apply {
		score := result.Score.After
		if err := s.content.UpdateField(ctx, req.Ref, entities.ContentPatch{Value: result.ImprovedText, QualityScore: &score}); err != nil {
			return err
		}
	}
	// The run only adopts the completion once it is stored, so a failed
	// write leaves the job open for the fail funnel
	completed := *job
	if err := completed.Complete(result, msgCompleted, s.now()); err != nil {
		return err
	}
	if req.Apply {
		if err := completed.MarkApplied(s.now()); err != nil {
			return err
		}
	}
	if err := s.jobs.Update(ctx, &completed); err != nil {
		return err
	}
	*job = completed

	// Losing the subscriber now does not undo a persisted completion
	if err := run.emitter.Complete(ctx, buildComparison(job)); err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("complete event not delivered")
	}
	return nil
}

// advance persists the step before emitting it
func (s *ContentImprovementService) advance(ctx context.Context, run *jobRun, step entities.JobStep, progress int, message string, data interface{}) error {
	if err := s.checkpoint(ctx); err != nil {
		return err
	}
	if err := run.job.Advance(step, progress, message, s.now()); err != nil {
		return err
	}
	if err := s.jobs.Update(ctx, run.job); err != nil {
		return err
	}
	return run.emitter.Progress(ctx, string(step), progress, message, data)
}

// checkpoint abandons the run once the client went away
func (s *ContentImprovementService) checkpoint(ctx context.Context) error {
	if ctx.Err() != nil {
		return providers.ErrClientGone
	}
	return nil
}

func (s *ContentImprovementService) improve(ctx context.Context, req entities.ImproveRequest) (*entities.ImprovementResult, error) {
	providerCtx, cancel := context.WithTimeout(ctx, s.providerTimeout)
	defer cancel()

	spanCtx, span := observability.StartSpan(providerCtx, "ContentImprover.Improve")
	defer span.End()

	result, err := s.improver.Improve(spanCtx, req)
	if err == nil {
		return result, nil
	}
	observability.RecordError(span, err)

	switch {
	case ctx.Err() != nil:
		return nil, providers.ErrClientGone
	case errors.Is(providerCtx.Err(), context.DeadlineExceeded):
		return nil, apperrors.NewExternalError(msgProviderTimeout, err)
	case errors.Is(err, providers.ErrImproverUnauthorized):
		return nil, apperrors.NewExternalError(msgProviderAuth, err)
	default:
		return nil, apperrors.NewExternalError(msgProviderFailed, err)
	}
}

// fail is the single terminal funnel for a job that already exists: it
// persists the failure and emits exactly one error event.
func (s *ContentImprovementService) fail(ctx context.Context, run *jobRun, cause error) (*entities.ImprovementJob, error) {
	logger := log.Ctx(ctx)
	kind, message := classifyFailure(cause)

	if !run.job.IsTerminal() {
		if err := run.job.Fail(kind, message, s.now()); err != nil {
			logger.Error().Err(err).Msg("failed to mark improvement job failed")
		}
	}

	// The request context may already be cancelled
	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), failPersistTimeout)
	defer cancel()
	if err := s.jobs.Update(persistCtx, run.job); err != nil {
		logger.Error().Err(err).Msg("failed to persist improvement job failure")
	}

	if err := run.emitter.Fail(persistCtx, message); err != nil && !errors.Is(err, providers.ErrClientGone) {
		logger.Warn().Err(err).Msg("error event not delivered")
	}

	s.observe(run, kind)
	logger.Warn().Err(cause).Str("error_kind", string(kind)).Str("step", string(run.job.Step)).Msg("content improvement failed")

	if errors.Is(cause, providers.ErrClientGone) {
		return run.job, apperrors.NewInternalError(message, cause)
	}
	var appErr *apperrors.AppError
	if errors.As(cause, &appErr) {
		return run.job, cause
	}
	return run.job, apperrors.NewInternalError(message, cause)
}

func (s *ContentImprovementService) observe(run *jobRun, kind apperrors.ErrorType) {
	contentType := string(run.job.ContentType)
	status := string(run.job.Status)
	observability.ImprovementJobsTotal.WithLabelValues(contentType, status, string(kind)).Inc()
	observability.ImprovementJobDuration.WithLabelValues(contentType, status).Observe(time.Since(run.start).Seconds())
	if run.job.ImprovementResult != nil {
		observability.ImprovementScoreIncrease.WithLabelValues(contentType).Observe(float64(run.job.ImprovementResult.Score.Increase()))
	}
}

func classifyFailure(err error) (apperrors.ErrorType, string) {
	if errors.Is(err, providers.ErrClientGone) || errors.Is(err, context.Canceled) {
		return apperrors.ErrorTypeInternal, msgDisconnected
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		if appErr.Type == apperrors.ErrorTypeInternal && appErr.Message == "" {
			return appErr.Type, msgUnexpectedFailed
		}
		return appErr.Type, appErr.Message
	}
	return apperrors.ErrorTypeInternal, msgUnexpectedFailed
}

func rateLimitKey(requestedBy string) string {
	if requestedBy == "" {
		return "anonymous"
	}
	return requestedBy
}

// ApplyImprovement writes the improved text of a completed job back to its
// content entity and stamps the job as applied. Applying twice rewrites the
// same value.
func (s *ContentImprovementService) ApplyImprovement(ctx context.Context, jobID string) (*entities.ImprovementJob, error) {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != entities.JobStatusCompleted || job.ImprovedContent == nil {
		return nil, apperrors.NewConflictError(fmt.Sprintf("Yalnızca tamamlanmış iyileştirmeler uygulanabilir (durum: %s)", job.Status))
	}

	patch := entities.ContentPatch{Value: *job.ImprovedContent}
	if job.ImprovementResult != nil {
		score := job.ImprovementResult.Score.After
		patch.QualityScore = &score
	}
	if err := s.content.UpdateField(ctx, job.Ref(), patch); err != nil {
		return nil, err
	}

	if err := job.MarkApplied(s.now()); err != nil {
		return nil, err
	}
	if err := s.jobs.Update(ctx, job); err != nil {
		return nil, err
	}

	log.Ctx(ctx).Info().Str("job_id", job.ID).Str("content_id", job.ContentID).Msg("improvement applied")
	return job, nil
}

// UpdateField is the direct CMS write path. The new value is scored with
// the local analyzer so the stored quality score stays current.
func (s *ContentImprovementService) UpdateField(ctx context.Context, ref entities.ContentRef, value string) (*entities.QualityAnalysis, error) {
	if err := ref.Validate(); err != nil {
		return nil, apperrors.NewValidationError(err.Error())
	}
	if strings.TrimSpace(value) == "" {
		return nil, apperrors.NewValidationError(msgEmptyContent)
	}

	current, err := s.content.Get(ctx, ref)
	if err != nil {
		return nil, err
	}
	analysis := s.analyzer.Analyze(entities.ImproveRequest{
		ContentType: ref.Type,
		Field:       ref.Field,
		Title:       current.Title,
		Text:        value,
	})
	score := analysis.Score

	if err := s.content.UpdateField(ctx, ref, entities.ContentPatch{Value: value, QualityScore: &score}); err != nil {
		return nil, err
	}
	return analysis, nil
}

// GetJob returns one job
func (s *ContentImprovementService) GetJob(ctx context.Context, id string) (*entities.ImprovementJob, error) {
	if id == "" {
		return nil, apperrors.NewValidationError("job id is required")
	}
	return s.jobs.GetByID(ctx, id)
}

// ListJobs returns the newest jobs for one content entity
func (s *ContentImprovementService) ListJobs(ctx context.Context, contentType entities.ContentType, contentID string, limit int) ([]*entities.ImprovementJob, error) {
	if _, err := entities.ParseContentType(string(contentType)); err != nil {
		return nil, apperrors.NewValidationError(err.Error())
	}
	if contentID == "" {
		return nil, apperrors.NewValidationError("content_id is required")
	}
	return s.jobs.ListByContent(ctx, contentType, contentID, limit)
}

func buildComparison(job *entities.ImprovementJob) *entities.ImprovementComparison {
	result := job.ImprovementResult
	before := utils.Analyze(utils.StripHTML(job.OriginalContent)).WordCount()
	after := utils.Analyze(utils.StripHTML(result.ImprovedText)).WordCount()

	return &entities.ImprovementComparison{
		JobID:       job.ID,
		ContentType: job.ContentType,
		ContentID:   job.ContentID,
		Field:       job.Field,
		Original: entities.ContentSnapshot{
			Content:   job.OriginalContent,
			Score:     result.Score.Before,
			WordCount: before,
		},
		Improved: entities.ContentSnapshot{
			Content:   result.ImprovedText,
			Score:     result.Score.After,
			WordCount: after,
		},
		Improvement: entities.ImprovementDelta{
			ScoreIncrease:     result.Score.Increase(),
			WordCountIncrease: after - before,
		},
		Analysis: job.QualityAnalysis,
		Changes:  result.Changes,
	}
}
