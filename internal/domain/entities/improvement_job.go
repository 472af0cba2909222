package entities

import (
	"fmt"
	"time"

	apperrors "github.com/karasuemlak/backend/pkg/errors"
)

// JobStatus is the coarse lifecycle state of an improvement job
type JobStatus string

const (
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// JobStep is the pipeline step the job last entered
type JobStep string

const (
	JobStepInitializing JobStep = "initializing"
	JobStepFetching     JobStep = "fetching"
	JobStepAnalyzing    JobStep = "analyzing"
	JobStepImproving    JobStep = "improving"
	JobStepSaving       JobStep = "saving"
	JobStepCompleted    JobStep = "completed"
	JobStepFailed       JobStep = "failed"
)

// ImprovementJob records one attempt to improve a content field end to end
type ImprovementJob struct {
	ID                string             `json:"id" db:"id"`
	ContentType       ContentType        `json:"content_type" db:"content_type"`
	ContentID         string             `json:"content_id" db:"content_id"`
	Field             string             `json:"field" db:"field"`
	Status            JobStatus          `json:"status" db:"status"`
	Step              JobStep            `json:"step" db:"step"`
	Progress          int                `json:"progress" db:"progress"`
	ProgressMessage   string             `json:"progress_message" db:"progress_message"`
	OriginalContent   string             `json:"original_content" db:"original_content"`
	ImprovedContent   *string            `json:"improved_content,omitempty" db:"improved_content"`
	QualityAnalysis   *QualityAnalysis   `json:"quality_analysis,omitempty" db:"-"`
	ImprovementResult *ImprovementResult `json:"improvement_result,omitempty" db:"-"`
	ErrorKind         *string            `json:"error_kind,omitempty" db:"error_kind"`
	ErrorMessage      *string            `json:"error_message,omitempty" db:"error_message"`
	RequestedBy       *string            `json:"requested_by,omitempty" db:"requested_by"`
	StartedAt         time.Time          `json:"started_at" db:"started_at"`
	UpdatedAt         time.Time          `json:"updated_at" db:"updated_at"`
	CompletedAt       *time.Time         `json:"completed_at,omitempty" db:"completed_at"`
	AppliedAt         *time.Time         `json:"applied_at,omitempty" db:"applied_at"`
}

// NewImprovementJob creates a job in the processing state at 0%
func NewImprovementJob(id string, ref ContentRef, requestedBy string, now time.Time) *ImprovementJob {
	job := &ImprovementJob{
		ID:              id,
		ContentType:     ref.Type,
		ContentID:       ref.ID,
		Field:           ref.Field,
		Status:          JobStatusProcessing,
		Step:            JobStepInitializing,
		Progress:        0,
		ProgressMessage: "İyileştirme başlatılıyor",
		StartedAt:       now,
		UpdatedAt:       now,
	}
	if requestedBy != "" {
		job.RequestedBy = &requestedBy
	}
	return job
}

// Ref returns the content reference the job targets
func (j *ImprovementJob) Ref() ContentRef {
	return ContentRef{Type: j.ContentType, ID: j.ContentID, Field: j.Field}
}

// IsTerminal reports whether the job already completed or failed
func (j *ImprovementJob) IsTerminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}

// Advance moves a processing job to the given step. Progress may not go back.
func (j *ImprovementJob) Advance(step JobStep, progress int, message string, now time.Time) error {
	if j.IsTerminal() {
		return apperrors.NewConflictError(fmt.Sprintf("job %s is already %s", j.ID, j.Status))
	}
	if progress < j.Progress || progress > 100 {
		return apperrors.NewValidationError(fmt.Sprintf("progress %d is not between %d and 100", progress, j.Progress))
	}
	j.Step = step
	j.Progress = progress
	j.ProgressMessage = message
	j.UpdatedAt = now
	return nil
}

// Complete finishes the job with the improved text and its analysis
func (j *ImprovementJob) Complete(result *ImprovementResult, message string, now time.Time) error {
	if j.IsTerminal() {
		return apperrors.NewConflictError(fmt.Sprintf("job %s is already %s", j.ID, j.Status))
	}
	if result == nil || result.ImprovedText == "" {
		return apperrors.NewValidationError("completed jobs require improved content")
	}
	if j.QualityAnalysis == nil {
		return apperrors.NewValidationError("completed jobs require a quality analysis")
	}
	improved := result.ImprovedText
	j.ImprovedContent = &improved
	j.ImprovementResult = result
	j.Status = JobStatusCompleted
	j.Step = JobStepCompleted
	j.Progress = 100
	j.ProgressMessage = message
	j.UpdatedAt = now
	j.CompletedAt = &now
	return nil
}

// Fail moves the job to the failed state with a non-empty message
func (j *ImprovementJob) Fail(kind apperrors.ErrorType, message string, now time.Time) error {
	if j.IsTerminal() {
		return apperrors.NewConflictError(fmt.Sprintf("job %s is already %s", j.ID, j.Status))
	}
	if message == "" {
		message = "Bilinmeyen hata"
	}
	k := string(kind)
	j.ErrorKind = &k
	j.ErrorMessage = &message
	j.Status = JobStatusFailed
	j.Step = JobStepFailed
	j.ProgressMessage = message
	j.UpdatedAt = now
	j.CompletedAt = &now
	return nil
}

// MarkApplied stamps the moment the improved text was written back
func (j *ImprovementJob) MarkApplied(now time.Time) error {
	if j.Status != JobStatusCompleted {
		return apperrors.NewConflictError(fmt.Sprintf("job %s is %s, only completed jobs can be applied", j.ID, j.Status))
	}
	j.AppliedAt = &now
	j.UpdatedAt = now
	return nil
}
