package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"

	"github.com/karasuemlak/backend/internal/domain/entities"
	"github.com/karasuemlak/backend/internal/domain/repositories"
	"github.com/karasuemlak/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/karasuemlak/backend/pkg/errors"
	"github.com/karasuemlak/backend/pkg/schema"
)

const improvementJobsTable = "content_improvement_jobs"

var improvementJobColumns = []interface{}{
	"id", "content_type", "content_id", "field", "status", "step", "progress",
	"progress_message", "original_content", "improved_content", "quality_analysis",
	"improvement_result", "error_kind", "error_message", "requested_by",
	"started_at", "updated_at", "completed_at", "applied_at",
}

// ImprovementJobAdapter implements ImprovementJobRepository in Postgres.
// JSON columns are validated on the way in and on the way out.
type ImprovementJobAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewImprovementJobAdapter creates a new improvement job adapter
func NewImprovementJobAdapter(client *postgres.Client) repositories.ImprovementJobRepository {
	return &ImprovementJobAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

type improvementJobRow struct {
	entities.ImprovementJob
	QualityAnalysis   []byte `db:"quality_analysis"`
	ImprovementResult []byte `db:"improvement_result"`
}

func (r *improvementJobRow) toEntity() (*entities.ImprovementJob, error) {
	job := r.ImprovementJob
	if len(r.QualityAnalysis) > 0 {
		var analysis entities.QualityAnalysis
		if err := schema.QualityAnalysis.UnmarshalValid(r.QualityAnalysis, &analysis); err != nil {
			return nil, apperrors.NewInternalError(fmt.Sprintf("stored quality analysis of job %s is invalid", job.ID), err)
		}
		job.QualityAnalysis = &analysis
	}
	if len(r.ImprovementResult) > 0 {
		var result entities.ImprovementResult
		if err := schema.ImprovementResult.UnmarshalValid(r.ImprovementResult, &result); err != nil {
			return nil, apperrors.NewInternalError(fmt.Sprintf("stored improvement result of job %s is invalid", job.ID), err)
		}
		job.ImprovementResult = &result
	}
	return &job, nil
}

func jsonColumn(v *schema.Validator, value interface{}, isNil bool) (sql.NullString, error) {
	if isNil {
		return sql.NullString{}, nil
	}
	data, err := v.MarshalValid(value)
	if err != nil {
		return sql.NullString{}, apperrors.NewValidationError(err.Error())
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func jobRecord(job *entities.ImprovementJob) (goqu.Record, error) {
	analysis, err := jsonColumn(schema.QualityAnalysis, job.QualityAnalysis, job.QualityAnalysis == nil)
	if err != nil {
		return nil, err
	}
	result, err := jsonColumn(schema.ImprovementResult, job.ImprovementResult, job.ImprovementResult == nil)
	if err != nil {
		return nil, err
	}

	return goqu.Record{
		"status":             job.Status,
		"step":               job.Step,
		"progress":           job.Progress,
		"progress_message":   job.ProgressMessage,
		"original_content":   job.OriginalContent,
		"improved_content":   job.ImprovedContent,
		"quality_analysis":   analysis,
		"improvement_result": result,
		"error_kind":         job.ErrorKind,
		"error_message":      job.ErrorMessage,
		"updated_at":         job.UpdatedAt,
		"completed_at":       job.CompletedAt,
		"applied_at":         job.AppliedAt,
	}, nil
}

// Create inserts a new job
func (a *ImprovementJobAdapter) Create(ctx context.Context, job *entities.ImprovementJob) error {
	if job == nil {
		return apperrors.NewValidationError("job is required")
	}

	record, err := jobRecord(job)
	if err != nil {
		return err
	}
	record["id"] = job.ID
	record["content_type"] = job.ContentType
	record["content_id"] = job.ContentID
	record["field"] = job.Field
	record["requested_by"] = job.RequestedBy
	record["started_at"] = job.StartedAt

	query, args, err := a.db.Insert(improvementJobsTable).Prepared(true).Rows(record).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build job insert query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return classifyError("create improvement job", err)
	}
	return nil
}

// Update replaces the mutable columns of an existing job
func (a *ImprovementJobAdapter) Update(ctx context.Context, job *entities.ImprovementJob) error {
	if job == nil {
		return apperrors.NewValidationError("job is required")
	}

	record, err := jobRecord(job)
	if err != nil {
		return err
	}

	query, args, err := a.db.Update(improvementJobsTable).Prepared(true).
		Set(record).
		Where(goqu.Ex{"id": job.ID}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build job update query", err)
	}

	res, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return classifyError("update improvement job", err)
	}
	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("improvement job %s not found", job.ID))
	}
	return nil
}

// GetByID retrieves a job by ID
func (a *ImprovementJobAdapter) GetByID(ctx context.Context, id string) (*entities.ImprovementJob, error) {
	query, args, err := a.db.From(improvementJobsTable).Prepared(true).
		Select(improvementJobColumns...).
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build job query", err)
	}

	var row improvementJobRow
	if err := a.client.X().GetContext(ctx, &row, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return nil, apperrors.NewNotFoundError(fmt.Sprintf("improvement job %s not found", id))
		}
		return nil, classifyError("get improvement job", err)
	}
	return row.toEntity()
}

// ListByContent returns the newest jobs for one content entity first
func (a *ImprovementJobAdapter) ListByContent(ctx context.Context, contentType entities.ContentType, contentID string, limit int) ([]*entities.ImprovementJob, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	query, args, err := a.db.From(improvementJobsTable).Prepared(true).
		Select(improvementJobColumns...).
		Where(goqu.Ex{"content_type": contentType, "content_id": contentID}).
		Order(goqu.I("started_at").Desc()).
		Limit(uint(limit)).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build job list query", err)
	}

	var rows []improvementJobRow
	if err := a.client.X().SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, classifyError("list improvement jobs", err)
	}

	jobs := make([]*entities.ImprovementJob, 0, len(rows))
	for i := range rows {
		job, err := rows[i].toEntity()
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}
