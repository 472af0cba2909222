package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"

	"github.com/karasuemlak/backend/internal/domain/entities"
	"github.com/karasuemlak/backend/internal/domain/repositories"
	"github.com/karasuemlak/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/karasuemlak/backend/pkg/errors"
)

// ContentAdapter reads and writes listings, articles and news directly in
// Postgres. It is used when CONTENT_STORE=postgres.
type ContentAdapter struct {
	client *postgres.Client
	db     *goqu.Database
	now    func() time.Time
}

// NewContentAdapter creates a new content adapter
func NewContentAdapter(client *postgres.Client) repositories.ContentRepository {
	return &ContentAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
		now:    time.Now,
	}
}

// Get loads the title and the referenced field of a content entity
func (a *ContentAdapter) Get(ctx context.Context, ref entities.ContentRef) (*entities.ContentEntity, error) {
	if err := ref.Validate(); err != nil {
		return nil, apperrors.NewValidationError(err.Error())
	}

	query, args, err := a.db.From(ref.Type.Table()).Prepared(true).
		Select(
			goqu.C("id"),
			goqu.C("title"),
			goqu.C(ref.Field),
			goqu.C("quality_score"),
			goqu.C("updated_at"),
		).
		Where(goqu.Ex{"id": ref.ID}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build content query", err)
	}

	var (
		title, value sql.NullString
		score        sql.NullInt64
		updatedAt    sql.NullTime
	)
	entity := &entities.ContentEntity{Type: ref.Type, Field: ref.Field}

	err = a.client.DB().QueryRowContext(ctx, query, args...).Scan(&entity.ID, &title, &value, &score, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("%s %s bulunamadı", ref.Type.Label(), ref.ID))
	}
	if err != nil {
		return nil, classifyError("get "+string(ref.Type), err)
	}

	entity.Title = title.String
	entity.Value = value.String
	if score.Valid {
		s := int(score.Int64)
		entity.QualityScore = &s
	}
	if updatedAt.Valid {
		t := updatedAt.Time
		entity.UpdatedAt = &t
	}
	return entity, nil
}

// UpdateField overwrites the referenced field and, when set, the quality score
func (a *ContentAdapter) UpdateField(ctx context.Context, ref entities.ContentRef, patch entities.ContentPatch) error {
	if err := ref.Validate(); err != nil {
		return apperrors.NewValidationError(err.Error())
	}

	record := goqu.Record{
		ref.Field:    patch.Value,
		"updated_at": a.now().UTC(),
	}
	if patch.QualityScore != nil {
		record["quality_score"] = *patch.QualityScore
	}

	query, args, err := a.db.Update(ref.Type.Table()).Prepared(true).
		Set(record).
		Where(goqu.Ex{"id": ref.ID}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build content update query", err)
	}

	res, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return classifyError("update "+string(ref.Type), err)
	}
	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("%s %s bulunamadı", ref.Type.Label(), ref.ID))
	}
	return nil
}
