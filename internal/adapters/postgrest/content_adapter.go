package postgrest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/karasuemlak/backend/internal/domain/entities"
	"github.com/karasuemlak/backend/internal/domain/repositories"
	"github.com/karasuemlak/backend/internal/infrastructure/clients/postgrest"
	apperrors "github.com/karasuemlak/backend/pkg/errors"
)

// PostgREST codes reported while its schema cache is being reloaded
var schemaCacheCodes = map[string]bool{
	"PGRST002": true, // could not query the database for the schema cache
	"PGRST204": true, // column not found in the schema cache
	"PGRST205": true, // table not found in the schema cache
	"42703":    true,
	"42P01":    true,
}

// ContentAdapter reads and writes CMS rows through Supabase's REST API.
type ContentAdapter struct {
	client *postgrest.Client
	now    func() time.Time
}

// NewContentAdapter creates a new PostgREST content adapter
func NewContentAdapter(client *postgrest.Client) repositories.ContentRepository {
	return &ContentAdapter{client: client, now: time.Now}
}

// Get loads the title and the referenced field of a content entity
func (a *ContentAdapter) Get(ctx context.Context, ref entities.ContentRef) (*entities.ContentEntity, error) {
	if err := ref.Validate(); err != nil {
		return nil, apperrors.NewValidationError(err.Error())
	}

	var rows []map[string]json.RawMessage
	columns := []string{"id", "title", ref.Field, "quality_score", "updated_at"}
	if err := a.client.Select(ctx, ref.Type.Table(), columns, []postgrest.Filter{postgrest.Eq("id", ref.ID)}, &rows); err != nil {
		return nil, classifyError("get "+string(ref.Type), err)
	}
	if len(rows) == 0 {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("%s %s bulunamadı", ref.Type.Label(), ref.ID))
	}

	return decodeEntity(ref, rows[0])
}

func decodeEntity(ref entities.ContentRef, row map[string]json.RawMessage) (*entities.ContentEntity, error) {
	entity := &entities.ContentEntity{Type: ref.Type, ID: ref.ID, Field: ref.Field}

	var (
		title, value *string
		score        *int
		updatedAt    *time.Time
	)
	for column, target := range map[string]interface{}{
		"title":         &title,
		ref.Field:       &value,
		"quality_score": &score,
		"updated_at":    &updatedAt,
	} {
		raw, ok := row[column]
		if !ok {
			return nil, apperrors.NewSchemaStaleError(fmt.Sprintf("column %s missing from response", column), nil)
		}
		if err := json.Unmarshal(raw, target); err != nil {
			return nil, apperrors.NewInternalError(fmt.Sprintf("failed to decode column %s", column), err)
		}
	}

	if title != nil {
		entity.Title = *title
	}
	if value != nil {
		entity.Value = *value
	}
	entity.QualityScore = score
	entity.UpdatedAt = updatedAt
	return entity, nil
}

// UpdateField overwrites the referenced field and, when set, the quality score
func (a *ContentAdapter) UpdateField(ctx context.Context, ref entities.ContentRef, patch entities.ContentPatch) error {
	if err := ref.Validate(); err != nil {
		return apperrors.NewValidationError(err.Error())
	}

	values := map[string]interface{}{
		ref.Field:    patch.Value,
		"updated_at": a.now().UTC().Format(time.RFC3339Nano),
	}
	if patch.QualityScore != nil {
		values["quality_score"] = *patch.QualityScore
	}

	var updated []map[string]json.RawMessage
	if err := a.client.Update(ctx, ref.Type.Table(), values, []postgrest.Filter{postgrest.Eq("id", ref.ID)}, &updated); err != nil {
		return classifyError("update "+string(ref.Type), err)
	}
	if len(updated) == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("%s %s bulunamadı", ref.Type.Label(), ref.ID))
	}
	return nil
}

// classifyError maps REST failures onto the application error taxonomy
func classifyError(op string, err error) error {
	var apiErr *postgrest.APIError
	if errors.As(err, &apiErr) {
		if schemaCacheCodes[apiErr.Code] {
			return apperrors.NewSchemaStaleError(fmt.Sprintf("%s: schema cache is out of date", op), err)
		}
		switch apiErr.Status {
		case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout, http.StatusTooManyRequests:
			return apperrors.NewUnavailableError(fmt.Sprintf("%s: content store unavailable", op), err)
		}
		return apperrors.NewInternalError(op, err)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.NewUnavailableError(fmt.Sprintf("%s: content store timed out", op), err)
	}
	if errors.Is(err, context.Canceled) {
		return apperrors.NewInternalError(op, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return apperrors.NewUnavailableError(fmt.Sprintf("%s: content store unreachable", op), err)
	}

	return apperrors.NewInternalError(op, err)
}
