package repositories

import (
	"context"

	"github.com/karasuemlak/backend/internal/domain/entities"
)

// ContentRepository reads and writes the CMS rows the pipeline improves.
// Implementations classify failures at the boundary: SCHEMA_STALE and
// UNAVAILABLE for transient store conditions, NOT_FOUND for missing rows.
type ContentRepository interface {
	// Get loads the title and the referenced field of a content entity
	Get(ctx context.Context, ref entities.ContentRef) (*entities.ContentEntity, error)

	// UpdateField overwrites the referenced field and, when set, the quality score
	UpdateField(ctx context.Context, ref entities.ContentRef, patch entities.ContentPatch) error
}
