package repositories

import (
	"context"

	"github.com/karasuemlak/backend/internal/domain/entities"
)

// ImprovementJobRepository persists improvement job records
type ImprovementJobRepository interface {
	// Create inserts a new job
	Create(ctx context.Context, job *entities.ImprovementJob) error

	// Update replaces the mutable columns of an existing job
	Update(ctx context.Context, job *entities.ImprovementJob) error

	// GetByID retrieves a job by ID
	GetByID(ctx context.Context, id string) (*entities.ImprovementJob, error)

	// ListByContent returns the newest jobs for one content entity first
	ListByContent(ctx context.Context, contentType entities.ContentType, contentID string, limit int) ([]*entities.ImprovementJob, error)
}
