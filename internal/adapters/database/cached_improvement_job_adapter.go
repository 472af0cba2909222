package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/karasuemlak/backend/internal/domain/entities"
	"github.com/karasuemlak/backend/internal/domain/providers"
	"github.com/karasuemlak/backend/internal/domain/repositories"
)

// CachedImprovementJobAdapter puts a read-through cache in front of job
// lookups so dashboards polling a job do not hit Postgres every second.
type CachedImprovementJobAdapter struct {
	adapter repositories.ImprovementJobRepository
	cache   providers.CacheProvider
}

// NewCachedImprovementJobAdapter creates a new cached job adapter
func NewCachedImprovementJobAdapter(adapter repositories.ImprovementJobRepository, cache providers.CacheProvider) repositories.ImprovementJobRepository {
	return &CachedImprovementJobAdapter{
		adapter: adapter,
		cache:   cache,
	}
}

// Cache TTLs (in seconds)
const (
	runningJobTTL  = 2   // progress changes every few seconds
	terminalJobTTL = 600 // completed/failed jobs only change when applied
)

func improvementJobCacheKey(id string) string {
	return fmt.Sprintf("improvement_job:%s", id)
}

// Create inserts a job; nothing is cached until it is read
func (a *CachedImprovementJobAdapter) Create(ctx context.Context, job *entities.ImprovementJob) error {
	return a.adapter.Create(ctx, job)
}

// Update writes through and invalidates the cached copy
func (a *CachedImprovementJobAdapter) Update(ctx context.Context, job *entities.ImprovementJob) error {
	if err := a.adapter.Update(ctx, job); err != nil {
		return err
	}
	if err := a.cache.Delete(ctx, improvementJobCacheKey(job.ID)); err != nil {
		log.Warn().Err(err).Str("job_id", job.ID).Msg("failed to invalidate cached improvement job")
	}
	return nil
}

// GetByID retrieves a job with caching
func (a *CachedImprovementJobAdapter) GetByID(ctx context.Context, id string) (*entities.ImprovementJob, error) {
	cacheKey := improvementJobCacheKey(id)

	if cached, err := a.cache.Get(ctx, cacheKey); err == nil {
		var job entities.ImprovementJob
		if err := json.Unmarshal(cached, &job); err == nil {
			return &job, nil
		}
		log.Warn().Err(err).Str("job_id", id).Msg("failed to unmarshal cached improvement job")
	} else if !errors.Is(err, providers.ErrCacheMiss) {
		log.Warn().Err(err).Str("job_id", id).Msg("improvement job cache unavailable")
	}

	job, err := a.adapter.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	ttl := runningJobTTL
	if job.IsTerminal() {
		ttl = terminalJobTTL
	}
	if data, err := json.Marshal(job); err == nil {
		if err := a.cache.Set(ctx, cacheKey, data, ttl); err != nil {
			log.Warn().Err(err).Str("job_id", id).Msg("failed to cache improvement job")
		}
	}

	return job, nil
}

// ListByContent is not cached; history views are rare
func (a *CachedImprovementJobAdapter) ListByContent(ctx context.Context, contentType entities.ContentType, contentID string, limit int) ([]*entities.ImprovementJob, error) {
	return a.adapter.ListByContent(ctx, contentType, contentID, limit)
}
