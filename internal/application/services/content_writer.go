package services

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/karasuemlak/backend/internal/domain/entities"
	"github.com/karasuemlak/backend/internal/domain/repositories"
	"github.com/karasuemlak/backend/internal/infrastructure/observability"
	apperrors "github.com/karasuemlak/backend/pkg/errors"
	"github.com/karasuemlak/backend/pkg/retry"
)

const storeUnavailableMessage = "İçerik deposuna şu anda ulaşılamıyor, lütfen birkaç saniye sonra tekrar deneyin"

// RetryingContentWriter retries content store calls that failed with a
// transient condition (SCHEMA_STALE or UNAVAILABLE). Every other error is
// returned after the first attempt.
type RetryingContentWriter struct {
	repo repositories.ContentRepository
	cfg  retry.Config
}

// NewRetryingContentWriter wraps repo with the given retry policy
func NewRetryingContentWriter(repo repositories.ContentRepository, cfg retry.Config) *RetryingContentWriter {
	return &RetryingContentWriter{repo: repo, cfg: cfg}
}

// Get reads a content entity, retrying transient failures
func (w *RetryingContentWriter) Get(ctx context.Context, ref entities.ContentRef) (*entities.ContentEntity, error) {
	var entity *entities.ContentEntity
	err := w.do(ctx, ref, "get", func() error {
		var err error
		entity, err = w.repo.Get(ctx, ref)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entity, nil
}

// UpdateField writes one field, retrying transient failures
func (w *RetryingContentWriter) UpdateField(ctx context.Context, ref entities.ContentRef, patch entities.ContentPatch) error {
	return w.do(ctx, ref, "update", func() error {
		return w.repo.UpdateField(ctx, ref, patch)
	})
}

func (w *RetryingContentWriter) do(ctx context.Context, ref entities.ContentRef, op string, fn func() error) error {
	contentType := string(ref.Type)

	err := retry.DoWithLogIf(ctx, w.cfg, apperrors.IsTransient, fn, func(attempt int, err error, nextDelay time.Duration) {
		observability.ContentStoreRetriesTotal.WithLabelValues(contentType, string(apperrors.TypeOf(err))).Inc()
		log.Warn().
			Err(err).
			Str("op", op).
			Str("content_type", contentType).
			Str("content_id", ref.ID).
			Int("attempt", attempt).
			Dur("next_delay", nextDelay).
			Msg("content store call failed, retrying")
	})

	switch {
	case err == nil:
		observability.ContentStoreWritesTotal.WithLabelValues(contentType, "success").Inc()
		return nil
	case apperrors.IsTransient(err):
		observability.ContentStoreWritesTotal.WithLabelValues(contentType, "exhausted").Inc()
		log.Error().Err(err).Str("op", op).Str("content_type", contentType).Str("content_id", ref.ID).Msg("content store stayed unavailable")
		return apperrors.NewUnavailableError(storeUnavailableMessage, err)
	default:
		observability.ContentStoreWritesTotal.WithLabelValues(contentType, "failed").Inc()
		return err
	}
}
