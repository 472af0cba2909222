package entities_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karasuemlak/backend/internal/domain/entities"
	apperrors "github.com/karasuemlak/backend/pkg/errors"
)

func newJob() *entities.ImprovementJob {
	ref := entities.ContentRef{Type: entities.ContentTypeListing, ID: "lst-1", Field: "description"}
	return entities.NewImprovementJob("job-1", ref, "admin-1", time.Now())
}

func TestNewImprovementJob(t *testing.T) {
	job := newJob()

	assert.Equal(t, entities.JobStatusProcessing, job.Status)
	assert.Equal(t, entities.JobStepInitializing, job.Step)
	assert.Equal(t, 0, job.Progress)
	require.NotNil(t, job.RequestedBy)
	assert.Equal(t, "admin-1", *job.RequestedBy)
	assert.Nil(t, job.ImprovedContent)
}

func TestImprovementJob_AdvanceIsMonotonic(t *testing.T) {
	job := newJob()

	require.NoError(t, job.Advance(entities.JobStepFetching, 10, "fetch", time.Now()))
	require.NoError(t, job.Advance(entities.JobStepAnalyzing, 30, "analyze", time.Now()))

	err := job.Advance(entities.JobStepFetching, 20, "back", time.Now())
	assert.True(t, apperrors.Is(err, apperrors.ErrorTypeValidation))
	assert.Equal(t, 30, job.Progress)
	assert.Equal(t, entities.JobStepAnalyzing, job.Step)

	assert.Error(t, job.Advance(entities.JobStepSaving, 101, "too far", time.Now()))
}

func TestImprovementJob_CompleteRequiresPayloads(t *testing.T) {
	job := newJob()

	err := job.Complete(&entities.ImprovementResult{ImprovedText: "uzun metin"}, "done", time.Now())
	assert.True(t, apperrors.Is(err, apperrors.ErrorTypeValidation), "analysis is required")

	job.QualityAnalysis = &entities.QualityAnalysis{Score: 40}
	err = job.Complete(&entities.ImprovementResult{}, "done", time.Now())
	assert.True(t, apperrors.Is(err, apperrors.ErrorTypeValidation), "improved text is required")

	require.NoError(t, job.Complete(&entities.ImprovementResult{ImprovedText: "uzun metin"}, "done", time.Now()))
	assert.Equal(t, entities.JobStatusCompleted, job.Status)
	assert.Equal(t, 100, job.Progress)
	require.NotNil(t, job.ImprovedContent)
	assert.Equal(t, "uzun metin", *job.ImprovedContent)
	assert.NotNil(t, job.CompletedAt)
}

func TestImprovementJob_TerminalTransitionHappensOnce(t *testing.T) {
	job := newJob()
	require.NoError(t, job.Fail(apperrors.ErrorTypeExternal, "sağlayıcı hatası", time.Now()))

	err := job.Fail(apperrors.ErrorTypeInternal, "again", time.Now())
	assert.True(t, apperrors.Is(err, apperrors.ErrorTypeConflict))

	job.QualityAnalysis = &entities.QualityAnalysis{}
	err = job.Complete(&entities.ImprovementResult{ImprovedText: "x"}, "done", time.Now())
	assert.True(t, apperrors.Is(err, apperrors.ErrorTypeConflict))

	assert.Equal(t, entities.JobStatusFailed, job.Status)
	require.NotNil(t, job.ErrorMessage)
	assert.Equal(t, "sağlayıcı hatası", *job.ErrorMessage)
	require.NotNil(t, job.ErrorKind)
	assert.Equal(t, "EXTERNAL", *job.ErrorKind)
	assert.Nil(t, job.ImprovedContent)
}

func TestImprovementJob_FailAlwaysHasMessage(t *testing.T) {
	job := newJob()
	require.NoError(t, job.Fail(apperrors.ErrorTypeInternal, "", time.Now()))
	require.NotNil(t, job.ErrorMessage)
	assert.NotEmpty(t, *job.ErrorMessage)
}

func TestImprovementJob_MarkApplied(t *testing.T) {
	job := newJob()
	assert.Error(t, job.MarkApplied(time.Now()))

	job.QualityAnalysis = &entities.QualityAnalysis{}
	require.NoError(t, job.Complete(&entities.ImprovementResult{ImprovedText: "x"}, "done", time.Now()))
	require.NoError(t, job.MarkApplied(time.Now()))
	assert.NotNil(t, job.AppliedAt)
}

func TestContentRef_Validate(t *testing.T) {
	tests := []struct {
		name    string
		ref     entities.ContentRef
		wantErr bool
	}{
		{name: "listing description", ref: entities.ContentRef{Type: entities.ContentTypeListing, ID: "1", Field: "description"}},
		{name: "article excerpt", ref: entities.ContentRef{Type: entities.ContentTypeArticle, ID: "1", Field: "excerpt"}},
		{name: "news summary", ref: entities.ContentRef{Type: entities.ContentTypeNews, ID: "1", Field: "summary"}},
		{name: "listing title not allowed", ref: entities.ContentRef{Type: entities.ContentTypeListing, ID: "1", Field: "title"}, wantErr: true},
		{name: "missing id", ref: entities.ContentRef{Type: entities.ContentTypeNews, Field: "content"}, wantErr: true},
		{name: "unknown type", ref: entities.ContentRef{Type: "page", ID: "1", Field: "content"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.ref.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestContentType_Table(t *testing.T) {
	assert.Equal(t, "listings", entities.ContentTypeListing.Table())
	assert.Equal(t, "articles", entities.ContentTypeArticle.Table())
	assert.Equal(t, "news_articles", entities.ContentTypeNews.Table())

	ct, err := entities.ParseContentType("news")
	require.NoError(t, err)
	assert.Equal(t, entities.ContentTypeNews, ct)

	_, err = entities.ParseContentType("blog")
	assert.Error(t, err)
}
