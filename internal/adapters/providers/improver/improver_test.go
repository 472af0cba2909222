package improver

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/karasuemlak/backend/internal/application/quality"
	"github.com/karasuemlak/backend/internal/domain/entities"
	"github.com/karasuemlak/backend/internal/domain/providers"
	"github.com/karasuemlak/backend/pkg/config"
	"github.com/karasuemlak/backend/pkg/schema"
)

type MockTextRewriter struct {
	mock.Mock
}

func (m *MockTextRewriter) Rewrite(ctx context.Context, req entities.ImproveRequest) (*providers.RewriteResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*providers.RewriteResult), args.Error(1)
}

func (m *MockTextRewriter) Name() string  { return "stub" }
func (m *MockTextRewriter) Model() string { return "stub-1" }

func listingRequest() entities.ImproveRequest {
	return entities.ImproveRequest{
		ContentType: entities.ContentTypeListing,
		Field:       "description",
		Title:       "Test İlan",
		Text:        "Kısa açıklama.",
	}
}

func TestImprover_ScoresBeforeAndAfter(t *testing.T) {
	analyzer := quality.NewAnalyzer(quality.DefaultRules())
	rewriter := new(MockTextRewriter)
	improved := "Test İlan kapsamında sunulan daire, Karasu sahiline yakın konumuyla öne çıkıyor.\n\nDetaylı bilgi için bizi arayın."
	rewriter.On("Rewrite", mock.Anything, mock.MatchedBy(func(req entities.ImproveRequest) bool {
		return req.Analysis != nil && req.Text == "Kısa açıklama."
	})).Return(&providers.RewriteResult{Text: improved}, nil)

	result, err := NewImprover(rewriter, analyzer).Improve(context.Background(), listingRequest())
	require.NoError(t, err)

	assert.Equal(t, entities.ImprovementResultKind, result.Kind)
	assert.Equal(t, improved, result.ImprovedText)
	assert.NotNil(t, result.Changes)
	assert.Equal(t, "stub", result.Provider)
	assert.Equal(t, "stub-1", result.Model)
	assert.Equal(t, 50, result.Score.Before)
	assert.Greater(t, result.Score.After, result.Score.Before)
	require.NoError(t, schema.ImprovementResult.Validate(result))
	rewriter.AssertExpectations(t)
}

func TestImprover_ReusesProvidedAnalysis(t *testing.T) {
	analyzer := quality.NewAnalyzer(quality.DefaultRules())
	rewriter := new(MockTextRewriter)
	rewriter.On("Rewrite", mock.Anything, mock.Anything).Return(&providers.RewriteResult{Text: "Yeni metin."}, nil)

	req := listingRequest()
	req.Analysis = &entities.QualityAnalysis{Score: 12}

	result, err := NewImprover(rewriter, analyzer).Improve(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 12, result.Score.Before)
}

func TestImprover_RewriterErrors(t *testing.T) {
	analyzer := quality.NewAnalyzer(quality.DefaultRules())

	t.Run("error is wrapped", func(t *testing.T) {
		rewriter := new(MockTextRewriter)
		rewriter.On("Rewrite", mock.Anything, mock.Anything).Return(nil, providers.ErrImproverUnauthorized)

		_, err := NewImprover(rewriter, analyzer).Improve(context.Background(), listingRequest())
		require.Error(t, err)
		assert.True(t, errors.Is(err, providers.ErrImproverUnauthorized))
	})

	t.Run("empty text", func(t *testing.T) {
		rewriter := new(MockTextRewriter)
		rewriter.On("Rewrite", mock.Anything, mock.Anything).Return(&providers.RewriteResult{Text: "  "}, nil)

		_, err := NewImprover(rewriter, analyzer).Improve(context.Background(), listingRequest())
		assert.Error(t, err)
	})
}

func TestMockRewriter_ImprovesShortListing(t *testing.T) {
	analyzer := quality.NewAnalyzer(quality.DefaultRules())
	improver := NewImprover(NewMockRewriter(), analyzer)

	result, err := improver.Improve(context.Background(), listingRequest())
	require.NoError(t, err)

	assert.Greater(t, len(result.ImprovedText), len("Kısa açıklama."))
	assert.Contains(t, result.ImprovedText, "Kısa açıklama.")
	assert.Greater(t, result.Score.After, result.Score.Before)
	assert.Equal(t, "mock", result.Provider)
}

func TestMockRewriter_HonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewMockRewriter().Rewrite(ctx, listingRequest())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewContentImprover(t *testing.T) {
	analyzer := quality.NewAnalyzer(quality.DefaultRules())

	t.Run("mock", func(t *testing.T) {
		imp, err := NewContentImprover(&config.Config{Improvement: config.ImprovementConfig{Provider: ProviderMock}}, analyzer)
		require.NoError(t, err)
		assert.NotNil(t, imp)
	})

	t.Run("openai without key", func(t *testing.T) {
		_, err := NewContentImprover(&config.Config{Improvement: config.ImprovementConfig{Provider: ProviderOpenAI}}, analyzer)
		assert.Error(t, err)
	})

	t.Run("openai", func(t *testing.T) {
		imp, err := NewContentImprover(&config.Config{
			Improvement: config.ImprovementConfig{Provider: ProviderOpenAI},
			OpenAI:      config.OpenAIConfig{APIKey: "sk-test", RateLimitRPM: -1},
		}, analyzer)
		require.NoError(t, err)
		imp.Close()
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := NewContentImprover(&config.Config{Improvement: config.ImprovementConfig{Provider: "claude"}}, analyzer)
		assert.Error(t, err)
	})
}
