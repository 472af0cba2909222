package providers

import (
	"context"
	"errors"

	"github.com/karasuemlak/backend/internal/domain/entities"
)

// ErrImproverUnauthorized is returned when the provider rejects our credentials
var ErrImproverUnauthorized = errors.New("content improver unauthorized")

// ContentImprover rewrites text and reports the before/after quality score
type ContentImprover interface {
	Improve(ctx context.Context, req entities.ImproveRequest) (*entities.ImprovementResult, error)
}

// TextRewriter is the raw LLM call behind a ContentImprover
type TextRewriter interface {
	Rewrite(ctx context.Context, req entities.ImproveRequest) (*RewriteResult, error)
	Name() string
	Model() string
}

// RewriteResult is the unscored output of a TextRewriter
type RewriteResult struct {
	Text    string   `json:"improved_text"`
	Changes []string `json:"changes"`
}

// QualityAnalyzer scores req.Text in the context of its title and field.
// It never fails.
type QualityAnalyzer interface {
	Analyze(req entities.ImproveRequest) *entities.QualityAnalysis
}
