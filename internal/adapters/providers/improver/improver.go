package improver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/karasuemlak/backend/internal/domain/entities"
	"github.com/karasuemlak/backend/internal/domain/providers"
)

// Improver turns a TextRewriter into a ContentImprover by scoring the
// original and the rewritten text with the same analyzer.
type Improver struct {
	rewriter providers.TextRewriter
	analyzer providers.QualityAnalyzer
}

// NewImprover creates an improver around a rewriter
func NewImprover(rewriter providers.TextRewriter, analyzer providers.QualityAnalyzer) *Improver {
	return &Improver{rewriter: rewriter, analyzer: analyzer}
}

// Improve rewrites req.Text and reports the before/after score
func (i *Improver) Improve(ctx context.Context, req entities.ImproveRequest) (*entities.ImprovementResult, error) {
	before := req.Analysis
	if before == nil {
		before = i.analyzer.Analyze(req)
		req.Analysis = before
	}

	rewrite, err := i.rewriter.Rewrite(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%s rewrite failed: %w", i.rewriter.Name(), err)
	}
	if rewrite == nil || strings.TrimSpace(rewrite.Text) == "" {
		return nil, errors.New(i.rewriter.Name() + " returned empty text")
	}

	scored := req
	scored.Text = rewrite.Text
	after := i.analyzer.Analyze(scored)

	changes := rewrite.Changes
	if changes == nil {
		changes = []string{}
	}

	return &entities.ImprovementResult{
		Kind:         entities.ImprovementResultKind,
		ImprovedText: rewrite.Text,
		Changes:      changes,
		Score:        entities.ScoreComparison{Before: before.Score, After: after.Score},
		Provider:     i.rewriter.Name(),
		Model:        i.rewriter.Model(),
	}, nil
}

// Close releases rewriter resources when it holds any
func (i *Improver) Close() {
	if c, ok := i.rewriter.(interface{ Close() }); ok {
		c.Close()
	}
}
