package improver

import (
	"fmt"

	"github.com/karasuemlak/backend/internal/domain/providers"
	"github.com/karasuemlak/backend/internal/infrastructure/clients/openai"
	"github.com/karasuemlak/backend/pkg/config"
)

// Provider names accepted by IMPROVER_PROVIDER
const (
	ProviderOpenAI = "openai"
	ProviderMock   = "mock"
)

// NewContentImprover builds the improver selected by configuration
func NewContentImprover(cfg *config.Config, analyzer providers.QualityAnalyzer) (*Improver, error) {
	switch cfg.Improvement.Provider {
	case ProviderMock:
		return NewImprover(NewMockRewriter(), analyzer), nil
	case ProviderOpenAI, "":
		client, err := openai.NewClient(&cfg.OpenAI)
		if err != nil {
			return nil, fmt.Errorf("failed to create openai client: %w", err)
		}
		return NewImprover(client, analyzer), nil
	default:
		return nil, fmt.Errorf("unknown improver provider %q", cfg.Improvement.Provider)
	}
}
