package quality

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// FieldTarget is the expected length window of one content field
type FieldTarget struct {
	MinWords int `yaml:"minWords"`
	MaxWords int `yaml:"maxWords"`
	// LongForm fields are expected to be split into paragraphs
	LongForm bool `yaml:"longForm"`
}

// Rules drive the analyzer. Every list is matched case-insensitively
// using Turkish casing.
type Rules struct {
	// Targets is keyed by "<content_type>.<field>"
	Targets              map[string]FieldTarget `yaml:"targets"`
	MaxAvgSentenceLength float64                `yaml:"maxAvgSentenceLength"`
	MaxShoutingRatio     float64                `yaml:"maxShoutingRatio"`
	MaxExclamations      int                    `yaml:"maxExclamations"`
	CallToActionPhrases  []string               `yaml:"callToActionPhrases"`
	FillerPhrases        []string               `yaml:"fillerPhrases"`
	LocationKeywords     []string               `yaml:"locationKeywords"`
	StopWords            []string               `yaml:"stopWords"`
	Penalties            Penalties              `yaml:"penalties"`
}

// Penalties are the points deducted per issue severity
type Penalties struct {
	Critical int `yaml:"critical"`
	Warning  int `yaml:"warning"`
	Info     int `yaml:"info"`
}

// DefaultRules returns the built-in rule set tuned for Karasu listings and
// editorial content.
func DefaultRules() Rules {
	return Rules{
		Targets: map[string]FieldTarget{
			"listing.description":      {MinWords: 80, MaxWords: 600, LongForm: true},
			"article.content":          {MinWords: 300, MaxWords: 3000, LongForm: true},
			"article.excerpt":          {MinWords: 20, MaxWords: 60},
			"article.meta_description": {MinWords: 12, MaxWords: 30},
			"news.content":             {MinWords: 150, MaxWords: 1500, LongForm: true},
			"news.summary":             {MinWords: 20, MaxWords: 80},
		},
		MaxAvgSentenceLength: 25,
		MaxShoutingRatio:     0.2,
		MaxExclamations:      3,
		CallToActionPhrases: []string{
			"iletişime geç", "bizi arayın", "hemen arayın", "arayabilirsiniz",
			"bilgi almak için", "detaylı bilgi", "randevu", "ziyaret edin", "mesaj atın",
		},
		FillerPhrases: []string{
			"kaçırılmayacak fırsat", "kaçırmayın", "muhteşem", "eşsiz", "harika fırsat",
			"son derece", "çok çok", "acil acil",
		},
		LocationKeywords: []string{
			"karasu", "sakarya", "mahalle", "sahil", "deniz", "merkez", "kocaali", "adapazarı",
		},
		StopWords: []string{
			"ve", "ile", "bir", "için", "satılık", "kiralık", "olan", "çok", "daha", "gibi",
		},
		Penalties: Penalties{Critical: 30, Warning: 12, Info: 4},
	}
}

// Target returns the length window for a field, falling back to a generic
// long-form target
func (r Rules) Target(contentType, field string) FieldTarget {
	if t, ok := r.Targets[contentType+"."+field]; ok {
		return t
	}
	return FieldTarget{MinWords: 50, LongForm: true}
}

// LoadRules reads a YAML rules file on top of the defaults. Keys absent from
// the file keep their default values.
func LoadRules(path string) (Rules, error) {
	rules := DefaultRules()
	if path == "" {
		return rules, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return rules, fmt.Errorf("failed to read quality rules: %w", err)
	}

	if err := yaml.Unmarshal(data, &rules); err != nil {
		return rules, fmt.Errorf("failed to parse quality rules: %w", err)
	}

	if err := rules.validate(); err != nil {
		return rules, err
	}
	return rules, nil
}

func (r Rules) validate() error {
	for key, t := range r.Targets {
		if t.MinWords < 0 || (t.MaxWords > 0 && t.MaxWords < t.MinWords) {
			return fmt.Errorf("invalid word window for %s: %d-%d", key, t.MinWords, t.MaxWords)
		}
	}
	if r.MaxShoutingRatio < 0 || r.MaxShoutingRatio > 1 {
		return fmt.Errorf("maxShoutingRatio must be between 0 and 1")
	}
	if r.Penalties.Critical < 0 || r.Penalties.Warning < 0 || r.Penalties.Info < 0 {
		return fmt.Errorf("penalties must not be negative")
	}
	return nil
}
