package schema

var issueSchema = map[string]any{
	"type":     "object",
	"required": []string{"code", "severity", "message"},
	"properties": map[string]any{
		"code":     map[string]any{"type": "string", "minLength": 1},
		"severity": map[string]any{"type": "string", "enum": []string{"info", "warning", "critical"}},
		"message":  map[string]any{"type": "string"},
	},
}

var scoreSchema = map[string]any{"type": "integer", "minimum": 0, "maximum": 100}

// QualityAnalysis guards the quality_analysis column
var QualityAnalysis = New("quality_analysis", map[string]any{
	"type":     "object",
	"required": []string{"kind", "score", "grade", "word_count", "issues", "suggestions"},
	"properties": map[string]any{
		"kind":                map[string]any{"const": "quality_analysis"},
		"score":               scoreSchema,
		"grade":               map[string]any{"type": "string", "enum": []string{"A", "B", "C", "D", "F"}},
		"word_count":          map[string]any{"type": "integer", "minimum": 0},
		"sentence_count":      map[string]any{"type": "integer", "minimum": 0},
		"paragraph_count":     map[string]any{"type": "integer", "minimum": 0},
		"avg_sentence_length": map[string]any{"type": "number", "minimum": 0},
		"issues":              map[string]any{"type": []string{"array", "null"}, "items": issueSchema},
		"suggestions":         map[string]any{"type": []string{"array", "null"}, "items": map[string]any{"type": "string"}},
	},
})

// ImprovementResult guards the improvement_result column
var ImprovementResult = New("improvement_result", map[string]any{
	"type":     "object",
	"required": []string{"kind", "improved_text", "score", "provider"},
	"properties": map[string]any{
		"kind":          map[string]any{"const": "improvement_result"},
		"improved_text": map[string]any{"type": "string", "minLength": 1},
		"changes":       map[string]any{"type": []string{"array", "null"}, "items": map[string]any{"type": "string"}},
		"score": map[string]any{
			"type":     "object",
			"required": []string{"before", "after"},
			"properties": map[string]any{
				"before": scoreSchema,
				"after":  scoreSchema,
			},
		},
		"provider": map[string]any{"type": "string", "minLength": 1},
		"model":    map[string]any{"type": "string"},
	},
})

// RewriteOutput guards the JSON an LLM returns for a rewrite request
var RewriteOutput = New("rewrite_output", map[string]any{
	"type":     "object",
	"required": []string{"improved_text"},
	"properties": map[string]any{
		"improved_text": map[string]any{"type": "string", "minLength": 1},
		"changes": map[string]any{
			"type":     "array",
			"items":    map[string]any{"type": "string"},
			"maxItems": 10,
		},
	},
})
